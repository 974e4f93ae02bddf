package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ouvrio/courrier/internal/clix"
	"github.com/ouvrio/courrier/internal/config"
	"github.com/ouvrio/courrier/internal/dao"
	"github.com/ouvrio/courrier/internal/diagnostics"
	"github.com/ouvrio/courrier/internal/dispatch"
	"github.com/ouvrio/courrier/internal/mailconf"
	"github.com/ouvrio/courrier/internal/metrics"
	"github.com/ouvrio/courrier/internal/web"
	"github.com/ouvrio/courrier/tools"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {

	_ = godotenv.Load()

	app := &cli.App{
		Name:  "courrierd",
		Usage: "the transactional notification service of the ouvrio marketplace",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-interface",
				EnvVars: []string{"COURRIER_API_INTERFACE"},
			},
			&cli.IntFlag{
				Name:    "api-port",
				EnvVars: []string{"COURRIER_API_PORT"},
				Value:   8080,
			},
			&cli.BoolFlag{
				Name:    "api-auto-tls",
				EnvVars: []string{"COURRIER_API_AUTO_TLS"},
				Usage:   "use a Let's Encrypt certificate for the api host",
			},
			&cli.StringFlag{
				Name:    "api-auto-tls-host",
				EnvVars: []string{"COURRIER_API_AUTO_TLS_HOST"},
			},
			&cli.StringFlag{
				Name:    "api-auto-tls-cache",
				EnvVars: []string{"COURRIER_API_AUTO_TLS_CACHE"},
			},
			&cli.StringFlag{
				Name:    "public-base-url",
				EnvVars: []string{"COURRIER_PUBLIC_BASE_URL"},
				Value:   "https://www.ouvrio.fr",
				Usage:   "marketplace origin used for deep links in rendered messages",
			},
			&cli.StringFlag{
				Name:    "simulation-dir",
				EnvVars: []string{"COURRIER_SIMULATION_DIR"},
				Value:   "./simulated-mail",
			},
			&cli.StringFlag{
				Name:    "hostname",
				EnvVars: []string{"COURRIER_HOSTNAME"},
				Usage:   "hostname tagged onto message ids, eg notify0.ouvrio.fr",
			},
			&cli.DurationFlag{
				Name:    "diagnostic-connect-timeout",
				EnvVars: []string{"COURRIER_DIAGNOSTIC_CONNECT_TIMEOUT"},
				Value:   10 * time.Second,
			},
			&cli.BoolFlag{
				Name:    "metrics-poll",
				EnvVars: []string{"COURRIER_METRICS_POLL"},
			},
			&cli.StringFlag{
				Name:    "metrics-poll-basic-auth-user",
				EnvVars: []string{"COURRIER_METRICS_POLL_USER"},
			},
			&cli.StringFlag{
				Name:    "metrics-poll-basic-auth-pass",
				EnvVars: []string{"COURRIER_METRICS_POLL_PASS"},
			},
		},
		Action: serve,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serve(c *cli.Context) error {

	envcfg := config.Get()

	l := log.New()
	level, err := log.ParseLevel(envcfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	l.SetLevel(level)
	l.AddHook(tools.LoggerWho{Name: "courrierd"})
	lc := tools.LoggerCloner(l)

	l.Infof("starting courrierd")

	db, err := dao.NewSQLite(envcfg.DbURI)
	if err != nil {
		return err
	}

	store := mailconf.New(lc, db)
	m := metrics.New(clix.Parse[metrics.Config](c), lc)

	dispatcher := dispatch.New(clix.Parse[dispatch.Config](c), lc, db, store, nil, m)
	pipeline := diagnostics.New(clix.Parse[diagnostics.Config](c), lc, store, dispatcher)

	webcfg := clix.Parse[web.Config](c)
	webcfg.APIKeys = envcfg.APIKeys
	server := web.New(webcfg, lc, db, store, dispatcher, pipeline, m)
	server.Start()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	sig := <-sigc
	l.Infof("got signal %s, shutting down", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = server.Stop(shutdownCtx)
	if err != nil {
		l.WithError(err).Error("failed to stop api server")
	}

	l.Infof("shutdown complete")
	return nil
}
