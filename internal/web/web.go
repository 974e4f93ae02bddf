package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ouvrio/courrier/internal/dao"
	"github.com/ouvrio/courrier/internal/diagnostics"
	"github.com/ouvrio/courrier/internal/dispatch"
	"github.com/ouvrio/courrier/internal/mailconf"
	"github.com/ouvrio/courrier/internal/metrics"
	"github.com/ouvrio/courrier/tools"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/modfin/henry/compare"
	"github.com/modfin/henry/slicez"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/acme/autocert"
)

type Config struct {
	Interface string `cli:"api-interface"`
	Port      int    `cli:"api-port"`

	AutoTLS      bool   `cli:"api-auto-tls"`
	AutoTLSHost  string `cli:"api-auto-tls-host"`
	CertCacheDir string `cli:"api-auto-tls-cache"`

	APIKeys []string
}

func New(cfg Config, lc *tools.Logger, db dao.DAO, store *mailconf.Store,
	dispatcher *dispatch.Dispatcher, pipeline *diagnostics.Pipeline, m *metrics.Metrics) *Server {

	return &Server{
		cfg:        cfg,
		log:        lc.New("web"),
		db:         db,
		store:      store,
		dispatcher: dispatcher,
		pipeline:   pipeline,
		metrics:    m,
	}
}

type Server struct {
	cfg Config
	log *logrus.Logger

	db         dao.DAO
	store      *mailconf.Store
	dispatcher *dispatch.Dispatcher
	pipeline   *diagnostics.Pipeline
	metrics    *metrics.Metrics

	e *echo.Echo
}

func (s *Server) router() *echo.Echo {

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI: true, LogStatus: true, LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.log.WithField("method", v.Method).
				WithField("uri", v.URI).
				WithField("status", v.Status).
				Debug("request")
			return nil
		},
	}))

	prom := prometheus.NewPrometheus("courrier", nil)
	e.Use(prom.HandlerFunc)

	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics.HttpMetrics()))
	}

	g := e.Group("", s.keyAuth)
	g.POST("/dispatch", s.postDispatch)
	g.GET("/config", s.getConfig)
	g.PUT("/config", s.putConfig)
	g.POST("/diagnostics", s.postDiagnostics)
	g.GET("/history", s.getHistory)
	g.GET("/history/:id/log", s.getHistoryLog)

	return e
}

func (s *Server) Start() {

	e := s.router()
	s.e = e

	addr := fmt.Sprintf("%s:%d", s.cfg.Interface, compare.Coalesce(s.cfg.Port, 8080))
	go func() {
		s.log.Infof("starting api server on %s", addr)

		var err error
		if s.cfg.AutoTLS {
			e.AutoTLSManager.HostPolicy = autocert.HostWhitelist(s.cfg.AutoTLSHost)
			e.AutoTLSManager.Cache = autocert.DirCache(compare.Coalesce(s.cfg.CertCacheDir, "./certs"))
			err = e.StartAutoTLS(addr)
		} else {
			err = e.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("api server stopped")
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.e == nil {
		return nil
	}
	return s.e.Shutdown(ctx)
}

// keyAuth checks the key query parameter against the configured operator
// keys, mirroring how the rest of the platform authenticates internal
// service calls.
func (s *Server) keyAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.QueryParam("key")
		if key == "" || !slicez.Contains(s.cfg.APIKeys, key) {
			return echo.NewHTTPError(http.StatusUnauthorized, "a valid api key must be provided")
		}
		return next(c)
	}
}
