package metrics

import (
	"crypto/subtle"
	"net/http"
	"sync"

	"github.com/ouvrio/courrier/tools"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Poll         bool   `cli:"metrics-poll"`
	PollUser     string `cli:"metrics-poll-basic-auth-user"`
	PollPassword string `cli:"metrics-poll-basic-auth-pass"`
}

func New(c Config, lc *tools.Logger) *Metrics {
	return &Metrics{
		config: c,
		logger: lc.New("prometheus"),
	}
}

type Metrics struct {
	config Config
	logger *logrus.Logger

	once     sync.Once
	dispatch Dispatch
}

func (p *Metrics) Register() promauto.Factory {
	return promauto.With(prometheus.DefaultRegisterer)
}

// Dispatch holds the counters the dispatcher bumps per attempt.
type Dispatch struct {
	Attempted prometheus.Counter
	Sent      prometheus.Counter
	Failed    prometheus.Counter
	Simulated prometheus.Counter
}

func (p *Metrics) Dispatch() Dispatch {
	p.once.Do(func() {
		f := p.Register()
		p.dispatch = Dispatch{
			Attempted: f.NewCounter(prometheus.CounterOpts{
				Name: "courrier_dispatch_attempted_total",
				Help: "Number of dispatch attempts that reached the transport step.",
			}),
			Sent: f.NewCounter(prometheus.CounterOpts{
				Name: "courrier_dispatch_sent_total",
				Help: "Number of dispatches that ended in state sent.",
			}),
			Failed: f.NewCounter(prometheus.CounterOpts{
				Name: "courrier_dispatch_failed_total",
				Help: "Number of dispatches that ended in state failed.",
			}),
			Simulated: f.NewCounter(prometheus.CounterOpts{
				Name: "courrier_dispatch_simulated_total",
				Help: "Number of dispatches handled in simulate mode.",
			}),
		}
	})
	return p.dispatch
}

func (p *Metrics) HttpMetrics() http.HandlerFunc {

	if !p.config.Poll {
		p.logger.Infof("metrics polling is disabled")
		return func(writer http.ResponseWriter, request *http.Request) {
			http.Error(writer, "Not Found", http.StatusNotFound)
		}
	}
	p.logger.Infof("metrics polling is enabled")

	if p.config.PollUser != "" || p.config.PollPassword != "" {
		p.logger.WithField("user", p.config.PollUser).Infof("basic auth enabled for metrics polling endpoint")
	}

	return func(writer http.ResponseWriter, request *http.Request) {
		if p.config.PollUser != "" || p.config.PollPassword != "" {
			user, pass, ok := request.BasicAuth()
			if !ok || user != p.config.PollUser || subtle.ConstantTimeCompare([]byte(pass), []byte(p.config.PollPassword)) != 1 {
				http.Error(writer, "Unauthorized.", http.StatusUnauthorized)
				return
			}
		}
		promhttp.Handler().ServeHTTP(writer, request)
	}
}
