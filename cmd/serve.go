package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/smartrouter/router"
)

var (
	listenAddr   string        // HTTP listen address
	routeTimeout time.Duration // How long /route waits for the cycle slot
)

// server exposes a Router over HTTP.
type server struct {
	router       *Router
	routeTimeout time.Duration
	registry     *prometheus.Registry
}

func newServer(r *Router, routeTimeout time.Duration) *server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.Metrics.MustRegister(reg)
	return &server{router: r, routeTimeout: routeTimeout, registry: reg}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/route", s.handleRoute)
	mux.HandleFunc("/decisions", s.handleDecisions)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// handleRoute runs one request-driven cycle and returns the Decision.
// 503 when every backend failed, 429 when the cycle slot stayed busy.
func (s *server) handleRoute(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	ctx, cancel := context.WithTimeout(req.Context(), s.routeTimeout)
	defer cancel()

	d, err := s.router.Loop.Decide(ctx)
	switch {
	case errors.Is(err, router.ErrNoBackendsAvailable):
		writeError(w, http.StatusServiceUnavailable, err)
		return
	case errors.Is(err, router.ErrCycleInProgress):
		writeError(w, http.StatusTooManyRequests, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if simulateRequests {
		holdRequest(d.Winner.Backend)
	}
	writeJSON(w, http.StatusOK, d)
}

// handleDecisions returns the n most recent Decision Log records (newest first).
func (s *server) handleDecisions(w http.ResponseWriter, req *http.Request) {
	n := s.router.Log.Config().Capacity
	if raw := req.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, errors.New("n must be a non-negative integer"))
			return
		}
		n = v
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":   s.router.Log.Total(),
		"records": s.router.Log.Recent(n),
		"summary": s.router.Log.Summary(),
	})
}

func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"backends": s.router.Loop.Registry().Len(),
		"cycles":   s.router.Loop.Cycles(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// serveCmd runs request-driven cycles behind an HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve routing decisions over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg := mustLoadConfig(cmd)

		r, err := buildRouter(cfg)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		defer func() { _ = r.Close() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Loop.Interval > 0 {
			go func() {
				logrus.Infof("background refresh every %v", cfg.Loop.Interval)
				if err := r.Loop.Run(ctx, cfg.Loop.Interval, func(d *router.Decision, err error) {
					if err != nil {
						logrus.Warnf("background cycle: %v", err)
					}
				}); err != nil {
					logrus.Errorf("background refresh stopped: %v", err)
				}
			}()
		}

		srv := &http.Server{
			Addr:              listenAddr,
			Handler:           newServer(r, routeTimeout).routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		logrus.Infof("listening on %s", listenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("HTTP server: %v", err)
		}
		logrus.Info("Server stopped.")
	},
}

func init() {
	addCommonFlags(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().DurationVar(&interval, "interval", 0, "Background refresh period (0 disables)")
	serveCmd.Flags().DurationVar(&routeTimeout, "route-timeout", 2*time.Second, "How long /route waits for an in-flight cycle")
	serveCmd.Flags().BoolVar(&simulateRequests, "simulate-requests", false, "Hold each chosen backend busy for 100ms")

	rootCmd.AddCommand(serveCmd)
}
