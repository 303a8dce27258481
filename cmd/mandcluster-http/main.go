// Command mandcluster-http serves the cluster dispatcher over HTTP.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/behrlich/mandcluster"
	"github.com/behrlich/mandcluster/internal/logging"
)

func main() {
	var (
		addr    = flag.String("addr", ":8080", "HTTP listen address")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("opening cluster facade")
	sched, err := mandcluster.NewScheduler(ctx, mandcluster.Config{Logger: logger})
	if err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("stopping scheduler")
		if err := sched.Close(); err != nil {
			logger.Error("error stopping scheduler", "error", err)
		} else {
			logger.Info("scheduler stopped successfully")
		}
	}()

	var ready atomic.Bool
	ready.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/calculate", calculateHandler(sched))
	mux.HandleFunc("/healthz", healthzHandler(&ready))
	mux.HandleFunc("/metrics", metricsHandler(sched))

	server := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		logger.Info("serving http", "addr", *addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")
	ready.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	cancel()
}

// calculateRequest is the wire format for POST /calculate: hex strings
// optionally prefixed "0x", x/y signed, max_itterations unsigned.
type calculateRequest struct {
	X             string `json:"x"`
	Y             string `json:"y"`
	MaxIterations string `json:"max_itterations"`
}

type calculateResponse struct {
	Iterations string `json:"itterations"`
}

func calculateHandler(sched *mandcluster.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req calculateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusInternalServerError)
			return
		}

		x, ok := parseHexSigned(req.X)
		if !ok {
			http.Error(w, fmt.Sprintf("invalid x: %q", req.X), http.StatusInternalServerError)
			return
		}
		y, ok := parseHexSigned(req.Y)
		if !ok {
			http.Error(w, fmt.Sprintf("invalid y: %q", req.Y), http.StatusInternalServerError)
			return
		}
		maxIter, ok := parseHexUnsigned(req.MaxIterations)
		if !ok {
			http.Error(w, fmt.Sprintf("invalid max_itterations: %q", req.MaxIterations), http.StatusInternalServerError)
			return
		}

		iterations, err := sched.Submit(r.Context(), x, y, maxIter)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(calculateResponse{
			Iterations: fmt.Sprintf("0x%x", iterations),
		})
	}
}

func healthzHandler(ready *atomic.Bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}
}

func metricsHandler(sched *mandcluster.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sched.MetricsSnapshot())
	}
}

// parseHexSigned parses a hex string with an optional leading "-" and an
// optional "0x"/"0X" prefix after the sign, e.g. "-0x1a" or "2b".
func parseHexSigned(s string) (*big.Int, bool) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	s = trimHexPrefix(s)
	if s == "" {
		return big.NewInt(0), true
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, false
	}
	if neg {
		v.Neg(v)
	}
	return v, true
}

func parseHexUnsigned(s string) (uint64, bool) {
	s = trimHexPrefix(s)
	if s == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		return s[2:]
	}
	return s
}
