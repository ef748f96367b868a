package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/seraph-os/sls/pkg/sls"
)

// cmdServe opens a region and serves its live Prometheus metrics over
// HTTP until interrupted, grounded on the teacher's
// internal/server.ObservabilityServer (a dedicated metrics/health mux
// separate from the primary service loop).
func cmdServe(out, errOut io.Writer, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c := bindCommonFlags(fs)
	addr := fs.String("addr", "", "Address to serve /metrics and /health on (overrides config)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	cfg, err := resolveConfig(c)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	setupLogging(cfg)

	listenAddr := cfg.MetricsAddr
	if *addr != "" {
		listenAddr = *addr
	}
	if listenAddr == "" {
		listenAddr = ":9090"
	}

	st, err := sls.Open(cfg.RegionPath, cfg.RegionSize)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	defer st.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"healthy"}`)
	})

	server := &http.Server{
		Addr:         listenAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	fmt.Fprintf(out, "serving metrics on %s/metrics\n", listenAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	return 0
}
