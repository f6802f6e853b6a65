package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/awoulbe/chatflow"
	"github.com/awoulbe/chatflow/internal/adapters/httpapi"
	"github.com/awoulbe/chatflow/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the inspection and classification HTTP API",
	Long:  `Exposes registered workflows, active contexts, ad-hoc classification and Prometheus metrics over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(cmd); err != nil {
			fmt.Printf("Server failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	logger := newLogger(cmd)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	eng, cleanup, err := buildEngine(cmd, logger, chatflow.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer cleanup()

	api := httpapi.New(eng.Runtime(), eng.Classifier(),
		httpapi.WithGatherer(reg),
		httpapi.WithLogger(logger),
	)

	addr, _ := cmd.Flags().GetString("addr")
	srv := &http.Server{
		Addr:         addr,
		Handler:      api,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
