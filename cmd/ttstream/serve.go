package main

import (
    "context"
    "errors"
    "net/http"
    "os/signal"
    "syscall"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
    "github.com/spf13/cobra"
    "go.uber.org/zap"

    "ttstream/pkg/observability"
    "ttstream/pkg/server"
)

func newServeCmd(a *app) *cobra.Command {
    var listen []string
    cmd := &cobra.Command{
        Use:   "serve",
        Short: "Run a peer that echoes every stream opened on /echo",
        RunE: func(cmd *cobra.Command, _ []string) error {
            if len(listen) > 0 { a.cfg.Server.Listen = listen }
            ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
            defer stop()
            return serve(ctx, a)
        },
    }
    cmd.Flags().StringSliceVar(&listen, "listen", nil, "Endpoint URLs to listen on (overrides server.listen)")
    return cmd
}

func serve(ctx context.Context, a *app) error {
    cfg, logger := a.cfg, a.logger
    if len(cfg.Server.Listen) == 0 { return errors.New("no server.listen endpoints configured") }

    logger.Info("ttstream serve started", zap.String("app", cfg.AppName))
    logger.Debug("effective configuration", zap.Any("config", cfg))

    var metrics *observability.Metrics
    if cfg.Metrics.Listen != "" {
        reg := prometheus.NewRegistry()
        reg.MustRegister(collectors.NewGoCollector())
        metrics = observability.NewMetrics(reg)
        hs := &http.Server{Addr: cfg.Metrics.Listen, Handler: observability.Handler(reg), ReadHeaderTimeout: 5 * time.Second}
        go func() {
            if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
                logger.Error("metrics endpoint failed", zap.Error(err))
            }
        }()
        defer func() { _ = hs.Close() }()
        logger.Info("metrics endpoint listening", zap.String("addr", cfg.Metrics.Listen))
    }

    srv := server.New(server.Options{Logger: logger, Metrics: metrics})
    srv.Handle("/echo", server.Echo)
    logger.Info("serving", zap.Strings("listen", cfg.Server.Listen))
    return srv.ListenAndServe(ctx, cfg.Server.Listen)
}
