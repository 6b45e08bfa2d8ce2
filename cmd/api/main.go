package main

import (
    "context"
    "errors"
    "flag"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    log "github.com/sirupsen/logrus"

    "vrpsolver/internal/api"
    "vrpsolver/internal/buildinfo"
    "vrpsolver/internal/config"
    "vrpsolver/internal/logging"
)

func main() {
    cfgPath := flag.String("config", "", "path to a YAML config file (default $VRP_CONFIG)")
    flag.Parse()

    cfg, err := config.Load(*cfgPath)
    if err != nil {
        log.WithError(err).Fatal("failed to load config")
    }
    logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)
    log.WithField("version", buildinfo.String()).Info("starting vrpsolver api")

    srvDeps, err := api.NewServer(cfg)
    if err != nil {
        log.WithError(err).Fatal("failed to init server")
    }
    defer func() { _ = srvDeps.Close() }()

    srv := &http.Server{
        Addr:              ":" + cfg.Port,
        Handler:           srvDeps.Routes(),
        ReadHeaderTimeout: 5 * time.Second,
    }

    worker := srvDeps.NewWebhookWorker()
    worker.Start()

    errc := make(chan error, 1)
    go func() {
        log.WithField("addr", srv.Addr).Info("API listening")
        errc <- srv.ListenAndServe()
    }()

    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    select {
    case sig := <-stop:
        log.WithField("signal", sig.String()).Info("shutting down")
    case err := <-errc:
        if err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.WithError(err).Error("server error")
        }
    }

    ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
    defer cancel()
    if err := srv.Shutdown(ctx); err != nil {
        log.WithError(err).Warn("graceful shutdown timed out")
    }
    worker.Stop()
    log.Info("stopped")
}
