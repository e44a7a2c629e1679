package main

import (
    "context"
    "net/http"
    "os"
    "os/signal"
    "syscall"

    "github.com/rs/zerolog/log"

    "github.com/local/colorsplit/internal/assemble"
    cfgpkg "github.com/local/colorsplit/internal/config"
    "github.com/local/colorsplit/internal/dispatcher"
    "github.com/local/colorsplit/internal/filetype"
    logpkg "github.com/local/colorsplit/internal/logger"
    "github.com/local/colorsplit/internal/metrics"
    "github.com/local/colorsplit/internal/orchestrator"
    "github.com/local/colorsplit/internal/queue"
    "github.com/local/colorsplit/internal/render"
    "github.com/local/colorsplit/internal/splitter"
    "github.com/local/colorsplit/internal/statuscheck"
    "github.com/local/colorsplit/internal/storage"
    "github.com/local/colorsplit/internal/store"
)

func runServe() int {
    _ = cfgpkg.LoadDotEnv()
    cfg := cfgpkg.FromEnv()

    _ = logpkg.Init(logpkg.OptionsFromConfig(cfg))
    defer logpkg.Close()
    metrics.Init()

    // Queue
    rq, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group)
    if err != nil {
        log.Error().Err(err).Msg("failed to connect to redis")
        return 1
    }
    defer rq.Close()

    // Status store
    rs, err := store.NewRedisStatus(cfg.Queue.RedisURL)
    if err != nil {
        log.Error().Err(err).Msg("failed to init redis status store")
        return 1
    }
    defer rs.Close()

    // S3 is optional; without it only local and http(s) sources work
    var objects storage.ObjectStore
    var s3c *storage.S3Client
    if cfg.Storage.Bucket != "" || cfg.Storage.Endpoint != "" {
        s3c, err = storage.NewS3Client(context.Background(), storage.S3Options{
            Region:    cfg.Storage.Region,
            Endpoint:  cfg.Storage.Endpoint,
            AccessKey: cfg.Storage.AccessKey,
            SecretKey: cfg.Storage.SecretKey,
        })
        if err != nil {
            log.Warn().Err(err).Msg("s3 disabled")
        } else {
            objects = s3c
        }
    }

    asm := assemble.New()
    sp := splitter.New(render.NewFitzOpener(cfg.Split.RenderDPI), asm, splitter.Options{
        Thresholds: &splitter.Thresholds{
            Saturation:    cfg.Split.SaturationThreshold,
            ColorFraction: cfg.Split.ColorFractionThreshold,
        },
        Workers:  cfg.Split.ClassifyWorkers,
        Observer: splitter.Observers{logpkg.Observer{}, metrics.Observer{}},
    })

    disp := dispatcher.New(dispatcher.Config{
        Concurrency: cfg.Worker.Concurrency,
        JobTimeout:  cfg.Worker.JobTimeout,
        ResultDir:   cfg.Storage.ResultDir,
        TempMaxAge:  cfg.Storage.TempMaxAge,
        PollTimeout: cfg.Queue.PollInterval,
    }, dispatcher.Deps{
        Queue:    rq,
        Status:   rs,
        Resolver: &storage.Resolver{Objects: objects},
        Splitter: sp,
        Objects:  objects,
    })
    disp.Start()

    checkOpts := statuscheck.Options{Redis: rq, S3Bucket: cfg.Storage.Bucket}
    if s3c != nil { checkOpts.Objects = s3c }

    orch := orchestrator.New(orchestrator.Dependencies{
        Queue:         rq,
        Status:        rs,
        Checker:       statuscheck.New(checkOpts),
        ValidatePDF:   filetype.New().RequirePDF,
        PageCount:     asm.PageCount,
        UploadDir:     cfg.Storage.UploadDir,
        DefaultBucket: cfg.Storage.Bucket,
        DefaultDuplex: cfg.Split.Duplex,
    })
    mux := http.NewServeMux()
    orch.RegisterRoutes(mux)

    srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux}
    go func() {
        log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    // Graceful shutdown
    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    <-stop
    ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
    defer cancel()
    _ = srv.Shutdown(ctx)
    if err := disp.Stop(ctx); err != nil {
        log.Warn().Err(err).Msg("workers did not stop in time")
    }
    log.Info().Msg("shutdown complete")
    return 0
}
