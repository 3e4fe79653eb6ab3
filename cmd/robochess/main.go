package main

import (
    "context"
    "errors"
    "log"
    "os/signal"
    "sync"
    "syscall"
    "time"

    "go.uber.org/zap"

    "github.com/paga2004/robochess/internal/chess/uci"
    appcfg "github.com/paga2004/robochess/internal/config"
    "github.com/paga2004/robochess/internal/domain"
    "github.com/paga2004/robochess/internal/gamelog"
    "github.com/paga2004/robochess/internal/gamestore"
    "github.com/paga2004/robochess/internal/gpio"
    "github.com/paga2004/robochess/internal/hbot"
    "github.com/paga2004/robochess/internal/obslog"
    "github.com/paga2004/robochess/internal/planner"
    "github.com/paga2004/robochess/internal/service/robochess"
    "github.com/paga2004/robochess/internal/session"
    "github.com/paga2004/robochess/internal/statusapi"
    "github.com/paga2004/robochess/internal/stepper"
)

// hardware is the set of pins the gantry is built from.
type hardware struct {
    m1Step, m1Dir  gpio.Output
    m2Step, m2Dir  gpio.Output
    limit1, limit2 gpio.Input
    servo          gpio.PWM
    close          func() error
}

func main() {
    cfg, err := appcfg.Load()
    if err != nil {
        log.Fatalf("config error: %v", err)
    }
    if err := obslog.InitFromEnv(); err != nil {
        log.Fatalf("logger init error: %v", err)
    }
    logger := obslog.L()
    defer func() { _ = logger.Sync() }()

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    hw, err := openHardware(cfg)
    if err != nil {
        logger.Fatal("gpio_init_failed", zap.Error(err))
    }
    defer func() { _ = hw.close() }()

    opts := hbot.OptionsFromConfig(cfg)
    if cfg.SimulateHardware {
        // the simulated rig is wired with the nominal motor senses
        opts.InvertMotor1, opts.InvertMotor2 = false, false
    }
    m1 := stepper.New("motor1", hw.m1Step, hw.m1Dir, cfg.Motion.MinPeriod, logger)
    m2 := stepper.New("motor2", hw.m2Step, hw.m2Dir, cfg.Motion.MinPeriod, logger)
    gantry := hbot.New(m1, m2, hw.limit1, hw.limit2, hw.servo, opts, logger)
    defer gantry.Halt()

    deps := robochess.Deps{
        Gantry:   gantry,
        Compiler: planner.NewCompiler(planner.GeometryFromConfig(cfg.Geometry), logger),
    }

    store := openStore(ctx, cfg, logger)
    defer func() { _ = store.Close() }()
    deps.Store = store

    deps.Archive = gamelog.NewMemoryArchive()
    if cfg.DatabaseURL != "" {
        repo, err := gamelog.Open(ctx, cfg.DatabaseURL)
        if err != nil {
            logger.Warn("game_archive_in_memory", zap.Error(err))
        } else {
            defer func() { _ = repo.Close() }()
            deps.Archive = repo
        }
    }

    if cfg.StockfishPath != "" {
        ectx, cancel := context.WithTimeout(ctx, 10*time.Second)
        engine, err := uci.NewSession(ectx, cfg.StockfishPath, uci.DefaultOptions(), logger)
        cancel()
        if err != nil {
            logger.Warn("engine_disabled", zap.String("path", cfg.StockfishPath), zap.Error(err))
        } else {
            defer func() { _ = engine.Close() }()
            deps.Engine = engine
        }
    }

    svc, err := robochess.New(deps, robochess.Config{EngineDepth: cfg.EngineDepth, EngineTimeout: 30 * time.Second}, logger)
    if err != nil {
        logger.Fatal("service_init_failed", zap.Error(err))
    }
    if err := svc.Restore(ctx); err != nil {
        logger.Warn("game_restore_failed", zap.Error(err))
    }

    // The robot homes once at power-up; a failure leaves it parked until !calibrate.
    if err := svc.Calibrate(ctx); err != nil {
        logger.Error("startup_homing_failed", zap.Error(err))
    }

    var wg sync.WaitGroup
    errCh := make(chan error, 2)

    wg.Add(1)
    go func() {
        defer wg.Done()
        errCh <- session.NewServer(svc, cfg.Subprotocol, logger).ListenAndServe(ctx, cfg.ListenAddr)
    }()

    if cfg.StatusAddr != "" {
        wg.Add(1)
        go func() {
            defer wg.Done()
            errCh <- statusapi.NewServer(svc, logger).ListenAndServe(ctx, cfg.StatusAddr)
        }()
    }

    select {
    case <-ctx.Done():
        logger.Info("shutdown_requested")
    case err := <-errCh:
        if err != nil && !errors.Is(err, context.Canceled) {
            logger.Error("server_failed", zap.Error(err))
        }
        stop()
    }
    wg.Wait()
    logger.Info("shutdown_complete")
}

func openHardware(cfg *appcfg.AppConfig) (*hardware, error) {
    if cfg.SimulateHardware {
        rig := hbot.NewSimRig(domain.Point{X: 300, Y: 300})
        obslog.L().Info("gpio_simulated")
        return &hardware{
            m1Step: rig.Motor1Step, m1Dir: rig.Motor1Dir,
            m2Step: rig.Motor2Step, m2Dir: rig.Motor2Dir,
            limit1: rig.Limit1(), limit2: rig.Limit2(),
            servo: rig.Servo,
            close: func() error { return nil },
        }, nil
    }

    chip, err := gpio.Open()
    if err != nil {
        return nil, err
    }
    p := cfg.Pins
    servo, err := chip.Servo(p.Servo, cfg.Motion.ServoFrame)
    if err != nil {
        _ = chip.Close()
        return nil, err
    }
    return &hardware{
        m1Step: chip.Output(p.Motor1Step), m1Dir: chip.Output(p.Motor1Dir),
        m2Step: chip.Output(p.Motor2Step), m2Dir: chip.Output(p.Motor2Dir),
        limit1: chip.Input(p.Limit1), limit2: chip.Input(p.Limit2),
        servo: servo,
        close: chip.Close,
    }, nil
}

func openStore(ctx context.Context, cfg *appcfg.AppConfig, logger *zap.Logger) gamestore.Store {
    if cfg.RedisURL == "" {
        return gamestore.NewMemoryStore()
    }
    store, err := gamestore.OpenRedis(ctx, cfg.RedisURL, cfg.SnapshotTTL)
    if err != nil {
        logger.Warn("redis_unavailable_using_memory", zap.Error(err))
        return gamestore.NewMemoryStore()
    }
    return store
}
