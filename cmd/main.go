package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vapor_recovery/internal/config"
	"vapor_recovery/internal/handlers"
	"vapor_recovery/internal/logger"
	"vapor_recovery/internal/notify"
	"vapor_recovery/internal/repository"
	"vapor_recovery/internal/repository/db"
	"vapor_recovery/internal/server"
	"vapor_recovery/internal/service"
	"vapor_recovery/internal/transport"

	"github.com/sourcegraph/conc"
	"github.com/spf13/viper"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	log := logger.Init(cfg.Log.Level, logger.FileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	defer func() { _ = log.Sync() }()

	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.DB.Path)
	}
	defer closeDB(sqlDB, log)
	repos := repository.NewRepository(sqlDB)

	samples, err := repository.OpenSampleStore(cfg.Samples.Path, cfg.Samples.InMemory, log)
	if err != nil {
		log.Fatalw("failed to open sample store", "err", err, "path", cfg.Samples.Path)
	}
	defer func() {
		if cerr := samples.Close(); cerr != nil {
			log.Errorw("failed to close sample store", "err", cerr)
		}
	}()

	var pubs []service.Publisher
	if cfg.NATS.Enabled {
		pub, err := notify.Connect(cfg.NATS.URL, cfg.NATS.Subject, cfg.NATS.Site, log)
		if err != nil {
			log.Errorw("nats unavailable; events stay local", "err", err, "url", cfg.NATS.URL)
		} else {
			defer pub.Close()
			pubs = append(pubs, pub)
		}
	}
	notifier := service.NewNotificationService(repos.EventRepo, log, pubs...)

	profiles, err := service.NewProfileRegistry(cfg.Profile.Name)
	if err != nil {
		log.Fatalw("invalid profile", "err", err, "profile", cfg.Profile.Name)
	}
	catalog, err := service.NewCatalog(cfg.Cycles, cfg.Debug)
	if err != nil {
		log.Fatalw("invalid cycle catalog", "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := service.NewModeRegister()
	engine := service.NewCycleEngine(reg, notifier, repos.CycleStateRepo, log)
	if err := engine.Restore(ctx); err != nil {
		log.Errorw("paused cycle not restored", "err", err)
	}

	port, err := transport.OpenSerial(cfg.Serial.Device, cfg.Serial.Baud, cfg.Serial.ReadTimeout)
	if err != nil {
		log.Fatalw("failed to open serial port", "err", err, "device", cfg.Serial.Device)
	}
	defer func() { _ = port.Close() }()
	link := transport.New(port, reg, nil, transport.Options{
		Tick:      cfg.Serial.Tick,
		Freshness: cfg.Serial.Freshness,
	}, log)

	control := service.NewControlService(engine, catalog, link, notifier, log)
	link.SetHandler(service.NewDeviceEvents(control, repos.CalibrationRepo, samples, profiles, notifier, log))

	faults := service.NewFaultMonitor(cfg.Faults, link, reg, engine, profiles.GMFaultMonitoring, notifier, log)
	alarms := service.NewAlarmEngine(service.NewConditions(cfg.Alarms, cfg.Faults), link, reg, faults, notifier, log)

	shutdown := service.NewShutdownProtocol(repos.ShutdownRepo, link, engine, profiles, notifier, log)
	engine.SetShutdownGate(shutdown)
	timers, err := shutdown.Restore(ctx)
	if err != nil {
		log.Errorw("shutdown timers not restored", "err", err)
	}
	for _, t := range timers {
		alarms.Seed(t.Category, t.Onset)
	}
	alarms.Subscribe(shutdown)

	sampler := service.NewSamplerService(link, reg, samples, cfg.Samples.Retention, log)
	services := service.NewService(
		control,
		service.NewMonitoringService(reg, link, alarms, shutdown, profiles, repos.CalibrationRepo, samples),
		service.NewEventLogService(repos.EventRepo),
		service.NewAuthService(cfg.Auth.Username, cfg.Auth.PasswordHash, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
	)
	if cfg.Auth.PasswordHash == "" {
		log.Warnw("auth.password_hash not set; sign-in is disabled")
	}
	apiHandler := handlers.NewHandler(services, log, cfg.Metrics.Enabled)

	var wg conc.WaitGroup
	wg.Go(func() { link.Run(ctx) })
	wg.Go(func() { alarms.Run(ctx, cfg.Engine.AlarmTick) })
	wg.Go(func() { faults.Run(ctx, cfg.Engine.AlarmTick) })
	wg.Go(func() { shutdown.Run(ctx, cfg.Shutdown.Tick) })
	wg.Go(func() { sampler.Run(ctx, cfg.Samples.Every) })

	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)
	log.Infow("supervisor started", "port", cfg.Port, "profile", profiles.Current().Name, "serial", cfg.Serial.Device)

	waitForShutdown(srv, log)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer stopCancel()
	if err := engine.Stop(stopCtx); err != nil {
		log.Errorw("failed to stop cycle", "err", err)
	}
	cancel()
	wg.Wait()

	// The loop is gone, so this final pass owns the port and leaves the device at rest.
	link.Tick(stopCtx, time.Now())
}

// loadConfig reads configs/config.yml; a missing file falls back to defaults and env.
func loadConfig() (*config.Config, error) {
	v := viper.New()
	v.AddConfigPath("configs")
	v.SetConfigName("config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return config.Load(v)
}

func closeDB(sqlDB *sql.DB, log *logger.Logger) {
	if err := sqlDB.Close(); err != nil {
		log.Errorw("failed to close sqlite", "err", err)
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down supervisor...")

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
