package main

import (
	"fmt"
	"os"
	"runtime"

	"medisense/internal/config"
	"medisense/internal/logger"
	"medisense/internal/pipeline"
	"medisense/internal/server"
	"medisense/internal/shutdown"
)

const AppVersion = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "medisense: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.NewConsoleLogger(cfg.Level())
	log.Info("Application", "starting", map[string]interface{}{
		"version":        AppVersion,
		"go_version":     runtime.Version(),
		"addr":           cfg.Addr,
		"max_concurrent": cfg.MaxConcurrent,
		"output_format":  cfg.OutputFormat,
		"block_size":     cfg.BlockSize,
		"min_vein_area":  cfg.MinVeinArea,
	})

	opts, err := cfg.ServiceOptions(log)
	if err != nil {
		return err
	}
	svc, err := pipeline.NewService(opts)
	if err != nil {
		return err
	}

	srv := server.New(svc, server.Options{
		Addr:           cfg.Addr,
		MaxConcurrent:  cfg.MaxConcurrent,
		RequestTimeout: cfg.RequestTimeout,
		MaxUploadBytes: opts.MaxUploadBytes,
		Logger:         log,
		Registry:       server.NewRegistry(server.SystemName, svc.Memory()),
	})

	manager := shutdown.NewManager(log)
	manager.Register("stage-timings", shutdown.Func(func() {
		for _, op := range svc.Timing().Operations() {
			summary := svc.Timing().Summarize(op)
			log.Info("Application", "stage timing summary", map[string]interface{}{
				"operation": op,
				"count":     summary.Count,
				"mean_ms":   summary.Mean.Milliseconds(),
				"p95_ms":    summary.P95.Milliseconds(),
			})
		}
		stats := svc.Memory().GetStats()
		log.Info("Application", "native memory at exit", map[string]interface{}{
			"active_mats": stats.ActiveMats,
			"peak_mats":   stats.PeakActive,
			"outstanding": svc.Memory().Outstanding(),
		})
	}))
	manager.Register("http", srv)
	manager.Listen()

	err = srv.ListenAndServe()
	// waits for a signal-triggered sequence to finish, or runs one after a
	// listen failure
	manager.Shutdown()
	if err != nil {
		return err
	}
	log.Info("Application", "terminated", nil)
	return nil
}
