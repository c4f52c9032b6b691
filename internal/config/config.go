// Package config loads runtime settings for the medisense binaries from the
// environment.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"medisense/internal/logger"
	"medisense/internal/opencv/memory"
	"medisense/internal/pipeline"
	"medisense/internal/render"
	"medisense/internal/timing"
	"medisense/internal/vein"
)

type Config struct {
	Addr            string
	MaxUploadMB     int64
	OutputFormat    string
	JPEGQuality     int
	BlockSize       int
	ThresholdOffset float64
	MinVeinArea     float64
	MaxConcurrent   int
	RequestTimeout  time.Duration
	OverlayColor    string
	// MaxMemoryMB bounds native image memory across requests; 0 is unlimited.
	MaxMemoryMB int64
	LogLevel    string
	Debug       bool
}

func Default() Config {
	return Config{
		Addr:            "localhost:5000",
		MaxUploadMB:     32,
		OutputFormat:    string(pipeline.FormatPNG),
		JPEGQuality:     95,
		BlockSize:       27,
		ThresholdOffset: 5,
		MinVeinArea:     200,
		MaxConcurrent:   runtime.NumCPU(),
		RequestTimeout:  30 * time.Second,
		OverlayColor:    "#ff0000",
		LogLevel:        "info",
	}
}

// FromEnv overlays MEDISENSE_* variables on the defaults.
func FromEnv() Config {
	d := Default()
	return Config{
		Addr:            GetEnvString("MEDISENSE_ADDR", d.Addr),
		MaxUploadMB:     GetEnvInt64("MEDISENSE_MAX_UPLOAD_MB", d.MaxUploadMB),
		OutputFormat:    GetEnvString("MEDISENSE_OUTPUT_FORMAT", d.OutputFormat),
		JPEGQuality:     GetEnvInt("MEDISENSE_JPEG_QUALITY", d.JPEGQuality),
		BlockSize:       GetEnvInt("MEDISENSE_BLOCK_SIZE", d.BlockSize),
		ThresholdOffset: GetEnvFloat64("MEDISENSE_THRESHOLD_OFFSET", d.ThresholdOffset),
		MinVeinArea:     GetEnvFloat64("MEDISENSE_MIN_VEIN_AREA", d.MinVeinArea),
		MaxConcurrent:   GetEnvInt("MEDISENSE_MAX_CONCURRENT", d.MaxConcurrent),
		RequestTimeout:  GetEnvDuration("MEDISENSE_REQUEST_TIMEOUT", d.RequestTimeout),
		OverlayColor:    GetEnvString("MEDISENSE_OVERLAY_COLOR", d.OverlayColor),
		MaxMemoryMB:     GetEnvInt64("MEDISENSE_MAX_MEMORY_MB", d.MaxMemoryMB),
		LogLevel:        GetEnvString("LOG_LEVEL", d.LogLevel),
		Debug:           GetEnvBool("DEBUG", d.Debug),
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("max upload must be positive, got %d MB", c.MaxUploadMB))
	}
	if _, err := pipeline.ParseFormat(c.OutputFormat); err != nil {
		errs = append(errs, err)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("jpeg quality must be in [1,100], got %d", c.JPEGQuality))
	}
	if c.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("max concurrent must be at least 1, got %d", c.MaxConcurrent))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.MaxMemoryMB < 0 {
		errs = append(errs, fmt.Errorf("max memory must not be negative, got %d MB", c.MaxMemoryMB))
	}
	if _, err := render.ParseColor(c.OverlayColor); err != nil {
		errs = append(errs, err)
	}
	if err := c.Params().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Params returns the default pipeline parameters with the configurable
// values applied.
func (c Config) Params() vein.Params {
	p := vein.DefaultParams()
	p.BlockSize = c.BlockSize
	p.ThresholdOffset = c.ThresholdOffset
	p.MinVeinArea = c.MinVeinArea
	return p
}

// Level resolves LOG_LEVEL; DEBUG forces debug output.
func (c Config) Level() logger.LogLevel {
	if c.Debug {
		return logger.DebugLevel
	}
	return logger.ParseLevel(c.LogLevel)
}

// ServiceOptions assembles pipeline.Options. Call Validate first.
func (c Config) ServiceOptions(log logger.Logger) (pipeline.Options, error) {
	format, err := pipeline.ParseFormat(c.OutputFormat)
	if err != nil {
		return pipeline.Options{}, err
	}
	overlay, err := render.ParseColor(c.OverlayColor)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Params:         c.Params(),
		Format:         format,
		JPEGQuality:    c.JPEGQuality,
		MaxUploadBytes: c.MaxUploadMB << 20,
		OverlayColor:   overlay,
		Logger:         log,
		Timing:         timing.NewTracker(0),
		Memory:         memory.NewTracker(c.MaxMemoryMB << 20),
	}, nil
}
