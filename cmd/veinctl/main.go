// Command veinctl runs the vein pipeline on one photograph and writes the
// skeleton, optionally dumping every intermediate mask.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"medisense/internal/logger"
	"medisense/internal/opencv/conversion"
	"medisense/internal/pipeline"
	"medisense/internal/render"
	"medisense/internal/vein"

	"github.com/anthonynsimon/bild/imgio"
)

const (
	exitOK = iota
	exitFailure
	exitDecode
	exitNoRegion
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	defaults := vein.DefaultParams()

	fs := flag.NewFlagSet("veinctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "", "input photograph")
	out := fs.String("out", "skeleton.png", "output image (.png or .jpg)")
	stagesDir := fs.String("stages", "", "directory for per-stage PNG dumps")
	minArea := fs.Float64("min-area", defaults.MinVeinArea, "minimum enclosed area of a vein region")
	block := fs.Int("block", defaults.BlockSize, "adaptive threshold block size (odd, >= 3)")
	offset := fs.Float64("offset", defaults.ThresholdOffset, "adaptive threshold offset")
	overlay := fs.String("overlay", "", "paint the skeleton over the photo in this colour (#rrggbb)")
	preview := fs.Bool("preview", false, "fit the output into a 256x256 box")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}
	if *in == "" {
		fmt.Fprintln(stderr, "usage: veinctl -in photo.jpg [-out skeleton.png] [-stages dir] [-min-area N] [-block N] [-offset N]")
		return exitFailure
	}

	level := logger.InfoLevel
	if *verbose {
		level = logger.DebugLevel
	}
	log := logger.NewZerolog(stderr, level)

	params := defaults
	params.MinVeinArea = *minArea
	params.BlockSize = *block
	params.ThresholdOffset = *offset

	err := process(log, options{
		in:        *in,
		out:       *out,
		stagesDir: *stagesDir,
		params:    params,
		overlay:   *overlay,
		preview:   *preview,
	})
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, vein.ErrDecode):
		log.Error("veinctl", err, map[string]interface{}{"input": *in})
		return exitDecode
	case errors.Is(err, vein.ErrNoRegionFound):
		log.Error("veinctl", err, map[string]interface{}{"input": *in})
		return exitNoRegion
	default:
		log.Error("veinctl", err, nil)
		return exitFailure
	}
}

type options struct {
	in        string
	out       string
	stagesDir string
	params    vein.Params
	overlay   string
	preview   bool
}

func process(log logger.Logger, opts options) error {
	p, err := vein.NewPipeline(opts.params)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(opts.in)
	if err != nil {
		return err
	}
	input, err := pipeline.NewLoader(nil, log, nil, 0).LoadFromBytes(data)
	if err != nil {
		return err
	}
	defer input.Close()

	result, err := p.Run(context.Background(), input.Mat)
	if err != nil {
		return err
	}
	defer result.Close()

	if opts.stagesDir != "" {
		if err := dumpStages(result, opts.stagesDir); err != nil {
			return err
		}
	}

	img, err := conversion.MatToImage(result.Skeleton)
	if err != nil {
		return err
	}
	if opts.overlay != "" {
		tint, err := render.ParseColor(opts.overlay)
		if err != nil {
			return err
		}
		mask, _ := img.(*image.Gray)
		if img, err = render.Overlay(input.Image, mask, tint, 1); err != nil {
			return err
		}
	}
	if opts.preview {
		img = render.Thumbnail(img, render.PreviewSize)
	}

	encoder, err := encoderFor(opts.out)
	if err != nil {
		return err
	}
	if err := imgio.Save(opts.out, img, encoder); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.out, err)
	}

	metrics, err := pipeline.ComputeMetrics(result)
	if err != nil {
		return err
	}
	fields := metrics.Fields()
	fields["output"] = opts.out
	log.Info("veinctl", "skeleton written", fields)
	return nil
}

func dumpStages(result *vein.Result, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, name := range vein.StageNames() {
		mat, err := result.Stage(name)
		if err != nil {
			return err
		}
		img, err := conversion.MatToImage(mat)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, name+".png")
		if err := imgio.Save(path, img, imgio.PNGEncoder()); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}

func encoderFor(path string) (imgio.Encoder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return imgio.PNGEncoder(), nil
	case ".jpg", ".jpeg":
		return imgio.JPEGEncoder(95), nil
	default:
		return nil, fmt.Errorf("unsupported output extension %q", filepath.Ext(path))
	}
}
