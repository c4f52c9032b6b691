package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"medisense/internal/pipeline"
)

// multipart headers and boundaries on top of the image bytes
const multipartOverhead = 1 << 20

type predictRequest struct {
	file    io.Reader
	stage   string
	overlay bool
	preview bool
}

func makeDecodePredictRequest(maxUploadBytes int64) func(context.Context, *http.Request) (interface{}, error) {
	return func(_ context.Context, r *http.Request) (interface{}, error) {
		if maxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes+multipartOverhead)
		}

		query := r.URL.Query()
		overlay, err := parseFlag(query.Get("overlay"))
		if err != nil {
			return nil, fmt.Errorf("%w: overlay: %v", pipeline.ErrInvalidRequest, err)
		}
		preview, err := parseFlag(query.Get("preview"))
		if err != nil {
			return nil, fmt.Errorf("%w: preview: %v", pipeline.ErrInvalidRequest, err)
		}

		reader, err := r.MultipartReader()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pipeline.ErrInvalidRequest, err)
		}
		file, err := findPart(reader, "file")
		if err != nil {
			return nil, err
		}

		return predictRequest{
			file:    file,
			stage:   query.Get("stage"),
			overlay: overlay,
			preview: preview,
		}, nil
	}
}

// findPart streams to the named form field. The part stays readable until the
// next call on reader, so the endpoint consumes it before the handler returns.
func findPart(reader *multipart.Reader, name string) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: form field %q is missing", pipeline.ErrInvalidRequest, name)
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, fmt.Errorf("%w: %v", pipeline.ErrTooLarge, err)
			}
			return nil, fmt.Errorf("%w: %v", pipeline.ErrInvalidRequest, err)
		}
		if part.FormName() == name {
			return part, nil
		}
		part.Close()
	}
}

func parseFlag(value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	return strconv.ParseBool(value)
}

func encodePredictResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	resp, ok := response.(*pipeline.Response)
	if !ok {
		return fmt.Errorf("unexpected response type %T", response)
	}

	header := w.Header()
	header.Set("Content-Type", resp.ContentType)
	header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	header.Set("X-Vein-Segments", strconv.Itoa(resp.Metrics.VeinSegments))
	header.Set("X-Skeleton-Pixels", strconv.Itoa(resp.Metrics.SkeletonPixels))
	header.Set("X-Hand-Coverage", strconv.FormatFloat(resp.Metrics.HandCoverage, 'f', 4, 64))
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(resp.Body)
	return err
}
