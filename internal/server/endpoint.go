package server

import (
	"context"
	"errors"
	"time"

	"medisense/internal/logger"
	"medisense/internal/pipeline"

	"github.com/go-kit/kit/endpoint"
)

// Processor is the part of pipeline.Service the transport needs.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
}

func MakePredictEndpoint(svc Processor) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(predictRequest)
		return svc.Process(ctx, pipeline.Request{
			Image:   req.file,
			Stage:   req.stage,
			Overlay: req.overlay,
			Preview: req.preview,
		})
	}
}

// CreateTimeoutMiddleware bounds the whole request, queueing included.
func CreateTimeoutMiddleware(timeout time.Duration) endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (interface{}, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, request)
		}
	}
}

// CreateConcurrencyMiddleware lets at most limit requests into next at once.
// Waiting requests give up when their context ends.
func CreateConcurrencyMiddleware(limit int) endpoint.Middleware {
	slots := make(chan struct{}, limit)
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (interface{}, error) {
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			defer func() { <-slots }()
			return next(ctx, request)
		}
	}
}

func CreateLoggingMiddleware(log logger.Logger) endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (response interface{}, err error) {
			defer func(begin time.Time) {
				fields := map[string]interface{}{
					"path":       pathFromContext(ctx),
					"latency_ms": time.Since(begin).Milliseconds(),
				}
				if req, ok := request.(predictRequest); ok {
					fields["stage"] = req.stage
					fields["overlay"] = req.overlay
				}
				if err == nil {
					log.Info("HTTPServer", "request served", fields)
					return
				}
				errorCode := DecodeErrorCode(err)
				fields["status"] = errorCode.HTTPCode
				if errorCode.HTTPCode >= 500 && !errors.Is(err, context.DeadlineExceeded) {
					log.Error("HTTPServer", err, fields)
				} else {
					fields["error"] = err.Error()
					log.Warning("HTTPServer", "request rejected", fields)
				}
			}(time.Now())
			return next(ctx, request)
		}
	}
}
