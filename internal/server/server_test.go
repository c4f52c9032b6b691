package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"medisense/internal/pipeline"
	"medisense/internal/vein"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	mu   sync.Mutex
	got  []pipeline.Request
	body []byte
	fn   func(ctx context.Context) (*pipeline.Response, error)
}

func (f *fakeProcessor) Process(ctx context.Context, req pipeline.Request) (*pipeline.Response, error) {
	data, err := io.ReadAll(req.Image)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.got = append(f.got, req)
	f.body = data
	f.mu.Unlock()
	return f.fn(ctx)
}

func pngResponse(ctx context.Context) (*pipeline.Response, error) {
	return &pipeline.Response{
		Body:        []byte("png-bytes"),
		ContentType: "image/png",
		Metrics:     pipeline.Metrics{VeinSegments: 2, HandCoverage: 0.25},
	}, nil
}

func failWith(err error) func(context.Context) (*pipeline.Response, error) {
	return func(context.Context) (*pipeline.Response, error) { return nil, err }
}

func uploadRequest(t *testing.T, target, field string, payload []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("note", "left hand"))
	part, err := writer.CreateFormFile(field, "hand.png")
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorCode {
	t.Helper()
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	var errorCode ErrorCode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errorCode))
	return errorCode
}

func TestHandler(t *testing.T) {
	testCases := []struct {
		scenario string
		fn       func(t *testing.T)
	}{
		{
			scenario: "health check",
			fn: func(t *testing.T) {
				handler := NewHandler(&fakeProcessor{fn: pngResponse}, Options{})
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

				assert.Equal(t, http.StatusOK, rec.Code)
				assert.Equal(t, "OK", rec.Body.String())
			},
		},
		{
			scenario: "upload reaches the processor with query options",
			fn: func(t *testing.T) {
				fake := &fakeProcessor{fn: pngResponse}
				handler := NewHandler(fake, Options{})
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, uploadRequest(t, "/predict?overlay=1&stage=veins&preview=true", "file", []byte("pixels")))

				require.Equal(t, http.StatusOK, rec.Code)
				assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
				assert.Equal(t, "2", rec.Header().Get("X-Vein-Segments"))
				assert.Equal(t, "0.2500", rec.Header().Get("X-Hand-Coverage"))
				assert.Equal(t, "png-bytes", rec.Body.String())

				require.Len(t, fake.got, 1)
				assert.Equal(t, "veins", fake.got[0].Stage)
				assert.True(t, fake.got[0].Overlay)
				assert.True(t, fake.got[0].Preview)
				assert.Equal(t, []byte("pixels"), fake.body)
			},
		},
		{
			scenario: "missing file field",
			fn: func(t *testing.T) {
				fake := &fakeProcessor{fn: pngResponse}
				rec := httptest.NewRecorder()
				NewHandler(fake, Options{}).ServeHTTP(rec, uploadRequest(t, "/predict", "image", []byte("pixels")))

				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, "invalid_request", decodeError(t, rec).Code)
				assert.Empty(t, fake.got)
			},
		},
		{
			scenario: "body that is not multipart",
			fn: func(t *testing.T) {
				req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("raw"))
				req.Header.Set("Content-Type", "image/png")
				rec := httptest.NewRecorder()
				NewHandler(&fakeProcessor{fn: pngResponse}, Options{}).ServeHTTP(rec, req)

				assert.Equal(t, http.StatusBadRequest, rec.Code)
			},
		},
		{
			scenario: "malformed flag",
			fn: func(t *testing.T) {
				rec := httptest.NewRecorder()
				NewHandler(&fakeProcessor{fn: pngResponse}, Options{}).
					ServeHTTP(rec, uploadRequest(t, "/predict?overlay=maybe", "file", []byte("x")))

				assert.Equal(t, http.StatusBadRequest, rec.Code)
			},
		},
		{
			scenario: "wrong method",
			fn: func(t *testing.T) {
				rec := httptest.NewRecorder()
				NewHandler(&fakeProcessor{fn: pngResponse}, Options{}).
					ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/predict", nil))

				assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			},
		},
		{
			scenario: "metrics are exposed after a request",
			fn: func(t *testing.T) {
				handler := NewHandler(&fakeProcessor{fn: pngResponse}, Options{})
				handler.ServeHTTP(httptest.NewRecorder(), uploadRequest(t, "/predict", "file", []byte("x")))

				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
				assert.Equal(t, http.StatusOK, rec.Code)
				assert.Contains(t, rec.Body.String(), `medisense_vein_request_count{error="false",method="/predict"} 1`)
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.scenario, tc.fn)
	}
}

func TestErrorMapping(t *testing.T) {
	testCases := []struct {
		scenario string
		err      error
		status   int
		code     string
	}{
		{"decode", fmt.Errorf("%w: bad header", vein.ErrDecode), http.StatusBadRequest, "decode_failed"},
		{"invalid stage", fmt.Errorf("%w: unknown stage", pipeline.ErrInvalidRequest), http.StatusBadRequest, "invalid_request"},
		{"no hand", vein.ErrNoRegionFound, http.StatusUnprocessableEntity, "no_region"},
		{"too large", fmt.Errorf("%w: more than 10 bytes", pipeline.ErrTooLarge), http.StatusRequestEntityTooLarge, "too_large"},
		{"memory", pipeline.ErrMemoryLimit, http.StatusServiceUnavailable, "memory_limit"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"anything else", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHandler(&fakeProcessor{fn: failWith(tc.err)}, Options{}).
				ServeHTTP(rec, uploadRequest(t, "/predict", "file", []byte("x")))

			assert.Equal(t, tc.status, rec.Code)
			errorCode := decodeError(t, rec)
			assert.Equal(t, tc.code, errorCode.Code)
			assert.NotEmpty(t, errorCode.Message)
			assert.NotContains(t, rec.Body.String(), "boom")
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	slow := &fakeProcessor{fn: func(ctx context.Context) (*pipeline.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	rec := httptest.NewRecorder()
	NewHandler(slow, Options{RequestTimeout: 20 * time.Millisecond}).
		ServeHTTP(rec, uploadRequest(t, "/predict", "file", []byte("x")))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestConcurrencyMiddleware(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	limited := CreateConcurrencyMiddleware(1)(func(ctx context.Context, request interface{}) (interface{}, error) {
		entered <- struct{}{}
		<-release
		return "done", nil
	})

	first := make(chan error, 1)
	go func() {
		_, err := limited(context.Background(), nil)
		first <- err
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := limited(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-first)

	go func() { <-entered }()
	resp, err := limited(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "done", resp)
}

func TestPredictEndToEnd(t *testing.T) {
	svc, err := pipeline.NewService(pipeline.Options{Params: vein.DefaultParams(), MaxUploadBytes: 1 << 20})
	require.NoError(t, err)
	handler := NewHandler(svc, Options{MaxUploadBytes: 1 << 20})

	img := image.NewGray(image.Rect(0, 0, 400, 400))
	for y := 40; y <= 360; y++ {
		for x := 40; x <= 360; x++ {
			v := uint8(200)
			if y >= 198 && y <= 201 && x >= 100 && x <= 300 {
				v = 60
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var payload bytes.Buffer
	require.NoError(t, imaging.Encode(&payload, img, imaging.PNG))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, uploadRequest(t, "/predict", "file", payload.Bytes()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-Vein-Segments"))

	skeleton, err := imaging.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 400, skeleton.Bounds().Dx())

	blank := image.NewGray(image.Rect(0, 0, 32, 32))
	payload.Reset()
	require.NoError(t, imaging.Encode(&payload, blank, imaging.PNG))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, uploadRequest(t, "/predict", "file", payload.Bytes()))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, uploadRequest(t, "/predict", "file", make([]byte, 2<<20)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
