package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"strings"
	"testing"

	"medisense/internal/opencv/memory"
	"medisense/internal/timing"
	"medisense/internal/vein"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// handPhoto is a bright square on black crossed by one dark line.
func handPhoto(t *testing.T) []byte {
	t.Helper()
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
	return encode(t, img, imaging.PNG)
}

func encode(t *testing.T, img image.Image, format imaging.Format) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}

func newService(t *testing.T, format Format, mem *memory.Tracker) *Service {
	t.Helper()
	svc, err := NewService(Options{
		Params:         vein.DefaultParams(),
		Format:         format,
		MaxUploadBytes: 4 << 20,
		OverlayColor:   colorful.Color{R: 1},
		Memory:         mem,
	})
	require.NoError(t, err)
	return svc
}

func TestServiceProcess(t *testing.T) {
	testCases := []struct {
		scenario string
		fn       func(t *testing.T)
	}{
		{
			scenario: "skeleton is returned as png",
			fn: func(t *testing.T) {
				mem := memory.NewTracker(0)
				svc := newService(t, FormatPNG, mem)

				resp, err := svc.Process(context.Background(), Request{Image: bytes.NewReader(handPhoto(t))})
				require.NoError(t, err)
				assert.Equal(t, "image/png", resp.ContentType)
				assert.Equal(t, 400, resp.Width)
				assert.Equal(t, 1, resp.Metrics.VeinSegments)
				assert.Positive(t, resp.Metrics.SkeletonPixels)
				assert.Less(t, resp.Metrics.SkeletonPixels, resp.Metrics.VeinPixels)
				assert.Contains(t, resp.Timings, vein.StageSkeleton)

				decoded, err := imaging.Decode(bytes.NewReader(resp.Body))
				require.NoError(t, err)
				assert.Equal(t, image.Rect(0, 0, 400, 400), decoded.Bounds())
				assert.Zero(t, mem.InUse(), "all native buffers must be released")
				assert.Equal(t, 1, svc.Timing().Summarize(vein.StageVeins).Count)
			},
		},
		{
			scenario: "overlay preview as jpeg",
			fn: func(t *testing.T) {
				svc := newService(t, FormatJPEG, nil)

				resp, err := svc.Process(context.Background(), Request{
					Image:   bytes.NewReader(handPhoto(t)),
					Stage:   vein.StageVeins,
					Overlay: true,
					Preview: true,
				})
				require.NoError(t, err)
				assert.Equal(t, "image/jpeg", resp.ContentType)
				assert.Equal(t, 256, resp.Width)
				assert.Equal(t, 256, resp.Height)
			},
		},
		{
			scenario: "blank frame reports no region",
			fn: func(t *testing.T) {
				svc := newService(t, FormatPNG, nil)
				blank := encode(t, image.NewGray(image.Rect(0, 0, 64, 64)), imaging.PNG)

				_, err := svc.Process(context.Background(), Request{Image: bytes.NewReader(blank)})
				assert.ErrorIs(t, err, vein.ErrNoRegionFound)
			},
		},
		{
			scenario: "garbage is a decode error",
			fn: func(t *testing.T) {
				svc := newService(t, FormatPNG, nil)
				_, err := svc.Process(context.Background(), Request{Image: strings.NewReader("definitely not pixels")})
				assert.ErrorIs(t, err, vein.ErrDecode)
			},
		},
		{
			scenario: "bad requests are rejected before decoding",
			fn: func(t *testing.T) {
				svc := newService(t, FormatPNG, nil)
				_, err := svc.Process(context.Background(), Request{})
				assert.ErrorIs(t, err, ErrInvalidRequest)

				_, err = svc.Process(context.Background(), Request{Image: strings.NewReader(""), Stage: "bones"})
				assert.ErrorIs(t, err, ErrInvalidRequest)

				_, err = svc.Process(context.Background(), Request{
					Image:   bytes.NewReader(handPhoto(t)),
					Stage:   vein.StageNormalize,
					Overlay: true,
				})
				assert.ErrorIs(t, err, ErrInvalidRequest, "the intensity image is not a mask")
			},
		},
		{
			scenario: "invalid parameters fail construction",
			fn: func(t *testing.T) {
				params := vein.DefaultParams()
				params.BlockSize = 2
				_, err := NewService(Options{Params: params})
				assert.Error(t, err)
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.scenario, tc.fn)
	}
}

func TestLoader(t *testing.T) {
	testCases := []struct {
		scenario string
		fn       func(t *testing.T)
	}{
		{
			scenario: "upload limit",
			fn: func(t *testing.T) {
				loader := NewLoader(nil, nil, nil, 10)
				_, err := loader.Load(bytes.NewReader(make([]byte, 11)))
				assert.ErrorIs(t, err, ErrTooLarge)
			},
		},
		{
			scenario: "memory budget",
			fn: func(t *testing.T) {
				loader := NewLoader(memory.NewTracker(1000), nil, nil, 0)
				data := encode(t, image.NewGray(image.Rect(0, 0, 100, 100)), imaging.PNG)
				_, err := loader.LoadFromBytes(data)
				assert.ErrorIs(t, err, ErrMemoryLimit)
			},
		},
		{
			scenario: "decoded image is tracked until closed",
			fn: func(t *testing.T) {
				mem := memory.NewTracker(0)
				loader := NewLoader(mem, nil, nil, 0)
				src := image.NewNRGBA(image.Rect(0, 0, 6, 4))
				data := encode(t, src, imaging.JPEG)

				loaded, err := loader.LoadFromBytes(data)
				require.NoError(t, err)
				assert.Equal(t, "jpeg", loaded.Format)
				assert.Equal(t, 6, loaded.Width)
				assert.Equal(t, 4, loaded.Height)
				assert.Equal(t, 3, loaded.Channels)
				assert.Equal(t, int64(72), mem.InUse())

				loaded.Close()
				assert.Zero(t, mem.InUse())
			},
		},
		{
			scenario: "pending reservations count against the budget",
			fn: func(t *testing.T) {
				mem := memory.NewTracker(100*100*7 + 10)
				loader := NewLoader(mem, nil, nil, 0)
				data := encode(t, image.NewGray(image.Rect(0, 0, 100, 100)), imaging.PNG)

				release, err := mem.Reserve(100)
				require.NoError(t, err)
				_, err = loader.LoadFromBytes(data)
				assert.ErrorIs(t, err, ErrMemoryLimit)

				release()
				loaded, err := loader.LoadFromBytes(data)
				require.NoError(t, err)
				defer loaded.Close()
				assert.Zero(t, mem.GetStats().Reserved, "reservation released once the Mat is tracked")
			},
		},
		{
			scenario: "failed decode releases its reservation and is timed",
			fn: func(t *testing.T) {
				mem := memory.NewTracker(1 << 20)
				timer := timing.NewTracker(0)
				loader := NewLoader(mem, nil, timer, 0)
				data := encode(t, image.NewGray(image.Rect(0, 0, 50, 50)), imaging.PNG)

				// header intact, pixel data cut off
				_, err := loader.LoadFromBytes(data[:40])
				assert.ErrorIs(t, err, vein.ErrDecode)
				assert.Zero(t, mem.GetStats().Reserved)
				assert.Zero(t, mem.InUse())
				assert.Equal(t, 1, timer.Summarize("decode").Count)
			},
		},
		{
			scenario: "unknown format",
			fn: func(t *testing.T) {
				_, err := NewLoader(nil, nil, nil, 0).LoadFromBytes([]byte("GIF89a"))
				assert.ErrorIs(t, err, vein.ErrDecode)
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.scenario, tc.fn)
	}
}

func TestFormatAndSaver(t *testing.T) {
	for input, want := range map[string]Format{"": FormatPNG, "PNG": FormatPNG, "jpg": FormatJPEG, "jpeg": FormatJPEG} {
		got, err := ParseFormat(input)
		require.NoError(t, err)
		assert.Equal(t, want, got, input)
	}
	_, err := ParseFormat("bmp")
	assert.Error(t, err)
	assert.Equal(t, ".jpg", FormatJPEG.Extension())

	mask := image.NewGray(image.Rect(0, 0, 3, 3))
	mask.SetGray(1, 1, color.Gray{Y: 255})

	var buf bytes.Buffer
	require.NoError(t, NewSaver(FormatPNG, 0, nil, nil).Encode(&buf, mask))
	decoded, err := imaging.Decode(&buf)
	require.NoError(t, err)
	r, _, _, _ := decoded.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)

	assert.Error(t, NewSaver(FormatPNG, 0, nil, nil).Encode(&buf, nil))
}
