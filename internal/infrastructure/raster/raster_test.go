package raster

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photo-studio/internal/domain"
)

type stubStream struct {
	frame image.Image
	err   error
	block chan struct{}
}

func (s *stubStream) ID() string                { return "stub" }
func (s *stubStream) Facing() domain.FacingMode { return domain.FacingFront }
func (s *stubStream) ActiveTracks() int         { return 1 }
func (s *stubStream) OnEnded(func(error))       {}
func (s *stubStream) Stop() error               { return nil }

func (s *stubStream) ReadFrame() (image.Image, error) {
	if s.block != nil {
		<-s.block
	}
	return s.frame, s.err
}

func TestFrameDrawer_NativeSize(t *testing.T) {
	// Кадр с ненулевым началом координат, как у подызображения
	src := image.NewYCbCr(image.Rect(10, 20, 10+64, 20+36), image.YCbCrSubsampleRatio420)
	for i := range src.Y {
		src.Y[i] = 200
	}
	for i := range src.Cb {
		src.Cb[i] = 128
		src.Cr[i] = 128
	}

	surface, err := NewFrameDrawer().DrawFrame(context.Background(), &stubStream{frame: src})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 36), surface.Bounds())

	r, g, b, _ := surface.At(5, 5).RGBA()
	assert.Greater(t, r>>8, uint32(150))
	assert.Greater(t, g>>8, uint32(150))
	assert.Greater(t, b>>8, uint32(150))
}

func TestFrameDrawer_ReadError(t *testing.T) {
	_, err := NewFrameDrawer().DrawFrame(context.Background(), &stubStream{err: errors.New("eof")})
	assert.EqualError(t, err, "eof")
}

func TestFrameDrawer_ContextCanceled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFrameDrawer().DrawFrame(ctx, &stubStream{block: block, frame: image.NewRGBA(image.Rect(0, 0, 1, 1))})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJPEGEncoder(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for x := 0; x < 32; x++ {
		img.Set(x, 3, color.RGBA{R: 255, A: 255})
	}

	h, err := NewJPEGEncoder().Encode(img, 0.8)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", h.MIMEType())
	assert.Equal(t, 32, h.Width())
	assert.Equal(t, 24, h.Height())
}

func TestJPEGQuality(t *testing.T) {
	assert.Equal(t, 80, JPEGQuality(0.8))
	assert.Equal(t, 100, JPEGQuality(1.5))
	assert.Equal(t, 1, JPEGQuality(0.001))
	assert.Equal(t, 75, JPEGQuality(0))
}
