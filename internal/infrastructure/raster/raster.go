// Package raster переносит кадры камеры в растр и кодирует снимки.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"golang.org/x/image/draw"

	"photo-studio/internal/domain"
)

// FrameDrawer рисует текущий кадр потока в RGBA-поверхность нативного размера,
// как drawImage(video) на canvas с размерами videoWidth x videoHeight.
type FrameDrawer struct{}

func NewFrameDrawer() *FrameDrawer {
	return &FrameDrawer{}
}

type frameResult struct {
	img image.Image
	err error
}

// DrawFrame ждет следующий кадр потока или отмены ctx
func (d *FrameDrawer) DrawFrame(ctx context.Context, stream domain.MediaStream) (*image.RGBA, error) {
	result := make(chan frameResult, 1)
	go func() {
		img, err := stream.ReadFrame()
		result <- frameResult{img: img, err: err}
	}()

	var frame frameResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame = <-result:
	}
	if frame.err != nil {
		return nil, frame.err
	}

	bounds := frame.img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("пустой кадр %v", bounds)
	}
	surface := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(surface, surface.Bounds(), frame.img, bounds.Min, draw.Src)
	return surface, nil
}

// JPEGEncoder кодирует снимки в JPEG, как canvas.toDataURL("image/jpeg", quality)
type JPEGEncoder struct{}

func NewJPEGEncoder() *JPEGEncoder {
	return &JPEGEncoder{}
}

// Encode quality задается в диапазоне (0,1]
func (e *JPEGEncoder) Encode(img image.Image, quality float64) (domain.ImageHandle, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality(quality)}); err != nil {
		return domain.ImageHandle{}, fmt.Errorf("кодирование JPEG: %w", err)
	}
	return domain.NewImageHandle("image/jpeg", buf.Bytes())
}

// JPEGQuality переводит качество из (0,1] в шкалу 1..100 пакета image/jpeg
func JPEGQuality(quality float64) int {
	if math.IsNaN(quality) || quality <= 0 {
		return jpeg.DefaultQuality
	}
	return int(min(100, max(1, math.Round(quality*100))))
}
