package render

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
	"time"

	"photo-studio/internal/domain"
)

// Format формат выгрузки результата
type Format string

const (
	FormatJPG Format = "jpg"
	FormatPNG Format = "png"
)

const (
	DefaultExportQuality = 90
	MinExportQuality     = 60
	MaxExportQuality     = 100
)

// ParseFormat принимает jpg, jpeg и png в любом регистре
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jpg", "jpeg":
		return FormatJPG, nil
	case "png":
		return FormatPNG, nil
	}
	return "", fmt.Errorf("%w: формат %q", domain.ErrUnsupportedImage, s)
}

// MIMEType MIME-тип формата
func (f Format) MIMEType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// ExportOptions параметры выгрузки
type ExportOptions struct {
	Format  Format
	Quality int // 60..100, только для JPG; 0 означает значение по умолчанию
}

// ExportQuality приводит качество к допустимому диапазону
func ExportQuality(q int) int {
	if q == 0 {
		return DefaultExportQuality
	}
	return min(MaxExportQuality, max(MinExportQuality, q))
}

// Export кодирует растр в выбранный формат
func Export(img image.Image, opts ExportOptions) (domain.ImageHandle, error) {
	var buf bytes.Buffer

	switch opts.Format {
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return domain.ImageHandle{}, fmt.Errorf("кодирование PNG: %w", err)
		}
	case FormatJPG, "":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: ExportQuality(opts.Quality)}); err != nil {
			return domain.ImageHandle{}, fmt.Errorf("кодирование JPEG: %w", err)
		}
	default:
		return domain.ImageHandle{}, fmt.Errorf("%w: формат %q", domain.ErrUnsupportedImage, opts.Format)
	}

	return domain.NewImageHandle(opts.Format.MIMEType(), buf.Bytes())
}

// FileName имя файла для скачивания
func FileName(prefix string, f Format, now time.Time) string {
	if f == "" {
		f = FormatJPG
	}
	return fmt.Sprintf("%s-%d.%s", prefix, now.UnixMilli(), f)
}
