package application

import (
	"context"
	"image"

	"photo-studio/internal/domain"
)

// MediaDevices интерфейс доступа к устройствам захвата
type MediaDevices interface {
	// ListDevices возвращает список доступных устройств захвата
	ListDevices() ([]domain.VideoDevice, error)

	// RequestStream открывает поток камеры по ограничениям.
	// Запрос нельзя отменить после начала: он завершается выдачей потока или отказом.
	RequestStream(ctx context.Context, constraints domain.StreamConstraints) (domain.MediaStream, error)
}

// FrameDrawer рисует текущий кадр потока в растр нативного размера
type FrameDrawer interface {
	DrawFrame(ctx context.Context, stream domain.MediaStream) (*image.RGBA, error)
}

// ImageEncoder кодирует растр в сжатое изображение, quality в диапазоне (0,1]
type ImageEncoder interface {
	Encode(img image.Image, quality float64) (domain.ImageHandle, error)
}

// PreviewSink получает кадры живого превью.
// Вызывается из горутины сессии и не должен синхронно вызывать методы контроллера.
type PreviewSink interface {
	PublishFrame(frame domain.VideoFrame)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

type nopSink struct{}

func (nopSink) PublishFrame(domain.VideoFrame) {}
