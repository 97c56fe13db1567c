package domain

import (
	"fmt"
	"image"
	"strings"
	"time"
)

// FacingMode определяет, какую физическую камеру запрашивать
type FacingMode string

const (
	FacingFront FacingMode = "front" // камера, направленная на пользователя
	FacingBack  FacingMode = "back"  // основная камера, направленная от пользователя
)

// ParseFacingMode разбирает режим камеры, принимая также браузерные имена user/environment
func ParseFacingMode(s string) (FacingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "front", "user":
		return FacingFront, nil
	case "back", "rear", "environment":
		return FacingBack, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFacing, s)
}

// Valid сообщает, является ли режим одним из известных
func (f FacingMode) Valid() bool {
	return f == FacingFront || f == FacingBack
}

// Toggle возвращает противоположный режим
func (f FacingMode) Toggle() FacingMode {
	if f == FacingBack {
		return FacingFront
	}
	return FacingBack
}

// CaptureState состояние контроллера захвата
type CaptureState int

const (
	StateIdle CaptureState = iota
	StateRequesting
	StateStreaming
	StateError
)

func (s CaptureState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("CaptureState(%d)", int(s))
}

// MarshalText нужен для JSON-ответов HTTP API
func (s CaptureState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CaptureStatus снимок состояния контроллера захвата
type CaptureStatus struct {
	State        CaptureState `json:"state"`
	Facing       FacingMode   `json:"facing"`
	Error        string       `json:"error,omitempty"` // человекочитаемое сообщение в состоянии Error
	ActiveTracks int          `json:"active_tracks"`
	Frames       int          `json:"frames"` // кадров отдано в превью за текущую сессию
}

// VideoFrame представляет кадр живого превью
type VideoFrame struct {
	Image     image.Image // Декодированный кадр в нативном разрешении
	Number    int         // Номер кадра в рамках сессии
	Facing    FacingMode
	Timestamp time.Time
}

// VideoDevice представляет устройство захвата видео
type VideoDevice struct {
	ID     string     `json:"id"`               // Уникальный идентификатор устройства
	Label  string     `json:"label"`            // Человекочитаемое имя устройства
	Kind   string     `json:"kind"`             // Тип устройства
	Facing FacingMode `json:"facing,omitempty"` // Предполагаемое направление камеры, пусто если неизвестно
}

// StreamConstraints содержит параметры запроса видеопотока
type StreamConstraints struct {
	Facing      FacingMode
	IdealWidth  int     // Желаемая ширина, не строгое требование
	IdealHeight int     // Желаемая высота, не строгое требование
	FrameRate   float64 // Желаемая частота кадров
}

// MediaStream одна открытая сессия устройства захвата.
// Stop останавливает все треки и должен быть идемпотентным.
type MediaStream interface {
	ID() string
	Facing() FacingMode
	// ActiveTracks возвращает число треков, которые еще не остановлены
	ActiveTracks() int
	// ReadFrame блокируется до следующего кадра; после Stop возвращает ошибку
	ReadFrame() (image.Image, error)
	// OnEnded регистрирует обработчик аварийного завершения потока (устройство отключено)
	OnEnded(handler func(error))
	Stop() error
}
