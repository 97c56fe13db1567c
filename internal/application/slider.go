package application

import (
	"sync"

	"photo-studio/internal/domain"
)

// ComparisonSlider состояние сравнения "до/после" с перетаскиваемым разделителем.
// Мышь и касания проходят через один и тот же HandlePointer.
type ComparisonSlider struct {
	mu       sync.Mutex
	before   domain.ImageHandle
	after    domain.ImageHandle
	zoom     float64
	initial  float64
	position float64
	dragging bool
	bounds   domain.Bounds
	onChange func(position float64)
}

// SliderOption настраивает ComparisonSlider
type SliderOption func(*ComparisonSlider)

// WithZoom задает масштаб в процентах, по умолчанию 100
func WithZoom(percent float64) SliderOption {
	return func(s *ComparisonSlider) {
		s.zoom = domain.ClampZoom(percent)
	}
}

// WithInitialPosition задает стартовую позицию разделителя, по умолчанию 50
func WithInitialPosition(position float64) SliderOption {
	return func(s *ComparisonSlider) {
		s.initial = domain.ClampPosition(position)
	}
}

// WithPositionListener подписывает fn на изменения позиции.
// fn вызывается вне блокировки слайдера.
func WithPositionListener(fn func(position float64)) SliderOption {
	return func(s *ComparisonSlider) {
		s.onChange = fn
	}
}

// NewComparisonSlider создает слайдер для двух изображений
func NewComparisonSlider(before, after domain.ImageHandle, opts ...SliderOption) *ComparisonSlider {
	s := &ComparisonSlider{
		before:  before,
		after:   after,
		zoom:    domain.DefaultZoom,
		initial: domain.DefaultPosition,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.position = s.initial
	return s
}

// SetBounds обновляет геометрию контейнера после раскладки или ресайза
func (s *ComparisonSlider) SetBounds(b domain.Bounds) {
	s.mu.Lock()
	s.bounds = b
	s.mu.Unlock()
}

// Bounds возвращает текущую геометрию контейнера
func (s *ComparisonSlider) Bounds() domain.Bounds {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds
}

// HandlePointer обрабатывает событие мыши или касания.
// Down начинает перетаскивание, Move во время перетаскивания двигает разделитель,
// Up и Leave его завершают. Возвращает true, если позиция изменилась.
func (s *ComparisonSlider) HandlePointer(kind domain.PointerKind, ev domain.PointerEvent) bool {
	s.mu.Lock()
	switch kind {
	case domain.PointerDown:
		s.dragging = true
		s.mu.Unlock()
		return false
	case domain.PointerUp, domain.PointerLeave:
		s.dragging = false
		s.mu.Unlock()
		return false
	case domain.PointerMove:
	default:
		s.mu.Unlock()
		return false
	}

	if !s.dragging || ev == nil {
		s.mu.Unlock()
		return false
	}
	x, ok := ev.PointerX()
	if !ok {
		s.mu.Unlock()
		return false
	}
	position, ok := domain.PositionAt(x, s.bounds)
	if !ok {
		// Контейнер нулевой ширины: позиция не меняется
		s.mu.Unlock()
		return false
	}
	return s.setPositionLocked(position)
}

// Nudge сдвигает разделитель на delta процентов, как стрелки клавиатуры
func (s *ComparisonSlider) Nudge(delta float64) bool {
	s.mu.Lock()
	return s.setPositionLocked(domain.ClampPosition(s.position + delta))
}

// Reset возвращает разделитель в стартовую позицию и прекращает перетаскивание
func (s *ComparisonSlider) Reset() bool {
	s.mu.Lock()
	s.dragging = false
	return s.setPositionLocked(s.initial)
}

// setPositionLocked вызывается под s.mu и снимает блокировку
func (s *ComparisonSlider) setPositionLocked(position float64) bool {
	changed := s.position != position
	s.position = position
	callback := s.onChange
	s.mu.Unlock()

	if changed && callback != nil {
		callback(position)
	}
	return changed
}

// ZoomIn увеличивает масштаб на 25%, не выше 200%
func (s *ComparisonSlider) ZoomIn() float64 {
	return s.setZoom(func(z float64) float64 { return z + domain.ZoomStep })
}

// ZoomOut уменьшает масштаб на 25%, не ниже 50%
func (s *ComparisonSlider) ZoomOut() float64 {
	return s.setZoom(func(z float64) float64 { return z - domain.ZoomStep })
}

// ResetZoom возвращает масштаб 100%
func (s *ComparisonSlider) ResetZoom() float64 {
	return s.setZoom(func(float64) float64 { return domain.DefaultZoom })
}

func (s *ComparisonSlider) setZoom(next func(float64) float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoom = domain.ClampZoom(next(s.zoom))
	return s.zoom
}

// Position текущая позиция разделителя в процентах
func (s *ComparisonSlider) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Dragging сообщает, идет ли перетаскивание
func (s *ComparisonSlider) Dragging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dragging
}

// Zoom текущий масштаб в процентах
func (s *ComparisonSlider) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

// View возвращает снимок состояния для отрисовки
func (s *ComparisonSlider) View() domain.SliderView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SliderView{
		Before:   s.before,
		After:    s.after,
		Position: s.position,
		Zoom:     s.zoom,
		Dragging: s.dragging,
	}
}
