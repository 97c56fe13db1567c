package domain

import "math"

const (
	MinPosition     = 0.0
	MaxPosition     = 100.0
	DefaultPosition = 50.0

	DefaultZoom = 100.0
	MinZoom     = 50.0
	MaxZoom     = 200.0
	ZoomStep    = 25.0
)

// PointerKind тип события указателя
type PointerKind int

const (
	PointerDown PointerKind = iota
	PointerMove
	PointerUp
	PointerLeave
)

// ParsePointerKind понимает имена DOM-событий мыши и касаний
func ParsePointerKind(s string) (PointerKind, bool) {
	switch s {
	case "down", "mousedown", "touchstart", "pointerdown":
		return PointerDown, true
	case "move", "mousemove", "touchmove", "pointermove":
		return PointerMove, true
	case "up", "mouseup", "touchend", "touchcancel", "pointerup":
		return PointerUp, true
	case "leave", "mouseleave", "pointerleave":
		return PointerLeave, true
	}
	return 0, false
}

// PointerEvent источник горизонтальной координаты указателя
type PointerEvent interface {
	// PointerX возвращает clientX; ok=false если координаты нет
	PointerX() (x float64, ok bool)
}

// MouseEvent событие мыши
type MouseEvent struct {
	ClientX float64
	ClientY float64
}

func (e MouseEvent) PointerX() (float64, bool) {
	return e.ClientX, true
}

// TouchPoint одна точка касания
type TouchPoint struct {
	ClientX float64 `json:"clientX"`
	ClientY float64 `json:"clientY"`
}

// TouchEvent событие касания; используется первая точка
type TouchEvent struct {
	Touches []TouchPoint
}

func (e TouchEvent) PointerX() (float64, bool) {
	if len(e.Touches) == 0 {
		return 0, false
	}
	return e.Touches[0].ClientX, true
}

// Bounds горизонтальная геометрия контейнера слайдера в координатах клиента
type Bounds struct {
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
}

// PositionAt переводит координату указателя в позицию разделителя.
// ok=false для вырожденного контейнера или нечисловой координаты.
func PositionAt(x float64, b Bounds) (position float64, ok bool) {
	if !(b.Width > 0) || math.IsInf(b.Width, 0) {
		return 0, false
	}
	p := (x - b.Left) / b.Width * 100
	if math.IsNaN(p) {
		return 0, false
	}
	return ClampPosition(p), true
}

// ClampPosition ограничивает позицию диапазоном [0,100]
func ClampPosition(p float64) float64 {
	if math.IsNaN(p) {
		return DefaultPosition
	}
	return min(MaxPosition, max(MinPosition, p))
}

// ClampZoom ограничивает масштаб диапазоном [MinZoom,MaxZoom]
func ClampZoom(z float64) float64 {
	if math.IsNaN(z) || z <= 0 {
		return DefaultZoom
	}
	return min(MaxZoom, max(MinZoom, z))
}

// SliderView все, что нужно для отрисовки сравнения
type SliderView struct {
	Before   ImageHandle
	After    ImageHandle
	Position float64 // процент ширины, в пределах которого видно "after"
	Zoom     float64 // проценты, 100 = без масштабирования
	Dragging bool
}

// Scale коэффициент масштабирования обоих изображений
func (v SliderView) Scale() float64 {
	return v.Zoom / 100
}

// ClipInsetRight правый отступ маски "after" в процентах, как clip-path: inset(0 X% 0 0)
func (v SliderView) ClipInsetRight() float64 {
	return MaxPosition - v.Position
}

// DividerX координата разделителя в пикселях для контейнера заданной ширины
func (v SliderView) DividerX(width int) int {
	return int(math.Round(float64(width) * v.Position / 100))
}
