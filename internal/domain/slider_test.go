package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPositionAt(t *testing.T) {
	b := Bounds{Left: 100, Width: 800}

	tests := []struct {
		name string
		x    float64
		want float64
	}{
		{"center", 500, 50},
		{"left edge", 100, 0},
		{"right edge", 900, 100},
		{"quarter", 300, 25},
		{"far left", 100 - 500, 0},
		{"far right", 100 + 800*2, 100},
		{"positive infinity", math.Inf(1), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PositionAt(tt.x, b)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPositionAt_ExactFormula(t *testing.T) {
	b := Bounds{Left: 13.7, Width: 641.3}
	for _, x := range []float64{14, 100.25, 333.333, 600.1} {
		got, ok := PositionAt(x, b)
		assert.True(t, ok)
		assert.Equal(t, (x-b.Left)/b.Width*100, got)
	}
}

func TestPositionAt_DegenerateContainer(t *testing.T) {
	for _, w := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		_, ok := PositionAt(500, Bounds{Left: 100, Width: w})
		assert.False(t, ok, "width %v", w)
	}
	_, ok := PositionAt(math.NaN(), Bounds{Left: 0, Width: 100})
	assert.False(t, ok)
}

func TestClampZoom(t *testing.T) {
	assert.Equal(t, 100.0, ClampZoom(0))
	assert.Equal(t, 100.0, ClampZoom(math.NaN()))
	assert.Equal(t, 50.0, ClampZoom(10))
	assert.Equal(t, 200.0, ClampZoom(400))
	assert.Equal(t, 125.0, ClampZoom(125))
}

func TestTouchEvent_FirstPoint(t *testing.T) {
	x, ok := TouchEvent{Touches: []TouchPoint{{ClientX: 42}, {ClientX: 7}}}.PointerX()
	assert.True(t, ok)
	assert.Equal(t, 42.0, x)

	_, ok = TouchEvent{}.PointerX()
	assert.False(t, ok)
}

func TestParsePointerKind(t *testing.T) {
	kind, ok := ParsePointerKind("touchmove")
	assert.True(t, ok)
	assert.Equal(t, PointerMove, kind)

	kind, ok = ParsePointerKind("mouseleave")
	assert.True(t, ok)
	assert.Equal(t, PointerLeave, kind)

	_, ok = ParsePointerKind("wheel")
	assert.False(t, ok)
}

func TestSliderView_DividerX(t *testing.T) {
	v := SliderView{Position: 37.5, Zoom: 150}
	assert.Equal(t, 300, v.DividerX(800))
	assert.Equal(t, 62.5, v.ClipInsetRight())
	assert.Equal(t, 1.5, v.Scale())
}
