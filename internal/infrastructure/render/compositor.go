// Package render рисует сравнение "до/после" в растр.
package render

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"photo-studio/internal/domain"
)

var (
	backgroundColor = color.RGBA{R: 0xf1, G: 0xf5, B: 0xf9, A: 0xff}
	dividerColor    = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	gripColor       = color.RGBA{R: 0x9c, G: 0xa3, B: 0xaf, A: 0xff}
	labelBackground = color.RGBA{A: 0x80}
)

const (
	dividerWidth = 2
	handleRadius = 16
	labelMargin  = 16
	labelPadding = 4
)

// Compositor рисует два изображения в одном контейнере: "before" целиком,
// "after" только слева от разделителя.
type Compositor struct {
	scaler      draw.Scaler
	beforeLabel string
	afterLabel  string
}

// NewCompositor создает компоновщик с подписями Before/After
func NewCompositor() *Compositor {
	return &Compositor{
		scaler:      draw.ApproxBiLinear,
		beforeLabel: "Before",
		afterLabel:  "After",
	}
}

// WithLabels задает подписи; пустая строка отключает подпись
func (c *Compositor) WithLabels(before, after string) *Compositor {
	c.beforeLabel = before
	c.afterLabel = after
	return c
}

// WithHighQuality переключает масштабирование на CatmullRom
func (c *Compositor) WithHighQuality() *Compositor {
	c.scaler = draw.CatmullRom
	return c
}

// Render рисует состояние слайдера в контейнер width x height
func (c *Compositor) Render(view domain.SliderView, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("некорректный размер контейнера %dx%d", width, height)
	}

	before, err := view.Before.Decode()
	if err != nil {
		return nil, fmt.Errorf("изображение before: %w", err)
	}
	after, err := view.After.Decode()
	if err != nil {
		return nil, fmt.Errorf("изображение after: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	scale := view.Scale()
	if scale <= 0 {
		scale = 1
	}

	c.scaler.Scale(dst, coverRect(before.Bounds(), dst.Bounds(), scale), before, before.Bounds(), draw.Over, nil)
	if c.beforeLabel != "" {
		drawLabel(dst, dst.Bounds(), c.beforeLabel, false)
	}

	// clip-path: inset(0 (100-position)% 0 0)
	dividerX := view.DividerX(width)
	if dividerX > 0 {
		clip := dst.SubImage(image.Rect(0, 0, dividerX, height)).(*image.RGBA)
		c.scaler.Scale(clip, coverRect(after.Bounds(), dst.Bounds(), scale), after, after.Bounds(), draw.Over, nil)
		if c.afterLabel != "" {
			drawLabel(clip, dst.Bounds(), c.afterLabel, true)
		}
	}

	drawDivider(dst, dividerX)
	return dst, nil
}

// coverRect вписывает src в контейнер как object-fit: cover и масштабирует от центра
func coverRect(src, container image.Rectangle, scale float64) image.Rectangle {
	sw, sh := float64(src.Dx()), float64(src.Dy())
	cw, ch := float64(container.Dx()), float64(container.Dy())
	if sw == 0 || sh == 0 {
		return container
	}

	factor := max(cw/sw, ch/sh) * scale
	w, h := int(sw*factor+0.5), int(sh*factor+0.5)
	x0 := container.Min.X + (container.Dx()-w)/2
	y0 := container.Min.Y + (container.Dy()-h)/2
	return image.Rect(x0, y0, x0+w, y0+h)
}

func drawDivider(dst *image.RGBA, x int) {
	b := dst.Bounds()
	line := image.Rect(x-dividerWidth/2, b.Min.Y, x-dividerWidth/2+dividerWidth, b.Max.Y).Intersect(b)
	draw.Draw(dst, line, image.NewUniform(dividerColor), image.Point{}, draw.Src)

	cy := b.Min.Y + b.Dy()/2
	handle := image.Rect(x-handleRadius, cy-handleRadius, x+handleRadius, cy+handleRadius)
	draw.DrawMask(dst, handle, image.NewUniform(dividerColor), image.Point{}, &circle{r: handleRadius}, image.Point{}, draw.Over)

	// Две вертикальные полоски на ручке
	for _, dx := range []int{-3, 1} {
		grip := image.Rect(x+dx, cy-8, x+dx+2, cy+8).Intersect(b)
		draw.Draw(dst, grip, image.NewUniform(gripColor), image.Point{}, draw.Src)
	}
}

// drawLabel рисует подпись в верхнем углу контейнера full.
// Видимая часть ограничена границами dst.
func drawLabel(dst *image.RGBA, full image.Rectangle, text string, right bool) {
	face := basicfont.Face7x13

	textWidth := font.MeasureString(face, text).Ceil()
	boxW := textWidth + 2*labelPadding
	boxH := face.Metrics().Height.Ceil() + 2*labelPadding

	x0 := full.Min.X + labelMargin
	if right {
		x0 = full.Max.X - labelMargin - boxW
	}
	y0 := full.Min.Y + labelMargin
	box := image.Rect(x0, y0, x0+boxW, y0+boxH)

	draw.Draw(dst, box.Intersect(dst.Bounds()), image.NewUniform(labelBackground), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(x0+labelPadding, y0+labelPadding+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

// circle маска круга с центром в (r, r)
type circle struct {
	r int
}

func (c *circle) ColorModel() color.Model { return color.AlphaModel }

func (c *circle) Bounds() image.Rectangle {
	return image.Rect(0, 0, 2*c.r, 2*c.r)
}

func (c *circle) At(x, y int) color.Color {
	dx, dy := float64(x-c.r)+0.5, float64(y-c.r)+0.5
	if dx*dx+dy*dy <= float64(c.r*c.r) {
		return color.Alpha{A: 0xff}
	}
	return color.Alpha{}
}
