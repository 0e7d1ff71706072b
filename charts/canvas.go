package charts

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/colornames"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

const (
	marginLeft   = 70
	marginRight  = 24
	marginTop    = 56
	marginBottom = 72
	yTicks       = 5
	glyphWidth   = 7
)

var (
	barFill    = colornames.Orange
	barEdge    = colornames.Darkorange
	lineColor  = colornames.Darkorange
	axisColor  = colornames.Black
	gridColor  = colornames.Gainsboro
	labelColor = colornames.Dimgray
)

// canvas is an RGBA image with a plot area inset by fixed margins.
type canvas struct {
	img  *image.RGBA
	plot image.Rectangle
}

func newCanvas(width, height int) *canvas {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(colornames.White), image.Point{}, draw.Src)
	return &canvas{
		img:  img,
		plot: image.Rect(marginLeft, marginTop, width-marginRight, height-marginBottom),
	}
}

type point struct{ x, y float32 }

// fill rasterizes the closed polygon pts over its bounding box only.
func (c *canvas) fill(pts []point, col color.Color) {
	if len(pts) < 3 {
		return
	}
	minX, minY, maxX, maxY := pts[0].x, pts[0].y, pts[0].x, pts[0].y
	for _, p := range pts[1:] {
		minX, maxX = min(minX, p.x), max(maxX, p.x)
		minY, maxY = min(minY, p.y), max(maxY, p.y)
	}
	r := image.Rect(
		int(math.Floor(float64(minX))), int(math.Floor(float64(minY))),
		int(math.Ceil(float64(maxX))), int(math.Ceil(float64(maxY))),
	).Intersect(c.img.Bounds())
	if r.Empty() {
		return
	}
	ox, oy := float32(r.Min.X), float32(r.Min.Y)
	z := vector.NewRasterizer(r.Dx(), r.Dy())
	z.MoveTo(pts[0].x-ox, pts[0].y-oy)
	for _, p := range pts[1:] {
		z.LineTo(p.x-ox, p.y-oy)
	}
	z.ClosePath()
	z.Draw(c.img, r, image.NewUniform(col), image.Point{})
}

func (c *canvas) fillRect(x0, y0, x1, y1 float32, col color.Color) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	if x1-x0 < 1 {
		x1 = x0 + 1
	}
	c.fill([]point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}, col)
}

func (c *canvas) line(x0, y0, x1, y1, width float32, col color.Color) {
	dx, dy := x1-x0, y1-y0
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		return
	}
	nx, ny := -dy/length*width/2, dx/length*width/2
	c.fill([]point{
		{x0 + nx, y0 + ny},
		{x1 + nx, y1 + ny},
		{x1 - nx, y1 - ny},
		{x0 - nx, y0 - ny},
	}, col)
}

func (c *canvas) dot(x, y, r float32, col color.Color) {
	const sides = 16
	pts := make([]point, 0, sides)
	for i := 0; i < sides; i++ {
		a := 2 * math.Pi * float64(i) / sides
		pts = append(pts, point{x + r*float32(math.Cos(a)), y + r*float32(math.Sin(a))})
	}
	c.fill(pts, col)
}

func (c *canvas) text(x, y int, s string, col color.Color) {
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func (c *canvas) centered(cx, y int, s string, col color.Color) {
	c.text(cx-textWidth(s)/2, y, s, col)
}

func textWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Ceil()
}

// frame draws the title, axis labels, the y grid and both axes. yMax must be positive.
func (c *canvas) frame(title, xLabel, yLabel string, yMax float64) {
	b := c.img.Bounds()
	p := c.plot
	c.centered(b.Dx()/2, 24, title, axisColor)
	c.text(8, marginTop-14, yLabel, labelColor)
	c.centered(p.Min.X+p.Dx()/2, b.Dy()-12, xLabel, labelColor)
	for i := 0; i <= yTicks; i++ {
		v := yMax * float64(i) / yTicks
		y := c.y(v, yMax)
		if i > 0 {
			c.line(float32(p.Min.X), y, float32(p.Max.X), y, 1, gridColor)
		}
		label := tickLabel(v)
		c.text(p.Min.X-8-textWidth(label), int(y)+4, label, labelColor)
	}
	c.line(float32(p.Min.X), float32(p.Min.Y), float32(p.Min.X), float32(p.Max.Y), 1.5, axisColor)
	c.line(float32(p.Min.X), float32(p.Max.Y), float32(p.Max.X), float32(p.Max.Y), 1.5, axisColor)
}

func (c *canvas) noData() {
	p := c.plot
	c.centered(p.Min.X+p.Dx()/2, p.Min.Y+p.Dy()/2, "no data", labelColor)
}

func (c *canvas) y(v, yMax float64) float32 {
	return float32(c.plot.Max.Y) - float32(v/yMax)*float32(c.plot.Dy())
}

func (c *canvas) save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart %s: %w", path, err)
	}
	if err := png.Encode(f, c.img); err != nil {
		f.Close()
		return fmt.Errorf("encode chart %s: %w", path, err)
	}
	return f.Close()
}

// niceCeil rounds v up to 1, 2 or 5 times a power of ten.
func niceCeil(v float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 1
	}
	exp := math.Pow(10, math.Floor(math.Log10(v)))
	f := v / exp
	switch {
	case f <= 1:
		f = 1
	case f <= 2:
		f = 2
	case f <= 5:
		f = 5
	default:
		f = 10
	}
	return f * exp
}

func tickLabel(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e9 {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
