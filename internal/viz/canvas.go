package viz

import (
	"math"
	"strings"

	"github.com/san-kum/agsteer/internal/geo"
)

// Braille cells hold 2x4 dots:
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set lights the dot at sub-pixel (x, y). The canvas is Width*2 by
// Height*4 dots; out of range dots are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return false
	}
	return c.Grid[y/4][x/2]&rune(pixelMap[y%4][x%2]) != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// DrawLine uses Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	c.drawLine(x0, y0, x1, y1, 0)
}

// drawLine with dash > 0 lights only every dash-th dot.
func (c *Canvas) drawLine(x0, y0, x1, y1, dash int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for n := 0; ; n++ {
		if dash <= 0 || n%dash == 0 {
			c.Set(x0, y0)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Viewport maps grid metres onto canvas dots with north up and equal
// scale on both axes. Braille dots are about twice as tall as wide on a
// terminal, so one dot row covers two dot columns worth of metres.
type Viewport struct {
	min   geo.Vec2
	scale float64 // dots per metre, horizontally
	dotsW int
	dotsH int
	offX  int
	offY  int
}

// Fit returns a viewport showing [lo, hi] with margin metres around it.
func Fit(c *Canvas, lo, hi geo.Vec2, margin float64) Viewport {
	lo = lo.Sub(geo.Vec2{Easting: margin, Northing: margin})
	hi = hi.Add(geo.Vec2{Easting: margin, Northing: margin})
	w := math.Max(hi.Easting-lo.Easting, 1e-6)
	h := math.Max(hi.Northing-lo.Northing, 1e-6)
	dotsW, dotsH := c.Width*2, c.Height*4

	// a dot row is two dot columns tall on screen
	scale := math.Min(float64(dotsW-1)/w, 2*float64(dotsH-1)/h)
	v := Viewport{min: lo, scale: scale, dotsW: dotsW, dotsH: dotsH}
	v.offX = (dotsW - 1 - int(w*scale)) / 2
	v.offY = (dotsH - 1 - int(h*scale/2)) / 2
	return v
}

// Dot converts a point to canvas coordinates.
func (v Viewport) Dot(p geo.Vec2) (int, int) {
	x := v.offX + int(math.Round((p.Easting-v.min.Easting)*v.scale))
	y := v.dotsH - 1 - v.offY - int(math.Round((p.Northing-v.min.Northing)*v.scale/2))
	return x, y
}

func (c *Canvas) Polyline(v Viewport, pts []geo.Vec2, closed, dashed bool) {
	if len(pts) == 0 {
		return
	}
	dash := 0
	if dashed {
		dash = 3
	}
	for i := 1; i < len(pts); i++ {
		x0, y0 := v.Dot(pts[i-1])
		x1, y1 := v.Dot(pts[i])
		c.drawLine(x0, y0, x1, y1, dash)
	}
	if closed && len(pts) > 2 {
		x0, y0 := v.Dot(pts[len(pts)-1])
		x1, y1 := v.Dot(pts[0])
		c.drawLine(x0, y0, x1, y1, dash)
	}
	if len(pts) == 1 {
		c.Set(v.Dot(pts[0]))
	}
}

// Vehicle draws a small cross at p with a tick along heading h.
func (c *Canvas) Vehicle(v Viewport, p geo.Vec2, h float64) {
	x, y := v.Dot(p)
	for d := -1; d <= 1; d++ {
		c.Set(x+d, y)
		c.Set(x, y+d)
	}
	hx := x + int(math.Round(4*math.Sin(h)))
	hy := y - int(math.Round(2*math.Cos(h)))
	c.DrawLine(x, y, hx, hy)
}

func xy(pts []geo.Vec3) []geo.Vec2 {
	out := make([]geo.Vec2, len(pts))
	for i, p := range pts {
		out[i] = p.XY()
	}
	return out
}
