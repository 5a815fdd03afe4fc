// Package render draws replay frames onto a map-less canvas with gg: markers
// colored by role, fading trails, ping ripples and a time readout.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"golang.org/x/image/font"

	"chase-replay/internal/replay"
)

var (
	backgroundColor = color.RGBA{245, 245, 240, 255}
	chaserColor     = color.RGBA{216, 115, 149, 255}
	runnerColor     = color.RGBA{144, 238, 144, 255} // lightgreen
	inactiveColor   = color.RGBA{128, 128, 128, 255}
	outlineColor    = color.RGBA{20, 25, 35, 255}
	hudColor        = color.RGBA{20, 25, 35, 255}
)

// Options sizes the canvas
type Options struct {
	Width   int
	Height  int
	Padding float64
}

// RoleColor maps a role to its marker color
func RoleColor(r replay.Role) color.RGBA {
	switch r {
	case replay.RoleChaser:
		return chaserColor
	case replay.RoleRunner:
		return runnerColor
	default:
		return inactiveColor
	}
}

// Renderer draws frames of one session. The viewport is fitted to the
// session's bounding box once; Render is safe for concurrent use.
type Renderer struct {
	mu   sync.Mutex
	opts Options
	dc   *gg.Context

	// nil when no TrueType font was found; text is skipped then
	labelFace font.Face
	hudFace   font.Face

	// Web Mercator viewport
	origin orb.Point
	scale  float64
	offX   float64
	offY   float64
}

// NewRenderer fits the canvas to bounds
func NewRenderer(opts Options, bounds replay.SessionBounds) *Renderer {
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}
	r := &Renderer{
		opts: opts,
		dc:   gg.NewContext(opts.Width, opts.Height),
	}
	if path := fontPath(); path != "" {
		r.labelFace, _ = gg.LoadFontFace(path, 12)
		r.hudFace, _ = gg.LoadFontFace(path, 18)
	}
	r.fit(bounds.Box)
	return r
}

// fit chooses scale and offsets so the box fills the padded canvas with
// its aspect ratio intact.
func (r *Renderer) fit(box orb.Bound) {
	lo := project.Point(box.Min, project.WGS84.ToMercator)
	hi := project.Point(box.Max, project.WGS84.ToMercator)

	w := hi[0] - lo[0]
	h := hi[1] - lo[1]
	availW := float64(r.opts.Width) - 2*r.opts.Padding
	availH := float64(r.opts.Height) - 2*r.opts.Padding

	switch {
	case w <= 0 && h <= 0:
		r.scale = 1
	case w <= 0:
		r.scale = availH / h
	case h <= 0:
		r.scale = availW / w
	default:
		r.scale = math.Min(availW/w, availH/h)
	}

	r.origin = lo
	r.offX = (float64(r.opts.Width) - w*r.scale) / 2
	r.offY = (float64(r.opts.Height) - h*r.scale) / 2
}

// Project maps a position to canvas pixels; north is up
func (r *Renderer) Project(p replay.Position) (x, y float64) {
	m := project.Point(p.Point(), project.WGS84.ToMercator)
	x = r.offX + (m[0]-r.origin[0])*r.scale
	y = float64(r.opts.Height) - (r.offY + (m[1]-r.origin[1])*r.scale)
	return x, y
}

// Render draws f and returns a copy of the canvas
func (r *Renderer) Render(f replay.Frame) image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()

	dc := r.dc
	dc.SetColor(backgroundColor)
	dc.Clear()

	for _, p := range f.Participants {
		if p.Visible {
			r.drawTail(dc, p)
		}
	}
	for _, p := range f.Participants {
		if p.Visible {
			r.drawPing(dc, p)
		}
	}
	for _, p := range f.Participants {
		if p.Visible {
			r.drawMarker(dc, p)
		}
	}
	r.drawHUD(dc, f)

	src := dc.Image()
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.(*image.RGBA).Pix)
	return out
}

// EncodePNG renders f and writes it as PNG
func (r *Renderer) EncodePNG(w io.Writer, f replay.Frame) error {
	return png.Encode(w, r.Render(f))
}

func (r *Renderer) drawTail(dc *gg.Context, p replay.ParticipantFrame) {
	c := RoleColor(p.Role)
	radius := p.Size / 4
	for _, tp := range p.Tail {
		x, y := r.Project(tp.Position)
		dc.SetColor(withAlpha(c, tp.Opacity))
		dc.DrawCircle(x, y, radius)
		dc.Fill()
	}
}

func (r *Renderer) drawPing(dc *gg.Context, p replay.ParticipantFrame) {
	if p.PingProgress == nil || p.PingPosition == nil {
		return
	}
	progress := *p.PingProgress
	x, y := r.Project(*p.PingPosition)

	dc.SetColor(withAlpha(RoleColor(p.Role), 1-progress))
	dc.SetLineWidth(3)
	dc.DrawCircle(x, y, p.Size/2+progress*p.Size*2)
	dc.Stroke()

	dc.SetColor(withAlpha(outlineColor, 0.5))
	dc.DrawCircle(x, y, 3)
	dc.Fill()
}

func (r *Renderer) drawMarker(dc *gg.Context, p replay.ParticipantFrame) {
	x, y := r.Project(p.Position)
	radius := p.Size / 2

	dc.SetColor(RoleColor(p.Role))
	dc.DrawCircle(x, y, radius)
	dc.Fill()

	dc.SetColor(outlineColor)
	dc.SetLineWidth(2)
	dc.DrawCircle(x, y, radius)
	dc.Stroke()

	if r.labelFace != nil {
		dc.SetFontFace(r.labelFace)
		dc.DrawStringAnchored(p.Name, x, y+radius+10, 0.5, 0.5)
	}
}

func (r *Renderer) drawHUD(dc *gg.Context, f replay.Frame) {
	w := float64(r.opts.Width)

	// progress bar
	dc.SetColor(withAlpha(hudColor, 0.2))
	dc.DrawRectangle(0, float64(r.opts.Height)-6, w, 6)
	dc.Fill()
	dc.SetColor(chaserColor)
	dc.DrawRectangle(0, float64(r.opts.Height)-6, w*f.Progress, 6)
	dc.Fill()

	if r.hudFace == nil {
		return
	}
	dc.SetFontFace(r.hudFace)
	dc.SetColor(hudColor)
	label := time.UnixMilli(f.Time).UTC().Format("2006-01-02 15:04:05 UTC")
	dc.DrawStringAnchored(label, 16, 24, 0, 0.5)

	status := fmt.Sprintf("%s  x%.0f  %d runners  %d chasers", f.Status, f.Speed, f.RunnerCount, f.ChaserCount)
	if f.SlowMo {
		status += "  slow-mo"
	}
	dc.DrawStringAnchored(status, w-16, 24, 1, 0.5)
}

func withAlpha(c color.RGBA, a float64) color.NRGBA {
	if a < 0 {
		a = 0
	}
	if a > 1 {
		a = 1
	}
	return color.NRGBA{c.R, c.G, c.B, uint8(float64(c.A) * a)}
}

func fontPath() string {
	paths := []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/TTF/DejaVuSans.ttf",
		"/System/Library/Fonts/Helvetica.ttc",
		"C:\\Windows\\Fonts\\arial.ttf",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	matches, _ := filepath.Glob("*.ttf")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}
