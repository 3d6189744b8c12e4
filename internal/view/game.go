// Package view draws the field in a window with ebiten. Update drives one
// host tick per frame, so the display refresh is the tick source.
package view

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"log"
	"strings"

	"github.com/ayusman/mudra/internal/effect"
	"github.com/ayusman/mudra/internal/engine"
	"github.com/ayusman/mudra/internal/field"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// Host is the engine loop the view drives. *app.App implements it.
type Host interface {
	Tick() (*engine.TickResult, error)
	AddCueSink(sink effect.CueSink)
	RequestResize(width, height int)
	RequestReset()
	SetEnabled(enabled bool)
	IsEnabled() bool
}

// Config holds the window settings.
type Config struct {
	Title  string
	Width  int
	Height int
	TPS    int
	// Spring parameters for the charge meter and force markers.
	Frequency float64
	Damping   float64
}

// DefaultConfig returns a 960x540 window ticking at 60 Hz with critically
// damped smoothing.
func DefaultConfig() Config {
	return Config{
		Title:     "mudra",
		Width:     960,
		Height:    540,
		TPS:       60,
		Frequency: 8,
		Damping:   1,
	}
}

const (
	dotSize     = 8
	markerSize  = 18
	flashDecay  = 0.08
	meterHeight = 10
)

// Game implements ebiten.Game.
type Game struct {
	host Host
	cfg  Config

	latest  *engine.TickResult
	ended   bool
	last    string
	width   int
	height  int
	dot     *ebiten.Image
	charge  *Meter
	active  bool
	flash   float64
	markers [len(field.Slots)]*Marker
}

// New creates a Game and registers it for charge cues.
func New(host Host, cfg Config) *Game {
	if cfg.TPS <= 0 {
		cfg.TPS = DefaultConfig().TPS
	}
	g := &Game{
		host:   host,
		cfg:    cfg,
		charge: NewMeter(cfg.TPS, cfg.Frequency, cfg.Damping),
	}
	for i := range g.markers {
		g.markers[i] = NewMarker(cfg.TPS, cfg.Frequency, cfg.Damping)
	}
	host.AddCueSink(g)
	return g
}

// Run opens the window and blocks until it closes. It must be called from
// the main goroutine.
func Run(g *Game) error {
	ebiten.SetWindowSize(g.cfg.Width, g.cfg.Height)
	ebiten.SetWindowTitle(g.cfg.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(g.cfg.TPS)

	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return nil
}

// Cue implements effect.CueSink. It is called from Update through the host
// tick, so it shares the draw goroutine.
func (g *Game) Cue(c effect.Cue) {
	switch c.Kind {
	case effect.CueChargeBegin:
		g.active = true
		g.charge.SetTarget(0)
	case effect.CueChargeUpdate:
		g.charge.SetTarget(c.Intensity)
	case effect.CueBurst:
		g.active = false
		g.charge.SetTarget(0)
		g.flash = 0.25 + 0.5*c.Intensity
	}
}

// Update handles keys and runs one tick.
func (g *Game) Update() error {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape), inpututil.IsKeyJustPressed(ebiten.KeyQ):
		return ebiten.Termination
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.host.SetEnabled(!g.host.IsEnabled())
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.host.RequestReset()
	}
	return g.step()
}

func (g *Game) step() error {
	res, err := g.host.Tick()
	switch {
	case errors.Is(err, io.EOF):
		if !g.ended {
			log.Println("view: frame source ended")
		}
		g.ended = true
	case err != nil:
		return err
	}

	if res != nil {
		g.latest = res
		for _, e := range res.Events {
			if e.State != gesture.StateActive {
				g.last = fmt.Sprintf("%s %s %s", e.Hand, e.Type, e.State)
			}
		}
		for i, f := range res.Snapshot.Forces {
			if f.Kind == field.ForceNone {
				g.markers[i].Hide()
			} else {
				g.markers[i].Follow(f.Center)
			}
		}
	}

	g.charge.Step()
	for _, m := range g.markers {
		if m.Visible() {
			m.Step()
		}
	}
	if g.flash > 0 {
		g.flash = max(0, g.flash-flashDecay)
	}
	return nil
}

// Draw renders the latest snapshot.
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(background)

	if g.latest == nil {
		ebitenutil.DebugPrintAt(screen, "waiting for frames...", 8, 8)
		return
	}
	snap := &g.latest.Snapshot
	if snap.Width <= 0 || snap.Height <= 0 {
		return
	}

	bounds := screen.Bounds()
	sx := float64(bounds.Dx()) / float64(snap.Width)
	sy := float64(bounds.Dy()) / float64(snap.Height)

	if g.dot == nil {
		g.dot = ebiten.NewImage(dotSize, dotSize)
		vector.DrawFilledCircle(g.dot, dotSize/2, dotSize/2, dotSize/2, color.White, true)
	}

	op := &ebiten.DrawImageOptions{}
	for i := 0; i < snap.Count; i++ {
		v := snap.Intensities[i]
		r := float64(pointRadius(v))
		x := float64(snap.Positions[2*i]) * sx
		y := float64(snap.Positions[2*i+1]) * sy

		op.GeoM.Reset()
		op.GeoM.Scale(2*r/dotSize, 2*r/dotSize)
		op.GeoM.Translate(x-r, y-r)
		op.ColorScale.Reset()
		op.ColorScale.ScaleWithColor(intensityColor(v))
		screen.DrawImage(g.dot, op)
	}

	for i, m := range g.markers {
		if !m.Visible() {
			continue
		}
		p := r2Scale(m.x.Value(), m.y.Value(), sx, sy)
		clr := forceColors[snap.Forces[i].Kind]
		vector.StrokeCircle(screen, p[0], p[1], markerSize, 2, clr, true)
		vector.DrawFilledCircle(screen, p[0], p[1], 3, clr, true)
	}

	g.drawMeter(screen)

	if g.flash > 0 {
		a := uint8(255 * min(g.flash, 1))
		vector.DrawFilledRect(screen, 0, 0, float32(bounds.Dx()), float32(bounds.Dy()),
			color.RGBA{R: a, G: a, B: a, A: a}, false)
	}

	ebitenutil.DebugPrintAt(screen, g.status(), 8, 8)
}

func (g *Game) drawMeter(screen *ebiten.Image) {
	level := g.charge.Value()
	if !g.active && level < 0.005 {
		return
	}
	level = max(0, min(level, 1))

	bounds := screen.Bounds()
	w := float32(bounds.Dx()) / 3
	x := (float32(bounds.Dx()) - w) / 2
	y := float32(bounds.Dy()) - 3*meterHeight

	vector.DrawFilledRect(screen, x, y, w*float32(level), meterHeight, meterFill, false)
	vector.StrokeRect(screen, x, y, w, meterHeight, 1, meterFrame, false)
}

func r2Scale(x, y, sx, sy float64) [2]float32 {
	return [2]float32{float32(x * sx), float32(y * sy)}
}

func (g *Game) status() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tick %d  ripples %d  TPS %.0f", g.latest.Seq, g.latest.Snapshot.ActiveRipples, ebiten.ActualTPS())
	if !g.host.IsEnabled() {
		b.WriteString("  [paused]")
	}
	if g.ended {
		b.WriteString("  [source ended]")
	}
	if g.last != "" {
		fmt.Fprintf(&b, "\nlast: %s", g.last)
	}
	b.WriteString("\nspace pause  r reset  q quit")
	return b.String()
}

// Layout keeps the field the size of the window.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth > 0 && outsideHeight > 0 && (outsideWidth != g.width || outsideHeight != g.height) {
		g.width, g.height = outsideWidth, outsideHeight
		g.host.RequestResize(outsideWidth, outsideHeight)
	}
	return outsideWidth, outsideHeight
}
