package view

import (
	"image/color"
	"math"

	"github.com/ayusman/mudra/internal/field"
)

var (
	background = color.RGBA{R: 8, G: 10, B: 18, A: 255}
	restColor  = color.RGBA{R: 40, G: 70, B: 120, A: 255}
	hotColor   = color.RGBA{R: 255, G: 236, B: 160, A: 255}
	meterFrame = color.RGBA{R: 60, G: 70, B: 90, A: 255}
	meterFill  = color.RGBA{R: 255, G: 170, B: 60, A: 255}
)

var forceColors = map[field.ForceKind]color.RGBA{
	field.ForceRepulsion:  {R: 255, G: 82, B: 82, A: 255},
	field.ForceAttraction: {R: 64, G: 196, B: 255, A: 255},
	field.ForceVortex:     {R: 224, G: 64, B: 251, A: 255},
}

// intensityColor blends the rest colour towards the hot colour.
func intensityColor(v float32) color.RGBA {
	t := math.Max(0, math.Min(1, float64(v)))
	lerp := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
	}
	return color.RGBA{
		R: lerp(restColor.R, hotColor.R),
		G: lerp(restColor.G, hotColor.G),
		B: lerp(restColor.B, hotColor.B),
		A: 255,
	}
}

// pointRadius grows excited points so ripples read at a glance.
func pointRadius(v float32) float32 {
	return 1.5 + 2.5*float32(math.Max(0, math.Min(1, float64(v))))
}
