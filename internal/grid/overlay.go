package grid

import (
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/gogpu/gg"
)

// OverlayOptions configures Overlay.
type OverlayOptions struct {
	// Color is a hex string like "#FF0000" or "#FF000080". Invalid values
	// fall back to semi-transparent red.
	Color string

	// LineWidth in pixels. Values <= 0 mean 1.
	LineWidth float64

	// ShowCorners marks every interior corner with a dot.
	ShowCorners bool

	// Curve draws cell edges with the same geometry the optimizer scored.
	Curve CurveOptions
}

// Overlay strokes every cell edge of g on top of img.
//
// It is a diagnostic view of where the optimizer placed the corners and does
// not affect rendered mosaics.
func Overlay(img image.Image, g *Grid, opts OverlayOptions) (image.Image, error) {
	lineColor, err := parseHexColor(opts.Color)
	if err != nil {
		lineColor = color.NRGBA{R: 255, A: 128}
	}
	width := opts.LineWidth
	if width <= 0 {
		width = 1
	}

	dc := gg.NewContextForImage(img)
	defer dc.Close()

	dc.SetColor(lineColor)
	dc.SetLineWidth(width)

	for idx := range g.Corners {
		n := g.Neighbors(idx)
		for _, nb := range []int{n[1], n[2]} {
			if nb < 0 {
				continue
			}
			p := g.EdgePath(idx, nb, opts.Curve)
			dc.MoveTo(p.P0.X, p.P0.Y)
			switch p.Kind {
			case EdgeQuadratic:
				dc.QuadraticTo(p.C1.X, p.C1.Y, p.P1.X, p.P1.Y)
			case EdgeCubic:
				dc.CubicTo(p.C1.X, p.C1.Y, p.C2.X, p.C2.Y, p.P1.X, p.P1.Y)
			default:
				dc.LineTo(p.P1.X, p.P1.Y)
			}
		}
	}
	if err := dc.Stroke(); err != nil {
		return nil, fmt.Errorf("failed to stroke grid: %w", err)
	}

	if opts.ShowCorners {
		for idx, c := range g.Corners {
			if g.IsBorder(idx) {
				continue
			}
			dc.DrawCircle(c.X, c.Y, width+1)
		}
		if err := dc.Fill(); err != nil {
			return nil, fmt.Errorf("failed to draw corners: %w", err)
		}
	}

	if err := dc.FlushGPU(); err != nil {
		return nil, fmt.Errorf("failed to flush overlay: %w", err)
	}
	return dc.Image(), nil
}

// parseHexColor parses "#RRGGBB" or "#RRGGBBAA" into a straight-alpha color.
func parseHexColor(hex string) (color.NRGBA, error) {
	if len(hex) == 0 {
		return color.NRGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.NRGBA{}, err
		}
		r = uint8(val >> 16)
		g = uint8(val >> 8)
		b = uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.NRGBA{}, err
		}
		r = uint8(val >> 24)
		g = uint8(val >> 16)
		b = uint8(val >> 8)
		a = uint8(val)
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color length")
	}

	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}
