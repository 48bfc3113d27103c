package grid

import (
	"image"
	"image/color"
	"testing"
)

func grayImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	return img
}

func TestOverlay(t *testing.T) {
	img := grayImage(40, 40)
	g := New(40, 40, 10)

	out, err := Overlay(img, g, OverlayOptions{Color: "#FF0000", LineWidth: 3})
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}

	b := out.Bounds()
	if b.Dx() != 40 || b.Dy() != 40 {
		t.Fatalf("got %dx%d, want 40x40", b.Dx(), b.Dy())
	}

	r, gr, _, _ := out.At(10, 25).RGBA()
	if r <= gr {
		t.Errorf("pixel on grid line should be red, got r=%d g=%d", r>>8, gr>>8)
	}

	r, gr, bl, _ := out.At(5, 5).RGBA()
	if r != gr || gr != bl {
		t.Errorf("pixel inside cell should stay gray, got (%d,%d,%d)", r>>8, gr>>8, bl>>8)
	}
}

func TestOverlay_LeavesSourceUntouched(t *testing.T) {
	img := grayImage(30, 30)
	g := New(30, 30, 10)

	if _, err := Overlay(img, g, OverlayOptions{Color: "#00FF00", LineWidth: 2}); err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	if c := img.NRGBAAt(10, 15); c.G != 128 {
		t.Errorf("source image modified: %v", c)
	}
}

func TestOverlay_DeformedAndCurved(t *testing.T) {
	img := grayImage(40, 40)
	g := New(40, 40, 10)
	g.Corners[g.CornerIndex(2, 2)].X += 3
	g.Corners[g.CornerIndex(1, 2)].Y -= 2

	opts := OverlayOptions{
		Color:       "#0000FFFF",
		ShowCorners: true,
		Curve:       CurveOptions{Enabled: true, Degree: 3, Smoothness: 1},
	}
	out, err := Overlay(img, g, opts)
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	if out.Bounds().Dx() != 40 {
		t.Errorf("width = %d, want 40", out.Bounds().Dx())
	}
}

func TestOverlay_InvalidColor(t *testing.T) {
	img := grayImage(20, 20)
	g := New(20, 20, 10)

	for _, hex := range []string{"", "not-a-color", "#FFF"} {
		if _, err := Overlay(img, g, OverlayOptions{Color: hex}); err != nil {
			t.Errorf("Overlay(%q) should fall back to default color, got %v", hex, err)
		}
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		hex     string
		want    color.NRGBA
		wantErr bool
	}{
		{"#FF0000", color.NRGBA{R: 255, A: 255}, false},
		{"#00FF00", color.NRGBA{G: 255, A: 255}, false},
		{"0000FF", color.NRGBA{B: 255, A: 255}, false},
		{"#FF000080", color.NRGBA{R: 255, A: 128}, false},
		{"FFFFFF40", color.NRGBA{R: 255, G: 255, B: 255, A: 64}, false},
		{"", color.NRGBA{}, true},
		{"#FFF", color.NRGBA{}, true},
		{"#GGGGGG", color.NRGBA{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.hex, func(t *testing.T) {
			c, err := parseHexColor(tt.hex)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c != tt.want {
				t.Errorf("got %v, want %v", c, tt.want)
			}
		})
	}
}
