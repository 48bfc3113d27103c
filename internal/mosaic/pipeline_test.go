package mosaic

import (
	"image"
	"testing"

	"github.com/ironsheep/pixel-mosaic-mcp/internal/imaging"
	"github.com/ironsheep/pixel-mosaic-mcp/internal/palette"
)

func TestPixelate_LineScenario(t *testing.T) {
	src := lineBuffer(60, 60, 24, 3)

	for _, mode := range []RenderMode{RenderBlocks, RenderAdaptive, RenderCurved} {
		t.Run(mode.String(), func(t *testing.T) {
			opts := DefaultOptions()
			opts.BlockSize = 10
			opts.Sharpness = 1.0
			opts.Mode = mode

			res := Pixelate(src, opts)
			out := res.Buffer

			assertOpaqueCoverage(t, src, out)
			if mode == RenderBlocks {
				assertUniformBlocks(t, out, 10)
			}

			far := out.At(5, 5)
			if far != black {
				t.Errorf("far block = %v, want black", far)
			}
			var brightest uint8
			for x := 15; x < 36; x++ {
				if r := out.At(x, 35).R; r > brightest {
					brightest = r
				}
			}
			if brightest < 10 {
				t.Errorf("blocks around the line peak at R=%d, should differ clearly from %v", brightest, far)
			}
			if res.Edges.EdgeCount() == 0 {
				t.Error("expected edges along the line")
			}
			if res.Accelerated {
				t.Error("no backend registered, CPU path expected")
			}
			if res.Grid == nil || res.Grid.Cols != 6 || res.Grid.Rows != 6 {
				t.Errorf("grid = %+v, want 6x6", res.Grid)
			}
		})
	}
}

func TestPixelate_Deterministic(t *testing.T) {
	src := lineBuffer(50, 40, 17, 3)
	src.FillRect(image.Rect(30, 5, 45, 20), imaging.Color{R: 200, G: 40, B: 90, A: 255})

	for _, mode := range []RenderMode{RenderBlocks, RenderAdaptive, RenderCurved} {
		opts := DefaultOptions()
		opts.Mode = mode
		opts.MaxColors = 4

		a := Pixelate(src, opts).Buffer
		b := Pixelate(src, opts).Buffer
		for i := range a.Pix {
			if a.Pix[i] != b.Pix[i] {
				t.Fatalf("%v: byte %d differs between runs", mode, i)
			}
		}
	}
}

func TestPixelate_AllModesCoverImage(t *testing.T) {
	src := lineBuffer(45, 33, 8, 5)
	src.FillRect(image.Rect(20, 10, 40, 30), imaging.Color{R: 30, G: 200, B: 60, A: 128})

	for _, mode := range []RenderMode{RenderBlocks, RenderAdaptive, RenderCurved} {
		for _, size := range []int{3, 8, 16} {
			opts := DefaultOptions()
			opts.Mode = mode
			opts.BlockSize = size

			res := Pixelate(src, opts)
			assertOpaqueCoverage(t, src, res.Buffer)
			if len(res.Grid.Corners) != (res.Grid.Rows+1)*(res.Grid.Cols+1) {
				t.Errorf("%v/%d: corner count %d", mode, size, len(res.Grid.Corners))
			}
		}
	}
}

func TestPixelate_UniformImage(t *testing.T) {
	src := solidBuffer(30, 30, red)
	res := Pixelate(src, DefaultOptions())

	if res.Edges.EdgeCount() != 0 {
		t.Errorf("uniform image has %d edge pixels", res.Edges.EdgeCount())
	}
	if res.Stats.MovedCorners != 0 {
		t.Errorf("%d corners moved on a uniform image", res.Stats.MovedCorners)
	}
	for i := 0; i < len(res.Buffer.Pix); i += 4 {
		if res.Buffer.Pix[i] != 255 || res.Buffer.Pix[i+1] != 0 {
			t.Fatal("uniform red image should stay red")
		}
	}
}

func TestPixelate_SourceUnchanged(t *testing.T) {
	src := lineBuffer(30, 30, 10, 3)
	before := src.Clone()

	Pixelate(src, DefaultOptions())

	for i := range src.Pix {
		if src.Pix[i] != before.Pix[i] {
			t.Fatalf("source byte %d modified", i)
		}
	}
}

func TestPixelate_PaletteLimit(t *testing.T) {
	src := lineBuffer(40, 40, 10, 3)
	src.FillRect(image.Rect(20, 0, 40, 20), imaging.Color{R: 180, G: 20, B: 20, A: 255})
	src.FillRect(image.Rect(20, 20, 40, 40), imaging.Color{R: 20, G: 20, B: 180, A: 255})

	opts := DefaultOptions()
	opts.BlockSize = 5
	opts.MaxColors = 2
	res := Pixelate(src, opts)

	if n := palette.CountColors(res.Buffer); n > 2 {
		t.Errorf("got %d colors, want <= 2", n)
	}
}

func TestPixelate_InvalidInput(t *testing.T) {
	res := Pixelate(nil, DefaultOptions())
	if res.Buffer == nil || res.Edges == nil || res.Grid == nil {
		t.Fatal("invalid input should still return a complete result")
	}

	bad := &imaging.PixelBuffer{Width: 4, Height: 4, Pix: make([]uint8, 3)}
	if res := Pixelate(bad, DefaultOptions()); res.Buffer.Width != 0 {
		t.Errorf("malformed buffer gave width %d", res.Buffer.Width)
	}

	opts := DefaultOptions()
	opts.BlockSize = 0
	src := lineBuffer(6, 6, 2, 1)
	assertOpaqueCoverage(t, src, Pixelate(src, opts).Buffer)
}
