package imaging

import (
	"image/color"
	"testing"
)

func TestPixelateBlocks(t *testing.T) {
	buf := FromImage(createPatternImage(40, 40))
	out := PixelateBlocks(buf, 10)

	if out.Width != 40 || out.Height != 40 {
		t.Fatalf("got %dx%d, want 40x40", out.Width, out.Height)
	}

	for by := 0; by < 40; by += 10 {
		for bx := 0; bx < 40; bx += 10 {
			want := out.At(bx, by)
			for y := by; y < by+10; y++ {
				for x := bx; x < bx+10; x++ {
					if out.At(x, y) != want {
						t.Fatalf("block (%d,%d) not uniform", bx/10, by/10)
					}
				}
			}
		}
	}

	if got := out.At(0, 0); got.R < 250 || got.G > 5 || got.B > 5 {
		t.Errorf("top-left block = %v, want red", got)
	}
	if got := out.At(39, 39); got.R < 250 || got.G < 250 || got.B < 250 {
		t.Errorf("bottom-right block = %v, want white", got)
	}
}

func TestPixelateBlocks_UnevenSize(t *testing.T) {
	buf := FromImage(createInMemoryImage(23, 17, color.RGBA{40, 80, 120, 255}))

	for _, size := range []int{1, 4, 10, 100} {
		out := PixelateBlocks(buf, size)
		if out.Width != 23 || out.Height != 17 {
			t.Errorf("block %d: got %dx%d", size, out.Width, out.Height)
		}
		if got := out.At(22, 16); got != (Color{R: 40, G: 80, B: 120, A: 255}) {
			t.Errorf("block %d: uniform color changed to %v", size, got)
		}
	}
}

func TestPixelateBlocks_InvalidInput(t *testing.T) {
	if out := PixelateBlocks(nil, 8); out.Width != 0 || out.Height != 0 {
		t.Errorf("nil buffer gave %dx%d", out.Width, out.Height)
	}

	empty := NewPixelBuffer(0, 4)
	if out := PixelateBlocks(empty, 8); out.Height != 4 || len(out.Pix) != 0 {
		t.Errorf("empty buffer gave %dx%d", out.Width, out.Height)
	}

	buf := FromImage(createPatternImage(6, 6))
	if out := PixelateBlocks(buf, 0); out.Width != 6 || out.Height != 6 {
		t.Errorf("block size 0 gave %dx%d", out.Width, out.Height)
	}
}
