package demo

import (
	"image/color"
	"testing"
)

func rgb(c color.Color) [3]uint32 {
	r, g, b, _ := c.RGBA()
	return [3]uint32{r >> 8, g >> 8, b >> 8}
}

func TestCapture(t *testing.T) {
	img, err := Capture()
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if b := img.Bounds(); b.Dx() != Width || b.Dy() != Height {
		t.Fatalf("size = %v, want %dx%d", b, Width, Height)
	}

	tests := []struct {
		name string
		x, y int
		want [3]uint32
	}{
		{"background", 10, 10, [3]uint32{0xff, 0xff, 0xff}},
		{"panel", 400, 700, [3]uint32{0xe5, 0xe7, 0xeb}},
		{"below panel", 400, 1150, [3]uint32{0xff, 0xff, 0xff}},
	}
	for _, tt := range tests {
		if got := rgb(img.At(tt.x, tt.y)); got != tt.want {
			t.Errorf("%s at (%d,%d) = %x, want %x", tt.name, tt.x, tt.y, got, tt.want)
		}
	}

	// Title glyphs are drawn in blue somewhere on the title baseline band.
	found := false
	for x := 80; x < 500 && !found; x++ {
		for y := 80; y < 125; y++ {
			if rgb(img.At(x, y)) == [3]uint32{0x25, 0x63, 0xeb} {
				found = true
				break
			}
		}
	}
	if !found {
		t.Error("title text not drawn")
	}
}

func TestPage(t *testing.T) {
	img, err := Page(200, 1000)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 1000 {
		t.Fatalf("size = %v, want 200x1000", b)
	}
	// Adjacent sections differ in shade.
	a, b := rgb(img.At(190, 150)), rgb(img.At(190, 450))
	if a == b {
		t.Errorf("sections 1 and 2 share colour %x", a)
	}

	if _, err := Page(0, 10); err == nil {
		t.Error("Page(0, 10) should fail")
	}
}
