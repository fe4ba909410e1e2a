// Package demo draws synthetic pages so that every command can run without
// a browser: a single-screen demo capture and tall striped pages for
// simulated full-page captures.
package demo

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"

	"github.com/matzehuels/pageshot/pkg/fonts"
)

// Size of the demo capture.
const (
	Width  = 800
	Height = 1200
)

// Demo capture colours.
const (
	titleColor    = "#2563eb"
	subtitleColor = "#6b7280"
	panelColor    = "#e5e7eb"
)

// URL is the page URL recorded for demo captures.
const URL = "https://demo.pageshot.invalid/"

// Capture draws the demo capture: a white page with a title, a subtitle and
// a light grey panel.
func Capture() (image.Image, error) {
	title, err := fonts.Bold(48)
	if err != nil {
		return nil, fmt.Errorf("load title font: %w", err)
	}
	subtitle, err := fonts.Regular(24)
	if err != nil {
		return nil, fmt.Errorf("load subtitle font: %w", err)
	}

	dc := gg.NewContext(Width, Height)
	dc.SetHexColor("#ffffff")
	dc.Clear()

	dc.SetHexColor(titleColor)
	dc.SetFontFace(title)
	dc.DrawString("Demo Capture", 80, 120)

	dc.SetHexColor(subtitleColor)
	dc.SetFontFace(subtitle)
	dc.DrawString("Screenshot preview", 80, 180)

	dc.SetHexColor(panelColor)
	dc.DrawRectangle(80, 240, 640, 860)
	dc.Fill()

	return dc.Image(), nil
}

// SectionHeight is the height of one labelled band in [Page].
const SectionHeight = 300

// Page draws a w × h page of alternating labelled sections. Each section
// has a distinct shade so stitching seams and misplaced tiles are visible.
func Page(w, h int) (image.Image, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %dx%d", w, h)
	}
	label, err := fonts.Bold(28)
	if err != nil {
		return nil, fmt.Errorf("load label font: %w", err)
	}

	dc := gg.NewContext(w, h)
	dc.SetHexColor("#ffffff")
	dc.Clear()
	dc.SetFontFace(label)

	for i, y := 0, 0; y < h; i, y = i+1, y+SectionHeight {
		shade := 0.82 + 0.06*float64(i%3)
		if i%2 == 0 {
			dc.SetRGB(shade, shade, 1)
		} else {
			dc.SetRGB(1, shade, shade)
		}
		dc.DrawRectangle(0, float64(y), float64(w), SectionHeight)
		dc.Fill()

		dc.SetHexColor("#111827")
		dc.DrawString(fmt.Sprintf("Section %d", i+1), 24, float64(y)+48)

		dc.SetHexColor(subtitleColor)
		dc.SetLineWidth(2)
		dc.DrawLine(0, float64(y), float64(w), float64(y))
		dc.Stroke()
	}
	return dc.Image(), nil
}
