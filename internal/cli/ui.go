package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Palette & Styles
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorBlue   = lipgloss.Color("75")
	colorWhite  = lipgloss.Color("255")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

var (
	// StyleTitle renders headings such as the picker title.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleHighlight renders capture ids.
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleLink renders URLs.
	StyleLink = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)

	// StyleDim renders secondary text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue renders paths and field values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	styleKey         = lipgloss.NewStyle().Foreground(colorGray).Width(12)
	styleCommand     = lipgloss.NewStyle().Foreground(colorBlue)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
	styleTableHeader = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	styleTableBorder = lipgloss.NewStyle().Foreground(colorDim)
	styleCacheHit    = lipgloss.NewStyle().Foreground(colorGreen)
	styleCacheMiss   = lipgloss.NewStyle().Foreground(colorGray)
)

// status line prefixes
var (
	markSuccess = lipgloss.NewStyle().Foreground(colorGreen).Render("✓")
	markError   = lipgloss.NewStyle().Foreground(colorRed).Render("✗")
	markWarning = lipgloss.NewStyle().Foreground(colorYellow).Render("!")
	markInfo    = lipgloss.NewStyle().Foreground(colorGray).Render("›")
)

// =============================================================================
// Status Lines
// =============================================================================

func printStatus(mark string, style *lipgloss.Style, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if style != nil {
		msg = style.Render(msg)
	}
	fmt.Println(mark + " " + msg)
}

func printSuccess(format string, args ...any) { printStatus(markSuccess, nil, format, args...) }
func printError(format string, args ...any)   { printStatus(markError, nil, format, args...) }
func printInfo(format string, args ...any)    { printStatus(markInfo, nil, format, args...) }

func printWarning(format string, args ...any) {
	warn := lipgloss.NewStyle().Foreground(colorYellow)
	printStatus(markWarning, &warn, format, args...)
}

// printDetail prints an indented secondary line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints the path a command wrote.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render("→") + " " + StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	if value == "" {
		value = StyleDim.Render("—")
	}
	fmt.Println(styleKey.Render(key) + " " + StyleValue.Render(value))
}

// printNextStep suggests a follow-up command.
func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

// =============================================================================
// Stats
// =============================================================================

// printStats prints "3 tiles · 800x2400 · 1.2 MiB · fresh". Zero tiles or
// size are left out.
func printStats(tiles int, width, height, size int, cached bool) {
	var parts []string
	if tiles > 0 {
		parts = append(parts, StyleDim.Render(fmt.Sprintf("%d tiles", tiles)))
	}
	if width > 0 && height > 0 {
		parts = append(parts, StyleDim.Render(fmt.Sprintf("%dx%d", width, height)))
	}
	if size > 0 {
		parts = append(parts, StyleDim.Render(formatBytes(size)))
	}
	if cached {
		parts = append(parts, styleCacheHit.Render("cached"))
	} else {
		parts = append(parts, styleCacheMiss.Render("fresh"))
	}
	fmt.Println("  " + strings.Join(parts, StyleDim.Render(" · ")))
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := unit, 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}
