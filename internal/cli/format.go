package cli

import (
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer formats numbers with English thousand separators.
//
//nolint:gochecknoglobals // Global printer is idiomatic for x/text/message usage.
var printer = message.NewPrinter(language.English)

const progressBarWidth = 20

func formatKg(v float64) string {
	return printer.Sprintf("%.2f kg", v)
}

func formatPercent(fraction float64) string {
	return printer.Sprintf("%.0f%%", fraction*100)
}

// progressBar renders fraction, clamped to [0, 1], as a fixed width bar.
func progressBar(fraction float64) string {
	if fraction < 0 || math.IsNaN(fraction) {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction*progressBarWidth + 0.5)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", progressBarWidth-filled) + "]"
}
