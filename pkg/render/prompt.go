package render

import (
	"fmt"
	"strings"
)

var styleBriefs = map[Style]string{
	StyleEducationalSteps: "numbered step cards flowing top to bottom",
	StyleKPIDashboard:     "a dashboard of metric cards with large numbers",
	StyleTimeline:         "a horizontal timeline with labelled milestones",
	StyleSingleStat:       "one oversized statistic with a short caption",
	StyleComparison:       "two side-by-side columns contrasting the options",
}

// ImagePrompt builds the image generation prompt for a.
func ImagePrompt(a Analysis, style Style) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Professional LinkedIn infographic, portrait %dx%d, white background, blue accents.\n", Width, Height)
	fmt.Fprintf(&b, "Layout: %s.\n", styleBriefs[style])
	fmt.Fprintf(&b, "HEADLINE: %q\n", a.Title)
	if len(a.KeyPoints) > 0 {
		fmt.Fprintf(&b, "Key points: %s\n", strings.Join(a.KeyPoints, " | "))
	}
	if len(a.Metrics) > 0 {
		fmt.Fprintf(&b, "Metrics to show exactly: %s\n", strings.Join(a.Metrics, ", "))
	}
	b.WriteString("Use legible sans-serif text and do not invent numbers.")
	return b.String()
}
