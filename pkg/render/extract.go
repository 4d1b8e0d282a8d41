package render

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Analysis is what the renderer needs from post content.
type Analysis struct {
	Title     string   `json:"title"`
	KeyPoints []string `json:"key_points"`
	Metrics   []string `json:"metrics"`
}

const (
	maxTitleRunes = 60
	maxKeyPoints  = 5
	maxMetrics    = 3
)

var (
	bulletPattern = regexp.MustCompile(`^(?:[-•→*]|\d+[.)])\s*`)
	numberPattern = regexp.MustCompile(`\$[\d,]+[KMB]?|\d+(?:\.\d+)?%?x?`)
	angleStripper  = strings.NewReplacer("<", "", ">", "")
)

// Analyze extracts a title, bullet key points and up to three numeric
// metrics from post content without calling any provider. An explicit
// title wins over the first content line.
func Analyze(content, title string) Analysis {
	var lines []string
	for _, l := range strings.Split(content, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	a := Analysis{Title: strings.TrimSpace(title)}
	if a.Title == "" && len(lines) > 0 {
		a.Title = lines[0]
	}
	if a.Title == "" {
		a.Title = "Tech Insights"
	}
	a.Title = clean(a.Title, maxTitleRunes)

	for _, l := range lines {
		if len(a.KeyPoints) == maxKeyPoints {
			break
		}
		if loc := bulletPattern.FindStringIndex(l); loc != nil {
			if p := clean(l[loc[1]:], 80); p != "" {
				a.KeyPoints = append(a.KeyPoints, p)
			}
		}
	}
	if len(a.KeyPoints) == 0 {
		a.KeyPoints = []string{"Key insight from the post"}
	}

	for _, n := range numberPattern.FindAllString(content, -1) {
		if len(a.Metrics) == maxMetrics {
			break
		}
		// Bare small integers are usually list numbering.
		if !strings.ContainsAny(n, "%$x.,") && len(n) < 2 {
			continue
		}
		a.Metrics = append(a.Metrics, n)
	}
	return a
}

// clean drops angle brackets and cuts s to limit runes.
func clean(s string, limit int) string {
	s = strings.TrimSpace(angleStripper.Replace(s))
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
