// Package render picks an infographic layout for post content and draws
// the local SVG fallback used when image generation yields nothing.
package render

import (
	"regexp"
	"strings"
)

// Style names an infographic layout.
type Style string

const (
	StyleEducationalSteps Style = "educational_steps"
	StyleKPIDashboard     Style = "kpi_dashboard"
	StyleTimeline         Style = "timeline"
	StyleSingleStat       Style = "single_stat"
	StyleComparison       Style = "comparison"
)

// Styles lists every layout in tie-break order.
var Styles = []Style{StyleKPIDashboard, StyleTimeline, StyleEducationalSteps, StyleComparison, StyleSingleStat}

// Selection is a chosen layout with a 0..100 confidence.
type Selection struct {
	Style      Style `json:"style"`
	Confidence int   `json:"confidence"`
}

// StyleSelector chooses a layout for post content.
type StyleSelector interface {
	Select(content, title string) Selection
}

type rule struct {
	style  Style
	re     *regexp.Regexp
	points int
}

var (
	metricPattern  = regexp.MustCompile(`(?i)\d+(?:\.\d+)?%|\$[\d,]+[KMB]?|\d+x`)
	bigStatPattern = regexp.MustCompile(`\d{2,}%|\$[\d,]+[KMB]`)

	keywordRules = []rule{
		{StyleKPIDashboard, regexp.MustCompile(`(?i)revenue|profit|growth|metrics|kpi|results|performance|roi|increased|decreased`), 20},
		{StyleTimeline, regexp.MustCompile(`(?i)timeline|history|evolution|journey|roadmap|milestones|progression`), 35},
		{StyleTimeline, regexp.MustCompile(`(?i)\d{4}|years? ago|over the past|since \d`), 15},
		{StyleEducationalSteps, regexp.MustCompile(`(?i)how to|steps?\s*\d|guide|tutorial|learn|instructions|here's how`), 35},
		{StyleEducationalSteps, regexp.MustCompile(`(?i)first|second|third|then|next|finally|step \d`), 15},
		{StyleComparison, regexp.MustCompile(`(?i)vs\.?|versus|compare|comparison|alternative|difference|better than|which one`), 40},
		{StyleComparison, regexp.MustCompile(`(?i)pros|cons|advantages|disadvantages|features`), 15},
		{StyleSingleStat, regexp.MustCompile(`(?i)shocking|surprising|incredible|research shows|study found|did you know`), 20},
	}
)

// KeywordSelector scores each layout by keyword and number patterns.
// Content with no signal gets educational steps.
type KeywordSelector struct{}

// Select implements StyleSelector.
func (KeywordSelector) Select(content, title string) Selection {
	combined := strings.ToLower(title + " " + content)
	scores := make(map[Style]int, len(Styles))

	numbers := metricPattern.FindAllString(combined, -1)
	if len(numbers) >= 3 {
		scores[StyleKPIDashboard] += 35
	}
	if len(numbers) == 1 && bigStatPattern.MatchString(numbers[0]) {
		scores[StyleSingleStat] += 40
	}
	for _, r := range keywordRules {
		if r.re.MatchString(combined) {
			scores[r.style] += r.points
		}
	}

	best, top := StyleEducationalSteps, 0
	for _, s := range Styles {
		if scores[s] > top {
			best, top = s, scores[s]
		}
	}
	confidence := top * 2
	if confidence > 100 {
		confidence = 100
	}
	return Selection{Style: best, Confidence: confidence}
}
