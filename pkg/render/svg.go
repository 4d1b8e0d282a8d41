package render

import (
	"bytes"
	"fmt"
	"text/template"
)

// Canvas size, 4:5 for LinkedIn.
const (
	Width   = 1200
	Height  = 1500
	padding = 56
)

// SVGMIMEType is the content type of rendered fallbacks.
const SVGMIMEType = "image/svg+xml"

type svgData struct {
	Width, Height, Pad int
	Style              Style
	Title              string
	Points             []string
	Metrics            []string
	Hero               string
	PillW              int
	PillY              int
	ColW               int
}

var funcs = template.FuncMap{
	"add":  func(a, b int) int { return a + b },
	"mul":  func(a, b int) int { return a * b },
	"half": func(a int) int { return a / 2 },
	"mod2": func(a int) int { return a % 2 },
}

var svgTemplate = template.Must(template.New("infographic").Funcs(funcs).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<svg width="{{.Width}}" height="{{.Height}}" viewBox="0 0 {{.Width}} {{.Height}}" xmlns="http://www.w3.org/2000/svg" font-family="Inter, system-ui, sans-serif">
  <rect width="100%" height="100%" fill="#FFFFFF"/>
  <text x="{{.Pad}}" y="{{add .Pad 60}}" font-weight="800" font-size="56" fill="#0A2540">{{html .Title}}</text>
  <rect x="{{.Pad}}" y="{{add .Pad 90}}" width="120" height="6" rx="3" fill="#0066FF"/>
{{- if eq .Style "single_stat"}}
  <text x="{{half .Width}}" y="640" text-anchor="middle" font-weight="800" font-size="220" fill="#0066FF">{{html .Hero}}</text>
  <text x="{{half .Width}}" y="740" text-anchor="middle" font-size="32" fill="#374151">{{with index .Points 0}}{{html .}}{{end}}</text>
{{- else if eq .Style "comparison"}}
  <rect x="{{.Pad}}" y="420" rx="24" width="{{.ColW}}" height="520" fill="#F8F9FA" stroke="#E5E7EB"/>
  <rect x="{{add (add .Pad .ColW) 40}}" y="420" rx="24" width="{{.ColW}}" height="520" fill="#EFF6FF" stroke="#BFDBFE"/>
  {{- $pad := .Pad}}{{$col := .ColW}}
  {{- range $i, $p := .Points}}
  <text x="{{if eq (mod2 $i) 0}}{{add $pad 24}}{{else}}{{add (add $pad $col) 64}}{{end}}" y="{{add 490 (mul (half $i) 70)}}" font-size="24" fill="#1F2937">{{html $p}}</text>
  {{- end}}
{{- else if eq .Style "timeline"}}
  <line x1="{{.Pad}}" y1="700" x2="{{add .Pad (add .ColW (add .ColW 40))}}" y2="700" stroke="#0066FF" stroke-width="4"/>
  {{- $pad := .Pad}}
  {{- range $i, $p := .Points}}
  <circle cx="{{add $pad (add 40 (mul $i 260))}}" cy="700" r="14" fill="#0066FF"/>
  <text x="{{add $pad (add 10 (mul $i 260))}}" y="{{if eq (mod2 $i) 0}}650{{else}}770{{end}}" font-size="22" fill="#1F2937">{{html $p}}</text>
  {{- end}}
{{- else}}
  {{- $pad := .Pad}}
  {{- range $i, $p := .Points}}
  <circle cx="{{add $pad 36}}" cy="{{add 420 (mul $i 130)}}" r="32" fill="#0066FF"/>
  <text x="{{add $pad 36}}" y="{{add 431 (mul $i 130)}}" text-anchor="middle" font-weight="700" font-size="30" fill="#FFFFFF">{{add $i 1}}</text>
  <text x="{{add $pad 96}}" y="{{add 430 (mul $i 130)}}" font-size="30" fill="#111111">{{html $p}}</text>
  {{- end}}
{{- end}}
{{- if .Metrics}}
  {{- $pad := .Pad}}{{$w := .PillW}}{{$y := .PillY}}
  {{- range $i, $m := .Metrics}}
  <rect x="{{add $pad (mul $i (add $w 20))}}" y="{{$y}}" rx="40" width="{{$w}}" height="80" fill="#EEF2FF" stroke="#E0E7FF"/>
  <text x="{{add $pad (add (mul $i (add $w 20)) 24)}}" y="{{add $y 50}}" font-weight="700" font-size="26" fill="#111827">{{html $m}}</text>
  {{- end}}
{{- end}}
</svg>
`))

// SVG draws a with the given layout. Titles are cut to 60 characters and at
// most three metric pills are drawn.
func SVG(a Analysis, style Style) ([]byte, error) {
	points := a.KeyPoints
	if len(points) == 0 {
		points = []string{""}
	}
	if style == StyleTimeline && len(points) > 4 {
		points = points[:4]
	}
	metrics := a.Metrics
	if len(metrics) > maxMetrics {
		metrics = metrics[:maxMetrics]
	}
	hero := "-"
	if len(metrics) > 0 {
		hero = metrics[0]
	}

	pillW := (Width - padding*2 - 40) / 3
	data := svgData{
		Width:   Width,
		Height:  Height,
		Pad:     padding,
		Style:   style,
		Title:   clean(a.Title, maxTitleRunes),
		Points:  points,
		Metrics: metrics,
		Hero:    hero,
		PillW:   pillW,
		PillY:   Height - 260,
		ColW:    (Width - padding*2 - 40) / 2,
	}

	var buf bytes.Buffer
	if err := svgTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", style, err)
	}
	return buf.Bytes(), nil
}
