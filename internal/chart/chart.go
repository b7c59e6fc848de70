// File path: internal/chart/chart.go
package chart

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"
)

// Series is the parsed content of an imported data file: label/value pairs
// in file order.
type Series struct {
	Title  string
	Labels []string
	Values []float64
}

// ParseCSV reads a two-column data file (label,value), skipping a header
// row when the second column is not numeric.
func ParseCSV(r io.Reader) (Series, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return Series{}, fmt.Errorf("parse data file: %w", err)
	}
	series := Series{}
	for i, record := range records {
		if len(record) < 2 {
			return Series{}, fmt.Errorf("row %d: expected 2 columns, got %d", i+1, len(record))
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			if i == 0 {
				// Header row.
				series.Title = strings.TrimSpace(record[0])
				continue
			}
			return Series{}, fmt.Errorf("row %d: bad value %q", i+1, record[1])
		}
		series.Labels = append(series.Labels, strings.TrimSpace(record[0]))
		series.Values = append(series.Values, value)
	}
	if len(series.Values) == 0 {
		return Series{}, fmt.Errorf("data file contains no rows")
	}
	return series, nil
}

const (
	chartWidth  = 640
	barHeight   = 28
	barGap      = 8
	labelWidth  = 160
	chartMargin = 20
)

var svgTemplate = template.Must(template.New("chart").Parse(strings.TrimSpace(`
<svg xmlns="http://www.w3.org/2000/svg" width="{{.Width}}" height="{{.Height}}" viewBox="0 0 {{.Width}} {{.Height}}">
<style>text { font-family: sans-serif; font-size: 13px; }</style>
{{- if .Title}}
<text x="{{.TitleX}}" y="16" font-weight="bold">{{.Title}}</text>
{{- end}}
{{- range .Bars}}
<text x="{{.LabelX}}" y="{{.TextY}}">{{.Label}}</text>
<rect x="{{.BarX}}" y="{{.BarY}}" width="{{.BarW}}" height="{{.BarH}}" fill="#4a7db5"/>
<text x="{{.ValueX}}" y="{{.TextY}}">{{.Value}}</text>
{{- end}}
</svg>
`)))

type svgBar struct {
	Label  string
	Value  string
	LabelX int
	BarX   int
	BarY   int
	BarW   int
	BarH   int
	TextY  int
	ValueX int
}

type svgData struct {
	Width  int
	Height int
	Title  string
	TitleX int
	Bars   []svgBar
}

// RenderSVG draws a horizontal bar chart for the series. Output is a
// self-contained SVG document.
func RenderSVG(series Series) (string, error) {
	maxValue := series.Values[0]
	for _, v := range series.Values {
		if v > maxValue {
			maxValue = v
		}
	}
	if maxValue <= 0 {
		maxValue = 1
	}

	top := chartMargin
	if series.Title != "" {
		top += 16
	}
	data := svgData{
		Width:  chartWidth,
		Title:  series.Title,
		TitleX: chartMargin,
		Height: top + len(series.Values)*(barHeight+barGap) + chartMargin,
	}
	usable := chartWidth - labelWidth - 2*chartMargin - 60
	for i, value := range series.Values {
		y := top + i*(barHeight+barGap)
		width := int(float64(usable) * (value / maxValue))
		if width < 1 {
			width = 1
		}
		data.Bars = append(data.Bars, svgBar{
			Label:  series.Labels[i],
			Value:  strconv.FormatFloat(value, 'f', -1, 64),
			LabelX: chartMargin,
			BarX:   chartMargin + labelWidth,
			BarY:   y,
			BarW:   width,
			BarH:   barHeight,
			TextY:  y + barHeight/2 + 5,
			ValueX: chartMargin + labelWidth + width + 8,
		})
	}

	var out strings.Builder
	if err := svgTemplate.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render chart: %w", err)
	}
	return out.String(), nil
}
