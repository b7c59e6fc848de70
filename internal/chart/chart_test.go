// File path: internal/chart/chart_test.go
package chart

import (
	"strings"
	"testing"
)

func TestParseCSV(t *testing.T) {
	series, err := ParseCSV(strings.NewReader("Team Scores,score\nClarity,7\nAlignment,4.5\nTrust,0\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if series.Title != "Team Scores" {
		t.Errorf("title = %q", series.Title)
	}
	if len(series.Labels) != 3 || series.Labels[1] != "Alignment" {
		t.Errorf("labels = %v", series.Labels)
	}
	if series.Values[1] != 4.5 {
		t.Errorf("values = %v", series.Values)
	}
}

func TestParseCSVNoHeader(t *testing.T) {
	series, err := ParseCSV(strings.NewReader("Clarity,7\nAlignment,4\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if series.Title != "" {
		t.Errorf("title = %q, want empty", series.Title)
	}
	if len(series.Labels) != 2 {
		t.Errorf("labels = %v", series.Labels)
	}
}

func TestParseCSVErrors(t *testing.T) {
	for _, input := range []string{
		"",
		"just-one-column\n",
		"header,score\n",       // header only, no data rows
		"Clarity,7\nBad,oops\n", // non-numeric value past the first row
	} {
		if _, err := ParseCSV(strings.NewReader(input)); err == nil {
			t.Errorf("input %q parsed without error", input)
		}
	}
}

func TestRenderSVG(t *testing.T) {
	series := Series{
		Title:  "Team Scores",
		Labels: []string{"Clarity", "Alignment"},
		Values: []float64{7, 3.5},
	}
	svg, err := RenderSVG(series)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, fragment := range []string{"<svg", "Team Scores", "Clarity", "Alignment", "3.5"} {
		if !strings.Contains(svg, fragment) {
			t.Errorf("svg missing %q", fragment)
		}
	}
}

func TestRenderSVGZeroValues(t *testing.T) {
	svg, err := RenderSVG(Series{Labels: []string{"A"}, Values: []float64{0}})
	if err != nil {
		t.Fatalf("render all-zero series: %v", err)
	}
	if !strings.Contains(svg, "<rect") {
		t.Error("no bar rendered for zero value")
	}
}
