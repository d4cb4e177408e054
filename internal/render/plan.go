// Package render draws parsed exams on ECG paper and encodes them as PNG.
package render

import (
	"fmt"
	"strings"

	"ecgview/internal/ecg"
)

type Layout string

const (
	// LayoutStandard is the 4x3 twelve-lead grid with a DII rhythm strip.
	LayoutStandard Layout = "standard"
	// LayoutStrip stacks every lead in document order, one per row.
	LayoutStrip Layout = "strip"
)

// ParseLayout accepts a layout name; the empty string means standard.
func ParseLayout(s string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(s))) {
	case "", LayoutStandard:
		return LayoutStandard, nil
	case LayoutStrip:
		return LayoutStrip, nil
	}
	return "", fmt.Errorf("render: unknown layout %q", s)
}

const (
	DefaultWidth  = 1800
	DefaultHeight = 1200
)

type Options struct {
	Layout Layout
	Width  int
	Height int
}

func (o Options) withDefaults() Options {
	if o.Layout == "" {
		o.Layout = LayoutStandard
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	return o
}

// ECG paper, in seconds and millivolts.
const (
	MinorTime = 0.04
	MajorTime = 0.2
	MinorMV   = 0.1
	MajorMV   = 0.5

	CalibrationStart = 0.05
	CalibrationWidth = 0.2
	CalibrationMV    = 1.0

	standardPadMV = 0.1
)

type Rect struct {
	X, Y, W, H float64
}

// Panel is one plotting area.
type Panel struct {
	Lead      ecg.Lead
	Label     string
	Bounds    Rect
	Duration  float64
	Lo, Hi    float64
	Calibrate bool
	TimeAxis  bool
}

// X maps seconds to a pixel column.
func (p Panel) X(t float64) float64 {
	if p.Duration <= 0 {
		return p.Bounds.X
	}
	return p.Bounds.X + t/p.Duration*p.Bounds.W
}

// Y maps millivolts to a pixel row.
func (p Panel) Y(mv float64) float64 {
	return p.Bounds.Y + (p.Hi-mv)/(p.Hi-p.Lo)*p.Bounds.H
}

// Plan is everything needed to draw a chart, before any pixel is touched.
type Plan struct {
	Width, Height int
	SampleRate    float64
	Title         string
	Footer        []string
	Panels        []Panel
}

const (
	marginLeft   = 90.0
	marginRight  = 30.0
	marginTop    = 70.0
	marginBottom = 60.0
	panelGap     = 18.0
)

// NewPlan lays out rec according to opts.
func NewPlan(rec *ecg.Record, opts Options) (*Plan, error) {
	if rec == nil || len(rec.Leads) == 0 {
		return nil, ecg.ErrNoLeadData
	}
	opts = opts.withDefaults()

	plan := &Plan{
		Width:      opts.Width,
		Height:     opts.Height,
		SampleRate: rec.Recording.SampleRate,
		Title:      rec.Title(),
	}
	area := Rect{
		X: marginLeft,
		Y: marginTop,
		W: float64(opts.Width) - marginLeft - marginRight,
		H: float64(opts.Height) - marginTop - marginBottom,
	}
	if area.W <= 0 || area.H <= 0 {
		return nil, fmt.Errorf("render: %dx%d leaves no room to plot", opts.Width, opts.Height)
	}

	lo, hi := rec.Range()
	duration := rec.Duration()

	switch opts.Layout {
	case LayoutStandard:
		plan.Panels = standardPanels(rec, area, duration, lo-standardPadMV, hi+standardPadMV)
		plan.Footer = footer(rec)
	case LayoutStrip:
		plan.Panels = stripPanels(rec, area, duration, lo, hi)
	default:
		return nil, fmt.Errorf("render: unknown layout %q", opts.Layout)
	}

	for _, p := range plan.Panels {
		if p.Bounds.H < 4 {
			return nil, fmt.Errorf("render: %d leads do not fit in %dpx", len(plan.Panels), opts.Height)
		}
	}
	return plan, nil
}

// standardPanels is a 5-row grid with height ratios 1,1,1,1,0.7: twelve
// leads in three columns, then the rhythm lead across the full width.
func standardPanels(rec *ecg.Record, area Rect, duration, lo, hi float64) []Panel {
	const rows, cols = 4, 3
	unit := (area.H - 4*panelGap) / 4.7
	colW := (area.W - (cols-1)*panelGap) / cols

	panels := make([]Panel, 0, 13)
	for i, lead := range rec.Ordered() {
		row, col := i/cols, i%cols
		panels = append(panels, Panel{
			Lead:  lead,
			Label: lead.Name,
			Bounds: Rect{
				X: area.X + float64(col)*(colW+panelGap),
				Y: area.Y + float64(row)*(unit+panelGap),
				W: colW,
				H: unit,
			},
			Duration:  duration,
			Lo:        lo,
			Hi:        hi,
			Calibrate: len(lead.Samples) > 0,
		})
	}

	rhythm, _ := rec.Lead(ecg.RhythmLead)
	rhythm.Name = ecg.RhythmLead
	panels = append(panels, Panel{
		Lead:  rhythm,
		Label: "Rhythm (" + ecg.RhythmLead + ")",
		Bounds: Rect{
			X: area.X,
			Y: area.Y + rows*(unit+panelGap),
			W: area.W,
			H: unit * 0.7,
		},
		Duration: duration,
		Lo:       lo,
		Hi:       hi,
		TimeAxis: true,
	})
	return panels
}

func stripPanels(rec *ecg.Record, area Rect, duration, lo, hi float64) []Panel {
	n := float64(len(rec.Leads))
	rowH := (area.H - (n-1)*panelGap) / n

	panels := make([]Panel, 0, len(rec.Leads))
	for i, lead := range rec.Leads {
		panels = append(panels, Panel{
			Lead:  lead,
			Label: lead.Name + " (mV)",
			Bounds: Rect{
				X: area.X,
				Y: area.Y + float64(i)*(rowH+panelGap),
				W: area.W,
				H: rowH,
			},
			Duration: duration,
			Lo:       lo,
			Hi:       hi,
			TimeAxis: i == len(rec.Leads)-1,
		})
	}
	return panels
}

func footer(rec *ecg.Record) []string {
	speed := rec.Recording.Speed
	if speed == "" {
		speed = ecg.NotAvailable
	}
	hr := rec.Recording.HeartRate
	if hr == "" {
		hr = ecg.NotAvailable
	}
	return []string{
		"Speed: " + speed + " mm/s",
		fmt.Sprintf("Sensitivity: %.0f uV/mm (10mm/mV)", rec.Recording.SensitivityMV*1000),
		"HR: " + hr + " bpm",
	}
}
