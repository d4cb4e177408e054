package render

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"ecgview/internal/ecg"
)

var (
	fontOnce sync.Once
	goFont   *truetype.Font
	fontErr  error
)

func face(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		goFont, fontErr = truetype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fontErr
	}
	return truetype.NewFace(goFont, &truetype.Options{Size: size}), nil
}

// Render lays out rec and writes the chart to w as PNG.
func Render(w io.Writer, rec *ecg.Record, opts Options) error {
	plan, err := NewPlan(rec, opts)
	if err != nil {
		return err
	}
	return plan.Draw(w)
}

// Draw paints the plan and encodes it as PNG.
func (p *Plan) Draw(w io.Writer) error {
	titleFace, err := face(22)
	if err != nil {
		return fmt.Errorf("render: load font: %w", err)
	}
	labelFace, err := face(14)
	if err != nil {
		return fmt.Errorf("render: load font: %w", err)
	}

	dc := gg.NewContext(p.Width, p.Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetFontFace(titleFace)
	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(p.Title, float64(p.Width)/2, 35, 0.5, 0.5)

	dc.SetFontFace(labelFace)
	for _, panel := range p.Panels {
		drawPaper(dc, panel)
		drawTrace(dc, panel, p.SampleRate)
		if panel.Calibrate {
			drawCalibration(dc, panel)
		}
		drawLabels(dc, panel)
	}

	x := marginLeft
	for _, line := range p.Footer {
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(line, x, float64(p.Height)-12, 0, 0.5)
		tw, _ := dc.MeasureString(line)
		x += tw + 40
	}

	return dc.EncodePNG(w)
}

// minGridPx is the closest two grid lines may be drawn before a level is
// dropped.
const minGridPx = 2

// ticks returns multiples of step in [from, to], tolerant of float drift.
// Non-finite bounds yield nothing.
func ticks(from, to, step float64) []float64 {
	if !finite(from) || !finite(to) || !(step > 0) {
		return nil
	}
	first := math.Ceil(from/step - 1e-9)
	var out []float64
	for i := first; i*step <= to+1e-9; i++ {
		out = append(out, i*step)
	}
	return out
}

func drawPaper(dc *gg.Context, p Panel) {
	b := p.Bounds

	grid := func(tStep, mvStep, width float64, r, g, bl int) {
		if spacing(b.W, p.Duration, tStep) >= minGridPx {
			for _, t := range ticks(0, p.Duration, tStep) {
				x := p.X(t)
				dc.DrawLine(x, b.Y, x, b.Y+b.H)
			}
		}
		if spacing(b.H, p.Hi-p.Lo, mvStep) >= minGridPx {
			for _, mv := range ticks(p.Lo, p.Hi, mvStep) {
				y := p.Y(mv)
				dc.DrawLine(b.X, y, b.X+b.W, y)
			}
		}
		dc.SetRGB255(r, g, bl)
		dc.SetLineWidth(width)
		dc.Stroke()
	}
	grid(MinorTime, MinorMV, 0.5, 255, 192, 203)
	grid(MajorTime, MajorMV, 1.0, 230, 40, 40)
}

func drawTrace(dc *gg.Context, p Panel, rate float64) {
	if len(p.Lead.Samples) == 0 || rate <= 0 {
		return
	}
	dc.NewSubPath()
	for i, mv := range p.Lead.Samples {
		x, y := p.X(float64(i)/rate), p.Y(mv)
		if i == 0 {
			dc.MoveTo(x, y)
			continue
		}
		dc.LineTo(x, y)
	}
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1.2)
	dc.Stroke()
}

// drawCalibration draws the 1 mV x 0.2 s reference pulse, its base a tenth
// of the way up the panel.
func drawCalibration(dc *gg.Context, p Panel) {
	base := p.Lo + (p.Hi-p.Lo)*0.1
	x0, x1 := p.X(CalibrationStart), p.X(CalibrationStart+CalibrationWidth)
	y0, y1 := p.Y(base), p.Y(base+CalibrationMV)

	dc.MoveTo(x0, y0)
	dc.LineTo(x0, y1)
	dc.LineTo(x1, y1)
	dc.LineTo(x1, y0)
	dc.SetRGB255(30, 60, 220)
	dc.SetLineWidth(2)
	dc.Stroke()
}

func drawLabels(dc *gg.Context, p Panel) {
	b := p.Bounds
	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(p.Label, b.X-8, b.Y+b.H/2, 1, 0.5)

	if !p.TimeAxis {
		return
	}
	step := labelStep(b.W, p.Duration)
	for _, t := range ticks(0, p.Duration, step) {
		dc.DrawStringAnchored(fmt.Sprintf("%.0f", t), p.X(t), b.Y+b.H+12, 0.5, 0.5)
	}
	dc.DrawStringAnchored("Time (s)", b.X+b.W, b.Y+b.H+28, 1, 0.5)
}

// spacing is the distance in pixels between grid lines step apart when span
// units are drawn over px pixels.
func spacing(px, span, step float64) float64 {
	if !(span > 0) || !finite(span) {
		return 0
	}
	return px * step / span
}

// minLabelPx keeps time labels from overlapping.
const minLabelPx = 40

// labelStep is the smallest whole-second step from the 1-2-5 series whose
// labels sit at least minLabelPx apart.
func labelStep(width, duration float64) float64 {
	for mag := 1.0; ; mag *= 10 {
		for _, m := range []float64{1, 2, 5} {
			step := m * mag
			if spacing(width, duration, step) >= minLabelPx || step >= duration || math.IsInf(step, 0) {
				return step
			}
		}
	}
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}
