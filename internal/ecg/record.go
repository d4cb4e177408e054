// Package ecg reads ECG exams exported as XML and exposes them as leads of
// millivolt samples plus patient and exam metadata.
package ecg

import (
	"math"
)

// SensitivityMV is the amplitude of one raw sample unit (5 uV).
const SensitivityMV = 0.005

// RhythmLead is drawn full width under the 12-lead grid.
const RhythmLead = "DII"

// StandardLeads is the conventional 12-lead reading order.
var StandardLeads = []string{"DI", "DII", "DIII", "aVR", "aVL", "aVF", "V1", "V2", "V3", "V4", "V5", "V6"}

const (
	UnknownName  = "Unknown"
	NotAvailable = "N/A"
)

type Patient struct {
	Name      string `json:"name"`
	Sex       string `json:"sex"`
	BirthDate string `json:"birth_date"`
	Age       string `json:"age"`
}

type Exam struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type Recording struct {
	SampleRate     float64 `json:"sample_rate_hz"`
	SampleRateRaw  string  `json:"sample_rate_raw"`
	SensitivityRaw string  `json:"sensitivity_raw"`
	SensitivityMV  float64 `json:"sensitivity_mv"`
	Speed          string  `json:"speed_mm_s,omitempty"`
	HeartRate      string  `json:"heart_rate_bpm,omitempty"`
}

// Lead is one channel. Samples are in millivolts, spaced 1/SampleRate apart.
type Lead struct {
	Name    string    `json:"name"`
	Samples []float64 `json:"-"`
}

// Record is a parsed exam. Leads keep document order and only hold channels
// that produced at least one sample.
type Record struct {
	Patient   Patient   `json:"patient"`
	Exam      Exam      `json:"exam"`
	Recording Recording `json:"recording"`
	Leads     []Lead    `json:"leads"`
	Warnings  []string  `json:"warnings,omitempty"`
}

// Lead returns the named lead.
func (r *Record) Lead(name string) (Lead, bool) {
	for _, l := range r.Leads {
		if l.Name == name {
			return l, true
		}
	}
	return Lead{}, false
}

// Ordered returns the 12 standard leads in reading order. Leads missing from
// the exam come back with no samples.
func (r *Record) Ordered() []Lead {
	out := make([]Lead, 0, len(StandardLeads))
	for _, name := range StandardLeads {
		l, ok := r.Lead(name)
		if !ok {
			l = Lead{Name: name}
		}
		out = append(out, l)
	}
	return out
}

// Duration is the length in seconds of the longest lead.
func (r *Record) Duration() float64 {
	if r.Recording.SampleRate <= 0 {
		return 0
	}
	longest := 0
	for _, l := range r.Leads {
		if len(l.Samples) > longest {
			longest = len(l.Samples)
		}
	}
	return float64(longest) / r.Recording.SampleRate
}

// Range is the shared vertical extent in mV: the sample extremes snapped
// outward to 0.5 mV, widened to at least 1 mV around its midpoint.
func (r *Record) Range() (lo, hi float64) {
	lowest, highest := math.Inf(1), math.Inf(-1)
	for _, l := range r.Leads {
		for _, s := range l.Samples {
			lowest = math.Min(lowest, s)
			highest = math.Max(highest, s)
		}
	}
	if math.IsInf(lowest, 1) {
		return -0.5, 0.5
	}

	lo = math.Floor(lowest/0.5) * 0.5
	hi = math.Ceil(highest/0.5) * 0.5
	if math.Abs(hi-lo) < 1.0 {
		mid := (hi + lo) / 2
		lo, hi = mid-0.5, mid+0.5
	}
	return lo, hi
}

// Title is the chart heading.
func (r *Record) Title() string {
	return "ECG - Patient: " + r.Patient.Name +
		" (" + r.Patient.Sex + ", " + r.Patient.Age + " years) - Date: " +
		r.Exam.Date + " " + r.Exam.Time
}

type LeadSummary struct {
	Name    string  `json:"name"`
	Samples int     `json:"samples"`
	MinMV   float64 `json:"min_mv"`
	MaxMV   float64 `json:"max_mv"`
}

// Summary is the JSON view of a record without the raw samples.
type Summary struct {
	Patient         Patient       `json:"patient"`
	Exam            Exam          `json:"exam"`
	Recording       Recording     `json:"recording"`
	Leads           []LeadSummary `json:"leads"`
	DurationSeconds float64       `json:"duration_seconds"`
	RangeMV         [2]float64    `json:"range_mv"`
	Warnings        []string      `json:"warnings,omitempty"`
}

func (r *Record) Summary() Summary {
	lo, hi := r.Range()
	s := Summary{
		Patient:         r.Patient,
		Exam:            r.Exam,
		Recording:       r.Recording,
		Leads:           make([]LeadSummary, 0, len(r.Leads)),
		DurationSeconds: r.Duration(),
		RangeMV:         [2]float64{lo, hi},
		Warnings:        r.Warnings,
	}
	for _, l := range r.Leads {
		ls := LeadSummary{Name: l.Name, Samples: len(l.Samples)}
		for i, v := range l.Samples {
			if i == 0 || v < ls.MinMV {
				ls.MinMV = v
			}
			if i == 0 || v > ls.MaxMV {
				ls.MaxMV = v
			}
		}
		s.Leads = append(s.Leads, ls)
	}
	return s
}
