package ecg

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var (
	ErrNoRecordings      = errors.New("ecg: Registros element not found")
	ErrMissingSampleRate = errors.New("ecg: TaxaAmostragem attribute not found in Registros")
	ErrInvalidSampleRate = errors.New("ecg: TaxaAmostragem holds no positive number")
	ErrNoLeadData        = errors.New("ecg: no valid ECG data found after parsing channels")
)

var firstNumber = regexp.MustCompile(`\d+`)

// SyntaxError is malformed XML, with the lines around the failure.
type SyntaxError struct {
	Line    int
	Context []string
	Err     error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("ecg: malformed XML at line %d: %v", e.Line, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// node is a generic element tree, enough for path lookups.
type node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Nodes   []node     `xml:",any"`
}

func (n *node) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (n *node) child(name string) *node {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			return &n.Nodes[i]
		}
	}
	return nil
}

// walk visits descendants of n in document order until fn returns false.
func (n *node) walk(fn func(*node) bool) bool {
	for i := range n.Nodes {
		if !fn(&n.Nodes[i]) || !n.Nodes[i].walk(fn) {
			return false
		}
	}
	return true
}

// find returns the first descendant named parent that has a direct child
// named leaf, and that child. With no leaf it returns the descendant itself.
func (n *node) find(parent string, leaf ...string) *node {
	var found *node
	n.walk(func(c *node) bool {
		if c.XMLName.Local != parent {
			return true
		}
		if len(leaf) == 0 {
			found = c
			return false
		}
		if l := c.child(leaf[0]); l != nil {
			found = l
			return false
		}
		return true
	})
	return found
}

func (n *node) findAll(name string) []*node {
	var out []*node
	n.walk(func(c *node) bool {
		if c.XMLName.Local == name {
			out = append(out, c)
		}
		return true
	})
	return out
}

func (n *node) text(parent, leaf, fallback string) string {
	if c := n.find(parent, leaf); c != nil && strings.TrimSpace(c.Text) != "" {
		return strings.TrimSpace(c.Text)
	}
	return fallback
}

// Decode returns a UTF-8 view of an upload. Bytes that are not valid UTF-8
// are read as ISO-8859-1. The flag reports whether transcoding happened.
func Decode(data []byte) (io.Reader, bool) {
	if utf8.Valid(data) {
		return bytes.NewReader(data), false
	}
	return transform.NewReader(bytes.NewReader(data), charmap.ISO8859_1.NewDecoder()), true
}

// Parse reads a whole exam document.
func Parse(r io.Reader) (*Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ecg: read document: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes parses an exam held in memory.
func ParseBytes(data []byte) (*Record, error) {
	src, transcoded := Decode(data)

	dec := xml.NewDecoder(src)
	dec.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		if transcoded {
			return input, nil
		}
		return charset.NewReaderLabel(label, input)
	}

	var root node
	if err := dec.Decode(&root); err != nil {
		var se *xml.SyntaxError
		if errors.As(err, &se) {
			return nil, &SyntaxError{Line: se.Line, Context: surrounding(data, se.Line), Err: err}
		}
		return nil, &SyntaxError{Err: err}
	}

	rec := &Record{}
	if err := parseRecording(&root, rec); err != nil {
		return nil, err
	}
	parseLeads(&root, rec)
	if len(rec.Leads) == 0 {
		return nil, ErrNoLeadData
	}
	parseMetadata(&root, rec)

	return rec, nil
}

func parseRecording(root *node, rec *Record) error {
	reg := root.find("Registros")
	if reg == nil {
		return ErrNoRecordings
	}

	rate, ok := reg.attr("TaxaAmostragem")
	if !ok {
		return ErrMissingSampleRate
	}
	// the scale is fixed, so Sensibilidade is informational only
	sens, ok := reg.attr("Sensibilidade")
	if !ok {
		rec.Warnings = append(rec.Warnings, "Sensibilidade attribute not found in Registros; assuming 5 uV per unit")
	}

	digits := firstNumber.FindString(rate)
	hz, err := strconv.ParseFloat(digits, 64)
	if err != nil || hz <= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidSampleRate, rate)
	}

	rec.Recording = Recording{
		SampleRate:     hz,
		SampleRateRaw:  rate,
		SensitivityRaw: sens,
		SensitivityMV:  SensitivityMV,
		Speed:          root.text("Registro", "Velocidade", ""),
		HeartRate:      root.text("Registro", "FrequenciaCardiaca", ""),
	}
	return nil
}

func parseLeads(root *node, rec *Record) {
	for _, canal := range root.findAll("Canal") {
		name, _ := canal.attr("Nome")

		amostras := canal.child("Amostras")
		if amostras == nil || strings.TrimSpace(amostras.Text) == "" {
			rec.Warnings = append(rec.Warnings, fmt.Sprintf("channel %q has no Amostras data, skipped", name))
			continue
		}

		samples, err := parseSamples(amostras.Text, rec.Recording.SensitivityMV)
		if err != nil {
			rec.Warnings = append(rec.Warnings, fmt.Sprintf("channel %q: %v, skipped", name, err))
			continue
		}
		if len(samples) == 0 {
			rec.Warnings = append(rec.Warnings, fmt.Sprintf("channel %q has no samples, skipped", name))
			continue
		}

		lead := Lead{Name: name, Samples: samples}
		if i := leadIndex(rec.Leads, name); i >= 0 {
			rec.Warnings = append(rec.Warnings, fmt.Sprintf("channel %q repeated, last one kept", name))
			rec.Leads[i] = lead
			continue
		}
		rec.Leads = append(rec.Leads, lead)
	}
}

func leadIndex(leads []Lead, name string) int {
	for i, l := range leads {
		if l.Name == name {
			return i
		}
	}
	return -1
}

// parseSamples splits ';'-separated raw units and scales them to mV.
func parseSamples(text string, scale float64) ([]float64, error) {
	text = strings.NewReplacer("\r", "", "\n", "").Replace(text)

	parts := strings.Split(text, ";")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, fmt.Errorf("bad sample %q", truncate(p, 32))
		}
		out = append(out, v*scale)
	}
	return out, nil
}

func parseMetadata(root *node, rec *Record) {
	rec.Patient = Patient{
		Name:      root.text("Paciente", "Nome", UnknownName),
		Sex:       root.text("Paciente", "Sexo", NotAvailable),
		BirthDate: root.text("Paciente", "DataNascimento", ""),
	}
	rec.Exam = Exam{
		Date: root.text("Exame", "Data", NotAvailable),
		Time: root.text("Exame", "Hora", NotAvailable),
	}
	rec.Patient.Age = Age(rec.Patient.BirthDate, rec.Exam.Date)
}

// Age is the exam year minus the birth year, each taken from the last
// '/'-separated field of a date. It is N/A when either year is unusable.
func Age(birthDate, examDate string) string {
	if birthDate == "" {
		return NotAvailable
	}
	born, err := lastYear(birthDate)
	if err != nil {
		return NotAvailable
	}
	examined, err := lastYear(examDate)
	if err != nil {
		return NotAvailable
	}
	return strconv.Itoa(examined - born)
}

func lastYear(date string) (int, error) {
	fields := strings.Split(date, "/")
	return strconv.Atoi(strings.TrimSpace(fields[len(fields)-1]))
}

// surrounding returns up to two lines either side of line (1-based).
func surrounding(data []byte, line int) []string {
	lines := strings.Split(string(data), "\n")
	start := max(0, line-3)
	end := min(len(lines), line+2)
	if start >= end {
		return nil
	}
	out := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, fmt.Sprintf("%d: %s", i+1, truncate(strings.TrimRight(lines[i], "\r"), 120)))
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
