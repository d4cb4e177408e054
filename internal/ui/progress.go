package ui

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	barWidth      = 40
	redrawEvery   = 100 * time.Millisecond
	labelUpload   = "⬆️  Uploading...  "
	labelSave     = "💾 Saving...     "
	bytesPerMByte = 1024 * 1024
)

// progress draws a single-line bar on out.
type progress struct {
	label      string
	out        io.Writer
	Total      int64
	Current    int64
	startTime  time.Time
	lastUpdate time.Time
}

func (p *progress) add(n int) {
	if n == 0 {
		return
	}
	p.Current += int64(n)
	p.print()
}

func (p *progress) print() {
	if p.out == nil || p.Total <= 0 {
		return
	}
	// Only update every 100ms or if complete to avoid flashing
	if p.Current < p.Total && time.Since(p.lastUpdate) < redrawEvery {
		return
	}
	p.lastUpdate = time.Now()

	ratio := float64(p.Current) / float64(p.Total)
	if ratio > 1 {
		ratio = 1
	}
	completed := int(float64(barWidth) * ratio)
	bar := strings.Repeat("█", completed) + strings.Repeat("░", barWidth-completed)

	// Speed calcs
	duration := time.Since(p.startTime).Seconds()
	if duration == 0 {
		duration = 0.0001
	}
	speed := float64(p.Current) / bytesPerMByte / duration

	fmt.Fprintf(p.out, "\r%s[%s] %.1f%% (%.2f MB/s)", p.label, bar, ratio*100, speed)
	if p.Current >= p.Total {
		fmt.Fprintln(p.out)
	}
}

// ProgressWriter tracks the number of bytes written and updates a progress bar
type ProgressWriter struct {
	progress
	Writer io.Writer
}

// NewProgressWriter reports to out while writing total bytes to w. A nil out
// disables the bar.
func NewProgressWriter(total int64, w, out io.Writer) *ProgressWriter {
	return &ProgressWriter{
		progress: progress{label: labelSave, out: out, Total: total, startTime: time.Now()},
		Writer:   w,
	}
}

func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.add(n)
	return n, err
}

// ProgressReader tracks the number of bytes read and updates a progress bar
type ProgressReader struct {
	progress
	Reader io.Reader
}

// NewProgressReader reports to out while total bytes are read from r.
func NewProgressReader(total int64, r io.Reader, out io.Writer) *ProgressReader {
	return &ProgressReader{
		progress: progress{label: labelUpload, out: out, Total: total, startTime: time.Now()},
		Reader:   r,
	}
}

func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	pr.add(n)
	return n, err
}

// UploadProgress adapts NewProgressReader to client.WithBodyWrapper.
func UploadProgress(out io.Writer) func(io.Reader, int64) io.Reader {
	return func(r io.Reader, size int64) io.Reader {
		return NewProgressReader(size, r, out)
	}
}
