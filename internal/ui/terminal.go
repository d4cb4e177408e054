package ui

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ecgview/internal/client"
)

// TerminalView renders the upload form on a terminal. The chart is written to
// OutputPath instead of being displayed.
type TerminalView struct {
	Out        io.Writer
	Err        io.Writer
	OutputPath string
	// Quiet suppresses the loading line and progress bars.
	Quiet bool

	saved   []string
	saveErr error
}

func NewTerminalView(out, errOut io.Writer, outputPath string) *TerminalView {
	return &TerminalView{Out: out, Err: errOut, OutputPath: outputPath}
}

func (v *TerminalView) HideError() {}

func (v *TerminalView) ShowError(msg string) {
	fmt.Fprintf(v.Err, "❌ %s\n", msg)
}

func (v *TerminalView) ShowLoading() {
	if !v.Quiet {
		fmt.Fprintln(v.Out, "⏳ Rendering ECG chart...")
	}
}

func (v *TerminalView) HideLoading() {}

func (v *TerminalView) ClearResult() {
	v.saved = nil
	v.saveErr = nil
}

// AppendImage saves img to OutputPath. A failure to save is reported like any
// other error on the view and kept for SaveErr.
func (v *TerminalView) AppendImage(img client.Image) {
	if err := v.save(img); err != nil {
		v.saveErr = fmt.Errorf("could not save chart: %w", err)
		v.ShowError(v.saveErr.Error())
		return
	}
	v.saved = append(v.saved, v.OutputPath)
	fmt.Fprintf(v.Out, "✅ %s saved to %s (%d bytes)\n", img.Alt, v.OutputPath, len(img.Data))
}

// Saved lists the files written since the last ClearResult.
func (v *TerminalView) Saved() []string {
	return v.saved
}

// SaveErr is the last failure to write a chart since ClearResult.
func (v *TerminalView) SaveErr() error {
	return v.saveErr
}

func (v *TerminalView) save(img client.Image) error {
	if dir := filepath.Dir(v.OutputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(v.OutputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var bar io.Writer
	if !v.Quiet {
		bar = v.Out
	}
	pw := NewProgressWriter(int64(len(img.Data)), f, bar)
	if _, err := io.Copy(pw, bytes.NewReader(img.Data)); err != nil {
		return err
	}
	return f.Close()
}
