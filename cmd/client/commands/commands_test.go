package commands

import (
	"bytes"
	"context"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecgview/internal/config"
	"ecgview/internal/discovery"
	"ecgview/internal/ecg"
	"ecgview/internal/server"
)

const examPath = "../../../internal/ecg/testdata/exam.xml"

func startServer(t *testing.T) string {
	t.Helper()
	cfg := config.Default()
	cfg.Render.Width = 640
	cfg.Render.Height = 480
	logger := zerolog.Nop()
	s, err := server.New(cfg, &logger, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func copyExam(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(examPath)
	require.NoError(t, err)
	path := filepath.Join(dir, "exam.xml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestUpload_SavesChart(t *testing.T) {
	base := startServer(t)
	dir := t.TempDir()
	src := copyExam(t, dir)

	stdout, stderr, err := run(t, "upload", src, "--server", base, "--quiet")
	require.NoError(t, err, stderr)

	out := filepath.Join(dir, "exam.png")
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
	assert.Contains(t, stdout, "saved to "+out)
}

func TestUpload_ServerFromEnv(t *testing.T) {
	t.Setenv(serverEnv, startServer(t))
	dir := t.TempDir()
	src := copyExam(t, dir)
	out := filepath.Join(dir, "charts", "strip.png")

	_, stderr, err := run(t, "upload", src, "-o", out, "--layout", "strip")
	require.NoError(t, err, stderr)
	assert.FileExists(t, out)
	assert.Contains(t, stderr, "Uploading")
}

func TestUpload_NoFile(t *testing.T) {
	_, stderr, err := run(t, "upload")
	require.Error(t, err)
	assert.True(t, Shown(err))
	assert.Contains(t, stderr, "please select an XML file.")
}

func TestUpload_ServerError(t *testing.T) {
	base := startServer(t)
	src := filepath.Join(t.TempDir(), "broken.xml")
	require.NoError(t, os.WriteFile(src, []byte("<Registros"), 0o644))

	_, stderr, err := run(t, "upload", src, "-s", base, "-q")
	require.Error(t, err)
	assert.True(t, Shown(err))
	assert.Contains(t, stderr, "server error: 500 - failed to render the ECG chart.")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(src), "broken.png"))
}

func TestUpload_SaveFailure(t *testing.T) {
	base := startServer(t)
	dir := t.TempDir()
	src := copyExam(t, dir)

	_, stderr, err := run(t, "--server", base, "upload", src, "-o", dir, "-q")
	require.Error(t, err)
	assert.True(t, Shown(err))
	assert.Contains(t, err.Error(), "could not save chart")
	assert.Contains(t, stderr, "could not save chart")
}

func TestSummary_PrintsJSON(t *testing.T) {
	base := startServer(t)
	src := copyExam(t, t.TempDir())

	stdout, _, err := run(t, "summary", src, "-s", base)
	require.NoError(t, err)

	var summary ecg.Summary
	require.NoError(t, sonic.UnmarshalString(stdout, &summary))
	assert.Equal(t, "Maria Silva", summary.Patient.Name)
	assert.Len(t, summary.Leads, 12)
}

func TestDiscover(t *testing.T) {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = discovery.Serve(ctx, conn, "http://127.0.0.1:5000", zerolog.Nop()) }()

	stdout, _, err := run(t, "discover", "--target", conn.LocalAddr().String())
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:5000\n", stdout)
}

func TestPngName(t *testing.T) {
	assert.Equal(t, "exams/a.png", pngName("exams/a.xml"))
	assert.Equal(t, "b.png", pngName("b"))
}
