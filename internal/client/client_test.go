package client_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecgview/internal/client"
	"ecgview/internal/protocol"
)

// recordingView keeps every call in order so tests can assert on the flow.
type recordingView struct {
	calls   []string
	errors  []string
	images  []client.Image
	loading bool
}

func (v *recordingView) HideError()   { v.calls = append(v.calls, "hide-error") }
func (v *recordingView) ClearResult() { v.calls = append(v.calls, "clear") }

func (v *recordingView) ShowError(msg string) {
	v.calls = append(v.calls, "show-error")
	v.errors = append(v.errors, msg)
}

func (v *recordingView) ShowLoading() {
	v.calls = append(v.calls, "loading")
	v.loading = true
}

func (v *recordingView) HideLoading() {
	v.calls = append(v.calls, "done")
	v.loading = false
}

func (v *recordingView) AppendImage(img client.Image) {
	v.calls = append(v.calls, "image")
	v.images = append(v.images, img)
}

func writeExport(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exam.xml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestSubmit_NoFileSelected(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	view := &recordingView{}
	form := &client.Form{View: view, Uploader: client.New(srv.URL)}

	err := form.Submit(context.Background())
	require.ErrorIs(t, err, client.ErrNoFileSelected)
	assert.Equal(t, []string{"please select an XML file."}, view.errors)
	assert.Equal(t, []string{"hide-error", "clear", "show-error"}, view.calls)
	assert.Zero(t, hits.Load(), "no request may be sent")
	assert.False(t, view.loading)
}

func TestSubmit_Success(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	var gotField, gotName, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, protocol.UploadPath, r.URL.Path)
		file, header, err := r.FormFile(protocol.UploadField)
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotField, gotName, gotBody = protocol.UploadField, header.Filename, string(data)

		w.Header().Set("Content-Type", protocol.ContentTypePNG)
		_, _ = w.Write(png)
	}))
	defer srv.Close()

	view := &recordingView{}
	form := &client.Form{
		Files:    []string{writeExport(t, "<Registros/>"), "ignored.xml"},
		View:     view,
		Uploader: client.New(srv.URL),
	}

	require.NoError(t, form.Submit(context.Background()))
	assert.Equal(t, "ecg_file", gotField)
	assert.Equal(t, "exam.xml", gotName)
	assert.Equal(t, "<Registros/>", gotBody)

	require.Len(t, view.images, 1)
	assert.Equal(t, png, view.images[0].Data)
	assert.Equal(t, protocol.ContentTypePNG, view.images[0].ContentType)
	assert.Equal(t, client.ChartAlt, view.images[0].Alt)
	assert.Empty(t, view.errors)
	assert.Equal(t, []string{"hide-error", "clear", "loading", "image", "done"}, view.calls)
}

func TestSubmit_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("failed to render the ECG chart. check the XML format and metadata."))
	}))
	defer srv.Close()

	view := &recordingView{}
	form := &client.Form{
		Files:    []string{writeExport(t, "<broken")},
		View:     view,
		Uploader: client.New(srv.URL),
	}

	err := form.Submit(context.Background())
	var serr *client.ServerError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusInternalServerError, serr.StatusCode)

	require.Len(t, view.errors, 1)
	assert.Equal(t, "server error: 500 - failed to render the ECG chart. check the XML format and metadata.", view.errors[0])
	assert.Empty(t, view.images)
	assert.False(t, view.loading)
}

func TestSubmit_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	view := &recordingView{}
	form := &client.Form{
		Files:    []string{writeExport(t, "<Registros/>")},
		View:     view,
		Uploader: client.New(url),
	}

	err := form.Submit(context.Background())
	require.Error(t, err)
	require.Len(t, view.errors, 1)
	assert.True(t, strings.HasPrefix(view.errors[0], "network or client error: "))
	assert.Contains(t, view.errors[0], err.Error())
	assert.Empty(t, view.images)
	assert.False(t, view.loading)
	assert.Equal(t, "done", view.calls[len(view.calls)-1])
}

func TestSubmit_UnreadableFile(t *testing.T) {
	view := &recordingView{}
	form := &client.Form{
		Files:    []string{filepath.Join(t.TempDir(), "missing.xml")},
		View:     view,
		Uploader: client.New("http://127.0.0.1:1"),
	}

	err := form.Submit(context.Background())
	require.Error(t, err)
	require.Len(t, view.errors, 1)
	assert.Contains(t, view.errors[0], "network or client error: ")
	assert.Contains(t, view.errors[0], "missing.xml")
	assert.False(t, view.loading)
}

func TestSubmit_ClearsPreviousResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("png"))
	}))
	defer srv.Close()

	view := &recordingView{}
	form := &client.Form{
		Files:    []string{writeExport(t, "<Registros/>")},
		View:     view,
		Uploader: client.New(srv.URL),
	}

	require.NoError(t, form.Submit(context.Background()))
	view.calls = nil
	require.NoError(t, form.Submit(context.Background()))
	assert.Equal(t, []string{"hide-error", "clear", "loading", "image", "done"}, view.calls)
}

func TestClient_LayoutAndWrapper(t *testing.T) {
	var gotLayout string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLayout = r.URL.Query().Get(protocol.LayoutQuery)
		_, _ = w.Write([]byte("png"))
	}))
	defer srv.Close()

	var wrappedSize int64
	var read int64
	c := client.New(srv.URL+"/",
		client.WithLayout("strip"),
		client.WithBodyWrapper(func(r io.Reader, size int64) io.Reader {
			wrappedSize = size
			return readerFunc(func(p []byte) (int, error) {
				n, err := r.Read(p)
				read += int64(n)
				return n, err
			})
		}),
	)

	_, err := c.Upload(context.Background(), "exam.xml", strings.NewReader("<Registros/>"), 12)
	require.NoError(t, err)
	assert.Equal(t, "strip", gotLayout)
	assert.Positive(t, wrappedSize)
	assert.Equal(t, wrappedSize, read)
}

func TestClient_Summary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case protocol.SummaryPath:
			w.Header().Set("Content-Type", protocol.ContentTypeJSON)
			_, _ = w.Write([]byte(`{"patient":{"name":"Maria Silva","sex":"F","birth_date":"12/03/1980","age":"44"},` +
				`"exam":{"date":"05/06/2024","time":"14:32"},"recording":{"sample_rate_hz":250},` +
				`"leads":[{"name":"DI","samples":500,"min_mv":-0.5,"max_mv":1}],"duration_seconds":2,"range_mv":[-1,1.5]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	summary, err := client.New(srv.URL).Summary(context.Background(), "exam.xml", strings.NewReader("<x/>"))
	require.NoError(t, err)
	assert.Equal(t, "Maria Silva", summary.Patient.Name)
	assert.Equal(t, "44", summary.Patient.Age)
	assert.Equal(t, 250.0, summary.Recording.SampleRate)
	require.Len(t, summary.Leads, 1)
	assert.Equal(t, 500, summary.Leads[0].Samples)
	assert.Equal(t, [2]float64{-1, 1.5}, summary.RangeMV)
}

func TestClient_SummaryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no file selected", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := client.New(srv.URL).Summary(context.Background(), "", strings.NewReader(""))
	var serr *client.ServerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusBadRequest, serr.StatusCode)
	assert.Equal(t, "no file selected\n", serr.Body)
}

type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }
