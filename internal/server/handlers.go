package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"ecgview/internal/ecg"
	"ecgview/internal/errs"
	"ecgview/internal/protocol"
	"ecgview/internal/render"
	"ecgview/web"
)

const (
	// multipartMemory is how much of a form is held in memory before parts
	// spill to temp files.
	multipartMemory = 8 << 20
	healthTimeout   = 5 * time.Second
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) error {
	var buf bytes.Buffer
	err := s.pages.ExecuteTemplate(&buf, "index.html", web.PageData{
		Layout:      s.Config.Render.Layout,
		MaxUploadMB: s.Config.Server.MaxUploadBytes >> 20,
		Env:         s.Config.Primary.Env,
	})
	if err != nil {
		return errs.NewInternalServerError("", err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
	return nil
}

type healthCheck struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time"`
	Error        string `json:"error,omitempty"`
}

type healthResponse struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Environment string                 `json:"environment"`
	Checks      map[string]healthCheck `json:"checks"`
}

// handleHealth reports 200 when the cache answers, 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) error {
	resp := healthResponse{
		Status:      "healthy",
		Timestamp:   time.Now().UTC(),
		Environment: s.Config.Primary.Env,
		Checks:      make(map[string]healthCheck),
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	start := time.Now()
	check := healthCheck{Status: "healthy"}
	if err := s.Cache.Ping(ctx); err != nil {
		check.Status = "unhealthy"
		check.Error = err.Error()
		resp.Status = "unhealthy"
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("cache health check failed")
	}
	check.ResponseTime = time.Since(start).String()
	resp.Checks["cache"] = check

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	return writeJSON(w, status, resp)
}

// handleUpload renders the uploaded exam as PNG.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) error {
	logger := zerolog.Ctx(r.Context())

	layout, err := s.layout(r)
	if err != nil {
		return errs.NewBadRequestError(err.Error())
	}

	// 1. Read the form file
	data, name, err := s.readUpload(w, r)
	if err != nil {
		return err
	}

	// 2. Checksum and cache lookup
	checksum, err := protocol.ComputeChecksum(bytes.NewReader(data))
	if err != nil {
		return errs.NewInternalServerError(protocol.MsgRenderFailed, err)
	}
	key := protocol.CacheKey(string(layout), checksum)

	if png, ok, err := s.Cache.Get(r.Context(), key); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("cache lookup failed")
	} else if ok {
		logger.Debug().Str("file", name).Str("key", key).Msg("serving cached chart")
		writePNG(w, png)
		return nil
	}

	// 3. Parse and render
	rec, err := ecg.ParseBytes(data)
	if err != nil {
		return errs.NewInternalServerError(protocol.MsgRenderFailed, err)
	}
	for _, warning := range rec.Warnings {
		logger.Warn().Str("file", name).Msg(warning)
	}

	var buf bytes.Buffer
	opts := render.Options{
		Layout: layout,
		Width:  s.Config.Render.Width,
		Height: s.Config.Render.Height,
	}
	if err := render.Render(&buf, rec, opts); err != nil {
		return errs.NewInternalServerError(protocol.MsgRenderFailed, err)
	}

	// 4. Store and respond
	if err := s.Cache.Set(r.Context(), key, buf.Bytes()); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("cache store failed")
	}

	logger.Info().
		Str("file", name).
		Str("layout", string(layout)).
		Int("leads", len(rec.Leads)).
		Int("png_bytes", buf.Len()).
		Msg("chart rendered")

	writePNG(w, buf.Bytes())
	return nil
}

// handleSummary returns the exam metadata as JSON.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) error {
	data, _, err := s.readUpload(w, r)
	if err != nil {
		return err
	}

	rec, err := ecg.ParseBytes(data)
	if err != nil {
		return errs.NewInternalServerError(protocol.MsgRenderFailed, err)
	}
	return writeJSON(w, http.StatusOK, rec.Summary())
}

func (s *Server) layout(r *http.Request) (render.Layout, error) {
	if q := r.URL.Query().Get(protocol.LayoutQuery); q != "" {
		return render.ParseLayout(q)
	}
	return render.ParseLayout(s.Config.Render.Layout)
}

// readUpload returns the bytes and filename of the ecg_file field.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.Config.Server.MaxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", errs.NewPayloadTooLargeError(protocol.MsgTooLarge).WithCause(err)
		}
		return nil, "", errs.NewBadRequestError(protocol.MsgNoFileSent).WithCause(err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(protocol.UploadField)
	if err != nil {
		// a file input submitted with nothing chosen arrives as a plain value
		if _, ok := r.MultipartForm.Value[protocol.UploadField]; ok {
			return nil, "", errs.NewBadRequestError(protocol.MsgNoFileSelected)
		}
		return nil, "", errs.NewBadRequestError(protocol.MsgNoFileSent).WithCause(err)
	}
	defer file.Close()

	if header.Filename == "" {
		return nil, "", errs.NewBadRequestError(protocol.MsgNoFileSelected)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", errs.NewBadRequestError(protocol.MsgNoFileSent).WithCause(err)
	}
	return data, header.Filename, nil
}

func writePNG(w http.ResponseWriter, png []byte) {
	w.Header().Set("Content-Type", protocol.ContentTypePNG)
	w.Header().Set("Content-Disposition", "inline")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	body, err := sonic.Marshal(v)
	if err != nil {
		return errs.NewInternalServerError("", err)
	}
	w.Header().Set("Content-Type", protocol.ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(body)
	return nil
}
