package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"ecgview/internal/errs"
	"ecgview/internal/protocol"
	"ecgview/web"
)

// handlerFunc is a handler that reports failure by returning an error.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestID, s.RequestLogger, s.Recover)

	r.HandleFunc("/", s.wrap(s.handleIndex)).Methods(http.MethodGet)
	r.HandleFunc(protocol.HealthPath, s.wrap(s.handleHealth)).Methods(http.MethodGet)
	r.HandleFunc(protocol.UploadPath, s.wrap(s.handleUpload)).Methods(http.MethodPost)
	r.HandleFunc(protocol.SummaryPath, s.wrap(s.handleSummary)).Methods(http.MethodPost)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(web.Static()))))

	// mux skips middleware for unmatched routes; wrap the fallbacks so they
	// still carry request IDs and access logs.
	chain := func(h http.Handler) http.Handler {
		return RequestID(s.RequestLogger(s.Recover(h)))
	}
	r.NotFoundHandler = chain(s.wrap(func(w http.ResponseWriter, r *http.Request) error {
		return errs.NewNotFoundError("route not found")
	}))
	r.MethodNotAllowedHandler = chain(s.wrap(func(w http.ResponseWriter, r *http.Request) error {
		return &errs.HTTPError{
			Code:    errs.MakeUpperCaseWithUnderscores(http.StatusText(http.StatusMethodNotAllowed)),
			Message: "method not allowed",
			Status:  http.StatusMethodNotAllowed,
		}
	}))
	return r
}

// wrap is the error funnel: *errs.HTTPError values are written as plain text
// with their status, anything else becomes a generic 500. Causes are logged,
// never sent.
func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}

		var httpErr *errs.HTTPError
		if !errors.As(err, &httpErr) {
			httpErr = errs.NewInternalServerError("", err)
		}

		logger := zerolog.Ctx(r.Context())
		e := logger.Warn()
		if httpErr.Status >= http.StatusInternalServerError {
			e = logger.Error()
		}
		e.Err(httpErr.Err).
			Int("status", httpErr.Status).
			Str("error_code", httpErr.Code).
			Msg(httpErr.Message)

		writeHTTPError(w, httpErr)
	}
}

func writeHTTPError(w http.ResponseWriter, e *errs.HTTPError) {
	w.Header().Set("Content-Type", protocol.ContentTypeText)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(e.Status)
	_, _ = w.Write([]byte(e.Message))
}
