package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wjkennedy/cjm/internal/ingest"
	"github.com/wjkennedy/cjm/internal/journey"
	"github.com/wjkennedy/cjm/internal/layout"
)

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	ids, err := s.query.Customers(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.render(w, "index.html", map[string]any{"Customers": ids})
}

func (s *Server) uploadForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, "upload.html", nil)
}

// upload saves the multipart field json_file under the upload directory,
// ingests it and redirects to the index.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("json_file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "json_file is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		s.respondError(w, http.StatusBadRequest, "json_file has no file name")
		return
	}
	if _, err := ingest.FormatFromPath(name); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	path, err := s.save(name, file)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	batch, err := ingest.DecodeFile(path)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	res, err := s.pipeline.Ingest(r.Context(), batch)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.logger.Info("upload ingested", "file", name, "run_id", res.RunID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) save(name string, src io.Reader) (string, error) {
	if err := os.MkdirAll(s.opts.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(s.opts.UploadDir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("save upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

// postBatch ingests a raw JSON body, or YAML when the content type says so.
func (s *Server) postBatch(w http.ResponseWriter, r *http.Request) {
	var body bytes.Buffer
	if _, err := body.ReadFrom(http.MaxBytesReader(w, r.Body, maxUploadBytes)); err != nil {
		s.respondError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	batch, err := ingest.Decode(body.Bytes(), requestFormat(r))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	res, err := s.pipeline.Ingest(r.Context(), batch)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, res)
}

func requestFormat(r *http.Request) ingest.Format {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.Contains(mt, "yaml") {
		return ingest.FormatYAML
	}
	return ingest.FormatJSON
}

func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request) {
	ids, err := s.query.Customers(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"customers": ids})
}

func (s *Server) getJourney(w http.ResponseWriter, r *http.Request) {
	customerID, ok := s.customerID(w, r)
	if !ok {
		return
	}
	version := s.version(r)
	steps, err := s.query.Journey(r.Context(), customerID, version)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"customer_id": customerID,
		"version":     version,
		"steps":       steps,
	})
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	opts, err := s.layoutOptions(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	customerID, ok := s.customerID(w, r)
	if !ok {
		return
	}
	render, err := s.query.Map(r.Context(), customerID, s.version(r), opts...)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, render)
}

func (s *Server) getFigure(w http.ResponseWriter, r *http.Request) {
	opts, err := s.layoutOptions(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	customerID, ok := s.customerID(w, r)
	if !ok {
		return
	}
	fig, err := s.query.Figure(r.Context(), customerID, s.version(r), layout.DefaultTitle, opts...)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, fig)
}

func (s *Server) visualize(w http.ResponseWriter, r *http.Request) {
	customerID, ok := s.customerID(w, r)
	if !ok {
		return
	}
	fig, err := s.query.Figure(r.Context(), customerID, s.version(r), layout.DefaultTitle, s.opts.Layout...)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.render(w, "visualize.html", map[string]any{
		"CustomerID": customerID,
		"Version":    s.version(r),
		"Figure":     fig,
	})
}

// customerID returns the decoded {customerID} segment. chi matches against
// RawPath when the request has one, leaving escapes such as %2F in place.
func (s *Server) customerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "customerID")
	if r.URL.RawPath == "" {
		return id, true
	}
	decoded, err := url.PathUnescape(id)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid customer id %q", id))
		return "", false
	}
	return decoded, true
}

func (s *Server) version(r *http.Request) string {
	if v := strings.TrimSpace(r.URL.Query().Get("version")); v != "" {
		return v
	}
	return s.opts.DefaultVersion
}

// layoutOptions appends seed and iterations query overrides to the defaults.
func (s *Server) layoutOptions(r *http.Request) ([]layout.Option, error) {
	opts := append([]layout.Option(nil), s.opts.Layout...)
	q := r.URL.Query()
	if v := q.Get("seed"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid seed %q", v)
		}
		opts = append(opts, layout.WithSeed(seed))
	}
	if v := q.Get("iterations"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid iterations %q", v)
		}
		opts = append(opts, layout.WithIterations(n))
	}
	return opts, nil
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("render template", "template", name, "error", err)
		s.respondError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorBody{Error: message})
}

// respondErr maps core errors to a status: malformed input is the caller's
// fault, everything else is ours.
func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	body := errorBody{Error: err.Error()}

	var je *journey.Error
	if errors.As(err, &je) {
		body.Code = string(je.Code)
		body.Field = je.Field
		if je.Code == journey.ErrCodeMalformedBatch {
			status = http.StatusBadRequest
		}
	}
	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	s.respondJSON(w, status, body)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}
