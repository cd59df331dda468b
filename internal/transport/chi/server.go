// Package chi exposes the filtering pipeline over HTTP. Handlers decode the
// loose request JSON at the boundary, normalize it into domain types and map
// sentinel errors to status codes; everything past the boundary works with
// typed values only.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/compfilter/compfilter/internal/analysis"
	"github.com/compfilter/compfilter/internal/codes"
	"github.com/compfilter/compfilter/internal/domain"
	"github.com/compfilter/compfilter/internal/export"
	"github.com/compfilter/compfilter/internal/geo"
	"github.com/compfilter/compfilter/internal/logger"
	"github.com/compfilter/compfilter/internal/pipeline"
)

// maxUploadBytes bounds geometry and code-list uploads.
const maxUploadBytes = 32 << 20

// Server holds the service dependencies behind the HTTP surface.
type Server struct {
	pipe     *pipeline.Pipeline
	analyzer *analysis.Analyzer
	areas    *geo.Store
	codes    *codes.Store
	logger   *zap.Logger
}

// NewServer creates the HTTP surface.
func NewServer(pipe *pipeline.Pipeline, analyzer *analysis.Analyzer, areas *geo.Store, lists *codes.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{pipe: pipe, analyzer: analyzer, areas: areas, codes: lists, logger: log}
}

// Routes returns the API routes, mounted by the composition root.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/filters", s.handleFilters)
	r.Post("/preview", s.handlePreview)
	r.Post("/download", s.handleDownload)
	r.Post("/save", s.handleSave)
	r.Post("/analysis", s.handleAnalysis)
	r.Post("/location/upload", s.handleLocationUpload)
	r.Post("/location/delete", s.handleLocationDelete)
	r.Get("/location/list", s.handleLocationList)
	r.Post("/codes/upload", s.handleCodesUpload)
	r.Get("/codes/list", s.handleCodesList)
	return r
}

// filterRequest is the shared body of every pipeline operation.
type filterRequest struct {
	Selection map[string]json.RawMessage `json:"selection"`
	Advanced  domain.Advanced            `json:"advanced"`
}

func (s *Server) decodeSelection(r *http.Request, into *filterRequest) (domain.Selection, error) {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return domain.Selection{}, fmt.Errorf("%w: malformed request body: %v", domain.ErrInvalidSelection, err)
	}
	return domain.NormalizeSelection(into.Selection, s.pipe.Specs())
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	infos, err := s.pipe.Filters(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "filters": infos})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	sel, err := s.decodeSelection(r, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	count, warnings, err := s.pipe.Count(r.Context(), sel, req.Advanced, pipeline.OpPreview)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"count":    count,
		"warnings": warningList(warnings),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		filterRequest
		Filename string `json:"filename"`
	}
	sel, err := s.decodeSelection(r, &req.filterRequest)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.pipe.Run(r.Context(), sel, req.Advanced, pipeline.OpDownload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer res.Close()

	name := req.Filename
	if name == "" {
		name = "export.csv"
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	rows, err := export.WriteCSV(w, res.Header().Columns(), s.pipe.Delimiter(), res.Next)
	if err != nil {
		// The status line is gone; the truncated body is all we can signal.
		logger.FromContext(r.Context()).Error("download aborted mid-stream",
			zap.Int("rows_written", rows), zap.Error(err))
		return
	}
	logger.FromContext(r.Context()).Info("download complete", zap.Int("rows", rows))
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		filterRequest
		Destinations []export.Destination `json:"destinations"`
	}
	sel, err := s.decodeSelection(r, &req.filterRequest)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Counting pass first: destination quotas validate against the real
	// total before anything is written.
	total, warnings, err := s.pipe.Count(r.Context(), sel, req.Advanced, pipeline.OpSave)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := export.ValidateDestinations(req.Destinations, total); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.pipe.Run(r.Context(), sel, req.Advanced, pipeline.OpSave)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer res.Close()

	report, err := export.Save(total, res.Header().Columns(), s.pipe.Delimiter(), res.Next, req.Destinations, s.logger)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"report":   report,
		"warnings": warningList(warnings),
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		filterRequest
		Dimensions []string `json:"dimensions"`
	}
	sel, err := s.decodeSelection(r, &req.filterRequest)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.analyzer.Run(r.Context(), sel, req.Advanced, req.Dimensions)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "report": report})
}

func (s *Server) handleLocationUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.formFile(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}
	label, err := s.areas.SaveCustom(header.Filename, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "storedLabel": label})
}

func (s *Server) handleLocationDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: malformed request body", domain.ErrInvalidSelection))
		return
	}
	if err := s.areas.DeleteCustom(req.Label); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleLocationList(w http.ResponseWriter, r *http.Request) {
	labels, err := s.areas.Labels()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "labels": labels})
}

func (s *Server) handleCodesUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.formFile(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer file.Close()

	stem, err := s.codes.Save(r.FormValue("bucket"), header.Filename, io.LimitReader(file, maxUploadBytes))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "storedFileName": stem})
}

func (s *Server) handleCodesList(w http.ResponseWriter, r *http.Request) {
	files, err := s.codes.List()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "files": files})
}

func (s *Server) formFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, nil, fmt.Errorf("%w: expected a multipart upload", domain.ErrInvalidSelection)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: missing file field", domain.ErrInvalidSelection)
	}
	return file, header, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("write response", zap.Error(err))
	}
}

// writeError maps sentinel errors to status codes and always answers with an
// explicit {ok:false} body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidSelection):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrConfiguration):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	}
	logger.FromContext(r.Context()).Warn("request failed",
		zap.Int("status", status),
		zap.Error(err),
	)
	s.writeJSON(w, status, map[string]any{"ok": false, "error": err.Error()})
}

// warningList never serializes as null.
func warningList(warnings []string) []string {
	if warnings == nil {
		return []string{}
	}
	return warnings
}
