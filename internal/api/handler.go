// Package api provides the local HTTP API served by privacyd.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/privacycheck/privacycheck/internal/history"
	"github.com/privacycheck/privacycheck/internal/host"
	"github.com/privacycheck/privacycheck/internal/metrics"
	"github.com/privacycheck/privacycheck/internal/privacy"
	"github.com/privacycheck/privacycheck/internal/report"
	"github.com/privacycheck/privacycheck/internal/scanner"
	"github.com/privacycheck/privacycheck/pkg/buildinfo"
)

const maxBodyBytes = 64 << 10

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Scanner *scanner.Service
	Metrics *metrics.Metrics
	Logger  *log.Logger
}

// NewHandler creates a new API handler. Metrics may be nil.
func NewHandler(svc *scanner.Service, m *metrics.Metrics, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{Scanner: svc, Metrics: m, Logger: logger}
}

// tabRequest is the body of POST /reports and POST /scan.
type tabRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type applyRequest struct {
	Action privacy.Action `json:"action"`
}

// HandleHealth returns a simple health check response.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"build":  buildinfo.Get(),
	})
}

// HandlePrivacy returns the current privacy settings analysis.
func (h *Handler) HandlePrivacy(w http.ResponseWriter, r *http.Request) {
	a, err := h.Scanner.AnalyzePrivacy(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleCookies returns the cookie analysis for ?url=.
func (h *Handler) HandleCookies(w http.ResponseWriter, r *http.Request) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		writeError(w, http.StatusBadRequest, errors.New("url query parameter is required"))
		return
	}
	a, err := h.Scanner.CheckCookies(r.Context(), url)
	if err != nil {
		writeError(w, hostStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleCreateReport runs both analyses for the posted tab and saves the report.
func (h *Handler) HandleCreateReport(w http.ResponseWriter, r *http.Request) {
	tab, ok := h.decodeTab(w, r)
	if !ok {
		return
	}
	rep, err := h.Scanner.Scan(r.Context(), tab)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

// HandleListReports returns the report history, newest first.
func (h *Handler) HandleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Scanner.History(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// HandleGetReport returns one saved report.
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.findReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// HandleExportReport returns a saved report as a downloadable HTML document.
func (h *Handler) HandleExportReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.findReport(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.RenderHTML(&buf, rep); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.ExportFilename(rep)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// HandleClearReports deletes the report history.
func (h *Handler) HandleClearReports(w http.ResponseWriter, r *http.Request) {
	if err := h.Scanner.ClearHistory(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleApplySetting applies one remediation action. The result carries
// success or failure; only malformed requests get a non-200 status.
func (h *Handler) HandleApplySetting(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, errors.New("action is required"))
		return
	}
	writeJSON(w, http.StatusOK, h.Scanner.ApplySetting(r.Context(), req.Action))
}

// HandleGetPreferences returns the stored preferences.
func (h *Handler) HandleGetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := h.Scanner.Preferences(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandlePutPreferences updates the stored preferences. Keys absent from the
// body keep their stored values.
func (h *Handler) HandlePutPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := h.Scanner.Preferences(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := decodeBody(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.Scanner.SavePreferences(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleScan is the page-load hook: it auto-scans the posted tab when
// auto-scan is enabled.
func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	tab, ok := h.decodeTab(w, r)
	if !ok {
		return
	}
	res, err := h.Scanner.AutoScan(r.Context(), tab)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) decodeTab(w http.ResponseWriter, r *http.Request) (host.Tab, bool) {
	var req tabRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return host.Tab{}, false
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, errors.New("url is required"))
		return host.Tab{}, false
	}
	return host.Tab{URL: req.URL, Title: req.Title}, true
}

func (h *Handler) findReport(w http.ResponseWriter, r *http.Request) (*report.Report, bool) {
	id := chi.URLParam(r, "id")
	rep, err := h.Scanner.Report(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return rep, true
}

// hostStatus maps collaborator failures to 502 and everything else to 500.
func hostStatus(err error) int {
	var hostErr *host.Error
	if errors.As(err, &hostErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
