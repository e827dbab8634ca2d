package exports

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"echocore/internal/archive"
	"echocore/internal/core"
	"echocore/pkg/dataset"
)

// Handler provides HTTP access to the survey archive and export queue.
type Handler struct {
	Service *core.Service
	Exports ExportScheduler
}

// NewHandler constructs a survey HTTP handler.
func NewHandler(service *core.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "survey service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/surveys":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleListSurveys(w, r)
	case strings.HasPrefix(path, "/api/v1/surveys/"):
		h.handleSurvey(w, r, strings.TrimPrefix(path, "/api/v1/surveys/"))
	case path == "/api/v1/labware":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleLabware(w, r)
	case path == "/api/v1/exports" || strings.HasPrefix(path, "/api/v1/exports/"):
		if h.Exports == nil {
			http.NotFound(w, r)
			return
		}
		h.handleExports(w, r, path)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleListSurveys(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := archive.Filter{
		PlateName: query.Get("plate_name"),
		PlateType: query.Get("plate_type"),
		Barcode:   query.Get("barcode"),
	}
	summaries, err := h.Service.FindSurveys(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"surveys": summaries})
}

func (h *Handler) handleSurvey(w http.ResponseWriter, r *http.Request, remainder string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	segments := strings.Split(remainder, "/")
	ts, err := time.Parse(time.RFC3339Nano, segments[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid survey timestamp")
		return
	}

	switch len(segments) {
	case 1:
		record, err := h.Service.GetSurvey(r.Context(), ts)
		if err != nil {
			writeSurveyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"survey": record})
	case 2:
		if segments[1] != "table" {
			http.NotFound(w, r)
			return
		}
		table, err := h.Service.SurveyTable(r.Context(), ts)
		if err != nil {
			writeSurveyError(w, err)
			return
		}
		name := "survey-" + ts.UTC().Format("20060102T150405Z")
		writeTable(w, r, table, name)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleLabware(w http.ResponseWriter, r *http.Request) {
	table, err := h.Service.LabwareTable(r.Context())
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeTable(w, r, table, "labware")
}

func (h *Handler) handleExports(w http.ResponseWriter, r *http.Request, path string) {
	if path == "/api/v1/exports" {
		switch r.Method {
		case http.MethodPost:
			h.handleExportCreate(w, r)
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"exports": h.Exports.ListExports()})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(path, "/api/v1/exports/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	record, ok := h.Exports.GetExport(id)
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

type exportRequest struct {
	Kind        string         `json:"kind"`
	Timestamp   string         `json:"timestamp"`
	Filter      archive.Filter `json:"filter"`
	Formats     []string       `json:"formats"`
	RequestedBy string         `json:"requested_by"`
	Reason      string         `json:"reason"`
}

func (h *Handler) handleExportCreate(w http.ResponseWriter, r *http.Request) {
	// An empty body is a valid request: kind and formats are inferred.
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid export request payload")
		return
	}

	input := ExportInput{
		Kind:        ExportKind(strings.ToLower(strings.TrimSpace(req.Kind))),
		Filter:      req.Filter,
		RequestedBy: req.RequestedBy,
		Reason:      req.Reason,
	}
	if ts := strings.TrimSpace(req.Timestamp); ts != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid export timestamp")
			return
		}
		input.Timestamp = parsed
	}
	for _, f := range req.Formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "json":
			input.Formats = append(input.Formats, dataset.FormatJSON)
		case "csv":
			input.Formats = append(input.Formats, dataset.FormatCSV)
		default:
			writeError(w, http.StatusBadRequest, "unsupported export format")
			return
		}
	}

	record, err := h.Exports.EnqueueExport(r.Context(), input)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

// writeTable negotiates json or csv and renders the table. CSV answers
// as a named attachment the way instrument operators expect downloads.
func writeTable(w http.ResponseWriter, r *http.Request, table dataset.Table, name string) {
	format := negotiateFormat(r)
	if format == "" {
		writeError(w, http.StatusNotAcceptable, "requested format not supported")
		return
	}
	switch format {
	case dataset.FormatCSV:
		filename := fmt.Sprintf("%s.csv", name)
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		_ = table.EncodeCSV(w)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"table": table})
	}
}

func negotiateFormat(r *http.Request) dataset.Format {
	wanted := strings.ToLower(r.URL.Query().Get("format"))
	if wanted == "" {
		if strings.Contains(r.Header.Get("Accept"), "text/csv") {
			return dataset.FormatCSV
		}
		return dataset.FormatJSON
	}
	switch dataset.Format(wanted) {
	case dataset.FormatCSV, dataset.FormatJSON:
		return dataset.Format(wanted)
	}
	return ""
}

func writeSurveyError(w http.ResponseWriter, err error) {
	var notFound archive.NotFoundError
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
