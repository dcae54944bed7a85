// Package api exposes the operator console over HTTP.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"ride-pricing-console/internal/actionable"
	"ride-pricing-console/internal/logger"
	"ride-pricing-console/internal/plot"
	"ride-pricing-console/internal/pricing"
	"ride-pricing-console/internal/session"
	"ride-pricing-console/internal/types"
)

const maxUpload = 64 << 20

// Handler provides the console endpoints over one session.
type Handler struct {
	ctrl *session.Controller
	log  *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(ctrl *session.Controller, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.New()
	}
	return &Handler{ctrl: ctrl, log: log.Component("api")}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Use(h.logRequests)

	r.HandleFunc("/healthz", h.handleLiveness).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Engine actions
	api.HandleFunc("/health", h.handleHealth).Methods("POST")
	api.HandleFunc("/recommend", h.handleRecommend).Methods("POST")
	api.HandleFunc("/batch", h.handleBatch).Methods("POST")
	api.HandleFunc("/kpis", h.handleCompare).Methods("POST")

	// Session views
	api.HandleFunc("/state", h.handleState).Methods("GET")
	api.HandleFunc("/rows", h.handleRows).Methods("GET")
	api.HandleFunc("/stats", h.handleStats).Methods("GET")
	api.HandleFunc("/chart", h.handleChart).Methods("GET")
	api.HandleFunc("/chart.png", h.handleChartPNG).Methods("GET")
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.log.WithRequest(r).WithField("duration_ms", time.Since(start).Milliseconds()).Debug("request served")
	})
}

// respondJSON sends a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.WithError(err).Error("failed to write response")
	}
}

// respondError sends a JSON error response
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// respondActionError maps a controller failure to a status: 409 while the
// action is already running, 502 when the engine call failed. The body
// carries the message both as "error" and as a notice.
func (h *Handler) respondActionError(w http.ResponseWriter, err error) {
	status, msg := http.StatusBadGateway, pricing.Message(err)
	if errors.Is(err, session.ErrInFlight) {
		status, msg = http.StatusConflict, err.Error()
	}
	h.respondJSON(w, status, map[string]any{
		"error":  msg,
		"notice": actionable.ErrorNotice(msg),
	})
}

func (h *Handler) handleLiveness(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, err := h.ctrl.RefreshHealth(r.Context())
	if err != nil {
		h.respondActionError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, status)
}

// handleRecommend accepts {"record": {...}} or a bare record.
func (h *Handler) handleRecommend(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpload))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "could not read body")
		return
	}
	rec, err := decodeRecord(body)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := rec.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.ctrl.SubmitSingle(r.Context(), rec)
	if err != nil {
		h.respondActionError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"result": res,
		"notice": actionable.RecommendationNotice(res),
	})
}

func decodeRecord(body []byte) (types.RideRecord, error) {
	var wrapped struct {
		Record *json.RawMessage `json:"record"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return types.RideRecord{}, fmt.Errorf("invalid JSON body: %w", err)
	}
	raw := body
	if wrapped.Record != nil {
		raw = *wrapped.Record
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var rec types.RideRecord
	if err := dec.Decode(&rec); err != nil {
		return types.RideRecord{}, fmt.Errorf("invalid record: %w", err)
	}
	return rec, nil
}

func formUpload(r *http.Request, field string) (pricing.Upload, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return pricing.Upload{}, fmt.Errorf("missing file field %q", field)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return pricing.Upload{}, fmt.Errorf("read %q: %w", field, err)
	}
	return pricing.Upload{Name: hdr.Filename, Data: data}, nil
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		h.respondError(w, http.StatusBadRequest, "expected multipart form")
		return
	}
	file, err := formUpload(r, "file")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.ctrl.UploadBatch(r.Context(), file)
	if err != nil {
		h.respondActionError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"summary": res.Summary,
		"notice":  actionable.BatchNotice(res.Summary),
		"kpis":    res.KPIs,
	})
}

func (h *Handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		h.respondError(w, http.StatusBadRequest, "expected multipart form")
		return
	}
	base, err := formUpload(r, "file_base")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	scn, err := formUpload(r, "file_scn")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	kpis, err := h.ctrl.CompareKPIs(r.Context(), base, scn)
	if err != nil {
		h.respondActionError(w, err)
		return
	}
	tones := make(map[string]actionable.Tone, len(kpis))
	for name, v := range kpis {
		tones[name] = actionable.KPITone(name, v)
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"kpis": kpis, "tones": tones})
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *Handler) handleRows(w http.ResponseWriter, r *http.Request) {
	rows := h.ctrl.Snapshot().Rows
	if rows == nil {
		h.respondJSON(w, http.StatusOK, []any{})
		return
	}
	h.respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.ctrl.Stats())
}

func (h *Handler) handleChart(w http.ResponseWriter, r *http.Request) {
	points := h.ctrl.ChartPoints()
	if points == nil {
		h.respondJSON(w, http.StatusOK, []any{})
		return
	}
	h.respondJSON(w, http.StatusOK, points)
}

func (h *Handler) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := plot.RenderPNG(&buf, h.ctrl.ChartPoints(), plot.Options{Title: "Batch recommendations"})
	if errors.Is(err, plot.ErrNoData) {
		h.respondError(w, http.StatusNotFound, "no batch results to chart")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("chart render failed")
		h.respondError(w, http.StatusInternalServerError, "chart render failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.log.WithError(err).Warn("failed to write chart")
	}
}
