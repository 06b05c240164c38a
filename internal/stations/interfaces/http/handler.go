package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"livecharge-api/internal/audit"
	"livecharge-api/internal/auth"
	"livecharge-api/internal/observability/metrics"
	"livecharge-api/internal/stations/application"
	stations "livecharge-api/internal/stations/domain"
)

const (
	defaultAreaLimit    = 10
	defaultMaxAreaLimit = 10
	maxIngestBodyBytes  = 16 << 20
)

// Handler serves the public and inner station endpoints.
type Handler struct {
	reconciler   *application.Reconciler
	queries      *application.QueryService
	auditLogger  audit.Logger
	logger       *zap.Logger
	maxAreaLimit int
}

// HandlerOption configures the handler.
type HandlerOption func(*Handler)

// WithAuditLogger records ingest batches.
func WithAuditLogger(logger audit.Logger) HandlerOption {
	return func(h *Handler) {
		h.auditLogger = logger
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMaxAreaLimit caps the limit accepted by area queries.
func WithMaxAreaLimit(limit int) HandlerOption {
	return func(h *Handler) {
		if limit > 0 {
			h.maxAreaLimit = limit
		}
	}
}

// NewHandler constructs a Handler.
func NewHandler(reconciler *application.Reconciler, queries *application.QueryService, opts ...HandlerOption) (*Handler, error) {
	if reconciler == nil {
		return nil, errors.New("stations handler: nil reconciler")
	}
	if queries == nil {
		return nil, errors.New("stations handler: nil query service")
	}
	h := &Handler{
		reconciler:   reconciler,
		queries:      queries,
		logger:       zap.NewNop(),
		maxAreaLimit: defaultMaxAreaLimit,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ServeHTTP routes station requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/inner/api/stations":
		if r.Method == http.MethodPost {
			h.handleIngest(w, r)
			return
		}
	case "/inner/api/sources":
		if r.Method == http.MethodGet {
			h.handleSources(w, r)
			return
		}
	case "/api/v1/stations-by-area":
		if r.Method == http.MethodGet {
			h.handleByArea(w, r)
			return
		}
	case "/api/v1/stations":
		if r.Method == http.MethodGet {
			h.handleBySource(w, r)
			return
		}
	case "/api/v1/exports/stations.xlsx":
		if r.Method == http.MethodGet {
			h.handleExport(w, r, exportXLSX)
			return
		}
	case "/api/v1/exports/stations.pdf":
		if r.Method == http.MethodGet {
			h.handleExport(w, r, exportPDF)
			return
		}
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusMethodNotAllowed)
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIngestBodyBytes))
	if err != nil {
		metrics.IncIngestError("read_body")
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	var req addStationsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		metrics.IncIngestError("invalid_json")
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	observations := make([]stations.Observation, 0, len(req.Stations))
	for i, dto := range req.Stations {
		obs, err := dto.toObservation(i)
		if err != nil {
			metrics.IncIngestError("validation")
			h.writeError(w, err)
			return
		}
		observations = append(observations, obs)
	}

	results, err := h.reconciler.MergeOrCreate(r.Context(), observations)
	if err != nil {
		metrics.ObserveIngest(metrics.ResultError, time.Since(start))
		metrics.IncIngestError(errorReason(err))
		h.logAudit(r, body, len(observations), results)
		h.writeError(w, err)
		return
	}
	metrics.ObserveIngest(metrics.ResultSuccess, time.Since(start))
	h.logAudit(r, body, len(observations), results)
	writeJSON(w, http.StatusCreated, addStationsResponse{Results: toMergeResultDTOs(results)})
}

func (h *Handler) handleSources(w http.ResponseWriter, r *http.Request) {
	ids, err := parseStationIDs(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	list, err := h.queries.GetSources(r.Context(), ids)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStationSourcesDTOs(list))
}

func (h *Handler) handleByArea(w http.ResponseWriter, r *http.Request) {
	views, err := h.queryArea(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := stationsByAreaResponse{Stations: make([]stationDTO, 0, len(views))}
	for _, view := range views {
		resp.Stations = append(resp.Stations, toStationDTO(view))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleBySource(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	source := strings.TrimSpace(query.Get("station_source"))
	if source == "" {
		h.writeError(w, &stations.ValidationError{Field: "station_source", Reason: "required"})
		return
	}
	innerID, err := strconv.ParseInt(query.Get("station_inner_id"), 10, 64)
	if err != nil {
		h.writeError(w, &stations.ValidationError{Field: "station_inner_id", Reason: "must be an integer"})
		return
	}
	view, err := h.queries.GetBySourceIdentity(r.Context(), source, innerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if view == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toStationDTO(*view))
}

func (h *Handler) queryArea(r *http.Request) ([]stations.StationView, error) {
	box, err := parseBoundingBox(r)
	if err != nil {
		return nil, err
	}
	limit, err := intQuery(r, "limit", defaultAreaLimit)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > h.maxAreaLimit {
		return nil, &stations.ValidationError{Field: "limit", Reason: "must be within [1, " + strconv.Itoa(h.maxAreaLimit) + "]"}
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		return nil, err
	}
	return h.queries.GetByArea(r.Context(), box, limit, offset)
}

func (h *Handler) logAudit(r *http.Request, body []byte, count int, results []application.MergeResult) {
	if h.auditLogger == nil {
		return
	}
	created := 0
	for _, result := range results {
		if result.Resolution == application.ResolvedCreated {
			created++
		}
	}
	meta, _ := json.Marshal(map[string]any{
		"stations": count,
		"merged":   len(results),
		"created":  created,
	})
	err := h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:         auth.SubjectFromContext(r.Context()),
		Role:          string(auth.RoleFromContext(r.Context())),
		Action:        audit.ActionStationsIngest,
		ResourceType:  "stations",
		ResourceID:    "batch",
		Metadata:      meta,
		PayloadDigest: audit.DigestJSON(body),
		IP:            audit.ClientIP(r),
		UserAgent:     r.UserAgent(),
	})
	if err != nil {
		h.logger.Warn("audit log failed", zap.String("action", audit.ActionStationsIngest), zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *stations.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Reason, Field: verr.Field})
	case errors.Is(err, stations.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, stations.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "conflicting source identity, retry the batch"})
	case errors.Is(err, stations.ErrStoreUnavailable):
		h.logger.Error("store unavailable", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable"})
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, stations.ErrValidation):
		return "validation"
	case errors.Is(err, stations.ErrConflict):
		return "conflict"
	case errors.Is(err, stations.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parseBoundingBox(r *http.Request) (stations.BoundingBox, error) {
	var values [4]float64
	for i, key := range []string{"sw_lat", "sw_lon", "ne_lat", "ne_lon"} {
		raw := r.URL.Query().Get(key)
		if raw == "" {
			return stations.BoundingBox{}, &stations.ValidationError{Field: key, Reason: "required"}
		}
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return stations.BoundingBox{}, &stations.ValidationError{Field: key, Reason: "must be a number"}
		}
		values[i] = parsed
	}
	return stations.BoundingBox{
		SouthWest: stations.Point{Lat: values[0], Lon: values[1]},
		NorthEast: stations.Point{Lat: values[2], Lon: values[3]},
	}, nil
}

func intQuery(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &stations.ValidationError{Field: key, Reason: "must be an integer"}
	}
	return parsed, nil
}

// parseStationIDs accepts repeated and comma separated station_ids values.
func parseStationIDs(r *http.Request) ([]int64, error) {
	var ids []int64
	for _, raw := range r.URL.Query()["station_ids"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, &stations.ValidationError{Field: "station_ids", Reason: "must be integers"}
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, &stations.ValidationError{Field: "station_ids", Reason: "required"}
	}
	return ids, nil
}
