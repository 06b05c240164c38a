package maintenance

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// Handler exposes charger maintenance on the inner API.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, logger *zap.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("maintenance handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}, nil
}

type groupDTO struct {
	StationID int64    `json:"station_id"`
	Network   string   `json:"network"`
	OCPIIDs   []string `json:"ocpi_ids"`
	Count     int      `json:"count"`
}

type resultDTO struct {
	Message   string     `json:"message"`
	Groups    []groupDTO `json:"groups"`
	Redundant int        `json:"redundant"`
	Deleted   int64      `json:"deleted"`
	DryRun    bool       `json:"dry_run"`
}

// ServeHTTP reports duplicates on GET and cleans them on POST.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var (
		result Result
		err    error
	)
	switch r.Method {
	case http.MethodGet:
		result.Report, err = h.service.Identify(r.Context())
		result.DryRun = true
	case http.MethodPost:
		dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))
		result, err = h.service.Clean(r.Context(), dryRun)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err != nil {
		h.logger.Error("charger maintenance request failed", zap.Error(err))
		http.Error(w, "maintenance failed", http.StatusInternalServerError)
		return
	}

	resp := resultDTO{
		Message:   result.Report.Message(),
		Groups:    make([]groupDTO, 0, len(result.Report.Groups)),
		Redundant: result.Report.Redundant(),
		Deleted:   result.Deleted,
		DryRun:    result.DryRun,
	}
	for _, group := range result.Report.Groups {
		resp.Groups = append(resp.Groups, groupDTO(group))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
