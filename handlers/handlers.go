package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/MohammedAK1991/street-performers-map-sub000/audit"
	"github.com/MohammedAK1991/street-performers-map-sub000/config"
	"github.com/MohammedAK1991/street-performers-map-sub000/ledger"
	"github.com/MohammedAK1991/street-performers-map-sub000/logger"
	"github.com/MohammedAK1991/street-performers-map-sub000/middleware"
	"github.com/MohammedAK1991/street-performers-map-sub000/models"
	"github.com/MohammedAK1991/street-performers-map-sub000/notify"
	"github.com/MohammedAK1991/street-performers-map-sub000/tips"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const maxBodyBytes = 64 << 10

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Status    int         `json:"status"`
	Error     string      `json:"error"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func sendError(w http.ResponseWriter, status int, err string, details interface{}) {
	sendJSON(w, status, ErrorResponse{
		Status:    status,
		Error:     err,
		Details:   details,
		Timestamp: time.Now(),
	})
}

func sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type Deps struct {
	DB     *gorm.DB
	Config *config.Config
	Tips   *tips.Service
	Ledger *ledger.Store
	Audit  *audit.Store
	Hub    *notify.Hub
}

type Handlers struct {
	db     *gorm.DB
	config *config.Config
	tips   *tips.Service
	ledger *ledger.Store
	audit  *audit.Store
	hub    *notify.Hub
	log    zerolog.Logger
}

func NewHandlers(deps Deps, log zerolog.Logger) *Handlers {
	return &Handlers{
		db:     deps.DB,
		config: deps.Config,
		tips:   deps.Tips,
		ledger: deps.Ledger,
		audit:  deps.Audit,
		hub:    deps.Hub,
		log:    log,
	}
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	gateway := "stripe"
	if h.config.UseFakeGateway() {
		gateway = "fake"
	}

	status, code := "healthy", http.StatusOK
	sqlDB, err := h.db.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err = sqlDB.PingContext(ctx)
		cancel()
	}
	if err != nil {
		h.reqLog(r).Error().Err(err).Msg("database ping failed")
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	sendJSON(w, code, map[string]interface{}{
		"status":      status,
		"timestamp":   time.Now(),
		"service":     "street-tips",
		"environment": h.config.Environment,
		"gateway":     gateway,
	})
}

func (h *Handlers) reqLog(r *http.Request) *zerolog.Logger {
	l := logger.FromContext(r.Context(), h.log)
	return &l
}

func (h *Handlers) logAudit(r *http.Request, actorID *string, action, resource, details string) {
	entry := models.AuditLog{
		ActorID:   actorID,
		Action:    action,
		Resource:  resource,
		Details:   details,
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	if err := h.audit.Record(r.Context(), entry); err != nil {
		h.reqLog(r).Warn().Err(err).Str("action", action).Msg("audit write failed")
	}
}

// pageParams reads page/limit query parameters. page is 1-based.
func pageParams(r *http.Request, defaultLimit, maxLimit int) (page, limit, offset int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	return page, limit, (page - 1) * limit
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
