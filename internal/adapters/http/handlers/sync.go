package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// SchedulerStatus is the view of the background scheduler the sync status
// endpoint reports.
type SchedulerStatus interface {
	Running() bool
	Interval() time.Duration
}

// SyncHandler serves the sync endpoints.
type SyncHandler struct {
	service   *app.SyncService
	scheduler SchedulerStatus
}

// NewSyncHandler creates a sync handler. scheduler may be nil when
// background sync is disabled.
func NewSyncHandler(service *app.SyncService, scheduler SchedulerStatus) *SyncHandler {
	return &SyncHandler{service: service, scheduler: scheduler}
}

// Trigger handles POST /sync. A cycle already in flight yields 409.
func (h *SyncHandler) Trigger(c *gin.Context) {
	report, err := h.service.Sync(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSyncReportResponse(report))
}

// Status handles GET /sync/status.
func (h *SyncHandler) Status(c *gin.Context) {
	resp := dto.SyncStatusResponse{
		Policy:         string(h.service.Policy()),
		PendingUploads: h.service.Pending(),
		LastReport:     dto.NewSyncReportResponse(h.service.LastReport()),
	}

	if h.scheduler != nil {
		resp.SchedulerRunning = h.scheduler.Running()
		resp.Interval = h.scheduler.Interval().String()
	}

	c.JSON(http.StatusOK, resp)
}

// SetPolicy handles PUT /sync/policy.
func (h *SyncHandler) SetPolicy(c *gin.Context) {
	var req dto.SyncPolicyRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondBindError(c, err)
		return
	}

	if err := h.service.SetPolicy(c.Request.Context(), domain.ConflictPolicy(req.Policy)); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, req)
}

// RegisterRoutes registers the sync routes.
func (h *SyncHandler) RegisterRoutes(rg, write *gin.RouterGroup) {
	rg.GET("/sync/status", h.Status)

	write.POST("/sync", h.Trigger)
	write.PUT("/sync/policy", h.SetPolicy)
}
