package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/skrivenk/runcoach/internal/domain"
	"github.com/skrivenk/runcoach/internal/service"

	"github.com/gin-gonic/gin"
)

// StatusHandler holds the status service dependency.
type StatusHandler struct {
	statusService service.StatusService
	units         UnitConverter
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(statusService service.StatusService, units UnitConverter) *StatusHandler {
	return &StatusHandler{statusService: statusService, units: units}
}

// EvaluateRequest optionally pins the evaluation date. Empty means today.
type EvaluateRequest struct {
	AsOf string `json:"asOf"`
}

// SnapshotResponse is the DTO for returning a status snapshot.
type SnapshotResponse struct {
	ID              string  `json:"id"`
	PlanID          string  `json:"planId"`
	SnapshotDate    string  `json:"snapshotDate"`
	WeekNumber      int     `json:"weekNumber"`
	Attainability   float64 `json:"attainability"`
	StatusCode      string  `json:"statusCode"`
	StatusLabel     string  `json:"statusLabel"`
	ActualWeekly    float64 `json:"actualWeekly"`
	TargetWeekly    float64 `json:"targetWeekly"`
	DistanceUnit    string  `json:"distanceUnit"`
	ActualLoad      float64 `json:"actualLoad"`
	TargetLoad      float64 `json:"targetLoad"`
	CoachNotes      string  `json:"coachNotes,omitempty"`
	Recommendations string  `json:"recommendations,omitempty"`
}

// MapSnapshotToResponse converts a domain.StatusSnapshot to SnapshotResponse.
func MapSnapshotToResponse(s *domain.StatusSnapshot, units UnitConverter) SnapshotResponse {
	if s == nil {
		return SnapshotResponse{}
	}
	return SnapshotResponse{
		ID:              s.ID.Hex(),
		PlanID:          s.PlanID.Hex(),
		SnapshotDate:    s.SnapshotDate.Format(dateLayout),
		WeekNumber:      s.WeekNumber,
		Attainability:   s.Attainability,
		StatusCode:      string(s.StatusCode),
		StatusLabel:     s.StatusLabel,
		ActualWeekly:    units.Distance(s.ActualWeeklyKm),
		TargetWeekly:    units.Distance(s.TargetWeeklyKm),
		DistanceUnit:    units.Unit(),
		ActualLoad:      s.ActualLoad,
		TargetLoad:      s.TargetLoad,
		CoachNotes:      s.CoachNotes,
		Recommendations: s.Recommendations,
	}
}

// Evaluate scores the most recently concluded week and stores a snapshot.
func (h *StatusHandler) Evaluate(c *gin.Context) {
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	asOf := time.Now()
	if req.AsOf != "" {
		parsed, err := time.Parse(dateLayout, req.AsOf)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "asOf must be YYYY-MM-DD")
			return
		}
		asOf = parsed
	}

	snapshot, err := h.statusService.Evaluate(c.Request.Context(), planID, asOf)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanNotFound):
			abortWithError(c, http.StatusNotFound, "Plan not found")
		case errors.Is(err, service.ErrNothingToEvaluate):
			abortWithError(c, http.StatusUnprocessableEntity, "Plan has not started yet")
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to evaluate plan status")
		}
		return
	}
	c.JSON(http.StatusCreated, MapSnapshotToResponse(snapshot, h.units))
}

// Latest returns the most recent snapshot for a plan.
func (h *StatusHandler) Latest(c *gin.Context) {
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	snapshot, err := h.statusService.Latest(c.Request.Context(), planID)
	if err != nil {
		if errors.Is(err, service.ErrNothingToEvaluate) {
			abortWithError(c, http.StatusNotFound, "No snapshots recorded yet")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to load status")
		return
	}
	c.JSON(http.StatusOK, MapSnapshotToResponse(snapshot, h.units))
}

// History returns every snapshot for a plan, oldest first.
func (h *StatusHandler) History(c *gin.Context) {
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	snapshots, err := h.statusService.List(c.Request.Context(), planID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to load status history")
		return
	}
	responses := make([]SnapshotResponse, len(snapshots))
	for i := range snapshots {
		responses[i] = MapSnapshotToResponse(&snapshots[i], h.units)
	}
	c.JSON(http.StatusOK, responses)
}
