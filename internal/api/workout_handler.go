package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/skrivenk/runcoach/internal/domain"
	"github.com/skrivenk/runcoach/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkoutHandler holds the schedule service dependency.
type WorkoutHandler struct {
	scheduleService service.ScheduleService
	units           UnitConverter
}

// NewWorkoutHandler creates a new WorkoutHandler.
func NewWorkoutHandler(scheduleService service.ScheduleService, units UnitConverter) *WorkoutHandler {
	return &WorkoutHandler{scheduleService: scheduleService, units: units}
}

// --- DTOs for API (Data Transfer Objects) ---

// EditWorkoutRequest defines the JSON for a user revision of a scheduled day.
// DistanceKm is always kilometers regardless of the display unit system.
type EditWorkoutRequest struct {
	Type        domain.WorkoutType `json:"type" binding:"required"`
	DistanceKm  float64            `json:"distanceKm" binding:"omitempty,min=0"`
	Intensity   string             `json:"intensity"`
	Description string             `json:"description"`
}

// RecordCompletionRequest defines the JSON for recording performed actuals
// against a day's current workout.
type RecordCompletionRequest struct {
	DistanceKm      *float64       `json:"distanceKm" binding:"omitempty,min=0"`
	DurationSeconds *int           `json:"durationSeconds" binding:"omitempty,gt=0"`
	RPE             *int           `json:"rpe" binding:"omitempty,min=1,max=10"`
	AvgHeartRate    *int           `json:"avgHeartRate" binding:"omitempty,gt=0"`
	ElevationGainM  *int           `json:"elevationGainM"`
	Splits          []SplitRequest `json:"splits" binding:"omitempty,dive"`
	Equipment       string         `json:"equipment"`
	Notes           string         `json:"notes"`
}

// SplitRequest is one recorded segment of a completed workout.
type SplitRequest struct {
	DistanceKm      float64 `json:"distanceKm" binding:"required,gt=0"`
	DurationSeconds int     `json:"durationSeconds" binding:"required,gt=0"`
}

// WorkoutResponse is the DTO for returning a workout version. Distances are
// in the configured display units.
type WorkoutResponse struct {
	ID              string             `json:"id"`
	PlanID          string             `json:"planId"`
	Date            string             `json:"date"`
	Version         int                `json:"version"`
	IsCurrent       bool               `json:"isCurrent"`
	Type            domain.WorkoutType `json:"type"`
	PlannedDistance float64            `json:"plannedDistance"`
	DistanceUnit    string             `json:"distanceUnit"`
	Intensity       string             `json:"intensity,omitempty"`
	Description     string             `json:"description,omitempty"`
	ModifiedBy      string             `json:"modifiedBy"`

	ActualDistance  *float64        `json:"actualDistance,omitempty"`
	DurationSeconds *int            `json:"durationSeconds,omitempty"`
	RPE             *int            `json:"rpe,omitempty"`
	AvgHeartRate    *int            `json:"avgHeartRate,omitempty"`
	ElevationGainM  *int            `json:"elevationGainM,omitempty"`
	Splits          []SplitResponse `json:"splits,omitempty"`
	Equipment       string          `json:"equipment,omitempty"`
	CompletionNotes string          `json:"completionNotes,omitempty"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// SplitResponse mirrors SplitRequest on the way out, converted to display
// units.
type SplitResponse struct {
	Distance        float64 `json:"distance"`
	DurationSeconds int     `json:"durationSeconds"`
}

// MapWorkoutToResponse converts a domain.WorkoutVersion to WorkoutResponse.
func MapWorkoutToResponse(w *domain.WorkoutVersion, units UnitConverter) WorkoutResponse {
	if w == nil {
		return WorkoutResponse{}
	}
	resp := WorkoutResponse{
		ID:              w.ID.Hex(),
		PlanID:          w.PlanID.Hex(),
		Date:            w.Date.Format(dateLayout),
		Version:         w.Version,
		IsCurrent:       w.IsCurrent,
		Type:            w.Type,
		PlannedDistance: units.Distance(w.PlannedDistanceKm),
		DistanceUnit:    units.Unit(),
		Intensity:       w.PlannedIntensity,
		Description:     w.Description,
		ModifiedBy:      w.ModifiedBy,
		ActualDistance:  units.DistancePtr(w.ActualDistanceKm),
		DurationSeconds: w.ActualDurationSeconds,
		RPE:             w.ActualRPE,
		AvgHeartRate:    w.AvgHeartRate,
		ElevationGainM:  w.ElevationGainM,
		Equipment:       w.Equipment,
		CompletionNotes: w.CompletionNotes,
		CompletedAt:     w.CompletedAt,
		CreatedAt:       w.CreatedAt,
	}
	for _, s := range w.Splits {
		resp.Splits = append(resp.Splits, SplitResponse{
			Distance:        units.Distance(s.DistanceKm),
			DurationSeconds: s.DurationSeconds,
		})
	}
	return resp
}

func mapWorkoutsToResponse(workouts []domain.WorkoutVersion, units UnitConverter) []WorkoutResponse {
	responses := make([]WorkoutResponse, len(workouts))
	for i := range workouts {
		responses[i] = MapWorkoutToResponse(&workouts[i], units)
	}
	return responses
}

// --- Handler Methods ---

// GetRange returns the current schedule between ?from and ?to (inclusive).
func (h *WorkoutHandler) GetRange(c *gin.Context) {
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	from, err := time.Parse(dateLayout, c.Query("from"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse(dateLayout, c.Query("to"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}

	workouts, err := h.scheduleService.GetCurrentRange(c.Request.Context(), planID, from, to)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to load schedule")
		return
	}
	c.JSON(http.StatusOK, mapWorkoutsToResponse(workouts, h.units))
}

// GetCurrent returns the current version of one scheduled day.
func (h *WorkoutHandler) GetCurrent(c *gin.Context) {
	planID, date, ok := planIDAndDateParams(c)
	if !ok {
		return
	}
	workout, err := h.scheduleService.GetCurrent(c.Request.Context(), planID, date)
	if err != nil {
		if errors.Is(err, service.ErrWorkoutNotFound) {
			abortWithError(c, http.StatusNotFound, "No workout scheduled for that day")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to load workout")
		return
	}
	c.JSON(http.StatusOK, MapWorkoutToResponse(workout, h.units))
}

// History returns every version ever stored for one day, oldest first.
func (h *WorkoutHandler) History(c *gin.Context) {
	planID, date, ok := planIDAndDateParams(c)
	if !ok {
		return
	}
	versions, err := h.scheduleService.History(c.Request.Context(), planID, date)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to load workout history")
		return
	}
	c.JSON(http.StatusOK, mapWorkoutsToResponse(versions, h.units))
}

// EditWorkout records a user revision of a day as a new current version.
func (h *WorkoutHandler) EditWorkout(c *gin.Context) {
	planID, date, ok := planIDAndDateParams(c)
	if !ok {
		return
	}
	var req EditWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	workout, err := h.scheduleService.EditWorkout(c.Request.Context(), planID, date, domain.WorkoutDraft{
		Type:              req.Type,
		PlannedDistanceKm: req.DistanceKm,
		PlannedIntensity:  req.Intensity,
		Description:       req.Description,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanNotFound):
			abortWithError(c, http.StatusNotFound, "Plan not found")
		case errors.Is(err, service.ErrDateOutsidePlan), errors.Is(err, service.ErrInvalidWorkoutInput):
			abortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrConcurrencyConflict):
			abortWithError(c, http.StatusConflict, "Concurrent schedule change, retry")
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to edit workout")
		}
		return
	}
	c.JSON(http.StatusOK, MapWorkoutToResponse(workout, h.units))
}

// RecordCompletion stores performed actuals against the day's current
// version. The response reports whether a recalculation was triggered.
func (h *WorkoutHandler) RecordCompletion(c *gin.Context) {
	planID, date, ok := planIDAndDateParams(c)
	if !ok {
		return
	}
	var req RecordCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	actuals := domain.CompletionActuals{
		DistanceKm:      req.DistanceKm,
		DurationSeconds: req.DurationSeconds,
		RPE:             req.RPE,
		AvgHeartRate:    req.AvgHeartRate,
		ElevationGainM:  req.ElevationGainM,
		Equipment:       req.Equipment,
		Notes:           req.Notes,
	}
	for _, s := range req.Splits {
		actuals.Splits = append(actuals.Splits, domain.Split{
			DistanceKm:      s.DistanceKm,
			DurationSeconds: s.DurationSeconds,
		})
	}

	workout, recalculated, err := h.scheduleService.RecordCompletion(c.Request.Context(), planID, date, actuals, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWorkoutNotFound):
			abortWithError(c, http.StatusNotFound, "No workout scheduled for that day")
		case errors.Is(err, service.ErrInvalidWorkoutInput):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to record completion")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"workout":      MapWorkoutToResponse(workout, h.units),
		"recalculated": recalculated,
	})
}

// MarkMissed acknowledges a skipped day and reschedules around it.
func (h *WorkoutHandler) MarkMissed(c *gin.Context) {
	planID, date, ok := planIDAndDateParams(c)
	if !ok {
		return
	}
	if err := h.scheduleService.MarkMissed(c.Request.Context(), planID, date, time.Now()); err != nil {
		switch {
		case errors.Is(err, service.ErrWorkoutNotFound):
			abortWithError(c, http.StatusNotFound, "No workout scheduled for that day")
		case errors.Is(err, service.ErrInvalidWorkoutInput):
			abortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUnsatisfiableConstraints):
			abortWithError(c, http.StatusUnprocessableEntity, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to mark workout missed")
		}
		return
	}
	c.Status(http.StatusNoContent)
}

func planIDAndDateParams(c *gin.Context) (planID primitive.ObjectID, date time.Time, ok bool) {
	planID, ok = planIDParam(c)
	if !ok {
		return
	}
	date, err := time.Parse(dateLayout, c.Param("date"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return planID, time.Time{}, false
	}
	return planID, date, true
}
