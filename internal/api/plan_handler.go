package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/skrivenk/runcoach/internal/domain"
	"github.com/skrivenk/runcoach/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanHandler holds the plan and planner service dependencies.
type PlanHandler struct {
	planService    service.PlanService
	plannerService service.PlannerService
	units          UnitConverter
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(planService service.PlanService, plannerService service.PlannerService, units UnitConverter) *PlanHandler {
	return &PlanHandler{
		planService:    planService,
		plannerService: plannerService,
		units:          units,
	}
}

// --- DTOs for API (Data Transfer Objects) ---

// CreatePlanRequest defines the expected JSON for creating a plan.
// Distances are always kilometers on the way in.
type CreatePlanRequest struct {
	Name              string              `json:"name" binding:"required"`
	GoalType          domain.GoalType     `json:"goalType" binding:"required"`
	StartDate         string              `json:"startDate" binding:"required"`
	RaceDate          *string             `json:"raceDate"`
	DurationWeeks     int                 `json:"durationWeeks" binding:"required,min=1"`
	MaxDaysPerWeek    int                 `json:"maxDaysPerWeek" binding:"omitempty,min=0,max=7"`
	LongRunDay        *int                `json:"longRunDay" binding:"omitempty,min=0,max=6"`
	WeeklyIncreaseCap float64             `json:"weeklyIncreaseCap" binding:"omitempty,gt=0,lte=1"`
	LongRunCap        float64             `json:"longRunCap" binding:"omitempty,gt=0,lte=1"`
	GuardrailsEnabled *bool               `json:"guardrailsEnabled"`
	Baseline          *BaselineRunRequest `json:"baseline"`
}

// UpdatePlanRequest lists the editable plan fields; absent fields are left
// unchanged.
type UpdatePlanRequest struct {
	Name              *string  `json:"name"`
	RaceDate          *string  `json:"raceDate"`
	MaxDaysPerWeek    *int     `json:"maxDaysPerWeek" binding:"omitempty,min=0,max=7"`
	LongRunDay        *int     `json:"longRunDay" binding:"omitempty,min=0,max=6"`
	WeeklyIncreaseCap *float64 `json:"weeklyIncreaseCap" binding:"omitempty,gt=0,lte=1"`
	LongRunCap        *float64 `json:"longRunCap" binding:"omitempty,gt=0,lte=1"`
	GuardrailsEnabled *bool    `json:"guardrailsEnabled"`
}

// BaselineRunRequest is a pre-plan run submitted to seed the fitness signal.
type BaselineRunRequest struct {
	Date            string  `json:"date" binding:"required"`
	DistanceKm      float64 `json:"distanceKm" binding:"required,gt=0"`
	DurationSeconds int     `json:"durationSeconds" binding:"required,gt=0"`
	RPE             *int    `json:"rpe" binding:"omitempty,min=1,max=10"`
	AvgHeartRate    *int    `json:"avgHeartRate" binding:"omitempty,gt=0"`
	ElevationGainM  *int    `json:"elevationGainM"`
	Notes           string  `json:"notes"`
}

// AddConstraintRequest defines the JSON for attaching a scheduling rule.
type AddConstraintRequest struct {
	Type  domain.ConstraintType `json:"type" binding:"required"`
	Value string                `json:"value" binding:"required"`
}

// RecalculateRequest optionally pins the evaluation date of a manual
// recalculation. Empty means today.
type RecalculateRequest struct {
	AsOf string `json:"asOf"`
}

// PlanResponse is the DTO for returning plan details.
type PlanResponse struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	GoalType          domain.GoalType `json:"goalType"`
	StartDate         string          `json:"startDate"`
	RaceDate          *string         `json:"raceDate,omitempty"`
	DurationWeeks     int             `json:"durationWeeks"`
	MaxDaysPerWeek    int             `json:"maxDaysPerWeek"`
	LongRunDay        int             `json:"longRunDay"`
	WeeklyIncreaseCap float64         `json:"weeklyIncreaseCap"`
	LongRunCap        float64         `json:"longRunCap"`
	GuardrailsEnabled bool            `json:"guardrailsEnabled"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// BaselineRunResponse is the DTO for returning a baseline run.
type BaselineRunResponse struct {
	ID              string  `json:"id"`
	PlanID          string  `json:"planId"`
	Date            string  `json:"date"`
	Distance        float64 `json:"distance"`
	DistanceUnit    string  `json:"distanceUnit"`
	DurationSeconds int     `json:"durationSeconds"`
	RPE             *int    `json:"rpe,omitempty"`
	AvgHeartRate    *int    `json:"avgHeartRate,omitempty"`
	ElevationGainM  *int    `json:"elevationGainM,omitempty"`
	Notes           string  `json:"notes,omitempty"`
}

// ConstraintResponse is the DTO for returning a plan constraint.
type ConstraintResponse struct {
	ID     string                `json:"id"`
	PlanID string                `json:"planId"`
	Type   domain.ConstraintType `json:"type"`
	Value  string                `json:"value"`
}

const dateLayout = "2006-01-02"

// MapPlanToResponse converts a domain.Plan to PlanResponse DTO.
func MapPlanToResponse(p *domain.Plan) PlanResponse {
	if p == nil {
		return PlanResponse{}
	}
	resp := PlanResponse{
		ID:                p.ID.Hex(),
		Name:              p.Name,
		GoalType:          p.GoalType,
		StartDate:         p.StartDate.Format(dateLayout),
		DurationWeeks:     p.DurationWeeks,
		MaxDaysPerWeek:    p.MaxDaysPerWeek,
		LongRunDay:        int(p.LongRunDay),
		WeeklyIncreaseCap: p.WeeklyIncreaseCap,
		LongRunCap:        p.LongRunCap,
		GuardrailsEnabled: p.GuardrailsEnabled,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if p.RaceDate != nil {
		rd := p.RaceDate.Format(dateLayout)
		resp.RaceDate = &rd
	}
	return resp
}

// MapPlansToResponse converts a slice of domain.Plan to PlanResponse DTOs.
func MapPlansToResponse(plans []domain.Plan) []PlanResponse {
	responses := make([]PlanResponse, len(plans))
	for i := range plans {
		responses[i] = MapPlanToResponse(&plans[i])
	}
	return responses
}

func (h *PlanHandler) mapBaselineToResponse(b *domain.BaselineRun) BaselineRunResponse {
	return BaselineRunResponse{
		ID:              b.ID.Hex(),
		PlanID:          b.PlanID.Hex(),
		Date:            b.Date.Format(dateLayout),
		Distance:        h.units.Distance(b.DistanceKm),
		DistanceUnit:    h.units.Unit(),
		DurationSeconds: b.DurationSeconds,
		RPE:             b.RPE,
		AvgHeartRate:    b.AvgHeartRate,
		ElevationGainM:  b.ElevationGainM,
		Notes:           b.Notes,
	}
}

func mapConstraintToResponse(c *domain.PlanConstraint) ConstraintResponse {
	return ConstraintResponse{
		ID:     c.ID.Hex(),
		PlanID: c.PlanID.Hex(),
		Type:   c.Type,
		Value:  c.Value,
	}
}

// --- Handler Methods ---

func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "startDate must be YYYY-MM-DD")
		return
	}
	input := service.CreatePlanInput{
		Name:              req.Name,
		GoalType:          req.GoalType,
		StartDate:         startDate,
		DurationWeeks:     req.DurationWeeks,
		MaxDaysPerWeek:    req.MaxDaysPerWeek,
		WeeklyIncreaseCap: req.WeeklyIncreaseCap,
		LongRunCap:        req.LongRunCap,
		GuardrailsEnabled: true,
	}
	if req.GuardrailsEnabled != nil {
		input.GuardrailsEnabled = *req.GuardrailsEnabled
	}
	if req.LongRunDay != nil {
		input.LongRunDay = time.Weekday(*req.LongRunDay)
	} else {
		input.LongRunDay = time.Saturday
	}
	if req.RaceDate != nil {
		raceDate, err := time.Parse(dateLayout, *req.RaceDate)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "raceDate must be YYYY-MM-DD")
			return
		}
		input.RaceDate = &raceDate
	}
	if req.Baseline != nil {
		baseline, err := mapBaselineInput(req.Baseline)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		input.Baseline = &baseline
	}

	plan, err := h.planService.CreatePlan(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPlanInput):
			abortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUnsatisfiableConstraints):
			abortWithError(c, http.StatusUnprocessableEntity, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to create plan")
		}
		return
	}

	c.JSON(http.StatusCreated, MapPlanToResponse(plan))
}

func (h *PlanHandler) ListPlans(c *gin.Context) {
	plans, err := h.planService.ListPlans(c.Request.Context())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to list plans")
		return
	}
	c.JSON(http.StatusOK, MapPlansToResponse(plans))
}

func (h *PlanHandler) GetPlan(c *gin.Context) {
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	plan, err := h.planService.GetPlan(c.Request.Context(), planID)
	if err != nil {
		if errors.Is(err, service.ErrPlanNotFound) {
			abortWithError(c, http.StatusNotFound, "Plan not found")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to get plan")
		return
	}
	c.JSON(http.StatusOK, MapPlanToResponse(plan))
}

func (h *PlanHandler) UpdatePlan(c *gin.Context) {
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	var req UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	input := service.UpdatePlanInput{
		Name:              req.Name,
		MaxDaysPerWeek:    req.MaxDaysPerWeek,
		WeeklyIncreaseCap: req.WeeklyIncreaseCap,
		LongRunCap:        req.LongRunCap,
		GuardrailsEnabled: req.GuardrailsEnabled,
	}
	if req.LongRunDay != nil {
		day := time.Weekday(*req.LongRunDay)
		input.LongRunDay = &day
	}
	if req.RaceDate != nil {
		raceDate, err := time.Parse(dateLayout, *req.RaceDate)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "raceDate must be YYYY-MM-DD")
			return
		}
		input.RaceDate = &raceDate
	}

	plan, err := h.planService.UpdatePlan(c.Request.Context(), planID, input, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanNotFound):
			abortWithError(c, http.StatusNotFound, "Plan not found")
		case errors.Is(err, service.ErrInvalidPlanInput):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to update plan")
		}
		return
	}
	c.JSON(http.StatusOK, MapPlanToResponse(plan))
}

func (h *PlanHandler) DeletePlan(c *gin.Context) {
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	if err := h.planService.DeletePlan(c.Request.Context(), planID); err != nil {
		if errors.Is(err, service.ErrPlanNotFound) {
			abortWithError(c, http.StatusNotFound, "Plan not found")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to delete plan")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PlanHandler) Recalculate(c *gin.Context) {
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	var req RecalculateRequest
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

	workouts, err := h.plannerService.Recalculate(c.Request.Context(), planID, asOf)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanNotFound):
			abortWithError(c, http.StatusNotFound, "Plan not found")
		case errors.Is(err, service.ErrUnsatisfiableConstraints):
			abortWithError(c, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, service.ErrConcurrencyConflict):
			abortWithError(c, http.StatusConflict, "Concurrent schedule change, retry")
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to recalculate plan")
		}
		return
	}
	c.JSON(http.StatusOK, mapWorkoutsToResponse(workouts, h.units))
}

func (h *PlanHandler) AddBaseline(c *gin.Context) {
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	var req BaselineRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	input, err := mapBaselineInput(&req)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	baseline, err := h.planService.AddBaselineRun(c.Request.Context(), planID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanNotFound):
			abortWithError(c, http.StatusNotFound, "Plan not found")
		case errors.Is(err, service.ErrInvalidPlanInput):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to add baseline run")
		}
		return
	}
	c.JSON(http.StatusCreated, h.mapBaselineToResponse(baseline))
}

func (h *PlanHandler) ListBaselines(c *gin.Context) {
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	baselines, err := h.planService.ListBaselineRuns(c.Request.Context(), planID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to list baseline runs")
		return
	}
	responses := make([]BaselineRunResponse, len(baselines))
	for i := range baselines {
		responses[i] = h.mapBaselineToResponse(&baselines[i])
	}
	c.JSON(http.StatusOK, responses)
}

func (h *PlanHandler) AddConstraint(c *gin.Context) {
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	var req AddConstraintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	constraint, err := h.planService.AddConstraint(c.Request.Context(), planID, req.Type, req.Value, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanNotFound):
			abortWithError(c, http.StatusNotFound, "Plan not found")
		case errors.Is(err, service.ErrConstraintNotValid):
			abortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUnsatisfiableConstraints):
			abortWithError(c, http.StatusUnprocessableEntity, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to add constraint")
		}
		return
	}
	c.JSON(http.StatusCreated, mapConstraintToResponse(constraint))
}

func (h *PlanHandler) ListConstraints(c *gin.Context) {
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	constraints, err := h.planService.ListConstraints(c.Request.Context(), planID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to list constraints")
		return
	}
	responses := make([]ConstraintResponse, len(constraints))
	for i := range constraints {
		responses[i] = mapConstraintToResponse(&constraints[i])
	}
	c.JSON(http.StatusOK, responses)
}

// --- Helpers ---

func planIDParam(c *gin.Context) (primitive.ObjectID, bool) {
	planID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid plan ID format")
		return primitive.NilObjectID, false
	}
	return planID, true
}

func mapBaselineInput(req *BaselineRunRequest) (service.BaselineRunInput, error) {
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return service.BaselineRunInput{}, errors.New("baseline date must be YYYY-MM-DD")
	}
	return service.BaselineRunInput{
		Date:            date,
		DistanceKm:      req.DistanceKm,
		DurationSeconds: req.DurationSeconds,
		RPE:             req.RPE,
		AvgHeartRate:    req.AvgHeartRate,
		ElevationGainM:  req.ElevationGainM,
		Notes:           req.Notes,
	}, nil
}
