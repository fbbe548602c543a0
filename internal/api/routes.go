package api

import (
	"net/http"

	"github.com/skrivenk/runcoach/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	units UnitConverter,
	planService service.PlanService,
	plannerService service.PlannerService,
	scheduleService service.ScheduleService,
	statusService service.StatusService,
) {
	planHandler := NewPlanHandler(planService, plannerService, units)
	workoutHandler := NewWorkoutHandler(scheduleService, units)
	statusHandler := NewStatusHandler(statusService, units)

	router.Use(RequestLogger())

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		plans := apiV1.Group("/plans")
		{
			plans.POST("", planHandler.CreatePlan)
			plans.GET("", planHandler.ListPlans)
			plans.GET("/:id", planHandler.GetPlan)
			plans.PUT("/:id", planHandler.UpdatePlan)
			plans.DELETE("/:id", planHandler.DeletePlan)

			// Manual recalculation of everything after asOf.
			plans.POST("/:id/recalculate", planHandler.Recalculate)

			plans.POST("/:id/baselines", planHandler.AddBaseline)
			plans.GET("/:id/baselines", planHandler.ListBaselines)

			plans.POST("/:id/constraints", planHandler.AddConstraint)
			plans.GET("/:id/constraints", planHandler.ListConstraints)

			// --- Schedule (versioned workout store) ---
			plans.GET("/:id/workouts", workoutHandler.GetRange)
			plans.GET("/:id/workouts/:date", workoutHandler.GetCurrent)
			plans.GET("/:id/workouts/:date/history", workoutHandler.History)
			plans.PUT("/:id/workouts/:date", workoutHandler.EditWorkout)
			plans.POST("/:id/workouts/:date/completion", workoutHandler.RecordCompletion)
			plans.POST("/:id/workouts/:date/missed", workoutHandler.MarkMissed)

			// --- Status / attainability ---
			plans.POST("/:id/status", statusHandler.Evaluate)
			plans.GET("/:id/status", statusHandler.Latest)
			plans.GET("/:id/status/history", statusHandler.History)
		}
	}
}
