package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPlan() Plan {
	return Plan{
		Name:              "spring 10k",
		GoalType:          Goal10K,
		StartDate:         time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		DurationWeeks:     12,
		MaxDaysPerWeek:    4,
		LongRunDay:        time.Saturday,
		WeeklyIncreaseCap: DefaultWeeklyIncreaseCap,
		LongRunCap:        DefaultLongRunCap,
		GuardrailsEnabled: true,
	}
}

func TestPlanValidate(t *testing.T) {
	race := time.Date(2026, 5, 24, 0, 0, 0, 0, time.UTC)
	earlyRace := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(p *Plan)
		wantErr error
	}{
		{"valid", func(p *Plan) {}, nil},
		{"valid with race date", func(p *Plan) { p.RaceDate = &race }, nil},
		{"zero days per week allowed", func(p *Plan) { p.MaxDaysPerWeek = 0 }, nil},
		{"missing name", func(p *Plan) { p.Name = "" }, ErrPlanNameRequired},
		{"bad goal", func(p *Plan) { p.GoalType = "ultra" }, ErrPlanBadGoalType},
		{"zero duration", func(p *Plan) { p.DurationWeeks = 0 }, ErrPlanBadDuration},
		{"negative duration", func(p *Plan) { p.DurationWeeks = -3 }, ErrPlanBadDuration},
		{"eight days a week", func(p *Plan) { p.MaxDaysPerWeek = 8 }, ErrPlanBadDaysPerWeek},
		{"zero increase cap", func(p *Plan) { p.WeeklyIncreaseCap = 0 }, ErrPlanBadCap},
		{"increase cap above one", func(p *Plan) { p.WeeklyIncreaseCap = 1.5 }, ErrPlanBadCap},
		{"zero long run cap", func(p *Plan) { p.LongRunCap = 0 }, ErrPlanBadCap},
		{"race before start", func(p *Plan) { p.RaceDate = &earlyRace }, ErrPlanRaceTooEarly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPlan()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPlanWeekOf(t *testing.T) {
	p := validPlan()

	assert.Equal(t, 1, p.WeekOf(p.StartDate))
	assert.Equal(t, 1, p.WeekOf(p.StartDate.AddDate(0, 0, 6)))
	assert.Equal(t, 2, p.WeekOf(p.StartDate.AddDate(0, 0, 7)))
	assert.Equal(t, 12, p.WeekOf(p.StartDate.AddDate(0, 0, 12*7-1)))

	// Outside the window.
	assert.Equal(t, 0, p.WeekOf(p.StartDate.AddDate(0, 0, -1)))
	assert.Equal(t, 0, p.WeekOf(p.StartDate.AddDate(0, 0, 12*7)))
}

func TestPlanEndDateExclusive(t *testing.T) {
	p := validPlan()
	end := p.EndDate()
	require.Equal(t, p.StartDate.AddDate(0, 0, 84), end)
	assert.Equal(t, 0, p.WeekOf(end))
}

func TestNormalizeDate(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 23:30 EST is already the next day in UTC.
	in := time.Date(2026, 3, 2, 23, 30, 0, 0, loc)
	got := NormalizeDate(in)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), got)

	same := NormalizeDate(time.Date(2026, 3, 3, 15, 4, 5, 999, time.UTC))
	assert.Equal(t, got, same)
}

func TestConstraintHelpers(t *testing.T) {
	constraints := []PlanConstraint{
		{Type: ConstraintNoRunWeekday, Value: "1"},
		{Type: ConstraintNoRunWeekday, Value: "5"},
		{Type: ConstraintNoRunWeekday, Value: "bogus"},
		{Type: ConstraintNoRunWeekday, Value: "9"},
		{Type: ConstraintMinRestGapDays, Value: "1"},
		{Type: ConstraintMinRestGapDays, Value: "2"},
	}

	forbidden := ForbiddenWeekdays(constraints)
	assert.True(t, forbidden[time.Monday])
	assert.True(t, forbidden[time.Friday])
	assert.Len(t, forbidden, 2)

	assert.Equal(t, 2, MinRestGapDays(constraints))
	assert.Equal(t, 0, MinRestGapDays(nil))
}
