package service

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanLocker serializes mutations per plan. The demote-and-insert step of the
// store and the multi-day recalculation pass are each atomic on their own;
// the per-plan lock keeps whole operations (read inputs, compute, write) from
// interleaving.
type PlanLocker struct {
	mu    sync.Mutex
	locks map[primitive.ObjectID]*sync.Mutex
}

// NewPlanLocker creates the shared per-plan mutex table. One instance is
// shared by every service that mutates a plan's schedule.
func NewPlanLocker() *PlanLocker {
	return &PlanLocker{locks: make(map[primitive.ObjectID]*sync.Mutex)}
}

func (l *PlanLocker) Lock(planID primitive.ObjectID) func() {
	l.mu.Lock()
	m, ok := l.locks[planID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[planID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
