package discharge

import (
	"fmt"

	"github.com/google/uuid"
)

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeSkipped
	outcomeFailed
)

// itemResult is what one generator did with one input item.
type itemResult struct {
	key     string
	id      uuid.UUID
	outcome outcome
	reason  string
	err     error
}

// passResult collects one generator pass. Generators never return errors;
// every item lands here instead.
type passResult struct {
	name  string
	items []itemResult
}

func (p passResult) created() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.items))
	for _, it := range p.items {
		if it.outcome == outcomeCreated {
			ids = append(ids, it.id)
		}
	}
	return ids
}

func (p passResult) count(o outcome) int {
	n := 0
	for _, it := range p.items {
		if it.outcome == o {
			n++
		}
	}
	return n
}

// attempt runs fn for one item, turning errors and panics into a failed
// result.
func attempt(key string, fn func() (uuid.UUID, error)) (res itemResult) {
	defer func() {
		if r := recover(); r != nil {
			res = itemResult{key: key, outcome: outcomeFailed, err: fmt.Errorf("panic: %v", r)}
		}
	}()
	id, err := fn()
	if err != nil {
		return itemResult{key: key, outcome: outcomeFailed, err: err}
	}
	return itemResult{key: key, id: id, outcome: outcomeCreated}
}

func skipped(key, reason string) itemResult {
	return itemResult{key: key, outcome: outcomeSkipped, reason: reason}
}

const (
	ResultCompleted        = "completed"
	ResultPartial          = "partial"
	ResultAlreadyCompleted = "already_completed"
)

// Result is returned by Generate.
type Result struct {
	TasksCreated       []uuid.UUID `json:"tasksCreated"`
	HandoffID          *uuid.UUID  `json:"handoffId"`
	ShiftsCreated      []uuid.UUID `json:"shiftsCreated"`
	BinderItemsCreated []uuid.UUID `json:"binderItemsCreated"`
	Counts             Counts      `json:"counts"`
	Attempted          int         `json:"attempted"`
	Failed             int         `json:"failed"`
	Skipped            int         `json:"skipped"`
	Status             string      `json:"status"`
	Code               Code        `json:"code,omitempty"`
}

type Counts struct {
	TasksCreated    int  `json:"tasksCreated"`
	HandoffCreated  bool `json:"handoffCreated"`
	ShiftsScheduled int  `json:"shiftsScheduled"`
	BinderUpdates   int  `json:"binderUpdates"`
}

func newResult(passes ...passResult) *Result {
	r := &Result{
		TasksCreated:       []uuid.UUID{},
		ShiftsCreated:      []uuid.UUID{},
		BinderItemsCreated: []uuid.UUID{},
	}
	for _, p := range passes {
		switch p.name {
		case passTasks:
			r.TasksCreated = p.created()
		case passBinder:
			r.BinderItemsCreated = p.created()
		case passShifts:
			r.ShiftsCreated = p.created()
		case passHandoff:
			if ids := p.created(); len(ids) > 0 {
				id := ids[0]
				r.HandoffID = &id
			}
		}
		created, failed := p.count(outcomeCreated), p.count(outcomeFailed)
		r.Attempted += created + failed
		r.Failed += failed
		r.Skipped += p.count(outcomeSkipped)
	}
	r.Counts = Counts{
		TasksCreated:    len(r.TasksCreated),
		HandoffCreated:  r.HandoffID != nil,
		ShiftsScheduled: len(r.ShiftsCreated),
		BinderUpdates:   len(r.BinderItemsCreated),
	}
	r.Status = ResultCompleted
	if r.Failed > 0 {
		r.Status = ResultPartial
		r.Code = CodePartialGenerationFailure
	}
	return r
}

// storedResult reports the references of an already completed record.
func storedResult(rec *Record) *Result {
	r := &Result{
		TasksCreated:       nonNil(rec.TaskIDs),
		HandoffID:          rec.HandoffID,
		ShiftsCreated:      nonNil(rec.ShiftIDs),
		BinderItemsCreated: nonNil(rec.BinderItemIDs),
		Status:             ResultAlreadyCompleted,
	}
	r.Counts = Counts{
		TasksCreated:    len(r.TasksCreated),
		HandoffCreated:  r.HandoffID != nil,
		ShiftsScheduled: len(r.ShiftsCreated),
		BinderUpdates:   len(r.BinderItemsCreated),
	}
	return r
}

func nonNil(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
