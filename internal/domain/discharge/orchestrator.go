package discharge

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carecircle/api/internal/domain/binder"
	"github.com/carecircle/api/internal/domain/careshift"
	"github.com/carecircle/api/internal/domain/circle"
	"github.com/carecircle/api/internal/domain/handoff"
	"github.com/carecircle/api/internal/domain/task"
	"github.com/carecircle/api/internal/platform/audit"
	"github.com/carecircle/api/internal/platform/db"
	"github.com/carecircle/api/internal/platform/entitlement"
	"github.com/carecircle/api/internal/platform/events"
)

type TaskCreator interface {
	CreateTask(ctx context.Context, t *task.Task) error
}

type MedicationRecorder interface {
	CreateMedication(ctx context.Context, circleID, patientID, actorID uuid.UUID, name string, mc binder.MedicationContent) (*binder.Item, error)
}

type ShiftScheduler interface {
	CreateShift(ctx context.Context, sh *careshift.Shift) error
}

type HandoffPublisher interface {
	Publish(ctx context.Context, h *handoff.Handoff, payload json.RawMessage) (*handoff.Revision, error)
}

type MembershipChecker interface {
	ActiveRole(ctx context.Context, actorID, circleID uuid.UUID) (circle.Role, error)
}

// Deps wires an Orchestrator. Audit and Events may be nil.
type Deps struct {
	Records      RecordRepository
	Checklist    ChecklistRepository
	Tasks        TaskCreator
	Binder       MedicationRecorder
	Shifts       ShiftScheduler
	Handoffs     HandoffPublisher
	Members      MembershipChecker
	Entitlements entitlement.Checker
	Audit        audit.Sink
	Events       events.Publisher
	Tx           db.TxFunc
	Logger       zerolog.Logger
	// Concurrency bounds parallel task creation. Values below 1 mean 1.
	Concurrency int
}

// Orchestrator turns a finished discharge wizard into tasks, binder
// entries, care shifts and a handoff, then marks the record completed.
type Orchestrator struct {
	records      RecordRepository
	checklist    ChecklistRepository
	tasks        TaskCreator
	binder       MedicationRecorder
	shifts       ShiftScheduler
	handoffs     HandoffPublisher
	members      MembershipChecker
	entitlements entitlement.Checker
	audit        audit.Sink
	events       events.Publisher
	tx           db.TxFunc
	logger       zerolog.Logger
	concurrency  int
	now          func() time.Time
}

func NewOrchestrator(d Deps) *Orchestrator {
	o := &Orchestrator{
		records:      d.Records,
		checklist:    d.Checklist,
		tasks:        d.Tasks,
		binder:       d.Binder,
		shifts:       d.Shifts,
		handoffs:     d.Handoffs,
		members:      d.Members,
		entitlements: d.Entitlements,
		audit:        d.Audit,
		events:       d.Events,
		tx:           d.Tx,
		logger:       d.Logger.With().Str("component", "discharge").Logger(),
		concurrency:  d.Concurrency,
		now:          time.Now,
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	if o.tx == nil {
		o.tx = db.NoTx
	}
	if o.events == nil {
		o.events = events.NopPublisher{}
	}
	return o
}

// Generate produces the outputs of a discharge record on behalf of actorID.
//
// Precondition failures (NOT_FOUND, INVALID_RECORD, ACCESS_DENIED,
// PAYMENT_REQUIRED) return before anything is written. Once generation has
// started every pass runs to the end; individual item failures are counted
// in the result instead of aborting. When the final write fails the partial
// result is returned together with an UNEXPECTED_ERROR.
//
// A record that is already completed yields its stored references with
// status already_completed and nothing is generated again.
func (o *Orchestrator) Generate(ctx context.Context, recordID, actorID uuid.UUID) (*Result, error) {
	rec, err := o.records.GetByID(ctx, recordID)
	if err != nil {
		var gerr *Error
		switch {
		case errors.Is(err, ErrNotFound):
			gerr = newError(CodeNotFound, err)
		case errors.Is(err, ErrMalformedState):
			gerr = newError(CodeInvalidRecord, err)
		default:
			gerr = newError(CodeUnexpected, err)
		}
		o.finish(ctx, recordID, nil, actorID, nil, gerr)
		return nil, gerr
	}

	res, gerr := o.generate(ctx, rec, actorID)
	o.finish(ctx, recordID, &rec.CircleID, actorID, res, gerr)
	if gerr != nil {
		return res, gerr
	}
	return res, nil
}

func (o *Orchestrator) generate(ctx context.Context, rec *Record, actorID uuid.UUID) (*Result, *Error) {
	if err := validateForGeneration(rec); err != nil {
		return nil, newError(CodeInvalidRecord, err)
	}
	dischargeDate, err := time.Parse(dateLayout, rec.DischargeDate)
	if err != nil {
		return nil, newError(CodeInvalidRecord, err)
	}

	role, err := o.members.ActiveRole(ctx, actorID, rec.CircleID)
	if err != nil {
		return nil, newError(CodeUnexpected, err)
	}
	if !role.CanWrite() {
		return nil, newError(CodeAccessDenied, circle.ErrNotMember)
	}

	ok, err := o.entitlements.HasFeature(ctx, actorID, entitlement.FeatureDischargeWizard)
	if err != nil {
		return nil, newError(CodeUnexpected, err)
	}
	if !ok {
		return nil, newError(CodePaymentRequired, errors.New("feature not entitled"))
	}

	switch rec.Status {
	case StatusCompleted:
		return storedResult(rec), nil
	case StatusInProgress:
	default:
		return nil, newError(CodeInvalidRecord, ErrNotInProgress)
	}

	// Outputs are not idempotent, so a client disconnect or request deadline
	// must not leave a half-generated record behind in_progress.
	ctx = context.WithoutCancel(ctx)

	items, err := o.checklist.ListByRecord(ctx, rec.ID)
	if err != nil {
		return nil, newError(CodeUnexpected, err)
	}

	r := &run{
		rec:           rec,
		items:         items,
		actorID:       actorID,
		dischargeDate: dischargeDate,
		now:           o.now().UTC(),
	}
	passes := []passResult{
		o.generateTasks(ctx, r),
		o.generateBinderItems(ctx, r),
		o.generateShifts(ctx, r),
		o.generateHandoff(ctx, r),
	}
	res := newResult(passes...)
	o.logPasses(rec.ID, passes)

	refs := GeneratedRefs{
		TaskIDs:       linkedTaskIDs(items),
		ShiftIDs:      res.ShiftsCreated,
		BinderItemIDs: res.BinderItemsCreated,
		HandoffID:     res.HandoffID,
	}
	if refs.HandoffID == nil {
		refs.HandoffID = rec.HandoffID
	}
	if err := o.records.Complete(ctx, rec.ID, actorID, r.now, refs); err != nil {
		return res, newError(CodeUnexpected, err)
	}
	rec.Status = StatusCompleted
	rec.GeneratedRefs = refs

	o.publishCompleted(ctx, rec, res)
	return res, nil
}

// linkedTaskIDs lists the tasks of every checklist item, including ones
// linked by an earlier interrupted run.
func linkedTaskIDs(items []*ChecklistItem) []uuid.UUID {
	ids := []uuid.UUID{}
	for _, it := range items {
		if it.TaskID != nil {
			ids = append(ids, *it.TaskID)
		}
	}
	return ids
}

func (o *Orchestrator) logPasses(recordID uuid.UUID, passes []passResult) {
	for _, p := range passes {
		for _, it := range p.items {
			switch it.outcome {
			case outcomeFailed:
				o.logger.Error().Err(it.err).
					Str("record_id", recordID.String()).
					Str("pass", p.name).
					Str("item", it.key).
					Msg("discharge output item failed")
			case outcomeSkipped:
				o.logger.Debug().
					Str("record_id", recordID.String()).
					Str("pass", p.name).
					Str("item", it.key).
					Str("reason", it.reason).
					Msg("discharge output item skipped")
			}
		}
		o.logger.Info().
			Str("record_id", recordID.String()).
			Str("pass", p.name).
			Int("created", p.count(outcomeCreated)).
			Int("skipped", p.count(outcomeSkipped)).
			Int("failed", p.count(outcomeFailed)).
			Msg("discharge pass finished")
	}
}

func (o *Orchestrator) publishCompleted(ctx context.Context, rec *Record, res *Result) {
	ev := events.New(events.TypeDischargeCompleted, rec.CircleID, map[string]any{
		"dischargeRecordId": rec.ID,
		"patientId":         rec.PatientID,
		"taskIds":           res.TasksCreated,
		"shiftIds":          res.ShiftsCreated,
		"binderItemIds":     res.BinderItemsCreated,
		"handoffId":         res.HandoffID,
		"status":            res.Status,
		"failed":            res.Failed,
	})
	if err := o.events.Publish(ctx, ev); err != nil {
		o.logger.Warn().Err(err).Str("record_id", rec.ID.String()).Msg("discharge event not published")
	}
}

// finish writes the audit entry for one Generate call.
func (o *Orchestrator) finish(ctx context.Context, recordID uuid.UUID, circleID *uuid.UUID, actorID uuid.UUID, res *Result, gerr *Error) {
	ctx = context.WithoutCancel(ctx)
	outcome := ""
	switch {
	case gerr != nil:
		outcome = string(gerr.Code)
		o.logger.Warn().Err(gerr.Err).
			Str("record_id", recordID.String()).
			Str("code", string(gerr.Code)).
			Msg("discharge generation stopped")
	case res != nil:
		outcome = res.Status
	}
	if o.audit == nil {
		return
	}

	entry := &audit.Entry{
		ActorID:    actorID,
		CircleID:   circleID,
		Action:     "discharge.generate",
		EntityType: "discharge_record",
		EntityID:   recordID,
		Outcome:    outcome,
	}
	if res != nil {
		entry.Details = map[string]int{
			"tasksCreated":       len(res.TasksCreated),
			"binderItemsCreated": len(res.BinderItemsCreated),
			"shiftsCreated":      len(res.ShiftsCreated),
			"attempted":          res.Attempted,
			"failed":             res.Failed,
		}
	}
	if err := o.audit.Append(ctx, entry); err != nil {
		o.logger.Error().Err(err).Str("record_id", recordID.String()).Msg("audit append failed")
	}
}
