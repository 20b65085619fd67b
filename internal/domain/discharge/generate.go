package discharge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/carecircle/api/internal/domain/binder"
	"github.com/carecircle/api/internal/domain/careshift"
	"github.com/carecircle/api/internal/domain/handoff"
	"github.com/carecircle/api/internal/domain/task"
	"github.com/carecircle/api/internal/platform/sanitize"
)

const (
	passTasks   = "tasks"
	passBinder  = "binder"
	passShifts  = "shifts"
	passHandoff = "handoff"
)

const (
	taskTitlePrefix       = "[Discharge] "
	maxFirstWeekInSummary = 5
)

// run carries what every generator needs for one orchestration.
type run struct {
	rec           *Record
	items         []*ChecklistItem
	actorID       uuid.UUID
	dischargeDate time.Time
	now           time.Time
}

// generateTasks creates one task per checklist item that asks for one and
// has none yet. Items run concurrently; each item's task insert and its
// back-reference write share a transaction, and the back-reference only
// lands if the item is still unlinked.
func (o *Orchestrator) generateTasks(ctx context.Context, r *run) passResult {
	var pending []*ChecklistItem
	for _, it := range r.items {
		if it.NeedsTask() {
			pending = append(pending, it)
		}
	}

	results := make([]itemResult, len(pending))
	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, it := range pending {
		g.Go(func() error {
			results[i] = o.createTaskFor(ctx, r, it)
			return nil
		})
	}
	_ = g.Wait()
	return passResult{name: passTasks, items: results}
}

func (o *Orchestrator) createTaskFor(ctx context.Context, r *run, it *ChecklistItem) itemResult {
	key := it.ID.String()
	var linkedElsewhere bool
	res := attempt(key, func() (uuid.UUID, error) {
		t := buildTask(r, it)
		err := o.tx(ctx, func(ctx context.Context) error {
			if err := o.tasks.CreateTask(ctx, t); err != nil {
				return fmt.Errorf("create task: %w", err)
			}
			return o.checklist.SetTaskID(ctx, it.ID, t.ID)
		})
		if errors.Is(err, ErrAlreadyLinked) {
			linkedElsewhere = true
		}
		return t.ID, err
	})
	if linkedElsewhere {
		return skipped(key, "already linked")
	}
	if res.outcome == outcomeCreated {
		id := res.id
		it.TaskID = &id
	}
	return res
}

func buildTask(r *run, it *ChecklistItem) *task.Task {
	due := ComputeDueDate(r.dischargeDate, it.Category, r.now)
	if it.DueDate != nil {
		due = *it.DueDate
		if due.Before(r.now) {
			due = r.now
		}
	}

	owner := r.actorID
	if it.AssigneeID != nil {
		owner = *it.AssigneeID
	}

	priority := task.PriorityMed
	if it.Category == CategoryMedications {
		priority = task.PriorityHigh
	}

	desc := fmt.Sprintf("From discharge at %s on %s.",
		sanitize.EscapeForMarkup(r.rec.FacilityName), r.rec.DischargeDate)
	if it.Notes != nil && strings.TrimSpace(*it.Notes) != "" {
		desc += "\n" + sanitize.EscapeForMarkup(*it.Notes)
	}

	source := task.SourceDischarge
	recordID := r.rec.ID
	return &task.Task{
		CircleID:    r.rec.CircleID,
		PatientID:   r.rec.PatientID,
		CreatedBy:   r.actorID,
		OwnerID:     &owner,
		Title:       taskTitlePrefix + sanitize.Title(it.ItemText),
		Description: &desc,
		Priority:    priority,
		Status:      task.StatusOpen,
		DueAt:       &due,
		SourceType:  &source,
		SourceID:    &recordID,
	}
}

// generateBinderItems records medications the patient keeps taking: new
// ones and dose changes. Other changes get no binder entry.
func (o *Orchestrator) generateBinderItems(ctx context.Context, r *run) passResult {
	results := make([]itemResult, 0, len(r.rec.Medications))
	for i, m := range r.rec.Medications {
		key := strconv.Itoa(i)
		if !m.ChangeType.KeepsTaking() {
			results = append(results, skipped(key, "change type "+string(m.ChangeType)))
			continue
		}
		recordID := r.rec.ID
		results = append(results, attempt(key, func() (uuid.UUID, error) {
			item, err := o.binder.CreateMedication(ctx, r.rec.CircleID, r.rec.PatientID, r.actorID, m.Name,
				binder.MedicationContent{
					Dosage:            m.Dosage,
					Frequency:         m.Frequency,
					Instructions:      m.Instructions,
					Source:            "discharge",
					DischargeRecordID: &recordID,
				})
			if err != nil {
				return uuid.Nil, err
			}
			return item.ID, nil
		}))
	}
	return passResult{name: passBinder, items: results}
}

// generateShifts schedules one day shift per valid plan entry. Entries with
// an offset outside [0, MaxShiftOffset] or a malformed assignee are skipped.
func (o *Orchestrator) generateShifts(ctx context.Context, r *run) passResult {
	results := make([]itemResult, 0, len(r.rec.ShiftPlan))
	for _, a := range r.rec.ShiftPlan {
		offset, ok := a.DayOffset()
		if !ok {
			results = append(results, skipped(a.Key, "invalid day offset"))
			continue
		}
		assignee, ok := a.AssigneeID()
		if !ok {
			results = append(results, skipped(a.Key, "invalid assignee"))
			continue
		}
		note := fmt.Sprintf("Post-discharge care - Day %d", offset+1)
		recordID := r.rec.ID
		results = append(results, attempt(a.Key, func() (uuid.UUID, error) {
			sh := &careshift.Shift{
				CircleID:   r.rec.CircleID,
				PatientID:  r.rec.PatientID,
				AssigneeID: assignee,
				ShiftDate:  r.dischargeDate.AddDate(0, 0, offset),
				Type:       careshift.TypeDay,
				Status:     careshift.StatusScheduled,
				Note:       &note,
				SourceID:   &recordID,
				CreatedBy:  r.actorID,
			}
			if err := o.shifts.CreateShift(ctx, sh); err != nil {
				return uuid.Nil, err
			}
			return sh.ID, nil
		}))
	}
	return passResult{name: passShifts, items: results}
}

// generateHandoff publishes at most one summary handoff per record.
func (o *Orchestrator) generateHandoff(ctx context.Context, r *run) passResult {
	if r.rec.HandoffID != nil {
		return passResult{name: passHandoff, items: []itemResult{skipped("handoff", "already generated")}}
	}
	res := attempt("handoff", func() (uuid.UUID, error) {
		snap := buildSnapshot(r)
		payload, err := json.Marshal(snap)
		if err != nil {
			return uuid.Nil, fmt.Errorf("encode handoff snapshot: %w", err)
		}
		recordID := r.rec.ID
		h := &handoff.Handoff{
			CircleID:  r.rec.CircleID,
			PatientID: r.rec.PatientID,
			Type:      handoff.TypeDischarge,
			Title:     "Discharge summary - " + r.rec.FacilityName,
			Summary:   snap.summary(),
			SourceID:  &recordID,
			CreatedBy: r.actorID,
		}
		if _, err := o.handoffs.Publish(ctx, h, payload); err != nil {
			return uuid.Nil, err
		}
		return h.ID, nil
	})
	return passResult{name: passHandoff, items: []itemResult{res}}
}

// snapshot is the structured revision payload. Every free-text field is
// escaped before it is stored here.
type snapshot struct {
	DischargeRecordID   uuid.UUID        `json:"dischargeRecordId"`
	Facility            string           `json:"facility"`
	DischargeDate       string           `json:"dischargeDate"`
	ReasonForStay       string           `json:"reasonForStay,omitempty"`
	MedicationChanges   []snapshotChange `json:"medicationChanges"`
	ChecklistCompleted  int              `json:"checklistCompleted"`
	ChecklistTotal      int              `json:"checklistTotal"`
	FirstWeekPriorities []string         `json:"firstWeekPriorities"`
}

type snapshotChange struct {
	Name       string     `json:"name"`
	ChangeType ChangeType `json:"changeType"`
	Label      string     `json:"label"`
	Dosage     string     `json:"dosage,omitempty"`
}

func buildSnapshot(r *run) snapshot {
	s := snapshot{
		DischargeRecordID:   r.rec.ID,
		Facility:            sanitize.EscapeForMarkup(r.rec.FacilityName),
		DischargeDate:       r.rec.DischargeDate,
		ReasonForStay:       sanitize.EscapeForMarkup(strings.TrimSpace(r.rec.ReasonForStay)),
		MedicationChanges:   []snapshotChange{},
		FirstWeekPriorities: []string{},
		ChecklistTotal:      len(r.items),
	}
	for _, m := range r.rec.Medications {
		s.MedicationChanges = append(s.MedicationChanges, snapshotChange{
			Name:       sanitize.EscapeForMarkup(m.Name),
			ChangeType: m.ChangeType,
			Label:      m.ChangeType.Label(),
			Dosage:     sanitize.EscapeForMarkup(m.Dosage),
		})
	}
	for _, it := range r.items {
		if it.IsCompleted {
			s.ChecklistCompleted++
			continue
		}
		if it.Category == CategoryFirstWeek && len(s.FirstWeekPriorities) < maxFirstWeekInSummary {
			s.FirstWeekPriorities = append(s.FirstWeekPriorities, sanitize.EscapeForMarkup(it.ItemText))
		}
	}
	return s
}

func (s snapshot) summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Discharged from %s on %s.\n", s.Facility, s.DischargeDate)
	if s.ReasonForStay != "" {
		fmt.Fprintf(&b, "Reason for stay: %s\n", s.ReasonForStay)
	}
	if len(s.MedicationChanges) > 0 {
		b.WriteString("\nMedication changes:\n")
		for _, m := range s.MedicationChanges {
			fmt.Fprintf(&b, "- %s: %s", m.Name, m.Label)
			if m.Dosage != "" {
				fmt.Fprintf(&b, " (%s)", m.Dosage)
			}
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(&b, "\nChecklist: %d of %d items complete\n", s.ChecklistCompleted, s.ChecklistTotal)
	if len(s.FirstWeekPriorities) > 0 {
		b.WriteString("\nFirst week priorities:\n")
		for _, p := range s.FirstWeekPriorities {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
