package discharge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carecircle/api/internal/domain/careshift"
	"github.com/carecircle/api/internal/domain/circle"
	"github.com/carecircle/api/internal/domain/task"
	"github.com/carecircle/api/internal/platform/events"
)

type orchFixture struct {
	orch      *Orchestrator
	records   *memRecords
	checklist *memChecklist
	tasks     *fakeTasks
	binder    *fakeBinder
	shifts    *fakeShifts
	handoffs  *fakeHandoffs
	members   *fakeMembers
	ents      *fakeEntitlements
	audit     *recordingSink
	events    *recordingEvents
	circle    uuid.UUID
	actor     uuid.UUID
	viewer    uuid.UUID
	now       time.Time
}

func newOrchFixture(t *testing.T) *orchFixture {
	t.Helper()
	actor, viewer := uuid.New(), uuid.New()
	f := &orchFixture{
		records:   newMemRecords(),
		checklist: newMemChecklist(),
		tasks:     &fakeTasks{},
		binder:    &fakeBinder{},
		shifts:    &fakeShifts{},
		handoffs:  &fakeHandoffs{},
		members: &fakeMembers{roles: map[uuid.UUID]circle.Role{
			actor:  circle.RoleContributor,
			viewer: circle.RoleViewer,
		}},
		ents:   &fakeEntitlements{allowed: true},
		audit:  &recordingSink{},
		events: &recordingEvents{},
		circle: uuid.New(),
		actor:  actor,
		viewer: viewer,
		now:    time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC),
	}
	f.orch = NewOrchestrator(Deps{
		Records:      f.records,
		Checklist:    f.checklist,
		Tasks:        f.tasks,
		Binder:       f.binder,
		Shifts:       f.shifts,
		Handoffs:     f.handoffs,
		Members:      f.members,
		Entitlements: f.ents,
		Audit:        f.audit,
		Events:       f.events,
		Logger:       zerolog.Nop(),
		Concurrency:  4,
	})
	f.orch.now = func() time.Time { return f.now }
	return f
}

// seed stores an in_progress record ready for generation, applies mutate and
// attaches items to it.
func (f *orchFixture) seed(t *testing.T, mutate func(*Record), items ...*ChecklistItem) *Record {
	t.Helper()
	rec := &Record{
		CircleID:      f.circle,
		PatientID:     uuid.New(),
		CreatedBy:     f.actor,
		FacilityName:  "St. Mary's",
		DischargeDate: "2025-01-10",
		DischargeType: TypeGeneral,
		Status:        StatusInProgress,
		CurrentStep:   MaxStep,
	}
	if mutate != nil {
		mutate(rec)
	}
	require.NoError(t, f.records.Create(context.Background(), rec))
	for _, it := range items {
		it.RecordID = rec.ID
	}
	require.NoError(t, f.checklist.CreateItems(context.Background(), items))
	return rec
}

func (f *orchFixture) artifactCount() int {
	return f.tasks.count() + len(f.binder.calls) + len(f.shifts.created) + len(f.handoffs.published)
}

func item(cat Category, text string, createTask bool) *ChecklistItem {
	return &ChecklistItem{Category: cat, ItemText: text, CreateTask: createTask}
}

func TestGenerate_CreatesEveryOutput(t *testing.T) {
	f := newOrchFixture(t)
	assignee := uuid.New()
	rec := f.seed(t, func(r *Record) {
		r.Medications = []MedicationChange{{Name: "Metoprolol", ChangeType: ChangeNew, Dosage: "25mg"}}
		r.ShiftPlan = ShiftPlan{
			{Key: "0", Assignee: assignee.String()},
			{Key: "40", Assignee: assignee.String()},
		}
	},
		item(CategoryMedications, "Fill new prescriptions", true),
		item(CategoryFirstWeek, "Book follow-up", true),
		item(CategoryBeforeLeaving, "Ask about warning signs", false),
	)

	res, err := f.orch.Generate(context.Background(), rec.ID, f.actor)
	require.NoError(t, err)

	assert.Equal(t, ResultCompleted, res.Status)
	assert.Empty(t, res.Code)
	assert.Len(t, res.TasksCreated, 2)
	assert.Len(t, res.BinderItemsCreated, 1)
	assert.Len(t, res.ShiftsCreated, 1)
	require.NotNil(t, res.HandoffID)
	assert.Equal(t, Counts{TasksCreated: 2, HandoffCreated: true, ShiftsScheduled: 1, BinderUpdates: 1}, res.Counts)
	assert.Equal(t, 5, res.Attempted)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 1, res.Skipped)

	stored := f.records.stored(rec.ID)
	assert.Equal(t, StatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedBy)
	assert.Equal(t, f.actor, *stored.CompletedBy)
	assert.Equal(t, f.now, *stored.CompletedAt)
	want := GeneratedRefs{
		TaskIDs:       res.TasksCreated,
		ShiftIDs:      res.ShiftsCreated,
		BinderItemIDs: res.BinderItemsCreated,
		HandoffID:     res.HandoffID,
	}
	sortIDs := cmpopts.SortSlices(func(a, b uuid.UUID) bool { return a.String() < b.String() })
	if diff := cmp.Diff(want, stored.GeneratedRefs, sortIDs); diff != "" {
		t.Errorf("stored refs mismatch (-want +got):\n%s", diff)
	}

	items, err := f.checklist.ListByRecord(context.Background(), rec.ID)
	require.NoError(t, err)
	for _, it := range items {
		assert.Equal(t, it.CreateTask, it.TaskID != nil, "item %q link", it.ItemText)
	}

	require.Len(t, f.events.events, 1)
	assert.Equal(t, events.TypeDischargeCompleted, f.events.events[0].Type)
	assert.Equal(t, f.circle, f.events.events[0].CircleID)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, ResultCompleted, f.audit.entries[0].Outcome)
	assert.Equal(t, 2, f.audit.entries[0].Details["tasksCreated"])
}

func TestGenerate_NotFound(t *testing.T) {
	f := newOrchFixture(t)
	res, err := f.orch.Generate(context.Background(), uuid.New(), f.actor)
	assert.Nil(t, res)
	assert.Equal(t, CodeNotFound, CodeOf(err))
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, string(CodeNotFound), f.audit.entries[0].Outcome)
	assert.Nil(t, f.audit.entries[0].CircleID)
}

func TestGenerate_LookupErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"malformed stored state", fmt.Errorf("decode: %w", ErrMalformedState), CodeInvalidRecord},
		{"database down", errBoom, CodeUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrchFixture(t)
			f.records.getErr = tt.err
			_, err := f.orch.Generate(context.Background(), uuid.New(), f.actor)
			assert.Equal(t, tt.want, CodeOf(err))
			assert.Zero(t, f.ents.calls)
		})
	}
}

func TestGenerate_InvalidRecord(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Record)
	}{
		{"missing facility", func(r *Record) { r.FacilityName = "  " }},
		{"missing discharge date", func(r *Record) { r.DischargeDate = "" }},
		{"malformed discharge date", func(r *Record) { r.DischargeDate = "2025-13-01" }},
		{"missing patient", func(r *Record) { r.PatientID = uuid.Nil }},
		{"cancelled", func(r *Record) { r.Status = StatusCancelled }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrchFixture(t)
			rec := f.seed(t, tt.mutate, item(CategoryMedications, "Fill", true))
			_, err := f.orch.Generate(context.Background(), rec.ID, f.actor)
			assert.Equal(t, CodeInvalidRecord, CodeOf(err))
			assert.Zero(t, f.artifactCount())
			assert.Zero(t, f.records.completes)
		})
	}
}

func TestGenerate_AccessDeniedBeforeEntitlement(t *testing.T) {
	f := newOrchFixture(t)
	f.ents.allowed = false
	rec := f.seed(t, func(r *Record) {
		r.Medications = []MedicationChange{{Name: "Aspirin", ChangeType: ChangeNew}}
	}, item(CategoryMedications, "Fill", true))

	for _, actor := range []uuid.UUID{uuid.New(), f.viewer} {
		_, err := f.orch.Generate(context.Background(), rec.ID, actor)
		assert.Equal(t, CodeAccessDenied, CodeOf(err))
	}
	assert.Zero(t, f.ents.calls)
	assert.Zero(t, f.artifactCount())
	assert.Equal(t, StatusInProgress, f.records.stored(rec.ID).Status)
}

func TestGenerate_MembershipLookupFailsClosed(t *testing.T) {
	f := newOrchFixture(t)
	f.members.err = errBoom
	rec := f.seed(t, nil, item(CategoryMedications, "Fill", true))

	_, err := f.orch.Generate(context.Background(), rec.ID, f.actor)
	assert.Equal(t, CodeUnexpected, CodeOf(err))
	assert.Zero(t, f.artifactCount())
}

func TestGenerate_PaymentRequired(t *testing.T) {
	f := newOrchFixture(t)
	f.ents.allowed = false
	rec := f.seed(t, nil, item(CategoryMedications, "Fill", true))

	_, err := f.orch.Generate(context.Background(), rec.ID, f.actor)
	assert.Equal(t, CodePaymentRequired, CodeOf(err))
	assert.Equal(t, 1, f.ents.calls)
	assert.Zero(t, f.artifactCount())

	f.ents.allowed, f.ents.err = true, errBoom
	_, err = f.orch.Generate(context.Background(), rec.ID, f.actor)
	assert.Equal(t, CodeUnexpected, CodeOf(err))
	assert.Zero(t, f.artifactCount())
}

func TestGenerate_ErrorMessageCarriesNoRecordContent(t *testing.T) {
	f := newOrchFixture(t)
	rec := f.seed(t, func(r *Record) { r.FacilityName = "Secret Clinic" }, item(CategoryMedications, "Fill", true))

	_, err := f.orch.Generate(context.Background(), rec.ID, uuid.New())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "Secret Clinic")
	assert.NotContains(t, err.Error(), rec.ID.String())
}

func TestGenerate_SecondCallReturnsStoredRefs(t *testing.T) {
	f := newOrchFixture(t)
	rec := f.seed(t, func(r *Record) {
		r.Medications = []MedicationChange{{Name: "Aspirin", ChangeType: ChangeDoseChanged}}
	}, item(CategoryMedications, "Fill", true), item(CategoryFirstWeek, "Book", true))

	first, err := f.orch.Generate(context.Background(), rec.ID, f.actor)
	require.NoError(t, err)
	before := f.artifactCount()

	second, err := f.orch.Generate(context.Background(), rec.ID, f.actor)
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadyCompleted, second.Status)
	assert.Equal(t, before, f.artifactCount())
	assert.Equal(t, 1, f.records.completes)
	assert.Len(t, f.events.events, 1)

	sortIDs := cmpopts.SortSlices(func(a, b uuid.UUID) bool { return a.String() < b.String() })
	if diff := cmp.Diff(first.TasksCreated, second.TasksCreated, sortIDs); diff != "" {
		t.Errorf("task ids mismatch (-first +second):\n%s", diff)
	}
	assert.Equal(t, first.BinderItemsCreated, second.BinderItemsCreated)
	assert.Equal(t, first.HandoffID, second.HandoffID)
	assert.Equal(t, first.Counts, second.Counts)
}

func TestGenerate_PartialFailure(t *testing.T) {
	f := newOrchFixture(t)
	f.tasks.fail = func(tk *task.Task) error {
		if strings.Contains(tk.Title, "Broken") {
			return errBoom
		}
		return nil
	}
	rec := f.seed(t, nil,
		item(CategoryMedications, "Fill", true),
		item(CategoryFirstWeek, "Broken", true),
	)

	res, err := f.orch.Generate(context.Background(), rec.ID, f.actor)
	require.NoError(t, err)
	assert.Equal(t, ResultPartial, res.Status)
	assert.Equal(t, CodePartialGenerationFailure, res.Code)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, res.TasksCreated, 1)
	assert.NotNil(t, res.HandoffID)
	assert.Equal(t, StatusCompleted, f.records.stored(rec.ID).Status)
	assert.Equal(t, ResultPartial, f.audit.entries[0].Outcome)
}

func TestGenerate_PanicInOneItemIsContained(t *testing.T) {
	f := newOrchFixture(t)
	assignee := uuid.New().String()
	f.shifts.fail = func(sh *careshift.Shift) error {
		if sh.ShiftDate.Day() == 11 {
			panic("nil map")
		}
		return nil
	}
	rec := f.seed(t, func(r *Record) {
		r.ShiftPlan = ShiftPlan{{Key: "0", Assignee: assignee}, {Key: "1", Assignee: assignee}}
	})

	res, err := f.orch.Generate(context.Background(), rec.ID, f.actor)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, res.ShiftsCreated, 1)
	assert.Equal(t, ResultPartial, res.Status)
}

func TestGenerate_CompleteFailureKeepsPartialResult(t *testing.T) {
	f := newOrchFixture(t)
	f.records.completeErr = errBoom
	rec := f.seed(t, nil, item(CategoryMedications, "Fill", true))

	res, err := f.orch.Generate(context.Background(), rec.ID, f.actor)
	assert.Equal(t, CodeUnexpected, CodeOf(err))
	require.NotNil(t, res)
	assert.Len(t, res.TasksCreated, 1)
	assert.Empty(t, f.events.events)
	assert.Equal(t, string(CodeUnexpected), f.audit.entries[0].Outcome)
}

func TestGenerate_EventFailureDoesNotFailRun(t *testing.T) {
	f := newOrchFixture(t)
	f.events.err = errBoom
	rec := f.seed(t, nil)

	res, err := f.orch.Generate(context.Background(), rec.ID, f.actor)
	require.NoError(t, err)
	assert.Equal(t, ResultCompleted, res.Status)
}

func TestGenerate_KeepsExistingHandoff(t *testing.T) {
	f := newOrchFixture(t)
	existing := uuid.New()
	rec := f.seed(t, func(r *Record) { r.HandoffID = &existing })

	res, err := f.orch.Generate(context.Background(), rec.ID, f.actor)
	require.NoError(t, err)
	assert.Empty(t, f.handoffs.published)
	assert.Nil(t, res.HandoffID)
	assert.Equal(t, 1, res.Skipped)
	stored := f.records.stored(rec.ID)
	require.NotNil(t, stored.HandoffID)
	assert.Equal(t, existing, *stored.HandoffID)
}

func TestGenerate_RunsToCompletionWhenRequestEnds(t *testing.T) {
	tests := []struct {
		name string
		// start returns the request context and a func that ends it.
		start func(t *testing.T) (context.Context, func())
	}{
		{"client disconnects", func(t *testing.T) (context.Context, func()) {
			ctx, cancel := context.WithCancel(context.Background())
			t.Cleanup(cancel)
			return ctx, cancel
		}},
		{"deadline passes", func(t *testing.T) (context.Context, func()) {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			t.Cleanup(cancel)
			return ctx, func() { <-ctx.Done() }
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrchFixture(t)
			assignee := uuid.New().String()
			rec := f.seed(t, func(r *Record) {
				r.Medications = []MedicationChange{{Name: "Metoprolol", ChangeType: ChangeNew}}
				r.ShiftPlan = ShiftPlan{{Key: "0", Assignee: assignee}, {Key: "1", Assignee: assignee}}
			}, item(CategoryMedications, "Fill", true))

			ctx, end := tt.start(t)
			f.shifts.fail = func(*careshift.Shift) error {
				if len(f.shifts.created) == 0 {
					end()
				}
				return nil
			}

			res, err := f.orch.Generate(ctx, rec.ID, f.actor)
			require.Error(t, ctx.Err())
			require.NoError(t, err)
			assert.Equal(t, ResultCompleted, res.Status)
			assert.Zero(t, res.Failed)
			assert.Len(t, res.ShiftsCreated, 2)
			assert.NotNil(t, res.HandoffID)

			stored := f.records.stored(rec.ID)
			assert.Equal(t, StatusCompleted, stored.Status)
			assert.Len(t, stored.GeneratedRefs.ShiftIDs, 2)
			require.Len(t, f.audit.entries, 1)
			assert.Equal(t, ResultCompleted, f.audit.entries[0].Outcome)
			assert.Len(t, f.events.events, 1)
		})
	}
}

func TestGenerate_CancelledBeforeStartWritesNothing(t *testing.T) {
	f := newOrchFixture(t)
	rec := f.seed(t, nil, item(CategoryMedications, "Fill", true))
	f.records.getErr = context.Canceled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.orch.Generate(ctx, rec.ID, f.actor)
	assert.Equal(t, CodeUnexpected, CodeOf(err))
	assert.Zero(t, f.artifactCount())
	f.records.getErr = nil
	assert.Equal(t, StatusInProgress, f.records.stored(rec.ID).Status)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, string(CodeUnexpected), f.audit.entries[0].Outcome)
}

func TestGenerate_TaskServiceKeepsFullItemText(t *testing.T) {
	f := newOrchFixture(t)
	repo := &memTaskRepo{}
	f.orch.tasks = task.NewService(repo)
	long := strings.Repeat("a", 197) + "END"
	rec := f.seed(t, nil,
		item(CategoryMedications, long, true),
		item(CategoryEquipment, strings.Repeat("b", 300), true),
	)

	res, err := f.orch.Generate(context.Background(), rec.ID, f.actor)
	require.NoError(t, err)
	assert.Equal(t, ResultCompleted, res.Status)
	require.Len(t, res.TasksCreated, 2)

	titles := map[string]bool{}
	for _, tk := range repo.all() {
		titles[tk.Title] = true
		assert.LessOrEqual(t, utf8.RuneCountInString(tk.Title), task.MaxTitleLength)
	}
	assert.True(t, titles[taskTitlePrefix+long], "title lost its tail: %v", titles)
	assert.True(t, titles[taskTitlePrefix+strings.Repeat("b", 200)], "title not capped at 200 runes of text: %v", titles)
}

func TestGenerateTasks_RunTwiceCreatesOnce(t *testing.T) {
	f := newOrchFixture(t)
	rec := f.seed(t, nil,
		item(CategoryMedications, "Fill", true),
		item(CategoryEquipment, "Walker", true),
		item(CategoryHomePrep, "Rugs", false),
	)
	load := func() *run {
		items, err := f.checklist.ListByRecord(context.Background(), rec.ID)
		require.NoError(t, err)
		return &run{rec: rec, items: items, actorID: f.actor, dischargeDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), now: f.now}
	}

	first := f.orch.generateTasks(context.Background(), load())
	second := f.orch.generateTasks(context.Background(), load())

	assert.Equal(t, 2, first.count(outcomeCreated))
	assert.Empty(t, second.items)
	assert.Equal(t, 2, f.tasks.count())
}

func TestGenerateTasks_ItemLinkedConcurrentlyIsSkipped(t *testing.T) {
	f := newOrchFixture(t)
	rec := f.seed(t, nil, item(CategoryMedications, "Fill", true))
	items, err := f.checklist.ListByRecord(context.Background(), rec.ID)
	require.NoError(t, err)
	require.NoError(t, f.checklist.SetTaskID(context.Background(), items[0].ID, uuid.New()))

	r := &run{rec: rec, items: items, actorID: f.actor, dischargeDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), now: f.now}
	p := f.orch.generateTasks(context.Background(), r)
	require.Len(t, p.items, 1)
	assert.Equal(t, outcomeSkipped, p.items[0].outcome)
}

func TestBuildTask(t *testing.T) {
	actor, assignee := uuid.New(), uuid.New()
	notes := "Ask for <large> print"
	past := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &run{
		rec:           &Record{ID: uuid.New(), CircleID: uuid.New(), PatientID: uuid.New(), FacilityName: "A&B Hospital", DischargeDate: "2025-01-10"},
		actorID:       actor,
		dischargeDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		now:           time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC),
	}

	tk := buildTask(r, &ChecklistItem{Category: CategoryMedications, ItemText: "Fill\nnew  <b>scripts</b>", Notes: &notes})
	assert.Equal(t, "[Discharge] Fill new bscripts/b", tk.Title)
	assert.Equal(t, task.PriorityHigh, tk.Priority)
	assert.Equal(t, task.StatusOpen, tk.Status)
	assert.Equal(t, actor, *tk.OwnerID)
	assert.Equal(t, r.dischargeDate, *tk.DueAt)
	assert.Equal(t, task.SourceDischarge, *tk.SourceType)
	assert.Equal(t, r.rec.ID, *tk.SourceID)
	assert.Contains(t, *tk.Description, "A&amp;B Hospital")
	assert.Contains(t, *tk.Description, "&lt;large&gt;")

	tk = buildTask(r, &ChecklistItem{Category: CategoryFirstWeek, ItemText: "Book", AssigneeID: &assignee, DueDate: &past})
	assert.Equal(t, task.PriorityMed, tk.Priority)
	assert.Equal(t, assignee, *tk.OwnerID)
	assert.Equal(t, r.now, *tk.DueAt)
}

func TestGenerateBinderItems_OnlyKeptMedications(t *testing.T) {
	f := newOrchFixture(t)
	var meds []MedicationChange
	raw := `[{"name":"Warfarin","changeType":"STOPPED"},{"name":"Metoprolol","changeType":"new","dosage":"25mg"},{"name":"Lisinopril","changeType":"DOSE_CHANGED"}]`
	require.NoError(t, json.Unmarshal([]byte(raw), &meds))
	rec := f.seed(t, func(r *Record) { r.Medications = meds })

	res, err := f.orch.Generate(context.Background(), rec.ID, f.actor)
	require.NoError(t, err)
	assert.Len(t, res.BinderItemsCreated, 2)
	require.Len(t, f.binder.calls, 2)
	assert.Equal(t, "Metoprolol", f.binder.calls[0].name)
	assert.Equal(t, "25mg", f.binder.calls[0].content.Dosage)
	assert.Equal(t, "discharge", f.binder.calls[0].content.Source)
	assert.Equal(t, rec.ID, *f.binder.calls[0].content.DischargeRecordID)
	assert.Equal(t, "Lisinopril", f.binder.calls[1].name)
}

func TestGenerateShifts(t *testing.T) {
	f := newOrchFixture(t)
	assignee := uuid.New()
	rec := f.seed(t, func(r *Record) {
		r.ShiftPlan = ShiftPlan{
			{Key: "0", Assignee: assignee.String()},
			{Key: "2", Assignee: assignee.String()},
			{Key: "3", Assignee: "not-a-uuid"},
			{Key: "-1", Assignee: assignee.String()},
			{Key: "31", Assignee: assignee.String()},
			{Key: "02", Assignee: assignee.String()},
		}
	})

	res, err := f.orch.Generate(context.Background(), rec.ID, f.actor)
	require.NoError(t, err)
	assert.Len(t, res.ShiftsCreated, 2)
	assert.Equal(t, 4, res.Skipped)
	require.Len(t, f.shifts.created, 2)

	sh := f.shifts.created[1]
	assert.Equal(t, time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC), sh.ShiftDate)
	assert.Equal(t, assignee, sh.AssigneeID)
	assert.Equal(t, careshift.TypeDay, sh.Type)
	assert.Equal(t, careshift.StatusScheduled, sh.Status)
	assert.Equal(t, "Post-discharge care - Day 3", *sh.Note)
	assert.Equal(t, rec.ID, *sh.SourceID)
}

func TestGenerateHandoff_Snapshot(t *testing.T) {
	f := newOrchFixture(t)
	items := []*ChecklistItem{item(CategoryBeforeLeaving, "Done already", false)}
	items[0].IsCompleted = true
	for i := 0; i < 7; i++ {
		items = append(items, item(CategoryFirstWeek, fmt.Sprintf("Priority <%d>", i), false))
	}
	rec := f.seed(t, func(r *Record) {
		r.FacilityName = "<script>"
		r.ReasonForStay = "Hip fracture"
		r.Medications = []MedicationChange{{Name: "Warfarin", ChangeType: ChangeStopped}}
	}, items...)

	_, err := f.orch.Generate(context.Background(), rec.ID, f.actor)
	require.NoError(t, err)
	require.Len(t, f.handoffs.published, 1)

	h := f.handoffs.published[0]
	assert.Equal(t, "Discharge summary - <script>", h.Title)
	assert.Equal(t, rec.ID, *h.SourceID)
	assert.Contains(t, h.Summary, "Discharged from &lt;script&gt; on 2025-01-10.")
	assert.Contains(t, h.Summary, "Reason for stay: Hip fracture")
	assert.Contains(t, h.Summary, "- Warfarin: Stopped")
	assert.Contains(t, h.Summary, "Checklist: 1 of 8 items complete")
	assert.NotContains(t, h.Summary, "<")

	var snap snapshot
	require.NoError(t, json.Unmarshal(f.handoffs.payloads[0], &snap))
	assert.Equal(t, rec.ID, snap.DischargeRecordID)
	assert.Len(t, snap.FirstWeekPriorities, maxFirstWeekInSummary)
	assert.Equal(t, "Priority &lt;0&gt;", snap.FirstWeekPriorities[0])
	assert.Equal(t, 1, snap.ChecklistCompleted)
	assert.Equal(t, 8, snap.ChecklistTotal)
}

func TestGenerateHandoff_FailureCounted(t *testing.T) {
	f := newOrchFixture(t)
	f.handoffs.err = errors.New("translation failed")
	rec := f.seed(t, nil)

	res, err := f.orch.Generate(context.Background(), rec.ID, f.actor)
	require.NoError(t, err)
	assert.Nil(t, res.HandoffID)
	assert.False(t, res.Counts.HandoffCreated)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, CodePartialGenerationFailure, res.Code)
}
