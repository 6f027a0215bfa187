package event

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinicops/internal/platform/metrics"
	"github.com/clinicops/clinicops/internal/platform/notification"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification.EventCreated
}

func (n *recordingNotifier) DispatchEventCreated(_ context.Context, ev notification.EventCreated) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, ev)
	return true
}

func newTestService(w *world) (*Service, *recordingNotifier, *metrics.Registry) {
	n := &recordingNotifier{}
	m := metrics.New()
	return NewService(w.store, n, m, zerolog.Nop()), n, m
}

func TestService_Create_NotifiesAndCounts(t *testing.T) {
	w := newWorld()
	svc, n, m := newTestService(w)

	ev, err := svc.Create(context.Background(), CreateInput{
		DepartmentID:       w.dept.ID,
		DefaultAssignee:    &w.emp,
		Name:               "Morning calibration",
		EquipmentDetailIDs: ids(w.ed1),
		ParameterIDs:       ids(w.p1),
		Schedule:           oneTime(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(n.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(n.sent))
	}
	got := n.sent[0]
	if got.EventID != ev.ID || got.DepartmentID != w.dept.ID || got.Name != "Morning calibration" {
		t.Errorf("unexpected notification: %+v", got)
	}
	if got.DepartmentName != "Hematology" || got.AssigneeEmail != "dana@clinic.example" {
		t.Errorf("expected department and assignee contact, got %+v", got)
	}
	if got.Schedule != "one_time 2026-11-02 09:00-10:30" {
		t.Errorf("schedule summary = %q", got.Schedule)
	}

	_, err = svc.Create(context.Background(), CreateInput{
		DepartmentID:       w.dept.ID,
		DefaultAssignee:    &w.emp,
		Name:               "Bad",
		EquipmentDetailIDs: ids(w.ed3),
		Schedule:           oneTime(),
	})
	if err == nil {
		t.Fatal("expected selection error")
	}
	if len(n.sent) != 1 {
		t.Errorf("rejected composition must not notify, got %d notifications", len(n.sent))
	}

	expected := `
# HELP clinicops_event_compositions_total Event composition attempts by outcome
# TYPE clinicops_event_compositions_total counter
clinicops_event_compositions_total{outcome="created"} 1
clinicops_event_compositions_total{outcome="rejected"} 1
`
	if err := testutil.GatherAndCompare(m.Gatherer(), strings.NewReader(expected), "clinicops_event_compositions_total"); err != nil {
		t.Error(err)
	}
}

func TestService_Create_FailureOutcomes(t *testing.T) {
	w := newWorld()
	svc, n, m := newTestService(w)
	ctx := context.Background()

	svc.Create(ctx, CreateInput{DepartmentID: uuid.New(), DefaultAssignee: &w.emp, Name: "x", Schedule: oneTime()})
	w.store.failAt(failInsertSchedule)
	svc.Create(ctx, CreateInput{DepartmentID: w.dept.ID, DefaultAssignee: &w.emp, Name: "x", Schedule: oneTime()})

	if len(n.sent) != 0 {
		t.Errorf("expected no notifications, got %d", len(n.sent))
	}
	expected := `
# HELP clinicops_event_compositions_total Event composition attempts by outcome
# TYPE clinicops_event_compositions_total counter
clinicops_event_compositions_total{outcome="failed"} 1
clinicops_event_compositions_total{outcome="not_found"} 1
`
	if err := testutil.GatherAndCompare(m.Gatherer(), strings.NewReader(expected), "clinicops_event_compositions_total"); err != nil {
		t.Error(err)
	}
}

func TestService_WorksWithoutNotifierOrMetrics(t *testing.T) {
	w := newWorld()
	svc := NewService(w.store, nil, nil, zerolog.Nop())
	_, err := svc.Create(context.Background(), CreateInput{
		DepartmentID: w.dept.ID, DefaultAssignee: &w.emp, Name: "x", Schedule: oneTime(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestService_Get_NotFound(t *testing.T) {
	w := newWorld()
	svc, _, _ := newTestService(w)
	_, err := svc.Get(context.Background(), uuid.New())
	nf, ok := err.(*NotFoundError)
	if !ok || nf.Entity != "event" {
		t.Fatalf("expected event NotFoundError, got %v", err)
	}
}

func TestDescribeSchedule(t *testing.T) {
	tests := []struct {
		name string
		s    Schedule
		want string
	}{
		{"one time", oneTime(), "one_time 2026-11-02 09:00-10:30"},
		{"recurring", Schedule{
			Type:      "weekly",
			StartDate: oneTime().OneTimeDate,
			EndDate:   oneTime().OneTimeDate,
			Days:      []string{"mon", "thu"},
			FromTime:  oneTime().FromTime,
		}, "weekly 2026-11-02 to 2026-11-02 mon,thu 09:00"},
		{"type only", Schedule{Type: "ad_hoc"}, "ad_hoc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeSchedule(tt.s); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
