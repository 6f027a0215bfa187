package event

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinicops/internal/platform/db"
)

// Write stages at which fakeStore can be told to fail.
const (
	failInsertEvent     = "event"
	failInsertSchedule  = "schedule"
	failEquipmentLink   = "equipment_link"
	failParameterLink   = "parameter_link"
	failCommit          = "commit"
	failGetEmployeeInTx = "employee"
)

type link struct {
	eventID uuid.UUID
	id      uuid.UUID
}

// fakeStore is an in-memory Store. Transactions stage their writes and
// apply them only when fn and the injected commit both succeed.
type fakeStore struct {
	mu sync.Mutex

	departments map[uuid.UUID]Department
	equipment   map[uuid.UUID]Equipment
	details     map[uuid.UUID]EquipmentDetail
	parameters  map[uuid.UUID]Parameter
	employees   map[uuid.UUID]Employee

	events     map[uuid.UUID]Event
	schedules  map[uuid.UUID]Schedule
	eqLinks    map[link]struct{}
	paramLinks map[link]struct{}

	failOn  string
	failErr error
	lookups int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		departments: map[uuid.UUID]Department{},
		equipment:   map[uuid.UUID]Equipment{},
		details:     map[uuid.UUID]EquipmentDetail{},
		parameters:  map[uuid.UUID]Parameter{},
		employees:   map[uuid.UUID]Employee{},
		events:      map[uuid.UUID]Event{},
		schedules:   map[uuid.UUID]Schedule{},
		eqLinks:     map[link]struct{}{},
		paramLinks:  map[link]struct{}{},
	}
}

func (s *fakeStore) failAt(stage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn = stage
	s.failErr = errors.New("injected failure at " + stage)
	return s.failErr
}

// rowCounts returns events, schedules, equipment links and parameter links.
func (s *fakeStore) rowCounts() (int, int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events), len(s.schedules), len(s.eqLinks), len(s.paramLinks)
}

func (s *fakeStore) GetDepartment(_ context.Context, id uuid.UUID) (*Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	d, ok := s.departments[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &d, nil
}

func (s *fakeStore) FindEquipmentDetails(_ context.Context, ids []uuid.UUID, departmentID uuid.UUID, activeOnly bool) ([]EquipmentDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	var out []EquipmentDetail
	for _, id := range ids {
		d, ok := s.details[id]
		if !ok || (activeOnly && !d.IsActive) {
			continue
		}
		if eq, ok := s.equipment[d.EquipmentID]; !ok || eq.DepartmentID != departmentID {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *fakeStore) FindEquipment(_ context.Context, ids []uuid.UUID, activeOnly, notDeleted bool) ([]Equipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	var out []Equipment
	for _, id := range ids {
		eq, ok := s.equipment[id]
		if !ok || (activeOnly && !eq.IsActive) || (notDeleted && eq.IsDeleted) {
			continue
		}
		out = append(out, eq)
	}
	return out, nil
}

func (s *fakeStore) FindParameters(_ context.Context, ids []uuid.UUID, activeOnly bool) ([]Parameter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	var out []Parameter
	for _, id := range ids {
		p, ok := s.parameters[id]
		if !ok || (activeOnly && !p.IsActive) {
			continue
		}
		out = append(out, p.clone())
	}
	return out, nil
}

func (s *fakeStore) GetEmployee(_ context.Context, id uuid.UUID) (*Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.employee(id)
}

func (s *fakeStore) employee(id uuid.UUID) (*Employee, error) {
	e, ok := s.employees[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &e, nil
}

func (s *fakeStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &fakeTx{store: s, schedules: map[uuid.UUID]Schedule{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if s.failOn == failCommit {
		return s.failErr
	}
	for _, e := range tx.events {
		s.events[e.ID] = e
	}
	for id, sc := range tx.schedules {
		s.schedules[id] = sc
	}
	for _, l := range tx.eqLinks {
		s.eqLinks[l] = struct{}{}
	}
	for _, l := range tx.paramLinks {
		s.paramLinks[l] = struct{}{}
	}
	return nil
}

func (s *fakeStore) GetEvent(_ context.Context, id uuid.UUID) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	e.Schedule = s.schedules[id]
	e.Assignee, _ = s.employee(e.AssigneeID)
	e.EquipmentDetails = []EquipmentDetail{}
	e.Parameters = []Parameter{}
	for l := range s.eqLinks {
		if l.eventID == id {
			e.EquipmentDetails = append(e.EquipmentDetails, s.details[l.id])
		}
	}
	for l := range s.paramLinks {
		if l.eventID == id {
			e.Parameters = append(e.Parameters, s.parameters[l.id].clone())
		}
	}
	sort.Slice(e.EquipmentDetails, func(i, j int) bool {
		return compareUUID(e.EquipmentDetails[i].ID, e.EquipmentDetails[j].ID) < 0
	})
	sort.Slice(e.Parameters, func(i, j int) bool {
		return compareUUID(e.Parameters[i].ID, e.Parameters[j].ID) < 0
	})
	return &e, nil
}

func (s *fakeStore) ListEvents(_ context.Context, departmentID *uuid.UUID, limit, offset int) ([]*Summary, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*Summary
	for _, e := range s.events {
		if departmentID != nil && e.DepartmentID != *departmentID {
			continue
		}
		sm := &Summary{
			ID:           e.ID,
			DepartmentID: e.DepartmentID,
			AssigneeID:   e.AssigneeID,
			AssigneeName: s.employees[e.AssigneeID].Name,
			Name:         e.Name,
			Description:  e.Description,
			ScheduleType: s.schedules[e.ID].Type,
			CreatedAt:    e.CreatedAt,
		}
		for l := range s.eqLinks {
			if l.eventID == e.ID {
				sm.EquipmentCount++
			}
		}
		for l := range s.paramLinks {
			if l.eventID == e.ID {
				sm.ParameterCount++
			}
		}
		all = append(all, sm)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

// fakeTx stages writes; the store lock is held for its whole lifetime.
type fakeTx struct {
	store      *fakeStore
	events     []Event
	schedules  map[uuid.UUID]Schedule
	eqLinks    []link
	paramLinks []link
}

func (t *fakeTx) GetEmployee(_ context.Context, id uuid.UUID) (*Employee, error) {
	if t.store.failOn == failGetEmployeeInTx {
		return nil, t.store.failErr
	}
	return t.store.employee(id)
}

func (t *fakeTx) InsertEvent(_ context.Context, e *Event) error {
	if t.store.failOn == failInsertEvent {
		return t.store.failErr
	}
	e.CreatedAt = time.Now().UTC()
	t.events = append(t.events, Event{
		ID:           e.ID,
		DepartmentID: e.DepartmentID,
		AssigneeID:   e.AssigneeID,
		Name:         e.Name,
		Description:  e.Description,
		CreatedAt:    e.CreatedAt,
	})
	return nil
}

func (t *fakeTx) InsertSchedule(_ context.Context, eventID uuid.UUID, s *Schedule) error {
	if t.store.failOn == failInsertSchedule {
		return t.store.failErr
	}
	t.schedules[eventID] = *s
	return nil
}

func (t *fakeTx) InsertEquipmentLink(_ context.Context, eventID, id uuid.UUID) error {
	if t.store.failOn == failEquipmentLink {
		return t.store.failErr
	}
	return t.addLink(&t.eqLinks, t.store.eqLinks, link{eventID, id})
}

func (t *fakeTx) InsertParameterLink(_ context.Context, eventID, id uuid.UUID) error {
	if t.store.failOn == failParameterLink {
		return t.store.failErr
	}
	return t.addLink(&t.paramLinks, t.store.paramLinks, link{eventID, id})
}

// addLink mirrors the (event_id, id) unique constraint of the link tables.
func (t *fakeTx) addLink(staged *[]link, committed map[link]struct{}, l link) error {
	if _, ok := committed[l]; ok {
		return errDuplicateLink
	}
	for _, existing := range *staged {
		if existing == l {
			return errDuplicateLink
		}
	}
	*staged = append(*staged, l)
	return nil
}

var errDuplicateLink = errors.New("duplicate key value violates unique constraint")

// world is the catalog most tests run against.
//
//	dept:  E1 (ED1, ED1b, ED1off inactive; P1, P1off inactive)
//	       E2 (ED2; P2)
//	       E5 deleted (ED5; P5)
//	other: E3 (ED3; P3)
type world struct {
	store *fakeStore

	dept, other Department

	e1, e2, e3, e5                   Equipment
	ed1, ed1b, ed1off, ed2, ed3, ed5 EquipmentDetail
	p1, p1off, p2, p3, p5            Parameter

	emp, boss Employee
}

func newWorld() *world {
	s := newFakeStore()
	w := &world{store: s}

	w.dept = Department{ID: uuid.New(), ClinicID: uuid.New(), Name: "Hematology", IsActive: true}
	w.other = Department{ID: uuid.New(), ClinicID: w.dept.ClinicID, Name: "Radiology", IsActive: true}
	s.departments[w.dept.ID] = w.dept
	s.departments[w.other.ID] = w.other

	eq := func(dept Department, name string, active, deleted bool) Equipment {
		e := Equipment{ID: uuid.New(), DepartmentID: dept.ID, Name: name, IsActive: active, IsDeleted: deleted}
		s.equipment[e.ID] = e
		return e
	}
	detail := func(e Equipment, serial string, active bool) EquipmentDetail {
		d := EquipmentDetail{ID: uuid.New(), EquipmentID: e.ID, IsActive: active}
		d.SerialNumber.SetValid(serial)
		s.details[d.ID] = d
		return d
	}
	param := func(e Equipment, name string, active bool) Parameter {
		p := Parameter{ID: uuid.New(), EquipmentID: e.ID, Name: name, IsActive: active,
			Config: map[string]interface{}{"unit": name}}
		s.parameters[p.ID] = p
		return p
	}

	w.e1 = eq(w.dept, "Centrifuge", true, false)
	w.e2 = eq(w.dept, "Analyzer", true, false)
	w.e3 = eq(w.other, "X-Ray", true, false)
	w.e5 = eq(w.dept, "Retired", false, true)

	w.ed1 = detail(w.e1, "CF-1", true)
	w.ed1b = detail(w.e1, "CF-2", true)
	w.ed1off = detail(w.e1, "CF-OLD", false)
	w.ed2 = detail(w.e2, "AN-1", true)
	w.ed3 = detail(w.e3, "XR-1", true)
	w.ed5 = detail(w.e5, "RT-1", true)

	w.p1 = param(w.e1, "rpm", true)
	w.p1off = param(w.e1, "vibration", false)
	w.p2 = param(w.e2, "glucose", true)
	w.p3 = param(w.e3, "dose", true)
	w.p5 = param(w.e5, "legacy", true)

	w.emp = Employee{ID: uuid.New(), Name: "Dana Reyes", IsActive: true}
	w.emp.Email.SetValid("dana@clinic.example")
	w.emp.Phone.SetValid("+15551234567")
	w.boss = Employee{ID: uuid.New(), Name: "Sam Ortiz", IsActive: true}
	s.employees[w.emp.ID] = w.emp
	s.employees[w.boss.ID] = w.boss

	return w
}

// ids collects the ids of fixture rows; bare uuids pass through.
func ids(rows ...interface{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		switch v := r.(type) {
		case uuid.UUID:
			out = append(out, v)
		case EquipmentDetail:
			out = append(out, v.ID)
		case Parameter:
			out = append(out, v.ID)
		case Equipment:
			out = append(out, v.ID)
		default:
			panic(fmt.Sprintf("ids: unsupported fixture type %T", r))
		}
	}
	return out
}
