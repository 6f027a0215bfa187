package event

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinicops/internal/platform/db"
	"github.com/clinicops/clinicops/internal/platform/metrics"
	"github.com/clinicops/clinicops/internal/platform/notification"
)

// exportLimit caps a single spreadsheet export.
const exportLimit = 10000

// Notifier receives successfully composed events. Its result never affects
// the composition.
type Notifier interface {
	DispatchEventCreated(ctx context.Context, n notification.EventCreated) bool
}

// CreateInput is a composition request after HTTP parsing.
type CreateInput struct {
	DepartmentID       uuid.UUID
	AssigneeID         *uuid.UUID
	DefaultAssignee    *Employee
	Name               string
	Description        string
	EquipmentDetailIDs []uuid.UUID
	ParameterIDs       []uuid.UUID
	Schedule           Schedule
}

type Service struct {
	store     Store
	validator *Validator
	composer  *Composer
	notifier  Notifier
	metrics   *metrics.Registry
	logger    zerolog.Logger
}

// NewService wires the validator and composer over store. notifier and m may
// be nil.
func NewService(store Store, notifier Notifier, m *metrics.Registry, logger zerolog.Logger) *Service {
	return &Service{
		store:     store,
		validator: NewValidator(store),
		composer:  NewComposer(store),
		notifier:  notifier,
		metrics:   m,
		logger:    logger.With().Str("component", "event").Logger(),
	}
}

// Create validates the selection, composes the event and queues the
// created-event notification.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Event, error) {
	start := time.Now()
	ev, sel, err := s.create(ctx, in)
	s.metrics.ObserveComposition(outcome(err), time.Since(start))
	if err != nil {
		var ce *CompositionError
		if errors.As(err, &ce) {
			s.logger.Error().Err(ce.Cause).Str("department_id", in.DepartmentID.String()).Msg("event composition failed")
		}
		return nil, err
	}

	s.logger.Info().
		Str("event_id", ev.ID.String()).
		Str("department_id", ev.DepartmentID.String()).
		Int("equipment_details", len(ev.EquipmentDetails)).
		Int("parameters", len(ev.Parameters)).
		Msg("event created")

	if s.notifier != nil {
		s.notifier.DispatchEventCreated(ctx, notificationFor(ev, sel.Department()))
	}
	return ev, nil
}

func (s *Service) create(ctx context.Context, in CreateInput) (*Event, *ValidatedSelection, error) {
	sel, err := s.validator.Validate(ctx, in.DepartmentID, in.EquipmentDetailIDs, in.ParameterIDs)
	if err != nil {
		return nil, nil, err
	}
	ev, err := s.composer.Compose(ctx, sel, ComposeInput{
		AssigneeID:      in.AssigneeID,
		DefaultAssignee: in.DefaultAssignee,
		Name:            in.Name,
		Description:     in.Description,
		Schedule:        in.Schedule,
	})
	if err != nil {
		return nil, nil, err
	}
	return ev, sel, nil
}

// Validate is a dry run of the selection checks.
func (s *Service) Validate(ctx context.Context, departmentID uuid.UUID, detailIDs, parameterIDs []uuid.UUID) (*ValidatedSelection, error) {
	return s.validator.Validate(ctx, departmentID, detailIDs, parameterIDs)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Event, error) {
	ev, err := s.store.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, &NotFoundError{Entity: "event", ID: id}
		}
		return nil, err
	}
	return ev, nil
}

func (s *Service) List(ctx context.Context, departmentID *uuid.UUID, limit, offset int) ([]*Summary, int, error) {
	return s.store.ListEvents(ctx, departmentID, limit, offset)
}

func outcome(err error) string {
	var (
		nf *NotFoundError
		se *SelectionError
	)
	switch {
	case err == nil:
		return metrics.OutcomeCreated
	case errors.As(err, &se):
		return metrics.OutcomeRejected
	case errors.As(err, &nf):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeFailed
	}
}

func notificationFor(ev *Event, dept Department) notification.EventCreated {
	n := notification.EventCreated{
		EventID:        ev.ID,
		DepartmentID:   ev.DepartmentID,
		DepartmentName: dept.Name,
		Name:           ev.Name,
		Schedule:       describeSchedule(ev.Schedule),
	}
	if a := ev.Assignee; a != nil {
		n.AssigneeName = a.Name
		n.AssigneeEmail = a.Email.String
		n.AssigneePhone = a.Phone.String
	}
	return n
}

// describeSchedule renders a one-line human summary for messages.
func describeSchedule(s Schedule) string {
	parts := []string{s.Type}
	switch {
	case s.OneTimeDate.Valid:
		parts = append(parts, s.OneTimeDate.String)
	case s.StartDate.Valid && s.EndDate.Valid:
		parts = append(parts, s.StartDate.String+" to "+s.EndDate.String)
	case s.StartDate.Valid:
		parts = append(parts, "from "+s.StartDate.String)
	}
	if len(s.Days) > 0 {
		parts = append(parts, strings.Join(s.Days, ","))
	}
	if s.FromTime.Valid && s.ToTime.Valid {
		parts = append(parts, s.FromTime.String+"-"+s.ToTime.String)
	} else if s.FromTime.Valid {
		parts = append(parts, s.FromTime.String)
	}
	return strings.Join(parts, " ")
}
