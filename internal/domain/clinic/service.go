package clinic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicops/clinicops/internal/platform/db"
)

// ErrInvalid marks input rejected by the service before touching storage.
var ErrInvalid = errors.New("invalid input")

type Service struct {
	clinics ClinicRepository
	depts   DepartmentRepository
}

func NewService(clinics ClinicRepository, depts DepartmentRepository) *Service {
	return &Service{clinics: clinics, depts: depts}
}

// -- Clinic --

func (s *Service) CreateClinic(ctx context.Context, c *Clinic) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: clinic name is required", ErrInvalid)
	}
	c.IsActive = true
	return s.clinics.Create(ctx, c)
}

func (s *Service) GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return s.clinics.GetByID(ctx, id)
}

func (s *Service) ListClinics(ctx context.Context, limit, offset int) ([]*Clinic, int, error) {
	return s.clinics.List(ctx, limit, offset)
}

// -- Department --

func (s *Service) CreateDepartment(ctx context.Context, d *Department) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return fmt.Errorf("%w: department name is required", ErrInvalid)
	}
	if _, err := s.clinics.GetByID(ctx, d.ClinicID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: clinic %s does not exist", ErrInvalid, d.ClinicID)
		}
		return err
	}
	d.IsActive = true
	return s.depts.Create(ctx, d)
}

func (s *Service) GetDepartment(ctx context.Context, id uuid.UUID) (*Department, error) {
	return s.depts.GetByID(ctx, id)
}

func (s *Service) ListDepartments(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Department, int, error) {
	return s.depts.ListByClinic(ctx, clinicID, limit, offset)
}

func (s *Service) RenameDepartment(ctx context.Context, id uuid.UUID, name string) (*Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: department name is required", ErrInvalid)
	}
	if err := s.depts.Rename(ctx, id, name); err != nil {
		return nil, err
	}
	return s.depts.GetByID(ctx, id)
}

// SetDepartmentActive toggles the active flag. Requesting the current state
// is a successful no-op.
func (s *Service) SetDepartmentActive(ctx context.Context, id uuid.UUID, active bool) (*Department, error) {
	d, err := s.depts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.IsActive == active {
		return d, nil
	}
	if err := s.depts.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	d.IsActive = active
	return d, nil
}
