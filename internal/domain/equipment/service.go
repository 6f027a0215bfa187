package equipment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicops/clinicops/internal/platform/db"
)

// ErrInvalid marks input rejected before touching storage.
var ErrInvalid = errors.New("invalid input")

// ErrDeleted is returned when a write targets soft-deleted equipment.
var ErrDeleted = errors.New("equipment is deleted")

type Service struct {
	equipment  EquipmentRepository
	details    DetailRepository
	parameters ParameterRepository
}

func NewService(eq EquipmentRepository, details DetailRepository, params ParameterRepository) *Service {
	return &Service{equipment: eq, details: details, parameters: params}
}

// -- Equipment --

func (s *Service) CreateEquipment(ctx context.Context, eq *Equipment) error {
	eq.Name = strings.TrimSpace(eq.Name)
	if eq.Name == "" {
		return fmt.Errorf("%w: equipment name is required", ErrInvalid)
	}
	ok, err := s.equipment.DepartmentExists(ctx, eq.DepartmentID)
	if err != nil {
		return fmt.Errorf("check department: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: department %s does not exist", ErrInvalid, eq.DepartmentID)
	}
	eq.IsActive = true
	eq.IsDeleted = false
	return s.equipment.Create(ctx, eq)
}

func (s *Service) GetEquipment(ctx context.Context, id uuid.UUID) (*Equipment, error) {
	return s.equipment.GetByID(ctx, id)
}

func (s *Service) ListEquipment(ctx context.Context, departmentID uuid.UUID, limit, offset int) ([]*Equipment, int, error) {
	return s.equipment.ListByDepartment(ctx, departmentID, limit, offset)
}

// SetEquipmentActive toggles the active flag. Requesting the current state is
// a no-op; deleted equipment cannot be reactivated.
func (s *Service) SetEquipmentActive(ctx context.Context, id uuid.UUID, active bool) (*Equipment, error) {
	eq, err := s.equipment.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if eq.IsActive == active {
		return eq, nil
	}
	if eq.IsDeleted {
		return nil, ErrDeleted
	}
	if err := s.equipment.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	eq.IsActive = active
	return eq, nil
}

// DeleteEquipment soft-deletes. Deleting twice succeeds.
func (s *Service) DeleteEquipment(ctx context.Context, id uuid.UUID) error {
	eq, err := s.equipment.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if eq.IsDeleted {
		return nil
	}
	return s.equipment.SoftDelete(ctx, id)
}

// liveEquipment loads equipment that can still accept children.
func (s *Service) liveEquipment(ctx context.Context, id uuid.UUID) (*Equipment, error) {
	eq, err := s.equipment.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: equipment %s does not exist", ErrInvalid, id)
		}
		return nil, err
	}
	if eq.IsDeleted {
		return nil, ErrDeleted
	}
	return eq, nil
}

// -- Details --

func (s *Service) CreateDetail(ctx context.Context, d *Detail) error {
	if _, err := s.liveEquipment(ctx, d.EquipmentID); err != nil {
		return err
	}
	d.IsActive = true
	return s.details.Create(ctx, d)
}

func (s *Service) ListDetails(ctx context.Context, equipmentID uuid.UUID) ([]*Detail, error) {
	return s.details.ListByEquipment(ctx, equipmentID)
}

func (s *Service) SetDetailActive(ctx context.Context, id uuid.UUID, active bool) (*Detail, error) {
	d, err := s.details.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.IsActive == active {
		return d, nil
	}
	if err := s.details.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	d.IsActive = active
	return d, nil
}

// -- Parameters --

func (s *Service) CreateParameter(ctx context.Context, p *Parameter) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: parameter name is required", ErrInvalid)
	}
	if _, err := s.liveEquipment(ctx, p.EquipmentID); err != nil {
		return err
	}
	if p.Config == nil {
		p.Config = map[string]interface{}{}
	}
	p.IsActive = true
	p.IsDeleted = false
	return s.parameters.Create(ctx, p)
}

func (s *Service) ListParameters(ctx context.Context, equipmentID uuid.UUID) ([]*Parameter, error) {
	return s.parameters.ListByEquipment(ctx, equipmentID)
}

// UpdateParameterConfig replaces the parameter's config document.
func (s *Service) UpdateParameterConfig(ctx context.Context, id uuid.UUID, config map[string]interface{}) (*Parameter, error) {
	p, err := s.parameters.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted {
		return nil, fmt.Errorf("%w: parameter %s is deleted", ErrInvalid, id)
	}
	if config == nil {
		config = map[string]interface{}{}
	}
	if err := s.parameters.UpdateConfig(ctx, id, config); err != nil {
		return nil, err
	}
	p.Config = config
	return p, nil
}

func (s *Service) SetParameterActive(ctx context.Context, id uuid.UUID, active bool) (*Parameter, error) {
	p, err := s.parameters.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsActive == active {
		return p, nil
	}
	if p.IsDeleted {
		return nil, fmt.Errorf("%w: parameter %s is deleted", ErrInvalid, id)
	}
	if err := s.parameters.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	p.IsActive = active
	return p, nil
}

func (s *Service) DeleteParameter(ctx context.Context, id uuid.UUID) error {
	p, err := s.parameters.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.IsDeleted {
		return nil
	}
	return s.parameters.SoftDelete(ctx, id)
}
