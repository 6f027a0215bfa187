package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicops/clinicops/internal/platform/db"
)

var ErrInvalid = errors.New("invalid input")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, e *Employee) error {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return fmt.Errorf("%w: employee name is required", ErrInvalid)
	}
	e.IsActive = true
	if err := s.repo.Create(ctx, e); err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: user_id %q is already linked to an employee", ErrInvalid, e.UserID.String)
		}
		return err
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Employee, error) {
	return s.repo.GetByID(ctx, id)
}

// ForUser resolves the employee record behind an authenticated subject.
func (s *Service) ForUser(ctx context.Context, userID string) (*Employee, error) {
	if userID == "" {
		return nil, db.ErrNotFound
	}
	return s.repo.GetByUserID(ctx, userID)
}

func (s *Service) List(ctx context.Context, departmentID *uuid.UUID, limit, offset int) ([]*Employee, int, error) {
	return s.repo.List(ctx, departmentID, limit, offset)
}
