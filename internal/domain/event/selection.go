package event

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/clinicops/clinicops/internal/platform/db"
)

// ValidatedSelection is the immutable result of a successful validation.
// Details and parameters are sorted by id; accessors return copies.
type ValidatedSelection struct {
	department   Department
	details      []EquipmentDetail
	parameters   []Parameter
	equipmentIDs []uuid.UUID
}

func (s *ValidatedSelection) Department() Department { return s.department }

func (s *ValidatedSelection) EquipmentDetails() []EquipmentDetail {
	return append(make([]EquipmentDetail, 0, len(s.details)), s.details...)
}

func (s *ValidatedSelection) Parameters() []Parameter {
	out := make([]Parameter, len(s.parameters))
	for i, p := range s.parameters {
		out[i] = p.clone()
	}
	return out
}

// EquipmentIDs is the sorted set of live equipment represented by the
// selected details.
func (s *ValidatedSelection) EquipmentIDs() []uuid.UUID {
	return append(make([]uuid.UUID, 0, len(s.equipmentIDs)), s.equipmentIDs...)
}

// Validator resolves a requested selection against the store and checks that
// every id is active and scoped to the department's equipment graph.
type Validator struct {
	store Store
}

func NewValidator(store Store) *Validator {
	return &Validator{store: store}
}

// Validate runs the checks in a fixed order: department, equipment details,
// derived equipment, parameters. The first failing step decides the error.
// It performs no writes.
func (v *Validator) Validate(ctx context.Context, departmentID uuid.UUID, detailIDs, parameterIDs []uuid.UUID) (*ValidatedSelection, error) {
	dept, err := v.store.GetDepartment(ctx, departmentID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, &NotFoundError{Entity: "department", ID: departmentID}
		}
		return nil, fmt.Errorf("resolve department: %w", err)
	}

	detailIDs = distinct(detailIDs)
	var details []EquipmentDetail
	if len(detailIDs) > 0 {
		details, err = v.store.FindEquipmentDetails(ctx, detailIDs, dept.ID, true)
		if err != nil {
			return nil, fmt.Errorf("resolve equipment details: %w", err)
		}
		if rejected := missing(detailIDs, details, func(d EquipmentDetail) uuid.UUID { return d.ID }); len(rejected) > 0 {
			return nil, &SelectionError{Kind: KindEquipmentDetails, Rejected: rejected}
		}
	}

	equipmentIDs, err := v.liveEquipment(ctx, details)
	if err != nil {
		return nil, err
	}

	parameterIDs = distinct(parameterIDs)
	var params []Parameter
	if len(parameterIDs) > 0 {
		params, err = v.store.FindParameters(ctx, parameterIDs, true)
		if err != nil {
			return nil, fmt.Errorf("resolve parameters: %w", err)
		}
		rejected := missing(parameterIDs, params, func(p Parameter) uuid.UUID { return p.ID })
		for _, p := range params {
			if _, ok := slices.BinarySearchFunc(equipmentIDs, p.EquipmentID, compareUUID); !ok {
				rejected = append(rejected, p.ID)
			}
		}
		if len(rejected) > 0 {
			slices.SortFunc(rejected, compareUUID)
			return nil, &SelectionError{Kind: KindParameters, Rejected: rejected}
		}
	}

	slices.SortFunc(details, func(a, b EquipmentDetail) int { return compareUUID(a.ID, b.ID) })
	slices.SortFunc(params, func(a, b Parameter) int { return compareUUID(a.ID, b.ID) })
	for i := range params {
		params[i] = params[i].clone()
	}

	return &ValidatedSelection{
		department:   *dept,
		details:      details,
		parameters:   params,
		equipmentIDs: equipmentIDs,
	}, nil
}

// liveEquipment derives the distinct equipment ids behind details and keeps
// the ones that are active and not deleted. The result is sorted.
func (v *Validator) liveEquipment(ctx context.Context, details []EquipmentDetail) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.EquipmentID)
	}
	ids = distinct(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	equipment, err := v.store.FindEquipment(ctx, ids, true, true)
	if err != nil {
		return nil, fmt.Errorf("resolve equipment: %w", err)
	}
	live := make([]uuid.UUID, 0, len(equipment))
	for _, eq := range equipment {
		live = append(live, eq.ID)
	}
	return distinct(live), nil
}

func compareUUID(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}

// distinct returns the sorted set of ids.
func distinct(ids []uuid.UUID) []uuid.UUID {
	out := slices.Clone(ids)
	slices.SortFunc(out, compareUUID)
	return slices.Compact(out)
}

// missing returns the ids in want (sorted) that no row in got carries.
func missing[T any](want []uuid.UUID, got []T, id func(T) uuid.UUID) []uuid.UUID {
	found := make(map[uuid.UUID]struct{}, len(got))
	for _, row := range got {
		found[id(row)] = struct{}{}
	}
	var out []uuid.UUID
	for _, w := range want {
		if _, ok := found[w]; !ok {
			out = append(out, w)
		}
	}
	return out
}
