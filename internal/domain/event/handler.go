package event

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicops/clinicops/internal/domain/staff"
	"github.com/clinicops/clinicops/internal/platform/auth"
	"github.com/clinicops/clinicops/internal/platform/db"
	"github.com/clinicops/clinicops/internal/platform/validation"
	"github.com/clinicops/clinicops/pkg/pagination"
)

// AssigneeLookup finds the employee linked to an identity subject.
type AssigneeLookup interface {
	ForUser(ctx context.Context, userID string) (*staff.Employee, error)
}

type Handler struct {
	svc       *Service
	assignees AssigneeLookup
}

func NewHandler(svc *Service, assignees AssigneeLookup) *Handler {
	return &Handler{svc: svc, assignees: assignees}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Employees schedule their own events, so writes share the read roles.
	read := api.Group("", auth.RequireRole(auth.RoleManager, auth.RoleEmployee))
	read.GET("/events", h.List)
	read.GET("/events/export", h.Export)
	read.GET("/events/:id", h.Get)
	read.POST("/events/validate", h.Validate)
	read.POST("/events", h.Create)
}

type selectionRequest struct {
	DepartmentID        uuid.UUID   `json:"department_id"`
	EquipmentDetailsIDs []uuid.UUID `json:"equipment_details_ids"`
	ParameterIDs        []uuid.UUID `json:"parameter_ids"`
}

type createEventRequest struct {
	selectionRequest
	AssignmentID *uuid.UUID `json:"assignment_id"`
	EventName    string     `json:"event_name" validate:"required,max=255"`
	Description  string     `json:"description" validate:"max=4000"`
	Schedule     *Schedule  `json:"schedule" validate:"required"`
}

type validateResponse struct {
	DepartmentID        uuid.UUID   `json:"department_id"`
	EquipmentDetailsIDs []uuid.UUID `json:"equipment_details_ids"`
	ParameterIDs        []uuid.UUID `json:"parameter_ids"`
	EquipmentIDs        []uuid.UUID `json:"equipment_ids"`
}

// Create handles POST /events.
func (h *Handler) Create(c echo.Context) error {
	var req createEventRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	if req.DepartmentID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "department_id is required")
	}

	ctx := c.Request().Context()
	in := CreateInput{
		DepartmentID:       req.DepartmentID,
		AssigneeID:         req.AssignmentID,
		Name:               req.EventName,
		Description:        req.Description,
		EquipmentDetailIDs: req.EquipmentDetailsIDs,
		ParameterIDs:       req.ParameterIDs,
		Schedule:           *req.Schedule,
	}
	if in.AssigneeID == nil {
		def, err := h.defaultAssignee(ctx)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		in.DefaultAssignee = def
	}

	ev, err := h.svc.Create(ctx, in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, ev)
}

// defaultAssignee resolves the caller's own employee record. A caller with
// no linked employee yields nil, not an error.
func (h *Handler) defaultAssignee(ctx context.Context) (*Employee, error) {
	if h.assignees == nil {
		return nil, nil
	}
	emp, err := h.assignees.ForUser(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve default assignee: %w", err)
	}
	return &Employee{
		ID:       emp.ID,
		Name:     emp.Name,
		Email:    emp.Email,
		Phone:    emp.Phone,
		IsActive: emp.IsActive,
	}, nil
}

// Validate handles POST /events/validate without writing anything.
func (h *Handler) Validate(c echo.Context) error {
	var req selectionRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	sel, err := h.svc.Validate(c.Request().Context(), req.DepartmentID, req.EquipmentDetailsIDs, req.ParameterIDs)
	if err != nil {
		return mapError(err)
	}

	resp := validateResponse{
		DepartmentID:        sel.Department().ID,
		EquipmentDetailsIDs: []uuid.UUID{},
		ParameterIDs:        []uuid.UUID{},
		EquipmentIDs:        sel.EquipmentIDs(),
	}
	for _, d := range sel.EquipmentDetails() {
		resp.EquipmentDetailsIDs = append(resp.EquipmentDetailsIDs, d.ID)
	}
	for _, p := range sel.Parameters() {
		resp.ParameterIDs = append(resp.ParameterIDs, p.ID)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ev, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ev)
}

func (h *Handler) List(c echo.Context) error {
	deptID, err := departmentFilter(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), deptID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	filters := url.Values{}
	if deptID != nil {
		filters.Set("department_id", deptID.String())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p).WithLinks("/api/v1/events", filters))
}

// Export streams GET /events/export as an XLSX attachment.
func (h *Handler) Export(c echo.Context) error {
	deptID, err := departmentFilter(c)
	if err != nil {
		return err
	}
	items, _, err := h.svc.List(c.Request().Context(), deptID, exportLimit, 0)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	fileName := fmt.Sprintf("events_%s.xlsx", time.Now().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+fileName)
	c.Response().WriteHeader(http.StatusOK)
	return WriteXLSX(c.Response(), items)
}

func departmentFilter(c echo.Context) (*uuid.UUID, error) {
	raw := c.QueryParam("department_id")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid department_id")
	}
	return &id, nil
}

// mapError turns the engine's typed errors into HTTP errors. Selection
// failures carry the kind and the rejected ids.
func mapError(err error) error {
	var (
		nf *NotFoundError
		se *SelectionError
		ce *CompositionError
	)
	switch {
	case errors.As(err, &se):
		return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
			"error":        se.Error(),
			"field":        se.Kind,
			"rejected_ids": se.Rejected,
		})
	case errors.As(err, &nf):
		return echo.NewHTTPError(http.StatusNotFound, nf.Error())
	case errors.As(err, &ce):
		return echo.NewHTTPError(http.StatusInternalServerError, "event could not be created")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
