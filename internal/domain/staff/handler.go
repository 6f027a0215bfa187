package staff

import (
	"errors"
	"net/http"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicops/clinicops/internal/platform/auth"
	"github.com/clinicops/clinicops/internal/platform/db"
	"github.com/clinicops/clinicops/internal/platform/validation"
	"github.com/clinicops/clinicops/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleManager, auth.RoleEmployee))
	read.GET("/employees", h.List)
	read.GET("/employees/me", h.Me)
	read.GET("/employees/:id", h.Get)

	write := api.Group("", auth.RequireRole(auth.RoleManager))
	write.POST("/employees", h.Create)
}

type createEmployeeRequest struct {
	UserID       null.String   `json:"user_id" validate:"omitempty,max=255"`
	Name         string        `json:"name" validate:"required,max=255"`
	Email        null.String   `json:"email" validate:"omitempty,email"`
	Phone        null.String   `json:"phone" validate:"omitempty,e164"`
	DepartmentID uuid.NullUUID `json:"department_id"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createEmployeeRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	e := &Employee{
		UserID:       req.UserID,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		DepartmentID: req.DepartmentID,
	}
	if err := h.svc.Create(c.Request().Context(), e); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, e)
}

// Me returns the employee linked to the caller's identity.
func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	e, err := h.svc.ForUser(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) List(c echo.Context) error {
	var deptID *uuid.UUID
	if raw := c.QueryParam("department_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid department_id")
		}
		deptID = &id
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), deptID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "employee not found")
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
