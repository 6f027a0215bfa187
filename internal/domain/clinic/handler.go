package clinic

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
	read.GET("/clinics", h.ListClinics)
	read.GET("/clinics/:id", h.GetClinic)
	read.GET("/clinics/:id/departments", h.ListDepartments)
	read.GET("/departments/:id", h.GetDepartment)

	write := api.Group("", auth.RequireRole(auth.RoleManager))
	write.POST("/clinics", h.CreateClinic)
	write.POST("/clinics/:id/departments", h.CreateDepartment)
	write.PATCH("/departments/:id", h.RenameDepartment)
	write.POST("/departments/:id/activate", h.ActivateDepartment)
	write.POST("/departments/:id/deactivate", h.DeactivateDepartment)
}

type createClinicRequest struct {
	Name    string      `json:"name" validate:"required,max=255"`
	Address null.String `json:"address"`
	Phone   null.String `json:"phone" validate:"omitempty,max=32"`
	Email   null.String `json:"email" validate:"omitempty,email"`
}

type departmentRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (h *Handler) CreateClinic(c echo.Context) error {
	var req createClinicRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	cl := &Clinic{Name: req.Name, Address: req.Address, Phone: req.Phone, Email: req.Email}
	if err := h.svc.CreateClinic(c.Request().Context(), cl); err != nil {
		return mapError(err, "clinic")
	}
	return c.JSON(http.StatusCreated, cl)
}

func (h *Handler) GetClinic(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	cl, err := h.svc.GetClinic(c.Request().Context(), id)
	if err != nil {
		return mapError(err, "clinic")
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) ListClinics(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListClinics(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p))
}

func (h *Handler) CreateDepartment(c echo.Context) error {
	clinicID, err := parseID(c)
	if err != nil {
		return err
	}
	var req departmentRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	d := &Department{ClinicID: clinicID, Name: req.Name}
	if err := h.svc.CreateDepartment(c.Request().Context(), d); err != nil {
		return mapError(err, "department")
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDepartment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDepartment(c.Request().Context(), id)
	if err != nil {
		return mapError(err, "department")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDepartments(c echo.Context) error {
	clinicID, err := parseID(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListDepartments(c.Request().Context(), clinicID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p))
}

func (h *Handler) RenameDepartment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req departmentRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	d, err := h.svc.RenameDepartment(c.Request().Context(), id, req.Name)
	if err != nil {
		return mapError(err, "department")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ActivateDepartment(c echo.Context) error {
	return h.setActive(c, true)
}

func (h *Handler) DeactivateDepartment(c echo.Context) error {
	return h.setActive(c, false)
}

func (h *Handler) setActive(c echo.Context, active bool) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.SetDepartmentActive(c.Request().Context(), id, active)
	if err != nil {
		return mapError(err, "department")
	}
	return c.JSON(http.StatusOK, d)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func mapError(err error, entity string) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, entity+" not found")
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
