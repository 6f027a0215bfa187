package equipment

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
	read.GET("/departments/:id/equipment", h.ListEquipment)
	read.GET("/equipment/:id", h.GetEquipment)
	read.GET("/equipment/:id/details", h.ListDetails)
	read.GET("/equipment/:id/parameters", h.ListParameters)

	write := api.Group("", auth.RequireRole(auth.RoleManager))
	write.POST("/departments/:id/equipment", h.CreateEquipment)
	write.POST("/equipment/:id/activate", h.ActivateEquipment)
	write.POST("/equipment/:id/deactivate", h.DeactivateEquipment)
	write.DELETE("/equipment/:id", h.DeleteEquipment)
	write.POST("/equipment/:id/details", h.CreateDetail)
	write.POST("/equipment-details/:id/activate", h.ActivateDetail)
	write.POST("/equipment-details/:id/deactivate", h.DeactivateDetail)
	write.POST("/equipment/:id/parameters", h.CreateParameter)
	write.PUT("/parameters/:id/config", h.UpdateParameterConfig)
	write.POST("/parameters/:id/activate", h.ActivateParameter)
	write.POST("/parameters/:id/deactivate", h.DeactivateParameter)
	write.DELETE("/parameters/:id", h.DeleteParameter)
}

type equipmentRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type detailRequest struct {
	SerialNumber null.String `json:"serial_number" validate:"omitempty,max=255"`
	Make         null.String `json:"make" validate:"omitempty,max=255"`
	Model        null.String `json:"model" validate:"omitempty,max=255"`
}

type parameterRequest struct {
	Name   string                 `json:"name" validate:"required,max=255"`
	Config map[string]interface{} `json:"config"`
}

type configRequest struct {
	Config map[string]interface{} `json:"config"`
}

// -- Equipment --

func (h *Handler) CreateEquipment(c echo.Context) error {
	deptID, err := parseID(c)
	if err != nil {
		return err
	}
	var req equipmentRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	eq := &Equipment{DepartmentID: deptID, Name: req.Name}
	if err := h.svc.CreateEquipment(c.Request().Context(), eq); err != nil {
		return mapError(err, "equipment")
	}
	return c.JSON(http.StatusCreated, eq)
}

func (h *Handler) GetEquipment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	eq, err := h.svc.GetEquipment(c.Request().Context(), id)
	if err != nil {
		return mapError(err, "equipment")
	}
	return c.JSON(http.StatusOK, eq)
}

func (h *Handler) ListEquipment(c echo.Context) error {
	deptID, err := parseID(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListEquipment(c.Request().Context(), deptID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p))
}

func (h *Handler) ActivateEquipment(c echo.Context) error   { return h.setEquipmentActive(c, true) }
func (h *Handler) DeactivateEquipment(c echo.Context) error { return h.setEquipmentActive(c, false) }

func (h *Handler) setEquipmentActive(c echo.Context, active bool) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	eq, err := h.svc.SetEquipmentActive(c.Request().Context(), id, active)
	if err != nil {
		return mapError(err, "equipment")
	}
	return c.JSON(http.StatusOK, eq)
}

func (h *Handler) DeleteEquipment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteEquipment(c.Request().Context(), id); err != nil {
		return mapError(err, "equipment")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Details --

func (h *Handler) CreateDetail(c echo.Context) error {
	eqID, err := parseID(c)
	if err != nil {
		return err
	}
	var req detailRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	d := &Detail{EquipmentID: eqID, SerialNumber: req.SerialNumber, Make: req.Make, Model: req.Model}
	if err := h.svc.CreateDetail(c.Request().Context(), d); err != nil {
		return mapError(err, "equipment")
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) ListDetails(c echo.Context) error {
	eqID, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListDetails(c.Request().Context(), eqID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ActivateDetail(c echo.Context) error   { return h.setDetailActive(c, true) }
func (h *Handler) DeactivateDetail(c echo.Context) error { return h.setDetailActive(c, false) }

func (h *Handler) setDetailActive(c echo.Context, active bool) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.SetDetailActive(c.Request().Context(), id, active)
	if err != nil {
		return mapError(err, "equipment detail")
	}
	return c.JSON(http.StatusOK, d)
}

// -- Parameters --

func (h *Handler) CreateParameter(c echo.Context) error {
	eqID, err := parseID(c)
	if err != nil {
		return err
	}
	var req parameterRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	p := &Parameter{EquipmentID: eqID, Name: req.Name, Config: req.Config}
	if err := h.svc.CreateParameter(c.Request().Context(), p); err != nil {
		return mapError(err, "equipment")
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListParameters(c echo.Context) error {
	eqID, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListParameters(c.Request().Context(), eqID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateParameterConfig(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req configRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.UpdateParameterConfig(c.Request().Context(), id, req.Config)
	if err != nil {
		return mapError(err, "parameter")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ActivateParameter(c echo.Context) error   { return h.setParameterActive(c, true) }
func (h *Handler) DeactivateParameter(c echo.Context) error { return h.setParameterActive(c, false) }

func (h *Handler) setParameterActive(c echo.Context, active bool) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.SetParameterActive(c.Request().Context(), id, active)
	if err != nil {
		return mapError(err, "parameter")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeleteParameter(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteParameter(c.Request().Context(), id); err != nil {
		return mapError(err, "parameter")
	}
	return c.NoContent(http.StatusNoContent)
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
	case errors.Is(err, ErrDeleted):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
