package pipeline

import (
	"errors"
	"net/http"

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
	read.GET("/pipelines", h.List)
	read.GET("/pipelines/:id", h.Get)
	read.POST("/pipelines/:id/evaluate", h.Evaluate)

	write := api.Group("", auth.RequireRole(auth.RoleManager))
	write.POST("/pipelines", h.Create)
	write.DELETE("/pipelines/:id", h.Delete)
	write.POST("/pipelines/:id/stages/:stage_id/fields", h.AddField)
	write.POST("/pipelines/:id/stages/:stage_id/rules", h.AddRule)
}

type stageRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Position int    `json:"position" validate:"min=0"`
	Inactive bool   `json:"inactive"`
}

type createPipelineRequest struct {
	Name   string         `json:"name" validate:"required,max=255"`
	Stages []stageRequest `json:"stages" validate:"dive"`
}

type fieldRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Type     string `json:"field_type" validate:"required,oneof=text number date bool"`
	Required bool   `json:"is_required"`
}

type ruleRequest struct {
	FieldName string `json:"field_name" validate:"required,max=255"`
	Operator  string `json:"operator" validate:"required,oneof=eq neq gt gte lt lte contains present"`
	Value     string `json:"value"`
}

type evaluateRequest struct {
	Position int                    `json:"position" validate:"min=0"`
	Payload  map[string]interface{} `json:"payload"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createPipelineRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	stages := make([]StageInput, 0, len(req.Stages))
	for _, s := range req.Stages {
		stages = append(stages, StageInput{Name: s.Name, Position: s.Position, Inactive: s.Inactive})
	}
	p, err := h.svc.Create(c.Request().Context(), req.Name, stages)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AddField(c echo.Context) error {
	pipelineID, stageID, err := stagePath(c)
	if err != nil {
		return err
	}
	var req fieldRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	f := &Field{StageID: stageID, Name: req.Name, Type: FieldType(req.Type), Required: req.Required}
	if err := h.svc.AddField(c.Request().Context(), pipelineID, f); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) AddRule(c echo.Context) error {
	pipelineID, stageID, err := stagePath(c)
	if err != nil {
		return err
	}
	var req ruleRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	r := &Rule{StageID: stageID, FieldName: req.FieldName, Operator: Operator(req.Operator), Value: req.Value}
	if err := h.svc.AddRule(c.Request().Context(), pipelineID, r); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) Evaluate(c echo.Context) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	var req evaluateRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	adv, err := h.svc.Evaluate(c.Request().Context(), id, req.Position, req.Payload)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, adv)
}

func stagePath(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	pipelineID, err := parseUUID(c, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	stageID, err := parseUUID(c, "stage_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return pipelineID, stageID, nil
}

func parseUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "pipeline or stage not found")
	case errors.Is(err, ErrStageNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
