package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

type FleetService interface {
	List(ctx context.Context) *domain.FleetView
	Refresh(ctx context.Context) (*domain.FleetView, bool)
	Instances(ctx context.Context) ([]domain.Instance, error)
	AddWatch(ctx context.Context, instanceID string) (*domain.WatchEntry, error)
	RemoveWatch(ctx context.Context, instanceID string) error
	SetScriptPath(ctx context.Context, instanceID, path string) (*domain.WatchEntry, error)
	SetPower(ctx context.Context, instanceID string, action domain.Action) error
	SetScript(ctx context.Context, instanceID string, action domain.Action, path string) (domain.CommandHandle, error)
}

type FleetHandler struct {
	fleet FleetService
}

func NewFleetHandler(fleet FleetService) *FleetHandler {
	return &FleetHandler{fleet: fleet}
}

type refreshResponse struct {
	*domain.FleetView
	Started bool `json:"started"`
}

type instancesResponse struct {
	Instances []domain.Instance `json:"instances"`
}

type addWatchRequest struct {
	InstanceID string `json:"instanceId"`
}

type scriptPathRequest struct {
	Path string `json:"path"`
}

type powerRequest struct {
	Action string `json:"action"`
}

type scriptRequest struct {
	Action     string `json:"action"`
	ScriptPath string `json:"scriptPath"`
}

type actionResponse struct {
	InstanceID string `json:"instanceId"`
	Action     string `json:"action"`
	CommandID  string `json:"commandId,omitempty"`
}

func (h *FleetHandler) GetFleet(c echo.Context) error {
	return c.JSON(http.StatusOK, h.fleet.List(c.Request().Context()))
}

func (h *FleetHandler) PostRefresh(c echo.Context) error {
	view, started := h.fleet.Refresh(c.Request().Context())
	return c.JSON(http.StatusOK, &refreshResponse{FleetView: view, Started: started})
}

func (h *FleetHandler) GetInstances(c echo.Context) error {
	instances, err := h.fleet.Instances(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &instancesResponse{Instances: instances})
}

func (h *FleetHandler) PostWatch(c echo.Context) error {
	var req addWatchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}

	entry, err := h.fleet.AddWatch(c.Request().Context(), req.InstanceID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *FleetHandler) DeleteWatch(c echo.Context) error {
	if err := h.fleet.RemoveWatch(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *FleetHandler) PutScriptPath(c echo.Context) error {
	var req scriptPathRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}

	entry, err := h.fleet.SetScriptPath(c.Request().Context(), c.Param("id"), req.Path)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *FleetHandler) PostPower(c echo.Context) error {
	var req powerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	action, err := domain.ParseAction(req.Action)
	if err != nil {
		return err
	}

	id := c.Param("id")
	if err := h.fleet.SetPower(c.Request().Context(), id, action); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, &actionResponse{InstanceID: id, Action: string(action)})
}

func (h *FleetHandler) PostScript(c echo.Context) error {
	var req scriptRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	action, err := domain.ParseAction(req.Action)
	if err != nil {
		return err
	}

	id := c.Param("id")
	handle, err := h.fleet.SetScript(c.Request().Context(), id, action, req.ScriptPath)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, &actionResponse{
		InstanceID: id,
		Action:     string(action),
		CommandID:  handle.CommandID,
	})
}

func Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
