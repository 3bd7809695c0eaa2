// ABOUTME: HTTP handlers for syncs, contacts and integrations
// ABOUTME: Binds and validates requests, then delegates to the sync service
package web

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/harperreed/cellsync/models"
	"github.com/harperreed/cellsync/sync"
	"github.com/labstack/echo/v4"
)

type accountSyncRequest struct {
	CellID string `json:"cell_id"`
}

type linkRequest struct {
	CRMType      string `json:"crm_type" validate:"required"`
	CellID       string `json:"cell_id"`
	ConnectionID string `json:"connection_id"`
}

type contactsResponse struct {
	CellID   string               `json:"cell_id"`
	Contacts []models.ContactView `json:"contacts"`
}

type integrationsResponse struct {
	Integrations []models.Integration `json:"integrations"`
}

func (s *Server) handleCellSync(c echo.Context) error {
	userID, orgID := callerOf(c)
	summary, err := s.service.RunSync(c.Request().Context(), sync.SyncRequest{
		CRMType: models.CRMType(c.Param("crm")),
		UserID:  userID,
		OrgID:   orgID,
		CellID:  c.Param("cellId"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleAccountSync(c echo.Context) error {
	var body accountSyncRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&body); err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "Invalid request body")
		}
	}

	userID, orgID := callerOf(c)
	summary, err := s.service.RunSync(c.Request().Context(), sync.SyncRequest{
		CRMType: models.CRMType(c.Param("crm")),
		UserID:  userID,
		OrgID:   orgID,
		CellID:  body.CellID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleCellContacts(c echo.Context) error {
	userID, orgID := callerOf(c)
	cellID := c.Param("cellId")
	contacts, err := s.service.CellContacts(c.Request().Context(), userID, orgID, cellID)
	if err != nil {
		return err
	}
	if contacts == nil {
		contacts = []models.ContactView{}
	}
	return c.JSON(http.StatusOK, contactsResponse{CellID: cellID, Contacts: contacts})
}

func (s *Server) handleListIntegrations(c echo.Context) error {
	userID, orgID := callerOf(c)
	integrations, err := s.service.Integrations(c.Request().Context(), userID, orgID)
	if err != nil {
		return err
	}
	if integrations == nil {
		integrations = []models.Integration{}
	}
	return c.JSON(http.StatusOK, integrationsResponse{Integrations: integrations})
}

func (s *Server) handleLinkIntegration(c echo.Context) error {
	var body linkRequest
	if err := c.Bind(&body); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&body); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "crm_type is required")
	}

	userID, orgID := callerOf(c)
	integration, err := s.service.LinkIntegration(c.Request().Context(), sync.LinkRequest{
		CRMType:      models.CRMType(body.CRMType),
		UserID:       userID,
		OrgID:        orgID,
		CellID:       body.CellID,
		ConnectionID: body.ConnectionID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, integration)
}
