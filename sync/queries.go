// ABOUTME: Read paths and manual linking exposed alongside syncs
// ABOUTME: Applies the same cell visibility rules as RunSync
package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/cellsync/models"
)

// LinkRequest binds an existing broker connection to an integration.
type LinkRequest struct {
	CRMType      models.CRMType `json:"crm_type"`
	UserID       string         `json:"user_id"`
	OrgID        string         `json:"org_id,omitempty"`
	CellID       string         `json:"cell_id,omitempty"`
	ConnectionID string         `json:"connection_id,omitempty"`
}

// CellContacts lists a cell's mappings with their CRM side records.
func (s *Syncer) CellContacts(ctx context.Context, userID, orgID, cellID string) ([]models.ContactView, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(cellID) == "" {
		return nil, fmt.Errorf("%w: cell id is required", ErrInvalidRequest)
	}
	if _, err := s.visibleCell(ctx, SyncRequest{UserID: userID, OrgID: orgID, CellID: cellID}); err != nil {
		return nil, err
	}
	return s.store.ListContactsForCell(ctx, cellID)
}

// Integrations lists every integration the caller created in their account.
func (s *Syncer) Integrations(ctx context.Context, userID, orgID string) ([]models.Integration, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	return s.store.ListIntegrations(ctx, userID, orgID)
}

// LinkIntegration stores a connection for a CRM. Without an explicit
// connection id the broker is asked for the user's active one.
func (s *Syncer) LinkIntegration(ctx context.Context, req LinkRequest) (*models.Integration, error) {
	if req.UserID == "" {
		return nil, ErrUnauthenticated
	}

	crmType, err := models.ParseCRMType(string(req.CRMType))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCRM, req.CRMType)
	}
	if crmType.Scope() == models.ScopeCell && req.CellID == "" {
		return nil, fmt.Errorf("%w: %s integrations are per cell and need a cell id", ErrInvalidRequest, crmType.DisplayName())
	}
	if req.CellID != "" {
		if _, err := s.visibleCell(ctx, SyncRequest{UserID: req.UserID, OrgID: req.OrgID, CellID: req.CellID}); err != nil {
			return nil, err
		}
	}

	sreq := SyncRequest{CRMType: crmType, UserID: req.UserID, OrgID: req.OrgID, CellID: req.CellID}
	if req.ConnectionID == "" {
		return s.autoLink(ctx, sreq)
	}

	integration := &models.Integration{
		CRMType:      crmType,
		UserID:       req.UserID,
		OrgID:        models.StringPtr(req.OrgID),
		CellID:       models.StringPtr(req.CellID),
		ConnectionID: req.ConnectionID,
	}
	if err := s.store.SaveIntegration(ctx, integration); err != nil {
		return nil, err
	}
	return integration, nil
}
