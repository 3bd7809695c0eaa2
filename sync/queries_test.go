// ABOUTME: Tests for contact listing and manual integration linking
// ABOUTME: Checks visibility rules and the explicit versus discovered connection paths
package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/harperreed/cellsync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellContactsRespectsVisibility(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createCell(t, store, "cell-1", "user-1", models.StringPtr("org-1"))

	s := newTestSyncer(store, newBroker(), nil, nil)
	_, err := s.RunSync(ctx, SyncRequest{CRMType: models.CRMHubSpot, UserID: "user-1", CellID: "cell-1"})
	require.NoError(t, err)

	contacts, err := s.CellContacts(ctx, "user-1", "", "cell-1")
	require.NoError(t, err)
	assert.Len(t, contacts, 2)

	contacts, err = s.CellContacts(ctx, "user-2", "org-1", "cell-1")
	require.NoError(t, err)
	assert.Len(t, contacts, 2)

	_, err = s.CellContacts(ctx, "user-2", "org-2", "cell-1")
	assert.True(t, errors.Is(err, ErrCellNotFound))

	_, err = s.CellContacts(ctx, "", "", "cell-1")
	assert.True(t, errors.Is(err, ErrUnauthenticated))

	_, err = s.CellContacts(ctx, "user-1", "", " ")
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestLinkIntegrationExplicitConnection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createCell(t, store, "cell-1", "user-1", nil)
	broker := newBroker()

	s := newTestSyncer(store, broker, nil, nil)
	integration, err := s.LinkIntegration(ctx, LinkRequest{
		CRMType:      "salesforce",
		UserID:       "user-1",
		CellID:       "cell-1",
		ConnectionID: "conn-manual",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ScopeCell, integration.Scope)
	assert.Equal(t, "conn-manual", integration.ConnectionID)
	assert.Equal(t, 0, broker.findCalls)

	list, err := s.Integrations(ctx, "user-1", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, integration.ID, list[0].ID)
}

func TestLinkIntegrationDiscoversConnection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	broker := newBroker()

	s := newTestSyncer(store, broker, nil, nil)
	integration, err := s.LinkIntegration(ctx, LinkRequest{CRMType: models.CRMZoho, UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, models.ScopeAccount, integration.Scope)
	assert.Equal(t, "conn-zoho", integration.ConnectionID)
	assert.Equal(t, 1, broker.findCalls)
}

func TestLinkIntegrationValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := newTestSyncer(store, newBroker(), nil, nil)

	_, err := s.LinkIntegration(ctx, LinkRequest{CRMType: models.CRMHubSpot, UserID: "user-1"})
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = s.LinkIntegration(ctx, LinkRequest{CRMType: "pipedrive", UserID: "user-1"})
	assert.True(t, errors.Is(err, ErrUnknownCRM))

	_, err = s.LinkIntegration(ctx, LinkRequest{CRMType: models.CRMHubSpot, UserID: "user-1", CellID: "missing"})
	assert.True(t, errors.Is(err, ErrCellNotFound))

	_, err = s.LinkIntegration(ctx, LinkRequest{CRMType: models.CRMAttio, UserID: "user-1"})
	assert.True(t, errors.Is(err, ErrIntegrationMissing))
}
