// ABOUTME: Tests for the sync runner with a fake broker and a temporary SQLite store
// ABOUTME: Covers integration resolution, scope handling, error mapping and summaries
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/harperreed/cellsync/crm"
	"github.com/harperreed/cellsync/db"
	"github.com/harperreed/cellsync/events"
	"github.com/harperreed/cellsync/lock"
	"github.com/harperreed/cellsync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBroker struct {
	payloads    map[string]string
	executeErr  error
	connections map[models.CRMType]string
	findCalls   int
}

func (f *fakeBroker) Execute(ctx context.Context, tool, connectionID string, args map[string]any) (json.RawMessage, error) {
	if f.executeErr != nil {
		return nil, f.executeErr
	}
	payload, ok := f.payloads[tool]
	if !ok {
		return nil, fmt.Errorf("unexpected tool %s", tool)
	}
	return json.RawMessage(payload), nil
}

func (f *fakeBroker) FindConnection(ctx context.Context, userID string, crmType models.CRMType) (string, error) {
	f.findCalls++
	if id, ok := f.connections[crmType]; ok {
		return id, nil
	}
	return "", crm.ErrNoConnection
}

type capturePublisher struct {
	events []*events.ContactsSynced
}

func (c *capturePublisher) PublishContactsSynced(ctx context.Context, e *events.ContactsSynced) error {
	c.events = append(c.events, e)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

type busyLocker struct{}

func (busyLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return lock.ErrLockNotAcquired
}

const hubspotPayload = `{"results":[
	{"id":"1","properties":{"firstname":"Ada","phone":"(514) 979-1879","mobilephone":"514-979-1879"}},
	{"id":"2","properties":{"firstname":"Grace","phone":"+12015550123"}},
	{"id":"3","properties":{"firstname":"Nobody","phone":"not a phone"}}
]}`

const zohoPayload = `{"data":[
	{"id":"z1","First_Name":"Ada","Phone":"514-979-1879"},
	{"id":"z2","First_Name":"Grace","Mobile":"201-555-0123"}
],"info":{"more_records":false}}`

func newBroker() *fakeBroker {
	return &fakeBroker{
		payloads: map[string]string{
			"HUBSPOT_LIST_CONTACTS": hubspotPayload,
			"ZOHO_GET_ZOHO_RECORDS": zohoPayload,
		},
		connections: map[models.CRMType]string{
			models.CRMHubSpot: "conn-hubspot",
			models.CRMZoho:    "conn-zoho",
		},
	}
}

func newTestSyncer(store *db.Store, broker Broker, locker lock.Locker, pub events.Publisher) *Syncer {
	return NewSyncer(store, broker, crm.NewRegistry(zap.NewNop()), locker, pub, zap.NewNop(), Options{})
}

func TestRunSyncCellScopeAutoLinks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createCell(t, store, "cell-1", "user-1", nil)
	broker := newBroker()
	pub := &capturePublisher{}

	s := newTestSyncer(store, broker, nil, pub)
	summary, err := s.RunSync(ctx, SyncRequest{CRMType: "HubSpot", UserID: "user-1", CellID: "cell-1"})
	require.NoError(t, err)

	assert.Equal(t, models.CRMHubSpot, summary.CRMType)
	assert.Equal(t, 2, summary.InsertedCount)
	assert.Equal(t, 0, summary.MergedCount)
	assert.Equal(t, 1, summary.SkippedCount)
	assert.Equal(t, 3, summary.TotalContacts)
	assert.Equal(t, 1, summary.CellsSynced)
	assert.NotEmpty(t, summary.RunID)
	assert.Contains(t, summary.Message, "HubSpot")

	integration, err := store.GetCellIntegration(ctx, models.CRMHubSpot, "cell-1")
	require.NoError(t, err)
	require.NotNil(t, integration)
	assert.Equal(t, "conn-hubspot", integration.ConnectionID)
	assert.Equal(t, models.IntegrationStatusIdle, integration.Status)
	assert.Equal(t, 3, integration.SyncedCount)
	assert.NotNil(t, integration.LastSyncedAt)

	require.Len(t, pub.events, 1)
	assert.Equal(t, []string{"cell-1"}, pub.events[0].CellIDs)

	again, err := s.RunSync(ctx, SyncRequest{CRMType: models.CRMHubSpot, UserID: "user-1", CellID: "cell-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, again.InsertedCount)
	assert.Equal(t, 0, again.MergedCount)
	assert.Equal(t, 1, broker.findCalls, "stored integration is reused")
}

func TestRunSyncAccountScopeSumsAcrossCells(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	org := models.StringPtr("org-1")
	createCell(t, store, "cell-a", "user-1", org)
	createCell(t, store, "cell-b", "user-1", org)
	createCell(t, store, "cell-other-org", "user-1", nil)

	s := newTestSyncer(store, newBroker(), nil, nil)
	summary, err := s.RunSync(ctx, SyncRequest{CRMType: models.CRMZoho, UserID: "user-1", OrgID: "org-1"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.CellsSynced)
	assert.Equal(t, 4, summary.InsertedCount)
	assert.Equal(t, 2, summary.TotalContacts)

	assert.Len(t, mappingsFor(t, store, "cell-a"), 2)
	assert.Len(t, mappingsFor(t, store, "cell-b"), 2)
	assert.Empty(t, mappingsFor(t, store, "cell-other-org"))

	integration, err := store.GetAccountIntegration(ctx, models.CRMZoho, "user-1", "org-1")
	require.NoError(t, err)
	require.NotNil(t, integration)
	assert.Nil(t, integration.CellID)
}

func TestRunSyncAccountScopeWithoutCells(t *testing.T) {
	store := newTestStore(t)

	s := newTestSyncer(store, newBroker(), nil, nil)
	summary, err := s.RunSync(context.Background(), SyncRequest{CRMType: models.CRMZoho, UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.CellsSynced)
	assert.Equal(t, 0, summary.InsertedCount)
}

func TestRunSyncValidation(t *testing.T) {
	store := newTestStore(t)
	createCell(t, store, "cell-1", "user-1", nil)
	s := newTestSyncer(store, newBroker(), nil, nil)
	ctx := context.Background()

	_, err := s.RunSync(ctx, SyncRequest{CRMType: models.CRMHubSpot, CellID: "cell-1"})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = s.RunSync(ctx, SyncRequest{CRMType: "pipedrive", UserID: "user-1"})
	assert.ErrorIs(t, err, ErrUnknownCRM)

	_, err = s.RunSync(ctx, SyncRequest{CRMType: models.CRMSalesforce, UserID: "user-1"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = s.RunSync(ctx, SyncRequest{CRMType: models.CRMHubSpot, UserID: "user-1", CellID: "missing"})
	assert.ErrorIs(t, err, ErrCellNotFound)

	_, err = s.RunSync(ctx, SyncRequest{CRMType: models.CRMHubSpot, UserID: "intruder", CellID: "cell-1"})
	assert.ErrorIs(t, err, ErrCellNotFound)
}

func TestRunSyncIntegrationMissing(t *testing.T) {
	store := newTestStore(t)
	createCell(t, store, "cell-1", "user-1", nil)
	broker := newBroker()
	delete(broker.connections, models.CRMHubSpot)

	s := newTestSyncer(store, broker, nil, nil)
	_, err := s.RunSync(context.Background(), SyncRequest{CRMType: models.CRMHubSpot, UserID: "user-1", CellID: "cell-1"})
	assert.ErrorIs(t, err, ErrIntegrationMissing)
	assert.Contains(t, err.Error(), "connect HubSpot first")
}

func TestRunSyncReauthMarksIntegrationError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createCell(t, store, "cell-1", "user-1", nil)
	broker := newBroker()
	broker.executeErr = fmt.Errorf("token expired: %w", crm.ErrReauthRequired)

	s := newTestSyncer(store, broker, nil, nil)
	_, err := s.RunSync(ctx, SyncRequest{CRMType: models.CRMHubSpot, UserID: "user-1", CellID: "cell-1"})
	assert.ErrorIs(t, err, ErrReauthRequired)
	assert.ErrorIs(t, err, ErrFetchFailed)

	integration, err := store.GetCellIntegration(ctx, models.CRMHubSpot, "cell-1")
	require.NoError(t, err)
	require.NotNil(t, integration)
	assert.Equal(t, models.IntegrationStatusError, integration.Status)
	require.NotNil(t, integration.ErrorMessage)
	assert.Contains(t, *integration.ErrorMessage, "token expired")
	assert.Empty(t, mappingsFor(t, store, "cell-1"))
}

func TestRunSyncFetchFailure(t *testing.T) {
	store := newTestStore(t)
	createCell(t, store, "cell-1", "user-1", nil)
	broker := newBroker()
	broker.executeErr = errors.New("upstream 502")

	s := newTestSyncer(store, broker, nil, nil)
	_, err := s.RunSync(context.Background(), SyncRequest{CRMType: models.CRMHubSpot, UserID: "user-1", CellID: "cell-1"})
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.NotErrorIs(t, err, ErrReauthRequired)
}

func TestRunSyncLockContention(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createCell(t, store, "cell-1", "user-1", nil)

	s := newTestSyncer(store, newBroker(), busyLocker{}, nil)
	_, err := s.RunSync(ctx, SyncRequest{CRMType: models.CRMHubSpot, UserID: "user-1", CellID: "cell-1"})
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.Empty(t, mappingsFor(t, store, "cell-1"))
}

func TestRunSyncOrgMemberCanSyncSharedCell(t *testing.T) {
	store := newTestStore(t)
	createCell(t, store, "cell-1", "owner", models.StringPtr("org-1"))

	s := newTestSyncer(store, newBroker(), nil, nil)
	summary, err := s.RunSync(context.Background(), SyncRequest{CRMType: models.CRMHubSpot, UserID: "teammate", OrgID: "org-1", CellID: "cell-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.InsertedCount)

	mappings := mappingsFor(t, store, "cell-1")
	require.NotEmpty(t, mappings)
	assert.Equal(t, "owner", mappings[0].OwnerUserID, "mappings belong to the cell owner")
}

func TestRunSyncMarksErrorWhenResultCannotBeRecorded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createCell(t, store, "cell-1", "user-1", nil)

	_, err := store.DB().ExecContext(ctx, `CREATE TRIGGER reject_sync_count
		BEFORE UPDATE OF synced_count ON integrations
		BEGIN SELECT RAISE(ABORT, 'disk full'); END`)
	require.NoError(t, err)

	s := newTestSyncer(store, newBroker(), nil, nil)
	_, err = s.RunSync(ctx, SyncRequest{CRMType: models.CRMHubSpot, UserID: "user-1", CellID: "cell-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	integration, err := store.GetCellIntegration(ctx, models.CRMHubSpot, "cell-1")
	require.NoError(t, err)
	require.NotNil(t, integration)
	assert.Equal(t, models.IntegrationStatusError, integration.Status)
	require.NotNil(t, integration.ErrorMessage)
	assert.Contains(t, *integration.ErrorMessage, "disk full")
}
