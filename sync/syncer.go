// ABOUTME: Orchestrates a CRM contact sync for one cell or a whole account
// ABOUTME: Resolves the integration, fetches candidates, and reconciles each cell under a lock
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/cellsync/crm"
	"github.com/harperreed/cellsync/db"
	"github.com/harperreed/cellsync/events"
	"github.com/harperreed/cellsync/lock"
	"github.com/harperreed/cellsync/metrics"
	"github.com/harperreed/cellsync/models"
	"github.com/harperreed/cellsync/phone"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultFetchTimeout bounds how long a CRM fetch may take.
const DefaultFetchTimeout = 60 * time.Second

// Broker executes CRM tools and discovers existing connections.
type Broker interface {
	crm.ToolExecutor
	FindConnection(ctx context.Context, userID string, crmType models.CRMType) (string, error)
}

// SyncRequest identifies what to sync and on whose behalf.
type SyncRequest struct {
	CRMType models.CRMType `json:"crm_type"`
	UserID  string         `json:"user_id"`
	OrgID   string         `json:"org_id,omitempty"`
	CellID  string         `json:"cell_id,omitempty"`
}

// SyncSummary is returned for every successful run.
type SyncSummary struct {
	RunID         string         `json:"runId"`
	CRMType       models.CRMType `json:"crmType"`
	InsertedCount int            `json:"insertedCount"`
	MergedCount   int            `json:"mergedCount"`
	SkippedCount  int            `json:"skippedCount"`
	TotalContacts int            `json:"totalContacts"`
	CellsSynced   int            `json:"cellsSynced"`
	Message       string         `json:"message"`
}

// Options tune a Syncer.
type Options struct {
	FetchTimeout time.Duration
}

// Syncer runs syncs.
type Syncer struct {
	store        *db.Store
	broker       Broker
	sources      *crm.Registry
	locker       lock.Locker
	publisher    events.Publisher
	reconciler   *Reconciler
	logger       *zap.Logger
	fetchTimeout time.Duration
	links        singleflight.Group
	now          func() time.Time
}

// NewSyncer wires a Syncer. A nil locker falls back to in-process locking and
// a nil publisher discards events.
func NewSyncer(store *db.Store, broker Broker, sources *crm.Registry, locker lock.Locker, publisher events.Publisher, logger *zap.Logger, opts Options) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sources == nil {
		sources = crm.NewRegistry(logger)
	}
	if locker == nil {
		locker = lock.NewLocalLocker(lock.Options{})
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	return &Syncer{
		store:        store,
		broker:       broker,
		sources:      sources,
		locker:       locker,
		publisher:    publisher,
		reconciler:   NewReconciler(logger.Named("reconciler")),
		logger:       logger,
		fetchTimeout: opts.FetchTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// RunSync fetches the CRM's contacts and reconciles them into every target cell.
func (s *Syncer) RunSync(ctx context.Context, req SyncRequest) (*SyncSummary, error) {
	start := time.Now()
	runID := ulid.Make().String()
	if parsed, err := models.ParseCRMType(string(req.CRMType)); err == nil {
		req.CRMType = parsed
	}
	logger := s.logger.With(
		zap.String("run_id", runID),
		zap.String("crm_type", string(req.CRMType)),
		zap.String("user_id", req.UserID),
		zap.String("org_id", req.OrgID),
		zap.String("cell_id", req.CellID),
	)

	summary, err := s.runSync(ctx, runID, req, logger)

	status := "success"
	if err != nil {
		status = "error"
		logger.Error("sync failed", zap.Error(err))
	}
	metrics.SyncRunsTotal.WithLabelValues(string(req.CRMType), status).Inc()
	metrics.SyncDuration.WithLabelValues(string(req.CRMType)).Observe(time.Since(start).Seconds())

	return summary, err
}

func (s *Syncer) runSync(ctx context.Context, runID string, req SyncRequest, logger *zap.Logger) (*SyncSummary, error) {
	if req.UserID == "" {
		return nil, ErrUnauthenticated
	}

	crmType, err := models.ParseCRMType(string(req.CRMType))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCRM, req.CRMType)
	}
	req.CRMType = crmType

	if crmType.Scope() == models.ScopeCell && req.CellID == "" {
		return nil, fmt.Errorf("%w: %s syncs are per cell and need a cell id", ErrInvalidRequest, crmType.DisplayName())
	}

	source, err := s.sources.Lookup(crmType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownCRM, err)
	}

	var target *models.Cell
	if req.CellID != "" {
		target, err = s.visibleCell(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	integration, err := s.resolveIntegration(ctx, req)
	if err != nil {
		return nil, err
	}

	cells, err := s.targetCells(ctx, req, target)
	if err != nil {
		return nil, err
	}

	summary := &SyncSummary{RunID: runID, CRMType: crmType}
	if len(cells) == 0 {
		summary.Message = "No cells to sync"
		logger.Info("no cells to sync")
		return summary, nil
	}

	if err := s.store.UpdateIntegrationStatus(ctx, integration.ID, models.IntegrationStatusSyncing, nil); err != nil {
		return nil, err
	}

	candidates, err := s.fetch(ctx, source, integration)
	if err != nil {
		s.markFailed(ctx, integration.ID, err, logger)
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	logger.Info("fetched crm records", zap.Int("records", len(candidates)))

	var total ReconcileResult
	cellIDs := make([]string, 0, len(cells))
	for _, cell := range cells {
		res, err := s.syncCell(ctx, cell, crmType, candidates)
		if err != nil {
			s.markFailed(ctx, integration.ID, err, logger)
			return nil, err
		}
		logger.Info("reconciled cell",
			zap.String("target_cell_id", cell.ID),
			zap.Int("inserted", res.Inserted),
			zap.Int("merged", res.Merged),
			zap.Int("skipped", res.Skipped),
		)
		total = total.Add(res)
		cellIDs = append(cellIDs, cell.ID)
	}

	if err := s.store.RecordIntegrationSync(ctx, integration.ID, len(candidates), s.now()); err != nil {
		s.markFailed(ctx, integration.ID, err, logger)
		return nil, fmt.Errorf("failed to record sync result: %w", err)
	}

	metrics.ContactsReconciled.WithLabelValues(string(crmType), "inserted").Add(float64(total.Inserted))
	metrics.ContactsReconciled.WithLabelValues(string(crmType), "merged").Add(float64(total.Merged))

	summary.InsertedCount = total.Inserted
	summary.MergedCount = total.Merged
	summary.SkippedCount = total.Skipped
	summary.TotalContacts = len(candidates)
	summary.CellsSynced = len(cells)
	summary.Message = fmt.Sprintf("Synced %d %s contacts into %d cell(s): %d new, %d merged",
		len(candidates), crmType.DisplayName(), len(cells), total.Inserted, total.Merged)

	if err := s.publisher.PublishContactsSynced(ctx, &events.ContactsSynced{
		RunID:         runID,
		CRMType:       crmType,
		UserID:        req.UserID,
		OrgID:         req.OrgID,
		CellIDs:       cellIDs,
		InsertedCount: total.Inserted,
		MergedCount:   total.Merged,
		SkippedCount:  total.Skipped,
		TotalContacts: len(candidates),
	}); err != nil {
		logger.Warn("failed to publish sync event", zap.Error(err))
	}

	logger.Info("sync completed",
		zap.Int("inserted", total.Inserted),
		zap.Int("merged", total.Merged),
		zap.Int("skipped", total.Skipped),
		zap.Int("total_contacts", len(candidates)),
		zap.Int("cells", len(cells)),
	)
	return summary, nil
}

// visibleCell loads the requested cell and checks the caller may sync it.
func (s *Syncer) visibleCell(ctx context.Context, req SyncRequest) (*models.Cell, error) {
	cell, err := s.store.GetCell(ctx, req.CellID)
	if err != nil {
		return nil, err
	}
	if cell == nil || !canAccess(cell, req.UserID, req.OrgID) {
		return nil, fmt.Errorf("%w: %s", ErrCellNotFound, req.CellID)
	}
	return cell, nil
}

func canAccess(cell *models.Cell, userID, orgID string) bool {
	if cell.OwnerUserID == userID {
		return true
	}
	return orgID != "" && models.StringValue(cell.OrgID) == orgID
}

// resolveIntegration finds the integration for the request's scope, linking
// the user's active broker connection when none is stored yet.
func (s *Syncer) resolveIntegration(ctx context.Context, req SyncRequest) (*models.Integration, error) {
	integration, err := s.store.GetIntegrationFor(ctx, req.CRMType, req.UserID, req.OrgID, req.CellID)
	if err != nil {
		return nil, err
	}
	if integration != nil {
		return integration, nil
	}

	key := fmt.Sprintf("%s|%s|%s|%s", req.CRMType, req.UserID, req.OrgID, req.CellID)
	v, err, _ := s.links.Do(key, func() (any, error) {
		return s.autoLink(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Integration), nil
}

func (s *Syncer) autoLink(ctx context.Context, req SyncRequest) (*models.Integration, error) {
	if s.broker == nil {
		return nil, fmt.Errorf("%w: connect %s first", ErrIntegrationMissing, req.CRMType.DisplayName())
	}

	connectionID, err := s.broker.FindConnection(ctx, req.UserID, req.CRMType)
	if errors.Is(err, crm.ErrNoConnection) {
		return nil, fmt.Errorf("%w: connect %s first", ErrIntegrationMissing, req.CRMType.DisplayName())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	integration := &models.Integration{
		CRMType:      req.CRMType,
		UserID:       req.UserID,
		OrgID:        models.StringPtr(req.OrgID),
		CellID:       models.StringPtr(req.CellID),
		ConnectionID: connectionID,
	}
	if err := s.store.SaveIntegration(ctx, integration); err != nil {
		return nil, err
	}

	s.logger.Info("linked broker connection",
		zap.String("crm_type", string(req.CRMType)),
		zap.String("user_id", req.UserID),
		zap.String("integration_id", integration.ID),
	)
	return integration, nil
}

func (s *Syncer) targetCells(ctx context.Context, req SyncRequest, target *models.Cell) ([]models.Cell, error) {
	if target != nil {
		return []models.Cell{*target}, nil
	}
	return s.store.ListAccountCells(ctx, req.UserID, req.OrgID)
}

func (s *Syncer) fetch(ctx context.Context, source crm.Source, integration *models.Integration) ([]crm.Candidate, error) {
	if s.broker == nil {
		return nil, errors.New("no connection broker configured")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	start := time.Now()
	candidates, err := source.Fetch(fetchCtx, s.broker, integration.ConnectionID)
	metrics.FetchDuration.WithLabelValues(string(source.Type())).Observe(time.Since(start).Seconds())
	return candidates, err
}

// syncCell reconciles one cell under its lock and inside one transaction.
func (s *Syncer) syncCell(ctx context.Context, cell models.Cell, crmType models.CRMType, candidates []crm.Candidate) (ReconcileResult, error) {
	var res ReconcileResult

	err := s.locker.WithLock(ctx, "cell:"+cell.ID, func(ctx context.Context) error {
		metrics.LockWaitsTotal.WithLabelValues("acquired").Inc()
		return s.store.InTx(ctx, func(tx *db.Store) error {
			existing, err := tx.ListMappingsForCells(ctx, []string{cell.ID})
			if err != nil {
				return err
			}

			res, err = s.reconciler.Reconcile(ctx, tx, ReconcileInput{
				Cell:       cell,
				CRMType:    crmType,
				Existing:   existing,
				Candidates: candidates,
				Region:     phone.DefaultRegion(cell.PhoneNumber),
			})
			return err
		})
	})
	if errors.Is(err, lock.ErrLockNotAcquired) {
		metrics.LockWaitsTotal.WithLabelValues("timeout").Inc()
		return res, fmt.Errorf("%w: cell %s", ErrSyncInProgress, cell.ID)
	}
	if err != nil {
		return res, fmt.Errorf("failed to reconcile cell %s: %w", cell.ID, err)
	}
	return res, nil
}

func (s *Syncer) markFailed(ctx context.Context, integrationID string, cause error, logger *zap.Logger) {
	msg := cause.Error()
	if err := s.store.UpdateIntegrationStatus(context.WithoutCancel(ctx), integrationID, models.IntegrationStatusError, &msg); err != nil {
		logger.Error("failed to record integration error", zap.Error(err))
	}
}
