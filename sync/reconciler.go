// ABOUTME: Reconciles fetched CRM candidates against a cell's stored contact mappings
// ABOUTME: Inserts new numbers, collapses legacy duplicates and upserts per-CRM side records
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/cellsync/crm"
	"github.com/harperreed/cellsync/metrics"
	"github.com/harperreed/cellsync/models"
	"github.com/harperreed/cellsync/phone"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// ContactStore is the storage the reconciler mutates.
type ContactStore interface {
	InsertMapping(ctx context.Context, m *models.ContactMapping) error
	UpdateMappingPhone(ctx context.Context, id, phoneNumber string) error
	DeleteMapping(ctx context.Context, id string) error
	GetCrmContact(ctx context.Context, crm models.CRMType, cellID, phoneNumber string) (*models.CrmContact, error)
	InsertCrmContact(ctx context.Context, c *models.CrmContact) error
	UpdateCrmContact(ctx context.Context, c *models.CrmContact) error
}

// ReconcileInput is everything needed to reconcile one cell.
type ReconcileInput struct {
	Cell       models.Cell
	CRMType    models.CRMType
	Existing   []models.ContactMapping
	Candidates []crm.Candidate
	Region     string
}

// ReconcileResult counts what one reconciliation changed.
type ReconcileResult struct {
	Inserted   int `json:"inserted"`
	Merged     int `json:"merged"`
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
	Upserted   int `json:"upserted"`
}

// Add sums r and other.
func (r ReconcileResult) Add(other ReconcileResult) ReconcileResult {
	return ReconcileResult{
		Inserted:   r.Inserted + other.Inserted,
		Merged:     r.Merged + other.Merged,
		Skipped:    r.Skipped + other.Skipped,
		Duplicates: r.Duplicates + other.Duplicates,
		Upserted:   r.Upserted + other.Upserted,
	}
}

// Reconciler applies candidates to a cell's mappings.
type Reconciler struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewReconciler creates a reconciler.
func NewReconciler(logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type seenKey struct {
	cellID    string
	canonical string
}

// Reconcile processes candidates in fetch order. Numbers that fail to
// normalize are skipped; a storage error aborts and is returned with the
// counts so far.
func (r *Reconciler) Reconcile(ctx context.Context, store ContactStore, in ReconcileInput) (ReconcileResult, error) {
	var res ReconcileResult
	idx := NewPhoneIndex(in.Existing, in.Region)
	seen := make(map[seenKey]bool)

	for _, c := range in.Candidates {
		for _, raw := range c.Phones {
			canonical, err := phone.Normalize(raw, in.Region)
			if err != nil {
				res.Skipped++
				metrics.PhonesSkipped.WithLabelValues(string(in.CRMType)).Inc()
				r.logger.Warn("skipping unparseable phone number",
					zap.String("crm_type", string(in.CRMType)),
					zap.String("cell_id", in.Cell.ID),
					zap.String("external_id", c.ExternalID),
					zap.String("display_name", c.DisplayName),
					zap.String("raw_phone", raw),
				)
				continue
			}

			key := seenKey{cellID: in.Cell.ID, canonical: canonical}
			if seen[key] {
				res.Duplicates++
				continue
			}
			seen[key] = true

			if err := r.reconcileNumber(ctx, store, in.Cell, idx, canonical, &res); err != nil {
				return res, err
			}
			if err := r.upsertSideRecord(ctx, store, in, c, canonical); err != nil {
				return res, err
			}
			res.Upserted++
		}
	}

	return res, nil
}

func (r *Reconciler) reconcileNumber(ctx context.Context, store ContactStore, cell models.Cell, idx *PhoneIndex, canonical string, res *ReconcileResult) error {
	group := idx.All(canonical)
	if len(group) == 0 {
		m := &models.ContactMapping{
			ID:          ulid.Make().String(),
			PhoneNumber: canonical,
			OwnerUserID: cell.OwnerUserID,
			CellID:      cell.ID,
			CreatedAt:   r.now(),
		}
		if err := store.InsertMapping(ctx, m); err != nil {
			return err
		}
		idx.Replace(canonical, m)
		res.Inserted++
		return nil
	}

	keep := group[0]
	if keep.PhoneNumber != canonical {
		if err := store.UpdateMappingPhone(ctx, keep.ID, canonical); err != nil {
			return err
		}
		keep.PhoneNumber = canonical
		res.Merged++
	}

	for _, dup := range group[1:] {
		if err := store.DeleteMapping(ctx, dup.ID); err != nil {
			return err
		}
		res.Merged++
		r.logger.Debug("removed duplicate contact mapping",
			zap.String("cell_id", cell.ID),
			zap.String("kept_id", keep.ID),
			zap.String("deleted_id", dup.ID),
		)
	}

	if len(group) > 1 {
		idx.Replace(canonical, keep)
	}
	return nil
}

func (r *Reconciler) upsertSideRecord(ctx context.Context, store ContactStore, in ReconcileInput, c crm.Candidate, canonical string) error {
	attrs := c.Attributes
	attrs.ExternalID = c.ExternalID
	now := r.now()

	existing, err := store.GetCrmContact(ctx, in.CRMType, in.Cell.ID, canonical)
	if err != nil {
		return err
	}

	if existing != nil {
		existing.ContactAttributes = attrs
		existing.UpdatedAt = now
		if err := store.UpdateCrmContact(ctx, existing); err != nil {
			return fmt.Errorf("failed to update %s record for %s: %w", in.CRMType, canonical, err)
		}
		return nil
	}

	record := &models.CrmContact{
		ID:                uuid.New().String(),
		CRMType:           in.CRMType,
		CellID:            in.Cell.ID,
		PhoneNumber:       canonical,
		ContactAttributes: attrs,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := store.InsertCrmContact(ctx, record); err != nil {
		return fmt.Errorf("failed to insert %s record for %s: %w", in.CRMType, canonical, err)
	}
	return nil
}
