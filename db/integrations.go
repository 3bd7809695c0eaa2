// ABOUTME: Database operations for CRM integrations
// ABOUTME: Resolves cell or account scoped integrations and tracks their sync status
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/harperreed/cellsync/models"
)

var integrationColumns = []string{
	"id", "crm_type", "scope", "cell_id", "user_id", "org_id", "connection_id",
	"status", "error_message", "last_synced_at", "synced_count", "created_at", "updated_at",
}

// GetCellIntegration returns the integration linking crm to a single cell, or nil.
func (s *Store) GetCellIntegration(ctx context.Context, crm models.CRMType, cellID string) (*models.Integration, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select(integrationColumns...)
	sb.From("integrations")
	sb.Where(
		sb.Equal("crm_type", string(crm)),
		sb.Equal("scope", string(models.ScopeCell)),
		sb.Equal("cell_id", cellID),
	)
	return s.getIntegration(ctx, sb)
}

// GetAccountIntegration returns the account-wide integration for crm, or nil.
func (s *Store) GetAccountIntegration(ctx context.Context, crm models.CRMType, userID, orgID string) (*models.Integration, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select(integrationColumns...)
	sb.From("integrations")
	sb.Where(
		sb.Equal("crm_type", string(crm)),
		sb.Equal("scope", string(models.ScopeAccount)),
		sb.Equal("user_id", userID),
		orgCond(sb, orgID),
	)
	return s.getIntegration(ctx, sb)
}

// GetIntegrationFor resolves the integration that governs crm for a request,
// following the CRM's scope.
func (s *Store) GetIntegrationFor(ctx context.Context, crm models.CRMType, userID, orgID, cellID string) (*models.Integration, error) {
	if crm.Scope() == models.ScopeCell {
		return s.GetCellIntegration(ctx, crm, cellID)
	}
	return s.GetAccountIntegration(ctx, crm, userID, orgID)
}

func (s *Store) getIntegration(ctx context.Context, sb sqlbuilder.Builder) (*models.Integration, error) {
	var integration models.Integration
	if err := s.get(ctx, &integration, sb); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return &integration, nil
}

// SaveIntegration links a connection. An existing integration with the same
// key has its connection replaced and its error state cleared.
func (s *Store) SaveIntegration(ctx context.Context, in *models.Integration) error {
	if !in.CRMType.Valid() {
		return fmt.Errorf("unknown crm type %q", in.CRMType)
	}
	in.Scope = in.CRMType.Scope()
	if in.Scope == models.ScopeCell && models.StringValue(in.CellID) == "" {
		return fmt.Errorf("%s integrations require a cell", in.CRMType.DisplayName())
	}
	if in.Scope == models.ScopeAccount {
		in.CellID = nil
	}

	return s.InTx(ctx, func(tx *Store) error {
		existing, err := tx.GetIntegrationFor(ctx, in.CRMType, in.UserID, models.StringValue(in.OrgID), models.StringValue(in.CellID))
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if existing != nil {
			ub := tx.flavor.NewUpdateBuilder()
			ub.Update("integrations")
			ub.Set(
				ub.Assign("connection_id", in.ConnectionID),
				ub.Assign("status", models.IntegrationStatusIdle),
				ub.Assign("error_message", nil),
				ub.Assign("updated_at", now),
			)
			ub.Where(ub.Equal("id", existing.ID))
			if _, err := tx.exec(ctx, ub); err != nil {
				return fmt.Errorf("failed to update integration: %w", err)
			}

			existing.ConnectionID = in.ConnectionID
			existing.Status = models.IntegrationStatusIdle
			existing.ErrorMessage = nil
			existing.UpdatedAt = now
			*in = *existing
			return nil
		}

		if in.ID == "" {
			in.ID = uuid.New().String()
		}
		in.Status = models.IntegrationStatusIdle
		in.ErrorMessage = nil
		in.CreatedAt = now
		in.UpdatedAt = now

		ib := tx.flavor.NewInsertBuilder()
		ib.InsertInto("integrations")
		ib.Cols(integrationColumns...)
		ib.Values(
			in.ID, string(in.CRMType), string(in.Scope), in.CellID, in.UserID, in.OrgID, in.ConnectionID,
			in.Status, in.ErrorMessage, in.LastSyncedAt, in.SyncedCount, in.CreatedAt, in.UpdatedAt,
		)
		if _, err := tx.exec(ctx, ib); err != nil {
			return fmt.Errorf("failed to create integration: %w", err)
		}
		return nil
	})
}

// UpdateIntegrationStatus updates the status and error message of an integration.
func (s *Store) UpdateIntegrationStatus(ctx context.Context, id, status string, errorMsg *string) error {
	ub := s.flavor.NewUpdateBuilder()
	ub.Update("integrations")
	ub.Set(
		ub.Assign("status", status),
		ub.Assign("error_message", errorMsg),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(ub.Equal("id", id))

	n, err := s.exec(ctx, ub)
	if err != nil {
		return fmt.Errorf("failed to update integration status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("integration %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecordIntegrationSync marks a successful run: idle, no error, and the number
// of contacts the run upserted.
func (s *Store) RecordIntegrationSync(ctx context.Context, id string, syncedCount int, at time.Time) error {
	ub := s.flavor.NewUpdateBuilder()
	ub.Update("integrations")
	ub.Set(
		ub.Assign("status", models.IntegrationStatusIdle),
		ub.Assign("error_message", nil),
		ub.Assign("last_synced_at", at.UTC()),
		ub.Assign("synced_count", syncedCount),
		ub.Assign("updated_at", at.UTC()),
	)
	ub.Where(ub.Equal("id", id))

	n, err := s.exec(ctx, ub)
	if err != nil {
		return fmt.Errorf("failed to record integration sync: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("integration %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListIntegrations returns the user's integrations within the org, both
// account-wide and those bound to individual cells.
func (s *Store) ListIntegrations(ctx context.Context, userID, orgID string) ([]models.Integration, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select(integrationColumns...)
	sb.From("integrations")
	sb.Where(sb.Equal("user_id", userID), orgCond(sb, orgID))
	sb.OrderBy("crm_type", "created_at")

	var integrations []models.Integration
	if err := s.selectAll(ctx, &integrations, sb); err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	return integrations, nil
}
