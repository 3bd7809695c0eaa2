// ABOUTME: Database operations for cells
// ABOUTME: Creates cells and lists the cells an account owns for account-wide syncs
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/cellsync/models"
)

var cellColumns = []string{"id", "owner_user_id", "org_id", "name", "phone_number", "created_at"}

// CreateCell inserts a new cell, assigning an ID when none is set.
func (s *Store) CreateCell(ctx context.Context, cell *models.Cell) error {
	if cell.ID == "" {
		cell.ID = uuid.New().String()
	}
	if cell.CreatedAt.IsZero() {
		cell.CreatedAt = time.Now().UTC()
	}

	ib := s.flavor.NewInsertBuilder()
	ib.InsertInto("cells")
	ib.Cols(cellColumns...)
	ib.Values(cell.ID, cell.OwnerUserID, cell.OrgID, cell.Name, cell.PhoneNumber, cell.CreatedAt)

	if _, err := s.exec(ctx, ib); err != nil {
		return fmt.Errorf("failed to create cell: %w", err)
	}
	return nil
}

// GetCell returns the cell with the given ID, or nil when it does not exist.
func (s *Store) GetCell(ctx context.Context, id string) (*models.Cell, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select(cellColumns...)
	sb.From("cells")
	sb.Where(sb.Equal("id", id))

	var cell models.Cell
	if err := s.get(ctx, &cell, sb); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cell: %w", err)
	}
	return &cell, nil
}

// ListAccountCells returns every cell owned by the user within the org.
// An empty orgID selects the user's personal cells.
func (s *Store) ListAccountCells(ctx context.Context, userID, orgID string) ([]models.Cell, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select(cellColumns...)
	sb.From("cells")
	sb.Where(sb.Equal("owner_user_id", userID), orgCond(sb, orgID))
	sb.OrderBy("created_at", "id")

	var cells []models.Cell
	if err := s.selectAll(ctx, &cells, sb); err != nil {
		return nil, fmt.Errorf("failed to list cells: %w", err)
	}
	return cells, nil
}

type conder interface {
	Equal(field string, value interface{}) string
	IsNull(field string) string
}

func orgCond(c conder, orgID string) string {
	if orgID == "" {
		return c.IsNull("org_id")
	}
	return c.Equal("org_id", orgID)
}
