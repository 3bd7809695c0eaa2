// ABOUTME: Database operations for contact mappings
// ABOUTME: Lists, inserts, rewrites and deletes phone-to-cell mappings
package db

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/harperreed/cellsync/models"
)

var mappingColumns = []string{"id", "phone_number", "owner_user_id", "cell_id", "created_at"}

// ListMappingsForCells returns the mappings of the given cells, oldest first.
func (s *Store) ListMappingsForCells(ctx context.Context, cellIDs []string) ([]models.ContactMapping, error) {
	if len(cellIDs) == 0 {
		return nil, nil
	}

	sb := s.flavor.NewSelectBuilder()
	sb.Select(mappingColumns...)
	sb.From("contact_mappings")
	sb.Where(sb.In("cell_id", sqlbuilder.Flatten(cellIDs)...))
	sb.OrderBy("created_at", "id")

	var mappings []models.ContactMapping
	if err := s.selectAll(ctx, &mappings, sb); err != nil {
		return nil, fmt.Errorf("failed to list contact mappings: %w", err)
	}
	return mappings, nil
}

// InsertMapping stores a new mapping. The caller assigns ID and CreatedAt.
func (s *Store) InsertMapping(ctx context.Context, m *models.ContactMapping) error {
	ib := s.flavor.NewInsertBuilder()
	ib.InsertInto("contact_mappings")
	ib.Cols(mappingColumns...)
	ib.Values(m.ID, m.PhoneNumber, m.OwnerUserID, m.CellID, m.CreatedAt)

	if _, err := s.exec(ctx, ib); err != nil {
		return fmt.Errorf("failed to insert contact mapping: %w", err)
	}
	return nil
}

// UpdateMappingPhone rewrites a mapping's phone number in place.
func (s *Store) UpdateMappingPhone(ctx context.Context, id, phoneNumber string) error {
	ub := s.flavor.NewUpdateBuilder()
	ub.Update("contact_mappings")
	ub.Set(ub.Assign("phone_number", phoneNumber))
	ub.Where(ub.Equal("id", id))

	n, err := s.exec(ctx, ub)
	if err != nil {
		return fmt.Errorf("failed to update contact mapping: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("contact mapping %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteMapping removes a mapping. Deleting a missing row is not an error.
func (s *Store) DeleteMapping(ctx context.Context, id string) error {
	del := s.flavor.NewDeleteBuilder()
	del.DeleteFrom("contact_mappings")
	del.Where(del.Equal("id", id))

	if _, err := s.exec(ctx, del); err != nil {
		return fmt.Errorf("failed to delete contact mapping: %w", err)
	}
	return nil
}

// ListContactsForCell returns each mapping of a cell together with the CRM
// side records that share its phone number.
func (s *Store) ListContactsForCell(ctx context.Context, cellID string) ([]models.ContactView, error) {
	mappings, err := s.ListMappingsForCells(ctx, []string{cellID})
	if err != nil {
		return nil, err
	}

	records, err := s.ListCrmContactsForCell(ctx, cellID)
	if err != nil {
		return nil, err
	}

	byPhone := make(map[string][]models.CrmContact)
	for _, r := range records {
		byPhone[r.PhoneNumber] = append(byPhone[r.PhoneNumber], r)
	}

	views := make([]models.ContactView, 0, len(mappings))
	for _, m := range mappings {
		views = append(views, models.ContactView{
			ContactMapping: m,
			Records:        byPhone[m.PhoneNumber],
		})
	}
	return views, nil
}
