// ABOUTME: Database operations for CRM side records
// ABOUTME: One row per (cell, crm, canonical phone) holding the CRM's contact attributes
package db

import (
	"context"
	"fmt"

	"github.com/harperreed/cellsync/models"
)

var crmContactColumns = []string{
	"id", "crm_type", "cell_id", "phone_number",
	"external_id", "first_name", "last_name", "email", "company", "source_type",
	"created_at", "updated_at",
}

// GetCrmContact returns the side record for (crm, cell, phone), or nil when none exists.
func (s *Store) GetCrmContact(ctx context.Context, crm models.CRMType, cellID, phoneNumber string) (*models.CrmContact, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select(crmContactColumns...)
	sb.From("crm_contacts")
	sb.Where(
		sb.Equal("crm_type", string(crm)),
		sb.Equal("cell_id", cellID),
		sb.Equal("phone_number", phoneNumber),
	)

	var c models.CrmContact
	if err := s.get(ctx, &c, sb); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get crm contact: %w", err)
	}
	return &c, nil
}

// InsertCrmContact stores a new side record. The caller assigns ID and timestamps.
func (s *Store) InsertCrmContact(ctx context.Context, c *models.CrmContact) error {
	ib := s.flavor.NewInsertBuilder()
	ib.InsertInto("crm_contacts")
	ib.Cols(crmContactColumns...)
	ib.Values(
		c.ID, string(c.CRMType), c.CellID, c.PhoneNumber,
		c.ExternalID, c.FirstName, c.LastName, c.Email, c.Company, c.SourceType,
		c.CreatedAt, c.UpdatedAt,
	)

	if _, err := s.exec(ctx, ib); err != nil {
		return fmt.Errorf("failed to insert crm contact: %w", err)
	}
	return nil
}

// UpdateCrmContact overwrites the attributes of an existing side record.
func (s *Store) UpdateCrmContact(ctx context.Context, c *models.CrmContact) error {
	ub := s.flavor.NewUpdateBuilder()
	ub.Update("crm_contacts")
	ub.Set(
		ub.Assign("external_id", c.ExternalID),
		ub.Assign("first_name", c.FirstName),
		ub.Assign("last_name", c.LastName),
		ub.Assign("email", c.Email),
		ub.Assign("company", c.Company),
		ub.Assign("source_type", c.SourceType),
		ub.Assign("updated_at", c.UpdatedAt),
	)
	ub.Where(ub.Equal("id", c.ID))

	n, err := s.exec(ctx, ub)
	if err != nil {
		return fmt.Errorf("failed to update crm contact: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("crm contact %s: %w", c.ID, ErrNotFound)
	}
	return nil
}

// ListCrmContactsForCell returns every side record of a cell across all CRMs.
func (s *Store) ListCrmContactsForCell(ctx context.Context, cellID string) ([]models.CrmContact, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select(crmContactColumns...)
	sb.From("crm_contacts")
	sb.Where(sb.Equal("cell_id", cellID))
	sb.OrderBy("phone_number", "crm_type")

	var contacts []models.CrmContact
	if err := s.selectAll(ctx, &contacts, sb); err != nil {
		return nil, fmt.Errorf("failed to list crm contacts: %w", err)
	}
	return contacts, nil
}
