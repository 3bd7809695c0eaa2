// ABOUTME: AgencyZoom contact source
// ABOUTME: Reads customers and leads, tolerating the failure of one of the two lists
package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harperreed/cellsync/models"
	"go.uber.org/zap"
)

const (
	agencyZoomCustomers = "AGENCYZOOM_SEARCH_CUSTOMERS"
	agencyZoomLeads     = "AGENCYZOOM_SEARCH_LEADS"
	agencyZoomPageSize  = 100
)

// AgencyZoom reads customers and leads from AgencyZoom.
type AgencyZoom struct {
	logger *zap.Logger
}

func (a *AgencyZoom) Type() models.CRMType { return models.CRMAgencyZoom }

type agencyZoomRecord struct {
	ID             flexString `json:"id"`
	FirstName      string     `json:"firstname"`
	LastName       string     `json:"lastname"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	SecondaryPhone string     `json:"secondaryPhone"`
	BusinessName   string     `json:"businessName"`
}

// Fetch returns customers followed by leads. One list failing is logged and
// the other is used; both failing is an error. Reauth and truncated lists are
// never tolerated.
func (a *AgencyZoom) Fetch(ctx context.Context, exec ToolExecutor, connectionID string) ([]Candidate, error) {
	logger := a.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	customers, custErr := a.fetchList(ctx, exec, connectionID, agencyZoomCustomers, "customers", "customer")
	leads, leadErr := a.fetchList(ctx, exec, connectionID, agencyZoomLeads, "leads", "lead")

	switch {
	case custErr != nil && leadErr != nil:
		return nil, fmt.Errorf("failed to fetch agencyzoom records: %w", errors.Join(custErr, leadErr))
	case custErr != nil:
		if errors.Is(custErr, ErrReauthRequired) || errors.Is(custErr, ErrTooManyPages) {
			return nil, custErr
		}
		logger.Warn("agencyzoom customers fetch failed, continuing with leads", zap.Error(custErr))
	case leadErr != nil:
		if errors.Is(leadErr, ErrReauthRequired) || errors.Is(leadErr, ErrTooManyPages) {
			return nil, leadErr
		}
		logger.Warn("agencyzoom leads fetch failed, continuing with customers", zap.Error(leadErr))
	}

	return append(customers, leads...), nil
}

func (a *AgencyZoom) fetchList(ctx context.Context, exec ToolExecutor, connectionID, tool, key, sourceType string) ([]Candidate, error) {
	var candidates []Candidate

	for page := 1; page <= maxPages; page++ {
		raw, err := exec.Execute(ctx, tool, connectionID, map[string]any{
			"page":     page,
			"pageSize": agencyZoomPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list agencyzoom %s: %w", key, err)
		}

		var resp map[string]json.RawMessage
		if err := decode(raw, &resp); err != nil {
			return nil, err
		}
		var records []agencyZoomRecord
		if list, ok := resp[key]; ok {
			if err := json.Unmarshal(list, &records); err != nil {
				return nil, fmt.Errorf("failed to decode agencyzoom %s: %w", key, err)
			}
		}

		for _, r := range records {
			candidates = append(candidates, NewCandidate(string(r.ID), models.ContactAttributes{
				FirstName:  r.FirstName,
				LastName:   r.LastName,
				Email:      r.Email,
				Company:    r.BusinessName,
				SourceType: sourceType,
			}, r.Phone, r.SecondaryPhone))
		}

		if len(records) < agencyZoomPageSize {
			return candidates, nil
		}
	}

	return nil, fmt.Errorf("%w: agencyzoom %s after %d pages", ErrTooManyPages, key, maxPages)
}
