// ABOUTME: Zendesk Sell contact source
// ABOUTME: Page-numbered contact reads using the phone and mobile fields
package crm

import (
	"context"
	"fmt"

	"github.com/harperreed/cellsync/models"
)

const (
	zendeskListContacts = "ZENDESK_SELL_LIST_CONTACTS"
	zendeskPageSize     = 100
)

// Zendesk reads contacts from Zendesk Sell.
type Zendesk struct{}

func (z *Zendesk) Type() models.CRMType { return models.CRMZendesk }

type zendeskPage struct {
	Items []struct {
		Data struct {
			ID             flexString `json:"id"`
			FirstName      string     `json:"first_name"`
			LastName       string     `json:"last_name"`
			Name           string     `json:"name"`
			Email          string     `json:"email"`
			Phone          string     `json:"phone"`
			Mobile         string     `json:"mobile"`
			IsOrganization bool       `json:"is_organization"`
		} `json:"data"`
	} `json:"items"`
	Meta struct {
		Links struct {
			NextPage string `json:"next_page"`
		} `json:"links"`
	} `json:"meta"`
}

func (z *Zendesk) Fetch(ctx context.Context, exec ToolExecutor, connectionID string) ([]Candidate, error) {
	var candidates []Candidate

	for page := 1; page <= maxPages; page++ {
		raw, err := exec.Execute(ctx, zendeskListContacts, connectionID, map[string]any{
			"page":     page,
			"per_page": zendeskPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list zendesk contacts: %w", err)
		}

		var resp zendeskPage
		if err := decode(raw, &resp); err != nil {
			return nil, err
		}

		for _, item := range resp.Items {
			d := item.Data
			attrs := models.ContactAttributes{
				FirstName:  d.FirstName,
				LastName:   d.LastName,
				Email:      d.Email,
				SourceType: "contact",
			}
			if d.IsOrganization {
				attrs.Company = d.Name
				attrs.SourceType = "organization"
			}
			candidates = append(candidates, NewCandidate(string(d.ID), attrs, d.Phone, d.Mobile))
		}

		if resp.Meta.Links.NextPage == "" {
			return candidates, nil
		}
	}

	return nil, fmt.Errorf("%w: zendesk contacts after %d pages", ErrTooManyPages, maxPages)
}
