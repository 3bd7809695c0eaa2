// ABOUTME: HubSpot contact source
// ABOUTME: Pages through CRM contacts with an after-cursor and reads phone and mobilephone
package crm

import (
	"context"
	"fmt"

	"github.com/harperreed/cellsync/models"
)

const hubspotListContacts = "HUBSPOT_LIST_CONTACTS"

var hubspotProperties = []string{"firstname", "lastname", "email", "company", "phone", "mobilephone"}

// HubSpot reads contacts from HubSpot.
type HubSpot struct{}

func (h *HubSpot) Type() models.CRMType { return models.CRMHubSpot }

type hubspotPage struct {
	Results []struct {
		ID         flexString `json:"id"`
		Properties struct {
			FirstName   string `json:"firstname"`
			LastName    string `json:"lastname"`
			Email       string `json:"email"`
			Company     string `json:"company"`
			Phone       string `json:"phone"`
			MobilePhone string `json:"mobilephone"`
		} `json:"properties"`
	} `json:"results"`
	Paging *struct {
		Next *struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

func (h *HubSpot) Fetch(ctx context.Context, exec ToolExecutor, connectionID string) ([]Candidate, error) {
	var candidates []Candidate
	after := ""

	for page := 0; page < maxPages; page++ {
		args := map[string]any{
			"limit":      100,
			"properties": hubspotProperties,
		}
		if after != "" {
			args["after"] = after
		}

		raw, err := exec.Execute(ctx, hubspotListContacts, connectionID, args)
		if err != nil {
			return nil, fmt.Errorf("failed to list hubspot contacts: %w", err)
		}

		var resp hubspotPage
		if err := decode(raw, &resp); err != nil {
			return nil, err
		}

		for _, r := range resp.Results {
			p := r.Properties
			candidates = append(candidates, NewCandidate(string(r.ID), models.ContactAttributes{
				FirstName:  p.FirstName,
				LastName:   p.LastName,
				Email:      p.Email,
				Company:    p.Company,
				SourceType: "contact",
			}, p.Phone, p.MobilePhone))
		}

		if resp.Paging == nil || resp.Paging.Next == nil || resp.Paging.Next.After == "" {
			return candidates, nil
		}
		after = resp.Paging.Next.After
	}

	return nil, fmt.Errorf("%w: hubspot contacts after %d pages", ErrTooManyPages, maxPages)
}
