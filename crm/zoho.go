// ABOUTME: Zoho CRM contact source
// ABOUTME: Page-numbered reads of the Contacts module using the Phone and Mobile fields
package crm

import (
	"context"
	"fmt"

	"github.com/harperreed/cellsync/models"
)

const (
	zohoGetRecords = "ZOHO_GET_ZOHO_RECORDS"
	zohoPageSize   = 200
)

// Zoho reads the Contacts module from Zoho CRM.
type Zoho struct{}

func (z *Zoho) Type() models.CRMType { return models.CRMZoho }

type zohoPage struct {
	Data []struct {
		ID          flexString `json:"id"`
		FirstName   string     `json:"First_Name"`
		LastName    string     `json:"Last_Name"`
		Email       string     `json:"Email"`
		Phone       string     `json:"Phone"`
		Mobile      string     `json:"Mobile"`
		AccountName *struct {
			Name string `json:"name"`
		} `json:"Account_Name"`
	} `json:"data"`
	Info struct {
		MoreRecords bool `json:"more_records"`
	} `json:"info"`
}

func (z *Zoho) Fetch(ctx context.Context, exec ToolExecutor, connectionID string) ([]Candidate, error) {
	var candidates []Candidate

	for page := 1; page <= maxPages; page++ {
		raw, err := exec.Execute(ctx, zohoGetRecords, connectionID, map[string]any{
			"module":   "Contacts",
			"page":     page,
			"per_page": zohoPageSize,
			"fields":   "First_Name,Last_Name,Email,Phone,Mobile,Account_Name",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list zoho contacts: %w", err)
		}

		var resp zohoPage
		if err := decode(raw, &resp); err != nil {
			return nil, err
		}

		for _, r := range resp.Data {
			company := ""
			if r.AccountName != nil {
				company = r.AccountName.Name
			}
			candidates = append(candidates, NewCandidate(string(r.ID), models.ContactAttributes{
				FirstName:  r.FirstName,
				LastName:   r.LastName,
				Email:      r.Email,
				Company:    company,
				SourceType: "contact",
			}, r.Phone, r.Mobile))
		}

		if !resp.Info.MoreRecords {
			return candidates, nil
		}
	}

	return nil, fmt.Errorf("%w: zoho contacts after %d pages", ErrTooManyPages, maxPages)
}
