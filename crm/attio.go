// ABOUTME: Attio contact source
// ABOUTME: Offset-paged people records; every phone_numbers entry is a candidate phone
package crm

import (
	"context"
	"fmt"

	"github.com/harperreed/cellsync/models"
)

const (
	attioListRecords = "ATTIO_LIST_RECORDS"
	attioPageSize    = 500
)

// Attio reads people records from Attio.
type Attio struct{}

func (a *Attio) Type() models.CRMType { return models.CRMAttio }

type attioPage struct {
	Data []struct {
		ID struct {
			RecordID string `json:"record_id"`
		} `json:"id"`
		Values struct {
			Name []struct {
				FirstName string `json:"first_name"`
				LastName  string `json:"last_name"`
				FullName  string `json:"full_name"`
			} `json:"name"`
			EmailAddresses []struct {
				EmailAddress string `json:"email_address"`
			} `json:"email_addresses"`
			PhoneNumbers []struct {
				OriginalPhoneNumber string `json:"original_phone_number"`
			} `json:"phone_numbers"`
		} `json:"values"`
	} `json:"data"`
}

func (a *Attio) Fetch(ctx context.Context, exec ToolExecutor, connectionID string) ([]Candidate, error) {
	var candidates []Candidate

	for page := 0; page < maxPages; page++ {
		raw, err := exec.Execute(ctx, attioListRecords, connectionID, map[string]any{
			"object": "people",
			"limit":  attioPageSize,
			"offset": page * attioPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list attio people: %w", err)
		}

		var resp attioPage
		if err := decode(raw, &resp); err != nil {
			return nil, err
		}

		for _, r := range resp.Data {
			attrs := models.ContactAttributes{SourceType: "person"}
			if len(r.Values.Name) > 0 {
				n := r.Values.Name[0]
				attrs.FirstName, attrs.LastName = n.FirstName, n.LastName
				if attrs.FirstName == "" && attrs.LastName == "" {
					attrs.FirstName = n.FullName
				}
			}
			if len(r.Values.EmailAddresses) > 0 {
				attrs.Email = r.Values.EmailAddresses[0].EmailAddress
			}

			phones := make([]string, 0, len(r.Values.PhoneNumbers))
			for _, p := range r.Values.PhoneNumbers {
				phones = append(phones, p.OriginalPhoneNumber)
			}
			candidates = append(candidates, NewCandidate(r.ID.RecordID, attrs, phones...))
		}

		if len(resp.Data) < attioPageSize {
			return candidates, nil
		}
	}

	return nil, fmt.Errorf("%w: attio people after %d pages", ErrTooManyPages, maxPages)
}
