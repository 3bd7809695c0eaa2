// ABOUTME: Salesforce contact source
// ABOUTME: Queries Contact and Lead objects with keyset-paged SOQL and reads Phone and MobilePhone
package crm

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/cellsync/models"
)

const (
	salesforceQuery    = "SALESFORCE_RUN_SOQL_QUERY"
	salesforcePageSize = 200
)

// Salesforce reads both Contacts and Leads from Salesforce.
type Salesforce struct{}

func (s *Salesforce) Type() models.CRMType { return models.CRMSalesforce }

type salesforceRecord struct {
	ID          string `json:"Id"`
	FirstName   string `json:"FirstName"`
	LastName    string `json:"LastName"`
	Email       string `json:"Email"`
	Phone       string `json:"Phone"`
	MobilePhone string `json:"MobilePhone"`
	Company     string `json:"Company"`
	Account     *struct {
		Name string `json:"Name"`
	} `json:"Account"`
}

func (s *Salesforce) Fetch(ctx context.Context, exec ToolExecutor, connectionID string) ([]Candidate, error) {
	contacts, err := s.fetchObject(ctx, exec, connectionID, "Contact", "Account.Name")
	if err != nil {
		return nil, err
	}
	leads, err := s.fetchObject(ctx, exec, connectionID, "Lead", "Company")
	if err != nil {
		return nil, err
	}
	return append(contacts, leads...), nil
}

func (s *Salesforce) fetchObject(ctx context.Context, exec ToolExecutor, connectionID, object, companyField string) ([]Candidate, error) {
	var candidates []Candidate
	lastID := ""

	for page := 0; page < maxPages; page++ {
		raw, err := exec.Execute(ctx, salesforceQuery, connectionID, map[string]any{
			"query": soqlPage(object, companyField, lastID),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query salesforce %s records: %w", object, err)
		}

		var resp struct {
			Records []salesforceRecord `json:"records"`
		}
		if err := decode(raw, &resp); err != nil {
			return nil, err
		}

		for _, r := range resp.Records {
			company := r.Company
			if r.Account != nil {
				company = r.Account.Name
			}
			candidates = append(candidates, NewCandidate(r.ID, models.ContactAttributes{
				FirstName:  r.FirstName,
				LastName:   r.LastName,
				Email:      r.Email,
				Company:    company,
				SourceType: strings.ToLower(object),
			}, r.Phone, r.MobilePhone))
		}

		if len(resp.Records) < salesforcePageSize {
			return candidates, nil
		}
		lastID = resp.Records[len(resp.Records)-1].ID
	}

	return nil, fmt.Errorf("%w: salesforce %s records after %d pages", ErrTooManyPages, object, maxPages)
}

func soqlPage(object, companyField, afterID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT Id, FirstName, LastName, Email, Phone, MobilePhone, %s FROM %s", companyField, object)
	if afterID != "" {
		// Salesforce IDs are alphanumeric; strip anything else before inlining.
		fmt.Fprintf(&b, " WHERE Id > '%s'", sanitizeSOQLID(afterID))
	}
	fmt.Fprintf(&b, " ORDER BY Id LIMIT %d", salesforcePageSize)
	return b.String()
}

func sanitizeSOQLID(id string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, id)
}
