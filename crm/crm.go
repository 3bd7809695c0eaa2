// ABOUTME: CRM contact sources fetched through the connection broker
// ABOUTME: Defines candidates, the tool executor capability and the per-CRM source registry
package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/harperreed/cellsync/models"
	"go.uber.org/zap"
)

// maxPages bounds pagination so a misbehaving upstream cannot loop forever.
// Hitting it while the upstream still reports more data fails the fetch.
var maxPages = 1000

var (
	// ErrReauthRequired means the stored connection is no longer authorized.
	ErrReauthRequired = errors.New("crm connection requires re-authorization")
	// ErrNoConnection means the broker has no active connection for the user.
	ErrNoConnection = errors.New("no active crm connection")
	// ErrUnsupported is returned by the registry for unknown CRM types.
	ErrUnsupported = errors.New("unsupported crm")
	// ErrTooManyPages means pagination hit maxPages with records still pending.
	ErrTooManyPages = errors.New("crm pagination limit reached")
)

// Candidate is one upstream CRM record with the phone numbers it carries.
type Candidate struct {
	ExternalID  string
	DisplayName string
	Phones      []string
	Attributes  models.ContactAttributes
}

// ToolExecutor runs a broker tool against a connected account and returns the tool's data payload.
type ToolExecutor interface {
	Execute(ctx context.Context, tool, connectionID string, args map[string]any) (json.RawMessage, error)
}

// Source fetches every contact-like record of one CRM.
type Source interface {
	Type() models.CRMType
	Fetch(ctx context.Context, exec ToolExecutor, connectionID string) ([]Candidate, error)
}

// Registry resolves CRM types to their sources.
type Registry struct {
	sources map[models.CRMType]Source
}

// NewRegistry builds a registry holding every supported CRM.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{sources: make(map[models.CRMType]Source)}
	r.Register(&HubSpot{})
	r.Register(&Salesforce{})
	r.Register(&Zoho{})
	r.Register(&Attio{})
	r.Register(&Zendesk{})
	r.Register(&AgencyZoom{logger: logger.Named("agencyzoom")})
	return r
}

// Register adds or replaces a source.
func (r *Registry) Register(s Source) {
	r.sources[s.Type()] = s
}

// Lookup returns the source for t.
func (r *Registry) Lookup(t models.CRMType) (Source, error) {
	s, ok := r.sources[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, t)
	}
	return s, nil
}

// NewCandidate assembles a candidate, dropping empty and textually duplicate phones.
func NewCandidate(externalID string, attrs models.ContactAttributes, phones ...string) Candidate {
	attrs.ExternalID = externalID
	return Candidate{
		ExternalID:  externalID,
		DisplayName: DisplayName(attrs),
		Phones:      UniquePhones(phones...),
		Attributes:  attrs,
	}
}

// UniquePhones trims values and removes empties and exact duplicates, keeping order.
func UniquePhones(phones ...string) []string {
	seen := make(map[string]bool, len(phones))
	out := make([]string, 0, len(phones))
	for _, p := range phones {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// DisplayName picks a human label for logs: full name, then email, then company.
func DisplayName(attrs models.ContactAttributes) string {
	name := strings.TrimSpace(strings.TrimSpace(attrs.FirstName) + " " + strings.TrimSpace(attrs.LastName))
	switch {
	case name != "":
		return name
	case attrs.Email != "":
		return attrs.Email
	default:
		return attrs.Company
	}
}

// decode unmarshals a tool payload, unwrapping the "response_data" envelope some tools use.
func decode(raw json.RawMessage, v any) error {
	var envelope struct {
		ResponseData json.RawMessage `json:"response_data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.ResponseData) > 0 && string(envelope.ResponseData) != "null" {
		raw = envelope.ResponseData
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode crm response: %w", err)
	}
	return nil
}

// flexString accepts JSON strings and numbers, since CRMs disagree on ID types.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
