// ABOUTME: Data models for cells, contact mappings, CRM side records, and integrations
// ABOUTME: Defines the supported CRM types and how each one scopes its integration
package models

import (
	"fmt"
	"strings"
	"time"
)

// CRMType identifies an upstream CRM reachable through the connection broker.
type CRMType string

const (
	CRMHubSpot    CRMType = "hubspot"
	CRMSalesforce CRMType = "salesforce"
	CRMZoho       CRMType = "zoho"
	CRMAttio      CRMType = "attio"
	CRMZendesk    CRMType = "zendesk"
	CRMAgencyZoom CRMType = "agencyzoom"
)

// AllCRMTypes lists every supported CRM in display order.
var AllCRMTypes = []CRMType{
	CRMHubSpot,
	CRMSalesforce,
	CRMZoho,
	CRMAttio,
	CRMZendesk,
	CRMAgencyZoom,
}

// IntegrationScope says whether an integration belongs to one cell or to the whole account.
type IntegrationScope string

const (
	ScopeCell    IntegrationScope = "cell"
	ScopeAccount IntegrationScope = "account"
)

// ParseCRMType converts user input into a CRMType.
func ParseCRMType(s string) (CRMType, error) {
	t := CRMType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown crm type %q", s)
	}
	return t, nil
}

// Valid reports whether t is a supported CRM.
func (t CRMType) Valid() bool {
	for _, known := range AllCRMTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Scope returns how integrations for this CRM are keyed.
// HubSpot, Salesforce and AgencyZoom connect per cell; the rest connect once per account.
func (t CRMType) Scope() IntegrationScope {
	switch t {
	case CRMHubSpot, CRMSalesforce, CRMAgencyZoom:
		return ScopeCell
	default:
		return ScopeAccount
	}
}

// DisplayName is the human-readable CRM name.
func (t CRMType) DisplayName() string {
	switch t {
	case CRMHubSpot:
		return "HubSpot"
	case CRMSalesforce:
		return "Salesforce"
	case CRMZoho:
		return "Zoho"
	case CRMAttio:
		return "Attio"
	case CRMZendesk:
		return "Zendesk"
	case CRMAgencyZoom:
		return "AgencyZoom"
	default:
		return string(t)
	}
}

// ToolkitSlug is the broker's toolkit identifier for this CRM.
func (t CRMType) ToolkitSlug() string {
	return string(t)
}

// Cell is a tenant partition (one AI SMS agent) that owns a contact list.
type Cell struct {
	ID          string    `db:"id" json:"id"`
	OwnerUserID string    `db:"owner_user_id" json:"owner_user_id"`
	OrgID       *string   `db:"org_id" json:"org_id,omitempty"`
	Name        string    `db:"name" json:"name"`
	PhoneNumber *string   `db:"phone_number" json:"phone_number,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ContactMapping binds a phone number to a cell. Within a cell at most one
// mapping should exist per canonical E.164 number; legacy rows may still hold
// non-canonical numbers until a sync revisits them.
type ContactMapping struct {
	ID          string    `db:"id" json:"id"`
	PhoneNumber string    `db:"phone_number" json:"phone_number"`
	OwnerUserID string    `db:"owner_user_id" json:"owner_user_id"`
	CellID      string    `db:"cell_id" json:"cell_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ContactAttributes are the CRM-specific fields stored alongside a mapping.
type ContactAttributes struct {
	ExternalID string `db:"external_id" json:"external_id"`
	FirstName  string `db:"first_name" json:"first_name,omitempty"`
	LastName   string `db:"last_name" json:"last_name,omitempty"`
	Email      string `db:"email" json:"email,omitempty"`
	Company    string `db:"company" json:"company,omitempty"`
	SourceType string `db:"source_type" json:"source_type,omitempty"`
}

// CrmContact is the side record for one (cell, crm, canonical phone).
// Last write wins per sync run.
type CrmContact struct {
	ID          string    `db:"id" json:"id"`
	CRMType     CRMType   `db:"crm_type" json:"crm_type"`
	CellID      string    `db:"cell_id" json:"cell_id"`
	PhoneNumber string    `db:"phone_number" json:"phone_number"`
	ContactAttributes
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Integration status constants.
const (
	IntegrationStatusIdle    = "idle"
	IntegrationStatusSyncing = "syncing"
	IntegrationStatusError   = "error"
)

// Integration links a CRM connection to either one cell or a whole account.
type Integration struct {
	ID           string           `db:"id" json:"id"`
	CRMType      CRMType          `db:"crm_type" json:"crm_type"`
	Scope        IntegrationScope `db:"scope" json:"scope"`
	CellID       *string          `db:"cell_id" json:"cell_id,omitempty"`
	UserID       string           `db:"user_id" json:"user_id"`
	OrgID        *string          `db:"org_id" json:"org_id,omitempty"`
	ConnectionID string           `db:"connection_id" json:"connection_id"`
	Status       string           `db:"status" json:"status"`
	ErrorMessage *string          `db:"error_message" json:"error_message,omitempty"`
	LastSyncedAt *time.Time       `db:"last_synced_at" json:"last_synced_at,omitempty"`
	SyncedCount  int              `db:"synced_count" json:"synced_count"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// ContactView is a mapping with every CRM side record that shares its phone number.
type ContactView struct {
	ContactMapping
	Records []CrmContact `json:"records,omitempty"`
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences p, treating nil as empty.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
