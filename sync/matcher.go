// ABOUTME: Contact deduplication index keyed by canonical phone number
// ABOUTME: Groups a cell's existing mappings so reconciliation can find and collapse duplicates
package sync

import (
	"sort"

	"github.com/harperreed/cellsync/models"
	"github.com/harperreed/cellsync/phone"
)

// PhoneIndex maps canonical E.164 numbers to the mappings that normalize to them.
// Each group is ordered oldest first, so the first entry is the one that survives a merge.
type PhoneIndex struct {
	byPhone map[string][]*models.ContactMapping
}

// NewPhoneIndex builds an index from existing mappings. Stored numbers that no
// longer normalize are left out of the index and never touched.
func NewPhoneIndex(mappings []models.ContactMapping, region string) *PhoneIndex {
	sorted := make([]*models.ContactMapping, len(mappings))
	for i := range mappings {
		sorted[i] = &mappings[i]
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	idx := &PhoneIndex{byPhone: make(map[string][]*models.ContactMapping)}
	for _, m := range sorted {
		canonical, err := phone.Normalize(m.PhoneNumber, region)
		if err != nil {
			continue
		}
		idx.byPhone[canonical] = append(idx.byPhone[canonical], m)
	}
	return idx
}

// FindMatch returns the mapping that owns canonical, if any.
func (idx *PhoneIndex) FindMatch(canonical string) (*models.ContactMapping, bool) {
	group := idx.byPhone[canonical]
	if len(group) == 0 {
		return nil, false
	}
	return group[0], true
}

// All returns every mapping that normalizes to canonical, oldest first.
func (idx *PhoneIndex) All(canonical string) []*models.ContactMapping {
	return idx.byPhone[canonical]
}

// Replace records m as the only mapping for canonical. Called after inserts and merges
// so later lookups in the same run see the surviving row.
func (idx *PhoneIndex) Replace(canonical string, m *models.ContactMapping) {
	idx.byPhone[canonical] = []*models.ContactMapping{m}
}

// Len returns the number of distinct canonical numbers indexed.
func (idx *PhoneIndex) Len() int {
	return len(idx.byPhone)
}
