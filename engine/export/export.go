// Package export merges crawl output into the two flat output tables and
// writes them as CSV.
package export

import (
	"strings"

	"github.com/WessleyAI/orggraph/engine/domain"
	"github.com/WessleyAI/orggraph/pkg/fn"
)

// EntityRow is one row of the organizations table. Nil fields are null.
type EntityRow struct {
	Name         string  `json:"name"`
	URI          string  `json:"uri"`
	Abstract     *string `json:"abstract"`
	Headquarters *string `json:"headquarters"`
	FoundingDate *string `json:"founding_date"`
	Employees    *string `json:"employees"`
	Locations    *string `json:"locations"`
	Countries    *string `json:"countries"`
}

// RelationshipRow is one directed (source, target) pair.
type RelationshipRow struct {
	SourceURI string `json:"source_uri"`
	TargetURI string `json:"target_uri"`
}

// Tables is the complete export of one crawl.
type Tables struct {
	Entities      []EntityRow
	Relationships []RelationshipRow
}

// Export builds both tables.
func Export(records []domain.OrganizationRecord, rels domain.RelationshipMap) Tables {
	return Tables{
		Entities:      EntityTable(records),
		Relationships: RelationshipTable(rels),
	}
}

// EntityTable emits one row per unique identifier. The first record to
// mention an identifier wins; later records naming it again are ignored.
// Rows keep crawl order.
func EntityTable(records []domain.OrganizationRecord) []EntityRow {
	seen := make(domain.IdentifierSet)
	var out []EntityRow
	for _, rec := range records {
		locations := joined(rec.Locations)
		countries := joined(rec.Countries)
		for i, id := range rec.Identifiers {
			if !seen.Add(id) {
				continue
			}
			out = append(out, EntityRow{
				Name:         rec.QueryName,
				URI:          id,
				Abstract:     pick(rec.Abstract, i),
				Headquarters: pick(rec.Headquarters, i),
				FoundingDate: pick(rec.FoundingDate, i),
				Employees:    pick(rec.EmployeeCount, i),
				Locations:    locations,
				Countries:    countries,
			})
		}
	}
	return out
}

// RelationshipTable flattens the map into unique pairs sorted by source,
// then target.
func RelationshipTable(rels domain.RelationshipMap) []RelationshipRow {
	var out []RelationshipRow
	for _, src := range fn.SortedKeys(rels) {
		for _, dst := range fn.SortedKeys(rels[src]) {
			out = append(out, RelationshipRow{SourceURI: src, TargetURI: dst})
		}
	}
	return out
}

// pick returns the value at i, falling back to the first value. Empty
// slots count as missing.
func pick(seq []string, i int) *string {
	switch {
	case i < len(seq) && seq[i] != "":
		return &seq[i]
	case len(seq) > 0 && seq[0] != "":
		return &seq[0]
	default:
		return nil
	}
}

func joined(seq []string) *string {
	if len(seq) == 0 {
		return nil
	}
	s := strings.Join(seq, "|")
	return &s
}

// Value dereferences a nullable cell, mapping null to "".
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
