// Package domain holds the organization graph model shared by the crawler,
// the exporter and the knowledge-base collaborators.
package domain

import "context"

// EntityRow is one result row returned by an EntityResolver. Every field is
// optional; an empty string means the row did not carry it.
type EntityRow struct {
	Identifier    string `json:"identifier,omitempty"`
	Label         string `json:"label,omitempty"`
	Abstract      string `json:"abstract,omitempty"`
	Headquarters  string `json:"headquarters,omitempty"`
	FoundingDate  string `json:"founding_date,omitempty"`
	Industry      string `json:"industry,omitempty"`
	EmployeeCount string `json:"employee_count,omitempty"`
	Location      string `json:"location,omitempty"`
	Country       string `json:"country,omitempty"`
}

// OrganizationRecord is everything learned about one explored name.
//
// Identifiers is unique and in first-seen order. Abstract, Headquarters,
// FoundingDate, Industry and EmployeeCount are aligned with Identifiers by
// position; "" marks a slot with no value and a nil sequence means the
// attribute is unknown for every identifier. Locations and Countries hold
// every value seen for the name, in row order.
type OrganizationRecord struct {
	QueryName     string   `json:"query_name"`
	Identifiers   []string `json:"identifiers"`
	Abstract      []string `json:"abstract,omitempty"`
	Headquarters  []string `json:"headquarters,omitempty"`
	FoundingDate  []string `json:"founding_date,omitempty"`
	Industry      []string `json:"industry,omitempty"`
	EmployeeCount []string `json:"employee_count,omitempty"`
	Locations     []string `json:"locations,omitempty"`
	Countries     []string `json:"countries,omitempty"`
}

// NewOrganizationRecord folds resolver rows into a record for name.
//
// The endpoint repeats an identifier once per combination of multi-valued
// properties, so single-valued attributes get one slot per unique
// identifier: Abstract[i] belongs to Identifiers[i], filled from the first
// row of that identifier that carries a value. A slot nobody filled is "";
// an attribute with no value at all is left nil. Locations and countries
// are collected from every row, including rows without an identifier.
func NewOrganizationRecord(name string, rows []EntityRow) OrganizationRecord {
	rec := OrganizationRecord{QueryName: name}
	slot := make(map[string]int)
	for _, r := range rows {
		rec.Locations = appendPresent(rec.Locations, r.Location)
		rec.Countries = appendPresent(rec.Countries, r.Country)
		if r.Identifier == "" {
			continue
		}
		i, ok := slot[r.Identifier]
		if !ok {
			i = len(rec.Identifiers)
			slot[r.Identifier] = i
			rec.Identifiers = append(rec.Identifiers, r.Identifier)
		}
		fill(&rec.Abstract, i, r.Abstract)
		fill(&rec.Headquarters, i, r.Headquarters)
		fill(&rec.FoundingDate, i, r.FoundingDate)
		fill(&rec.Industry, i, r.Industry)
		fill(&rec.EmployeeCount, i, r.EmployeeCount)
	}
	n := len(rec.Identifiers)
	for _, seq := range []*[]string{&rec.Abstract, &rec.Headquarters, &rec.FoundingDate, &rec.Industry, &rec.EmployeeCount} {
		if *seq != nil && len(*seq) < n {
			*seq = append(*seq, make([]string, n-len(*seq))...)
		}
	}
	return rec
}

// fill sets (*seq)[i] to v unless v is empty or the slot is already set,
// growing seq with empty slots as needed.
func fill(seq *[]string, i int, v string) {
	if v == "" {
		return
	}
	for len(*seq) <= i {
		*seq = append(*seq, "")
	}
	if (*seq)[i] == "" {
		(*seq)[i] = v
	}
}

func appendPresent(seq []string, v string) []string {
	if v == "" {
		return seq
	}
	return append(seq, v)
}

// HasIdentifiers reports whether the record can be expanded at all.
func (r OrganizationRecord) HasIdentifiers() bool { return len(r.Identifiers) > 0 }

// Direction tells which side of a relation the queried organization is on.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionUnknown  Direction = "unknown"
)

// ParseDirection maps a resolver value onto a Direction.
func ParseDirection(s string) Direction {
	switch Direction(s) {
	case DirectionOutgoing, DirectionIncoming:
		return Direction(s)
	default:
		return DirectionUnknown
	}
}

// Relation is one tuple returned by a RelationResolver. Direction and Kind
// are informational only; the relationship table keeps just the endpoints.
type Relation struct {
	Direction  Direction `json:"direction"`
	Kind       string    `json:"kind"`
	Identifier string    `json:"identifier"`
	Label      string    `json:"label"`
}

// Usable reports whether the relation can drive expansion.
func (r Relation) Usable() bool { return r.Identifier != "" && r.Label != "" }

// IdentifierSet is an unordered set of identifiers.
type IdentifierSet map[string]struct{}

// Add inserts id and reports whether it was new.
func (s IdentifierSet) Add(id string) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Has reports whether id is in the set.
func (s IdentifierSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// RelationshipMap maps an expanded identifier to its related identifiers.
type RelationshipMap map[string]IdentifierSet

// Edges returns the number of (source, target) pairs in the map.
func (m RelationshipMap) Edges() int {
	n := 0
	for _, targets := range m {
		n += len(targets)
	}
	return n
}

// EntityResolver looks organizations up by name.
type EntityResolver interface {
	ResolveEntity(ctx context.Context, name string) ([]EntityRow, error)
}

// RelationResolver lists the organizations related to an identifier.
type RelationResolver interface {
	ResolveRelations(ctx context.Context, identifier string) ([]Relation, error)
}
