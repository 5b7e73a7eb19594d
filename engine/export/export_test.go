package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/WessleyAI/orggraph/engine/domain"
)

func set(ids ...string) domain.IdentifierSet {
	s := make(domain.IdentifierSet)
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func TestEntityTableFirstWriterWins(t *testing.T) {
	records := []domain.OrganizationRecord{
		{QueryName: "A", Identifiers: []string{"dbr:X"}, Abstract: []string{"from A"}},
		{QueryName: "B", Identifiers: []string{"dbr:X", "dbr:Y"}, Abstract: []string{"from B", "about Y"}},
	}
	rows := EntityTable(records)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].URI != "dbr:X" || rows[0].Name != "A" || Value(rows[0].Abstract) != "from A" {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].URI != "dbr:Y" || rows[1].Name != "B" || Value(rows[1].Abstract) != "about Y" {
		t.Errorf("row 1 = %+v", rows[1])
	}
}

func TestEntityTableAttributeFallback(t *testing.T) {
	rec := domain.OrganizationRecord{
		QueryName:    "Intel",
		Identifiers:  []string{"dbr:Intel", "dbr:Intel_Corp", "dbr:Intel_Labs"},
		Abstract:     []string{"a0", "a1"},
		Headquarters: []string{"Santa Clara"},
		Locations:    []string{"Santa Clara", "Hillsboro", "Santa Clara"},
		Countries:    []string{"US"},
	}
	rows := EntityTable([]domain.OrganizationRecord{rec})
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}

	tests := []struct {
		row      int
		abstract string
		hq       string
	}{
		{0, "a0", "Santa Clara"},
		{1, "a1", "Santa Clara"},
		{2, "a0", "Santa Clara"},
	}
	for _, tt := range tests {
		r := rows[tt.row]
		if Value(r.Abstract) != tt.abstract || Value(r.Headquarters) != tt.hq {
			t.Errorf("row %d: abstract=%q hq=%q", tt.row, Value(r.Abstract), Value(r.Headquarters))
		}
		if r.FoundingDate != nil || r.Employees != nil {
			t.Errorf("row %d: expected null founding date and employees", tt.row)
		}
		if Value(r.Locations) != "Santa Clara|Hillsboro|Santa Clara" {
			t.Errorf("row %d: locations = %q", tt.row, Value(r.Locations))
		}
		if Value(r.Countries) != "US" {
			t.Errorf("row %d: countries = %q", tt.row, Value(r.Countries))
		}
	}
}

func TestEntityTableKeepsAttributesWithTheirIdentifier(t *testing.T) {
	rec := domain.NewOrganizationRecord("Intel", []domain.EntityRow{
		{Identifier: "dbr:Intel", Abstract: "about Intel", Headquarters: "Santa Clara", Location: "Santa Clara"},
		{Identifier: "dbr:Intel", Abstract: "about Intel", Headquarters: "Santa Clara", Location: "Hillsboro"},
		{Identifier: "dbr:Intel_Capital", Abstract: "about Intel Capital", Headquarters: "San Jose"},
	})
	rows := EntityTable([]domain.OrganizationRecord{rec})
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	tests := []struct {
		uri, abstract, hq string
	}{
		{"dbr:Intel", "about Intel", "Santa Clara"},
		{"dbr:Intel_Capital", "about Intel Capital", "San Jose"},
	}
	for i, tt := range tests {
		r := rows[i]
		if r.URI != tt.uri || Value(r.Abstract) != tt.abstract || Value(r.Headquarters) != tt.hq {
			t.Errorf("row %d: uri=%s abstract=%q hq=%q, want %s %q %q",
				i, r.URI, Value(r.Abstract), Value(r.Headquarters), tt.uri, tt.abstract, tt.hq)
		}
		if Value(r.Locations) != "Santa Clara|Hillsboro" {
			t.Errorf("row %d: locations = %q", i, Value(r.Locations))
		}
	}
}

func TestEntityTableEmptySlotFallsBackToFirstValue(t *testing.T) {
	rec := domain.NewOrganizationRecord("Acme", []domain.EntityRow{
		{Identifier: "dbr:Acme", FoundingDate: "1968"},
		{Identifier: "dbr:Acme_Labs", FoundingDate: "1990"},
		{Identifier: "dbr:Acme_Fab"},
	})
	rows := EntityTable([]domain.OrganizationRecord{rec})
	want := []string{"1968", "1990", "1968"}
	for i, w := range want {
		if got := Value(rows[i].FoundingDate); got != w {
			t.Errorf("row %d founding date = %q, want %q", i, got, w)
		}
		if rows[i].Abstract != nil {
			t.Errorf("row %d abstract should be null", i)
		}
	}
}

func TestEntityTableNulls(t *testing.T) {
	rows := EntityTable([]domain.OrganizationRecord{{QueryName: "Bare", Identifiers: []string{"dbr:Bare"}}})
	r := rows[0]
	for name, p := range map[string]*string{
		"abstract": r.Abstract, "headquarters": r.Headquarters, "founding_date": r.FoundingDate,
		"employees": r.Employees, "locations": r.Locations, "countries": r.Countries,
	} {
		if p != nil {
			t.Errorf("%s = %q, want null", name, *p)
		}
	}
}

func TestEntityTableSkipsRecordsWithoutIdentifiers(t *testing.T) {
	rows := EntityTable([]domain.OrganizationRecord{{QueryName: "Ghost", Abstract: []string{"x"}}})
	if len(rows) != 0 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestRelationshipTableSortedAndUnique(t *testing.T) {
	rels := domain.RelationshipMap{
		"dbr:Y": set("dbr:X"),
		"dbr:X": set("dbr:Z", "dbr:Y"),
		"dbr:E": set(),
	}
	got := RelationshipTable(rels)
	want := []RelationshipRow{
		{"dbr:X", "dbr:Y"},
		{"dbr:X", "dbr:Z"},
		{"dbr:Y", "dbr:X"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExport(t *testing.T) {
	tables := Export(
		[]domain.OrganizationRecord{{QueryName: "Intel", Identifiers: []string{"dbr:Intel"}}},
		domain.RelationshipMap{},
	)
	if len(tables.Entities) != 1 || len(tables.Relationships) != 0 {
		t.Errorf("tables = %+v", tables)
	}
}

func TestWriteEntitiesCSV(t *testing.T) {
	abstract := `Says "hi", twice`
	rows := []EntityRow{{Name: "Intel", URI: "dbr:Intel", Abstract: &abstract}}

	var buf bytes.Buffer
	if err := WriteEntitiesCSV(&buf, rows); err != nil {
		t.Fatal(err)
	}
	got, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		entityHeader,
		{"Intel", "dbr:Intel", abstract, "", "", "", "", ""},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWriteTables(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	tables := Tables{
		Entities:      []EntityRow{{Name: "A", URI: "dbr:A"}},
		Relationships: []RelationshipRow{{"dbr:A", "dbr:B"}},
	}

	// Stale content must be replaced.
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, RelationshipsFile), []byte("stale\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	paths, err := WriteTables(dir, tables)
	if err != nil {
		t.Fatalf("WriteTables: %v", err)
	}
	if len(paths) != 2 || filepath.Base(paths[0]) != EntitiesFile || filepath.Base(paths[1]) != RelationshipsFile {
		t.Fatalf("paths = %v", paths)
	}

	data, err := os.ReadFile(paths[1])
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "source_uri,target_uri\ndbr:A,dbr:B\n" {
		t.Errorf("relationships file = %q", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("dir has %d entries, want 2 (no temp files left)", len(entries))
	}
}

func TestWriteTablesEmpty(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteTables(dir, Tables{})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "name,uri,abstract,headquarters,founding_date,employees,locations,countries\n" {
		t.Errorf("entities file = %q", data)
	}
}
