package dbpedia

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/WessleyAI/orggraph/engine/domain"
)

type fakeSelector struct {
	queries []string
	res     *Results
	err     error
}

func (f *fakeSelector) Select(_ context.Context, q string) (*Results, error) {
	f.queries = append(f.queries, q)
	return f.res, f.err
}

func results(bindings ...Binding) *Results {
	r := &Results{}
	r.Results.Bindings = bindings
	return r
}

func uri(v string) Term { return Term{Type: "uri", Value: v} }
func lit(v string) Term { return Term{Type: "literal", Value: v} }

func TestEntityQuery(t *testing.T) {
	q := EntityQuery(`Dr. "Evil" Inc\`, 5)
	if !strings.Contains(q, `LCASE("Dr. \"Evil\" Inc\\")`) {
		t.Errorf("name not escaped:\n%s", q)
	}
	if !strings.Contains(q, "LIMIT 5") {
		t.Errorf("missing limit:\n%s", q)
	}
	for _, v := range []string{"?organization", "dbo:abstract", "dbo:numberOfEmployees", "dbo:country"} {
		if !strings.Contains(q, v) {
			t.Errorf("query missing %s", v)
		}
	}
}

func TestRelationQuery(t *testing.T) {
	q := RelationQuery("http://dbpedia.org/resource/Intel", 50)
	if strings.Count(q, "<http://dbpedia.org/resource/Intel>") != 2 {
		t.Errorf("identifier should appear on both sides of the union:\n%s", q)
	}
	for _, v := range []string{`BIND("outgoing" AS ?relation)`, `BIND("incoming" AS ?relation)`, "dbp:acquisitions", "schema.org/Corporation", "LIMIT 50"} {
		if !strings.Contains(q, v) {
			t.Errorf("query missing %s", v)
		}
	}
}

func TestLiteral(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Intel", `"Intel"`},
		{`a"b`, `"a\"b"`},
		{"line\nbreak", `"line\nbreak"`},
		{`back\slash`, `"back\\slash"`},
	}
	for _, tt := range tests {
		if got := Literal(tt.in); got != tt.want {
			t.Errorf("Literal(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestResolveEntity(t *testing.T) {
	sel := &fakeSelector{res: results(
		Binding{
			"organization":      uri("http://dbpedia.org/resource/Intel"),
			"label":             lit("Intel"),
			"abstract":          lit("Intel Corporation is..."),
			"numberOfEmployees": lit("124800"),
			"country":           uri("http://dbpedia.org/resource/United_States"),
		},
		Binding{"organization": uri("http://dbpedia.org/resource/Intel_Museum")},
	)}
	rows, err := NewEntityResolver(sel, 0).ResolveEntity(context.Background(), "Intel")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	r := rows[0]
	if r.Identifier != "http://dbpedia.org/resource/Intel" || r.EmployeeCount != "124800" || r.Country == "" || r.Headquarters != "" {
		t.Errorf("row 0 = %+v", r)
	}
	if !strings.Contains(sel.queries[0], "LIMIT 5") {
		t.Error("default entity limit not applied")
	}
}

func TestResolveEntityError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewEntityResolver(&fakeSelector{err: boom}, 5).ResolveEntity(context.Background(), "Intel")
	if !errors.Is(err, domain.ErrResolution) || !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	var re *domain.ResolutionError
	if !errors.As(err, &re) || re.Resolver != ResolverEntity || re.Subject != "Intel" {
		t.Errorf("err = %#v", err)
	}
}

func TestResolveEntityRejectsBlankName(t *testing.T) {
	sel := &fakeSelector{}
	_, err := NewEntityResolver(sel, 5).ResolveEntity(context.Background(), " ")
	if !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("err = %v", err)
	}
	if len(sel.queries) != 0 {
		t.Error("blank name should not reach the endpoint")
	}
}

func TestResolveRelations(t *testing.T) {
	sel := &fakeSelector{res: results(
		Binding{
			"relation":        lit("outgoing"),
			"relationType":    uri("http://dbpedia.org/ontology/subsidiary"),
			"relatedOrg":      uri("http://dbpedia.org/resource/Altera"),
			"relatedOrgLabel": lit("Altera"),
		},
		Binding{
			"relatedOrg":      uri("http://dbpedia.org/resource/Mobileye"),
			"relatedOrgLabel": lit("Mobileye"),
		},
		Binding{"relatedOrg": uri("http://dbpedia.org/resource/NoLabel")},
	)}
	rels, err := NewRelationResolver(sel, 0).ResolveRelations(context.Background(), "http://dbpedia.org/resource/Intel")
	if err != nil {
		t.Fatal(err)
	}
	if len(rels) != 2 {
		t.Fatalf("relations = %+v", rels)
	}
	if rels[0].Direction != domain.DirectionOutgoing || rels[0].Label != "Altera" {
		t.Errorf("rel 0 = %+v", rels[0])
	}
	if rels[1].Direction != domain.DirectionUnknown || rels[1].Kind != "unknown" {
		t.Errorf("rel 1 = %+v", rels[1])
	}
	if !strings.Contains(sel.queries[0], "LIMIT 50") {
		t.Error("default relation limit not applied")
	}
}

func TestResolveRelationsRejectsBadIdentifier(t *testing.T) {
	sel := &fakeSelector{}
	for _, id := range []string{"", "no-scheme", "urn:x", "http://x> } DROP ALL {", "http://a b"} {
		_, err := NewRelationResolver(sel, 50).ResolveRelations(context.Background(), id)
		if !errors.Is(err, domain.ErrInvalidIdentifier) {
			t.Errorf("%q: err = %v, want ErrInvalidIdentifier", id, err)
		}
	}
	if len(sel.queries) != 0 {
		t.Errorf("queries sent: %d", len(sel.queries))
	}
}

func TestResolveEntityOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Query().Get("query"), `LCASE("TSMC")`) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		io.WriteString(w, `{"head":{"vars":["organization"]},"results":{"bindings":[
			{"organization":{"type":"uri","value":"http://dbpedia.org/resource/TSMC"}}]}}`)
	}))
	defer srv.Close()

	r := NewEntityResolver(testClient(srv, 1), 5)
	rows, err := r.ResolveEntity(context.Background(), "TSMC")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Identifier != "http://dbpedia.org/resource/TSMC" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestNilResults(t *testing.T) {
	if EntityRows(nil) != nil || Relations(nil) != nil {
		t.Error("nil results should map to nil")
	}
}
