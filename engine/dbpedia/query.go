package dbpedia

import (
	"fmt"
	"strings"
)

const prefixes = `PREFIX dbo: <http://dbpedia.org/ontology/>
PREFIX dbp: <http://dbpedia.org/property/>
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
PREFIX rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#>
`

const entityQuery = prefixes + `
SELECT DISTINCT ?organization ?label ?abstract ?headquarters ?foundingDate
                ?industry ?numberOfEmployees ?location ?country
WHERE {
  ?organization rdfs:label ?label .
  FILTER(CONTAINS(LCASE(?label), LCASE(%s)) && LANG(?label) = "en") .

  OPTIONAL { ?organization dbo:abstract ?abstract . FILTER(LANG(?abstract) = "en") }
  OPTIONAL { ?organization dbo:headquarters ?headquarters }
  OPTIONAL { ?organization dbo:foundingDate ?foundingDate }
  OPTIONAL { ?organization dbo:industry ?industry }
  OPTIONAL { ?organization dbo:numberOfEmployees ?numberOfEmployees }
  OPTIONAL { ?organization dbo:location ?location }
  OPTIONAL { ?organization dbo:country ?country }
}
LIMIT %d
`

// relationPredicates are the ownership, product, people, partnership and
// merger/acquisition predicates followed in both directions.
const relationPredicates = `dbo:subsidiary, dbo:owningCompany, dbo:parentCompany,
      dbp:parent, dbp:owner, dbp:subsidiary, dbp:subsidiaries,
      dbo:product, dbo:keyPerson, dbo:partner, dbp:partners,
      dbo:merger, dbo:acquisition, dbp:acquisitions`

const relationQuery = prefixes + `
SELECT DISTINCT ?relation ?relationType ?relatedOrg ?relatedOrgLabel
WHERE {
  {
    <%[1]s> ?relationType ?relatedOrg .
    FILTER(?relationType IN (
      %[2]s
    ))
    BIND("outgoing" AS ?relation)
  }
  UNION
  {
    ?relatedOrg ?relationType <%[1]s> .
    FILTER(?relationType IN (
      %[2]s
    ))
    BIND("incoming" AS ?relation)
  }
  ?relatedOrg rdfs:label ?relatedOrgLabel .
  FILTER(LANG(?relatedOrgLabel) = "en")
  ?relatedOrg a ?type .
  FILTER(?type IN (
    dbo:Company, dbo:Organisation, dbo:Organization,
    <http://schema.org/Organization>, <http://schema.org/Corporation>
  ))
}
LIMIT %[3]d
`

// EntityQuery builds the label lookup for name. The name is embedded as an
// escaped string literal.
func EntityQuery(name string, limit int) string {
	return fmt.Sprintf(entityQuery, Literal(name), limit)
}

// RelationQuery builds the relation lookup for an identifier. The caller
// validates id with domain.ValidateIdentifier first.
func RelationQuery(id string, limit int) string {
	return fmt.Sprintf(relationQuery, id, relationPredicates, limit)
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
	"\b", `\b`,
	"\f", `\f`,
)

// Literal quotes s as a SPARQL string literal.
func Literal(s string) string {
	return `"` + literalEscaper.Replace(s) + `"`
}
