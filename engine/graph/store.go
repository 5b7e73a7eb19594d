// Package graph persists the exported organization tables into Neo4j.
package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/orggraph/engine/export"
	"github.com/WessleyAI/orggraph/pkg/fn"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// DefaultBatchSize is how many rows go into one UNWIND statement.
const DefaultBatchSize = 500

const (
	constraintCypher = `CREATE CONSTRAINT organization_uri IF NOT EXISTS
		FOR (o:Organization) REQUIRE o.uri IS UNIQUE`

	organizationsCypher = `UNWIND $rows AS row
		MERGE (o:Organization {uri: row.uri})
		SET o += row.props, o.run_id = $run_id`

	relationshipsCypher = `UNWIND $rows AS row
		MERGE (a:Organization {uri: row.source})
		MERGE (b:Organization {uri: row.target})
		MERGE (a)-[r:RELATED_TO]->(b)
		SET r.run_id = $run_id`
)

// Store writes organization tables to Neo4j.
type Store struct {
	opener SessionOpener
	batch  int
	log    *slog.Logger
}

// New creates a Store on top of a driver.
func New(driver neo4j.DriverWithContext, database string) *Store {
	return NewWithOpener(&driverOpener{driver: driver, database: database})
}

// NewWithOpener creates a Store using a custom session opener.
func NewWithOpener(opener SessionOpener) *Store {
	return &Store{opener: opener, batch: DefaultBatchSize, log: slog.Default()}
}

// WithLogger sets the logger.
func (s *Store) WithLogger(log *slog.Logger) *Store {
	if log != nil {
		s.log = log
	}
	return s
}

// WithBatchSize sets the number of rows per statement.
func (s *Store) WithBatchSize(n int) *Store {
	if n > 0 {
		s.batch = n
	}
	return s
}

// EnsureSchema creates the uniqueness constraint on Organization.uri.
func (s *Store) EnsureSchema(ctx context.Context) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, constraintCypher, nil)
	if err != nil {
		return fmt.Errorf("graph: constraint: %w", err)
	}
	if err := drain(ctx, res); err != nil {
		return fmt.Errorf("graph: constraint: %w", err)
	}
	return nil
}

// SaveTables merges every entity and relationship row in one write
// transaction. Merging makes a rerun over the same tables a no-op apart
// from the run ID.
func (s *Store) SaveTables(ctx context.Context, runID string, t export.Tables) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}

	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	err := sess.ExecuteWrite(ctx, func(tx CypherRunner) error {
		for i, chunk := range fn.Chunk(fn.Map(t.Entities, organizationParams), s.batch) {
			if err := runBatch(ctx, tx, organizationsCypher, runID, chunk); err != nil {
				return fmt.Errorf("organizations batch %d: %w", i, err)
			}
		}
		for i, chunk := range fn.Chunk(fn.Map(t.Relationships, relationshipParams), s.batch) {
			if err := runBatch(ctx, tx, relationshipsCypher, runID, chunk); err != nil {
				return fmt.Errorf("relationships batch %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("graph: save: %w", err)
	}
	s.log.Info("graph saved", "run_id", runID, "organizations", len(t.Entities), "relationships", len(t.Relationships))
	return nil
}

func runBatch(ctx context.Context, tx CypherRunner, cypher, runID string, rows []map[string]any) error {
	res, err := tx.Run(ctx, cypher, map[string]any{"rows": rows, "run_id": runID})
	if err != nil {
		return err
	}
	return drain(ctx, res)
}

func drain(ctx context.Context, res CypherResult) error {
	for res.Next(ctx) {
	}
	return res.Err()
}

// organizationParams maps an entity row to UNWIND parameters. Null columns
// are left out so an earlier value on the node is not erased.
func organizationParams(r export.EntityRow) map[string]any {
	props := map[string]any{"name": r.Name}
	for k, v := range map[string]*string{
		"abstract":      r.Abstract,
		"headquarters":  r.Headquarters,
		"founding_date": r.FoundingDate,
		"employees":     r.Employees,
		"locations":     r.Locations,
		"countries":     r.Countries,
	} {
		if v != nil {
			props[k] = *v
		}
	}
	return map[string]any{"uri": r.URI, "props": props}
}

func relationshipParams(r export.RelationshipRow) map[string]any {
	return map[string]any{"source": r.SourceURI, "target": r.TargetURI}
}
