package graph

import (
	"context"
	"fmt"
)

// Counts is the size of the stored organization graph.
type Counts struct {
	Organizations int64 `json:"organizations"`
	Relationships int64 `json:"relationships"`
}

// Counts returns how many organizations and RELATED_TO edges are stored.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	var c Counts
	var err error
	if c.Organizations, err = count(ctx, sess, `MATCH (o:Organization) RETURN count(o) AS count`); err != nil {
		return Counts{}, fmt.Errorf("graph: count organizations: %w", err)
	}
	if c.Relationships, err = count(ctx, sess, `MATCH (:Organization)-[r:RELATED_TO]->(:Organization) RETURN count(r) AS count`); err != nil {
		return Counts{}, fmt.Errorf("graph: count relationships: %w", err)
	}
	return c, nil
}

func count(ctx context.Context, r CypherRunner, cypher string) (int64, error) {
	res, err := r.Run(ctx, cypher, nil)
	if err != nil {
		return 0, err
	}
	var n int64
	for res.Next(ctx) {
		v, _ := res.Record().Get("count")
		if c, ok := v.(int64); ok {
			n = c
		}
	}
	return n, res.Err()
}
