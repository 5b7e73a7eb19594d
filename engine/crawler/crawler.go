// Package crawler explores the organization graph breadth-first from a list
// of seed names, up to a fixed depth, expanding every identifier at most once.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/orggraph/engine/domain"
	"github.com/WessleyAI/orggraph/pkg/resilience"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("engine/crawler")

// Config controls crawler behavior.
type Config struct {
	// Delay is the fixed pause after every dequeued name that hit a resolver.
	Delay  time.Duration
	Logger *slog.Logger
	Sink   EventSink
}

// Stats counts what happened during one crawl.
type Stats struct {
	EntityLookups   int `json:"entity_lookups"`
	RelationLookups int `json:"relation_lookups"`
	Failures        int `json:"failures"`
	EmptyResults    int `json:"empty_results"`
	Records         int `json:"records"`
	ExploredSkips   int `json:"explored_skips"`
	DepthDiscards   int `json:"depth_discards"`
	Enqueued        int `json:"enqueued"`
}

// Result is the accumulated output of one crawl.
type Result struct {
	RunID         string
	Entities      []domain.OrganizationRecord
	Relationships domain.RelationshipMap
	Stats         Stats
}

type pauser interface {
	Pause(ctx context.Context) error
}

// Crawler drives the exploration. A Crawler holds no per-crawl state and can
// run several crawls one after another.
type Crawler struct {
	entities  domain.EntityResolver
	relations domain.RelationResolver
	log       *slog.Logger
	sink      EventSink
	pacer     pauser
	now       func() time.Time
	newRunID  func() string
}

// New creates a Crawler over the given resolvers.
func New(entities domain.EntityResolver, relations domain.RelationResolver, cfg Config) *Crawler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Crawler{
		entities:  entities,
		relations: relations,
		log:       log,
		sink:      cfg.Sink,
		pacer:     resilience.NewPacer(cfg.Delay),
		now:       time.Now,
		newRunID:  uuid.NewString,
	}
}

// Explore crawls from seeds down to maxDepth hops. Resolver failures are
// logged and treated as empty results. The only error returned is a bad
// depth or the context's error; in the latter case no partial result is
// returned.
func (c *Crawler) Explore(ctx context.Context, seeds []string, maxDepth int) (*Result, error) {
	if maxDepth < 0 {
		return nil, domain.NewValidationError("max_depth", fmt.Sprint(maxDepth), domain.ErrInvalidDepth)
	}

	st := newCrawlState(c.newRunID(), seeds, maxDepth)
	ctx, span := tracer.Start(ctx, "crawler.explore", trace.WithAttributes(
		attribute.String("crawl.run_id", st.runID),
		attribute.Int("crawl.seeds", len(seeds)),
		attribute.Int("crawl.max_depth", maxDepth),
	))
	defer span.End()

	c.log.Info("crawl started", "run_id", st.runID, "seeds", len(seeds), "max_depth", maxDepth)
	start := c.now()

	for {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "cancelled")
			return nil, err
		}
		item, ok := st.queue.pop()
		if !ok {
			break
		}
		if item.depth > maxDepth {
			st.stats.DepthDiscards++
			c.emit(ctx, st, Event{Kind: EventDepthExceeded, Name: item.name, Depth: item.depth})
			continue
		}
		if !c.visit(ctx, st, item) {
			continue
		}
		if err := c.pacer.Pause(ctx); err != nil {
			span.SetStatus(codes.Error, "cancelled")
			return nil, err
		}
	}

	res := st.result()
	c.emit(ctx, st, Event{Kind: EventCompleted, Duration: c.now().Sub(start)})
	c.log.Info("crawl complete",
		"run_id", st.runID,
		"records", res.Stats.Records,
		"explored", len(st.explored),
		"edges", res.Relationships.Edges(),
		"entity_lookups", res.Stats.EntityLookups,
		"relation_lookups", res.Stats.RelationLookups,
		"failures", res.Stats.Failures,
		"duration", c.now().Sub(start),
	)
	span.SetAttributes(
		attribute.Int("crawl.records", res.Stats.Records),
		attribute.Int("crawl.explored", len(st.explored)),
	)
	return res, nil
}

// visit processes one dequeued name and reports whether a resolver was called.
func (c *Crawler) visit(ctx context.Context, st *crawlState, item frontierItem) bool {
	ctx, span := tracer.Start(ctx, "crawler.visit", trace.WithAttributes(
		attribute.String("org.name", item.name),
		attribute.Int("crawl.depth", item.depth),
	))
	defer span.End()

	if err := domain.ValidateName(item.name); err != nil {
		st.stats.Failures++
		c.log.Warn("skipping organization", "name", item.name, "error", err)
		c.emit(ctx, st, Event{Kind: EventLookupFailed, Resolver: ResolverEntity, Name: item.name, Depth: item.depth, Error: err.Error()})
		return false
	}

	c.log.Info("processing organization", "name", item.name, "depth", item.depth, "queue", st.queue.len())

	rec, ok := c.resolveEntity(ctx, st, item)
	if !ok {
		return true
	}
	st.entities = append(st.entities, rec)
	st.stats.Records++

	for _, id := range rec.Identifiers {
		if st.explored.Has(id) {
			st.stats.ExploredSkips++
			c.log.Debug("already explored", "identifier", id)
			c.emit(ctx, st, Event{Kind: EventAlreadyExplored, Name: item.name, Depth: item.depth, Identifier: id})
			continue
		}
		// Mark before querying so the same identifier surfacing again in
		// this batch is not expanded twice.
		st.explored.Add(id)
		if item.depth < st.maxDepth {
			c.expand(ctx, st, id, item.depth)
		}
	}
	return true
}

func (c *Crawler) resolveEntity(ctx context.Context, st *crawlState, item frontierItem) (domain.OrganizationRecord, bool) {
	st.stats.EntityLookups++
	start := c.now()
	rows, err := c.entities.ResolveEntity(ctx, item.name)
	took := c.now().Sub(start)

	base := Event{Resolver: ResolverEntity, Name: item.name, Depth: item.depth, Duration: took}
	if err != nil {
		st.stats.Failures++
		c.log.Warn("entity lookup failed", "name", item.name, "depth", item.depth, "error", err)
		trace.SpanFromContext(ctx).RecordError(err)
		base.Kind = EventLookupFailed
		base.Error = err.Error()
		c.emit(ctx, st, base)
		return domain.OrganizationRecord{}, false
	}

	rec := domain.NewOrganizationRecord(item.name, rows)
	if !rec.HasIdentifiers() {
		st.stats.EmptyResults++
		c.log.Info("no data found, skipping", "name", item.name)
		base.Kind = EventNoData
		c.emit(ctx, st, base)
		return domain.OrganizationRecord{}, false
	}

	c.log.Info("organization resolved", "name", item.name, "identifiers", len(rec.Identifiers))
	base.Kind = EventRecord
	base.Identifiers = len(rec.Identifiers)
	c.emit(ctx, st, base)
	return rec, true
}

// expand queries the relations of id, which must already be marked explored,
// records them and enqueues unexplored neighbours one level deeper.
func (c *Crawler) expand(ctx context.Context, st *crawlState, id string, depth int) {
	st.stats.RelationLookups++
	targets := make(domain.IdentifierSet)
	st.relationships[id] = targets

	start := c.now()
	rels, err := c.relations.ResolveRelations(ctx, id)
	took := c.now().Sub(start)
	if err != nil {
		st.stats.Failures++
		c.log.Warn("relation lookup failed", "identifier", id, "error", err)
		trace.SpanFromContext(ctx).RecordError(err)
		c.emit(ctx, st, Event{Kind: EventLookupFailed, Resolver: ResolverRelation, Identifier: id, Depth: depth, Duration: took, Error: err.Error()})
		return
	}

	enqueued := 0
	for _, rel := range rels {
		if !rel.Usable() {
			continue
		}
		targets.Add(rel.Identifier)
		c.log.Debug("related organization",
			"identifier", id,
			"related", rel.Identifier,
			"label", rel.Label,
			"direction", rel.Direction,
			"kind", rel.Kind,
		)
		// Enqueued by label: another alias of an explored organization can
		// still come back through here, bounded by max depth.
		if !st.explored.Has(rel.Identifier) {
			st.queue.push(rel.Label, depth+1)
			enqueued++
		}
	}
	st.stats.Enqueued += enqueued

	c.log.Info("relations expanded", "identifier", id, "related", len(targets), "enqueued", enqueued)
	c.emit(ctx, st, Event{
		Kind:       EventExpanded,
		Resolver:   ResolverRelation,
		Identifier: id,
		Depth:      depth,
		Related:    len(targets),
		Enqueued:   enqueued,
		Duration:   took,
	})
}

func (c *Crawler) emit(ctx context.Context, st *crawlState, ev Event) {
	if c.sink == nil {
		return
	}
	ev.RunID = st.runID
	ev.QueueLen = st.queue.len()
	ev.Explored = len(st.explored)
	ev.At = c.now()
	c.sink.HandleEvent(ctx, ev)
}
