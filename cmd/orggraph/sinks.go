package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/WessleyAI/orggraph/engine/crawler"
	"github.com/WessleyAI/orggraph/pkg/metrics"
)

// metricsSink maps crawl events onto the Prometheus collectors.
func metricsSink(m *metrics.Registry) crawler.SinkFunc {
	return func(_ context.Context, ev crawler.Event) {
		switch ev.Kind {
		case crawler.EventRecord:
			m.ObserveLookup(crawler.ResolverEntity, metrics.OutcomeOK, ev.Duration)
			m.Records.Inc()
		case crawler.EventNoData:
			m.ObserveLookup(crawler.ResolverEntity, metrics.OutcomeEmpty, ev.Duration)
		case crawler.EventLookupFailed:
			m.ObserveLookup(ev.Resolver, metrics.OutcomeFailed, ev.Duration)
		case crawler.EventExpanded:
			outcome := metrics.OutcomeOK
			if ev.Related == 0 {
				outcome = metrics.OutcomeEmpty
			}
			m.ObserveLookup(crawler.ResolverRelation, outcome, ev.Duration)
		case crawler.EventAlreadyExplored:
			m.ExploredSkips.Inc()
		}
		m.SetProgress(ev.QueueLen, ev.Explored)
	}
}

// eventSubject publishes each event kind on its own subject under prefix,
// e.g. orggraph.events.record.
func eventSubject(prefix string) func(crawler.Event) string {
	prefix = strings.TrimSuffix(prefix, ".")
	return func(ev crawler.Event) string {
		return prefix + "." + string(ev.Kind)
	}
}

// formatEvent renders an event as one human-readable line.
func formatEvent(ev crawler.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-16s depth=%d", ev.At.Format("15:04:05"), ev.Kind, ev.Depth)
	if ev.Name != "" {
		fmt.Fprintf(&b, " name=%q", ev.Name)
	}
	if ev.Identifier != "" {
		fmt.Fprintf(&b, " id=%s", ev.Identifier)
	}
	switch ev.Kind {
	case crawler.EventRecord:
		fmt.Fprintf(&b, " identifiers=%d", ev.Identifiers)
	case crawler.EventExpanded:
		fmt.Fprintf(&b, " related=%d enqueued=%d", ev.Related, ev.Enqueued)
	case crawler.EventLookupFailed:
		fmt.Fprintf(&b, " resolver=%s error=%q", ev.Resolver, ev.Error)
	case crawler.EventCompleted:
		fmt.Fprintf(&b, " took=%s", ev.Duration)
	}
	fmt.Fprintf(&b, " queue=%d explored=%d", ev.QueueLen, ev.Explored)
	return b.String()
}
