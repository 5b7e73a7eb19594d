package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/WessleyAI/orggraph/engine/crawler"
	"github.com/WessleyAI/orggraph/pkg/config"
	"github.com/WessleyAI/orggraph/pkg/natsutil"
)

var errNoNATS = errors.New("watch: --nats-url is required")

// watch prints crawl events from NATS to out until ctx is done.
func watch(ctx context.Context, cfg config.Config, log *slog.Logger, out io.Writer) error {
	if cfg.NATSURL == "" {
		return errNoNATS
	}
	nc, err := natsutil.Connect(cfg.NATSURL, "orggraph-watch")
	if err != nil {
		return err
	}
	defer nc.Close()

	subject := strings.TrimSuffix(cfg.NATSSubject, ".") + ".>"
	var mu sync.Mutex
	sub, err := natsutil.Subscribe(nc, subject, func(_ context.Context, ev crawler.Event) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(out, formatEvent(ev))
	})
	if err != nil {
		return fmt.Errorf("watch: subscribe %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	log.Info("watching crawl events", "subject", subject)
	<-ctx.Done()
	return nil
}
