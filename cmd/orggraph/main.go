// Command orggraph crawls organization relationships from a SPARQL endpoint,
// starting at the names in a seed CSV, and writes them out as two tables.
//
// Usage:
//
//	orggraph [crawl] [flags]   run a crawl (default)
//	orggraph watch [flags]     print crawl events published on NATS
//
// Every flag can also be set through an ORGGRAPH_* environment variable or a
// .env file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/WessleyAI/orggraph/pkg/config"
	"github.com/WessleyAI/orggraph/pkg/logging"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := "crawl"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}
	if cmd != "crawl" && cmd != "watch" {
		fmt.Fprintf(stderr, "orggraph: unknown command %q\n", cmd)
		return exitUsage
	}

	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	log, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: stderr,
		Prefix: "orggraph",
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "watch":
		err = watch(ctx, cfg, log, stdout)
	default:
		log.Debug("configuration", "config", fmt.Sprintf("%+v", cfg.Redacted()))
		err = crawl(ctx, cfg, log)
	}
	if err != nil {
		log.Error(cmd+" failed", "error", err)
		return exitFailure
	}
	return exitOK
}
