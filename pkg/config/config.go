// Package config loads orggraph settings from defaults, a .env file,
// ORGGRAPH_* environment variables and command-line flags, in that order
// of increasing precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "ORGGRAPH_"

// Config is the full runtime configuration.
type Config struct {
	SeedFile  string `validate:"required"`
	SeedLimit int    `validate:"gte=0"`
	OutputDir string `validate:"required"`

	MaxDepth int           `validate:"gte=0"`
	Delay    time.Duration `validate:"gte=0"`

	Endpoint          string        `validate:"required,url"`
	UserAgent         string        `validate:"required"`
	Timeout           time.Duration `validate:"gt=0"`
	EntityLimit       int           `validate:"gt=0"`
	RelationLimit     int           `validate:"gt=0"`
	RetryAttempts     int           `validate:"gte=1,lte=10"`
	RetryInitialWait  time.Duration `validate:"gte=0"`
	RetryMaxWait      time.Duration `validate:"gtefield=RetryInitialWait"`
	RequestsPerSecond float64       `validate:"gte=0"`

	Neo4jURL      string `validate:"omitempty,url"`
	Neo4jUser     string `validate:"required_with=Neo4jURL"`
	Neo4jPassword string
	Neo4jDatabase string
	Neo4jBatch    int `validate:"gt=0"`

	NATSURL     string `validate:"omitempty,url"`
	NATSSubject string `validate:"required_with=NATSURL"`

	S3Bucket   string
	S3Prefix   string
	S3Region   string `validate:"required_with=S3Bucket"`
	S3Endpoint string `validate:"omitempty,url"`

	// Static S3 credentials; empty uses the default AWS credential chain.
	S3AccessKey string
	S3SecretKey string `validate:"required_with=S3AccessKey"`

	MetricsAddr string
	LogLevel    string `validate:"oneof=debug info warn error"`
	LogFormat   string `validate:"oneof=text json logfmt"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		SeedFile:          "data/semiconductor_seed.csv",
		OutputDir:         "data",
		MaxDepth:          3,
		Delay:             time.Second,
		Endpoint:          "https://dbpedia.org/sparql",
		UserAgent:         "orggraph/1.0 (organization relationship crawler)",
		Timeout:           30 * time.Second,
		EntityLimit:       5,
		RelationLimit:     50,
		RetryAttempts:     3,
		RetryInitialWait:  2 * time.Second,
		RetryMaxWait:      30 * time.Second,
		RequestsPerSecond: 2,
		Neo4jUser:         "neo4j",
		Neo4jBatch:        500,
		NATSSubject:       "orggraph.events",
		S3Region:          "us-east-1",
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// binding ties one setting to its environment variable and flag.
type binding struct {
	name  string // flag name; env var is EnvPrefix + upper snake case
	usage string
	ptr   any
}

func (c *Config) bindings() []binding {
	return []binding{
		{"seed-file", "CSV file with a Name column", &c.SeedFile},
		{"seed-limit", "only crawl the first N seeds (0 = all)", &c.SeedLimit},
		{"output-dir", "directory for the CSV tables", &c.OutputDir},
		{"max-depth", "maximum hops from a seed", &c.MaxDepth},
		{"delay", "pause after every processed name", &c.Delay},
		{"endpoint", "SPARQL endpoint URL", &c.Endpoint},
		{"user-agent", "User-Agent sent to the endpoint", &c.UserAgent},
		{"timeout", "per-request timeout", &c.Timeout},
		{"entity-limit", "rows per entity lookup", &c.EntityLimit},
		{"relation-limit", "rows per relation lookup", &c.RelationLimit},
		{"retry-attempts", "attempts per SPARQL query", &c.RetryAttempts},
		{"retry-initial-wait", "wait before the first retry", &c.RetryInitialWait},
		{"retry-max-wait", "cap on the wait between retries", &c.RetryMaxWait},
		{"rps", "max SPARQL requests per second (0 = unlimited)", &c.RequestsPerSecond},
		{"neo4j-url", "Neo4j bolt URL (empty = skip graph sink)", &c.Neo4jURL},
		{"neo4j-user", "Neo4j username", &c.Neo4jUser},
		{"neo4j-password", "Neo4j password", &c.Neo4jPassword},
		{"neo4j-database", "Neo4j database (empty = server default)", &c.Neo4jDatabase},
		{"neo4j-batch", "rows per Neo4j UNWIND statement", &c.Neo4jBatch},
		{"nats-url", "NATS URL (empty = do not publish events)", &c.NATSURL},
		{"nats-subject", "subject prefix for crawl events", &c.NATSSubject},
		{"s3-bucket", "S3 bucket for the CSV tables (empty = skip upload)", &c.S3Bucket},
		{"s3-prefix", "key prefix inside the bucket", &c.S3Prefix},
		{"s3-region", "S3 region", &c.S3Region},
		{"s3-endpoint", "custom S3 endpoint, e.g. MinIO", &c.S3Endpoint},
		{"s3-access-key", "static S3 access key", &c.S3AccessKey},
		{"s3-secret-key", "static S3 secret key", &c.S3SecretKey},
		{"metrics-addr", "serve Prometheus metrics on this address (empty = off)", &c.MetricsAddr},
		{"log-level", "debug, info, warn or error", &c.LogLevel},
		{"log-format", "text, json or logfmt", &c.LogFormat},
	}
}

// EnvName returns the environment variable for a flag name.
func EnvName(flagName string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// Load reads the .env file named by ORGGRAPH_ENV_FILE (default ".env") if it
// exists, then the process environment, then args.
func Load(args []string) (Config, error) {
	envFile := os.Getenv(EnvPrefix + "ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: %s: %w", envFile, err)
	}
	return Parse(args, os.LookupEnv, os.Stderr)
}

// Parse builds a Config from lookup and args without touching the process
// environment. Usage and flag errors go to out.
func Parse(args []string, lookup func(string) (string, bool), out io.Writer) (Config, error) {
	cfg := Default()
	binds := cfg.bindings()

	for _, b := range binds {
		key := EnvName(b.name)
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		if err := set(b.ptr, v); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", key, err)
		}
	}

	flags := flag.NewFlagSet("orggraph", flag.ContinueOnError)
	flags.SetOutput(out)
	for _, b := range binds {
		switch p := b.ptr.(type) {
		case *string:
			flags.StringVar(p, b.name, *p, b.usage)
		case *int:
			flags.IntVar(p, b.name, *p, b.usage)
		case *float64:
			flags.Float64Var(p, b.name, *p, b.usage)
		case *time.Duration:
			flags.DurationVar(p, b.name, *p, b.usage)
		}
	}
	if err := flags.Parse(args); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if flags.NArg() > 0 {
		return Config{}, fmt.Errorf("config: unexpected arguments %q", flags.Args())
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
}

func set(ptr any, v string) error {
	switch p := ptr.(type) {
	case *string:
		*p = v
	case *int:
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*p = n
	case *float64:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*p = f
	case *time.Duration:
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*p = d
	default:
		return fmt.Errorf("unsupported type %T", ptr)
	}
	return nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.Neo4jPassword != "" {
		c.Neo4jPassword = "****"
	}
	if c.S3SecretKey != "" {
		c.S3SecretKey = "****"
	}
	return c
}
