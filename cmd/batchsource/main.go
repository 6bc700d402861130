package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/fathomdata/batchsource/internal/batch"
	"github.com/fathomdata/batchsource/internal/catalog"
	"github.com/fathomdata/batchsource/internal/config"
	"github.com/fathomdata/batchsource/internal/connector"
	"github.com/fathomdata/batchsource/internal/match"
	"github.com/fathomdata/batchsource/internal/storage"
	"github.com/fathomdata/batchsource/pkg/logger"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Catalog database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

// parseOrderBy turns "year:desc,month" into sort keys. Direction is
// optional and defaults to ascending.
func parseOrderBy(raw string) ([]batch.SortKey, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var keys []batch.SortKey
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, dir, hasDir := strings.Cut(part, ":")
		key := batch.SortKey{Field: strings.TrimSpace(field)}
		if key.Field == "" {
			return nil, fmt.Errorf("order-by entry %q has no field name", part)
		}
		if hasDir {
			switch strings.ToLower(strings.TrimSpace(dir)) {
			case "asc":
			case "desc":
				key.Descending = true
			default:
				return nil, fmt.Errorf("order-by direction %q must be asc or desc", dir)
			}
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func buildLister(c *cli.Context, cfg *config.Config) (storage.Lister, error) {
	switch c.String("backend") {
	case "s3":
		return storage.NewS3Lister(storage.S3Config{
			Endpoint:    cfg.S3.Endpoint,
			AccessKey:   cfg.S3.AccessKey,
			SecretKey:   cfg.S3.SecretKey,
			Region:      cfg.S3.Region,
			UseSSL:      cfg.S3.UseSSL,
			PageTimeout: time.Duration(cfg.S3.PageTimeoutSeconds) * time.Second,
		})
	case "azure":
		return storage.NewAzureLister(cfg.Azure.ConnectionString,
			time.Duration(cfg.Azure.PageTimeoutSeconds)*time.Second)
	case "drive":
		return storage.NewDriveLister(cfg.Drive.CredentialsJSON,
			time.Duration(cfg.Drive.PageTimeoutSeconds)*time.Second)
	default:
		return nil, fmt.Errorf("unknown backend %q (expected s3, azure or drive)", c.String("backend"))
	}
}

func runDiscover(c *cli.Context) error {
	cfg := config.Load()

	lister, err := buildLister(c, cfg)
	if err != nil {
		return err
	}

	order, err := parseOrderBy(c.String("order-by"))
	if err != nil {
		return err
	}

	spec := batch.Spec{
		Bucket:    c.String("bucket"),
		Prefix:    c.String("prefix"),
		Delimiter: c.String("delimiter"),
		Recursive: c.Bool("recursive"),
		MaxKeys:   c.Int("max-keys"),
	}
	if spec.MaxKeys <= 0 {
		spec.MaxKeys = cfg.Discovery.MaxKeys
	}
	if suffix := c.String("suffix"); suffix != "" {
		spec.Filter = match.SuffixFilter(suffix)
	}
	if pattern := c.String("partition-regex"); pattern != "" {
		extractor, err := batch.RegexExtractor(pattern)
		if err != nil {
			return fmt.Errorf("invalid partition-regex: %w", err)
		}
		spec.Extractor = extractor
	}

	parallelism := c.Int("parallelism")
	if parallelism <= 0 {
		parallelism = cfg.Discovery.Parallelism
	}

	conn := connector.New(lister,
		connector.WithLogger(logger.Log),
		connector.WithParallelism(parallelism),
		connector.WithTimeout(time.Duration(cfg.Discovery.TimeoutSeconds)*time.Second),
	)

	batches, err := conn.Discover(c.Context, spec, order)
	if err != nil {
		return err
	}

	switch c.String("output") {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(batches)
	case "table":
		return printTable(batches)
	default:
		return fmt.Errorf("unknown output format %q (expected json or table)", c.String("output"))
	}
}

func printTable(batches []batch.Batch) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BATCH\tSIZE\tPARTITIONS")
	for _, b := range batches {
		parts := make([]string, 0, len(b.Partitions))
		for k, v := range b.Partitions {
			parts = append(parts, k+"="+v)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", b.ID, b.Source.Size, strings.Join(parts, ","))
	}
	fmt.Fprintf(w, "total\t%d\t\n", len(batches))
	return w.Flush()
}

func runCatalogInit(c *cli.Context) error {
	db, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, catalog.Schema); err != nil {
		return fmt.Errorf("failed to apply catalog schema: %w", err)
	}

	fmt.Println("catalog schema applied")
	return nil
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "batchsource",
		Usage: "Discover objects in cloud storage and partition them into ordered batches",
		Commands: []*cli.Command{
			{
				Name:   "discover",
				Usage:  "List matching objects and print the resulting batches",
				Action: runDiscover,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "backend", Usage: "Storage backend (s3, azure, drive)", Value: "s3"},
					&cli.StringFlag{Name: "bucket", Usage: "Bucket or container name", Required: true},
					&cli.StringFlag{Name: "prefix", Usage: "Key prefix to discover under"},
					&cli.StringFlag{Name: "delimiter", Usage: "Path delimiter", Value: "/"},
					&cli.BoolFlag{Name: "recursive", Usage: "Descend into nested prefixes"},
					&cli.StringFlag{Name: "suffix", Usage: "Only include keys with this suffix (e.g. .csv)"},
					&cli.StringFlag{Name: "partition-regex", Usage: "Regex with named groups used to extract partitions"},
					&cli.StringFlag{Name: "order-by", Usage: "Comma-separated partition fields, each optionally suffixed :asc or :desc"},
					&cli.IntFlag{Name: "max-keys", Usage: "Page size for listing requests"},
					&cli.IntFlag{Name: "parallelism", Usage: "Concurrent prefix listings (recursive mode only)"},
					&cli.StringFlag{Name: "output", Usage: "Output format (json, table)", Value: "table"},
				},
			},
			{
				Name:  "catalog",
				Usage: "Manage the discovery catalog database",
				Subcommands: []*cli.Command{
					{
						Name:   "init",
						Usage:  "Create the discovery run tables",
						Action: runCatalogInit,
						Flags:  []cli.Flag{newDBURLFlag()},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
