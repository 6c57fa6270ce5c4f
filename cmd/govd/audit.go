package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"govchain/config"
	"govchain/storage/audit"
)

func runExportAuditCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("export-audit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "Path to the configuration file; ignored when -dsn is set")
	driver := fs.String("driver", audit.DriverSQLite, "Audit database driver (sqlite or postgres)")
	dsn := fs.String("dsn", "", "Audit database DSN")
	out := fs.String("out", "", "Destination parquet file")
	proposal := fs.Uint64("proposal", 0, "Only export records for this proposal")
	eventType := fs.String("type", "", "Only export records of this event type")
	limit := fs.Int("limit", 0, "Maximum number of records to export")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*out) == "" {
		fmt.Fprintln(stderr, "Usage: govd export-audit -out <file.parquet> [-proposal id] [-type event] [-dsn dsn -driver sqlite|postgres]")
		return 1
	}

	drv, source := *driver, strings.TrimSpace(*dsn)
	if source == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
			return 1
		}
		drv, source = cfg.Audit.Driver, cfg.Audit.DSN
	}

	store, err := audit.Open(drv, source)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	filter := audit.Filter{ProposalID: *proposal, Type: strings.TrimSpace(*eventType), Limit: *limit}
	n, err := store.ExportParquet(context.Background(), *out, filter)
	if err != nil {
		fmt.Fprintf(stderr, "Export failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Exported %d audit records to %s\n", n, *out)
	return 0
}
