package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	billingapp "vzev-billing/internal/billing/application"
	billinginterfaces "vzev-billing/internal/billing/interfaces"
	"vzev-billing/internal/config"
	"vzev-billing/internal/metering/infrastructure/memory"
	meteringpostgres "vzev-billing/internal/metering/infrastructure/postgres"
	"vzev-billing/internal/metering/interfaces/bkwcsv"
	"vzev-billing/internal/observability/metrics"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	configPath := getenvDefault("VZEV_CONFIG", "config.yaml")
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	graph, err := cfg.Graph()
	if err != nil {
		logger.Fatalf("member graph: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatalf("time zone: %v", err)
	}
	start, end, err := cfg.Period()
	if err != nil {
		logger.Fatalf("billing period: %v", err)
	}

	metrics.Init()
	if addr := getenvDefault("METRICS_ADDR", cfg.Settings.MetricsAddr); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Printf("metrics listener: %v", err)
			}
		}()
	}

	ctx := context.Background()

	var (
		source billingapp.ReadingSource
		sink   bkwcsv.Sink
	)
	if cfg.Settings.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.Settings.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open: %v", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			logger.Fatalf("db ping: %v", err)
		}
		store := meteringpostgres.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatalf("db schema: %v", err)
		}
		source, sink = store, store
	} else {
		store := memory.NewStore()
		source, sink = store, store
	}

	importer, err := bkwcsv.NewImporter(sink, graph, loc, logger)
	if err != nil {
		logger.Fatalf("importer: %v", err)
	}
	imported, err := importer.ImportDir(ctx, cfg.Settings.CSVDirectory)
	if err != nil {
		logger.Fatalf("csv import: %v", err)
	}
	logger.Printf("csv import: %d reading(s)", imported)

	pipeline, err := billingapp.NewPipeline(source, graph, cfg.Rates(), loc, logger)
	if err != nil {
		logger.Fatalf("pipeline: %v", err)
	}
	result, err := pipeline.Run(ctx, start, end, cfg.Interval())
	if err != nil {
		logger.Fatalf("pipeline run: %v", err)
	}

	for _, ex := range result.Excluded {
		logger.Printf("excluded %s: %s", ex.Month, ex.Reason)
	}
	for _, warning := range result.Warnings {
		logger.Printf("warning: %s", warning)
	}

	if len(result.Bills) == 0 {
		logger.Printf("no billable periods - nothing to export")
		return
	}
	if err := writeOutputs(cfg.Settings.OutputDirectory, result, logger); err != nil {
		logger.Fatalf("export: %v", err)
	}
}

func writeOutputs(dir string, result *billingapp.RunResult, logger *log.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	csvPath := filepath.Join(dir, "bills.csv")
	csvFile, err := os.Create(csvPath)
	if err != nil {
		metrics.IncExport("csv", metrics.ResultError)
		return err
	}
	if err := billinginterfaces.WriteCSV(csvFile, result.Bills); err != nil {
		_ = csvFile.Close()
		metrics.IncExport("csv", metrics.ResultError)
		return err
	}
	if err := csvFile.Close(); err != nil {
		return err
	}
	metrics.IncExport("csv", metrics.ResultSuccess)
	logger.Printf("wrote %s", csvPath)

	for _, bill := range result.Bills {
		pdf, err := billinginterfaces.BuildBillPDF(bill)
		if err != nil {
			metrics.IncExport("pdf", metrics.ResultError)
			return err
		}
		name := fmt.Sprintf("bill_%s_%s.pdf", bill.Period.Start(), sanitize(bill.MemberID))
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, pdf, 0o644); err != nil {
			return err
		}
		metrics.IncExport("pdf", metrics.ResultSuccess)
	}
	logger.Printf("wrote %d PDF bill(s)", len(result.Bills))

	xlsx, err := billinginterfaces.BuildBillsXLSX(result.Bills)
	if err != nil {
		metrics.IncExport("xlsx", metrics.ResultError)
		return err
	}
	xlsxPath := filepath.Join(dir, "bills.xlsx")
	if err := os.WriteFile(xlsxPath, xlsx, 0o644); err != nil {
		return err
	}
	metrics.IncExport("xlsx", metrics.ResultSuccess)
	logger.Printf("wrote %s", xlsxPath)
	return nil
}

func sanitize(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, value)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
