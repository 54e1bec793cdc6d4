package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	fees "confreg/internal/fees/domain"
	"confreg/internal/fees/infrastructure/pricing"
	registration "confreg/internal/registration/domain"
	regrepo "confreg/internal/registration/infrastructure/postgres"
)

const reportName = "fee_reconcile.csv"

type config struct {
	dbURL      string
	feesConfig string
	outDir     string
	onlyDiffs  bool
}

type reconcileRow struct {
	RegistrationID string
	CreatedAt      time.Time
	Status         registration.Status
	StoredFee      int64
	StoredCurrency fees.Currency
	StoredSummary  string
	ComputedFee    int64
	ComputedCurr   fees.Currency
	ComputedSum    string
	Phase          fees.Phase
	Match          bool
	Error          string
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "create out dir:", err)
		os.Exit(2)
	}

	table, err := pricing.LoadRateTable(cfg.feesConfig)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rate table:", err)
		os.Exit(2)
	}

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	regs, err := regrepo.NewRegistrationRepository(db).ListAll(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "load registrations:", err)
		os.Exit(2)
	}

	rows := reconcile(table, regs)
	mismatches := 0
	for _, row := range rows {
		if !row.Match {
			mismatches++
		}
	}
	if err := writeReport(filepath.Join(cfg.outDir, reportName), rows, cfg.onlyDiffs); err != nil {
		fmt.Fprintln(os.Stderr, "write report:", err)
		os.Exit(2)
	}
	fmt.Printf("Checked %d registrations, %d mismatches, report written to %s\n", len(rows), mismatches, cfg.outDir)
	if mismatches > 0 {
		os.Exit(1)
	}
}

func parseFlags() (config, error) {
	var cfg config
	flag.StringVar(&cfg.dbURL, "db", getenvDefault("DATABASE_URL", os.Getenv("PG_DSN")), "Postgres DSN")
	flag.StringVar(&cfg.feesConfig, "fees", os.Getenv("FEES_CONFIG"), "rate table YAML (built-in table when empty)")
	flag.StringVar(&cfg.outDir, "out", "./out", "output directory")
	flag.BoolVar(&cfg.onlyDiffs, "only-diffs", false, "write mismatching rows only")
	flag.Parse()

	if cfg.dbURL == "" {
		return cfg, fmt.Errorf("db is required")
	}
	return cfg, nil
}

// reconcile recomputes each registration's fee with the phase pinned to its creation time.
func reconcile(table *fees.RateTable, regs []registration.Registration) []reconcileRow {
	rows := make([]reconcileRow, 0, len(regs))
	for _, reg := range regs {
		row := reconcileRow{
			RegistrationID: reg.ID,
			CreatedAt:      reg.CreatedAt,
			Status:         reg.Status,
			StoredFee:      reg.FinalFee,
			StoredCurrency: reg.Currency,
			StoredSummary:  reg.SummaryTag,
		}
		engine, err := fees.NewEngine(table, fees.WithClock(fixedClock{reg.CreatedAt}))
		if err != nil {
			row.Error = err.Error()
			rows = append(rows, row)
			continue
		}
		result, err := engine.Quote(fees.RegistrationInput{
			IsAuthor:       reg.IsAuthor,
			Nationality:    reg.Nationality,
			Category:       reg.Category,
			ConferenceType: reg.ConferenceType,
			PaperID:        reg.PaperID,
			EvaluationDate: reg.CreatedAt,
		})
		if err != nil {
			row.Error = err.Error()
			rows = append(rows, row)
			continue
		}
		row.ComputedFee = result.FinalFee
		row.ComputedCurr = result.Currency
		row.ComputedSum = result.SummaryTag
		row.Phase = result.Phase
		row.Match = result.FinalFee == reg.FinalFee &&
			result.Currency == reg.Currency &&
			result.SummaryTag == reg.SummaryTag
		rows = append(rows, row)
	}
	return rows
}

func writeReport(path string, rows []reconcileRow, onlyDiffs bool) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{
		"registration_id",
		"created_at",
		"status",
		"stored_fee",
		"stored_currency",
		"stored_summary",
		"computed_fee",
		"computed_currency",
		"computed_summary",
		"phase",
		"match",
		"error",
	}); err != nil {
		return err
	}
	for _, row := range rows {
		if onlyDiffs && row.Match {
			continue
		}
		if err := writer.Write([]string{
			row.RegistrationID,
			row.CreatedAt.UTC().Format(time.RFC3339),
			string(row.Status),
			strconv.FormatInt(row.StoredFee, 10),
			string(row.StoredCurrency),
			row.StoredSummary,
			strconv.FormatInt(row.ComputedFee, 10),
			string(row.ComputedCurr),
			row.ComputedSum,
			string(row.Phase),
			strconv.FormatBool(row.Match),
			row.Error,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func getenvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
