/*
main.go - Command-line entry point for batch runs

PURPOSE:
  Runs the same batches the server exposes, without HTTP: punch sheets,
  the yearly accrual, the transferred reset, CSV exports, and loading
  rules or the roster from files. Useful from cron and for backfills.

COMMANDS:
  attendctl sheet --file export.csv --date 2024-03-10
  attendctl sheet --file export.csv --year 2024 --month 3
  attendctl accrue [--as-of 2024-01-01]
  attendctl reset-transferred --year 2024
  attendctl export --year 2024 --month 3 > march.csv
  attendctl rules import --file rules.json
  attendctl employees import --file roster.csv

  Every command takes --db (overrides database.path). The rest of the
  settings come from the same config file and ATTENDANCE_* environment
  as the server.

SEE ALSO:
  - cmd/server/main.go: HTTP server
  - api/handlers.go: Component wiring shared with the server
*/
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/warp/attendance-ledger/api"
	"github.com/warp/attendance-ledger/attendance"
	"github.com/warp/attendance-ledger/config"
	"github.com/warp/attendance-ledger/generic"
	"github.com/warp/attendance-ledger/logger"
	"github.com/warp/attendance-ledger/store/files"
	"github.com/warp/attendance-ledger/store/sqlite"
	"github.com/warp/attendance-ledger/timeoff"
)

const serviceName = "attendance-ledger"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app is the wiring one command run needs.
type app struct {
	store   *sqlite.Store
	handler *api.Handler
}

func (a *app) Close() error { return a.store.Close() }

// open loads config and the store. dir overrides the sheet directory.
func open(dbPath, dir string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(serviceName)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if dir == "" {
		dir = cfg.Files.Dir
	}

	log := logger.NewWriter(logOut, "attendctl", cfg.Server.Environment)
	log.SetLevel(cfg.Log.Level)

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	h, err := api.NewHandler(store, files.NewDir(dir), cfg, log)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &app{store: store, handler: h}, nil
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var dbPath string

	root := &cobra.Command{
		Use:          "attendctl",
		Short:        "Attendance and leave ledger batch runs",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")

	root.AddCommand(
		newSheetCmd(&dbPath),
		newAccrueCmd(&dbPath),
		newResetCmd(&dbPath),
		newExportCmd(&dbPath),
		newRulesCmd(&dbPath),
		newEmployeesCmd(&dbPath),
	)
	return root
}

// =============================================================================
// ATTENDANCE COMMANDS
// =============================================================================

func newSheetCmd(dbPath *string) *cobra.Command {
	var (
		file  string
		date  string
		year  int
		month int
	)
	cmd := &cobra.Command{
		Use:   "sheet",
		Short: "Process a punch export for one day (--date) or one month (--year, --month)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			abs, err := filepath.Abs(file)
			if err != nil {
				return err
			}
			a, err := open(*dbPath, filepath.Dir(abs), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			sheet := attendance.Sheet{ID: uuid.NewString(), FileRef: filepath.Base(abs)}
			switch {
			case date != "":
				d, err := generic.ParseDate(date)
				if err != nil {
					return err
				}
				sheet.Mode, sheet.Date = attendance.SheetDaily, d
			case year != 0 && month != 0:
				sheet.Mode, sheet.Year, sheet.Month = attendance.SheetMonthly, year, time.Month(month)
			default:
				return fmt.Errorf("either --date or both --year and --month are required")
			}

			report, err := a.handler.Sheets.Process(cmd.Context(), sheet)
			if err != nil && report.Failed == 0 {
				return err
			}
			if serr := a.store.SaveSheetReport(cmd.Context(), report); serr != nil {
				return serr
			}
			if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Punch export CSV")
	cmd.Flags().StringVar(&date, "date", "", "Day to process (YYYY-MM-DD)")
	cmd.Flags().IntVar(&year, "year", 0, "Year to process")
	cmd.Flags().IntVar(&month, "month", 0, "Month to process (1-12)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newExportCmd(dbPath *string) *cobra.Command {
	var year, month int
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a month of attendance records as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if month < 1 || month > 12 {
				return fmt.Errorf("--month must be 1-12")
			}
			a, err := open(*dbPath, "", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.store.Records(cmd.Context(), generic.MonthPeriod(year, time.Month(month)))
			if err != nil {
				return err
			}
			return attendance.WriteCSV(cmd.OutOrStdout(), records, a.handler.Location)
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "Year")
	cmd.Flags().IntVar(&month, "month", 0, "Month (1-12)")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}

// =============================================================================
// LEAVE COMMANDS
// =============================================================================

func newAccrueCmd(dbPath *string) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "accrue",
		Short: "Create the year's leave balances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open(*dbPath, "", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			day := generic.Today(a.handler.Location)
			if asOf != "" {
				if day, err = generic.ParseDate(asOf); err != nil {
					return err
				}
			}
			report, err := a.handler.Accrual.Run(cmd.Context(), day)
			if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "Accrual date (YYYY-MM-DD), default today")
	return cmd
}

func newResetCmd(dbPath *string) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "reset-transferred",
		Short: "Zero the transferred days of every balance in a year",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open(*dbPath, "", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.handler.Reset.Run(cmd.Context(), year)
			if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "Balance year")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func newRulesCmd(dbPath *string) *cobra.Command {
	var file string
	rules := &cobra.Command{Use: "rules", Short: "Manage leave rules"}

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Load one rule or an array of rules from a JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			a, err := open(*dbPath, "", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			var parsed []timeoff.LeaveRule
			if text := strings.TrimSpace(string(body)); strings.HasPrefix(text, "[") {
				parsed, err = a.handler.Rules.ParseRules(text)
			} else {
				var r *timeoff.LeaveRule
				if r, err = a.handler.Rules.ParseRule(text); err == nil {
					parsed = []timeoff.LeaveRule{*r}
				}
			}
			if err != nil {
				return err
			}
			for _, r := range parsed {
				if err := a.store.SaveRule(cmd.Context(), r); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d rules\n", len(parsed))
			return nil
		},
	}
	importCmd.Flags().StringVar(&file, "file", "", "Rules JSON file")
	_ = importCmd.MarkFlagRequired("file")

	rules.AddCommand(importCmd)
	return rules
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
