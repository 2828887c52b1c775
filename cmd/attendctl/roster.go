package main

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"
	"github.com/warp/attendance-ledger/factory"
	"github.com/warp/attendance-ledger/generic"
	"github.com/warp/attendance-ledger/timeoff"
)

// rosterRow is one line of a roster CSV.
type rosterRow struct {
	ID              string `csv:"id" validate:"required"`
	Name            string `csv:"name" validate:"required"`
	MachineID       string `csv:"machine_id"`
	Subsidiary      string `csv:"subsidiary" validate:"required"`
	Department      string `csv:"department"`
	Supervisor      string `csv:"supervisor"`
	JobTitle        string `csv:"job_title"`
	HireDate        string `csv:"hire_date" validate:"omitempty,datetime=2006-01-02"`
	BirthDate       string `csv:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	ExperienceYears int    `csv:"experience_years" validate:"gte=0"`
}

func (r rosterRow) toEmployee() timeoff.Employee {
	emp := timeoff.Employee{
		ID:              generic.EmployeeID(r.ID),
		Name:            r.Name,
		MachineID:       r.MachineID,
		Subsidiary:      r.Subsidiary,
		Department:      r.Department,
		Supervisor:      r.Supervisor,
		JobTitle:        r.JobTitle,
		ExperienceYears: r.ExperienceYears,
	}
	emp.HireDate, _ = generic.ParseDate(r.HireDate)
	emp.BirthDate, _ = generic.ParseDate(r.BirthDate)
	return emp
}

// readRoster parses and validates every row before anything is stored.
func readRoster(path string) ([]timeoff.Employee, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []rosterRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	out := make([]timeoff.Employee, 0, len(rows))
	for i, row := range rows {
		if err := factory.Validate(row); err != nil {
			return nil, fmt.Errorf("roster line %d: %w", i+2, err)
		}
		out = append(out, row.toEmployee())
	}
	return out, nil
}

func newEmployeesCmd(dbPath *string) *cobra.Command {
	var file string
	employees := &cobra.Command{Use: "employees", Short: "Manage the roster"}

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Create or replace employees from a roster CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			roster, err := readRoster(file)
			if err != nil {
				return err
			}
			a, err := open(*dbPath, "", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			for _, emp := range roster {
				if err := a.store.SaveEmployee(cmd.Context(), emp); err != nil {
					return fmt.Errorf("employee %s: %w", emp.ID, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d employees\n", len(roster))
			return nil
		},
	}
	importCmd.Flags().StringVar(&file, "file", "", "Roster CSV with an id,name,machine_id,subsidiary,... header")
	_ = importCmd.MarkFlagRequired("file")

	employees.AddCommand(importCmd)
	return employees
}
