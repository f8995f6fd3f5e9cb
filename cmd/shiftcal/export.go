package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"shiftcal/internal/ics"
	"shiftcal/internal/model"
)

func newExportCmd(root *rootOptions) *cobra.Command {
	var (
		team       string
		from, to   string
		fromPat    bool
		year       int
		month      int
		outputPath string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write shifts as an iCalendar file.",
		Long:  `Exports stored shift records in [from, to], or with --pattern the generated working days of a month.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			if _, err := a.calc.Team(team); err != nil {
				return err
			}

			var records []model.ShiftRecord
			if fromPat {
				today := a.calc.Today()
				if year == 0 {
					year = today.Year
				}
				if month == 0 {
					month = int(today.Month)
				}
				if records, err = a.calc.Records(team, year, time.Month(month)); err != nil {
					return err
				}
			} else {
				start, end, err := exportRange(from, to, a.calc.Today())
				if err != nil {
					return err
				}
				st, err := a.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer st.Close()
				if records, err = st.ListShifts(cmd.Context(), team, start, end); err != nil {
					return err
				}
			}

			body := ics.ExportShiftsToICS(records, a.exportOptions())

			if outputPath == "" || outputPath == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), body)
				return err
			}
			return writeFile(outputPath, body)
		},
	}
	cmd.Flags().StringVar(&team, "team", "", "Team name")
	cmd.Flags().StringVar(&from, "from", "", "First date YYYY-MM-DD (default: first of current month)")
	cmd.Flags().StringVar(&to, "to", "", "Last date YYYY-MM-DD (default: end of current month)")
	cmd.Flags().BoolVar(&fromPat, "pattern", false, "Export the generated pattern instead of stored records")
	cmd.Flags().IntVar(&year, "year", 0, "Year for --pattern (default: current)")
	cmd.Flags().IntVar(&month, "month", 0, "Month for --pattern (default: current)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: stdout)")
	_ = cmd.MarkFlagRequired("team")
	return cmd
}

// writeFile reports the Close error too, since a failed flush loses data.
func writeFile(path, body string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f, body); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func exportRange(from, to string, today model.Date) (model.Date, model.Date, error) {
	start := model.NewDate(today.Year, today.Month, 1)
	end := model.NewDate(today.Year, today.Month, model.DaysInMonth(today.Year, today.Month))

	var err error
	if from != "" {
		if start, err = model.ParseDate(from); err != nil {
			return model.Date{}, model.Date{}, err
		}
	}
	if to != "" {
		if end, err = model.ParseDate(to); err != nil {
			return model.Date{}, model.Date{}, err
		}
	}
	if end.Before(start) {
		return model.Date{}, model.Date{}, fmt.Errorf("--to %s is before --from %s", end, start)
	}
	return start, end, nil
}
