package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"shiftcal/internal/model"
	"shiftcal/internal/pattern"
)

func newMonthCmd(root *rootOptions) *cobra.Command {
	var (
		team       string
		year       int
		month      int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "month",
		Short: "Print a team's generated month with statistics.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			today := a.calc.Today()
			if year == 0 {
				year = today.Year
			}
			if month == 0 {
				month = int(today.Month)
			}

			schedule, err := a.calc.Month(team, year, time.Month(month))
			if err != nil {
				return err
			}
			stats, err := a.calc.Statistics(team, year, time.Month(month))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Days       []model.ShiftDay      `json:"days"`
					Statistics model.MonthStatistics `json:"statistics"`
				}{pattern.SortedDays(schedule), stats})
			}
			return printMonth(out, team, year, time.Month(month), schedule, stats)
		},
	}
	cmd.Flags().StringVar(&team, "team", "", "Team name")
	cmd.Flags().IntVar(&year, "year", 0, "Year (default: current)")
	cmd.Flags().IntVar(&month, "month", 0, "Month 1-12 (default: current)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
	_ = cmd.MarkFlagRequired("team")
	return cmd
}

func printMonth(w io.Writer, team string, year int, month time.Month, schedule map[string]model.ShiftDay, stats model.MonthStatistics) error {
	fmt.Fprintf(w, "Team %s, %s %d\n\n", team, month, year)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, d := range pattern.SortedDays(schedule) {
		hours := "-"
		if d.Window != nil {
			hours = d.Window.Start.String() + "-" + d.Window.End.String()
		}
		marker := ""
		if d.IsToday {
			marker = "<- today"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\tday %d\t%s\n",
			d.Date, d.Date.Weekday().String()[:3], d.Code, hours, d.DisplayCycleDay(), marker)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nWork days: %d\n", stats.TotalWorkDays)
	fmt.Fprintf(w, "Work hours: %.1f (avg %.1f per work day)\n", stats.TotalWorkHours, stats.AverageHoursPerWorkday)
	fmt.Fprintf(w, "Cycle day today: %d\n", stats.CurrentCycleDay+1)
	if stats.NextShiftDate != nil && stats.DaysUntilNextShift != nil {
		fmt.Fprintf(w, "Next shift: %s (in %d days)\n", stats.NextShiftDate, *stats.DaysUntilNextShift)
	}
	return nil
}

func newNextCmd(root *rootOptions) *cobra.Command {
	var (
		team    string
		after   string
		horizon int
	)
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Print a team's next working day.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			from := a.calc.Today()
			if after != "" {
				if from, err = model.ParseDate(after); err != nil {
					return err
				}
			}
			next, err := a.calc.NextShift(team, from, horizon)
			if err != nil {
				return err
			}
			hours := ""
			if next.Shift.Window != nil {
				hours = " " + next.Shift.Window.Start.String() + "-" + next.Shift.Window.End.String()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s%s (in %d days)\n", next.Date, next.Shift.Code, hours, next.DaysUntil)
			return nil
		},
	}
	cmd.Flags().StringVar(&team, "team", "", "Team name")
	cmd.Flags().StringVar(&after, "after", "", "Reference date YYYY-MM-DD (default: today)")
	cmd.Flags().IntVar(&horizon, "horizon", 0, "Days to scan (default: two cycles)")
	_ = cmd.MarkFlagRequired("team")
	return cmd
}
