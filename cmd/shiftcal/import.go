package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"shiftcal/internal/ics"
	"shiftcal/internal/model"
)

func newImportCmd(root *rootOptions) *cobra.Command {
	var (
		team     string
		url      string
		file     string
		verbose  bool
		replace  bool
		from, to string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import shifts from an iCalendar URL, file, or stdin.",
		Long:  `Imports events into the team's shift store. Shifts the team already has at the same date, start and end are skipped. Use --file - to read stdin. With --replace the team's stored shifts in [from, to] are removed first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (url == "") == (file == "") {
				return errors.New("exactly one of --url or --file is required")
			}
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			if _, err := a.calc.Team(team); err != nil {
				return err
			}
			var start, end model.Date
			if replace {
				if start, end, err = exportRange(from, to, a.calc.Today()); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			if replace {
				n, err := st.DeleteShifts(ctx, team, start, end)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "removed %d stored shifts in %s..%s\n", n, start, end)
			}
			im := a.importer(st)

			var res ics.ImportResult
			switch {
			case url != "":
				res, err = im.ImportFromURL(ctx, url, team)
			case file == "-":
				var body []byte
				if body, err = io.ReadAll(cmd.InOrStdin()); err == nil {
					res, err = im.Import(ctx, body, team)
				}
			default:
				res, err = im.ImportFile(ctx, file, team)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "imported %d, skipped %d, errored %d\n", res.Imported, res.Skipped, res.Errored)
			if verbose {
				for _, e := range res.Errors {
					fmt.Fprintf(out, "  %v\n", e)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&team, "team", "", "Team that receives the shifts")
	cmd.Flags().StringVar(&url, "url", "", "Calendar URL to fetch")
	cmd.Flags().StringVar(&file, "file", "", "Calendar file to read (- for stdin)")
	cmd.Flags().BoolVar(&replace, "replace", false, "Remove stored shifts in [from, to] before importing")
	cmd.Flags().StringVar(&from, "from", "", "First date for --replace YYYY-MM-DD (default: first of current month)")
	cmd.Flags().StringVar(&to, "to", "", "Last date for --replace YYYY-MM-DD (default: end of current month)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List per-event errors")
	_ = cmd.MarkFlagRequired("team")
	return cmd
}
