package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Sternrassler/github-user-browser/pkg/model"
	"github.com/Sternrassler/github-user-browser/pkg/search"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search GitHub users",
	Long: `Search runs one user search, prints the status and the results, and
loads full profiles for the first screen of rows. With --load-all every
profile is loaded; with --export the fully loaded results are written as CSV.`,
	Example: `  ghbrowse search --location bulgaria --language csharp
  ghbrowse search --location sofia --repos 5 --export users.csv`,
	RunE: runSearch,
}

func init() {
	addCriteriaFlags(searchCmd.Flags())
	searchCmd.Flags().Bool("load-all", false, "load every profile, not just the first screen")
	searchCmd.Flags().String("export", "", "write all results as CSV to this file")
	searchCmd.Flags().Bool("json", false, "print results as JSON")

	rootCmd.AddCommand(searchCmd)
}

func addCriteriaFlags(flags *pflag.FlagSet) {
	flags.String("location", "", "user location")
	flags.String("language", "", "primary repository language")
	flags.Int("repos", 0, "minimum number of public repositories")
	flags.String("contributed-in", "", "project the user contributed to (not supported by the search API)")
}

// criteriaFromFlags builds the criteria; --repos counts only when given.
func criteriaFromFlags(flags *pflag.FlagSet) model.SearchCriteria {
	criteria := model.SearchCriteria{}
	criteria.Location, _ = flags.GetString("location")
	criteria.Language, _ = flags.GetString("language")
	criteria.ContributedIn, _ = flags.GetString("contributed-in")
	if flags.Changed("repos") {
		repos, _ := flags.GetInt("repos")
		criteria.MinRepos = &repos
	}
	return criteria
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()
	reporter := search.StatusFunc(func(status string) {
		fmt.Fprintln(stderr, status)
	})

	a, err := newApp(ctx, cfg, reporter)
	if err != nil {
		return err
	}
	defer a.Close()

	a.orch.Search(ctx, criteriaFromFlags(cmd.Flags()))
	if phase := a.orch.Phase(); phase == search.PhaseFailed || phase == search.PhaseIdle {
		return fmt.Errorf("search did not complete: %s", a.orch.Status())
	}

	if dest, _ := cmd.Flags().GetString("export"); dest != "" {
		if _, err := a.orch.Export(ctx, dest); err != nil {
			return fmt.Errorf("export to %s: %w", dest, err)
		}
	} else if loadAll, _ := cmd.Flags().GetBool("load-all"); loadAll {
		report, err := a.orch.LoadAll(ctx)
		fmt.Fprintf(stderr, "Loaded %d of %d profiles\n", report.Loaded, report.Requested)
		if err != nil {
			return err
		}
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	return printResults(cmd.OutOrStdout(), a.orch.Results(), asJSON)
}

// resultRow is the printed form of one record.
type resultRow struct {
	Login    string `json:"login"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Company  string `json:"company,omitempty"`
	URL      string `json:"url"`
	Hireable *bool  `json:"hireable,omitempty"`
	Loaded   bool   `json:"loaded"`
}

func toRow(r model.Record) resultRow {
	if r.Full == nil {
		return resultRow{Login: r.Summary.Login, URL: r.URL()}
	}
	return resultRow{
		Login:    r.Full.Login,
		Name:     r.Full.Name,
		Email:    r.Full.Email,
		Company:  r.Full.Company,
		URL:      r.URL(),
		Hireable: r.Full.Hireable,
		Loaded:   true,
	}
}

func printResults(w io.Writer, records []model.Record, asJSON bool) error {
	rows := make([]resultRow, len(records))
	for i, r := range records {
		rows[i] = toRow(r)
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LOGIN\tNAME\tEMAIL\tCOMPANY\tURL")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", row.Login, row.Name, row.Email, row.Company, row.URL)
	}
	return tw.Flush()
}
