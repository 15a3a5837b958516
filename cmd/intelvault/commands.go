package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"IntelVault/internal/app"
	"IntelVault/internal/domain"
	"IntelVault/internal/infrastructure/storage/index"
)

func newIngestCmd() *cobra.Command {
	var (
		limit  int
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch new candidates, score them and store them in the vault",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(a *app.Application) error {
				report, err := a.Ingest(cmd.Context(), limit, dryRun)
				if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
					return perr
				}
				return err
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max new items (0 means the daily limit)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "skip model calls, transcription and alerts")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var (
		limit  int
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run ingest on the configured interval until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(a *app.Application) error {
				return a.Watch(cmd.Context(), limit, dryRun)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max new items per run (0 means the daily limit)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "skip model calls, transcription and alerts")
	return cmd
}

func newDigestCmd() *cobra.Command {
	var publish bool
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Write the weekly digest of top items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(a *app.Application) error {
				res, err := a.Digest(cmd.Context(), publish)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Digest written to %s (%d items)\n", res.Path, res.Items)
				if res.Published {
					fmt.Fprintln(cmd.OutOrStdout(), "Digest published")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "send the digest through the configured notifier")
	return cmd
}

func newListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the most recent index rows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(a *app.Application) error {
				rows, err := a.List(limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, strings.Join(index.Headers, ","))
				for _, r := range rows {
					fmt.Fprintf(out, "%s,%q,%s,%s,%s,%s,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,%s,%s\n",
						r.ItemID, r.Title, r.URL, r.Source, r.Type, r.Date,
						r.Validity, r.Credibility, r.Relevance, r.Actionability, r.Novelty, r.Overall,
						r.Route, r.DrivePath)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of rows")
	return cmd
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export highlight, claim and summary chunks as JSONL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(a *app.Application) error {
				path, n, err := a.Export(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d chunks to %s\n", n, path)
				return nil
			})
		},
	}
}

func newEmbedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "embed",
		Short: "Embed the exported chunks into the vector corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(a *app.Application) error {
				n, err := a.Embed(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d chunks\n", n)
				return nil
			})
		},
	}
}

func newRecommendCmd() *cobra.Command {
	var (
		k          int
		priorities []string
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Rank stored items against the profile priorities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(a *app.Application) error {
				recs, err := a.Recommend(cmd.Context(), priorities, k)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), recs)
			})
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", 10, "number of recommendations")
	cmd.Flags().StringSliceVar(&priorities, "priority", nil, "override profile priorities (repeatable)")
	return cmd
}

func newNoveltyCmd() *cobra.Command {
	var c domain.Candidate
	cmd := &cobra.Command{
		Use:   "novelty",
		Short: "Score how novel a candidate is against the vault",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(c.Title) == "" && strings.TrimSpace(c.Description) == "" {
				return fmt.Errorf("--title or --description is required")
			}
			return withApp(func(a *app.Application) error {
				res, err := a.Novelty(cmd.Context(), c)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&c.Title, "title", "", "candidate title")
	cmd.Flags().StringVar(&c.URL, "url", "", "candidate URL")
	cmd.Flags().StringVar(&c.Description, "description", "", "candidate description")
	cmd.Flags().StringVar(&c.SourceName, "source", "", "source name")
	return cmd
}

func newFeedbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feedback <item-id> <accept|reject>",
		Short: "Record a decision that tunes recommendation ranking",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.Application) error {
				policy, err := a.Feedback(args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), policy)
			})
		},
	}
}

func newCatalogSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog-sync",
		Short: "Rebuild the SQLite URL catalog from index.csv",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(a *app.Application) error {
				n, err := a.SyncCatalog(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Catalog holds %d items\n", n)
				return nil
			})
		},
	}
}
