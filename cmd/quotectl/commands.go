package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

func newRootCmd(open envFactory) *cobra.Command {
	var e *env

	current := func() *env { return e }

	root := &cobra.Command{
		Use:           "quotectl",
		Short:         "Manage the local quote collection",
		Long:          "quotectl lists, adds, imports and exports quotes in the local store and syncs them with the posts API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if e != nil {
				return nil
			}

			opened, err := open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			e = opened

			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if e == nil {
				return nil
			}

			return e.close()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		newListCmd(current),
		newRandomCmd(current),
		newAddCmd(current),
		newCategoriesCmd(current),
		newSelectCmd(current),
		newImportCmd(current),
		newExportCmd(current),
		newArchiveCmd(current),
		newSyncCmd(current),
	)

	return root
}

func printQuote(w io.Writer, q domain.Quote) {
	marker := ""
	if q.NeedsSync {
		marker = " *"
	}

	fmt.Fprintf(w, "%-42s [%s] %s%s\n", q.ID, q.Category, q.Text, marker)
}

func newListCmd(current func() *env) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quotes ordered by id",
		Long:  "List prints every quote, or those in --category. Quotes awaiting upload are marked with *.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			quotes := current().quotes.List(cmd.Context(), category)
			if len(quotes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No quotes found")
				return nil
			}

			for _, q := range quotes {
				printQuote(cmd.OutOrStdout(), q)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "only list this category")

	return cmd
}

func newRandomCmd(current func() *env) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "random",
		Short: "Print a random quote",
		Long:  "Random picks from --category, or from the selected category when the flag is omitted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := current().quotes.Random(cmd.Context(), category)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\n  (%s)\n", q.Text, q.Category)

			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "pick from this category")

	return cmd
}

func newAddCmd(current func() *env) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "add TEXT...",
		Short: "Add a local quote",
		Long:  "Add stores a new quote locally and flags it for upload on the next sync.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := current().quotes.Add(cmd.Context(), strings.Join(args, " "), category)
			if err != nil {
				return err
			}

			printQuote(cmd.OutOrStdout(), q)

			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "category of the new quote (required)")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func newCategoriesCmd(current func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories",
		Long:  "Categories prints the distinct categories and marks the selected one.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := current()
			selected := e.quotes.SelectedCategory(cmd.Context())

			mark := func(name string) string {
				if strings.EqualFold(name, selected) {
					return "> "
				}

				return "  "
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", mark(domain.AllCategories), domain.AllCategories)

			for _, c := range e.quotes.Categories(cmd.Context()) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", mark(c), c)
			}

			return nil
		},
	}
}

func newSelectCmd(current func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "select CATEGORY",
		Short: "Save the category filter",
		Long:  `Select saves the category used by "random" when --category is omitted. Use "all" to clear it.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := current().quotes.SelectCategory(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Selected category: %s\n", selected)

			return nil
		},
	}
}

func newImportCmd(current func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import quotes from a JSON file",
		Long:  `Import upserts the quotes of a JSON array file by id and flags them for upload. Use "-" for stdin.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()

			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening import file: %w", err)
				}
				defer f.Close()

				r = f
			}

			result, err := current().quotes.Import(cmd.Context(), r)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d, skipped %d\n", result.Imported, result.Skipped)

			return nil
		},
	}
}

func newExportCmd(current func() *env) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export quotes as JSON",
		Long:  "Export writes every quote as an indented JSON array to stdout or --output.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" || output == "-" {
				_, err := current().quotes.Export(cmd.Context(), cmd.OutOrStdout())
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating export file: %w", err)
			}

			n, err := current().quotes.Export(cmd.Context(), f)
			if err != nil {
				_ = f.Close()
				return err
			}

			if err := f.Close(); err != nil {
				return fmt.Errorf("closing export file: %w", err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d quotes to %s\n", n, output)

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")

	return cmd
}

func newArchiveCmd(current func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Upload a snapshot to the archive bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			location, err := current().quotes.ArchiveSnapshot(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), location)

			return nil
		},
	}
}

func newSyncCmd(current func() *env) *cobra.Command {
	var (
		manual bool
		keep   string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle",
		Long: `Sync fetches the remote posts, reconciles them with the local store and
uploads pending quotes.

With --manual every conflict is settled interactively, or by --keep when given.
Without it the server version wins.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := current()

			policy := domain.PolicyServerWins
			if manual {
				policy = domain.PolicyManual

				switch keep {
				case "":
					e.setChooser(newPromptResolver(cmd.InOrStdin(), cmd.ErrOrStderr()))
				case string(domain.KeepLocal), string(domain.KeepRemote):
					e.setChooser(domain.Always(domain.Resolution(keep)))
				default:
					return fmt.Errorf("--keep must be %q or %q", domain.KeepLocal, domain.KeepRemote)
				}
			}

			if e.syncer.Policy() != policy {
				if err := e.syncer.SetPolicy(cmd.Context(), policy); err != nil {
					return err
				}
			}

			report, err := e.syncer.Sync(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Fetched %d, inserted %d, conflicts %d, pushed %d\n",
				report.Fetched, report.Inserted, len(report.Conflicts), report.Pushed)

			for _, c := range report.Conflicts {
				fmt.Fprintf(out, "  %s kept %s\n", c.ID, c.Resolution)
			}

			if len(report.PushFailed) > 0 {
				fmt.Fprintf(out, "Upload failed for %s; they stay pending.\n", strings.Join(report.PushFailed, ", "))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&manual, "manual", false, "resolve conflicts manually")
	cmd.Flags().StringVar(&keep, "keep", "", `with --manual, keep "local" or "remote" for every conflict instead of prompting`)

	return cmd
}
