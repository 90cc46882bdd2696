package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/quotekeeper/internal/app"
	"github.com/jsamuelsen/quotekeeper/internal/domain"
)

func (c *cli) listCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quotes with their positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(_ context.Context, svc *app.QuoteService) error {
				printQuotes(c.out, svc.Quotes(category))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", domain.CategoryAll, "only list quotes in this category")

	return cmd
}

func (c *cli) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the filter choices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(_ context.Context, svc *app.QuoteService) error {
				for _, category := range svc.Categories() {
					fmt.Fprintln(c.out, category)
				}

				return nil
			})
		},
	}
}

func (c *cli) filterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filter [CATEGORY]",
		Short: "Show the persisted selection, or set it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, svc *app.QuoteService) error {
				var view app.View
				if len(args) == 1 {
					view = svc.RequestFilter(ctx, args[0])
				} else {
					view = svc.CurrentView(ctx)
				}

				fmt.Fprintln(c.out, view.Header)
				printQuotes(c.out, view.Items)

				return nil
			})
		},
	}
}

func (c *cli) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add TEXT CATEGORY",
		Short: "Append a quote",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, svc *app.QuoteService) error {
				q, err := svc.RequestAdd(ctx, args[0], args[1])
				if err != nil {
					return err
				}

				fmt.Fprintf(c.out, "added [%s] %s\n", q.Category, q.Text)

				return nil
			})
		},
	}
}

func (c *cli) editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit POSITION TEXT CATEGORY",
		Short: "Replace the quote at a position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parsePosition(args[0])
			if err != nil {
				return err
			}

			return c.run(cmd, func(ctx context.Context, svc *app.QuoteService) error {
				q, err := svc.RequestEdit(ctx, pos, args[1], args[2])
				if err != nil {
					return err
				}

				fmt.Fprintf(c.out, "updated %d: [%s] %s\n", pos, q.Category, q.Text)

				return nil
			})
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete POSITION",
		Aliases: []string{"rm"},
		Short:   "Remove the quote at a position",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parsePosition(args[0])
			if err != nil {
				return err
			}

			return c.run(cmd, func(ctx context.Context, svc *app.QuoteService) error {
				q, err := svc.RequestDelete(ctx, pos)
				if err != nil {
					return err
				}

				fmt.Fprintf(c.out, "deleted [%s] %s\n", q.Category, q.Text)

				return nil
			})
		},
	}
}

func (c *cli) randomCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "random",
		Short: "Print a random quote and reset the filter to All",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, svc *app.QuoteService) error {
				q, err := svc.RequestRandom(ctx, nil)
				if err != nil {
					return err
				}

				fmt.Fprintf(c.out, "%q\n  -- %s\n", q.Text, q.Category)

				return nil
			})
		},
	}
}

func (c *cli) exportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every quote as a JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, svc *app.QuoteService) error {
				doc, _, err := svc.RequestExport(ctx)
				if err != nil {
					return err
				}

				if out == "" || out == "-" {
					_, err := c.out.Write(append(doc, '\n'))
					return err
				}

				if err := os.WriteFile(out, doc, 0o600); err != nil {
					return fmt.Errorf("writing %s: %w", out, err)
				}

				fmt.Fprintf(c.errOut, "exported to %s\n", out)

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")

	return cmd
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Merge quotes from a JSON document, skipping duplicates",
		Long: `Merge quotes from a JSON document into the store.

The document must be a JSON array of {"text", "category"} objects. Records
already present (same text and category, ignoring surrounding whitespace)
are skipped. Pass - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			return c.run(cmd, func(ctx context.Context, svc *app.QuoteService) error {
				res, err := svc.RequestImport(ctx, doc)
				if err != nil {
					return err
				}

				fmt.Fprintf(c.out, "imported %d, skipped %d\n", res.Added, res.Skipped)

				return nil
			})
		},
	}
}

func (c *cli) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle against the remote source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, svc *app.QuoteService) error {
				res, err := svc.RequestSync(ctx)
				if err != nil {
					return err
				}

				fmt.Fprintf(c.out, "sync %s: fetched %d, %d quotes in %s\n",
					res.Outcome, res.Fetched, res.Total, res.Duration.Round(time.Millisecond))

				return nil
			})
		},
	}
}

func printQuotes(w io.Writer, quotes []app.ProjectedQuote) {
	if len(quotes) == 0 {
		fmt.Fprintln(w, "(no quotes)")
		return
	}

	for _, q := range quotes {
		fmt.Fprintf(w, "%3d  %-12s %s\n", q.Position, "["+q.Category+"]", q.Text)
	}
}

func parsePosition(arg string) (int, error) {
	pos, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, fmt.Errorf("position must be an integer, got %q", arg)
	}

	return pos, nil
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		doc, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}

		return doc, nil
	}

	doc, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	return doc, nil
}
