package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/SudharsunRavi/etracker-drive/internal/app"
	"github.com/SudharsunRavi/etracker-drive/internal/config"
	"github.com/SudharsunRavi/etracker-drive/internal/storage"
)

func newTxCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Transaction operations",
		Example: "  etracker tx add --amount 12.50 --kind expense --category Food --date 2026-08-30\n" +
			"  etracker tx list --kind expense\n" +
			"  etracker tx summary",
	}
	cmd.AddCommand(
		newTxAddCommand(deps),
		newTxListCommand(deps),
		newTxEditCommand(deps),
		newTxRemoveCommand(deps),
		newTxSummaryCommand(deps),
	)
	return cmd
}

func newTxAddCommand(deps commandDeps) *cobra.Command {
	var (
		amount      float64
		kind        string
		category    string
		description string
		date        string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		Example: "  etracker tx add --amount 12.50 --kind expense --category Food --date 2026-08-30\n" +
			"  etracker tx add --amount 2500 --kind income --category Salary --date 2026-08-01 --desc \"August payroll\"",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("tx add does not accept positional arguments")
			}
			return withService(cmd.Context(), deps, func(ctx context.Context, service *app.Service, _ config.Config) error {
				tx, err := service.InsertTransaction(ctx, app.InsertTransactionRequest{
					Amount:      amount,
					Kind:        kind,
					Category:    category,
					Description: description,
					Date:        date,
				})
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, tx)
				}
				_, err = fmt.Fprintf(deps.out, "recorded transaction %d\n", tx.ID)
				return err
			})
		},
	}

	cmd.Flags().Float64Var(&amount, "amount", 0, "Transaction amount")
	cmd.Flags().StringVar(&kind, "kind", "expense", "Transaction kind (income or expense)")
	cmd.Flags().StringVar(&category, "category", "", "Category label")
	cmd.Flags().StringVar(&description, "desc", "", "Free-form description")
	cmd.Flags().StringVar(&date, "date", "", "Transaction date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newTxListCommand(deps commandDeps) *cobra.Command {
	var (
		kind     string
		category string
		from     string
		to       string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Example: "  etracker tx list\n" +
			"  etracker tx list --kind expense --from 2026-08-01 --to 2026-08-31",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("tx list does not accept positional arguments")
			}
			return withService(cmd.Context(), deps, func(ctx context.Context, service *app.Service, _ config.Config) error {
				txs, err := service.ListTransactions(ctx, app.ListTransactionsRequest{
					Kind:     kind,
					Category: category,
					DateFrom: from,
					DateTo:   to,
				})
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, txs)
				}
				return writeTransactionTable(deps, txs)
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Filter by kind")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	cmd.Flags().StringVar(&from, "from", "", "Inclusive lower date bound (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Inclusive upper date bound (YYYY-MM-DD)")
	return cmd
}

func newTxEditCommand(deps commandDeps) *cobra.Command {
	var (
		amount      float64
		kind        string
		category    string
		description string
		date        string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Update fields of an existing transaction",
		Example: "  etracker tx edit 42 --amount 15.00\n" +
			"  etracker tx edit 42 --category Transport --date 2026-08-29",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			// Only flags the caller actually set become update fields.
			fields := map[string]any{}
			if cmd.Flags().Changed("amount") {
				fields["amount"] = amount
			}
			if cmd.Flags().Changed("kind") {
				fields["kind"] = kind
			}
			if cmd.Flags().Changed("category") {
				fields["category"] = category
			}
			if cmd.Flags().Changed("desc") {
				fields["description"] = description
			}
			if cmd.Flags().Changed("date") {
				fields["date"] = date
			}
			if len(fields) == 0 {
				return usageErrorf("tx edit requires at least one field flag")
			}

			return withService(cmd.Context(), deps, func(ctx context.Context, service *app.Service, _ config.Config) error {
				if err := service.UpdateTransaction(ctx, app.UpdateTransactionRequest{ID: id, Fields: fields}); err != nil {
					return err
				}
				_, err := fmt.Fprintf(deps.out, "updated transaction %d\n", id)
				return err
			})
		},
	}

	cmd.Flags().Float64Var(&amount, "amount", 0, "New amount")
	cmd.Flags().StringVar(&kind, "kind", "", "New kind")
	cmd.Flags().StringVar(&category, "category", "", "New category label")
	cmd.Flags().StringVar(&description, "desc", "", "New description")
	cmd.Flags().StringVar(&date, "date", "", "New date (YYYY-MM-DD)")
	return cmd
}

func newTxRemoveCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Short:   "Delete a transaction",
		Example: "  etracker tx rm 42",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd.Context(), deps, func(ctx context.Context, service *app.Service, _ config.Config) error {
				if err := service.DeleteTransaction(ctx, id); err != nil {
					return err
				}
				_, err := fmt.Fprintf(deps.out, "deleted transaction %d\n", id)
				return err
			})
		},
	}
}

func newTxSummaryCommand(deps commandDeps) *cobra.Command {
	var (
		kind     string
		category string
		from     string
		to       string
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize income, expense, and per-category totals",
		Example: "  etracker tx summary\n" +
			"  etracker tx summary --from 2026-08-01 --to 2026-08-31",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("tx summary does not accept positional arguments")
			}
			return withService(cmd.Context(), deps, func(ctx context.Context, service *app.Service, _ config.Config) error {
				summary, err := service.Summarize(ctx, app.ListTransactionsRequest{
					Kind:     kind,
					Category: category,
					DateFrom: from,
					DateTo:   to,
				})
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, summary)
				}
				_, err = fmt.Fprintf(deps.out, "income=%s expense=%s net=%s\n",
					summary.Income.StringFixed(2),
					summary.Expense.StringFixed(2),
					summary.Net.StringFixed(2),
				)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Filter by kind")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	cmd.Flags().StringVar(&from, "from", "", "Inclusive lower date bound (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Inclusive upper date bound (YYYY-MM-DD)")
	return cmd
}

func writeTransactionTable(deps commandDeps, txs []storage.Transaction) error {
	w := tabwriter.NewWriter(deps.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tKIND\tCATEGORY\tAMOUNT\tDESCRIPTION")
	for _, tx := range txs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\t%s\n", tx.ID, tx.Date, tx.Kind, tx.Category, tx.Amount, tx.Description)
	}
	return w.Flush()
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, usageErrorf("invalid id %q", raw)
	}
	return id, nil
}
