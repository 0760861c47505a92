package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/SudharsunRavi/etracker-drive/internal/app"
	"github.com/SudharsunRavi/etracker-drive/internal/config"
	"github.com/SudharsunRavi/etracker-drive/internal/storage"
)

func newCategoryCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Category operations",
		Example: "  etracker category list\n" +
			"  etracker category add --name Groceries --kind expense",
	}
	cmd.AddCommand(
		newCategoryAddCommand(deps),
		newCategoryListCommand(deps),
		newCategoryEditCommand(deps),
		newCategoryRemoveCommand(deps),
	)
	return cmd
}

func newCategoryAddCommand(deps commandDeps) *cobra.Command {
	var (
		name string
		kind string
	)

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add a category",
		Example: "  etracker category add --name Groceries --kind expense",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("category add does not accept positional arguments")
			}
			return withService(cmd.Context(), deps, func(ctx context.Context, service *app.Service, _ config.Config) error {
				category, err := service.AddCategory(ctx, app.AddCategoryRequest{Name: name, Kind: kind})
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, category)
				}
				_, err = fmt.Fprintf(deps.out, "added category %d\n", category.ID)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Category name")
	cmd.Flags().StringVar(&kind, "kind", "expense", "Category kind (income or expense)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newCategoryListCommand(deps commandDeps) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Example: "  etracker category list\n" +
			"  etracker category list --kind income",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("category list does not accept positional arguments")
			}
			return withService(cmd.Context(), deps, func(ctx context.Context, service *app.Service, _ config.Config) error {
				categories, err := service.ListCategories(ctx, kind)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, categories)
				}
				return writeCategoryTable(deps, categories)
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Filter by kind")
	return cmd
}

func newCategoryEditCommand(deps commandDeps) *cobra.Command {
	var (
		name string
		kind string
	)

	cmd := &cobra.Command{
		Use:     "edit <id>",
		Short:   "Rename or rekind a category",
		Example: "  etracker category edit 3 --name Dining --kind expense",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd.Context(), deps, func(ctx context.Context, service *app.Service, _ config.Config) error {
				if err := service.UpdateCategory(ctx, app.UpdateCategoryRequest{ID: id, Name: name, Kind: kind}); err != nil {
					return err
				}
				_, err := fmt.Fprintf(deps.out, "updated category %d\n", id)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New category name")
	cmd.Flags().StringVar(&kind, "kind", "", "New category kind")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func newCategoryRemoveCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Short:   "Delete a category (transaction labels are kept)",
		Example: "  etracker category rm 3",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd.Context(), deps, func(ctx context.Context, service *app.Service, _ config.Config) error {
				if err := service.DeleteCategory(ctx, id); err != nil {
					return err
				}
				_, err := fmt.Fprintf(deps.out, "deleted category %d\n", id)
				return err
			})
		},
	}
}

func writeCategoryTable(deps commandDeps, categories []storage.Category) error {
	w := tabwriter.NewWriter(deps.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKIND")
	for _, category := range categories {
		fmt.Fprintf(w, "%d\t%s\t%s\n", category.ID, category.Name, category.Kind)
	}
	return w.Flush()
}
