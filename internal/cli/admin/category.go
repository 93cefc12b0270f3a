package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quorumworks/logbook/internal/domain"
	"github.com/quorumworks/logbook/internal/repository"
	"github.com/spf13/cobra"
)

func CategoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage categories",
		Long:  "Inspect the category tree documents are classified against",
	}

	cmd.AddCommand(CategoryListCmd())

	return cmd
}

func CategoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the category tree",
		Long:  "List all categories as a tree of roots and children",
		RunE:  runCategoryList,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runCategoryList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	categoryRepo := repository.NewCategoryRepository(pool)
	categories, err := categoryRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}

	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(categories, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	children := make(map[string][]*domain.Category)
	var roots []*domain.Category
	for _, c := range categories {
		if c.ParentID == "" {
			roots = append(roots, c)
		} else {
			children[c.ParentID] = append(children[c.ParentID], c)
		}
	}

	for _, root := range roots {
		fmt.Printf("%s (%s)\n", root.Name, root.ID)
		for _, child := range children[root.ID] {
			fmt.Printf("  %s (%s)\n", child.Name, child.ID)
		}
	}

	return nil
}
