package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brewlog/brewsync/internal/models"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the recipe list (local snapshot when offline)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			recipes := a.reconciler.Recipes()
			if a.monitor.ForceCheck().ServerOnline {
				if fresh, err := a.client.ListRecipes(cmd.Context()); err == nil {
					if err := a.store.SaveRecipes(fresh); err == nil {
						recipes = fresh
					}
				}
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tORIGIN\tDESCRIPTION")
			for _, r := range recipes {
				id := strconv.FormatInt(r.ID, 10)
				if models.IsPlaceholder(r.ID) {
					id += " (pending)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, r.Name, r.Origin.Name, r.Description)
			}
			return w.Flush()
		},
	}
}

func newAddCmd() *cobra.Command {
	var origin, description string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a recipe, queued locally when offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			a.monitor.ForceCheck()

			recipe, err := a.reconciler.Add(cmd.Context(), models.RecipePayload{
				Name:        args[0],
				Origin:      models.Origin{Name: origin},
				Description: description,
			})
			if err != nil {
				return err
			}
			if models.IsPlaceholder(recipe.ID) {
				fmt.Printf("queued %q for sync (local id %d)\n", recipe.Name, recipe.ID)
			} else {
				fmt.Printf("created %q (id %d)\n", recipe.Name, recipe.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&origin, "origin", "o", "", "coffee origin name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "recipe description")
	return cmd
}

func newEditCmd() *cobra.Command {
	var origin, description, name string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Update a recipe, queued locally when offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid recipe id %q", args[0])
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			a.monitor.ForceCheck()

			recipe, err := a.reconciler.Edit(cmd.Context(), id, models.RecipePayload{
				Name:        name,
				Origin:      models.Origin{Name: origin},
				Description: description,
			})
			if err != nil {
				return err
			}
			fmt.Printf("updated %q (id %d)\n", recipe.Name, recipe.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "recipe name")
	cmd.Flags().StringVarP(&origin, "origin", "o", "", "coffee origin name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "recipe description")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recipe, queued locally when offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid recipe id %q", args[0])
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			a.monitor.ForceCheck()

			if err := a.reconciler.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("deleted recipe %d\n", id)
			return nil
		},
	}
}
