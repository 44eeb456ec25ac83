// ABOUTME: ledger-admin category and payment method commands
// ABOUTME: Lists the registries and adds or removes entries

package cmd

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/2389/ledger-gateway/internal/gateway"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List categories",
	RunE:  listNames("/api/categories", "No categories."),
}

var categoryAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a category",
	Args:  cobra.ExactArgs(1),
	RunE:  manageCategory("add"),
}

var categoryDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a category",
	Args:  cobra.ExactArgs(1),
	RunE:  manageCategory("delete"),
}

var methodsCmd = &cobra.Command{
	Use:     "methods",
	Aliases: []string{"payment-methods"},
	Short:   "List payment methods",
	RunE:    listNames("/api/payment-methods", "No payment methods."),
}

var methodAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a payment method",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClientFromFlags()
		var resp gateway.OutcomeResponse
		req := gateway.PaymentMethodRequest{Name: args[0]}
		if err := c.send(cmd.Context(), http.MethodPost, "/api/payment-methods", req, &resp); err != nil {
			return err
		}
		return reportOutcome(resp.Result, "Added payment method "+args[0])
	},
}

var methodDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a payment method",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClientFromFlags()
		var resp gateway.OutcomeResponse
		path := "/api/payment-methods/" + url.PathEscape(args[0])
		if err := c.send(cmd.Context(), http.MethodDelete, path, nil, &resp); err != nil {
			return err
		}
		return reportOutcome(resp.Result, "Deleted payment method "+args[0])
	},
}

func init() {
	categoriesCmd.AddCommand(categoryAddCmd, categoryDeleteCmd)
	methodsCmd.AddCommand(methodAddCmd, methodDeleteCmd)
	rootCmd.AddCommand(categoriesCmd, methodsCmd)
}

func listNames(path, empty string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		c := newClientFromFlags()
		var names []string
		if err := c.get(cmd.Context(), path, nil, &names); err != nil {
			return err
		}
		if flagJSON {
			return printJSON(names)
		}
		if len(names) == 0 {
			fmt.Println("  " + empty)
			return nil
		}
		for _, n := range names {
			fmt.Println("  " + n)
		}
		return nil
	}
}

func manageCategory(action string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c := newClientFromFlags()
		var resp gateway.OutcomeResponse
		req := gateway.CategoryRequest{Name: args[0], Action: action}
		if err := c.send(cmd.Context(), http.MethodPost, "/api/categories", req, &resp); err != nil {
			return err
		}
		verb := "Added"
		if action == "delete" {
			verb = "Deleted"
		}
		return reportOutcome(resp.Result, verb+" category "+args[0])
	}
}
