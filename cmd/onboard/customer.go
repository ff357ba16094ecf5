package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/onboard/internal/types"
)

var (
	customerName  string
	customerEmail string
)

var customerCmd = &cobra.Command{
	Use:   "customer",
	Short: "Manage customers",
}

var customerCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a customer",
	Args:  cobra.NoArgs,
	RunE:  runCustomerCreate,
}

var customerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List customers",
	Args:  cobra.NoArgs,
	RunE:  runCustomerList,
}

func init() {
	customerCreateCmd.Flags().StringVar(&customerName, "name", "", "Customer name (required)")
	customerCreateCmd.Flags().StringVar(&customerEmail, "email", "", "Contact email")
	customerCreateCmd.MarkFlagRequired("name")

	customerCmd.AddCommand(customerCreateCmd)
	customerCmd.AddCommand(customerListCmd)
}

func runCustomerCreate(cmd *cobra.Command, args []string) error {
	_, c, err := loadClient(cmd)
	if err != nil {
		return err
	}

	cust, err := c.CreateCustomer(cmd.Context(), types.NewCustomer{
		Name:         customerName,
		ContactEmail: customerEmail,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), cust)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created customer %q (id: %s)\n", cust.Name, cust.ID)
	return nil
}

func runCustomerList(cmd *cobra.Command, args []string) error {
	_, c, err := loadClient(cmd)
	if err != nil {
		return err
	}

	customers, err := c.ListCustomers(cmd.Context())
	if err != nil {
		return fmt.Errorf("list customers: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"customers": customers,
			"total":     len(customers),
		})
	}

	if len(customers) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No customers found.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tCREATED")
	for _, cu := range customers {
		email := cu.ContactEmail
		if email == "" {
			email = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", cu.ID, cu.Name, email, cu.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}
