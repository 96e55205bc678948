package main

import (
	"os"

	"github.com/spf13/cobra"
)

// @title bes-loan API
// @version 1.0
// @description Loan and payment services. Payments settle against the loan ledger and are reconciled when a call fails.

// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "bes-loan",
		Short:        "bes-loan services: auth, loan, payment and the gateway",
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newReconcileCmd())
	return root
}
