package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"bes-loan/internal/config"

	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Inspect and retry payments the loan ledger has not confirmed",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run one reconciliation pass over pending payments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPaymentStack(func(stack *paymentStack) error {
				report, err := stack.reconcile.ReconcileOnce(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, report)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending and rejected payments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPaymentStack(func(stack *paymentStack) error {
				unsettled, err := stack.reconcile.FindUnsettledPayments(cmd.Context())
				if err != nil {
					return err
				}
				for _, u := range unsettled {
					cmd.Printf("%d\tloan=%d\t%s\t%s\tattempts=%d\t%s\n",
						u.Payment.ID, u.Payment.LoanID, u.Payment.Amount.StringFixed(2),
						u.Settlement.Status, u.Settlement.Attempts, u.Settlement.LastErrorKind)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "retry <payment-id>",
		Short: "Retry one payment, including a rejected one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid payment id: %q", args[0])
			}
			return withPaymentStack(func(stack *paymentStack) error {
				outcome, err := stack.reconcile.ReconcilePayment(cmd.Context(), uint(id))
				if err != nil {
					return err
				}
				out := map[string]interface{}{
					"payment_id":      outcome.Payment.ID,
					"status":          outcome.Status,
					"failure_kind":    outcome.FailureKind,
					"failure_message": outcome.FailureMessage,
				}
				if outcome.Settlement != nil {
					out["settlement"] = outcome.Settlement.Status
					out["attempts"] = outcome.Settlement.Attempts
				}
				return printJSON(cmd, out)
			})
		},
	})

	return cmd
}

// withPaymentStack opens the payment store for one CLI command
func withPaymentStack(fn func(*paymentStack) error) error {
	cfg, log, err := bootstrap(config.ServicePayment)
	if err != nil {
		return err
	}

	db, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = config.CloseDatabase(db) }()

	return fn(newPaymentStack(cfg, db, newAccessGate(cfg), log))
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
