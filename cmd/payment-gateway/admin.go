package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"payment-gateway/internal/breaker"
	"payment-gateway/internal/config"
	"payment-gateway/internal/queue"

	"github.com/spf13/cobra"
)

func printStates(states ...breaker.CircuitBreakerState) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATE\tOPENED AT")
	for _, s := range states {
		opened := "-"
		if s.OpenedAt != nil {
			opened = s.OpenedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.State, opened)
	}
	tw.Flush()
}

func newBreakersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breakers",
		Short: "Show the shared circuit breaker state of every processor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			printStates(e.breakers().List(cmd.Context(), []string{config.ProcessorDefault, config.ProcessorFallback})...)
			return nil
		},
	}

	cmd.AddCommand(
		breakerOverride("reset", "Force a processor's breaker to CLOSED", (*breaker.Store).Reset),
		breakerOverride("trip", "Force a processor's breaker to OPEN", (*breaker.Store).Trip),
	)
	return cmd
}

type overrideFunc func(*breaker.Store, context.Context, string) (breaker.CircuitBreakerState, error)

func breakerOverride(use, short string, apply overrideFunc) *cobra.Command {
	return &cobra.Command{
		Use:       use + " NAME",
		Short:     short,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{config.ProcessorDefault, config.ProcessorFallback},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if name != config.ProcessorDefault && name != config.ProcessorFallback {
				return fmt.Errorf("unknown processor %q", name)
			}

			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			state, err := apply(e.breakers(), cmd.Context(), name)
			if err != nil {
				return err
			}
			printStates(state)
			return nil
		},
	}
}

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the pending payments queue",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "len",
		Short: "Print the number of pending and dead-lettered payments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			q := queue.NewPaymentQueue(e.rc)
			pending, err := q.Len(cmd.Context())
			if err != nil {
				return err
			}
			dead, err := q.DeadLetterLen(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("pending: %d\ndead: %d\n", pending, dead)
			return nil
		},
	})
	return cmd
}
