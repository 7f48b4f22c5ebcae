package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"CuboTrack/internal/api"
	"CuboTrack/internal/model"

	"github.com/spf13/cobra"
)

var assignCmd = &cobra.Command{
	Use:   "assign NAME",
	Short: "Set the operator of the next session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")
		return withClient(cmd.Context(), func(ctx context.Context, c *api.Client) error {
			resp, err := c.SetPending(ctx, name)
			if err != nil {
				return err
			}
			fmt.Printf("Next operator: %s\n", resp.Operator)
			return nil
		})
	},
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Close the active session (use when the STOP was lost)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, c *api.Client) error {
			resp, err := c.Finalize(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Finalized session of %s. %s\n", resp.FinalizedOperator, resp.Message)
			if !resp.OK {
				return errorString(resp.Error)
			}
			return nil
		})
	},
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Rebuild the reports now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, c *api.Client) error {
			resp, err := c.Regenerate(ctx)
			if err != nil {
				return err
			}
			if resp.RunID != "" {
				fmt.Printf("%s (run %s)\n", resp.Message, resp.RunID)
			} else {
				fmt.Println(resp.Message)
			}
			return nil
		})
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the pending, active and last operator",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, c *api.Client) error {
			resp, err := c.GetState(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Pending: %s\n", dash(resp.PendingOperator))
			fmt.Printf("Active:  %s\n", dash(resp.ActiveOperator))
			fmt.Printf("Last:    %s\n", dash(resp.LastOperator))
			return nil
		})
	},
}

var (
	tailAfter    int
	tailFollow   bool
	tailInterval time.Duration
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print device events as they are attributed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LINE\tDT\tEVENT\tUSER\tSESSION\tMODE\tOK\tERR")
		tw.Flush()

		after := tailAfter
		for {
			err := withClient(ctx, func(ctx context.Context, c *api.Client) error {
				resp, err := c.Tail(ctx, after, 0)
				if err != nil {
					return err
				}
				for _, r := range resp.Items {
					printRecord(tw, r)
				}
				tw.Flush()
				after = resp.NextAfter
				return nil
			})
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if !tailFollow {
				return nil
			}

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(tailInterval):
			}
		}
	},
}

func init() {
	tailCmd.Flags().IntVar(&tailAfter, "after", 0, "only show lines after this line number")
	tailCmd.Flags().BoolVarP(&tailFollow, "follow", "f", false, "keep polling for new lines")
	tailCmd.Flags().DurationVar(&tailInterval, "interval", time.Second, "poll interval with --follow")
}

func printRecord(tw *tabwriter.Writer, r *model.Record) {
	event := string(r.Kind)
	if event == "" {
		event = r.Label("raw")
	}
	session := "-"
	if r.Session >= 0 {
		session = fmt.Sprint(r.Session)
	}
	fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		r.Line, dash(r.DT), dash(event), dash(r.Operator), session, dash(r.Mode),
		dash(r.Label("ok_total")), dash(r.Label("err_total")))
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
