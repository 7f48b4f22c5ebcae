package main

import (
	"context"
	"time"

	"CuboTrack/internal/api"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/status"
)

var (
	serverAddr string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "cuboctl",
	Short: "Operate a CuboTrack server",
	Long: `cuboctl follows the device event log and manages operator attribution
on a running cubo-api through its gRPC interface.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "127.0.0.1:8001", "gRPC address of cubo-api")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "per-call timeout")

	// Add subcommands (alphabetical)
	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(finalizeCmd)
	rootCmd.AddCommand(regenerateCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(tailCmd)
}

// withClient dials the server and runs fn with a bounded context.
func withClient(ctx context.Context, fn func(ctx context.Context, c *api.Client) error) error {
	c, err := api.NewClient(serverAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := fn(ctx, c); err != nil {
		if s, ok := status.FromError(err); ok {
			return errorString(s.Message())
		}
		return err
	}
	return nil
}

type errorString string

func (e errorString) Error() string { return string(e) }
