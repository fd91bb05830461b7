package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewWorkersCmd создаёт группу команд для наблюдения за пулом.
func NewWorkersCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "Inspect the worker pool",
	}

	cmd.AddCommand(newWorkersShowCmd(clientFn, outputFn))

	return cmd
}

func newWorkersShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show pool state and per-worker statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pool, err := client.GetPool()
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pool: %d workers, %d retired, initialized=%t",
				pool.PoolSize, pool.RetiredWorkers, pool.Initialized))

			headers := []string{"INDEX", "STATE", "COMPLETED", "FAILED", "CRASHES", "SUCCESS", "P50_MS", "P95_MS"}
			rows := make([][]string, len(pool.Workers))
			for i, w := range pool.Workers {
				rows[i] = []string{
					strconv.Itoa(w.Index),
					w.State,
					strconv.FormatInt(w.CompletedBatches, 10),
					strconv.FormatInt(w.FailedBatches, 10),
					strconv.FormatInt(w.Crashes, 10),
					fmt.Sprintf("%.2f", w.SuccessRate),
					strconv.FormatInt(w.LatencyP50Ms, 10),
					strconv.FormatInt(w.LatencyP95Ms, 10),
				}
			}

			out.Print(headers, rows, pool)
			return nil
		},
	}
}
