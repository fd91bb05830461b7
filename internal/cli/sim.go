package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewSimCmd создаёт группу команд для управления симуляциями.
func NewSimCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Manage simulations",
	}

	cmd.AddCommand(
		newSimStartCmd(clientFn, outputFn),
		newSimListCmd(clientFn, outputFn),
		newSimShowCmd(clientFn, outputFn),
		newSimResultsCmd(clientFn, outputFn),
		newSimCancelCmd(clientFn, outputFn),
		newSimWatchCmd(clientFn, outputFn),
	)

	return cmd
}

func jobHeaders() []string {
	return []string{"ID", "STATUS", "RUNS", "COMPLETED", "CREATED"}
}

func jobRow(j JobResponse) []string {
	return []string{
		j.ID,
		j.Status,
		strconv.Itoa(j.RunCount),
		strconv.Itoa(j.Completed),
		j.CreatedAt,
	}
}

// readJSONInput читает JSON из файла или трактует аргумент как inline JSON.
func readJSONInput(arg string) (json.RawMessage, error) {
	if arg == "" {
		return nil, nil
	}

	if _, err := os.Stat(arg); err == nil {
		data, err := os.ReadFile(arg)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", arg, err)
		}
		return data, nil
	}

	if !json.Valid([]byte(arg)) {
		return nil, fmt.Errorf("%q is neither a file nor valid JSON", arg)
	}
	return json.RawMessage(arg), nil
}

func newSimStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var runs int
	var events string
	var engineConfig string

	cmd := &cobra.Command{
		Use:   "start STATE",
		Short: "Start a simulation (STATE is a JSON file or inline JSON)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			state, err := readJSONInput(args[0])
			if err != nil {
				return err
			}
			eventsJSON, err := readJSONInput(events)
			if err != nil {
				return err
			}
			configJSON, err := readJSONInput(engineConfig)
			if err != nil {
				return err
			}

			job, err := client.CreateSimulation(CreateSimulationRequest{
				InitialState: state,
				Events:       eventsJSON,
				Config:       configJSON,
				RunCount:     runs,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Simulation started: %s", job.ID))
			out.Print(jobHeaders(), [][]string{jobRow(*job)}, job)
			return nil
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 100, "Number of independent runs")
	cmd.Flags().StringVar(&events, "events", "", "Events (JSON file or inline JSON)")
	cmd.Flags().StringVar(&engineConfig, "config", "", "Engine config (JSON file or inline JSON)")

	return cmd
}

func newSimListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List simulations",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			jobs, err := client.ListSimulations()
			if err != nil {
				return err
			}

			rows := make([][]string, len(jobs))
			for i, j := range jobs {
				rows[i] = jobRow(j)
			}

			out.Print(jobHeaders(), rows, jobs)
			return nil
		},
	}
}

func newSimShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show simulation status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetSimulation(args[0])
			if err != nil {
				return err
			}

			out.Print(jobHeaders(), [][]string{jobRow(*job)}, job)
			if job.Error != "" {
				out.Error(job.Error)
			}
			return nil
		},
	}
}

func newSimResultsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "results ID",
		Short: "Fetch results of a finished simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			results, err := client.GetResults(args[0])
			if err != nil {
				return err
			}

			records := results.Records
			if failedOnly {
				filtered := records[:0:0]
				for _, rec := range records {
					if !rec.Succeeded {
						filtered = append(filtered, rec)
					}
				}
				records = filtered
			}

			headers := []string{"RUN", "SUCCEEDED", "ERROR"}
			rows := make([][]string, len(records))
			for i, rec := range records {
				rows[i] = []string{
					strconv.Itoa(rec.RunIndex),
					strconv.FormatBool(rec.Succeeded),
					rec.Error,
				}
			}

			out.Print(headers, rows, records)
			return nil
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Show only failed runs")

	return cmd
}

func newSimCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a running simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.CancelSimulation(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Cancellation requested: %s", job.ID))
			out.Print(jobHeaders(), [][]string{jobRow(*job)}, job)
			return nil
		},
	}
}

func newSimWatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch ID",
		Short: "Poll a simulation until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			for {
				job, err := client.GetSimulation(args[0])
				if err != nil {
					return err
				}

				out.Success(fmt.Sprintf("%s: %d/%d", job.Status, job.Completed, job.RunCount))

				switch job.Status {
				case "SUCCEEDED", "PARTIAL", "FAILED", "CANCELLED":
					out.Print(jobHeaders(), [][]string{jobRow(*job)}, job)
					return nil
				}

				time.Sleep(interval)
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval")

	return cmd
}
