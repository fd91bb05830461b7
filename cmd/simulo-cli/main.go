// Simulo CLI — инструмент командной строки для запуска симуляций
// и наблюдения за пулом воркеров через HTTP API.
//
// Использование:
//
//	simulo [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	sim      Управление симуляциями
//	workers  Наблюдение за пулом воркеров
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Simulo/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "simulo",
		Short:         "Simulo CLI — simulation dispatcher tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewSimCmd(clientFn, outputFn),
		cli.NewWorkersCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
