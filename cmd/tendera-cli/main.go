// Tendera CLI — инструмент командной строки для управления
// порталами, сканированиями и workflows через HTTP API.
//
// Использование:
//
//	tendera [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	portal    Управление порталами
//	scan      Запуск и наблюдение за сканированиями
//	rfp       Просмотр найденных RFP и подача заявок
//	workflow  Управление workflows
//	schedule  Управление расписаниями
//	state     Сводная статистика системы
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Tendera/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "tendera",
		Short:         "Tendera CLI — procurement automation tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewPortalCmd(clientFn, outputFn),
		cli.NewScanCmd(clientFn, outputFn),
		cli.NewRFPCmd(clientFn, outputFn),
		cli.NewWorkflowCmd(clientFn, outputFn),
		cli.NewScheduleCmd(clientFn, outputFn),
		cli.NewStateCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
