package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для просмотра runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Browse recorded runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunDocumentsCmd(clientFn, outputFn),
	)

	return cmd
}

var runHeaders = []string{"UID", "SCAN_ID", "PLAN", "STATUS", "STARTED", "DURATION"}

func runRow(r RunResponse) []string {
	duration := ""
	if r.FinishedAt != "" {
		duration = fmt.Sprintf("%.1fs", r.DurationSec)
	}
	return []string{r.UID, strconv.Itoa(r.ScanID), r.PlanName, r.Status, r.StartedAt, duration}
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListRunsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = runRow(r)
			}

			out.Print(runHeaders, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Plan, "plan", "", "Filter by plan name")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (RUNNING, SUCCEEDED, ABORTED, FAILED)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Number of results to skip")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show UID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Print(
				append(runHeaders, "EXIT", "REASON"),
				[][]string{append(runRow(*run), run.ExitStatus, run.Reason)},
				run,
			)
			return nil
		},
	}
}

func newRunDocumentsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "documents UID",
		Short: "List lifecycle documents of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			docs, err := client.ListDocuments(args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(docs))
			for i, d := range docs {
				rows[i] = []string{strconv.Itoa(i + 1), d.Name, bodyKeys(d.Body)}
			}

			out.Print([]string{"#", "NAME", "FIELDS"}, rows, docs)
			return nil
		},
	}
}

// bodyKeys возвращает отсортированные ключи документа.
func bodyKeys(body map[string]any) string {
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}
