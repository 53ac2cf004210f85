package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewEngineCmd создаёт группу команд управления движком.
func NewEngineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Inspect and control the run engine",
	}

	var deferred bool
	pause := newEngineControlCmd(clientFn, outputFn, "pause", "Pause the running plan",
		func(c *Client, _ string) (*EngineResponse, error) { return c.Pause(deferred) })
	pause.Flags().BoolVar(&deferred, "defer", false, "Pause at the next checkpoint")

	cmd.AddCommand(
		newEngineStatusCmd(clientFn, outputFn),
		pause,
		newEngineControlCmd(clientFn, outputFn, "resume", "Resume a paused plan",
			func(c *Client, _ string) (*EngineResponse, error) { return c.Resume() }),
		newEngineControlCmd(clientFn, outputFn, "abort", "Abort the running plan",
			(*Client).Abort),
		newEngineControlCmd(clientFn, outputFn, "stop", "Stop the running plan, marking the run successful",
			(*Client).Stop),
	)

	return cmd
}

func newEngineStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show engine state and queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.EngineStatus()
			if err != nil {
				return err
			}

			printEngine(out, status)
			return nil
		},
	}
}

func newEngineControlCmd(
	clientFn func() *Client,
	outputFn func() *Output,
	use, short string,
	action func(c *Client, reason string) (*EngineResponse, error),
) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := action(client, reason)
			if err != nil {
				return err
			}

			out.Success("Engine " + status.State)
			return nil
		},
	}

	if use == "abort" || use == "stop" {
		cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in the stop document")
	}

	return cmd
}

func printEngine(out *Output, status *EngineResponse) {
	if out.jsonMode {
		out.JSON(status)
		return
	}

	out.Line("State: %s  Queue: %d  Idle: %t", status.State, status.Pending, status.Idle)
	if len(status.Queue) == 0 {
		return
	}

	rows := make([][]string, len(status.Queue))
	for i, p := range status.Queue {
		rows[i] = []string{strconv.Itoa(i + 1), p.Plan, strconv.Itoa(p.Priority), p.ID, p.SubmittedAt}
	}
	out.Table([]string{"#", "PLAN", "PRIORITY", "SUBMISSION_ID", "SUBMITTED"}, rows)
}
