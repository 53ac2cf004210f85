package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewPlanCmd создаёт группу команд для работы с планами.
func NewPlanCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Browse and submit plans",
	}

	cmd.AddCommand(
		newPlanListCmd(clientFn, outputFn),
		newPlanShowCmd(clientFn, outputFn),
		newPlanSubmitCmd(clientFn, outputFn),
	)

	return cmd
}

func newPlanListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			plans, err := client.ListPlans()
			if err != nil {
				return err
			}

			rows := make([][]string, len(plans))
			for i, p := range plans {
				rows[i] = []string{p.Name, p.Source, fmt.Sprintf("%d", len(p.Parameters)), p.Description}
			}

			out.Print([]string{"NAME", "SOURCE", "PARAMS", "DESCRIPTION"}, rows, plans)
			return nil
		},
	}
}

func newPlanShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show plan parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			plan, err := client.GetPlan(args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(plan.Parameters))
			for i, p := range plan.Parameters {
				def := ""
				if p.Default != nil {
					def = fmt.Sprint(p.Default)
				}
				required := ""
				if p.Required {
					required = "yes"
				}
				rows[i] = []string{p.Name, p.Type, def, required, strings.Join(p.Choices, "|"), p.Title}
			}

			out.Print([]string{"PARAM", "TYPE", "DEFAULT", "REQUIRED", "CHOICES", "TITLE"}, rows, plan)
			return nil
		},
	}
}

func newPlanSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var priority int
	var params []string
	var metadata []string

	cmd := &cobra.Command{
		Use:   "submit NAME",
		Short: "Submit a plan to the queue",
		Long: `Submit a plan to the run queue.

Values are parsed as YAML scalars or flow sequences:
  --param num=5 --param positions=[0,0.5,1] --meta sample_name=LaB6`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := SubmitRequest{}
			var err error
			if req.Parameters, err = parseValues(params); err != nil {
				return err
			}
			if req.Metadata, err = parseValues(metadata); err != nil {
				return err
			}
			if cmd.Flags().Changed("priority") {
				req.Priority = &priority
			}

			resp, err := client.SubmitPlan(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Plan queued: %s", resp.Plan))
			out.Print(
				[]string{"SUBMISSION_ID", "PLAN"},
				[][]string{{resp.SubmissionID, resp.Plan}},
				resp,
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&priority, "priority", 1, "Queue priority (lower runs first)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Plan parameter as KEY=VALUE (repeatable)")
	cmd.Flags().StringArrayVar(&metadata, "meta", nil, "Run metadata as KEY=VALUE (repeatable)")

	return cmd
}

// parseValues разбирает пары KEY=VALUE. Значение читается как YAML,
// поэтому числа, bool и списки получают свой тип.
func parseValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	values := make(map[string]any, len(pairs))
	for _, kv := range pairs {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid value %q, expected KEY=VALUE", kv)
		}

		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
			v = raw
		}
		values[key] = v
	}
	return values, nil
}
