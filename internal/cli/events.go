package cli

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// NewEventsCmd создаёт команду, печатающую поток уведомлений.
func NewEventsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var kinds []string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow coordinator notifications until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return client.StreamEvents(ctx, kinds, func(n Notification) {
				if out.jsonMode {
					out.JSON(map[string]any{"kind": n.Kind, "data": n.Data})
					return
				}
				out.Line("%-10s %s", n.Kind, formatFields(n.Data))
			})
		},
	}

	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "Notification kinds to show (started, finished, notice, ...)")

	return cmd
}

// formatFields печатает поля уведомления как key=value в порядке ключей.
func formatFields(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, data[k])
	}
	return strings.Join(parts, " ")
}
