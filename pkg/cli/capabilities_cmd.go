package cli

import (
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

func newCapabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Show what SQL the submit surface accepts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFromCmd(cmd)

			var caps map[string]interface{}
			if err := client.DoJSON(http.MethodGet, "/capabilities", nil, nil, &caps); err != nil {
				return err
			}

			if getOutputFormat(cmd) == outputJSON {
				return PrintJSON(cmd.OutOrStdout(), caps)
			}

			w := cmd.OutOrStdout()
			PrintDetail(w, map[string]string{
				"policy":     ExtractField(caps, "policy"),
				"max length": ExtractField(caps, "max_length"),
				"row cap":    ExtractField(caps, "max_top"),
			})

			printNameList(w, "Allowed tables", caps["allowed_tables"])
			printNameList(w, "Allowed functions", caps["allowed_functions"])

			if example := ExtractField(caps, "example"); example != "" {
				fmt.Fprintf(w, "\nExample:\n  %s\n", example)
			}
			return nil
		},
	}
}

func printNameList(w io.Writer, title string, v interface{}) {
	items, ok := v.([]interface{})
	if !ok || len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  %s\n", FormatValue(it))
	}
}
