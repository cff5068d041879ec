package cli

import (
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the named query templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFromCmd(cmd)

			var resp struct {
				Templates []struct {
					Name   string   `json:"name"`
					Params []string `json:"params"`
				} `json:"templates"`
			}
			if err := client.DoJSON(http.MethodGet, "/templates", nil, nil, &resp); err != nil {
				return err
			}

			if getOutputFormat(cmd) == outputJSON {
				return PrintJSON(cmd.OutOrStdout(), resp)
			}

			rows := make([][]string, 0, len(resp.Templates))
			for _, t := range resp.Templates {
				rows = append(rows, []string{t.Name, strings.Join(t.Params, ", ")})
			}
			PrintTable(cmd.OutOrStdout(), []string{"name", "params"}, rows)
			return nil
		},
	}
}
