package cli

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

type executePayload struct {
	GeneratedSQL string `json:"generatedSQL"`
	Filename     string `json:"filename,omitempty"`
}

type executeResult struct {
	ExecutionID     string          `json:"executionId"`
	Status          string          `json:"status"`
	Columns         []string        `json:"columns"`
	RowCount        int             `json:"rowCount"`
	ExecutionTimeMs int64           `json:"executionTimeMs"`
	Data            [][]interface{} `json:"data"`
	Metadata        struct {
		RLSEnforced     bool `json:"rlsEnforced"`
		RowLimitApplied bool `json:"rowLimitApplied"`
	} `json:"metadata"`
}

func newExecuteCmd() *cobra.Command {
	var (
		sqlFlag  string
		filename string
	)

	cmd := &cobra.Command{
		Use:   "execute [file]",
		Short: "Run a validated query against the warehouse",
		Long: `Run a query through the gateway's execute surface. The text is
re-validated, bounded, and audited server-side, so the usual input is the
rewritten SQL that scout submit printed. Requires a token.`,
		Example: `  scout submit --sql 'SELECT region FROM gold.v_transactions_flat' -o json \
    | jq -r .sql | scout execute -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlText, defaultName, err := readQueryText(cmd, args, sqlFlag)
			if err != nil {
				return err
			}
			if filename == "" {
				filename = defaultName
			}

			client := clientFromCmd(cmd)
			resp, err := client.Do(http.MethodPost, "/queries/execute", nil, executePayload{
				GeneratedSQL: sqlText,
				Filename:     filename,
			})
			if err != nil {
				return err
			}
			if err := CheckError(resp); err != nil {
				return err
			}
			data, err := ReadBody(resp)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == outputJSON {
				var raw interface{}
				if err := json.Unmarshal(data, &raw); err != nil {
					return fmt.Errorf("parse response: %w", err)
				}
				return PrintJSON(cmd.OutOrStdout(), raw)
			}

			var res executeResult
			if err := json.Unmarshal(data, &res); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			w := cmd.OutOrStdout()
			rows := make([][]string, 0, len(res.Data))
			for _, rec := range res.Data {
				row := make([]string, len(res.Columns))
				for i := range res.Columns {
					if i < len(rec) {
						row[i] = FormatValue(rec[i])
					}
				}
				rows = append(rows, row)
			}
			PrintTable(w, res.Columns, rows)

			fmt.Fprintf(w, "\n%d rows in %dms", res.RowCount, res.ExecutionTimeMs)
			if res.Metadata.RowLimitApplied {
				fmt.Fprint(w, ", row limit applied")
			}
			if res.Metadata.RLSEnforced {
				fmt.Fprint(w, ", row-level security enforced")
			}
			fmt.Fprintf(w, " (execution %s)\n", res.ExecutionID)
			return nil
		},
	}

	cmd.Flags().StringVar(&sqlFlag, "sql", "", "query text given inline")
	cmd.Flags().StringVar(&filename, "filename", "", "filename recorded in the audit trail")
	return cmd
}
