package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var auditListColumns = []string{"execution_id", "client_id", "status", "violation_kind", "row_count", "created_at"}

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read the audit trail (admin role required)",
	}
	cmd.AddCommand(
		newAuditListCmd(),
		newAuditGetCmd(),
	)
	return cmd
}

func newAuditListCmd() *cobra.Command {
	var (
		clientID   string
		status     string
		since      string
		until      string
		maxResults int
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if clientID != "" {
				query.Set("client_id", clientID)
			}
			if status != "" {
				query.Set("status", status)
			}
			for _, ts := range []struct{ name, val string }{{"since", since}, {"until", until}} {
				if ts.val == "" {
					continue
				}
				if _, err := time.Parse(time.RFC3339, ts.val); err != nil {
					return fmt.Errorf("--%s must be RFC3339, like 2026-08-23T00:00:00Z: %w", ts.name, err)
				}
				query.Set(ts.name, ts.val)
			}
			if maxResults > 0 {
				query.Set("max_results", strconv.Itoa(maxResults))
			}

			client := clientFromCmd(cmd)
			w := cmd.OutOrStdout()

			if all {
				records, err := FetchAllRecords(client, "/audit/records", query)
				if err != nil {
					return err
				}
				items := make([]interface{}, 0, len(records))
				for _, rec := range records {
					var obj map[string]interface{}
					if err := json.Unmarshal(rec, &obj); err != nil {
						return fmt.Errorf("parse response: %w", err)
					}
					items = append(items, obj)
				}
				if getOutputFormat(cmd) == outputJSON {
					return PrintJSON(w, items)
				}
				payload := map[string]interface{}{"records": items}
				PrintTable(w, auditListColumns, ExtractRows(payload, "records", auditListColumns))
				fmt.Fprintf(w, "\n%d records\n", len(items))
				return nil
			}

			var page map[string]interface{}
			if err := client.DoJSON(http.MethodGet, "/audit/records", query, nil, &page); err != nil {
				return err
			}
			if getOutputFormat(cmd) == outputJSON {
				return PrintJSON(w, page)
			}

			PrintTable(w, auditListColumns, ExtractRows(page, "records", auditListColumns))
			if total := ExtractField(page, "total_count"); total != "" {
				fmt.Fprintf(w, "\nTotal: %s\n", total)
			}
			if ExtractField(page, "next_page_token") != "" {
				fmt.Fprintln(w, "More records available, rerun with --all")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client", "", "filter by client key")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (submitted, success, rejected, error, timeout)")
	cmd.Flags().StringVar(&since, "since", "", "only records created at or after this RFC3339 time")
	cmd.Flags().StringVar(&until, "until", "", "only records created before this RFC3339 time")
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "page size (server default 50)")
	cmd.Flags().BoolVar(&all, "all", false, "follow pagination and fetch every matching record")
	return cmd
}

func newAuditGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <execution-id>",
		Short: "Show one audit record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFromCmd(cmd)

			var rec map[string]interface{}
			path := "/audit/records/" + url.PathEscape(args[0])
			if err := client.DoJSON(http.MethodGet, path, nil, nil, &rec); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if getOutputFormat(cmd) == outputJSON {
				return PrintJSON(w, rec)
			}

			fields := map[string]string{}
			for _, k := range []string{"execution_id", "client_id", "status", "violation_kind", "error_message", "row_count", "duration_ms", "created_at", "closed_at"} {
				if v := ExtractField(rec, k); v != "" {
					fields[k] = v
				}
			}
			PrintDetail(w, fields)
			if q := ExtractField(rec, "query_text"); q != "" {
				fmt.Fprintf(w, "\n%s\n", q)
			}
			return nil
		},
	}
}
