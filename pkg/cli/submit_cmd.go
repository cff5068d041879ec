package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type submitPayload struct {
	SQL         string                 `json:"sql,omitempty"`
	Template    string                 `json:"template,omitempty"`
	Args        map[string]interface{} `json:"args,omitempty"`
	Filename    string                 `json:"filename,omitempty"`
	Description string                 `json:"description,omitempty"`
}

type submitResult struct {
	OK          bool   `json:"ok"`
	ExecutionID string `json:"execution_id"`
	SQL         string `json:"sql"`
	Filename    string `json:"filename"`
	RowBound    int    `json:"row_bound"`
	Audit       struct {
		RequestedAt time.Time `json:"requestedAt"`
	} `json:"audit"`
}

type submitRejection struct {
	Error      string `json:"error"`
	Validation struct {
		Kind  string `json:"kind"`
		Error string `json:"error"`
	} `json:"validation"`
	Help struct {
		AllowedTables    []string `json:"allowed_tables"`
		AllowedFunctions []string `json:"allowed_functions"`
		MaxLength        int      `json:"max_length"`
		Example          string   `json:"example"`
	} `json:"help"`
}

func newSubmitCmd() *cobra.Command {
	var (
		sqlFlag     string
		tmplName    string
		tmplArgs    []string
		filename    string
		description string
	)

	cmd := &cobra.Command{
		Use:   "submit [file]",
		Short: "Submit SQL for validation and get back a bounded query",
		Long: `Submit ad-hoc SQL to the gateway. The query text comes from a file
argument, "-" for stdin, the --sql flag, or a named template with --arg
values. An accepted query comes back rewritten with the row bound for your
role and an execution id to pass to scout execute.`,
		Example: `  scout submit report.sql
  echo 'SELECT region FROM gold.v_transactions_flat' | scout submit -
  scout submit --template top_stores --arg n=5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := submitPayload{
				Filename:    filename,
				Description: description,
			}

			if tmplName != "" {
				if sqlFlag != "" || len(args) > 0 {
					return errors.New("--template cannot be combined with --sql or a file argument")
				}
				argMap, err := parseTemplateArgs(tmplArgs)
				if err != nil {
					return err
				}
				payload.Template = tmplName
				payload.Args = argMap
			} else {
				sqlText, defaultName, err := readQueryText(cmd, args, sqlFlag)
				if err != nil {
					return err
				}
				payload.SQL = sqlText
				if payload.Filename == "" {
					payload.Filename = defaultName
				}
			}

			client := clientFromCmd(cmd)
			resp, err := client.Do(http.MethodPost, "/queries/submit", nil, payload)
			if err != nil {
				return err
			}

			switch resp.StatusCode {
			case http.StatusOK:
				data, err := ReadBody(resp)
				if err != nil {
					return err
				}
				return printSubmitResult(cmd, data)
			case http.StatusBadRequest:
				data, err := ReadBody(resp)
				if err != nil {
					return err
				}
				return printSubmitRejection(cmd, data)
			default:
				return CheckError(resp)
			}
		},
	}

	cmd.Flags().StringVar(&sqlFlag, "sql", "", "query text given inline")
	cmd.Flags().StringVar(&tmplName, "template", "", "expand a named template instead of raw SQL")
	cmd.Flags().StringArrayVar(&tmplArgs, "arg", nil, "template argument as key=value, repeatable")
	cmd.Flags().StringVar(&filename, "filename", "", "filename recorded with the submission")
	cmd.Flags().StringVar(&description, "description", "", "free-form note recorded with the submission")
	return cmd
}

func printSubmitResult(cmd *cobra.Command, data []byte) error {
	if getOutputFormat(cmd) == outputJSON {
		var raw interface{}
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		return PrintJSON(cmd.OutOrStdout(), raw)
	}

	var res submitResult
	if err := json.Unmarshal(data, &res); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	w := cmd.OutOrStdout()
	fields := map[string]string{
		"execution id": res.ExecutionID,
		"row bound":    strconv.Itoa(res.RowBound),
		"requested at": res.Audit.RequestedAt.Format(time.RFC3339),
	}
	if res.Filename != "" {
		fields["filename"] = res.Filename
	}
	PrintDetail(w, fields)
	fmt.Fprintf(w, "\n%s\n", res.SQL)
	return nil
}

// printSubmitRejection renders the gateway's explanation of why the query
// was refused, then fails the command so scripts see a non-zero exit.
func printSubmitRejection(cmd *cobra.Command, data []byte) error {
	var rej submitRejection
	if err := json.Unmarshal(data, &rej); err != nil {
		return &APIError{HTTPStatus: http.StatusBadRequest, Message: strings.TrimSpace(string(data))}
	}

	if getOutputFormat(cmd) == outputJSON {
		var raw interface{}
		if err := json.Unmarshal(data, &raw); err == nil {
			_ = PrintJSON(cmd.OutOrStdout(), raw)
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Rejected (%s): %s\n", rej.Validation.Kind, rej.Validation.Error)
		if len(rej.Help.AllowedTables) > 0 {
			fmt.Fprintln(w, "\nAllowed tables:")
			for _, t := range rej.Help.AllowedTables {
				fmt.Fprintf(w, "  %s\n", t)
			}
		}
		if rej.Help.Example != "" {
			fmt.Fprintf(w, "\nExample:\n  %s\n", rej.Help.Example)
		}
	}

	return fmt.Errorf("query rejected: %s", rej.Validation.Kind)
}

func parseTemplateArgs(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("malformed --arg %q, want key=value", pair)
		}
		out[k] = v
	}
	return out, nil
}

// readQueryText resolves the SQL text from --sql, a file argument, or stdin
// when the argument is "-". The second return value is the filename to
// record, derived from the file argument when one was given.
func readQueryText(cmd *cobra.Command, args []string, sqlFlag string) (string, string, error) {
	if sqlFlag != "" {
		if len(args) > 0 {
			return "", "", errors.New("pass either --sql or a file argument, not both")
		}
		return sqlFlag, "", nil
	}
	if len(args) == 0 {
		return "", "", errors.New(`no query given: pass a file, "-" for stdin, or --sql`)
	}
	if args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), "", nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", fmt.Errorf("read query file: %w", err)
	}
	return string(data), filepath.Base(args[0]), nil
}
