package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// tabular is implemented by every command result so it can render in each
// output format.
type tabular interface {
	TableHeaders() []string
	TableRows() [][]string
}

// render writes data in the format chosen by --output.
func render(cmd *cobra.Command, data tabular) error {
	format := OutputTable
	if cliCtx, err := GetCLIContext(cmd); err == nil {
		format = cliCtx.OutputFormat
	}
	out := cmd.OutOrStdout()

	switch format {
	case OutputJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case OutputText:
		for _, row := range data.TableRows() {
			fmt.Fprintln(out, strings.Join(row, "\t"))
		}
		return nil
	default:
		writeTable(out, data.TableHeaders(), data.TableRows())
		return nil
	}
}

func writeTable(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
