package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"composeim/internal/compose"
)

type tableEntry struct {
	Keys       []string `json:"keys"`
	Text       string   `json:"text"`
	Codepoints string   `json:"codepoints"`
}

func newTableCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Print the built-in compose table",
		Long:  `Lists every sequence typed after Multi_key and the text it commits.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := tableEntries(compose.DefaultTable())
			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			case "table":
				t := newTable(cmd.OutOrStdout())
				t.AppendHeader(table.Row{"Keys", "Text", "Code points"})
				for _, e := range entries {
					t.AppendRow(table.Row{"Multi_key " + strings.Join(e.Keys, " "), e.Text, e.Codepoints})
				}
				t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d entries", len(entries))})
				t.Render()
				return nil
			default:
				return fmt.Errorf("unknown format %q (valid: table, json)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "table", "output format: table or json")
	return cmd
}

func tableEntries(t *compose.Table) []tableEntry {
	out := make([]tableEntry, 0, t.Len())
	for _, e := range t.Entries() {
		var cps []string
		for _, r := range e.Text {
			cps = append(cps, fmt.Sprintf("U+%04X", r))
		}
		out = append(out, tableEntry{
			Keys:       strings.Fields(e.Keys.String()),
			Text:       e.Text,
			Codepoints: strings.Join(cps, " "),
		})
	}
	return out
}
