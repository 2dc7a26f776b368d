package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/org/opsconsole/internal/client"
)

var outputFormat string // "table", "json"

var stdout io.Writer = os.Stdout

// printResult prints v as JSON, or calls table for the table format.
func printResult(v any, table func(w io.Writer)) {
	if outputFormat == "json" || table == nil {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		enc.Encode(v) //nolint:errcheck
		return
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	table(tw)
	tw.Flush()
}

// row writes one tab-separated line.
func row(w io.Writer, cells ...any) {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(w, strings.Join(parts, "\t"))
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func printError(msg string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
}

func printSuccess(msg string) {
	fmt.Fprintln(stdout, msg)
}

// failed reports a backend error the way the console does and hands it to
// the session manager so a rejected token ends the session.
func failed(err error, fallback string) error {
	if mgr != nil {
		mgr.Check(err) //nolint:errcheck
	}
	return errors.New(client.Message(err, fallback))
}
