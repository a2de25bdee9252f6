// Package types holds what the client subcommands share: the app context key and output helpers.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"fieldsync/internal/app/client"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type ctxKey string

const ClientAppKey ctxKey = "app"

// JSONOutput is bound to the global --json flag.
var JSONOutput bool

var (
	OK   = color.New(color.FgGreen).SprintFunc()
	Warn = color.New(color.FgYellow).SprintFunc()
	Fail = color.New(color.FgRed).SprintFunc()
	Dim  = color.New(color.Faint).SprintFunc()
	Bold = color.New(color.Bold).SprintFunc()
)

// App returns the client app stored in the command context by the root command.
func App(cmd *cobra.Command) (*client.App, error) {
	app, ok := cmd.Context().Value(ClientAppKey).(*client.App)
	if !ok || app == nil {
		return nil, errors.New("client is not initialised")
	}
	return app, nil
}

// Print writes v as indented JSON when --json is set and calls human otherwise.
func Print(cmd *cobra.Command, v any, human func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if JSONOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human(w)
	return nil
}

// ReadPayload returns the JSON given inline, from a file, or from stdin when the value is "-".
func ReadPayload(cmd *cobra.Command, data, file string) (json.RawMessage, error) {
	var raw []byte
	switch {
	case data == "-" || file == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = b
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read payload file: %w", err)
		}
		raw = b
	case data != "":
		raw = []byte(data)
	default:
		return nil, errors.New("a payload is required: pass --data, --file or --data -")
	}

	raw = []byte(strings.TrimSpace(string(raw)))
	if !json.Valid(raw) {
		return nil, errors.New("payload is not valid JSON")
	}
	return raw, nil
}
