package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/stianhazel/play.tailwindcss.com/internal/validate"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a playground script for syntax errors",
		Long: `Check a playground script for syntax errors. The script is read from file,
or from standard input when no file is given, and the verdict is printed as
JSON: {"isValid": false, "error": {"line": 2, "message": "SyntaxError: ..."}}.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				bs  []byte
				err error
			)
			if len(args) == 1 && args[0] != "-" {
				bs, err = os.ReadFile(args[0])
			} else {
				bs, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(validate.JavaScript(string(bs)))
		},
	}
}
