// Package validate checks that user supplied scripts parse as JavaScript.
package validate

import (
	"github.com/evanw/esbuild/pkg/api"
)

// wrapperLines is the number of lines the function wrapper adds in front of
// the script.
const wrapperLines = 1

type Error struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

type Result struct {
	Valid bool   `json:"isValid"`
	Error *Error `json:"error,omitempty"`
}

// JavaScript reports whether script parses as the body of a function. Line
// numbers in the result are zero-based and relative to script.
//
// The script is parsed twice: inside a function wrapper, which accepts
// top-level return and rejects module syntax, and on its own as a CommonJS
// script, which catches text that closes the wrapper early.
func JavaScript(script string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{Error: &Error{Message: "SyntaxError: unexpected parser failure"}}
		}
	}()

	wrapped := api.Transform("(function () {\n"+script+"\n})", api.TransformOptions{
		Loader:   api.LoaderJS,
		LogLevel: api.LogLevelSilent,
	})
	if len(wrapped.Errors) > 0 {
		return failure(wrapped.Errors[0], wrapperLines)
	}

	raw := api.Transform(script, api.TransformOptions{
		Loader:   api.LoaderJS,
		Format:   api.FormatCommonJS,
		LogLevel: api.LogLevelSilent,
	})
	if len(raw.Errors) > 0 {
		return failure(raw.Errors[0], 0)
	}
	return Result{Valid: true}
}

func failure(msg api.Message, offset int) Result {
	line := 0
	if msg.Location != nil {
		// esbuild lines are one-based.
		line = max(msg.Location.Line-1-offset, 0)
	}
	return Result{Error: &Error{Line: line, Message: "SyntaxError: " + msg.Text}}
}
