package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thediveo/enumflag/v2"

	"github.com/stianhazel/play.tailwindcss.com/internal/config"
	"github.com/stianhazel/play.tailwindcss.com/internal/logging"
)

type logFormat int

const (
	formatText logFormat = iota
	formatJSON
)

var logFormatIDs = map[logFormat][]string{
	formatText: {"text"},
	formatJSON: {"json"},
}

var logLevelIDs = map[logging.Level][]string{
	logging.Debug: {"debug"},
	logging.Info:  {"info"},
	logging.Warn:  {"warn", "warning"},
	logging.Error: {"error"},
}

type rootOptions struct {
	env       config.Env
	logLevel  logging.Level
	logFormat logFormat
}

func (o *rootOptions) logger() *logging.Logger {
	format := "text"
	if o.logFormat == formatJSON {
		format = "json"
	}
	return logging.NewLogger(logging.Config{Level: o.logLevel, Format: format})
}

func newRootCommand(env config.Env) *cobra.Command {
	opts := &rootOptions{env: env}
	// Invalid values in the environment fall back to the flag defaults.
	opts.logLevel, _ = logging.ParseLevel(env.LogLevel)
	if env.LogFormat == "json" {
		opts.logFormat = formatJSON
	}

	cmd := &cobra.Command{
		Use:          "playbuild",
		Short:        "Build the playground bundles and their worker scripts",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().Var(
		enumflag.New(&opts.logLevel, "level", logLevelIDs, enumflag.EnumCaseInsensitive),
		"log-level", "log level: debug, info, warn or error")
	cmd.PersistentFlags().Var(
		enumflag.New(&opts.logFormat, "format", logFormatIDs, enumflag.EnumCaseInsensitive),
		"log-format", "log format: text or json")

	cmd.AddCommand(
		newBuildCommand(opts),
		newValidateCommand(),
		newConfigCommand(opts),
	)
	return cmd
}

// addConfigFlags registers the flags that select and patch configuration
// files. Defaults come from PLAYBUILD_CONFIG and PLAYBUILD_PATCH.
func addConfigFlags(fs *pflag.FlagSet, env config.Env, files, patches *[]string) {
	fs.StringArrayVarP(files, "config", "c", env.Config, "configuration file(s), merged in order")
	fs.StringArrayVar(patches, "patch", env.Patches, "JSON patch file(s) applied to the merged configuration")
}
