package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag/v2"

	"github.com/stianhazel/play.tailwindcss.com/internal/assembler"
	"github.com/stianhazel/play.tailwindcss.com/internal/config"
	"github.com/stianhazel/play.tailwindcss.com/internal/logging"
	"github.com/stianhazel/play.tailwindcss.com/internal/service"
	"github.com/stianhazel/play.tailwindcss.com/internal/tracing"
)

type targetOption int

const (
	targetAll targetOption = iota
	targetClient
	targetServer
)

var targetIDs = map[targetOption][]string{
	targetAll:    {"all"},
	targetClient: {assembler.Client.String()},
	targetServer: {assembler.Server.String()},
}

func (t targetOption) targets() []assembler.Target {
	switch t {
	case targetClient:
		return []assembler.Target{assembler.Client}
	case targetServer:
		return []assembler.Target{assembler.Server}
	}
	return assembler.Targets
}

func newBuildCommand(root *rootOptions) *cobra.Command {
	var (
		files       []string
		patches     []string
		target      targetOption
		watch       bool
		interval    time.Duration
		progress    bool
		metricsAddr string
		otelURL     string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the client and server bundles",
		Long: `Build the client and server bundles, including every declared worker.

Artifacts are published to output.storage, or written below output.dir when no
storage is configured. With --watch the targets are rebuilt on the configured
interval, and immediately on SIGHUP, until the command is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := root.logger()

			shutdown, err := tracing.Setup(cmd.Context(), otelURL)
			if err != nil {
				return fmt.Errorf("tracing: %w", err)
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					log.Warnf("flushing spans: %v", err)
				}
			}()

			cfg, err := config.Load(files, patches)
			if err != nil {
				return err
			}
			if interval > 0 {
				cfg.Interval = config.Duration(interval)
			}

			svc := service.New().
				WithConfig(cfg).
				WithTargets(target.targets()...).
				WithSingleShot(!watch).
				WithProgress(progress).
				WithLogger(log)

			ctx := cmd.Context()
			if watch {
				if metricsAddr != "" {
					srv := serveMetrics(metricsAddr, log)
					defer srv.Close()
				}
				go rebuildOnHangup(ctx, svc, target.targets(), log)
			}

			err = svc.Run(ctx)
			if !watch {
				printSummary(cmd.OutOrStdout(), svc.Status())
			}
			return err
		},
	}

	fs := cmd.Flags()
	addConfigFlags(fs, root.env, &files, &patches)
	fs.Var(enumflag.New(&target, "target", targetIDs, enumflag.EnumCaseInsensitive),
		"target", "target to build: all, client or server")
	fs.BoolVarP(&watch, "watch", "w", false, "keep running and rebuild periodically")
	fs.DurationVar(&interval, "interval", 0, "rebuild interval in watch mode (overrides rebuild_interval)")
	fs.BoolVar(&progress, "progress", false, "show a progress bar")
	fs.StringVar(&metricsAddr, "metrics-addr", root.env.MetricsAddr, "serve Prometheus metrics on this address in watch mode")
	fs.StringVar(&otelURL, "otel-endpoint", root.env.OTelURL, "export build traces to this OTLP/HTTP endpoint URL")
	return cmd
}

func serveMetrics(addr string, log *logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infof("serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server: %v", err)
		}
	}()
	return srv
}

func rebuildOnHangup(ctx context.Context, svc *service.Service, targets []assembler.Target, log *logging.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			for _, t := range targets {
				if err := svc.Rebuild(t); err != nil {
					log.Warnf("rebuild %v: %v", t, err)
				}
			}
		}
	}
}

func printSummary(w io.Writer, statuses []service.Status) {
	table := tablewriter.NewWriter(w)
	table.Header("Target", "State", "Build", "Artifacts", "Units", "Duration", "Unmatched rules")
	for _, st := range statuses {
		_ = table.Append(
			st.Target,
			st.State.String(),
			st.BuildID,
			strconv.Itoa(st.Artifacts),
			strconv.Itoa(st.Units),
			st.Duration.Round(time.Millisecond).String(),
			strings.Join(st.Unmatched, ", "),
		)
	}
	if err := table.Render(); err != nil {
		fmt.Fprintln(w, err)
	}
}
