package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/hrm-import/modules/importer/domain/session"
	"github.com/iota-uz/hrm-import/modules/importer/services"
	"github.com/iota-uz/hrm-import/pkg/metrics"
)

type importOptions struct {
	kind         string
	file         string
	selected     []int
	purge        string
	decisions    []string
	allowPartial bool
	metricsAddr  string
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Validate a spreadsheet and write its rows to the database",
		Long: "Validate a spreadsheet and write its rows to the database.\n\n" +
			"Interrupting the command (Ctrl-C) stops the import before the next row or purge batch\n" +
			"and deletes the records this run inserted. Updated records keep their new values.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.kind, "kind", "", "Sheet kind: employees|organizations (required)")
	cmd.Flags().StringVar(&opts.file, "file", "", "Path to the .xlsx file (required)")
	cmd.Flags().IntSliceVar(&opts.selected, "select", nil, "Spreadsheet row numbers to import (default: all)")
	cmd.Flags().StringVar(&opts.purge, "purge", "", "Delete stored records first: all|matching")
	cmd.Flags().StringArrayVar(&opts.decisions, "decision", nil, "Conflict decision as ROW=keep|replace (repeatable)")
	cmd.Flags().BoolVar(&opts.allowPartial, "allow-partial", false, "Import clean rows even when other targeted rows have errors")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address while importing")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runImport(ctx context.Context, out io.Writer, opts importOptions) error {
	kind, err := parseKindFlag(opts.kind)
	if err != nil {
		return err
	}
	engineOpts, err := opts.engineOptions()
	if err != nil {
		return err
	}

	a, ctx, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	if addr := a.metricsAddr(opts.metricsAddr); addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, a.conf.Prometheus.Path, a.logger); err != nil {
				a.logger.WithError(err).Warn("metrics server stopped")
			}
		}()
	}

	wb, err := readWorkbook(opts.file, a.conf.Import.MaxFileSize)
	if err != nil {
		return err
	}
	report, err := a.engine.Validate(ctx, wb, kind)
	if err != nil {
		var schemaErr *services.SchemaError
		if errors.As(err, &schemaErr) {
			if werr := writeJSONLine(out, report); werr != nil {
				return werr
			}
			return withCode(exitValidation, err)
		}
		return withCode(exitDB, err)
	}
	sess := report.Session

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		select {
		case sig := <-signals:
			a.logger.WithField("signal", sig.String()).Warn("cancelling import")
			a.engine.Cancel(sess)
		case <-ctx.Done():
		}
	}()

	engineOpts.Progress = progressLogger(a.logger, sess.ID.String())
	result, err := a.engine.StartImport(ctx, sess, engineOpts)
	if err != nil {
		return classifyImportError(err)
	}
	if err := writeJSONLine(out, result); err != nil {
		return err
	}
	switch {
	case result.Cancelled:
		return withCode(exitCancelled, fmt.Errorf("import cancelled; %d inserted records rolled back", result.RolledBack))
	case result.Failed > 0:
		return withCode(exitDBWrite, fmt.Errorf("%d rows could not be saved", result.Failed))
	}
	return nil
}

func (a *app) metricsAddr(flag string) string {
	if strings.TrimSpace(flag) != "" {
		return flag
	}
	if a.conf.Prometheus.Enabled {
		return a.conf.Prometheus.Addr
	}
	return ""
}

func (o importOptions) engineOptions() (services.ImportOptions, error) {
	out := services.ImportOptions{
		SelectedRows: o.selected,
		AllowPartial: o.allowPartial,
	}
	if mode := strings.ToLower(strings.TrimSpace(o.purge)); mode != "" {
		switch services.PurgeMode(mode) {
		case services.PurgeAll, services.PurgeMatching:
		default:
			return out, withCode(exitUsage, fmt.Errorf("unsupported --purge %q (expected all|matching)", o.purge))
		}
		out.DeleteBeforeImport = true
		out.DeleteMode = services.PurgeMode(mode)
	}
	decisions, err := parseDecisions(o.decisions)
	if err != nil {
		return out, err
	}
	out.ConflictDecisions = decisions
	return out, nil
}

// parseDecisions reads ROW=keep|replace pairs. A later pair for the same row wins.
func parseDecisions(values []string) (map[int]session.Decision, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[int]session.Decision, len(values))
	for _, v := range values {
		rowText, decisionText, ok := strings.Cut(v, "=")
		if !ok {
			return nil, withCode(exitUsage, fmt.Errorf("invalid --decision %q (expected ROW=keep|replace)", v))
		}
		row, err := strconv.Atoi(strings.TrimSpace(rowText))
		if err != nil || row < 2 {
			return nil, withCode(exitUsage, fmt.Errorf("invalid --decision %q: row must be a data row number", v))
		}
		d, err := session.ParseDecision(decisionText)
		if err != nil {
			return nil, withCode(exitUsage, fmt.Errorf("invalid --decision %q: %w", v, err))
		}
		out[row] = d
	}
	return out, nil
}

func classifyImportError(err error) error {
	var purgeErr *services.PurgeError
	switch {
	case errors.Is(err, services.ErrBlockingIssues), errors.Is(err, services.ErrNoTargetRows):
		return withCode(exitValidation, err)
	case errors.Is(err, session.ErrUnknownRow), errors.Is(err, services.ErrInvalidOptions):
		return withCode(exitUsage, err)
	case errors.As(err, &purgeErr):
		return withCode(exitDBWrite, err)
	default:
		return withCode(exitDB, err)
	}
}

// progressLogger logs every phase change and then every tenth of the phase.
func progressLogger(logger *logrus.Logger, sessionID string) services.ProgressFunc {
	var last session.Progress
	return func(p session.Progress) {
		step := max(p.Total/10, 1)
		if p.Phase == last.Phase && p.Current != p.Total && p.Current/step == last.Current/step {
			return
		}
		last = p
		logger.WithFields(logrus.Fields{
			"session_id": sessionID,
			"phase":      p.Phase,
			"current":    p.Current,
			"total":      p.Total,
		}).Info("import progress")
	}
}
