package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iota-uz/hrm-import/modules/importer/domain/session"
	"github.com/iota-uz/hrm-import/modules/importer/services"
)

type validateOptions struct {
	kind       string
	file       string
	reportPath string
	selected   []int
}

func newValidateCmd() *cobra.Command {
	var opts validateOptions

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a spreadsheet against the template and the stored records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.kind, "kind", "", "Sheet kind: employees|organizations (required)")
	cmd.Flags().StringVar(&opts.file, "file", "", "Path to the .xlsx file (required)")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "Write the issues to this .xlsx file")
	cmd.Flags().IntSliceVar(&opts.selected, "select", nil, "Spreadsheet row numbers to consider (default: all)")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runValidate(ctx context.Context, out io.Writer, opts validateOptions) error {
	kind, err := parseKindFlag(opts.kind)
	if err != nil {
		return err
	}

	a, ctx, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	wb, err := readWorkbook(opts.file, a.conf.Import.MaxFileSize)
	if err != nil {
		return err
	}

	report, err := a.engine.Validate(ctx, wb, kind)
	var schemaErr *services.SchemaError
	if errors.As(err, &schemaErr) {
		if werr := writeJSONLine(out, report); werr != nil {
			return werr
		}
		return withCode(exitValidation, err)
	}
	if err != nil {
		return withCode(exitDB, err)
	}

	if len(opts.selected) > 0 {
		if err := selectRows(report.Session, opts.selected); err != nil {
			return err
		}
		report = a.engine.Summarize(report.Session, nil)
	}

	if strings.TrimSpace(opts.reportPath) != "" {
		if err := writeIssueFile(opts.reportPath, func(f *os.File) error {
			return services.WriteIssueReport(f, report.Issues)
		}); err != nil {
			return err
		}
	}
	if err := writeJSONLine(out, report); err != nil {
		return err
	}
	if !report.Valid() {
		return withCode(exitValidation, fmt.Errorf("%d of the targeted rows have blocking errors", report.BlockingRows))
	}
	return nil
}

func selectRows(sess *session.Session, rowNumbers []int) error {
	indices := make([]int, 0, len(rowNumbers))
	for _, n := range rowNumbers {
		i, err := sess.IndexOf(n)
		if err != nil {
			return withCode(exitUsage, fmt.Errorf("invalid --select: %w", err))
		}
		indices = append(indices, i)
	}
	if err := sess.Select(indices...); err != nil {
		return withCode(exitUsage, fmt.Errorf("invalid --select: %w", err))
	}
	return nil
}
