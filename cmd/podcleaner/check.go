package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/HaPhanBaoMinh/podcleaner/internal/cleaner"
	"github.com/HaPhanBaoMinh/podcleaner/internal/ui/styles"
)

type checkRow struct {
	Namespace string   `json:"namespace" yaml:"namespace"`
	Pod       string   `json:"pod" yaml:"pod"`
	Phase     string   `json:"phase" yaml:"phase"`
	Healthy   bool     `json:"healthy" yaml:"healthy"`
	Reasons   []string `json:"reasons" yaml:"reasons"`
}

type checkResult struct {
	Pods             []checkRow `json:"pods" yaml:"pods"`
	Checked          int        `json:"checked" yaml:"checked"`
	Unhealthy        int        `json:"unhealthy" yaml:"unhealthy"`
	FailedNamespaces []string   `json:"failedNamespaces,omitempty" yaml:"failedNamespaces,omitempty"`
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		output        string
		onlyUnhealthy bool
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Classify every pod without deleting anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch output {
			case "table", "json", "yaml":
			default:
				return fmt.Errorf("unknown output format %q (table|json|yaml)", output)
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			// keep stdout clean for machine-readable output
			cfg.Log.Level = "warn"
			log, err := newLogger(cfg, "")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			cl, err := opts.connect(cfg, log)
			if err != nil {
				log.Error("could not connect to Kubernetes cluster", zap.Error(err))
				return err
			}

			ctx := cmd.Context()
			res := buildCheckResult(cl.orch.Scan(ctx, cl.orch.ListNamespaces(ctx)), onlyUnhealthy)
			return printCheck(cmd.OutOrStdout(), res, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "table|json|yaml")
	cmd.Flags().BoolVar(&onlyUnhealthy, "unhealthy", false, "list only unhealthy pods")
	return cmd
}

func buildCheckResult(scan cleaner.ScanResult, onlyUnhealthy bool) checkResult {
	res := checkResult{Pods: []checkRow{}, Checked: len(scan.Pods), Unhealthy: len(scan.Unhealthy), FailedNamespaces: scan.FailedNamespaces}
	for _, f := range scan.Pods {
		if onlyUnhealthy && f.Verdict.Healthy {
			continue
		}
		res.Pods = append(res.Pods, checkRow{
			Namespace: f.Pod.Namespace,
			Pod:       f.Pod.Name,
			Phase:     string(f.Pod.Phase),
			Healthy:   f.Verdict.Healthy,
			Reasons:   f.Verdict.Reasons,
		})
	}
	return res
}

func printCheck(w io.Writer, res checkResult, output string) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	}

	// cells stay plain; the table measures them before styling
	cell := lipgloss.NewStyle().PaddingRight(2)
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).BorderBottom(false).
		BorderLeft(false).BorderRight(false).
		BorderHeader(false).BorderColumn(false).
		Headers("NAMESPACE", "POD", "PHASE", "STATUS", "REASONS").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return cell.Inherit(styles.Title)
			case col != 3:
				return cell
			case res.Pods[row].Healthy:
				return cell.Inherit(styles.Good)
			default:
				return cell.Inherit(styles.Danger)
			}
		})
	for _, r := range res.Pods {
		status := "healthy"
		if !r.Healthy {
			status = "unhealthy"
		}
		t.Row(r.Namespace, r.Pod, r.Phase, status, strings.Join(r.Reasons, "; "))
	}
	if _, err := fmt.Fprintln(w, strings.TrimRight(t.Render(), "\n")); err != nil {
		return err
	}

	summary := fmt.Sprintf("%d pods checked, %d unhealthy", res.Checked, res.Unhealthy)
	if len(res.FailedNamespaces) > 0 {
		summary += styles.Warn.Render(fmt.Sprintf(" (skipped namespaces: %s)", strings.Join(res.FailedNamespaces, ", ")))
	}
	_, err := fmt.Fprintln(w, styles.Faint.Render(summary))
	return err
}
