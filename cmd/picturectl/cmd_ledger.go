package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/janhq/picture-api/internal/config"
	"github.com/janhq/picture-api/internal/domain/position"
)

var errLedgerDrift = errors.New("ledger has gaps or duplicate positions")

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and repair picture rankings",
	Long:  `Check that the gallery and start page positions form 1..N, and renumber them when they do not.`,
}

var ledgerCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report gaps and duplicates in both rankings",
	Args:  cobra.NoArgs,
	RunE:  runLedgerCheck,
}

var ledgerCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Renumber both rankings to 1..N, keeping their order",
	Args:  cobra.NoArgs,
	RunE:  runLedgerCompact,
}

func init() {
	ledgerCmd.AddCommand(ledgerCheckCmd)
	ledgerCmd.AddCommand(ledgerCompactCmd)

	ledgerCmd.PersistentFlags().String("format", "text", "Output format: text, yaml, json")
	ledgerCheckCmd.Flags().Bool("fail-on-drift", false, "Exit non-zero when a ranking needs compaction")
}

func runLedgerCheck(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	failOnDrift, _ := cmd.Flags().GetBool("fail-on-drift")

	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	service, err := rt.pictureService(cmd.Context())
	if err != nil {
		return err
	}
	reports, err := service.AuditLedger(cmd.Context())
	if err != nil {
		return err
	}
	if err := writeReports(cmd.OutOrStdout(), format, reports); err != nil {
		return err
	}
	if failOnDrift && !allHealthy(reports) {
		return errLedgerDrift
	}
	return nil
}

func runLedgerCompact(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")

	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	service, err := rt.pictureService(cmd.Context())
	if err != nil {
		return err
	}
	reports, err := service.CompactLedger(cmd.Context())
	if err != nil {
		return err
	}
	if err := writeReports(cmd.OutOrStdout(), format, reports); err != nil {
		return err
	}
	if notice := staleCacheNotice(rt.cfg, reports); notice != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), notice)
	}
	return nil
}

// staleCacheNotice warns when compaction renumbered pictures that running servers may still
// serve from their in-process listing cache, which this command cannot reach.
func staleCacheNotice(cfg *config.Config, reports []position.Report) string {
	if cfg.ListCacheMode() != config.ListCacheMemory || allHealthy(reports) {
		return ""
	}
	return fmt.Sprintf("warning: servers using PICTURE_LIST_CACHE_BACKEND=memory keep serving the old positions for up to %s; restart them or wait for PICTURE_LIST_CACHE_TTL",
		cfg.ListCacheTTL)
}

func allHealthy(reports []position.Report) bool {
	for _, r := range reports {
		if !r.Healthy() {
			return false
		}
	}
	return true
}

func writeReports(w io.Writer, format string, reports []position.Report) error {
	switch strings.ToLower(format) {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case "json":
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "text", "":
		for _, r := range reports {
			status := "ok"
			if !r.Healthy() {
				status = fmt.Sprintf("%d misplaced", len(r.Plan))
			}
			if _, err := fmt.Fprintf(w, "%-10s ranked=%d %s\n", r.Slot, r.Ranked, status); err != nil {
				return err
			}
			if len(r.Gaps) > 0 {
				fmt.Fprintf(w, "  gaps: %s\n", joinInts(r.Gaps))
			}
			if len(r.Duplicates) > 0 {
				fmt.Fprintf(w, "  duplicates: %s\n", joinInts(r.Duplicates))
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format %q (use text, yaml or json)", format)
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
