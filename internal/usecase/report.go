package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

const summaryErrorLimit = 5

const summaryRule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// ReportEntry is a planned file as written to the JSON report.
type ReportEntry struct {
	Path   string     `json:"path"`
	Size   int64      `json:"size"`
	Reason PlanReason `json:"reason"`
	Digest Digest     `json:"digest,omitempty"`
}

// RunReport describes the outcome of one Sync call.
type RunReport struct {
	RunID           string        `json:"run_id"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration_ns"`
	DryRun          bool          `json:"dry_run"`
	SourceRoot      string        `json:"source_root"`
	DestRoot        string        `json:"dest_root"`
	Destination     string        `json:"destination,omitempty"`
	SourceFiles     int           `json:"source_files"`
	DestFiles       int           `json:"dest_files"`
	DestLockedBy    *LockInfo     `json:"dest_locked_by,omitempty"`
	Matched         int           `json:"matched"`
	Planned         int           `json:"planned"`
	PlannedBytes    int64         `json:"planned_bytes"`
	Hashed          int           `json:"hashed"`
	Copied          int           `json:"copied"`
	Failed          int           `json:"failed"`
	PermissionErrs  int           `json:"permission_errors"`
	NotAttempted    int           `json:"not_attempted"`
	BytesCopied     int64         `json:"bytes_copied"`
	PlanFingerprint string        `json:"plan_fingerprint"`
	Plan            []ReportEntry `json:"plan"`
	ScanErrors      []string      `json:"scan_errors"`
	HashErrors      []string      `json:"hash_errors"`
	CopyErrors      []string      `json:"copy_errors"`
}

// PlanFingerprint returns an xxhash64 over the planned paths relative to sourceRoot, in plan order.
// Unchanged trees produce the same fingerprint on every run.
func PlanFingerprint(fs FileSystemPort, sourceRoot string, plan BackupPlan) string {
	h := xxhash.New()
	for _, entry := range plan.Entries {
		_, _ = h.WriteString(relSlash(fs, sourceRoot, entry.Path))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func (r *RunReport) addPlan(fs FileSystemPort, plan BackupPlan) {
	r.Planned = plan.Len()
	r.PlannedBytes = plan.Bytes()
	r.PlanFingerprint = PlanFingerprint(fs, r.SourceRoot, plan)
	r.Plan = make([]ReportEntry, 0, plan.Len())
	for _, entry := range plan.Entries {
		r.Plan = append(r.Plan, ReportEntry{
			Path:   relSlash(fs, r.SourceRoot, entry.Path),
			Size:   entry.Size,
			Reason: entry.Reason,
			Digest: entry.Digest,
		})
	}
}

func (r *RunReport) addIndexes(source, dest *TreeIndex) {
	r.SourceFiles = source.Files
	r.DestFiles = dest.Files
	for _, err := range source.Errors {
		r.ScanErrors = append(r.ScanErrors, err.Error())
	}
	for _, err := range dest.Errors {
		r.ScanErrors = append(r.ScanErrors, err.Error())
	}
}

func (r *RunReport) addMatch(match *MatchResult) {
	r.Matched = match.Matched
	r.Hashed = match.Hashed
	for _, err := range match.Errors {
		r.HashErrors = append(r.HashErrors, err.Error())
	}
}

func (r *RunReport) addClone(clone *CloneReport) {
	r.Copied = clone.Copied
	r.Failed = clone.Failed
	r.PermissionErrs = clone.PermissionErrs
	r.NotAttempted = clone.NotAttempted()
	r.BytesCopied = clone.Bytes
	for _, err := range clone.Failures {
		r.CopyErrors = append(r.CopyErrors, err.Error())
	}
}

// WriteReport stores r as indented JSON at path.
func WriteReport(ctx context.Context, fs FileSystemPort, path string, r *RunReport) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')
	if err := fs.WriteFile(ctx, path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// WriteSummary prints a human-readable summary of r.
func WriteSummary(w io.Writer, r *RunReport) error {
	var b strings.Builder
	title := "SYNC SUMMARY:"
	if r.DryRun {
		title = "SYNC SUMMARY (dry run):"
	}
	fmt.Fprintln(&b, summaryRule)
	fmt.Fprintln(&b, title)
	fmt.Fprintf(&b, "  Source:        %s (%d files)\n", r.SourceRoot, r.SourceFiles)
	fmt.Fprintf(&b, "  Destination:   %s (%d files)\n", r.DestRoot, r.DestFiles)
	if r.DestLockedBy != nil {
		fmt.Fprintf(&b, "  Locked by:     pid %d on %s\n", r.DestLockedBy.PID, r.DestLockedBy.Hostname)
	}
	fmt.Fprintf(&b, "  Already saved: %d\n", r.Matched)
	fmt.Fprintf(&b, "  Planned:       %d (%s)\n", r.Planned, humanBytes(r.PlannedBytes))
	switch {
	case r.DryRun && r.Destination != "":
		fmt.Fprintf(&b, "  Would copy to: %s\n", r.Destination)
	case r.Destination != "":
		fmt.Fprintf(&b, "  Copied:        %d (%s)\n", r.Copied, humanBytes(r.BytesCopied))
		fmt.Fprintf(&b, "  Failed:        %d\n", r.Failed)
		if r.PermissionErrs > 0 {
			fmt.Fprintf(&b, "  Permission:    %d denied\n", r.PermissionErrs)
		}
		if r.NotAttempted > 0 {
			fmt.Fprintf(&b, "  Interrupted:   %d not attempted\n", r.NotAttempted)
		}
		fmt.Fprintf(&b, "  Backup dir:    %s\n", r.Destination)
	case r.Planned == 0:
		fmt.Fprintln(&b, "  Nothing to back up")
	}
	writeErrorList(&b, "Scan errors", r.ScanErrors)
	writeErrorList(&b, "Hash errors", r.HashErrors)
	writeErrorList(&b, "Copy errors", r.CopyErrors)
	if r.Failed > 0 {
		fmt.Fprintln(&b, "IMPORTANT: Backup completed with warnings")
		fmt.Fprintln(&b, "Some files were not backed up due to errors.")
	}
	fmt.Fprintln(&b, summaryRule)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeErrorList(b *strings.Builder, label string, errs []string) {
	if len(errs) == 0 {
		return
	}
	if len(errs) > summaryErrorLimit {
		fmt.Fprintf(b, "%s (first %d):\n", label, summaryErrorLimit)
		for _, msg := range errs[:summaryErrorLimit] {
			fmt.Fprintf(b, "  - %s\n", msg)
		}
		fmt.Fprintf(b, "  ... and %d more errors\n", len(errs)-summaryErrorLimit)
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, msg := range errs {
		fmt.Fprintf(b, "  - %s\n", msg)
	}
}

func humanBytes(n int64) string {
	const (
		kib = 1024
		mib = kib * 1024
		gib = mib * 1024
	)
	switch {
	case n >= gib:
		return fmt.Sprintf("%.2f GiB", float64(n)/gib)
	case n >= mib:
		return fmt.Sprintf("%.2f MiB", float64(n)/mib)
	case n >= kib:
		return fmt.Sprintf("%.2f KiB", float64(n)/kib)
	}
	return fmt.Sprintf("%d B", n)
}
