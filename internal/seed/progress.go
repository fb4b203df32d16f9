package seed

import (
	"fmt"
	"time"
)

// Progress tracks corpus fetch and load progress.
type Progress struct {
	Phase        string // "fetch", "load", "done", "error"
	BytesFetched int64
	BytesTotal   int64
	Records      int64
	Loaded       int64
	Skipped      int64
	Failed       int64
	StartTime    time.Time
	Err          error
}

// ProgressFunc is called periodically with progress updates.
type ProgressFunc func(Progress)

// FormatBytes formats bytes as a human-readable string.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats a duration as a human-readable string.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// DefaultProgressFunc prints progress to stdout.
func DefaultProgressFunc(p Progress) {
	switch p.Phase {
	case "fetch":
		pct := float64(0)
		if p.BytesTotal > 0 {
			pct = float64(p.BytesFetched) / float64(p.BytesTotal) * 100
		}
		fmt.Printf("\r[Fetch] %s / %s (%.1f%%)",
			FormatBytes(p.BytesFetched), FormatBytes(p.BytesTotal), pct)
	case "load":
		fmt.Printf("\r[Load] %d records (%d loaded, %d skipped, %d failed)",
			p.Records, p.Loaded, p.Skipped, p.Failed)
	case "done":
		elapsed := time.Since(p.StartTime)
		fmt.Printf("\n[Done] %d loaded, %d skipped, %d failed (%s)\n",
			p.Loaded, p.Skipped, p.Failed, FormatDuration(elapsed))
	case "error":
		fmt.Printf("\n[Error] %v\n", p.Err)
	}
}
