package telemetry

import (
	"fmt"
	"strings"

	"github.com/richinex/ragchat/completion"
)

// FormatBytes renders n with a binary unit, e.g. "1.5 MiB".
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Memory renders the server memory report. Zero fields are left out.
func Memory(m *completion.Memory) string {
	if m == nil {
		return ""
	}
	var parts []string
	if m.RSSBytes > 0 {
		parts = append(parts, "rss "+FormatBytes(m.RSSBytes))
	}
	if m.HWMBytes > 0 {
		parts = append(parts, "peak "+FormatBytes(m.HWMBytes))
	}
	if m.KVCacheBytes > 0 {
		parts = append(parts, "kv "+FormatBytes(m.KVCacheBytes))
	}
	return strings.Join(parts, " · ")
}
