package utils

import "fmt"

// HumanSize renders a byte count as "12.3 KB"; zero renders as "".
func HumanSize(n int64) string {
	if n <= 0 {
		return ""
	}
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f PB", size)
}
