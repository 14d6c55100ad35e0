package utils

import "fmt"

// FormatUSD renders a dollar figure the way alert messages expect it:
// 1234 -> "1.23K", 2500000 -> "2.50M", 950 -> "950.00".
func FormatUSD(num float64) string {
	switch {
	case num >= 1_000_000_000:
		return fmt.Sprintf("%.2fB", num/1_000_000_000)
	case num >= 1_000_000:
		return fmt.Sprintf("%.2fM", num/1_000_000)
	case num >= 1_000:
		return fmt.Sprintf("%.2fK", num/1_000)
	default:
		return fmt.Sprintf("%.2f", num)
	}
}
