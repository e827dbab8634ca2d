package survey

import (
	"fmt"
	"strconv"
)

// ParseWellName splits a label such as "C7" or "C07" into zero-based
// grid indexes. Rows past Z continue with two letters, so a 1536-well
// plate runs A1 through AF48.
func ParseWellName(name string) (row, col int, err error) {
	i := 0
	for i < len(name) && name[i] >= 'A' && name[i] <= 'Z' {
		i++
	}
	if i == 0 || i > 2 {
		return 0, 0, fmt.Errorf("well name %q: expected one or two row letters", name)
	}
	for _, ch := range name[:i] {
		row = row*26 + int(ch-'A') + 1
	}
	row--
	n, convErr := strconv.Atoi(name[i:])
	if convErr != nil || n < 1 {
		return 0, 0, fmt.Errorf("well name %q: expected a positive column number after %q", name, name[:i])
	}
	return row, n - 1, nil
}

// FormatWellName renders zero-based grid indexes as a well label with
// an unpadded column number, the way the instrument reports wells.
// Rows are defined through "ZZ" (row 701).
func FormatWellName(row, col int) string {
	if row < 26 {
		return fmt.Sprintf("%c%d", 'A'+row, col+1)
	}
	return fmt.Sprintf("%c%c%d", 'A'+row/26-1, 'A'+row%26, col+1)
}
