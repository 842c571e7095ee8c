package spl

import (
	"fmt"
	"io"
	"time"

	"github.com/chewxy/math32"
)

// FormatLevel renders a level with a sign and a truncated four digit fraction.
func FormatLevel(level float32) string {
	sign := ""
	if level < 0 {
		sign = "-"
	}
	v := math32.Abs(level)
	whole := math32.Trunc(v)
	frac := math32.Trunc((v - whole) * 10000)
	return fmt.Sprintf("%s%d.%04d", sign, int64(whole), int64(frac))
}

// FormatLine renders one SPL log line: "DD/MM/YYYY HH:MM:SS: <level>\n".
// The timestamp is written in UTC.
func FormatLine(t time.Time, level float32) string {
	return t.UTC().Format("02/01/2006 15:04:05") + ": " + FormatLevel(level) + "\n"
}

// WriteLine appends one SPL log line to w.
func WriteLine(w io.Writer, t time.Time, level float32) error {
	if _, err := io.WriteString(w, FormatLine(t, level)); err != nil {
		return fmt.Errorf("failed to write spl log line: %w", err)
	}
	return nil
}
