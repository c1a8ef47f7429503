package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/kalambet/prefs"
	"github.com/kalambet/prefs/schema"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

// formatValue renders a field value the way it is typed on the command line.
func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", v)
}

// printValues writes name = value lines in schema order.
func printValues(w io.Writer, rec *prefs.Record) {
	for _, f := range rec.Schema().Fields() {
		v, _ := rec.Value(f.Name())
		fmt.Fprintf(w, "  %s = %s\n", colorize(colorBold, f.Name()), formatValue(v))
	}
}

// printValueMap writes name = value lines sorted by name, for values that
// arrive without a schema.
func printValueMap(w io.Writer, values map[string]any) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s = %s\n", colorize(colorBold, name), formatValue(values[name]))
	}
}

func printFields(w io.Writer, s *schema.Schema) {
	for _, f := range s.Fields() {
		key := ""
		if f.Key() != f.Name() {
			key = " (stored as " + f.Key() + ")"
		}
		fmt.Fprintf(w, "  %s %s default %s%s\n",
			colorize(colorBold, f.Name()), f.Kind(), formatValue(f.Default()), key)
	}
}
