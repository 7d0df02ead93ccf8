package cli

import (
	"fmt"
	"io"

	"github.com/lacquerai/co2/internal/style"
)

// Output formats accepted by --output
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// writeOutput prints data in the requested format, falling back to text for
// anything that is not json or yaml.
func writeOutput(w io.Writer, format string, data any, text func(io.Writer)) {
	switch format {
	case outputJSON:
		style.PrintJSON(w, data)
	case outputYAML:
		style.PrintYAML(w, data)
	default:
		text(w)
	}
}

// printTable outputs rows in aligned columns with a header
func printTable(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}

	// Calculate column widths
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = len([]rune(header))
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len([]rune(cell)) > widths[i] {
				widths[i] = len([]rune(cell))
			}
		}
	}

	printRow(w, widths, headers)
	for i, width := range widths {
		if i > 0 {
			fmt.Fprint(w, "  ")
		}
		for j := 0; j < width; j++ {
			fmt.Fprint(w, "-")
		}
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		printRow(w, widths, row)
	}
}

func printRow(w io.Writer, widths []int, cells []string) {
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		if i > 0 {
			fmt.Fprint(w, "  ")
		}
		pad := widths[i] - len([]rune(cell))
		if i == len(widths)-1 {
			pad = 0
		}
		fmt.Fprintf(w, "%s%*s", cell, pad, "")
	}
	fmt.Fprintln(w)
}
