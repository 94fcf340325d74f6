package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// writeTable prints rows in columns aligned by display width
func writeTable(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i := range header {
			if i < len(row) {
				if width := runewidth.StringWidth(row[i]); width > widths[i] {
					widths[i] = width
				}
			}
		}
	}

	writeRow(w, header, widths)
	sep := make([]string, len(widths))
	for i, width := range widths {
		sep[i] = strings.Repeat("-", width)
	}
	writeRow(w, sep, widths)
	for _, row := range rows {
		writeRow(w, row, widths)
	}
}

func writeRow(w io.Writer, row []string, widths []int) {
	cells := make([]string, len(widths))
	for i, width := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if i == len(widths)-1 {
			cells[i] = cell
			continue
		}
		cells[i] = runewidth.FillRight(cell, width)
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
}

// preview flattens whitespace and cuts text to width display cells
func preview(text string, width int) string {
	text = strings.Join(strings.Fields(text), " ")
	return runewidth.Truncate(text, width, "...")
}
