// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/profiledir/lib/directory"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// printer writes command output, styled only when the destination is
// a terminal.
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(w io.Writer) printer {
	return printer{w: w, styled: isTerminal(w)}
}

func (p printer) render(style lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return style.Render(text)
}

// field writes one "label: value" line.
func (p printer) field(label, value string) {
	fmt.Fprintf(p.w, "%s %s\n", p.render(labelStyle, label+":"), value)
}

// profile writes a profile record, one field per line. Profile fields
// are printed in key order.
func (p printer) profile(current directory.ProfileRecord) {
	p.field("agent", current.Agent.String())
	p.field("nickname", current.Profile.Nickname)
	p.field("version", current.Record.Hash.String())
	p.field("updated", current.Record.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"))

	keys := make([]string, 0, len(current.Profile.Fields))
	for key := range current.Profile.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		p.field(key, current.Profile.Fields[key])
	}
}

// table writes rows in aligned columns under a header. Widths are
// measured in terminal cells so wide characters in nicknames line up.
func (p printer) table(header []string, rows [][]string) {
	widths := make([]int, len(header))
	for column, title := range header {
		widths[column] = lipgloss.Width(title)
	}
	for _, row := range rows {
		for column, cell := range row {
			widths[column] = max(widths[column], lipgloss.Width(cell))
		}
	}

	writeRow := func(cells []string, style *lipgloss.Style) {
		var line strings.Builder
		for column, cell := range cells {
			padded := cell
			if column < len(cells)-1 {
				padded += strings.Repeat(" ", widths[column]-lipgloss.Width(cell)+2)
			}
			if style != nil {
				padded = p.render(*style, padded)
			}
			line.WriteString(padded)
		}
		fmt.Fprintln(p.w, line.String())
	}

	writeRow(header, &headerStyle)
	for _, row := range rows {
		writeRow(row, nil)
	}
}
