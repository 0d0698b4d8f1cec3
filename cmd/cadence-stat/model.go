// Copyright 2026 The Cadence Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/cadence-rtc/cadence/observe"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	dimStyle   = lipgloss.NewStyle().Faint(true).Padding(0, 1)
	baseStyle  = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
)

// tickMsg drives the refresh cadence.
type tickMsg time.Time

type model struct {
	reader   *observe.Reader
	path     string
	interval time.Duration
	table    table.Model

	// previous holds the last sampled values keyed by counter ID, for
	// rate derivation.
	previous map[int32]int64
	sampled  time.Time
	width    int
}

func newModel(reader *observe.Reader, path string, interval time.Duration) *model {
	columns := []table.Column{
		{Title: "ID", Width: 4},
		{Title: "Value", Width: 16},
		{Title: "Rate/s", Width: 12},
		{Title: "Label", Width: 60},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(20),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	t.SetStyles(styles)

	return &model{
		reader:   reader,
		path:     path,
		interval: interval,
		table:    t,
		previous: make(map[int32]int64),
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.refresh)
}

func (m *model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refresh samples the counters file and rebuilds the table rows.
func (m *model) refresh() tea.Msg {
	now := time.Now()
	elapsed := now.Sub(m.sampled).Seconds()

	var rows []table.Row
	m.reader.ForEach(func(record observe.CounterRecord) {
		rate := "-"
		if previous, ok := m.previous[record.ID]; ok && elapsed > 0 {
			rate = fmt.Sprintf("%.1f", float64(record.Value-previous)/elapsed)
		}
		m.previous[record.ID] = record.Value
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", record.ID),
			fmt.Sprintf("%d", record.Value),
			rate,
			record.Label,
		})
	})
	m.sampled = now
	return rows
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.table.SetHeight(msg.Height - 4)

	case tickMsg:
		return m, tea.Batch(m.tick(), m.refresh)

	case []table.Row:
		m.table.SetRows(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	title := titleStyle.Render("cadence-stat")
	source := dimStyle.Render(m.path + "  ·  q to quit")
	header := title + source
	if m.width > 0 {
		header = ansi.Truncate(header, m.width, "…")
	}
	return header + "\n" + baseStyle.Render(m.table.View()) + "\n"
}
