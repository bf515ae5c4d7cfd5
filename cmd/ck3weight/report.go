package main

// report.go — lipgloss rendering of command results.

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"ck3weight/internal/conditions"
	"ck3weight/internal/model"
	"ck3weight/internal/mods"
	"ck3weight/internal/pipeline"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	headerStyle = lipgloss.NewStyle().Bold(true)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2a3850"))
)

// newTable returns a bordered table with a bold header row.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		BorderHeader(true).
		BorderRow(false).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		})
}

func signed(n int) string { return fmt.Sprintf("%+d", n) }

// ---------------------------------------------------------------------------
// process
// ---------------------------------------------------------------------------

func renderSummary(w io.Writer, s pipeline.Summary) {
	title := "Processing summary"
	if s.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintln(w, titleStyle.Render(title))
	fmt.Fprintln(w, mutedStyle.Render(s.Target))

	t := newTable("Metric", "Value").Rows(
		[]string{"Files processed", strconv.Itoa(s.FilesProcessed)},
		[]string{"Files with library marker", strconv.Itoa(s.FilesWithLibraryMarker)},
		[]string{"Files with regions", strconv.Itoa(s.FilesWithRegions)},
		[]string{"Regions found", strconv.Itoa(s.RegionsFound)},
		[]string{"Triggers generated", strconv.Itoa(s.TriggersGenerated)},
		[]string{"Files changed", strconv.Itoa(s.FilesChanged)},
		[]string{"Files written", strconv.Itoa(s.FilesWritten)},
		[]string{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate())},
	)
	fmt.Fprintln(w, t.Render())

	if models := s.Models(); len(models) > 0 {
		u := newTable("Model", "Regions")
		for _, m := range models {
			u.Row(m, strconv.Itoa(s.ModelUsage[m]))
		}
		fmt.Fprintln(w, u.Render())
	}

	for _, u := range s.Unresolved {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("unresolved: %s:%d model %q", u.File, u.Line, u.Model)))
	}
	for _, d := range s.Diagnostics {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("diagnostic: %s:%d [%s] %s", d.File, d.Line, d.Model, d.Message)))
	}
	for _, e := range s.Errors {
		fmt.Fprintln(w, errStyle.Render(fmt.Sprintf("error: %s: %s", e.File, e.Error)))
	}
}

// ---------------------------------------------------------------------------
// validate
// ---------------------------------------------------------------------------

func renderValidation(w io.Writer, results []model.ValidationResult) {
	fmt.Fprintln(w, titleStyle.Render("Model validation"))
	t := newTable("Model", "Status", "Total", "Interactions")
	for _, r := range results {
		status := okStyle.Render("valid")
		if !r.Valid {
			status = errStyle.Render("invalid")
		}
		t.Row(r.Model, status, strconv.Itoa(r.TotalWeight), strconv.Itoa(len(r.Interactions)))
	}
	fmt.Fprintln(w, t.Render())

	for _, r := range results {
		for _, m := range r.Missing {
			fmt.Fprintln(w, errStyle.Render(fmt.Sprintf("%s: missing trait %s", r.Model, m)))
		}
		for _, c := range r.Conflicts {
			fmt.Fprintln(w, errStyle.Render(fmt.Sprintf("%s: conflict %s/%s: %s", r.Model, c.A, c.B, c.Reason)))
		}
		for _, msg := range r.Warnings {
			fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("%s: %s", r.Model, msg)))
		}
	}
}

// ---------------------------------------------------------------------------
// weights
// ---------------------------------------------------------------------------

func renderBreakdown(w io.Writer, b model.WeightBreakdown) {
	fmt.Fprintln(w, titleStyle.Render(b.Model))
	if b.Description != "" {
		fmt.Fprintln(w, mutedStyle.Render(b.Description))
	}

	t := newTable("Component", "Weight").Row("base", strconv.Itoa(b.Base))
	for _, group := range []struct {
		role string
		rows []model.TraitWeight
	}{
		{"positive", b.Positive},
		{"negative", b.Negative},
		{"opposite", b.Opposite},
	} {
		for _, tw := range group.rows {
			t.Row(fmt.Sprintf("%s (%s)", tw.Name, group.role), signed(tw.Weight))
		}
	}
	for _, c := range b.Modifiers {
		t.Row(fmt.Sprintf("%s [%s]", c.Label, c.Source), signed(c.Delta))
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%s %d   %s %s   %s %s\n",
		headerStyle.Render("Total:"), b.Total,
		headerStyle.Render("Traits:"), signed(b.TraitTotal),
		headerStyle.Render("Modifiers:"), signed(b.ModifierTotal))
}

func renderWeights(w io.Writer, rows []model.WeightBreakdown, usage model.UsageStats) {
	fmt.Fprintln(w, titleStyle.Render("Model weights"))
	t := newTable("Model", "Base", "Traits", "Modifiers", "Total")
	for _, b := range rows {
		t.Row(b.Model, strconv.Itoa(b.Base), signed(b.TraitTotal), signed(b.ModifierTotal), strconv.Itoa(b.Total))
	}
	fmt.Fprintln(w, t.Render())

	fmt.Fprintf(w, "Traits used: %d, unused: %d\n", len(usage.Used), len(usage.Unused))
	if len(usage.Unused) > 0 {
		fmt.Fprintln(w, mutedStyle.Render("unused: "+strings.Join(usage.Unused, ", ")))
	}
	if len(usage.Unknown) > 0 {
		fmt.Fprintln(w, warnStyle.Render("unknown: "+strings.Join(usage.Unknown, ", ")))
	}
}

// ---------------------------------------------------------------------------
// scan
// ---------------------------------------------------------------------------

// scanRow is one region listed by the scan command.
type scanRow struct {
	File     string
	Line     int
	Model    string
	Resolved bool
	Comments int
}

func renderScan(w io.Writer, rows []scanRow) {
	fmt.Fprintln(w, titleStyle.Render("AI regions"))
	if len(rows) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no regions found"))
		return
	}
	t := newTable("File", "Line", "Model", "Status", "Comments")
	for _, r := range rows {
		status := okStyle.Render("ok")
		if !r.Resolved {
			status = warnStyle.Render("unresolved")
		}
		name := r.Model
		if name == "" {
			name = mutedStyle.Render("(none)")
		}
		t.Row(r.File, strconv.Itoa(r.Line), name, status, strconv.Itoa(r.Comments))
	}
	fmt.Fprintln(w, t.Render())
}

// ---------------------------------------------------------------------------
// mods
// ---------------------------------------------------------------------------

func renderMods(w io.Writer, list []mods.Mod) {
	fmt.Fprintln(w, titleStyle.Render("Installed mods"))
	if len(list) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no mods found"))
		return
	}
	t := newTable("Name", "Folder", "Version", "Source")
	for _, m := range list {
		t.Row(m.Label(), m.Name, m.Version, string(m.Source))
	}
	fmt.Fprintln(w, t.Render())
}

// ---------------------------------------------------------------------------
// conditions
// ---------------------------------------------------------------------------

func renderCatalog(w io.Writer, cat *conditions.Catalog) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Condition catalog (%d identifiers)", cat.Len())))
	for _, c := range cat.Categories() {
		ids := append([]string(nil), c.Conditions...)
		sort.Strings(ids)
		fmt.Fprintf(w, "%s %s\n", headerStyle.Render(c.Name), mutedStyle.Render(c.Description))
		for _, id := range ids {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
}

func renderDefinitions(w io.Writer, defs []conditions.Definition) {
	if len(defs) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no matching conditions"))
		return
	}
	t := newTable("Identifier", "Category", "Type", "Syntax")
	for _, d := range defs {
		t.Row(d.Name, d.Category, string(d.Type), d.Syntax)
	}
	fmt.Fprintln(w, t.Render())
}
