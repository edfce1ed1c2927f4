package pipeline

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"rasviz/backend/internal/analysis"
	"rasviz/backend/internal/models"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func printReport(w io.Writer, report *models.RunReport) {
	t := newTable(w)
	t.SetTitle(fmt.Sprintf("Run %s (%s)", report.Job, report.RunID))
	t.AppendHeader(table.Row{"Stage", "Status", "Rows", "Duration", "Detail"})
	for _, s := range report.Stages {
		detail := s.Reason
		if detail == "" {
			detail = strings.Join(s.Artifacts, ", ")
		}
		t.AppendRow(table.Row{s.Stage, s.Status, s.Rows, s.Duration.Round(time.Millisecond), detail})
	}
	t.AppendFooter(table.Row{
		"",
		fmt.Sprintf("%d ok / %d skipped / %d fatal",
			report.Count(models.StageSuccess), report.Count(models.StageSkipped), report.Count(models.StageFatal)),
	})
	t.Render()
}

func printDescriptive(w io.Writer, stats *analysis.DescriptiveStats) {
	t := newTable(w)
	t.SetTitle(fmt.Sprintf("%d players", stats.Players))
	t.AppendHeader(table.Row{"", "RAS", "Pro Bowls"})
	t.AppendRow(table.Row{"count", strconv.Itoa(stats.RAS.Count), strconv.Itoa(stats.ProBowls.Count)})
	rows := []struct {
		label string
		get   func(analysis.Summary) *float64
	}{
		{"mean", func(s analysis.Summary) *float64 { return s.Mean }},
		{"std", func(s analysis.Summary) *float64 { return s.Std }},
		{"min", func(s analysis.Summary) *float64 { return s.Min }},
		{"25%", func(s analysis.Summary) *float64 { return s.Q25 }},
		{"50%", func(s analysis.Summary) *float64 { return s.Q50 }},
		{"75%", func(s analysis.Summary) *float64 { return s.Q75 }},
		{"max", func(s analysis.Summary) *float64 { return s.Max }},
	}
	for _, r := range rows {
		t.AppendRow(table.Row{r.label, number(r.get(stats.RAS)), number(r.get(stats.ProBowls))})
	}
	t.AppendFooter(table.Row{"correlation", number(stats.Correlation), "p=" + number(stats.PValue)})
	t.Render()

	if len(stats.Positions) == 0 {
		return
	}
	pt := newTable(w)
	pt.AppendHeader(table.Row{"Position", "RAS mean", "RAS std", "RAS n", "Pro Bowls mean", "Pro Bowls sum"})
	for _, p := range stats.Positions {
		pt.AppendRow(table.Row{p.Position, number(p.RASMean), number(p.RASStd), p.RASCount, number(p.ProBowlsMean), p.ProBowlsSum})
	}
	pt.Render()
}

func printPositions(w io.Writer, stats []analysis.PositionStat) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Position", "Players", "Avg RAS", "Avg Pro Bowls", "Total", "Multi rate"})
	for _, s := range stats {
		t.AppendRow(table.Row{
			s.Position, s.PlayerCount, number(s.AvgRAS), number(s.AvgProBowls),
			s.TotalProBowls, fmt.Sprintf("%.1f%%", s.MultiProBowlRate),
		})
	}
	t.Render()
}

func printCheck(w io.Writer, check *analysis.DataCheck) {
	fmt.Fprintf(w, "%s: %d rows, %d columns\n", check.Source, check.Rows, len(check.Columns))
	fmt.Fprintf(w, "Columns: %s\n", strings.Join(check.Columns, ", "))
	if check.HasMeasurements() {
		fmt.Fprintf(w, "Measurement columns: %s\n", strings.Join(check.MeasurementColumns, ", "))
	} else {
		fmt.Fprintln(w, "No measurement columns found")
	}

	t := newTable(w)
	header := make(table.Row, len(check.Columns))
	for i, c := range check.Columns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, row := range check.Sample {
		r := make(table.Row, len(check.Columns))
		for i, c := range check.Columns {
			r[i] = row.Text(c)
		}
		t.AppendRow(r)
	}
	t.Render()
}

func number(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}
