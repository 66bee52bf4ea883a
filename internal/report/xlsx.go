package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/competitor-monitor/internal/model"
	"github.com/sells-group/competitor-monitor/internal/pipeline"
)

// Sheet names in exported workbooks.
const (
	SheetCompetitors = "Competitors"
	SheetHistory     = "History"
)

var competitorHeader = []string{
	"URL", "Outcome", "Engine", "Title", "H1", "First paragraph", "Design score",
	"Summary", "Strengths", "Weaknesses", "Unique offers", "Recommendations",
	"Animation potential", "Text only", "Error",
}

var historyHeader = []string{
	"Created", "Kind", "Source", "Title", "Design score", "Summary", "Details", "Text only",
}

// Workbook builds an xlsx file with one sheet per non-empty input.
func Workbook(results []*pipeline.Result, history []model.HistoryEntry) (*xlsx.File, error) {
	f := xlsx.NewFile()

	if len(results) > 0 {
		sheet, err := f.AddSheet(SheetCompetitors)
		if err != nil {
			return nil, eris.Wrap(err, "report: add competitors sheet")
		}
		addRow(sheet, competitorHeader)
		for _, res := range results {
			addRow(sheet, competitorRow(res))
		}
	}

	if len(history) > 0 {
		sheet, err := f.AddSheet(SheetHistory)
		if err != nil {
			return nil, eris.Wrap(err, "report: add history sheet")
		}
		addRow(sheet, historyHeader)
		for _, e := range history {
			addRow(sheet, historyRow(e))
		}
	}

	if len(f.Sheets) == 0 {
		return nil, eris.New("report: nothing to export")
	}
	return f, nil
}

// SaveXLSX writes the workbook to path.
func SaveXLSX(path string, results []*pipeline.Result, history []model.HistoryEntry) error {
	f, err := Workbook(results, history)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "report: save %s", path)
}

// WriteXLSX streams the workbook to w.
func WriteXLSX(w io.Writer, results []*pipeline.Result, history []model.HistoryEntry) error {
	f, err := Workbook(results, history)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "report: write xlsx")
}

func competitorRow(res *pipeline.Result) []string {
	snap := res.Snapshot
	row := []string{
		snap.URL,
		string(res.Outcome),
		snap.Engine,
		model.Deref(snap.Title),
		model.Deref(snap.H1),
		model.Deref(snap.FirstParagraph),
		"", "", "", "", "", "", "",
		yesNo(res.Fallback),
		res.Error,
	}
	if a := res.Analysis; a != nil {
		row[6] = strconv.Itoa(a.DesignScore)
		row[7] = a.Summary
		row[8] = joinLines(a.Strengths)
		row[9] = joinLines(a.Weaknesses)
		row[10] = joinLines(a.UniqueOffers)
		row[11] = joinLines(a.Recommendations)
		row[12] = a.AnimationPotential
	}
	return row
}

func historyRow(e model.HistoryEntry) []string {
	details := ""
	switch {
	case e.Text != nil:
		details = joinLines(e.Text.Recommendations)
	case e.Image != nil:
		details = joinLines(e.Image.MarketingInsights)
	}
	return []string{
		e.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		string(e.Kind),
		e.Source,
		e.Title,
		strconv.Itoa(e.DesignScore()),
		e.Summary(),
		details,
		yesNo(e.Fallback),
	}
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}

func joinLines(items []string) string {
	return strings.Join(items, "\n")
}
