package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/spigell/cv-matcher/internal/explain"
	"github.com/spigell/cv-matcher/internal/talent"
)

const (
	SheetSummary  = "Summary"
	SheetRanked   = "Ranked Candidates"
	SheetExcluded = "Excluded"
)

var bandFill = map[explain.Band]string{
	explain.BandStrong:   "C6EFCE",
	explain.BandModerate: "FFEB9C",
	explain.BandWeak:     "FFC7CE",
}

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

// WriteBatch saves batch as an xlsx workbook and returns the path written.
// A missing .xlsx extension is appended.
func WriteBatch(batch *talent.Batch, job *talent.JobQuery, names map[string]string, path string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}
	path = filepath.Clean(path)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return "", err
	}
	for _, name := range []string{SheetRanked, SheetExcluded} {
		if _, err := f.NewSheet(name); err != nil {
			return "", err
		}
	}

	if err := summary(f, batch, job); err != nil {
		return "", fmt.Errorf("summary sheet: %w", err)
	}
	if err := ranked(f, batch, names); err != nil {
		return "", fmt.Errorf("ranked sheet: %w", err)
	}
	if err := excluded(f, batch); err != nil {
		return "", fmt.Errorf("excluded sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

func summary(f *excelize.File, batch *talent.Batch, job *talent.JobQuery) error {
	if err := f.SetColWidth(SheetSummary, "A", "A", 28); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetSummary, "B", "B", 60); err != nil {
		return err
	}

	label, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	title := batch.JobID
	if job != nil && job.Title != "" {
		title = job.Title
	}

	rows := [][2]any{
		{"Job", title},
		{"Job ID", batch.JobID},
		{"Batch ID", batch.ID},
		{"Generated", batch.CreatedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Vectorizer", batch.VectorizerVersion},
		{"Parameters version", batch.Parameters.Version},
		{"Minimum match %", batch.Parameters.MinMatchPercentage},
		{"Required skills", strings.Join(batch.Parameters.RequiredSkills, ", ")},
		{"Preferred skills", strings.Join(batch.Parameters.PreferredSkills, ", ")},
		{"Ranked candidates", len(batch.Results)},
		{"Excluded candidates", len(batch.Excluded)},
	}
	if len(batch.Results) > 0 {
		var total float64
		for _, r := range batch.Results {
			total += r.MatchPercentage
		}
		rows = append(rows,
			[2]any{"Best match %", round2(batch.Results[0].MatchPercentage)},
			[2]any{"Average match %", round2(total / float64(len(batch.Results)))},
		)
	}

	for i, kv := range rows {
		a, _ := excelize.CoordinatesToCellName(1, i+1)
		b, _ := excelize.CoordinatesToCellName(2, i+1)
		if err := f.SetCellValue(SheetSummary, a, kv[0]); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetSummary, a, a, label); err != nil {
			return err
		}
		if err := f.SetCellValue(SheetSummary, b, kv[1]); err != nil {
			return err
		}
	}
	return nil
}

var rankedHeaders = []string{"Rank", "Candidate ID", "Name", "Match %", "Semantic", "Skill", "Matched skills", "Missing skills", "Explanation"}

func ranked(f *excelize.File, batch *talent.Batch, names map[string]string) error {
	if err := header(f, SheetRanked, rankedHeaders); err != nil {
		return err
	}
	for col, width := range []float64{8, 20, 25, 10, 10, 10, 30, 30, 70} {
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(SheetRanked, name, name, width); err != nil {
			return err
		}
	}

	styles := make(map[explain.Band]int, len(bandFill))
	for band, color := range bandFill {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Border:    thinBorder,
			Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
		})
		if err != nil {
			return err
		}
		styles[band] = id
	}

	for i, r := range batch.Results {
		row := i + 2
		values := []any{
			i + 1,
			r.CandidateID,
			names[r.CandidateID],
			round2(r.MatchPercentage),
			round2(r.SemanticScore),
			round2(r.SkillScore),
			strings.Join(r.MatchedSkills, ", "),
			strings.Join(r.MissingSkills(), ", "),
			r.Explanation,
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetRanked, start, &values); err != nil {
			return err
		}
		end, _ := excelize.CoordinatesToCellName(len(values), row)
		if err := f.SetCellStyle(SheetRanked, start, end, styles[explain.SemanticBand(r.MatchPercentage)]); err != nil {
			return err
		}
	}

	if len(batch.Results) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(rankedHeaders), len(batch.Results)+1)
		if err := f.AutoFilter(SheetRanked, "A1:"+last, nil); err != nil {
			return err
		}
	}
	return freeze(f, SheetRanked)
}

func excluded(f *excelize.File, batch *talent.Batch) error {
	if err := header(f, SheetExcluded, []string{"Candidate ID", "Stage", "Reason"}); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetExcluded, "A", "B", 20); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetExcluded, "C", "C", 70); err != nil {
		return err
	}

	for i, e := range batch.Excluded {
		start, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetExcluded, start, &[]any{e.CandidateID, e.Stage, e.Reason}); err != nil {
			return err
		}
	}
	return freeze(f, SheetExcluded)
}

func header(f *excelize.File, sheet string, titles []string) error {
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder,
	})
	if err != nil {
		return err
	}

	row := make([]any, len(titles))
	for i, t := range titles {
		row[i] = t
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(titles), 1)
	return f.SetCellStyle(sheet, "A1", last, style)
}

func freeze(f *excelize.File, sheet string) error {
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
