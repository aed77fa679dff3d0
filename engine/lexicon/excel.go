// Package lexicon reads the source vocabulary workbook into raw rows for
// normalization. The workbook has no header; columns are headword, first
// gloss, second gloss, IPA transcription, and Pu-Xian transcription.
package lexicon

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/puxianlab/pxlex/engine/domain"
)

// ReadFile reads raw rows from the workbook at path.
func ReadFile(path string) ([]domain.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lexicon: open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read reads raw rows from the first sheet of a workbook. Rows that are
// entirely empty are dropped; line numbers are 1-based sheet positions.
func Read(r io.Reader) ([]domain.RawRow, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("lexicon: open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("lexicon: workbook has no sheets")
	}

	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("lexicon: read sheet %q: %w", sheets[0], err)
	}

	out := make([]domain.RawRow, 0, len(rows))
	for i, cells := range rows {
		row := domain.RawRow{
			Word:   cell(cells, 0),
			GlossA: cell(cells, 1),
			GlossB: cell(cells, 2),
			IPA:    cell(cells, 3),
			PX:     cell(cells, 4),
			Line:   i + 1,
		}
		if row.Word == "" && row.GlossA == "" && row.GlossB == "" && row.IPA == "" && row.PX == "" {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func cell(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}
