package spreadsheet

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sievert/ingreso/internal/core"
)

// ErrUnsupportedType is returned for uploads that are neither .xlsx nor .csv.
var ErrUnsupportedType = errors.New("unsupported file type")

// Reader reads uploaded roster files. It implements core.SheetReader.
type Reader struct{}

// NewReader returns a Reader.
func NewReader() *Reader { return &Reader{} }

// ReadRows returns every row of the first sheet of an .xlsx file, or every
// record of a .csv file, header first. Excel date serials in the birth-date
// column are converted to YYYY-MM-DD.
func (Reader) ReadRows(ctx context.Context, fileName string, r io.Reader) ([][]string, error) {
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".xlsx", ".xlsm":
		return readXLSX(ctx, r)
	case ".csv", ".txt":
		return readCSV(ctx, r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
}

func readXLSX(ctx context.Context, r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("empty file")
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("invalid spreadsheet: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return rows, nil
	}

	header := core.MakeHeaderIndex(rows[0])
	if col, ok := header.Index(core.ColBirthDate); ok {
		for _, row := range rows[1:] {
			if col < len(row) {
				row[col] = serialToDate(row[col])
			}
		}
	}
	return rows, nil
}

// serialToDate converts an Excel date serial to YYYY-MM-DD. Other values
// are returned unchanged.
func serialToDate(cell string) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || v < 1 || v > 2958465 {
		return cell
	}
	t, err := excelize.ExcelDateToTime(v, false)
	if err != nil {
		return cell
	}
	return t.Format(core.DateLayout)
}

func readCSV(ctx context.Context, r io.Reader) ([][]string, error) {
	br := bufio.NewReader(Decode(r))

	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid spreadsheet: %w", err)
		}
		rows = append(rows, rec)

		if len(rows)%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}
	return rows, nil
}
