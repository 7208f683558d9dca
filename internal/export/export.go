// Package export writes pipeline results to disk as JSON, CSV, or XLSX,
// optionally with SHA-256 checksum sidecars, and reads them back.
package export

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/opencivic/roster/pkg/errors"
	"github.com/opencivic/roster/pkg/logging"
	"github.com/opencivic/roster/pkg/records"
)

// Format is an output file format.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps a name to a Format.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", errors.NewConfigError("export", fmt.Sprintf("unknown format %q (want json, csv, or xlsx)", name), nil)
	}
}

// Exporter writes record sets into a directory.
type Exporter struct {
	dir       string
	checksums bool
}

// Option configures an Exporter.
type Option func(*Exporter) error

// WithChecksums controls whether a .sha256 sidecar is written next to
// each output file.
func WithChecksums(enabled bool) Option {
	return func(e *Exporter) error {
		e.checksums = enabled
		return nil
	}
}

// New creates an exporter rooted at dir, creating it if needed.
func New(dir string, opts ...Option) (*Exporter, error) {
	if dir == "" {
		return nil, errors.NewConfigError("export", "output directory is required", nil)
	}
	e := &Exporter{dir: dir, checksums: true}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewIOError("create", dir, err)
	}
	return e, nil
}

// Export writes recs under the given base name in every requested format
// and returns the paths written, sidecars excluded.
func (e *Exporter) Export(recs []records.Record, name string, formats ...Format) ([]string, error) {
	if len(formats) == 0 {
		formats = []Format{FormatJSON}
	}

	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		path := filepath.Join(e.dir, name+"."+string(f))

		var err error
		switch f {
		case FormatJSON:
			err = writeJSON(path, recs)
		case FormatCSV:
			err = writeCSV(path, recs)
		case FormatXLSX:
			err = writeXLSX(path, recs)
		default:
			return nil, errors.NewConfigError("export", fmt.Sprintf("unknown format %q", f), nil)
		}
		if err != nil {
			return nil, err
		}

		if e.checksums {
			if err := writeChecksum(path); err != nil {
				return nil, err
			}
		}

		logging.Default().Info().
			Str("path", path).
			Int("records", len(recs)).
			Msg("exported")
		paths = append(paths, path)
	}
	return paths, nil
}

func writeJSON(path string, recs []records.Record) error {
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return errors.NewParseError("json", path, "encoding records", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.NewIOError("write", path, err)
	}
	return nil
}

// header returns the union of field names across all records, in first
// appearance order.
func header(recs []records.Record) []string {
	var names []string
	seen := make(map[string]bool)
	for _, r := range recs {
		for _, n := range r.Names() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}

func row(r records.Record, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		if v, ok := r.Get(n); ok && v != nil {
			out[i] = records.Stringify(v)
		}
	}
	return out
}

func writeCSV(path string, recs []records.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.NewIOError("create", path, err)
	}
	defer f.Close()

	names := header(recs)
	w := csv.NewWriter(f)
	if err := w.Write(names); err != nil {
		return errors.NewIOError("write", path, err)
	}
	for _, r := range recs {
		if err := w.Write(row(r, names)); err != nil {
			return errors.NewIOError("write", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.NewIOError("write", path, err)
	}
	return nil
}

const sheetName = "Records"

// Sheet is one worksheet in a workbook export.
type Sheet struct {
	Name    string
	Records []records.Record
}

func writeXLSX(path string, recs []records.Record) error {
	return writeWorkbook(path, Sheet{Name: sheetName, Records: recs})
}

// ExportWorkbook writes one XLSX file holding a sheet per record set,
// for exports that keep survivors and discarded duplicates side by side.
func (e *Exporter) ExportWorkbook(name string, sheets ...Sheet) (string, error) {
	path := filepath.Join(e.dir, name+".xlsx")
	if err := writeWorkbook(path, sheets...); err != nil {
		return "", err
	}
	if e.checksums {
		if err := writeChecksum(path); err != nil {
			return "", err
		}
	}

	logging.Default().Info().
		Str("path", path).
		Int("sheets", len(sheets)).
		Msg("exported workbook")
	return path, nil
}

func writeWorkbook(path string, sheets ...Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	for _, s := range sheets {
		if _, err := f.NewSheet(s.Name); err != nil {
			return errors.NewIOError("create", path, err)
		}
		if err := writeSheet(f, s.Name, s.Records); err != nil {
			return errors.NewIOError("write", path, err)
		}
	}
	_ = f.DeleteSheet("Sheet1")

	if err := f.SaveAs(path); err != nil {
		return errors.NewIOError("write", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, recs []records.Record) error {
	names := header(recs)
	for col, n := range names {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, n); err != nil {
			return err
		}
	}
	for i, r := range recs {
		for col, v := range row(r, names) {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeChecksum writes a sha256sum-compatible sidecar next to path.
func writeChecksum(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.NewIOError("read", path, err)
	}
	sum := sha256.Sum256(data)
	line := fmt.Sprintf("%s  %s\n", hex.EncodeToString(sum[:]), filepath.Base(path))
	if err := os.WriteFile(path+".sha256", []byte(line), 0o644); err != nil {
		return errors.NewIOError("write", path+".sha256", err)
	}
	return nil
}

// Verify recomputes a file's SHA-256 and compares it to its sidecar.
func Verify(path string) error {
	sidecar, err := os.ReadFile(path + ".sha256")
	if err != nil {
		return errors.NewIOError("read", path+".sha256", err)
	}
	want := strings.Fields(string(sidecar))
	if len(want) == 0 {
		return errors.NewParseError("checksum", path+".sha256", "empty sidecar", nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.NewIOError("read", path, err)
	}
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != want[0] {
		return errors.NewValidationError("checksum", path, "checksum mismatch")
	}
	return nil
}
