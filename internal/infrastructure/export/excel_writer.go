// Package export writes flattened order rows to xlsx workbooks.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/application/ordersync"
	"github.com/ordersync/backend/internal/domain/order"
)

// SheetName is the single worksheet of every workbook
const SheetName = "Orders"

// DayLayout names the per-day export directory
const DayLayout = "20060102"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Uploader copies a finished workbook to object storage
type Uploader interface {
	Key(parts ...string) string
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ExcelWriter implements ordersync.ExportWriter. Workbooks land in
// <dir>/<YYYYMMDD>/<name>; with an uploader they are also copied to
// <prefix>/<YYYYMMDD>/<name> and the object location is returned.
type ExcelWriter struct {
	dir      string
	loc      *time.Location
	uploader Uploader
	logger   *zap.Logger
	now      func() time.Time
}

var _ ordersync.ExportWriter = (*ExcelWriter)(nil)

// NewExcelWriter creates a writer rooted at dir. uploader may be nil.
func NewExcelWriter(dir string, loc *time.Location, uploader Uploader, logger *zap.Logger) *ExcelWriter {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExcelWriter{dir: dir, loc: loc, uploader: uploader, logger: logger, now: time.Now}
}

// Write implements ordersync.ExportWriter
func (w *ExcelWriter) Write(ctx context.Context, name string, columns []string, rows []order.FlatRow) (string, error) {
	if name == "" {
		return "", fmt.Errorf("export: file name is required")
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("export %s: no columns", name)
	}

	f, err := build(columns, rows)
	if err != nil {
		return "", fmt.Errorf("export %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	day := w.now().In(w.loc).Format(DayLayout)
	dir := filepath.Join(w.dir, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export %s: create directory: %w", name, err)
	}
	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("export %s: save: %w", name, err)
	}
	w.logger.Info("Wrote export workbook",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
	)

	if w.uploader == nil {
		return path, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("export %s: read back: %w", name, err)
	}
	uri, err := w.uploader.Upload(ctx, w.uploader.Key(day, name), data, xlsxContentType)
	if err != nil {
		return "", fmt.Errorf("export %s: upload: %w", name, err)
	}
	return uri, nil
}

func build(columns []string, rows []order.FlatRow) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		_ = f.Close()
		return nil, err
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		_ = f.Close()
		return nil, err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = f.SetCellStyle(SheetName, "A1", last, style)
	}

	for i, r := range rows {
		values, err := r.Values(columns)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}
