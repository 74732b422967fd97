package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

// ExportFormat names a rendered timetable format.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

type classTimetableSource interface {
	ClassTimetable(ctx context.Context, classID string) (*dto.ClassTimetableResponse, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult is a rendered timetable document.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders live class timetables as weekly grids.
type ExportService struct {
	source classTimetableSource
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(source classTimetableSource, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{source: source, csv: csv, pdf: pdf, logger: logger}
}

// ExportClass renders the class timetable. An empty format means CSV.
func (s *ExportService) ExportClass(ctx context.Context, classID string, format ExportFormat) (*ExportResult, error) {
	format = ExportFormat(strings.ToLower(strings.TrimSpace(string(format))))
	if format == "" {
		format = ExportCSV
	}
	if format != ExportCSV && format != ExportPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	timetable, err := s.source.ClassTimetable(ctx, classID)
	if err != nil {
		return nil, err
	}
	dataset := export.WeeklyDataset(exportDays(timetable.Entries), exportCells(timetable.Entries))

	var (
		data        []byte
		contentType string
	)
	switch format {
	case ExportPDF:
		data, err = s.pdf.Render(dataset, timetable.ClassName+" timetable")
		contentType = "application/pdf"
	default:
		data, err = s.csv.Render(dataset)
		contentType = "text/csv"
	}
	if err != nil {
		s.logger.Error("timetable export failed", zap.String("class_id", classID), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
	}

	return &ExportResult{
		Filename:    fmt.Sprintf("timetable-%s.%s", slug(timetable.ClassName, classID), format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// exportDays covers the school week, extended to Saturday when any entry uses it.
func exportDays(entries []dto.TimetableEntryView) []string {
	count := scheduler.MinDaysPerWeek
	for _, entry := range entries {
		if idx := scheduler.DayIndex(entry.DayOfWeek); idx >= count && idx < len(scheduler.Weekdays) {
			count = idx + 1
		}
	}
	return scheduler.Weekdays[:count]
}

func exportCells(entries []dto.TimetableEntryView) []export.Cell {
	cells := make([]export.Cell, 0, len(entries))
	for _, entry := range entries {
		label := entry.PeriodName
		switch {
		case entry.IsBreak && label == "":
			label = "Break"
		case !entry.IsBreak:
			label = entry.SubjectName
			if entry.TeacherName != "" {
				label += " (" + entry.TeacherName + ")"
			}
		}
		cells = append(cells, export.Cell{Day: entry.DayOfWeek, Start: entry.StartTime, End: entry.EndTime, Label: label})
	}
	return cells
}

func slug(name, fallback string) string {
	if name == "" || name == scheduler.UnknownLabel {
		return fallback
	}
	return strings.ToLower(strings.Join(strings.Fields(name), "-"))
}
