package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

type timetableSourceStub struct {
	resp *dto.ClassTimetableResponse
	err  error
}

func (s timetableSourceStub) ClassTimetable(ctx context.Context, classID string) (*dto.ClassTimetableResponse, error) {
	return s.resp, s.err
}

type failingCSV struct{}

func (failingCSV) Render(data export.Dataset) ([]byte, error) {
	return nil, errors.New("disk full")
}

func sampleClassTimetable() *dto.ClassTimetableResponse {
	return &dto.ClassTimetableResponse{
		ClassID:   "class-1",
		ClassName: "X A",
		Entries: []dto.TimetableEntryView{
			{ClassID: "class-1", SubjectID: "math", SubjectName: "Mathematics", TeacherID: "t-1", TeacherName: "Budi", DayOfWeek: "Monday", StartTime: "08:00", EndTime: "08:45"},
			{ClassID: "class-1", DayOfWeek: "Monday", StartTime: "08:45", EndTime: "09:30", IsBreak: true, PeriodName: "Breakfast Break"},
			{ClassID: "class-1", SubjectID: "bio", SubjectName: "Biology", DayOfWeek: "Friday", StartTime: "08:00", EndTime: "08:45"},
		},
	}
}

func TestExportClassCSV(t *testing.T) {
	svc := NewExportService(timetableSourceStub{resp: sampleClassTimetable()}, nil, nil, nil)

	result, err := svc.ExportClass(context.Background(), "class-1", "")
	require.NoError(t, err)
	assert.Equal(t, "timetable-x-a.csv", result.Filename)
	assert.Equal(t, "text/csv", result.ContentType)

	lines := strings.Split(strings.TrimSpace(string(result.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Time,Monday,Tuesday,Wednesday,Thursday,Friday", lines[0])
	assert.Equal(t, "08:00-08:45,Mathematics (Budi),,,,Biology", lines[1])
	assert.Equal(t, "08:45-09:30,Breakfast Break,,,,", lines[2])
}

func TestExportClassPDF(t *testing.T) {
	svc := NewExportService(timetableSourceStub{resp: sampleClassTimetable()}, nil, nil, nil)

	result, err := svc.ExportClass(context.Background(), "class-1", " PDF ")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Data), "%PDF"))
}

func TestExportClassIncludesSaturday(t *testing.T) {
	timetable := sampleClassTimetable()
	timetable.Entries = append(timetable.Entries, dto.TimetableEntryView{SubjectName: "Art", DayOfWeek: "Saturday", StartTime: "08:00", EndTime: "08:45"})
	svc := NewExportService(timetableSourceStub{resp: timetable}, nil, nil, nil)

	result, err := svc.ExportClass(context.Background(), "class-1", ExportCSV)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(result.Data), "Time,Monday,Tuesday,Wednesday,Thursday,Friday,Saturday\n"))
}

func TestExportClassErrors(t *testing.T) {
	ctx := context.Background()

	svc := NewExportService(timetableSourceStub{resp: sampleClassTimetable()}, nil, nil, nil)
	_, err := svc.ExportClass(ctx, "class-1", "xlsx")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	missing := NewExportService(timetableSourceStub{err: appErrors.Clone(appErrors.ErrNotFound, "class not found")}, nil, nil, nil)
	_, err = missing.ExportClass(ctx, "ghost", ExportCSV)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	broken := NewExportService(timetableSourceStub{resp: sampleClassTimetable()}, failingCSV{}, nil, nil)
	_, err = broken.ExportClass(ctx, "class-1", ExportCSV)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestSlugFallsBackToID(t *testing.T) {
	assert.Equal(t, "class-9", slug("", "class-9"))
	assert.Equal(t, "xi-ipa-2", slug("XI  IPA 2", "class-9"))
}
