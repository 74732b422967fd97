package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleWeek() Dataset {
	return WeeklyDataset([]string{"Monday", "Tuesday"}, []Cell{
		{Day: "Tuesday", Start: "08:45", End: "09:30", Label: "Breakfast Break"},
		{Day: "Monday", Start: "08:00", End: "08:45", Label: "Mathematics (Budi)"},
		{Day: "Monday", Start: "08:45", End: "09:30", Label: "Breakfast Break"},
		{Day: "Sunday", Start: "08:00", End: "08:45", Label: "ignored"},
	})
}

func TestWeeklyDatasetPivotsByTime(t *testing.T) {
	data := sampleWeek()

	assert.Equal(t, []string{TimeColumn, "Monday", "Tuesday"}, data.Headers)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "08:00-08:45", data.Rows[0][TimeColumn])
	assert.Equal(t, "Mathematics (Budi)", data.Rows[0]["Monday"])
	assert.Empty(t, data.Rows[0]["Tuesday"])
	assert.Equal(t, "Breakfast Break", data.Rows[1]["Tuesday"])
}

func TestWeeklyDatasetJoinsCollisions(t *testing.T) {
	data := WeeklyDataset([]string{"Monday"}, []Cell{
		{Day: "Monday", Start: "08:00", End: "08:45", Label: "Art"},
		{Day: "Monday", Start: "08:00", End: "08:45", Label: "Music"},
	})
	require.Len(t, data.Rows, 1)
	assert.Equal(t, "Art / Music", data.Rows[0]["Monday"])
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleWeek())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Time,Monday,Tuesday", lines[0])
	assert.Equal(t, "08:00-08:45,Mathematics (Budi),", lines[1])
}

func TestCSVExporterCustomDelimiter(t *testing.T) {
	out, err := NewCSVExporter(WithComma(';')).Render(sampleWeek())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "Time;Monday;Tuesday\n"))

	out, err = NewCSVExporter(WithComma('"')).Render(sampleWeek())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "Time,Monday,Tuesday\n"))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleWeek(), "X A timetable")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	wide := WeeklyDataset([]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}, nil)
	out, err = NewPDFExporter().Render(wide, "")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
