package export

import "sort"

// TimeColumn is the leading column of a weekly timetable dataset.
const TimeColumn = "Time"

// Cell is one occupied position of a weekly timetable.
type Cell struct {
	Day   string
	Start string
	End   string
	Label string
}

// WeeklyDataset pivots cells into one row per time range and one column per day.
// Cells on days outside days are ignored.
func WeeklyDataset(days []string, cells []Cell) Dataset {
	headers := append([]string{TimeColumn}, days...)
	known := make(map[string]bool, len(days))
	for _, day := range days {
		known[day] = true
	}

	rowsByRange := make(map[string]map[string]string)
	var ranges []string
	for _, cell := range cells {
		if !known[cell.Day] {
			continue
		}
		key := cell.Start + "-" + cell.End
		row, ok := rowsByRange[key]
		if !ok {
			row = map[string]string{TimeColumn: key}
			rowsByRange[key] = row
			ranges = append(ranges, key)
		}
		if existing := row[cell.Day]; existing != "" {
			row[cell.Day] = existing + " / " + cell.Label
		} else {
			row[cell.Day] = cell.Label
		}
	}
	sort.Strings(ranges)

	rows := make([]map[string]string, 0, len(ranges))
	for _, key := range ranges {
		rows = append(rows, rowsByRange[key])
	}
	return Dataset{Headers: headers, Rows: rows}
}
