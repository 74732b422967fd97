package scheduler

import (
	"math/rand"
	"time"
)

// Entry is a timetable row as seen by the engine and the detector. Empty
// SubjectID/TeacherID mean "no reference".
type Entry struct {
	ClassID    string `json:"classId"`
	SubjectID  string `json:"subjectId,omitempty"`
	TeacherID  string `json:"teacherId,omitempty"`
	Day        string `json:"day"`
	Start      string `json:"start"`
	End        string `json:"end"`
	IsBreak    bool   `json:"isBreak"`
	PeriodName string `json:"periodName,omitempty"`
}

// SlotKey identifies the (day, start, end) position of the entry.
func (e Entry) SlotKey() string {
	return TimeSlot{Start: NormalizeClock(e.Start), End: NormalizeClock(e.End)}.Key(CanonicalDay(e.Day))
}

// RepairStrategy picks a replacement pool item when the candidate's teacher
// is already committed at the current slot.
type RepairStrategy interface {
	Name() string
	// Alternative returns the index of a usable pool item after cursor.
	Alternative(pool []Demand, cursor int, available func(Demand) bool) (int, bool)
}

// SwapRepair scans forward for the first item whose teacher is free. The
// engine swaps it into the cursor position.
type SwapRepair struct{}

// Name implements RepairStrategy.
func (SwapRepair) Name() string { return "forward_swap" }

// Alternative implements RepairStrategy.
func (SwapRepair) Alternative(pool []Demand, cursor int, available func(Demand) bool) (int, bool) {
	for i := cursor + 1; i < len(pool); i++ {
		if available(pool[i]) {
			return i, true
		}
	}
	return 0, false
}

// Engine runs the greedy single pass assignment.
type Engine struct {
	rng    *rand.Rand
	repair RepairStrategy
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithRand injects the random source used to shuffle the pool.
func WithRand(rng *rand.Rand) EngineOption {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithSeed makes the shuffle deterministic.
func WithSeed(seed int64) EngineOption {
	return WithRand(rand.New(rand.NewSource(seed)))
}

// WithRepair swaps the repair strategy.
func WithRepair(strategy RepairStrategy) EngineOption {
	return func(e *Engine) {
		if strategy != nil {
			e.repair = strategy
		}
	}
}

// NewEngine builds an engine. An Engine is not safe for concurrent use.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		repair: SwapRepair{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AssignInput is everything one class run needs.
type AssignInput struct {
	ClassID string
	Grid    *Grid
	Pool    []Demand
	// Commitments are entries of other classes that already occupy teachers.
	Commitments []Entry
}

// AssignStats summarises a run.
type AssignStats struct {
	TeachingSlots int    `json:"teachingSlots"`
	BreakSlots    int    `json:"breakSlots"`
	Filled        int    `json:"filled"`
	Unfilled      int    `json:"unfilled"`
	Repairs       int    `json:"repairs"`
	Skipped       int    `json:"skipped"`
	PoolSize      int    `json:"poolSize"`
	Strategy      string `json:"strategy"`
}

// AssignResult holds the generated entries in grid order.
type AssignResult struct {
	Entries []Entry
	Stats   AssignStats
}

// Assign shuffles the pool and walks the grid day by day, slot by slot.
// It never fails; slots it cannot fill stay empty.
func (e *Engine) Assign(in AssignInput) AssignResult {
	pool := make([]Demand, len(in.Pool))
	copy(pool, in.Pool)
	e.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	busy := make(map[string]map[string]struct{})
	markBusy := func(teacherID, key string) {
		if busy[teacherID] == nil {
			busy[teacherID] = make(map[string]struct{})
		}
		busy[teacherID][key] = struct{}{}
	}
	for _, c := range in.Commitments {
		if c.IsBreak || c.TeacherID == "" {
			continue
		}
		markBusy(c.TeacherID, c.SlotKey())
	}

	result := AssignResult{
		Entries: make([]Entry, 0, in.Grid.Size()),
		Stats:   AssignStats{PoolSize: len(pool), Strategy: e.repair.Name()},
	}
	cursor := 0
	for _, cell := range in.Grid.Cells() {
		if cell.Kind.IsBreak() {
			result.Stats.BreakSlots++
			result.Entries = append(result.Entries, Entry{
				ClassID:    in.ClassID,
				Day:        cell.Day,
				Start:      cell.Slot.Start,
				End:        cell.Slot.End,
				IsBreak:    true,
				PeriodName: cell.Kind.PeriodName(),
			})
			continue
		}
		result.Stats.TeachingSlots++
		if cursor >= len(pool) {
			result.Stats.Unfilled++
			continue
		}

		key := cell.Slot.Key(cell.Day)
		available := func(d Demand) bool {
			if d.TeacherID == "" {
				return true
			}
			_, taken := busy[d.TeacherID][key]
			return !taken
		}

		if !available(pool[cursor]) {
			idx, ok := e.repair.Alternative(pool, cursor, available)
			if !ok {
				cursor++
				result.Stats.Skipped++
				result.Stats.Unfilled++
				continue
			}
			pool[cursor], pool[idx] = pool[idx], pool[cursor]
			result.Stats.Repairs++
		}

		candidate := pool[cursor]
		result.Entries = append(result.Entries, Entry{
			ClassID:   in.ClassID,
			SubjectID: candidate.SubjectID,
			TeacherID: candidate.TeacherID,
			Day:       cell.Day,
			Start:     cell.Slot.Start,
			End:       cell.Slot.End,
		})
		if candidate.TeacherID != "" {
			markBusy(candidate.TeacherID, key)
		}
		result.Stats.Filled++
		cursor++
	}
	return result
}
