package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

// EventTimetableApplied is the job and event type emitted after Apply.
const EventTimetableApplied = "timetable.applied"

const conflictCachePrefix = "timetable:conflicts:"

// Generation defaults used when neither the request nor its template sets a field.
const (
	DefaultPeriodsPerDay         = 6
	DefaultDaysPerWeek           = 5
	DefaultMinPeriodsPerSubject  = 2
	DefaultMaxPeriodsPerSubject  = 5
	DefaultShortBreakAfterPeriod = 3
)

type timetableEntryStore interface {
	ListByClass(ctx context.Context, classID string) ([]models.TimetableEntry, error)
	ListByTeachers(ctx context.Context, teacherIDs []string, excludeClassID string) ([]models.TimetableEntry, error)
	ListAll(ctx context.Context) ([]models.TimetableEntry, error)
	DeleteByClass(ctx context.Context, classID string) (int64, error)
	BulkInsert(ctx context.Context, entries []models.TimetableEntry) error
}

type timetableClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Class, error)
}

type classSubjectRoster interface {
	ListByClass(ctx context.Context, classID string) ([]models.ClassSubjectAssignment, error)
}

type timetableSubjectReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Subject, error)
}

type timetableTeacherReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Teacher, error)
}

type timetableTemplateStore interface {
	List(ctx context.Context) ([]models.TimetableTemplate, error)
	FindByID(ctx context.Context, id string) (*models.TimetableTemplate, error)
	Create(ctx context.Context, tmpl *models.TimetableTemplate) error
	Delete(ctx context.Context, id string) (bool, error)
}

type timetableCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

type eventDispatcher interface {
	Enqueue(job jobs.Job) error
}

// TimetableConfig tunes the timetable workflow.
type TimetableConfig struct {
	ProposalTTL          time.Duration
	ConflictCacheTTL     time.Duration
	DefaultBreakfastTime string
	DefaultLunchTime     string
}

// TimetableService generates, reviews and applies class timetables.
type TimetableService struct {
	entries   timetableEntryStore
	classes   timetableClassReader
	roster    classSubjectRoster
	subjects  timetableSubjectReader
	teachers  timetableTeacherReader
	templates timetableTemplateStore
	cache     timetableCache
	events    eventDispatcher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableConfig
	store     *proposalStore
	locks     *classLocks
	now       func() time.Time
}

// NewTimetableService wires timetable dependencies. cache, events and metrics may be nil.
func NewTimetableService(
	entries timetableEntryStore,
	classes timetableClassReader,
	roster classSubjectRoster,
	subjects timetableSubjectReader,
	teachers timetableTeacherReader,
	templates timetableTemplateStore,
	cache timetableCache,
	events eventDispatcher,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.ConflictCacheTTL <= 0 {
		cfg.ConflictCacheTTL = 5 * time.Minute
	}
	return &TimetableService{
		entries:   entries,
		classes:   classes,
		roster:    roster,
		subjects:  subjects,
		teachers:  teachers,
		templates: templates,
		cache:     cache,
		events:    events,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		store:     newProposalStore(cfg.ProposalTTL),
		locks:     newClassLocks(),
		now:       time.Now,
	}
}

// Generate runs the grid, demand and assignment pipeline for one class and
// holds the result in memory as a proposal.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableProposalResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	settings, err := s.resolveSettings(ctx, req)
	if err != nil {
		return nil, err
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	roster, err := s.roster.ListByClass(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class subjects")
	}

	proposal := timetableProposal{
		ID:       uuid.NewString(),
		ClassID:  class.ID,
		State:    ProposalConfiguring,
		Settings: settings,
	}

	grid := buildGrid(settings)
	plan, err := scheduler.PlanDemand(rosterSubjects(roster), grid, scheduler.DemandBounds{
		Min: settings.MinPeriodsPerSubject,
		Max: settings.MaxPeriodsPerSubject,
	})
	if err != nil {
		if errors.Is(err, scheduler.ErrNoSubjects) {
			return nil, appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "class has no subjects to schedule")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to plan subject demand")
	}

	commitmentRows, err := s.entries.ListByTeachers(ctx, rosterTeacherIDs(roster), class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher commitments")
	}
	commitments := toSchedulerEntries(commitmentRows)

	started := time.Now()
	result := s.newEngine(req.Seed).Assign(scheduler.AssignInput{
		ClassID:     class.ID,
		Grid:        grid,
		Pool:        plan.Pool,
		Commitments: commitments,
	})
	s.metrics.ObserveGeneration(time.Since(started), result.Stats)

	lookups := newLookups()
	lookups.Classes[class.ID] = scheduler.ClassLabel{Name: class.Name, Section: class.Section}
	for _, item := range roster {
		lookups.Subjects[item.SubjectID] = item.SubjectName
		if id := deref(item.TeacherID); id != "" {
			lookups.Teachers[id] = deref(item.TeacherName)
		}
	}
	lookups = s.enrichLookups(ctx, lookups, commitments)

	audit := append(append([]scheduler.Entry(nil), result.Entries...), commitments...)
	conflicts := involving(scheduler.Detect(audit, lookups), class.ID)
	s.metrics.RecordConflicts(conflicts)

	proposal.State = ProposalProposed
	proposal.Plan = *plan
	proposal.Entries = result.Entries
	proposal.Conflicts = conflicts
	proposal.Stats = result.Stats
	proposal.Lookups = lookups
	proposal.GeneratedAt = s.now()
	s.store.Save(proposal)
	s.metrics.SetActiveProposals(s.store.Len())

	s.logger.Info("timetable proposal generated",
		zap.String("proposal_id", proposal.ID),
		zap.String("class_id", class.ID),
		zap.Int("filled", result.Stats.Filled),
		zap.Int("unfilled", result.Stats.Unfilled),
		zap.Int("repairs", result.Stats.Repairs),
		zap.Int("conflicts", len(conflicts)),
	)
	return s.proposalResponse(proposal), nil
}

// GetProposal returns a live proposal.
func (s *TimetableService) GetProposal(ctx context.Context, id string) (*dto.TimetableProposalResponse, error) {
	proposal, err := s.loadProposal(id)
	if err != nil {
		return nil, err
	}
	return s.proposalResponse(proposal), nil
}

// Compare lines up the live timetable of the proposal's class with the proposed entries.
func (s *TimetableService) Compare(ctx context.Context, id string) (*dto.TimetableComparisonResponse, error) {
	proposal, err := s.loadProposal(id)
	if err != nil {
		return nil, err
	}
	rows, err := s.entries.ListByClass(ctx, proposal.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current timetable")
	}
	current := toSchedulerEntries(rows)
	lookups := s.enrichLookups(ctx, proposal.Lookups, current)

	return &dto.TimetableComparisonResponse{
		ProposalID: proposal.ID,
		ClassID:    proposal.ClassID,
		Comparison: scheduler.Compare(buildGrid(proposal.Settings), current, proposal.Entries, lookups),
	}, nil
}

// Apply replaces the class timetable with the proposal. Applying an applied
// proposal again rewrites the same set. When the delete succeeds but the
// insert fails the proposal stays Proposed and ErrApplyIncomplete is returned.
func (s *TimetableService) Apply(ctx context.Context, id string) (*dto.ApplyTimetableResponse, error) {
	proposal, err := s.loadProposal(id)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(proposal.ClassID)
	defer unlock()

	if proposal, err = s.loadProposal(id); err != nil {
		return nil, err
	}
	if proposal.State == ProposalRejected {
		return nil, appErrors.Clone(appErrors.ErrConflict, "proposal was rejected")
	}

	removed, err := s.entries.DeleteByClass(ctx, proposal.ClassID)
	if err != nil {
		s.metrics.RecordApply(ApplyOutcomeFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to clear timetable: %v", err))
	}

	rows := toTimetableRows(proposal.Entries)
	if err := s.entries.BulkInsert(ctx, rows); err != nil {
		s.metrics.RecordApply(ApplyOutcomeIncomplete)
		s.logger.Error("timetable apply incomplete",
			zap.String("proposal_id", proposal.ID),
			zap.String("class_id", proposal.ClassID),
			zap.Int64("removed", removed),
			zap.Error(err),
		)
		s.invalidateConflicts(ctx)
		message := fmt.Sprintf("%s: %v; the class may have no timetable until apply is retried", appErrors.ErrApplyIncomplete.Message, err)
		return nil, appErrors.Wrap(err, appErrors.ErrApplyIncomplete.Code, appErrors.ErrApplyIncomplete.Status, message)
	}

	s.store.SetState(proposal.ID, ProposalApplied)
	s.metrics.RecordApply(ApplyOutcomeApplied)
	s.invalidateConflicts(ctx)
	s.publishApplied(proposal, len(rows))

	s.logger.Info("timetable applied",
		zap.String("proposal_id", proposal.ID),
		zap.String("class_id", proposal.ClassID),
		zap.Int64("removed", removed),
		zap.Int("inserted", len(rows)),
	)
	return &dto.ApplyTimetableResponse{
		ProposalID: proposal.ID,
		ClassID:    proposal.ClassID,
		State:      string(ProposalApplied),
		Inserted:   len(rows),
	}, nil
}

// Reject discards a proposal without touching persistence.
func (s *TimetableService) Reject(ctx context.Context, id string) (*dto.TimetableProposalResponse, error) {
	proposal, err := s.loadProposal(id)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(proposal.ClassID)
	defer unlock()

	if proposal, err = s.loadProposal(id); err != nil {
		return nil, err
	}
	switch proposal.State {
	case ProposalApplied:
		return nil, appErrors.Clone(appErrors.ErrConflict, "proposal was already applied")
	case ProposalRejected:
		return s.proposalResponse(proposal), nil
	}

	s.store.SetState(proposal.ID, ProposalRejected)
	s.metrics.RecordApply(ApplyOutcomeRejected)
	proposal.State = ProposalRejected
	s.logger.Info("timetable proposal rejected", zap.String("proposal_id", proposal.ID), zap.String("class_id", proposal.ClassID))
	return s.proposalResponse(proposal), nil
}

// ClassTimetable returns the live timetable of a class in day and time order.
func (s *TimetableService) ClassTimetable(ctx context.Context, classID string) (*dto.ClassTimetableResponse, error) {
	entries, lookups, err := s.classTimetable(ctx, classID)
	if err != nil {
		return nil, err
	}
	return &dto.ClassTimetableResponse{
		ClassID:   classID,
		ClassName: lookups.ClassName(classID),
		Entries:   toEntryViews(entries, lookups),
	}, nil
}

// Conflicts audits live entries. With a class id the audit covers that class
// and the other classes its teachers teach; otherwise the whole school.
func (s *TimetableService) Conflicts(ctx context.Context, classID string) (*dto.ConflictReportResponse, error) {
	key := conflictCachePrefix + "all"
	if classID != "" {
		key = conflictCachePrefix + classID
	}
	if s.cache != nil {
		var cached dto.ConflictReportResponse
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			cached.Cached = true
			return &cached, nil
		}
	}

	var (
		entries []scheduler.Entry
		err     error
	)
	if classID != "" {
		entries, err = s.classAuditSet(ctx, classID)
	} else {
		var rows []models.TimetableEntry
		rows, err = s.entries.ListAll(ctx)
		entries = toSchedulerEntries(rows)
	}
	if err != nil {
		return nil, err
	}

	lookups := s.enrichLookups(ctx, newLookups(), entries)
	conflicts := scheduler.Detect(entries, lookups)
	if classID != "" {
		conflicts = involving(conflicts, classID)
	}
	if conflicts == nil {
		conflicts = []scheduler.Conflict{}
	}

	report := &dto.ConflictReportResponse{
		ClassID:     classID,
		Conflicts:   conflicts,
		Count:       len(conflicts),
		GeneratedAt: s.now().UTC(),
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, report, s.cfg.ConflictCacheTTL)
	}
	return report, nil
}

func involving(conflicts []scheduler.Conflict, classID string) []scheduler.Conflict {
	var filtered []scheduler.Conflict
	for _, conflict := range conflicts {
		if conflict.Involves(classID) {
			filtered = append(filtered, conflict)
		}
	}
	return filtered
}

func (s *TimetableService) classAuditSet(ctx context.Context, classID string) ([]scheduler.Entry, error) {
	rows, err := s.entries.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	seen := make(map[string]bool)
	var teacherIDs []string
	for _, row := range rows {
		id := deref(row.TeacherID)
		if id == "" || row.IsBreak || seen[id] {
			continue
		}
		seen[id] = true
		teacherIDs = append(teacherIDs, id)
	}
	others, err := s.entries.ListByTeachers(ctx, teacherIDs, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher commitments")
	}
	return append(toSchedulerEntries(rows), toSchedulerEntries(others)...), nil
}

func (s *TimetableService) classTimetable(ctx context.Context, classID string) ([]scheduler.Entry, scheduler.Lookups, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, scheduler.Lookups{}, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, scheduler.Lookups{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	rows, err := s.entries.ListByClass(ctx, class.ID)
	if err != nil {
		return nil, scheduler.Lookups{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	entries := toSchedulerEntries(rows)
	sortEntries(entries)

	lookups := newLookups()
	lookups.Classes[class.ID] = scheduler.ClassLabel{Name: class.Name, Section: class.Section}
	return entries, s.enrichLookups(ctx, lookups, entries), nil
}

// enrichLookups returns a copy of base with the display names entries need.
// base is never modified. Lookup failures are logged and leave ids unresolved.
func (s *TimetableService) enrichLookups(ctx context.Context, base scheduler.Lookups, entries []scheduler.Entry) scheduler.Lookups {
	lookups := base.Clone()

	var classIDs, subjectIDs, teacherIDs []string
	pending := map[string]bool{}
	want := func(kind, id string, known bool, dst *[]string) {
		if id == "" || known || pending[kind+id] {
			return
		}
		pending[kind+id] = true
		*dst = append(*dst, id)
	}
	for _, entry := range entries {
		_, ok := lookups.Classes[entry.ClassID]
		want("c", entry.ClassID, ok, &classIDs)
		_, ok = lookups.Subjects[entry.SubjectID]
		want("s", entry.SubjectID, ok, &subjectIDs)
		_, ok = lookups.Teachers[entry.TeacherID]
		want("t", entry.TeacherID, ok, &teacherIDs)
	}

	if len(classIDs) > 0 && s.classes != nil {
		classes, err := s.classes.ListByIDs(ctx, classIDs)
		if err != nil {
			s.logger.Warn("class lookup failed", zap.Error(err))
		}
		for _, class := range classes {
			lookups.Classes[class.ID] = scheduler.ClassLabel{Name: class.Name, Section: class.Section}
		}
	}
	if len(subjectIDs) > 0 && s.subjects != nil {
		subjects, err := s.subjects.ListByIDs(ctx, subjectIDs)
		if err != nil {
			s.logger.Warn("subject lookup failed", zap.Error(err))
		}
		for _, subject := range subjects {
			lookups.Subjects[subject.ID] = subject.Name
		}
	}
	if len(teacherIDs) > 0 && s.teachers != nil {
		teachers, err := s.teachers.ListByIDs(ctx, teacherIDs)
		if err != nil {
			s.logger.Warn("teacher lookup failed", zap.Error(err))
		}
		for _, teacher := range teachers {
			lookups.Teachers[teacher.ID] = teacher.FullName
		}
	}
	return lookups
}

func (s *TimetableService) resolveSettings(ctx context.Context, req dto.GenerateTimetableRequest) (dto.TimetableSettings, error) {
	settings := req.Settings
	if req.TemplateID != "" {
		tmpl, err := s.GetTemplate(ctx, req.TemplateID)
		if err != nil {
			return settings, err
		}
		settings = mergeSettings(settings, tmpl.Settings)
	}
	settings = mergeSettings(settings, dto.TimetableSettings{
		PeriodsPerDay:         DefaultPeriodsPerDay,
		DaysPerWeek:           DefaultDaysPerWeek,
		MinPeriodsPerSubject:  DefaultMinPeriodsPerSubject,
		MaxPeriodsPerSubject:  DefaultMaxPeriodsPerSubject,
		BreakfastTime:         s.cfg.DefaultBreakfastTime,
		LunchTime:             s.cfg.DefaultLunchTime,
		ShortBreakAfterPeriod: DefaultShortBreakAfterPeriod,
	})
	if err := s.validator.Struct(settings); err != nil {
		return settings, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable settings")
	}
	return settings, nil
}

// mergeSettings fills zero fields of base from fallback.
func mergeSettings(base, fallback dto.TimetableSettings) dto.TimetableSettings {
	if base.PeriodsPerDay == 0 {
		base.PeriodsPerDay = fallback.PeriodsPerDay
	}
	if base.DaysPerWeek == 0 {
		base.DaysPerWeek = fallback.DaysPerWeek
	}
	if base.MinPeriodsPerSubject == 0 {
		base.MinPeriodsPerSubject = fallback.MinPeriodsPerSubject
	}
	if base.MaxPeriodsPerSubject == 0 {
		base.MaxPeriodsPerSubject = fallback.MaxPeriodsPerSubject
	}
	if base.BreakfastTime == "" {
		base.BreakfastTime = fallback.BreakfastTime
	}
	if base.LunchTime == "" {
		base.LunchTime = fallback.LunchTime
	}
	if base.ShortBreakAfterPeriod == 0 {
		base.ShortBreakAfterPeriod = fallback.ShortBreakAfterPeriod
	}
	return base
}

func (s *TimetableService) newEngine(seed *int64) *scheduler.Engine {
	if seed != nil {
		return scheduler.NewEngine(scheduler.WithSeed(*seed))
	}
	return scheduler.NewEngine()
}

func (s *TimetableService) loadProposal(id string) (timetableProposal, error) {
	proposal, ok := s.store.Get(id)
	if !ok {
		return timetableProposal{}, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return proposal, nil
}

func (s *TimetableService) proposalResponse(proposal timetableProposal) *dto.TimetableProposalResponse {
	conflicts := proposal.Conflicts
	if conflicts == nil {
		conflicts = []scheduler.Conflict{}
	}
	return &dto.TimetableProposalResponse{
		ProposalID:        proposal.ID,
		ClassID:           proposal.ClassID,
		State:             string(proposal.State),
		Settings:          proposal.Settings,
		PeriodsPerSubject: proposal.Plan.PeriodsPerSubject,
		Demand:            proposal.Plan.Subjects,
		Entries:           toEntryViews(proposal.Entries, proposal.Lookups),
		Conflicts:         conflicts,
		Stats:             proposal.Stats,
		GeneratedAt:       proposal.GeneratedAt.UTC(),
		ExpiresAt:         s.store.ExpiresAt(proposal).UTC(),
	}
}

func (s *TimetableService) invalidateConflicts(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, conflictCachePrefix+"*")
}

func (s *TimetableService) publishApplied(proposal timetableProposal, inserted int) {
	if s.events == nil {
		return
	}
	event := models.TimetableAppliedEvent{
		Type:       EventTimetableApplied,
		ClassID:    proposal.ClassID,
		ProposalID: proposal.ID,
		Inserted:   inserted,
		AppliedAt:  s.now().UTC(),
	}
	if err := s.events.Enqueue(jobs.Job{ID: uuid.NewString(), Type: EventTimetableApplied, Payload: event}); err != nil {
		s.logger.Warn("failed to enqueue timetable event", zap.String("proposal_id", proposal.ID), zap.Error(err))
	}
}
