// Package sqlstore persists journeys, plans and the timeline in SQLite.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/felixgeelhaar/pillars/pkg/domain/assessment"
	"github.com/felixgeelhaar/pillars/pkg/domain/journey"
	"github.com/felixgeelhaar/pillars/pkg/domain/schedule"
	"github.com/felixgeelhaar/pillars/pkg/domain/timeline"
)

// Memory opens a private in-memory database.
const Memory = ":memory:"

// Store implements every repository contract on one database.
type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite file at path, creating it and its tables.
func Open(path string) (*Store, error) {
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One connection: SQLite has one writer, and every :memory: connection
	// is its own database.
	sqlDB.SetMaxOpenConns(1)

	if path != Memory {
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL", "PRAGMA busy_timeout=5000"} {
			if err := db.Exec(pragma).Error; err != nil {
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}
	if err := db.AutoMigrate(
		&journeyRow{},
		&settingsRow{},
		&assessmentRow{},
		&activityRow{},
		&calendarRow{},
		&eventRow{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	slog.Debug("database ready", "path", path)
	return &Store{db: db}, nil
}

// Close releases the connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Journeys

func (s *Store) SaveJourney(ctx context.Context, j *journey.Journey) error {
	row := toJourneyRow(*j)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save journey: %w", err)
	}
	return nil
}

func (s *Store) GetJourney(ctx context.Context, id string) (*journey.Journey, error) {
	var row journeyRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", journey.ErrJourneyNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get journey: %w", err)
	}
	j := row.domain()
	return &j, nil
}

func (s *Store) ListJourneys(ctx context.Context, userID string, f journey.Filter) ([]journey.Journey, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if f.PillarKey != "" {
		q = q.Where("pillar_key = ?", string(f.PillarKey))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		q = q.Where("status IN ?", statuses)
	}
	var rows []journeyRow
	if err := q.Order("started_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list journeys: %w", err)
	}
	out := make([]journey.Journey, len(rows))
	for i, r := range rows {
		out[i] = r.domain()
	}
	return out, nil
}

func (s *Store) SaveSettings(ctx context.Context, st *journey.Settings) error {
	row := settingsRow{UserID: st.UserID, Mode: string(st.Mode), TouchedAt: st.UpdatedAt}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (s *Store) LoadSettings(ctx context.Context, userID string) (*journey.Settings, error) {
	var row settingsRow
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return &journey.Settings{UserID: row.UserID, Mode: journey.Mode(row.Mode), UpdatedAt: row.TouchedAt}, nil
}

// Assessments

func (s *Store) SaveAssessment(ctx context.Context, r *assessment.Result) error {
	row := assessmentRow{ID: r.ID, UserID: r.UserID, PillarKey: string(r.PillarKey), Scores: r.Scores, CompletedAt: r.CompletedAt}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("save assessment: %w", err)
	}
	return nil
}

func (s *Store) ListAssessments(ctx context.Context, userID string) ([]assessment.Result, error) {
	var rows []assessmentRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("completed_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	out := make([]assessment.Result, len(rows))
	for i, r := range rows {
		out[i] = r.domain()
	}
	return out, nil
}

// Plan stores

func (s *Store) UpsertCalendarEntries(ctx context.Context, entries []schedule.CalendarEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]calendarRow, len(entries))
	for i, e := range entries {
		rows[i] = calendarRow(e)
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "activity_id"}},
		UpdateAll: true,
	}).Create(&rows).Error
}

// ListCalendarEntries returns a journey's calendar entries by start time.
func (s *Store) ListCalendarEntries(ctx context.Context, journeyID string) ([]schedule.CalendarEntry, error) {
	var rows []calendarRow
	if err := s.db.WithContext(ctx).Where("journey_id = ?", journeyID).Order("starts_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list calendar: %w", err)
	}
	out := make([]schedule.CalendarEntry, len(rows))
	for i, r := range rows {
		out[i] = schedule.CalendarEntry(r)
	}
	return out, nil
}

func (s *Store) UpsertTasks(ctx context.Context, acts []schedule.Activity) error {
	if len(acts) == 0 {
		return nil
	}
	rows := make([]activityRow, len(acts))
	for i, a := range acts {
		rows[i] = toActivityRow(a)
	}
	// Completion is kept when a plan is written again.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id", "journey_id", "pillar_key", "title", "description",
			"category", "estimated_minutes", "scheduled_date", "week",
		}),
	}).Create(&rows).Error
}

func (s *Store) ListTasks(ctx context.Context, journeyID string) ([]schedule.Activity, error) {
	var rows []activityRow
	if err := s.db.WithContext(ctx).Where("journey_id = ?", journeyID).Order("scheduled_date, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	out := make([]schedule.Activity, len(rows))
	for i, r := range rows {
		out[i] = r.domain()
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].ScheduledDate.Before(out[k].ScheduledDate) })
	return out, nil
}

func (s *Store) SetTaskCompleted(ctx context.Context, activityID string, at time.Time) (schedule.Activity, error) {
	var out schedule.Activity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&activityRow{}).
			Where("id = ? AND is_completed = ?", activityID, false).
			Updates(map[string]any{"is_completed": true, "completed_at": at}).Error; err != nil {
			return err
		}
		var row activityRow
		err := tx.Where("id = ?", activityID).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", schedule.ErrActivityNotFound, activityID)
		}
		if err != nil {
			return err
		}
		out = row.domain()
		return nil
	})
	return out, err
}

// Timeline

// AppendEvent chains e to the last stored event and inserts it.
func (s *Store) AppendEvent(ctx context.Context, e *timeline.Event) error {
	if !e.Type.IsValid() {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last eventRow
		err := tx.Order("seq DESC").Limit(1).Find(&last).Error
		if err != nil {
			return fmt.Errorf("load last event: %w", err)
		}
		e.PrevHash = last.Hash
		e.Hash = e.CalculateHash()
		row := toEventRow(*e)
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		return nil
	})
}

func (s *Store) listEvents(ctx context.Context, column, value string) ([]timeline.Event, error) {
	var rows []eventRow
	if err := s.db.WithContext(ctx).Where(column+" = ?", value).Order("occurred_at, seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	out := make([]timeline.Event, len(rows))
	for i, r := range rows {
		out[i] = r.domain()
	}
	timeline.SortChronological(out)
	return out, nil
}

func (s *Store) ListByJourney(ctx context.Context, journeyID string) ([]timeline.Event, error) {
	return s.listEvents(ctx, "journey_id", journeyID)
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]timeline.Event, error) {
	return s.listEvents(ctx, "user_id", userID)
}

// VerifyIntegrity walks the hash chain in insertion order.
func (s *Store) VerifyIntegrity(ctx context.Context) ([]string, error) {
	var rows []eventRow
	if err := s.db.WithContext(ctx).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load timeline: %w", err)
	}
	var violations []string
	lastHash := ""
	byJourney := map[string][]timeline.Event{}
	var order []string
	for i, r := range rows {
		e := r.domain()
		if e.PrevHash != lastHash {
			violations = append(violations, fmt.Sprintf("Event %d (%s): PrevHash mismatch", i, e.ID))
		}
		if e.Hash != e.CalculateHash() {
			violations = append(violations, fmt.Sprintf("Event %d (%s): Hash mismatch - possible tampering", i, e.ID))
		}
		lastHash = e.Hash
		if _, ok := byJourney[e.JourneyID]; !ok {
			order = append(order, e.JourneyID)
		}
		byJourney[e.JourneyID] = append(byJourney[e.JourneyID], e)
	}
	for _, id := range order {
		if i := timeline.CheckMonotonic(byJourney[id]); i >= 0 {
			violations = append(violations, fmt.Sprintf("Journey %s: out of order at event %d", id, i))
		}
	}
	return violations, nil
}
