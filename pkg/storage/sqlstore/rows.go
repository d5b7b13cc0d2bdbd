package sqlstore

import (
	"time"

	"github.com/felixgeelhaar/pillars/pkg/domain/assessment"
	"github.com/felixgeelhaar/pillars/pkg/domain/journey"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
	"github.com/felixgeelhaar/pillars/pkg/domain/schedule"
	"github.com/felixgeelhaar/pillars/pkg/domain/timeline"
)

type journeyRow struct {
	ID          string `gorm:"primaryKey;size:64"`
	UserID      string `gorm:"size:128;index"`
	PillarKey   string `gorm:"size:32;index"`
	Mode        string `gorm:"size:16"`
	Status      string `gorm:"size:16;index"`
	Progress    int    `gorm:"default:0"`
	StartedAt   time.Time
	PausedAt    *time.Time
	CompletedAt *time.Time
	AbandonedAt *time.Time
	AttemptKey  string    `gorm:"size:255;index"`
	TouchedAt   time.Time `gorm:"column:touched_at"`
}

func (journeyRow) TableName() string { return "journeys" }

func toJourneyRow(j journey.Journey) journeyRow {
	return journeyRow{
		ID:          j.ID,
		UserID:      j.UserID,
		PillarKey:   string(j.PillarKey),
		Mode:        string(j.Mode),
		Status:      string(j.Status),
		Progress:    j.Progress,
		StartedAt:   j.StartedAt,
		PausedAt:    j.PausedAt,
		CompletedAt: j.CompletedAt,
		AbandonedAt: j.AbandonedAt,
		AttemptKey:  j.AttemptKey,
		TouchedAt:   j.UpdatedAt,
	}
}

func (r journeyRow) domain() journey.Journey {
	return journey.Journey{
		ID:          r.ID,
		UserID:      r.UserID,
		PillarKey:   pillar.Key(r.PillarKey),
		Mode:        journey.Mode(r.Mode),
		Status:      journey.Status(r.Status),
		Progress:    r.Progress,
		StartedAt:   r.StartedAt,
		PausedAt:    r.PausedAt,
		CompletedAt: r.CompletedAt,
		AbandonedAt: r.AbandonedAt,
		AttemptKey:  r.AttemptKey,
		UpdatedAt:   r.TouchedAt,
	}
}

type settingsRow struct {
	UserID    string `gorm:"primaryKey;size:128"`
	Mode      string `gorm:"size:16"`
	TouchedAt time.Time
}

func (settingsRow) TableName() string { return "settings" }

type assessmentRow struct {
	ID          string             `gorm:"primaryKey;size:64"`
	UserID      string             `gorm:"size:128;index"`
	PillarKey   string             `gorm:"size:32"`
	Scores      map[string]float64 `gorm:"serializer:json;type:text"`
	CompletedAt time.Time          `gorm:"index"`
}

func (assessmentRow) TableName() string { return "assessments" }

func (r assessmentRow) domain() assessment.Result {
	return assessment.Result{
		ID:          r.ID,
		UserID:      r.UserID,
		PillarKey:   pillar.Key(r.PillarKey),
		Scores:      r.Scores,
		CompletedAt: r.CompletedAt,
	}
}

type activityRow struct {
	ID               string `gorm:"primaryKey;size:64"`
	UserID           string `gorm:"size:128"`
	JourneyID        string `gorm:"size:64;index"`
	PillarKey        string `gorm:"size:32"`
	Title            string `gorm:"size:255"`
	Description      string `gorm:"type:text"`
	Category         string `gorm:"size:16"`
	EstimatedMinutes int
	ScheduledDate    time.Time `gorm:"index"`
	Week             int
	IsCompleted      bool `gorm:"default:false"`
	CompletedAt      *time.Time
}

func (activityRow) TableName() string { return "tasks" }

func toActivityRow(a schedule.Activity) activityRow {
	return activityRow{
		ID:               a.ID,
		UserID:           a.UserID,
		JourneyID:        a.JourneyID,
		PillarKey:        string(a.PillarKey),
		Title:            a.Title,
		Description:      a.Description,
		Category:         string(a.Category),
		EstimatedMinutes: a.EstimatedMinutes,
		ScheduledDate:    a.ScheduledDate,
		Week:             a.Week,
		IsCompleted:      a.IsCompleted,
		CompletedAt:      a.CompletedAt,
	}
}

func (r activityRow) domain() schedule.Activity {
	return schedule.Activity{
		ID:               r.ID,
		UserID:           r.UserID,
		JourneyID:        r.JourneyID,
		PillarKey:        pillar.Key(r.PillarKey),
		Title:            r.Title,
		Description:      r.Description,
		Category:         schedule.Category(r.Category),
		EstimatedMinutes: r.EstimatedMinutes,
		ScheduledDate:    r.ScheduledDate,
		Week:             r.Week,
		IsCompleted:      r.IsCompleted,
		CompletedAt:      r.CompletedAt,
	}
}

type calendarRow struct {
	ActivityID string `gorm:"primaryKey;size:64"`
	UserID     string `gorm:"size:128"`
	JourneyID  string `gorm:"size:64;index"`
	Title      string `gorm:"size:255"`
	StartsAt   time.Time
	EndsAt     time.Time
}

func (calendarRow) TableName() string { return "calendar_entries" }

type eventRow struct {
	Seq        int64             `gorm:"primaryKey;autoIncrement"`
	ID         string            `gorm:"size:64;uniqueIndex"`
	JourneyID  string            `gorm:"size:64;index"`
	UserID     string            `gorm:"size:128;index"`
	Type       string            `gorm:"size:32"`
	OccurredAt time.Time         `gorm:"index"`
	Title      string            `gorm:"size:255"`
	Data       map[string]string `gorm:"serializer:json;type:text"`
	PrevHash   string            `gorm:"size:64"`
	Hash       string            `gorm:"size:64"`
}

func (eventRow) TableName() string { return "timeline_events" }

func toEventRow(e timeline.Event) eventRow {
	return eventRow{
		ID:         e.ID,
		JourneyID:  e.JourneyID,
		UserID:     e.UserID,
		Type:       string(e.Type),
		OccurredAt: e.OccurredAt,
		Title:      e.Title,
		Data:       e.Data,
		PrevHash:   e.PrevHash,
		Hash:       e.Hash,
	}
}

func (r eventRow) domain() timeline.Event {
	return timeline.Event{
		ID:         r.ID,
		JourneyID:  r.JourneyID,
		UserID:     r.UserID,
		Type:       timeline.Type(r.Type),
		OccurredAt: r.OccurredAt,
		Title:      r.Title,
		Data:       r.Data,
		PrevHash:   r.PrevHash,
		Hash:       r.Hash,
	}
}
