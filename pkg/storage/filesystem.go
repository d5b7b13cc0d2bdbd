package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/pillars/pkg/domain/assessment"
	"github.com/felixgeelhaar/pillars/pkg/domain/journey"
	"github.com/felixgeelhaar/pillars/pkg/domain/schedule"
)

const PillarsDir = ".pillars"
const JourneysFile = "journeys.yaml"
const SettingsFile = "settings.yaml"
const AssessmentsFile = "assessments.yaml"
const TasksFile = "tasks.yaml"
const CalendarFile = "calendar.yaml"
const TimelineFile = "timeline.jsonl"

// FilesystemRepository keeps every collection as one YAML file under
// root/.pillars. Writes replace the file atomically.
type FilesystemRepository struct {
	dir         string
	retryConfig retry.Config

	mu sync.RWMutex
}

func NewFilesystemRepository(root string) *FilesystemRepository {
	return NewFilesystemRepositoryIn(filepath.Join(root, PillarsDir))
}

// NewFilesystemRepositoryIn keeps the data files directly in dir.
func NewFilesystemRepositoryIn(dir string) *FilesystemRepository {
	dir = filepath.Clean(dir)
	return &FilesystemRepository{
		dir: dir,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  10 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Dir returns the data directory.
func (r *FilesystemRepository) Dir() string {
	return r.dir
}

// ResolvePath ensures the path is a direct child of the data directory.
func (r *FilesystemRepository) ResolvePath(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}

	baseDir := r.Dir()
	cleanPath := filepath.Clean(filepath.Join(baseDir, filename))
	if !strings.HasPrefix(cleanPath, baseDir) || filepath.Dir(cleanPath) != baseDir {
		return "", fmt.Errorf("invalid file path: %s", filename)
	}
	return cleanPath, nil
}

func (r *FilesystemRepository) Initialize() error {
	if err := os.MkdirAll(r.Dir(), 0700); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", PillarsDir, err)
	}
	return nil
}

// load reads one collection. A missing file is an empty collection.
func load[T any](ctx context.Context, r *FilesystemRepository, file string) ([]T, error) {
	retryer := retry.New[[]T](r.retryConfig)
	return retryer.Do(ctx, func(ctx context.Context) ([]T, error) {
		path, err := r.ResolvePath(file)
		if err != nil {
			return nil, err
		}
		// #nosec G304 -- Path is resolved and validated via ResolvePath
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		var items []T
		if err := yaml.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", file, err)
		}
		return items, nil
	})
}

func save[T any](r *FilesystemRepository, file string, items []T) error {
	path, err := r.ResolvePath(file)
	if err != nil {
		return err
	}
	if err := r.Initialize(); err != nil {
		return err
	}
	data, err := yaml.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", file, err)
	}

	tmp, err := os.CreateTemp(r.Dir(), file+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after rename
	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec // already failing
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// update loads a collection, applies fn and writes the result back.
func update[T any](ctx context.Context, r *FilesystemRepository, file string, fn func([]T) ([]T, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := load[T](ctx, r, file)
	if err != nil {
		return err
	}
	items, err = fn(items)
	if err != nil {
		return err
	}
	return save(r, file, items)
}

func read[T any](ctx context.Context, r *FilesystemRepository, file string) ([]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return load[T](ctx, r, file)
}

// Journeys

func (r *FilesystemRepository) SaveJourney(ctx context.Context, j *journey.Journey) error {
	return update(ctx, r, JourneysFile, func(js []journey.Journey) ([]journey.Journey, error) {
		for i := range js {
			if js[i].ID == j.ID {
				js[i] = j.Clone()
				return js, nil
			}
		}
		return append(js, j.Clone()), nil
	})
}

func (r *FilesystemRepository) GetJourney(ctx context.Context, id string) (*journey.Journey, error) {
	js, err := read[journey.Journey](ctx, r, JourneysFile)
	if err != nil {
		return nil, err
	}
	for _, j := range js {
		if j.ID == id {
			return &j, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", journey.ErrJourneyNotFound, id)
}

func (r *FilesystemRepository) ListJourneys(ctx context.Context, userID string, f journey.Filter) ([]journey.Journey, error) {
	js, err := read[journey.Journey](ctx, r, JourneysFile)
	if err != nil {
		return nil, err
	}
	var out []journey.Journey
	for _, j := range js {
		if j.UserID == userID && f.Matches(j) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (r *FilesystemRepository) SaveSettings(ctx context.Context, s *journey.Settings) error {
	return update(ctx, r, SettingsFile, func(all []journey.Settings) ([]journey.Settings, error) {
		for i := range all {
			if all[i].UserID == s.UserID {
				all[i] = *s
				return all, nil
			}
		}
		return append(all, *s), nil
	})
}

func (r *FilesystemRepository) LoadSettings(ctx context.Context, userID string) (*journey.Settings, error) {
	all, err := read[journey.Settings](ctx, r, SettingsFile)
	if err != nil {
		return nil, err
	}
	for _, s := range all {
		if s.UserID == userID {
			return &s, nil
		}
	}
	return nil, nil
}

// Assessments

func (r *FilesystemRepository) SaveAssessment(ctx context.Context, a *assessment.Result) error {
	return update(ctx, r, AssessmentsFile, func(all []assessment.Result) ([]assessment.Result, error) {
		return append(all, *a), nil
	})
}

func (r *FilesystemRepository) ListAssessments(ctx context.Context, userID string) ([]assessment.Result, error) {
	all, err := read[assessment.Result](ctx, r, AssessmentsFile)
	if err != nil {
		return nil, err
	}
	var out []assessment.Result
	for _, a := range all {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].CompletedAt.Before(out[k].CompletedAt) })
	return out, nil
}

// Plan stores

func (r *FilesystemRepository) UpsertCalendarEntries(ctx context.Context, entries []schedule.CalendarEntry) error {
	return update(ctx, r, CalendarFile, func(all []schedule.CalendarEntry) ([]schedule.CalendarEntry, error) {
		index := make(map[string]int, len(all))
		for i, e := range all {
			index[e.ActivityID] = i
		}
		for _, e := range entries {
			if i, ok := index[e.ActivityID]; ok {
				all[i] = e
				continue
			}
			index[e.ActivityID] = len(all)
			all = append(all, e)
		}
		return all, nil
	})
}

// ListCalendarEntries returns a journey's calendar entries by start time.
func (r *FilesystemRepository) ListCalendarEntries(ctx context.Context, journeyID string) ([]schedule.CalendarEntry, error) {
	all, err := read[schedule.CalendarEntry](ctx, r, CalendarFile)
	if err != nil {
		return nil, err
	}
	var out []schedule.CalendarEntry
	for _, e := range all {
		if e.JourneyID == journeyID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].StartsAt.Before(out[k].StartsAt) })
	return out, nil
}

func (r *FilesystemRepository) UpsertTasks(ctx context.Context, acts []schedule.Activity) error {
	return update(ctx, r, TasksFile, func(all []schedule.Activity) ([]schedule.Activity, error) {
		index := make(map[string]int, len(all))
		for i, a := range all {
			index[a.ID] = i
		}
		for _, a := range acts {
			if i, ok := index[a.ID]; ok {
				// Completion survives a re-upsert of the same plan.
				a.IsCompleted, a.CompletedAt = all[i].IsCompleted, all[i].CompletedAt
				all[i] = a
				continue
			}
			index[a.ID] = len(all)
			all = append(all, a)
		}
		return all, nil
	})
}

func (r *FilesystemRepository) ListTasks(ctx context.Context, journeyID string) ([]schedule.Activity, error) {
	all, err := read[schedule.Activity](ctx, r, TasksFile)
	if err != nil {
		return nil, err
	}
	var out []schedule.Activity
	for _, a := range all {
		if a.JourneyID == journeyID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].ScheduledDate.Before(out[k].ScheduledDate) })
	return out, nil
}

func (r *FilesystemRepository) SetTaskCompleted(ctx context.Context, activityID string, at time.Time) (schedule.Activity, error) {
	var done schedule.Activity
	err := update(ctx, r, TasksFile, func(all []schedule.Activity) ([]schedule.Activity, error) {
		for i := range all {
			if all[i].ID != activityID {
				continue
			}
			if !all[i].IsCompleted {
				all[i].IsCompleted = true
				all[i].CompletedAt = &at
			}
			done = all[i]
			return all, nil
		}
		return nil, fmt.Errorf("%w: %s", schedule.ErrActivityNotFound, activityID)
	})
	return done, err
}
