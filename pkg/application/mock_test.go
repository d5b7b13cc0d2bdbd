package application_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/felixgeelhaar/pillars/pkg/domain/ai"
	"github.com/felixgeelhaar/pillars/pkg/domain/assessment"
	"github.com/felixgeelhaar/pillars/pkg/domain/journey"
	"github.com/felixgeelhaar/pillars/pkg/domain/schedule"
	"github.com/felixgeelhaar/pillars/pkg/domain/timeline"
)

var errStore = errors.New("store unavailable")

type MockJourneys struct {
	mu        sync.Mutex
	Journeys  map[string]journey.Journey
	Settings  map[string]journey.Settings
	FailSaves int
	Saves     int
}

func NewMockJourneys() *MockJourneys {
	return &MockJourneys{Journeys: map[string]journey.Journey{}, Settings: map[string]journey.Settings{}}
}

func (m *MockJourneys) SaveJourney(_ context.Context, j *journey.Journey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves > 0 {
		m.FailSaves--
		return errStore
	}
	m.Saves++
	m.Journeys[j.ID] = j.Clone()
	return nil
}

func (m *MockJourneys) GetJourney(_ context.Context, id string) (*journey.Journey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.Journeys[id]
	if !ok {
		return nil, journey.ErrJourneyNotFound
	}
	c := j.Clone()
	return &c, nil
}

func (m *MockJourneys) ListJourneys(_ context.Context, userID string, f journey.Filter) ([]journey.Journey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []journey.Journey
	for _, j := range m.Journeys {
		if j.UserID == userID && f.Matches(j) {
			out = append(out, j.Clone())
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (m *MockJourneys) SaveSettings(_ context.Context, s *journey.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Settings[s.UserID] = *s
	return nil
}

func (m *MockJourneys) LoadSettings(_ context.Context, userID string) (*journey.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Settings[userID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MockJourneys) Status(id string) journey.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Journeys[id].Status
}

type MockEvents struct {
	mu          sync.Mutex
	Events      []timeline.Event
	FailAppends int
}

func (m *MockEvents) AppendEvent(_ context.Context, e *timeline.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAppends > 0 {
		m.FailAppends--
		return errStore
	}
	m.Events = append(m.Events, *e)
	return nil
}

func (m *MockEvents) ListByJourney(_ context.Context, journeyID string) ([]timeline.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []timeline.Event
	for _, e := range m.Events {
		if e.JourneyID == journeyID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockEvents) ListByUser(_ context.Context, userID string) ([]timeline.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []timeline.Event
	for _, e := range m.Events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockEvents) Types(journeyID string) []timeline.Type {
	evs, _ := m.ListByJourney(context.Background(), journeyID)
	out := make([]timeline.Type, len(evs))
	for i, e := range evs {
		out[i] = e.Type
	}
	return out
}

// MockPlanStore implements both plan stores.
type MockPlanStore struct {
	mu              sync.Mutex
	Tasks           map[string]schedule.Activity
	Calendar        map[string]schedule.CalendarEntry
	FailTaskUpserts int
}

func NewMockPlanStore() *MockPlanStore {
	return &MockPlanStore{Tasks: map[string]schedule.Activity{}, Calendar: map[string]schedule.CalendarEntry{}}
}

func (m *MockPlanStore) UpsertCalendarEntries(_ context.Context, entries []schedule.CalendarEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.Calendar[e.ActivityID] = e
	}
	return nil
}

func (m *MockPlanStore) UpsertTasks(_ context.Context, acts []schedule.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTaskUpserts > 0 {
		m.FailTaskUpserts--
		return errStore
	}
	for _, a := range acts {
		m.Tasks[a.ID] = a
	}
	return nil
}

func (m *MockPlanStore) ListTasks(_ context.Context, journeyID string) ([]schedule.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []schedule.Activity
	for _, a := range m.Tasks {
		if a.JourneyID == journeyID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ScheduledDate.Before(out[k].ScheduledDate) })
	return out, nil
}

func (m *MockPlanStore) SetTaskCompleted(_ context.Context, id string, at time.Time) (schedule.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Tasks[id]
	if !ok {
		return schedule.Activity{}, schedule.ErrActivityNotFound
	}
	a.IsCompleted = true
	a.CompletedAt = &at
	m.Tasks[id] = a
	return a, nil
}

type MockAssessments struct {
	mu      sync.Mutex
	Results []assessment.Result
}

func (m *MockAssessments) SaveAssessment(_ context.Context, r *assessment.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Results = append(m.Results, *r)
	return nil
}

func (m *MockAssessments) ListAssessments(_ context.Context, userID string) ([]assessment.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []assessment.Result
	for _, r := range m.Results {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type MockGenerator struct {
	mu        sync.Mutex
	Drafts    []schedule.Draft
	FailTimes int
	Err       error
	Calls     int
}

func (m *MockGenerator) ID() string { return "mock" }

func (m *MockGenerator) GeneratePlan(_ context.Context, _ ai.PlanRequest) ([]schedule.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.FailTimes > 0 {
		m.FailTimes--
		if m.Err != nil {
			return nil, m.Err
		}
		return nil, ai.ErrMalformedPlan
	}
	if m.Drafts != nil {
		return m.Drafts, nil
	}
	return schedule.BuiltinDrafts(), nil
}

type MockMetrics struct {
	mu          sync.Mutex
	Transitions map[string]int
	Rejections  map[string]int
	Plans       map[string]int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{Transitions: map[string]int{}, Rejections: map[string]int{}, Plans: map[string]int{}}
}

func (m *MockMetrics) ObserveTransition(event, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transitions[event+"/"+outcome]++
}

func (m *MockMetrics) ObservePlanGeneration(generator, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Plans[generator+"/"+outcome]++
}

func (m *MockMetrics) ObserveRejection(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rejections[reason]++
}

// steppingClock advances one second per call.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *steppingClock {
	return &steppingClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *steppingClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
