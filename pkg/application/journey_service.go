package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/felixgeelhaar/pillars/pkg/domain/journey"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
	"github.com/felixgeelhaar/pillars/pkg/domain/schedule"
	"github.com/felixgeelhaar/pillars/pkg/domain/timeline"
)

// Progress thresholds that emit a milestone event when first crossed.
var milestones = []int{25, 50, 75}

// JourneyService manages journey lifecycles. Checks against the user's
// concurrency limit run inside a per-user critical section; other mutations
// only serialize per journey.
type JourneyService struct {
	journeys journey.Repository
	events   timeline.Repository
	tasks    schedule.TaskStore
	logger   *slog.Logger
	metrics  Metrics
	now      func() time.Time

	defaultMode journey.Mode

	userLocks    *keyedLocks
	journeyLocks *keyedLocks

	mu sync.Mutex
	// reservations holds plan generations in flight: user -> pillar -> attempt key.
	reservations map[string]map[pillar.Key]string
	lastEventAt  map[string]time.Time
}

func NewJourneyService(journeys journey.Repository, events timeline.Repository, tasks schedule.TaskStore, logger *slog.Logger) *JourneyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &JourneyService{
		journeys:     journeys,
		events:       events,
		tasks:        tasks,
		logger:       logger,
		metrics:      nopMetrics{},
		now:          time.Now,
		defaultMode:  journey.DefaultMode,
		userLocks:    newKeyedLocks(),
		journeyLocks: newKeyedLocks(),
		reservations: make(map[string]map[pillar.Key]string),
		lastEventAt:  make(map[string]time.Time),
	}
}

// WithMetrics sets the metrics sink.
func (s *JourneyService) WithMetrics(m Metrics) *JourneyService {
	s.metrics = metricsOrNop(m)
	return s
}

// WithClock replaces time.Now.
func (s *JourneyService) WithClock(now func() time.Time) *JourneyService {
	s.now = now
	return s
}

// WithDefaultMode sets the mode of users without stored settings.
func (s *JourneyService) WithDefaultMode(m journey.Mode) *JourneyService {
	if m.IsValid() {
		s.defaultMode = m
	}
	return s
}

// Mode returns the user's selected mode.
func (s *JourneyService) Mode(ctx context.Context, userID string) (journey.Mode, error) {
	st, err := s.journeys.LoadSettings(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}
	if st == nil || !st.Mode.IsValid() {
		return s.defaultMode, nil
	}
	return st.Mode, nil
}

// ModeChange reports the effect of a mode switch.
type ModeChange struct {
	Mode   journey.Mode
	Active int
	// Overcommitted is set when the user already has more active journeys
	// than the new mode allows. Nothing is paused; new starts stay blocked.
	Overcommitted bool
}

// SetMode stores the user's mode.
func (s *JourneyService) SetMode(ctx context.Context, userID string, mode journey.Mode) (ModeChange, error) {
	if !mode.IsValid() {
		return ModeChange{}, fmt.Errorf("%w: %q", journey.ErrUnknownMode, mode)
	}
	unlock := s.userLocks.lock(userID)
	defer unlock()

	existing, err := s.journeys.ListJourneys(ctx, userID, journey.Filter{})
	if err != nil {
		return ModeChange{}, fmt.Errorf("list journeys: %w", err)
	}
	if err := s.journeys.SaveSettings(ctx, &journey.Settings{UserID: userID, Mode: mode, UpdatedAt: s.now()}); err != nil {
		return ModeChange{}, fmt.Errorf("save settings: %w", err)
	}
	change := ModeChange{Mode: mode, Active: journey.CountActive(existing)}
	change.Overcommitted = mode.Overcommitted(change.Active)
	if change.Overcommitted {
		s.logger.Info("mode below active journey count",
			"user_id", userID, "mode", mode, "active", change.Active)
	}
	return change, nil
}

// Reserve claims a slot for a plan generation of key. The reservation counts
// as active until Start converts it or Release drops it. Reserving the same
// attempt twice is a no-op.
func (s *JourneyService) Reserve(ctx context.Context, userID string, key pillar.Key, attemptKey string) error {
	unlock := s.userLocks.lock(userID)
	defer unlock()
	return s.reserveLocked(ctx, userID, key, attemptKey)
}

func (s *JourneyService) reserveLocked(ctx context.Context, userID string, key pillar.Key, attemptKey string) error {
	existing, err := s.journeys.ListJourneys(ctx, userID, journey.Filter{})
	if err != nil {
		return fmt.Errorf("list journeys: %w", err)
	}
	for _, j := range existing {
		if j.PillarKey != key || !j.Status.IsOpen() {
			continue
		}
		if attemptKey != "" && j.AttemptKey == attemptKey {
			return nil
		}
		s.metrics.ObserveRejection("journey_exists")
		return &journey.ExistsError{PillarKey: key, JourneyID: j.ID}
	}

	s.mu.Lock()
	held, ok := s.reservations[userID][key]
	pending := len(s.reservations[userID])
	s.mu.Unlock()
	if ok {
		if held == attemptKey {
			return nil
		}
		s.metrics.ObserveRejection("journey_exists")
		return &journey.ExistsError{PillarKey: key}
	}

	mode, err := s.Mode(ctx, userID)
	if err != nil {
		return err
	}
	if err := mode.CheckStart(userID, journey.CountActive(existing)+pending); err != nil {
		s.metrics.ObserveRejection("concurrency_limit")
		s.logger.Debug("start rejected", "user_id", userID, "pillar", key, "reason", err)
		return err
	}

	s.mu.Lock()
	if s.reservations[userID] == nil {
		s.reservations[userID] = make(map[pillar.Key]string)
	}
	s.reservations[userID][key] = attemptKey
	s.mu.Unlock()
	return nil
}

// Release drops a reservation.
func (s *JourneyService) Release(userID string, key pillar.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reservations[userID], key)
	if len(s.reservations[userID]) == 0 {
		delete(s.reservations, userID)
	}
}

func (s *JourneyService) reserved(userID string, key pillar.Key, attemptKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	held, ok := s.reservations[userID][key]
	return ok && held == attemptKey
}

func (s *JourneyService) pendingCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reservations[userID])
}

// Start creates the active journey for a generation attempt and emits its
// started event. Starting an attempt that already produced a journey returns
// that journey.
func (s *JourneyService) Start(ctx context.Context, userID string, key pillar.Key, attemptKey string) (journey.Journey, error) {
	unlock := s.userLocks.lock(userID)
	defer unlock()

	if attemptKey != "" {
		existing, err := s.journeys.GetJourney(ctx, journey.IDForAttempt(attemptKey))
		switch {
		case err == nil:
			if err := s.ensureStarted(ctx, *existing); err != nil {
				return journey.Journey{}, err
			}
			s.Release(userID, key)
			return *existing, nil
		case !errors.Is(err, journey.ErrJourneyNotFound):
			return journey.Journey{}, fmt.Errorf("load journey: %w", err)
		}
	}

	if !s.reserved(userID, key, attemptKey) {
		if err := s.reserveLocked(ctx, userID, key, attemptKey); err != nil {
			return journey.Journey{}, err
		}
	}
	mode, err := s.Mode(ctx, userID)
	if err != nil {
		return journey.Journey{}, err
	}

	j := journey.New(userID, key, mode, attemptKey, s.now())
	if err := s.journeys.SaveJourney(ctx, &j); err != nil {
		s.metrics.ObserveTransition("start", outcomeFailed)
		return journey.Journey{}, fmt.Errorf("save journey: %w", err)
	}
	if err := s.emit(ctx, j, timeline.Started, "Started "+key.DisplayName(), map[string]string{"mode": string(mode)}); err != nil {
		s.metrics.ObserveTransition("start", outcomeFailed)
		return journey.Journey{}, err
	}
	s.Release(userID, key)
	s.metrics.ObserveTransition("start", outcomeOK)
	s.logger.Info("journey started", "journey_id", j.ID, "user_id", userID, "pillar", key, "mode", mode)
	return j, nil
}

func (s *JourneyService) ensureStarted(ctx context.Context, j journey.Journey) error {
	evs, err := s.events.ListByJourney(ctx, j.ID)
	if err != nil {
		return fmt.Errorf("load timeline: %w", err)
	}
	if len(evs) > 0 {
		return nil
	}
	return s.emit(ctx, j, timeline.Started, "Started "+j.PillarKey.DisplayName(), map[string]string{"mode": string(j.Mode)})
}

// Pause moves an active journey to paused.
func (s *JourneyService) Pause(ctx context.Context, journeyID string) (journey.Journey, error) {
	return s.transition(ctx, journeyID, journey.EventPause)
}

// Resume reactivates a paused journey if the user's mode allows another
// active journey.
func (s *JourneyService) Resume(ctx context.Context, journeyID string) (journey.Journey, error) {
	return s.transition(ctx, journeyID, journey.EventResume)
}

// Complete finishes a journey. Completing a completed journey is a no-op.
func (s *JourneyService) Complete(ctx context.Context, journeyID string) (journey.Journey, error) {
	return s.transition(ctx, journeyID, journey.EventComplete)
}

// Abandon ends a journey without a timeline entry.
func (s *JourneyService) Abandon(ctx context.Context, journeyID string) (journey.Journey, error) {
	return s.transition(ctx, journeyID, journey.EventAbandon)
}

var transitionEvents = map[string]struct {
	typ   timeline.Type
	title string
}{
	journey.EventPause:    {timeline.Paused, "Paused "},
	journey.EventResume:   {timeline.Resumed, "Resumed "},
	journey.EventComplete: {timeline.Completed, "Completed "},
}

func (s *JourneyService) transition(ctx context.Context, journeyID, event string) (journey.Journey, error) {
	j, err := s.journeys.GetJourney(ctx, journeyID)
	if err != nil {
		return journey.Journey{}, err
	}
	if event == journey.EventResume {
		unlockUser := s.userLocks.lock(j.UserID)
		defer unlockUser()
	}
	unlock := s.journeyLocks.lock(journeyID)
	defer unlock()

	current, err := s.journeys.GetJourney(ctx, journeyID)
	if err != nil {
		return journey.Journey{}, err
	}
	if event == journey.EventComplete && current.Status == journey.StatusCompleted {
		s.metrics.ObserveTransition(event, outcomeNoop)
		return *current, nil
	}

	var guard func(string, string) bool
	var limitErr error
	if event == journey.EventResume {
		existing, err := s.journeys.ListJourneys(ctx, current.UserID, journey.Filter{})
		if err != nil {
			return *current, fmt.Errorf("list journeys: %w", err)
		}
		mode, err := s.Mode(ctx, current.UserID)
		if err != nil {
			return *current, err
		}
		active := journey.CountActive(existing) + s.pendingCount(current.UserID)
		limitErr = mode.CheckStart(current.UserID, active)
		guard = func(string, string) bool { return limitErr == nil }
	}

	next, err := current.Apply(event, s.now(), guard)
	if err != nil {
		s.metrics.ObserveTransition(event, outcomeRejected)
		s.logger.Debug("transition rejected", "journey_id", journeyID, "event", event, "status", current.Status, "reason", err)
		if limitErr != nil && errors.Is(err, journey.ErrConcurrencyLimit) {
			return *current, limitErr
		}
		return *current, err
	}

	// Persist the pending snapshot; the stored one stays authoritative on
	// failure.
	if err := s.journeys.SaveJourney(ctx, &next); err != nil {
		s.metrics.ObserveTransition(event, outcomeFailed)
		s.logger.Warn("journey save failed", "journey_id", journeyID, "event", event, "error", err)
		return *current, fmt.Errorf("save journey: %w", err)
	}
	if te, ok := transitionEvents[event]; ok {
		if err := s.emit(ctx, next, te.typ, te.title+next.PillarKey.DisplayName(), nil); err != nil {
			s.rollback(ctx, *current)
			s.metrics.ObserveTransition(event, outcomeFailed)
			return *current, err
		}
	}

	s.metrics.ObserveTransition(event, outcomeOK)
	s.logger.Info("journey transitioned", "journey_id", journeyID, "event", event, "from", current.Status, "to", next.Status)
	return next, nil
}

func (s *JourneyService) rollback(ctx context.Context, previous journey.Journey) {
	if err := s.journeys.SaveJourney(ctx, &previous); err != nil {
		s.logger.Error("journey rollback failed", "journey_id", previous.ID, "error", err)
	}
}

// emit appends a timeline event no earlier than the journey's last one.
// Callers hold the journey's lock (or own a journey nobody else can see yet).
func (s *JourneyService) emit(ctx context.Context, j journey.Journey, typ timeline.Type, title string, data map[string]string) error {
	s.mu.Lock()
	last, ok := s.lastEventAt[j.ID]
	s.mu.Unlock()
	if !ok {
		evs, err := s.events.ListByJourney(ctx, j.ID)
		if err != nil {
			return fmt.Errorf("load timeline: %w", err)
		}
		for _, e := range evs {
			if e.OccurredAt.After(last) {
				last = e.OccurredAt
			}
		}
	}

	at := timeline.NextOccurredAt(last, s.now())
	e := timeline.NewEvent(j.ID, j.UserID, typ, at, title, data)
	if err := s.events.AppendEvent(ctx, &e); err != nil {
		s.logger.Warn("timeline append failed", "journey_id", j.ID, "event_type", typ, "error", err)
		return fmt.Errorf("append %s event: %w", typ, err)
	}

	s.mu.Lock()
	s.lastEventAt[j.ID] = at
	s.mu.Unlock()
	return nil
}

// ActivityCompletion is the result of CompleteActivity.
type ActivityCompletion struct {
	Journey  journey.Journey
	Activity schedule.Activity
	// Milestones lists the thresholds crossed by this completion.
	Milestones []int
	// AlreadyDone is set when the activity was completed earlier.
	AlreadyDone bool
}

// CompleteActivity marks an activity done and updates the journey's
// progress. Progress of paused or finished journeys is left alone. Reaching
// 100% does not complete the journey. Completing an activity again records
// any of its events a failed earlier call left out.
func (s *JourneyService) CompleteActivity(ctx context.Context, journeyID, activityID string) (ActivityCompletion, error) {
	unlock := s.journeyLocks.lock(journeyID)
	defer unlock()

	j, err := s.journeys.GetJourney(ctx, journeyID)
	if err != nil {
		return ActivityCompletion{}, err
	}
	tasks, err := s.tasks.ListTasks(ctx, journeyID)
	if err != nil {
		return ActivityCompletion{}, fmt.Errorf("list tasks: %w", err)
	}

	idx := -1
	done := 0
	for i, t := range tasks {
		if t.ID == activityID {
			idx = i
		}
		if t.IsCompleted {
			done++
		}
	}
	if idx < 0 {
		return ActivityCompletion{}, fmt.Errorf("%w: %s", schedule.ErrActivityNotFound, activityID)
	}

	result := ActivityCompletion{Journey: *j, Activity: tasks[idx]}
	if tasks[idx].IsCompleted {
		result.AlreadyDone = true
	} else {
		completed, err := s.tasks.SetTaskCompleted(ctx, activityID, s.now())
		if err != nil {
			return ActivityCompletion{}, fmt.Errorf("complete task: %w", err)
		}
		result.Activity = completed
		done++
	}

	next := j.Clone()
	if j.Status == journey.StatusActive {
		next.SetProgress(progressOf(done, len(tasks)))
	}
	if next.Progress != j.Progress {
		next.UpdatedAt = s.now()
		if err := s.journeys.SaveJourney(ctx, &next); err != nil {
			s.logger.Warn("journey save failed", "journey_id", journeyID, "error", err)
			return ActivityCompletion{}, fmt.Errorf("save journey: %w", err)
		}
	}
	result.Journey = next
	if result.AlreadyDone {
		return s.repairCompletion(ctx, next, result)
	}

	if err := s.emitTaskCompleted(ctx, next, result.Activity); err != nil {
		return result, err
	}
	for _, m := range milestones {
		if j.Progress < m && next.Progress >= m {
			if err := s.emitMilestone(ctx, next, m); err != nil {
				return result, err
			}
			result.Milestones = append(result.Milestones, m)
		}
	}
	s.metrics.ObserveTransition("complete_activity", outcomeOK)
	return result, nil
}

// repairCompletion appends the task_completed and milestone events an
// earlier call for the same activity failed to record. Milestones are only
// owed while the journey is active.
func (s *JourneyService) repairCompletion(ctx context.Context, j journey.Journey, result ActivityCompletion) (ActivityCompletion, error) {
	evs, err := s.events.ListByJourney(ctx, j.ID)
	if err != nil {
		return result, fmt.Errorf("load timeline: %w", err)
	}
	recorded := false
	reached := map[string]bool{}
	for _, e := range evs {
		switch {
		case e.Type == timeline.TaskCompleted && e.Data["activity_id"] == result.Activity.ID:
			recorded = true
		case e.Type == timeline.Milestone:
			reached[e.Data["threshold"]] = true
		}
	}

	if !recorded {
		if err := s.emitTaskCompleted(ctx, j, result.Activity); err != nil {
			return result, err
		}
	}
	if j.Status != journey.StatusActive {
		return result, nil
	}
	for _, m := range milestones {
		if m <= j.Progress && !reached[strconv.Itoa(m)] {
			if err := s.emitMilestone(ctx, j, m); err != nil {
				return result, err
			}
			result.Milestones = append(result.Milestones, m)
		}
	}
	return result, nil
}

func (s *JourneyService) emitTaskCompleted(ctx context.Context, j journey.Journey, a schedule.Activity) error {
	data := map[string]string{
		"activity_id": a.ID,
		"category":    string(a.Category),
		"progress":    strconv.Itoa(j.Progress),
	}
	return s.emit(ctx, j, timeline.TaskCompleted, "Completed: "+a.Title, data)
}

func (s *JourneyService) emitMilestone(ctx context.Context, j journey.Journey, m int) error {
	title := fmt.Sprintf("%d%% of %s", m, j.PillarKey.DisplayName())
	return s.emit(ctx, j, timeline.Milestone, title, map[string]string{"threshold": strconv.Itoa(m)})
}

func progressOf(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}

// Get returns one journey.
func (s *JourneyService) Get(ctx context.Context, journeyID string) (journey.Journey, error) {
	j, err := s.journeys.GetJourney(ctx, journeyID)
	if err != nil {
		return journey.Journey{}, err
	}
	return *j, nil
}

// List returns the user's journeys matching f in display order.
func (s *JourneyService) List(ctx context.Context, userID string, f journey.Filter) ([]journey.Journey, error) {
	js, err := s.journeys.ListJourneys(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list journeys: %w", err)
	}
	journey.SortForDisplay(js)
	return js, nil
}

// Activities returns a journey's activities in schedule order.
func (s *JourneyService) Activities(ctx context.Context, journeyID string) ([]schedule.Activity, error) {
	if _, err := s.journeys.GetJourney(ctx, journeyID); err != nil {
		return nil, err
	}
	acts, err := s.tasks.ListTasks(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return acts, nil
}
