package application

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/felixgeelhaar/pillars/pkg/domain/journey"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
)

// Overview aggregates a user's journeys.
type Overview struct {
	Counts map[journey.Status]int
	// CompletedPillars in canonical order.
	CompletedPillars []pillar.Key
	// CompletionPercent is completed pillars over all pillars.
	CompletionPercent int
	// AverageActiveProgress is the mean progress of active journeys.
	AverageActiveProgress float64
	AllComplete           bool
}

func (o Overview) clone() Overview {
	out := o
	out.Counts = make(map[journey.Status]int, len(o.Counts))
	for k, v := range o.Counts {
		out.Counts[k] = v
	}
	out.CompletedPillars = append([]pillar.Key(nil), o.CompletedPillars...)
	return out
}

// ProgressService computes overviews, memoized by the journey set they are
// computed from.
type ProgressService struct {
	journeys journey.Repository
	cache    *lru.Cache[string, Overview]
}

func NewProgressService(journeys journey.Repository, cacheSize int) *ProgressService {
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[string, Overview](cacheSize)
	if err != nil {
		panic(fmt.Sprintf("progress cache: %v", err))
	}
	return &ProgressService{journeys: journeys, cache: cache}
}

// Overview returns the user's aggregate progress.
func (s *ProgressService) Overview(ctx context.Context, userID string) (Overview, error) {
	js, err := s.journeys.ListJourneys(ctx, userID, journey.Filter{})
	if err != nil {
		return Overview{}, fmt.Errorf("list journeys: %w", err)
	}
	key := fingerprintJourneys(js)
	if o, ok := s.cache.Get(key); ok {
		return o.clone(), nil
	}
	o := ComputeOverview(js)
	s.cache.Add(key, o)
	return o.clone(), nil
}

// ComputeOverview is the uncached aggregation.
func ComputeOverview(js []journey.Journey) Overview {
	o := Overview{Counts: make(map[journey.Status]int, 4)}
	sum, active := 0, 0
	for _, j := range js {
		o.Counts[j.Status]++
		if j.Status == journey.StatusActive {
			sum += j.Progress
			active++
		}
	}
	done := journey.CompletedPillars(js)
	for _, k := range pillar.Order() {
		if done.Has(k) {
			o.CompletedPillars = append(o.CompletedPillars, k)
		}
	}
	o.CompletionPercent = int(math.Round(100 * float64(len(o.CompletedPillars)) / float64(pillar.Count())))
	if active > 0 {
		o.AverageActiveProgress = math.Round(float64(sum)/float64(active)*10) / 10
	}
	o.AllComplete = done.IsComplete()
	return o
}

func fingerprintJourneys(js []journey.Journey) string {
	parts := make([]string, len(js))
	for i, j := range js {
		parts[i] = j.ID + ":" + string(j.PillarKey) + ":" + string(j.Status) + ":" + strconv.Itoa(j.Progress)
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}
