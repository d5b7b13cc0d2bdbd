// Package recommend ranks pillars by improvement potential.
package recommend

import (
	"math"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/felixgeelhaar/pillars/pkg/domain/assessment"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
)

const defaultCacheSize = 128

// Recommendation is one ranked pillar.
type Recommendation struct {
	PillarKey       pillar.Key `json:"pillar_key"`
	Score           float64    `json:"score"`
	RelevanceScore  float64    `json:"relevance_score"`
	Motivation      string     `json:"motivation"`
	ExpectedOutcome string     `json:"expected_outcome"`
}

// Set is the derived recommendation for a set of scores. Primary is nil when
// no pillar has a non-zero score; Secondary is nil when fewer than two do.
type Set struct {
	Primary           *Recommendation `json:"primary,omitempty"`
	Secondary         *Recommendation `json:"secondary,omitempty"`
	ReadinessScore    float64         `json:"readiness_score"`
	SuccessIndicators []string        `json:"success_indicators"`
}

// PrimaryKey returns the primary pillar, or "" when there is none.
func (s Set) PrimaryKey() pillar.Key {
	if s.Primary == nil {
		return ""
	}
	return s.Primary.PillarKey
}

func (s Set) clone() Set {
	out := Set{ReadinessScore: s.ReadinessScore}
	if s.Primary != nil {
		p := *s.Primary
		out.Primary = &p
	}
	if s.Secondary != nil {
		sec := *s.Secondary
		out.Secondary = &sec
	}
	out.SuccessIndicators = append([]string(nil), s.SuccessIndicators...)
	return out
}

// Engine computes recommendation sets. Results are memoized by their input
// scores, so repeated calls with an unchanged assessment set are free.
type Engine struct {
	cache *lru.Cache[string, Set]
}

// NewEngine creates an engine with a memo of the given size.
func NewEngine(cacheSize int) *Engine {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	// lru.New only fails on a non-positive size, guarded above.
	cache, _ := lru.New[string, Set](cacheSize)
	return &Engine{cache: cache}
}

// Recommend ranks pillars with a non-zero score from lowest to highest.
// Unknown pillar keys are ignored.
func (e *Engine) Recommend(scores map[pillar.Key]float64) Set {
	key := fingerprint(scores)
	if e != nil && e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			return cached.clone()
		}
	}
	set := compute(scores)
	if e != nil && e.cache != nil {
		e.cache.Add(key, set)
	}
	return set.clone()
}

type scored struct {
	key   pillar.Key
	score float64
}

func compute(scores map[pillar.Key]float64) Set {
	var ranked []scored
	sum := 0.0
	for _, k := range pillar.Order() {
		v, ok := scores[k]
		if !ok || v <= 0 {
			continue
		}
		ranked = append(ranked, scored{key: k, score: v})
		sum += v
	}
	// Stable keeps canonical order for equal scores.
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score < ranked[j].score })

	var set Set
	if len(ranked) == 0 {
		return set
	}
	set.ReadinessScore = round1(sum / float64(len(ranked)))
	set.Primary = build(ranked[0])
	if len(ranked) > 1 {
		set.Secondary = build(ranked[1])
	}
	set.SuccessIndicators = indicators(ranked[0].key)
	return set
}

func build(s scored) *Recommendation {
	b := bandOf(s.score)
	return &Recommendation{
		PillarKey:       s.key,
		Score:           s.score,
		RelevanceScore:  relevance(s.score),
		Motivation:      motivation(s.key, b),
		ExpectedOutcome: outcome(s.key, b),
	}
}

// relevance is the distance to the maximum score, clamped to [0, 10].
func relevance(score float64) float64 {
	r := assessment.MaxScore - score
	return round1(math.Max(0, math.Min(assessment.MaxScore, r)))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func fingerprint(scores map[pillar.Key]float64) string {
	var b strings.Builder
	for _, k := range pillar.Order() {
		v, ok := scores[k]
		if !ok {
			continue
		}
		b.WriteString(string(k))
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteByte(';')
	}
	return b.String()
}
