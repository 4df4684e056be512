package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const prefix = "subpub_"

// Store maintains in-memory gauges and counters for engine telemetry.
type Store struct {
	ticks               atomic.Uint64
	lastTickUnixNano    atomic.Int64
	messagesHeld        atomic.Int64
	checkRuns           atomic.Uint64
	checkFailures       atomic.Uint64
	sourceFailures      atomic.Uint64
	actionFailures      atomic.Uint64
	dispatched          atomic.Uint64
	expired             atomic.Uint64
	failingChecks       atomic.Int64
	readinessState      atomic.Int64
	readinessReason     atomic.Value
	readinessCategories atomic.Value
	readyTransitions    atomic.Uint64
	notReadyTransitions atomic.Uint64
	categoryTotals      sync.Map // categoryKey -> *atomic.Uint64
}

// ReadinessCategory captures a categorized readiness reason with severity.
type ReadinessCategory struct {
	Name     string
	Severity string
}

type categoryKey struct {
	Name     string
	Severity string
}

// NewStore constructs a Store with zeroed metrics.
func NewStore() *Store {
	store := &Store{}
	store.readinessReason.Store("")
	store.readinessCategories.Store([]ReadinessCategory(nil))
	return store
}

// Snapshot captures the current metric values in a plain struct.
type Snapshot struct {
	Ticks               uint64
	LastTick            time.Time
	MessagesHeld        int64
	CheckRuns           uint64
	CheckFailures       uint64
	SourceFailures      uint64
	ActionFailures      uint64
	Dispatched          uint64
	Expired             uint64
	FailingChecks       int64
	Ready               bool
	ReadyReason         string
	ReadyTransitions    uint64
	NotReadyTransitions uint64
	ReadyCategories     []ReadinessCategory
	CategoryTransitions []CategoryCount
}

// CategoryCount captures accumulated transition counts per category/severity.
type CategoryCount struct {
	Category string
	Severity string
	Count    uint64
}

// Snapshot returns a point-in-time copy of the metrics.
func (s *Store) Snapshot() Snapshot {
	readyReason, _ := s.readinessReason.Load().(string)
	rawCategories, _ := s.readinessCategories.Load().([]ReadinessCategory)
	categories := append([]ReadinessCategory(nil), rawCategories...)
	var counts []CategoryCount
	s.categoryTotals.Range(func(key, value any) bool {
		ckey, ok := key.(categoryKey)
		if !ok {
			return true
		}
		if counter, ok := value.(*atomic.Uint64); ok && counter != nil {
			counts = append(counts, CategoryCount{Category: ckey.Name, Severity: ckey.Severity, Count: counter.Load()})
		}
		return true
	})
	var lastTick time.Time
	if nanos := s.lastTickUnixNano.Load(); nanos != 0 {
		lastTick = time.Unix(0, nanos).UTC()
	}
	return Snapshot{
		Ticks:               s.ticks.Load(),
		LastTick:            lastTick,
		MessagesHeld:        s.messagesHeld.Load(),
		CheckRuns:           s.checkRuns.Load(),
		CheckFailures:       s.checkFailures.Load(),
		SourceFailures:      s.sourceFailures.Load(),
		ActionFailures:      s.actionFailures.Load(),
		Dispatched:          s.dispatched.Load(),
		Expired:             s.expired.Load(),
		FailingChecks:       s.failingChecks.Load(),
		Ready:               s.readinessState.Load() == 1,
		ReadyReason:         readyReason,
		ReadyTransitions:    s.readyTransitions.Load(),
		NotReadyTransitions: s.notReadyTransitions.Load(),
		ReadyCategories:     categories,
		CategoryTransitions: counts,
	}
}

// EngineRecorder returns an implementation of EngineRecorder backed by the store.
func (s *Store) EngineRecorder() EngineRecorder {
	return engineRecorder{store: s}
}

type engineRecorder struct {
	store *Store
}

func (r engineRecorder) ObserveTick(at time.Time, messages int) {
	r.store.ticks.Add(1)
	r.store.lastTickUnixNano.Store(at.UnixNano())
	r.store.messagesHeld.Store(int64(messages))
}

func (r engineRecorder) IncCheckRuns()      { r.store.checkRuns.Add(1) }
func (r engineRecorder) IncCheckFailures()  { r.store.checkFailures.Add(1) }
func (r engineRecorder) IncSourceFailures() { r.store.sourceFailures.Add(1) }
func (r engineRecorder) IncActionFailures() { r.store.actionFailures.Add(1) }

func (r engineRecorder) AddDispatched(n int) {
	if n > 0 {
		r.store.dispatched.Add(uint64(n))
	}
}

func (r engineRecorder) AddExpired(n int) {
	if n > 0 {
		r.store.expired.Add(uint64(n))
	}
}

func (r engineRecorder) ObserveFailingChecks(n int) {
	if n < 0 {
		n = 0
	}
	r.store.failingChecks.Store(int64(n))
}

// ObserveReadiness records a readiness evaluation, counting transitions.
func (s *Store) ObserveReadiness(ready bool, reason string, categories []ReadinessCategory) {
	prev := s.readinessState.Load()
	if ready {
		if prev == 0 {
			s.readyTransitions.Add(1)
		}
		s.readinessState.Store(1)
		s.readinessReason.Store("")
		s.readinessCategories.Store([]ReadinessCategory(nil))
		return
	}
	if prev == 1 {
		s.notReadyTransitions.Add(1)
	}
	s.readinessState.Store(0)
	s.readinessReason.Store(reason)
	deduped := dedupeCategories(categories)
	s.readinessCategories.Store(deduped)
	if prev == 1 {
		for _, cat := range deduped {
			s.categoryCounter(cat).Add(1)
		}
	}
}

func (s *Store) categoryCounter(category ReadinessCategory) *atomic.Uint64 {
	key := categoryKey{Name: category.Name, Severity: category.Severity}
	actual, _ := s.categoryTotals.LoadOrStore(key, &atomic.Uint64{})
	return actual.(*atomic.Uint64)
}

func dedupeCategories(categories []ReadinessCategory) []ReadinessCategory {
	if len(categories) == 0 {
		return nil
	}
	seen := make(map[categoryKey]struct{}, len(categories))
	result := make([]ReadinessCategory, 0, len(categories))
	for _, c := range categories {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		key := categoryKey{Name: strings.TrimSpace(c.Name), Severity: normalizeSeverity(c.Severity)}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, ReadinessCategory{Name: key.Name, Severity: key.Severity})
	}
	return result
}

func normalizeSeverity(severity string) string {
	switch strings.TrimSpace(strings.ToLower(severity)) {
	case "":
		return "unknown"
	case "info", "informational":
		return "info"
	case "warn", "warning":
		return "warning"
	case "critical", "crit":
		return "critical"
	default:
		return strings.TrimSpace(strings.ToLower(severity))
	}
}

type family struct {
	name    string
	kind    string
	help    string
	samples []string
}

// WritePrometheus renders the current metrics using the Prometheus text format.
func (s *Store) WritePrometheus(w io.Writer) error {
	snap := s.Snapshot()
	readyValue := 0
	reason := snap.ReadyReason
	if snap.Ready {
		readyValue = 1
		reason = "ready"
	} else if reason == "" {
		reason = "unknown"
	}
	var lastTick int64
	if !snap.LastTick.IsZero() {
		lastTick = snap.LastTick.Unix()
	}

	families := []family{
		{"ticks_total", "counter", "Engine ticks completed.", []string{fmt.Sprint(snap.Ticks)}},
		{"last_tick_timestamp_seconds", "gauge", "Unix time of the most recent tick.", []string{fmt.Sprint(lastTick)}},
		{"messages_held_number", "gauge", "Messages held across all checks after the last tick.", []string{fmt.Sprint(snap.MessagesHeld)}},
		{"check_runs_total", "counter", "Check runs attempted.", []string{fmt.Sprint(snap.CheckRuns)}},
		{"check_failures_total", "counter", "Check runs that reported failure.", []string{fmt.Sprint(snap.CheckFailures)}},
		{"failing_checks_number", "gauge", "Checks whose latest run failed.", []string{fmt.Sprint(snap.FailingChecks)}},
		{"source_failures_total", "counter", "Source refreshes that reported failure.", []string{fmt.Sprint(snap.SourceFailures)}},
		{"action_failures_total", "counter", "Action runs that returned an error.", []string{fmt.Sprint(snap.ActionFailures)}},
		{"messages_dispatched_total", "counter", "Messages handed to actions after filtering.", []string{fmt.Sprint(snap.Dispatched)}},
		{"messages_expired_total", "counter", "Messages dropped after decaying to zero weight.", []string{fmt.Sprint(snap.Expired)}},
		{"ready", "gauge", "Whether the engine considers itself ready (1=ready).", []string{fmt.Sprint(readyValue)}},
		{"ready_info", "gauge", "Reason associated with the most recent readiness evaluation.", []string{fmt.Sprintf("{reason=%q} 1", reason)}},
		{"ready_transitions_total", "counter", "Count of readiness state transitions by resulting state.", []string{
			fmt.Sprintf("{state=%q} %d", "ready", snap.ReadyTransitions),
			fmt.Sprintf("{state=%q} %d", "not_ready", snap.NotReadyTransitions),
		}},
		{"ready_categories_info", "gauge", "Categories associated with the most recent readiness evaluation.", categorySamples(snap.ReadyCategories)},
		{"ready_category_transitions_total", "counter", "Count of readiness degradations annotated by category.", transitionSamples(snap.CategoryTransitions)},
	}

	for _, f := range families {
		name := prefix + f.name
		if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, f.help, name, f.kind); err != nil {
			return err
		}
		for _, sample := range f.samples {
			sep := " "
			if strings.HasPrefix(sample, "{") {
				sep = ""
			}
			if _, err := fmt.Fprintf(w, "%s%s%s\n", name, sep, sample); err != nil {
				return err
			}
		}
	}
	return nil
}

func categorySamples(categories []ReadinessCategory) []string {
	if len(categories) == 0 {
		return []string{fmt.Sprintf("{category=%q,severity=%q} 1", "none", "none")}
	}
	cats := append([]ReadinessCategory(nil), categories...)
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].Name == cats[j].Name {
			return cats[i].Severity < cats[j].Severity
		}
		return cats[i].Name < cats[j].Name
	})
	out := make([]string, 0, len(cats))
	for _, cat := range cats {
		out = append(out, fmt.Sprintf("{category=%q,severity=%q} 1", cat.Name, cat.Severity))
	}
	return out
}

func transitionSamples(counts []CategoryCount) []string {
	if len(counts) == 0 {
		return []string{fmt.Sprintf("{category=%q,severity=%q} 0", "none", "none")}
	}
	sorted := append([]CategoryCount(nil), counts...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Category == sorted[j].Category {
			return sorted[i].Severity < sorted[j].Severity
		}
		return sorted[i].Category < sorted[j].Category
	})
	out := make([]string, 0, len(sorted))
	for _, cc := range sorted {
		out = append(out, fmt.Sprintf("{category=%q,severity=%q} %d", cc.Category, cc.Severity, cc.Count))
	}
	return out
}

// NewHTTPHandler returns an http.Handler that serves Prometheus formatted metrics.
func NewHTTPHandler(store *Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if r.Method == http.MethodHead {
			return
		}
		if err := store.WritePrometheus(w); err != nil {
			http.Error(w, "metrics unavailable", http.StatusInternalServerError)
		}
	})
}
