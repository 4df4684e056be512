package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStoreEngineRecorder(t *testing.T) {
	store := NewStore()
	rec := store.EngineRecorder()

	at := time.Unix(1730000000, 0).UTC()
	rec.ObserveTick(at, 4)
	rec.ObserveTick(at.Add(time.Second), 3)
	rec.IncCheckRuns()
	rec.IncCheckRuns()
	rec.IncCheckFailures()
	rec.IncSourceFailures()
	rec.IncActionFailures()
	rec.AddDispatched(5)
	rec.AddDispatched(-2)
	rec.AddExpired(1)
	rec.ObserveFailingChecks(1)

	snap := store.Snapshot()
	if snap.Ticks != 2 {
		t.Fatalf("expected 2 ticks got %d", snap.Ticks)
	}
	if !snap.LastTick.Equal(at.Add(time.Second)) {
		t.Fatalf("unexpected last tick %s", snap.LastTick)
	}
	if snap.MessagesHeld != 3 {
		t.Fatalf("expected 3 held messages got %d", snap.MessagesHeld)
	}
	if snap.CheckRuns != 2 || snap.CheckFailures != 1 {
		t.Fatalf("unexpected check counters: %+v", snap)
	}
	if snap.SourceFailures != 1 || snap.ActionFailures != 1 {
		t.Fatalf("unexpected failure counters: %+v", snap)
	}
	if snap.Dispatched != 5 {
		t.Fatalf("expected negative dispatch ignored, got %d", snap.Dispatched)
	}
	if snap.Expired != 1 || snap.FailingChecks != 1 {
		t.Fatalf("unexpected expiry/failing: %+v", snap)
	}
}

func TestStoreWritePrometheus(t *testing.T) {
	store := NewStore()
	rec := store.EngineRecorder()
	rec.ObserveTick(time.Unix(1730000000, 0), 7)
	rec.IncCheckRuns()
	rec.AddDispatched(2)
	store.ObserveReadiness(true, "", nil)

	var sb strings.Builder
	if err := store.WritePrometheus(&sb); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	output := sb.String()
	expect := []string{
		"# TYPE subpub_ticks_total counter",
		"subpub_ticks_total 1",
		"subpub_last_tick_timestamp_seconds 1730000000",
		"subpub_messages_held_number 7",
		"subpub_check_runs_total 1",
		"subpub_messages_dispatched_total 2",
		"subpub_ready 1",
		"subpub_ready_info{reason=\"ready\"} 1",
		"subpub_ready_transitions_total{state=\"ready\"} 1",
		"subpub_ready_transitions_total{state=\"not_ready\"} 0",
		"subpub_ready_categories_info{category=\"none\",severity=\"none\"} 1",
		"subpub_ready_category_transitions_total{category=\"none\",severity=\"none\"} 0",
	}
	for _, fragment := range expect {
		if !strings.Contains(output, fragment) {
			t.Fatalf("expected output to contain %q, got:\n%s", fragment, output)
		}
	}
}

func TestHTTPHandler(t *testing.T) {
	store := NewStore()
	h := NewHTTPHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Fatalf("expected text/plain content-type got %s", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(body) == 0 {
		t.Fatalf("expected body content")
	}

	postReq := httptest.NewRequest(http.MethodPost, "/metrics", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, postReq)
	if w.Result().StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", w.Result().StatusCode)
	}
}

func TestStoreObserveReadiness(t *testing.T) {
	store := NewStore()

	// An initial failure is not a transition: the engine was never ready.
	store.ObserveReadiness(false, "engine has not ticked", []ReadinessCategory{
		{Name: "ENGINE_PENDING", Severity: "info"},
	})
	snap := store.Snapshot()
	if snap.Ready || snap.ReadyReason != "engine has not ticked" {
		t.Fatalf("unexpected snapshot after initial failure: %+v", snap)
	}
	if snap.ReadyTransitions != 0 || snap.NotReadyTransitions != 0 {
		t.Fatalf("unexpected counters after initial failure: %+v", snap)
	}

	store.ObserveReadiness(true, "", nil)
	snap = store.Snapshot()
	if !snap.Ready || snap.ReadyTransitions != 1 || len(snap.ReadyCategories) != 0 {
		t.Fatalf("unexpected snapshot after ready: %+v", snap)
	}

	store.ObserveReadiness(false, "2 checks failing", []ReadinessCategory{
		{Name: "CHECK_FAILING", Severity: "warn"},
	})
	snap = store.Snapshot()
	if snap.Ready || snap.NotReadyTransitions != 1 {
		t.Fatalf("unexpected snapshot after degradation: %+v", snap)
	}
	if len(snap.ReadyCategories) != 1 || snap.ReadyCategories[0].Severity != "warning" {
		t.Fatalf("unexpected categories after degradation: %+v", snap.ReadyCategories)
	}
	if count := getTransitionCount(snap.CategoryTransitions, "CHECK_FAILING", "warning"); count != 1 {
		t.Fatalf("expected one CHECK_FAILING transition, got %d", count)
	}
}

func TestStoreDedupesCategories(t *testing.T) {
	store := NewStore()

	store.ObserveReadiness(false, "multiple issues", []ReadinessCategory{
		{Name: "ENGINE_STALE", Severity: "warning"},
		{Name: "CHECK_FAILING", Severity: "warning"},
		{Name: "ENGINE_STALE", Severity: "warning"},
		{Name: "", Severity: "info"},
		{Name: "  CHECK_FAILING  ", Severity: "Warning"},
	})

	snap := store.Snapshot()
	if len(snap.ReadyCategories) != 2 {
		t.Fatalf("expected 2 categories, got %+v", snap.ReadyCategories)
	}
	if len(snap.CategoryTransitions) != 0 {
		t.Fatalf("expected zero transition counters, got %+v", snap.CategoryTransitions)
	}
}

func getTransitionCount(counts []CategoryCount, category, severity string) uint64 {
	for _, cc := range counts {
		if cc.Category == category && cc.Severity == severity {
			return cc.Count
		}
	}
	return 0
}
