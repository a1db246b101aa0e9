package database_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/tailored-agentic-units/propstore/database"
	"github.com/tailored-agentic-units/propstore/observability"
	"github.com/tailored-agentic-units/propstore/property"
)

type txn struct {
	ID     int `json:"id"`
	Amount int `json:"amount"`
}

func TestOpen_ArrayRepair(t *testing.T) {
	ctx := context.Background()
	backend := property.NewMemoryStore(0)
	put(t, backend,
		"economyIndex", "2",
		"economy:0", `{"transactions":[{"id":1,"amount":5},{"id":2,`,
		"economy:1", `"amount":7},{"id":3,"amou`,
	)
	var events []observability.Event

	db, err := database.Open[[]txn](ctx, newManager(backend, &events), "economy",
		database.WithArrayField("transactions"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	got, ok := db.Get("transactions")
	if !ok {
		t.Fatal("transactions missing after repair")
	}
	want := []txn{{ID: 1, Amount: 5}, {ID: 2, Amount: 7}}
	if !slices.Equal(got, want) {
		t.Errorf("transactions = %+v, want %+v", got, want)
	}

	report := db.Report()
	if report.Outcome != database.OutcomeRepaired || report.Strategy != "array-aware" {
		t.Errorf("Report() = %+v, want repaired by array-aware", report)
	}
	if !db.Dirty() {
		t.Error("repaired store should be dirty so the repair is persisted")
	}
	if !hasEvent(events, database.EventCorrupt) || !hasEvent(events, database.EventRepair) {
		t.Error("expected corrupt and repair events")
	}

	if err := db.Save(ctx, false); err != nil {
		t.Fatal(err)
	}
	payload, count := persisted(t, backend, "economy")
	if payload != `{"transactions":[{"id":1,"amount":5},{"id":2,"amount":7}]}` || count != 1 {
		t.Errorf("persisted = (%s, %d)", payload, count)
	}
	if keys, _ := backend.List(ctx, "economy:"); len(keys) != 1 {
		t.Errorf("stale chunks left behind: %v", keys)
	}
}

func TestOpen_BraceRepair(t *testing.T) {
	ctx := context.Background()
	backend := property.NewMemoryStore(0)
	put(t, backend,
		"walletsIndex", "1",
		"wallets:0", `{"alice":{"gold":5}}{"bob":{"go`,
	)

	db, err := database.Open[wallet](ctx, newManager(backend, nil), "wallets")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got, _ := db.Get("alice"); got.Gold != 5 {
		t.Errorf("Get(alice) = %+v, want gold 5", got)
	}
	if db.Has("bob") {
		t.Error("truncated record should be dropped")
	}
	if db.Report().Strategy != "brace-match" {
		t.Errorf("Strategy = %q, want brace-match", db.Report().Strategy)
	}
}

func TestOpen_Reinitialize(t *testing.T) {
	ctx := context.Background()
	backend := property.NewMemoryStore(0)
	put(t, backend,
		"walletsIndex", "3",
		"wallets:0", `{"alice":{"gold":`,
		"wallets:1", `5},"bob":{`,
		"wallets:2", `"gold":`,
	)
	var events []observability.Event
	m := newManager(backend, &events)

	db, err := database.Open[wallet](ctx, m, "wallets", database.WithDefault(`{"bank":{"gold":1}}`))
	if !errors.Is(err, database.ErrReinitialized) {
		t.Fatalf("Open() error = %v, want ErrReinitialized", err)
	}
	if db == nil {
		t.Fatal("Open() returned no store alongside ErrReinitialized")
	}

	if db.Has("alice") {
		t.Error("corrupt data survived reinitialization")
	}
	if got, ok := db.Get("bank"); !ok || got.Gold != 1 {
		t.Errorf("Get(bank) = (%+v, %v), want default", got, ok)
	}
	if db.Dirty() {
		t.Error("reinitialized store should be persisted immediately")
	}
	if db.Report().Outcome != database.OutcomeReinitialized {
		t.Errorf("Outcome = %q, want reinitialized", db.Report().Outcome)
	}
	if !slices.Equal(m.Names(), []string{"wallets"}) {
		t.Errorf("Names() = %v, want store still registered", m.Names())
	}
	if !hasEvent(events, database.EventReinitialize) {
		t.Error("expected reinitialize event")
	}

	payload, count := persisted(t, backend, "wallets")
	if payload != `{"bank":{"gold":1}}` || count != 1 {
		t.Errorf("persisted = (%s, %d), want default in one chunk", payload, count)
	}
	if keys, _ := backend.List(ctx, "wallets:"); len(keys) != 1 {
		t.Errorf("stale chunks left behind: %v", keys)
	}

	// Behaves as a fresh store afterwards.
	reopened, err := database.Open[wallet](ctx, newManager(backend, nil), "wallets")
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if reopened.Report().Outcome != database.OutcomeClean {
		t.Errorf("reopen Outcome = %q, want clean", reopened.Report().Outcome)
	}
}

func TestOpen_DropsUndecodableEntries(t *testing.T) {
	ctx := context.Background()
	backend := property.NewMemoryStore(0)
	put(t, backend,
		"walletsIndex", "1",
		"wallets:0", `{"alice":{"gold":500},"bob":{"gold":"12"},"carol":{"gold":7}}`,
	)
	var events []observability.Event

	db, err := database.Open[wallet](ctx, newManager(backend, &events), "wallets")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if got, _ := db.Get("alice"); got.Gold != 500 {
		t.Errorf("Get(alice) = %+v, want gold 500", got)
	}
	if got, _ := db.Get("carol"); got.Gold != 7 {
		t.Errorf("Get(carol) = %+v, want gold 7", got)
	}
	if db.Has("bob") {
		t.Error("undecodable entry bob was kept")
	}

	report := db.Report()
	if report.Outcome != database.OutcomeRepaired || report.Strategy != "entry-filter" {
		t.Errorf("Report() = %+v, want repaired by entry-filter", report)
	}
	if !slices.Equal(report.Dropped, []string{"bob"}) {
		t.Errorf("Dropped = %v, want [bob]", report.Dropped)
	}
	if !db.Dirty() {
		t.Error("repaired store should be dirty")
	}
	if hasEvent(events, database.EventReinitialize) {
		t.Error("a parseable payload must not be reinitialized")
	}

	// Nothing is rewritten until the next save.
	payload, _ := persisted(t, backend, "wallets")
	if payload != `{"alice":{"gold":500},"bob":{"gold":"12"},"carol":{"gold":7}}` {
		t.Errorf("persisted = %s, want original payload untouched", payload)
	}

	if err := db.Save(ctx, false); err != nil {
		t.Fatal(err)
	}
	if payload, _ := persisted(t, backend, "wallets"); payload != `{"alice":{"gold":500},"carol":{"gold":7}}` {
		t.Errorf("persisted after save = %s", payload)
	}
}

func TestOpen_InvalidIndex(t *testing.T) {
	ctx := context.Background()
	backend := property.NewMemoryStore(0)
	put(t, backend,
		"walletsIndex", "NaN",
		"wallets:0", `{"alice":{"gold":5}}`,
	)

	db, err := database.Open[wallet](ctx, newManager(backend, nil), "wallets")
	if !errors.Is(err, database.ErrReinitialized) {
		t.Fatalf("Open() error = %v, want ErrReinitialized", err)
	}
	if db.Len() != 0 {
		t.Errorf("Len() = %d, want 0", db.Len())
	}
}

func TestOpen_MissingChunk(t *testing.T) {
	ctx := context.Background()
	backend := property.NewMemoryStore(0)
	// Chunk 1 is gone, but chunk 0 already holds a complete payload.
	put(t, backend,
		"walletsIndex", "2",
		"wallets:0", `{"alice":{"gold":5}}`,
	)
	var events []observability.Event

	db, err := database.Open[wallet](ctx, newManager(backend, &events), "wallets")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got, _ := db.Get("alice"); got.Gold != 5 {
		t.Errorf("Get(alice) = %+v, want gold 5", got)
	}
	report := db.Report()
	if report.Outcome != database.OutcomeClean || !slices.Equal(report.Missing, []int{1}) {
		t.Errorf("Report() = %+v, want clean with chunk 1 missing", report)
	}
	if !hasEvent(events, database.EventMissingChunk) {
		t.Error("expected missing chunk event")
	}
}

func TestOpen_MissingChunkCorrupts(t *testing.T) {
	ctx := context.Background()
	backend := property.NewMemoryStore(0)
	put(t, backend,
		"walletsIndex", "3",
		"wallets:0", `{"alice":{"gold":5},`,
		"wallets:2", `"carol":{"gold":7}}`,
	)

	db, err := database.Open[wallet](ctx, newManager(backend, nil), "wallets")
	if err != nil && !errors.Is(err, database.ErrReinitialized) {
		t.Fatalf("Open() error = %v", err)
	}
	// {"alice":{"gold":5},"carol":{"gold":7}} happens to be whole again.
	if got, _ := db.Get("carol"); got.Gold != 7 {
		t.Errorf("Get(carol) = %+v, want gold 7", got)
	}
	if !slices.Equal(db.Report().Missing, []int{1}) {
		t.Errorf("Missing = %v, want [1]", db.Report().Missing)
	}
}

func TestOpen_NullPayload(t *testing.T) {
	ctx := context.Background()
	backend := property.NewMemoryStore(0)
	put(t, backend, "walletsIndex", "1", "wallets:0", "null")

	db, err := database.Open[wallet](ctx, newManager(backend, nil), "wallets")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	db.Set("alice", wallet{Gold: 1})
	if db.Len() != 1 {
		t.Errorf("Len() = %d, want 1", db.Len())
	}
}

func TestOpen_BackendReadError(t *testing.T) {
	m := newManager(failingGetStore{property.NewMemoryStore(0)}, nil)

	_, err := database.Open[wallet](context.Background(), m, "wallets")
	if !errors.Is(err, property.ErrLoadFailed) {
		t.Fatalf("Open() error = %v, want ErrLoadFailed", err)
	}
	if len(m.Names()) != 0 {
		t.Errorf("Names() = %v, want failed store unregistered", m.Names())
	}
}

type failingGetStore struct {
	property.Store
}

func (failingGetStore) Get(context.Context, string) (string, bool, error) {
	return "", false, property.ErrLoadFailed
}
