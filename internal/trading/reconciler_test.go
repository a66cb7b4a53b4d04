package trading

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"bracket-trader/internal/broker"
	"bracket-trader/internal/errors"
	"bracket-trader/internal/models"
	"bracket-trader/internal/store"
)

func newReconcilerFixture(t *testing.T) (store.OrderStore, *broker.SimGateway, *Reconciler) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	g := broker.NewSimGateway()
	return s, g, NewReconciler(s, g, nil, zerolog.Nop())
}

// openPosition makes the simulated broker report an open position for the
// instrument, as a filled entry would.
func openPosition(t *testing.T, g *broker.SimGateway, instrument string, qty int) {
	t.Helper()
	_, err := g.PlaceOrder(context.Background(), broker.OrderRequest{
		Instrument: instrument,
		Side:       models.OrderSideBuy,
		Type:       models.OrderTypeMarket,
		Quantity:   qty,
	})
	if err != nil {
		t.Fatalf("Opening simulated position failed: %v", err)
	}
}

func createExecuted(t *testing.T, s store.OrderStore, instrument string) *models.Intent {
	t.Helper()
	ctx := context.Background()
	intent := &models.Intent{
		Instrument:   instrument,
		Quantity:     10,
		TriggerPrice: 2850,
		LimitPrice:   2852,
		StopLoss:     2820,
	}
	id, err := s.CreateIntent(ctx, intent)
	if err != nil {
		t.Fatalf("CreateIntent failed: %v", err)
	}
	if err := s.RecordExecution(ctx, id, "E_"+instrument, "S_"+instrument); err != nil {
		t.Fatalf("RecordExecution failed: %v", err)
	}
	return intent
}

func TestReconcileExecutedToExited(t *testing.T) {
	s, g, r := newReconcilerFixture(t)
	ctx := context.Background()

	intent := createExecuted(t, s, "NSE_EQ|RELIANCE")
	openPosition(t, g, "NSE_EQ|RELIANCE", 10)

	// Position still open: nothing changes.
	r.Reconcile(ctx)
	got, _ := s.GetIntent(ctx, intent.ID)
	if got.Status != models.StatusExecuted {
		t.Fatalf("Open position must keep the intent EXECUTED, got %s", got.Status)
	}

	// The stop-loss (or a manual action) closed it at the venue.
	g.ClosePosition("NSE_EQ|RELIANCE")
	r.Reconcile(ctx)
	got, _ = s.GetIntent(ctx, intent.ID)
	if got.Status != models.StatusExited {
		t.Errorf("Closed position must move the intent to EXITED, got %s", got.Status)
	}
	if got.EntryOrderID == "" || got.SLOrderID == "" {
		t.Errorf("Exit dropped the order ids: %+v", got)
	}
}

func TestReconcileSurvivesGatewayFailures(t *testing.T) {
	s, g, r := newReconcilerFixture(t)
	ctx := context.Background()

	a := createExecuted(t, s, "NSE_EQ|AAA")
	b := createExecuted(t, s, "NSE_EQ|BBB")

	// A broken positions feed aborts nothing permanently: both records stay
	// EXECUTED and the next sweep resolves them.
	g.FailPositions(fmt.Errorf("positions api down"))
	r.Reconcile(ctx)
	for _, in := range []*models.Intent{a, b} {
		got, _ := s.GetIntent(ctx, in.ID)
		if got.Status != models.StatusExecuted {
			t.Fatalf("Intent %d transitioned on a failed sweep: %s", in.ID, got.Status)
		}
	}

	g.FailPositions(nil)
	r.Reconcile(ctx)
	for _, in := range []*models.Intent{a, b} {
		got, _ := s.GetIntent(ctx, in.ID)
		if got.Status != models.StatusExited {
			t.Errorf("Intent %d not exited after recovery: %s", in.ID, got.Status)
		}
	}
}

func TestReconcileIgnoresTerminalIntents(t *testing.T) {
	s, g, r := newReconcilerFixture(t)
	ctx := context.Background()

	intent := &models.Intent{
		Instrument:   "NSE_EQ|DONE",
		Quantity:     5,
		TriggerPrice: 100,
		LimitPrice:   101,
		StopLoss:     95,
	}
	id, _ := s.CreateIntent(ctx, intent)
	_ = s.MarkCancelled(ctx, id)

	before := g.Calls()
	r.Reconcile(ctx)
	if g.Calls() != before {
		t.Error("Reconciling a terminal intent contacted the broker")
	}
	got, _ := s.GetIntent(ctx, id)
	if got.Status != models.StatusCancelled {
		t.Errorf("Terminal intent changed: %s", got.Status)
	}
}

func TestReconcilePendingWithoutEntryOrderUntouched(t *testing.T) {
	s, g, r := newReconcilerFixture(t)
	ctx := context.Background()

	intent := &models.Intent{
		Instrument:   "NSE_EQ|WAITING",
		Quantity:     5,
		TriggerPrice: 100,
		LimitPrice:   101,
		StopLoss:     95,
	}
	id, _ := s.CreateIntent(ctx, intent)

	before := g.Calls()
	r.Reconcile(ctx)
	if g.Calls() != before {
		t.Error("An order-less pending intent has nothing to reconcile against")
	}
	got, _ := s.GetIntent(ctx, id)
	if got.Status != models.StatusPending {
		t.Errorf("Pending intent changed: %s", got.Status)
	}
}

// memStore lets tests craft record states the SQLite store's guarded
// transitions would never produce, such as a pending record that already
// carries an entry order id left behind by an interrupted run.
type memStore struct {
	mu      sync.Mutex
	intents map[int64]*models.Intent
	nextID  int64
	runs    map[string]bool
}

func newMemStore() *memStore {
	return &memStore{intents: make(map[int64]*models.Intent), runs: make(map[string]bool)}
}

func (m *memStore) put(in models.Intent) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	in.ID = m.nextID
	m.intents[in.ID] = &in
	return in.ID
}

func (m *memStore) CreateIntent(ctx context.Context, in *models.Intent) (int64, error) {
	in.Status = models.StatusPending
	id := m.put(*in)
	in.ID = id
	return id, nil
}

func (m *memStore) GetIntent(ctx context.Context, id int64) (*models.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intents[id]
	if !ok {
		return nil, errors.ErrIntentNotFound
	}
	cp := *in
	return &cp, nil
}

func (m *memStore) ListPending(ctx context.Context) ([]models.Intent, error) {
	return m.listByStatus(models.StatusPending), nil
}

func (m *memStore) ListIntents(ctx context.Context) ([]models.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Intent
	for id := int64(1); id <= m.nextID; id++ {
		if in, ok := m.intents[id]; ok {
			out = append(out, *in)
		}
	}
	return out, nil
}

func (m *memStore) listByStatus(status models.IntentStatus) []models.Intent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Intent
	for id := int64(1); id <= m.nextID; id++ {
		if in, ok := m.intents[id]; ok && in.Status == status {
			out = append(out, *in)
		}
	}
	return out
}

func (m *memStore) RecordExecution(ctx context.Context, id int64, entryID, slID string) error {
	return m.transition(id, models.StatusPending, errors.ErrNotPending, func(in *models.Intent) {
		in.EntryOrderID = entryID
		in.SLOrderID = slID
		in.Status = models.StatusExecuted
	})
}

func (m *memStore) MarkCancelled(ctx context.Context, id int64) error {
	return m.transition(id, models.StatusPending, errors.ErrNotPending, func(in *models.Intent) {
		in.Status = models.StatusCancelled
	})
}

func (m *memStore) MarkExited(ctx context.Context, id int64) error {
	return m.transition(id, models.StatusExecuted, errors.ErrNotExecuted, func(in *models.Intent) {
		in.Status = models.StatusExited
	})
}

func (m *memStore) transition(id int64, from models.IntentStatus, statusErr error, apply func(*models.Intent)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intents[id]
	if !ok {
		return errors.ErrIntentNotFound
	}
	if in.Status != from {
		return statusErr
	}
	apply(in)
	return nil
}

func (m *memStore) EntryRunDone(ctx context.Context, day string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[day], nil
}

func (m *memStore) MarkEntryRunDone(ctx context.Context, day string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[day] = true
	return nil
}

func (m *memStore) Close() error { return nil }

var _ store.OrderStore = (*memStore)(nil)

func TestReconcilePendingWithDeadEntryOrder(t *testing.T) {
	ctx := context.Background()
	g := broker.NewSimGateway()

	// The broker holds a cancelled entry order from an interrupted run.
	g.SetEntryState(models.BrokerOrderCancelled)
	deadID, err := g.PlaceOrder(ctx, broker.OrderRequest{
		Instrument: "NSE_EQ|GHOST",
		Side:       models.OrderSideBuy,
		Type:       models.OrderTypeStopLoss,
		Quantity:   10,
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	s := newMemStore()
	id := s.put(models.Intent{
		Instrument:   "NSE_EQ|GHOST",
		Quantity:     10,
		TriggerPrice: 100,
		LimitPrice:   101,
		StopLoss:     95,
		EntryOrderID: deadID,
		Status:       models.StatusPending,
	})

	r := NewReconciler(s, g, nil, zerolog.Nop())
	r.Reconcile(ctx)

	got, _ := s.GetIntent(ctx, id)
	if got.Status != models.StatusCancelled {
		t.Errorf("Dead entry order should cancel the pending intent, got %s", got.Status)
	}
}

func TestReconcileIsolatesOneFailingIntent(t *testing.T) {
	ctx := context.Background()
	g := broker.NewSimGateway()

	// First intent: pending with an entry order whose status query fails.
	g.SetEntryState(models.BrokerOrderPending)
	badOrderID, err := g.PlaceOrder(ctx, broker.OrderRequest{
		Instrument: "NSE_EQ|BAD",
		Side:       models.OrderSideBuy,
		Type:       models.OrderTypeStopLoss,
		Quantity:   10,
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	g.FailStatus(badOrderID, fmt.Errorf("order api down"))

	s := newMemStore()
	badID := s.put(models.Intent{
		Instrument:   "NSE_EQ|BAD",
		Quantity:     10,
		TriggerPrice: 100,
		LimitPrice:   101,
		StopLoss:     95,
		EntryOrderID: badOrderID,
		Status:       models.StatusPending,
	})
	// Second intent: executed, position already closed at the venue.
	goodID := s.put(models.Intent{
		Instrument:   "NSE_EQ|GOOD",
		Quantity:     10,
		TriggerPrice: 200,
		LimitPrice:   201,
		StopLoss:     190,
		EntryOrderID: "E_GOOD",
		SLOrderID:    "S_GOOD",
		Status:       models.StatusExecuted,
	})

	r := NewReconciler(s, g, nil, zerolog.Nop())
	r.Reconcile(ctx)

	// The failing intent is skipped for a later cycle; its sibling is still
	// reconciled in the same sweep.
	bad, _ := s.GetIntent(ctx, badID)
	if bad.Status != models.StatusPending {
		t.Errorf("Failing intent transitioned on a broken status query: %s", bad.Status)
	}
	good, _ := s.GetIntent(ctx, goodID)
	if good.Status != models.StatusExited {
		t.Errorf("Sibling failure leaked: good intent is %s, want EXITED", good.Status)
	}
}

func TestReconcilePendingWithLiveEntryOrderUntouched(t *testing.T) {
	ctx := context.Background()
	g := broker.NewSimGateway()

	g.SetEntryState(models.BrokerOrderPending)
	liveID, err := g.PlaceOrder(ctx, broker.OrderRequest{
		Instrument: "NSE_EQ|LIVE",
		Side:       models.OrderSideBuy,
		Type:       models.OrderTypeStopLoss,
		Quantity:   10,
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	s := newMemStore()
	id := s.put(models.Intent{
		Instrument:   "NSE_EQ|LIVE",
		Quantity:     10,
		TriggerPrice: 100,
		LimitPrice:   101,
		StopLoss:     95,
		EntryOrderID: liveID,
		Status:       models.StatusPending,
	})

	r := NewReconciler(s, g, nil, zerolog.Nop())
	r.Reconcile(ctx)

	got, _ := s.GetIntent(ctx, id)
	if got.Status != models.StatusPending {
		t.Errorf("A still-working entry order must leave the intent PENDING, got %s", got.Status)
	}
}
