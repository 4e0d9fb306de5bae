package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "battlecard-trader/internal/errors"
	"battlecard-trader/internal/feed"
	"battlecard-trader/internal/logging"
	"battlecard-trader/internal/models"
	"battlecard-trader/internal/store"
	"battlecard-trader/pkg/utils"
)

// MonitorConfig holds configuration for the price monitor loop.
type MonitorConfig struct {
	// WorkerBufferSize is the tick channel buffer per symbol worker.
	WorkerBufferSize int
	// SaveRetry controls write-back retries to the persistence
	// collaborator.
	SaveRetry utils.RetryConfig
}

// DefaultMonitorConfig returns the default monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		WorkerBufferSize: 256,
		SaveRetry:        utils.DefaultRetryConfig(),
	}
}

// Monitor is the price monitor loop. It maintains the subscription set
// as the union of instruments referenced by active/monitoring battle
// cards, runs one worker per subscribed symbol processing that
// symbol's ticks strictly in arrival order, and drives evaluation,
// cascade, lifecycle, alerting and persistence write-back.
//
// Card state is only ever mutated under the exclusive lock: tick
// passes and user actions both take it, so they serialize against each
// other, and read-model callers clone under the read lock.
type Monitor struct {
	cfg    MonitorConfig
	log    zerolog.Logger
	feed   feed.PriceFeed
	store  store.DataStore
	alerts *AlertManager

	mu       sync.RWMutex
	cards    map[string]*models.BattleCard
	bySymbol map[string]map[string]*models.BattleCard
	workers  map[string]*symbolWorker
	subs     *subscriptionTable

	cbMu          sync.Mutex
	onCardChanged func(*models.BattleCard)

	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	metricsMu      sync.Mutex
	ticksReceived  uint64
	ticksDropped   uint64
	ticksMalformed uint64
	eventsApplied  uint64
}

// symbolWorker owns the previous-price state for one symbol. Only its
// goroutine reads or writes prev/hasPrev.
type symbolWorker struct {
	symbol  string
	ticks   chan models.Tick
	quit    chan struct{}
	prev    float64
	hasPrev bool
}

// NewMonitor creates a monitor over the given collaborators.
func NewMonitor(cfg MonitorConfig, pf feed.PriceFeed, ds store.DataStore, alerts *AlertManager, logger zerolog.Logger) *Monitor {
	if cfg.WorkerBufferSize <= 0 {
		cfg.WorkerBufferSize = DefaultMonitorConfig().WorkerBufferSize
	}
	if cfg.SaveRetry.MaxAttempts <= 0 {
		cfg.SaveRetry = utils.DefaultRetryConfig()
	}
	return &Monitor{
		cfg:      cfg,
		log:      logger,
		feed:     pf,
		store:    ds,
		alerts:   alerts,
		cards:    make(map[string]*models.BattleCard),
		bySymbol: make(map[string]map[string]*models.BattleCard),
		workers:  make(map[string]*symbolWorker),
		subs:     newSubscriptionTable(),
	}
}

// SetOnCardChanged registers a callback invoked once per tick-processing
// pass that mutated a card. Presentation layers subscribe here instead
// of the engine knowing about any rendering technology.
func (m *Monitor) SetOnCardChanged(fn func(*models.BattleCard)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onCardChanged = fn
}

// Start loads battle cards from the store, derives the subscription
// set from the active/monitoring ones, and connects the feed.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return apperrors.ErrAlreadyStarted
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	cards, err := m.store.LoadBattleCards(ctx)
	if err != nil {
		return apperrors.Wrap(err, "loading battle cards")
	}
	for _, card := range cards {
		if card.Watchable() {
			m.track(card)
		}
	}

	m.feed.OnTick(m.dispatch)
	m.feed.OnError(func(err error) {
		// A feed gap is not an engine error; ticks resume after the
		// feed's own reconnect.
		m.log.Warn().Err(err).Msg("Price feed error")
	})

	if err := m.feed.Connect(m.ctx); err != nil {
		return apperrors.Wrap(err, "connecting price feed")
	}

	m.log.Info().Int("cards", len(cards)).Strs("symbols", m.subs.symbols()).Msg("Monitor started")
	return nil
}

// Stop disconnects the feed and stops all workers.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	m.cancel()
	workers := m.workers
	m.workers = make(map[string]*symbolWorker)
	m.mu.Unlock()

	m.feed.Disconnect()
	for _, w := range workers {
		close(w.quit)
	}
	m.wg.Wait()
}

// track registers a card and subscribes its instrument if this is the
// first active/monitoring card on that symbol.
func (m *Monitor) track(card *models.BattleCard) {
	m.mu.Lock()
	m.cards[card.ID] = card
	set := m.bySymbol[card.Symbol]
	if set == nil {
		set = make(map[string]*models.BattleCard)
		m.bySymbol[card.Symbol] = set
	}
	set[card.ID] = card

	first := m.subs.add(card.Symbol)
	var w *symbolWorker
	if first {
		w = &symbolWorker{
			symbol: card.Symbol,
			ticks:  make(chan models.Tick, m.cfg.WorkerBufferSize),
			quit:   make(chan struct{}),
		}
		m.workers[card.Symbol] = w
		m.wg.Add(1)
		go m.runWorker(w)
	}
	m.mu.Unlock()

	if first {
		if err := m.feed.Subscribe([]string{card.Symbol}); err != nil {
			m.log.Warn().Err(err).Str("symbol", card.Symbol).Msg("Feed subscribe failed")
		}
	}
}

// untrack drops a card and unsubscribes its instrument once no other
// active/monitoring card needs it. In-flight ticks for the symbol are
// still processed to completion by the worker before it exits.
func (m *Monitor) untrack(card *models.BattleCard) {
	m.mu.Lock()
	if _, ok := m.cards[card.ID]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.cards, card.ID)
	if set := m.bySymbol[card.Symbol]; set != nil {
		delete(set, card.ID)
		if len(set) == 0 {
			delete(m.bySymbol, card.Symbol)
		}
	}

	last := m.subs.remove(card.Symbol)
	var w *symbolWorker
	if last {
		w = m.workers[card.Symbol]
		delete(m.workers, card.Symbol)
	}
	m.mu.Unlock()

	if last {
		if w != nil {
			close(w.quit)
		}
		if err := m.feed.Unsubscribe([]string{card.Symbol}); err != nil {
			m.log.Warn().Err(err).Str("symbol", card.Symbol).Msg("Feed unsubscribe failed")
		}
	}
}

// dispatch routes a tick to its symbol worker. The send is
// non-blocking: a full worker buffer drops the tick, which the engine
// treats like any other gap in intermediate prices.
func (m *Monitor) dispatch(tick models.Tick) {
	m.metricsMu.Lock()
	m.ticksReceived++
	m.metricsMu.Unlock()

	m.mu.RLock()
	w := m.workers[tick.Symbol]
	m.mu.RUnlock()

	if w == nil {
		return // late tick for an unsubscribed symbol
	}

	select {
	case w.ticks <- tick:
	case <-w.quit:
	default:
		m.metricsMu.Lock()
		m.ticksDropped++
		m.metricsMu.Unlock()
		m.log.Debug().Str("symbol", tick.Symbol).Msg("Worker buffer full, tick dropped")
	}
}

// runWorker processes one symbol's ticks strictly in arrival order.
func (m *Monitor) runWorker(w *symbolWorker) {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-w.quit:
			return
		case tick := <-w.ticks:
			m.processTick(w, tick)
		}
	}
}

// processTick applies one tick to every card on the worker's symbol.
// Malformed ticks are dropped and do not advance the previous price.
func (m *Monitor) processTick(w *symbolWorker, tick models.Tick) {
	if !tick.Valid() {
		m.metricsMu.Lock()
		m.ticksMalformed++
		m.metricsMu.Unlock()
		m.log.Warn().Err(apperrors.NewTickError(tick.Symbol, tick.Price, "non-positive or non-numeric price")).
			Msg("Malformed tick dropped")
		return
	}

	prev, hasPrev := w.prev, w.hasPrev
	w.prev = tick.Price
	w.hasPrev = true

	if !hasPrev {
		return // first observation, nothing to cross yet
	}

	// Card mutation is a critical section: it runs under the exclusive
	// lock so user actions and read-model callers never observe a
	// half-applied tick. Alert emission, write-back and notification
	// operate on post-mutation clones once the lock is released.
	m.mu.Lock()
	cards := make([]*models.BattleCard, 0, len(m.bySymbol[tick.Symbol]))
	for _, c := range m.bySymbol[tick.Symbol] {
		cards = append(cards, c)
	}
	// Map order is random; keep card application deterministic.
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })

	var outcomes []tickOutcome
	for _, card := range cards {
		if out, ok := m.applyTick(card, prev, tick); ok {
			outcomes = append(outcomes, out)
		}
	}
	m.mu.Unlock()

	for _, out := range outcomes {
		for _, a := range out.alerts {
			m.alerts.Emit(a)
		}
		m.saveCard(out.snap)
		m.notifyCardChanged(out.snap)
		if out.done {
			m.untrack(out.card)
		}
	}
}

// tickOutcome carries one card's side effects out of the tick critical
// section.
type tickOutcome struct {
	card   *models.BattleCard // tracked pointer, for untrack
	snap   *models.BattleCard // post-mutation clone for save and notify
	alerts []models.Alert
	done   bool // left the active/monitoring set
}

// applyTick runs the evaluate → cascade → lifecycle pipeline for one
// card. The caller holds the exclusive lock; the returned outcome is
// performed after it is released. On an internal consistency error the
// card is rolled back to its pre-tick snapshot and the tick discarded;
// the defect is reported to the operator, never surfaced as a trading
// signal.
func (m *Monitor) applyTick(card *models.BattleCard, prev float64, tick models.Tick) (tickOutcome, bool) {
	if !card.Watchable() {
		return tickOutcome{}, false
	}

	events := EvaluateCard(card, prev, tick.Price)
	if len(events) == 0 {
		return tickOutcome{}, false
	}

	snapshot := card.Clone()
	var pending []models.Alert

	for _, ev := range events {
		alerts, err := m.applyEvent(card, ev, tick)
		if err != nil {
			card.Restore(snapshot)
			m.log.Error().Err(err).
				Str("card_id", card.ID).
				Str("symbol", tick.Symbol).
				Msg("Internal consistency defect, tick discarded and card rolled back")
			return tickOutcome{}, false
		}
		pending = append(pending, alerts...)
	}

	m.metricsMu.Lock()
	m.eventsApplied += uint64(len(events))
	m.metricsMu.Unlock()

	card.UpdatedAt = time.Now()
	return tickOutcome{
		card:   card,
		snap:   card.Clone(),
		alerts: pending,
		done:   !card.Watchable(),
	}, true
}

// applyEvent applies a single crossing event to the card and returns
// the alert candidates it produced. Alerts are emitted by the caller
// only after the whole tick pass succeeds.
func (m *Monitor) applyEvent(card *models.BattleCard, ev Event, tick models.Tick) ([]models.Alert, error) {
	s := ev.Scenario
	var alerts []models.Alert

	switch ev.Kind {
	case models.EventTrigger:
		result, err := Resolve(card, s)
		if err != nil {
			return nil, err
		}
		if err := Apply(card, result); err != nil {
			return nil, err
		}
		if s.TriggeredAt == nil {
			now := time.Now()
			s.TriggeredAt = &now
		}
		logging.LogTriggerFire(m.log, card.ID, s.ID, card.Symbol, tick.Price, string(ev.Direction))

		before := card.Status
		entered, err := MarkMonitoring(card)
		if err != nil {
			return nil, err
		}
		if entered {
			logging.LogCardTransition(m.log, card.ID, string(before), string(card.Status))
			alerts = append(alerts, models.Alert{
				Type:    models.AlertInfo,
				Kind:    models.EventMonitoring,
				CardID:  card.ID,
				Title:   fmt.Sprintf("%s now monitoring", card.Symbol),
				Message: fmt.Sprintf("First scenario fired on %s, card is being monitored", card.Symbol),
			})
		}

		alerts = append(alerts, models.Alert{
			Type:       models.AlertSuccess,
			Kind:       models.EventTrigger,
			CardID:     card.ID,
			ScenarioID: s.ID,
			Title:      fmt.Sprintf("%s scenario %s triggered", card.Symbol, s.Type),
			Message: fmt.Sprintf("Price %.4f crossed trigger %.4f (%s)",
				tick.Price, s.TriggerPrice, ev.Direction),
		})

		if s.Type == models.ScenarioInvalidation {
			before := card.Status
			if err := CloseOnInvalidation(card); err != nil {
				return nil, err
			}
			logging.LogCardTransition(m.log, card.ID, string(before), string(card.Status))
			alerts = append(alerts, m.invalidationAlert(card, s.ID))
		}

	case models.EventStop:
		if !s.IsActive {
			return nil, nil // stale breach on an already deactivated scenario
		}
		result, err := ResolveBreach(card, s)
		if err != nil {
			return nil, err
		}
		if err := Apply(card, result); err != nil {
			return nil, err
		}
		logging.LogStopBreach(m.log, card.ID, s.ID, card.Symbol, s.StopLoss, tick.Price)

		alerts = append(alerts, models.Alert{
			Type:       models.AlertDanger,
			Kind:       models.EventStop,
			CardID:     card.ID,
			ScenarioID: s.ID,
			Title:      fmt.Sprintf("%s stop-loss breached", card.Symbol),
			Message: fmt.Sprintf("Price %.4f crossed stop %.4f on scenario %s",
				tick.Price, s.StopLoss, s.Type),
		})

		// When nothing but the invalidation branch can still fire,
		// the thesis is done.
		if len(card.RemainingPaths()) == 0 {
			before := card.Status
			if err := CloseOnInvalidation(card); err != nil {
				return nil, err
			}
			logging.LogCardTransition(m.log, card.ID, string(before), string(card.Status))
			alerts = append(alerts, m.invalidationAlert(card, s.ID))
		}

	case models.EventTarget1, models.EventTarget2, models.EventTarget3:
		// Informational only: no activation change.
		alerts = append(alerts, models.Alert{
			Type:       models.AlertInfo,
			Kind:       ev.Kind,
			CardID:     card.ID,
			ScenarioID: s.ID,
			Title:      fmt.Sprintf("%s %s reached", card.Symbol, ev.Kind),
			Message: fmt.Sprintf("Price %.4f crossed %s at %.4f on scenario %s",
				tick.Price, ev.Kind, ev.Threshold, s.Type),
		})
	}

	return alerts, nil
}

// CardClosedAlert is the single alert produced when a user closes a
// card. The invalidation path carries its own alert kind, and a card
// can only enter CLOSED once, so each close emits exactly one alert.
func CardClosedAlert(card *models.BattleCard) models.Alert {
	return models.Alert{
		Type:    models.AlertInfo,
		Kind:    models.EventClosed,
		CardID:  card.ID,
		Title:   fmt.Sprintf("%s closed", card.Symbol),
		Message: fmt.Sprintf("Battle card for %s closed by user", card.Symbol),
	}
}

func (m *Monitor) invalidationAlert(card *models.BattleCard, scenarioID string) models.Alert {
	return models.Alert{
		Type:       models.AlertDanger,
		Kind:       models.EventInvalidated,
		CardID:     card.ID,
		ScenarioID: scenarioID,
		Title:      fmt.Sprintf("%s thesis invalidated", card.Symbol),
		Message:    fmt.Sprintf("Battle card for %s closed", card.Symbol),
	}
}

// saveCard writes a post-mutation clone back with bounded retries. On
// exhaustion the in-memory state stays authoritative and the user gets
// a non-blocking warning.
func (m *Monitor) saveCard(card *models.BattleCard) {
	err := utils.Retry(m.ctx, m.cfg.SaveRetry, func() error {
		return m.store.SaveBattleCard(m.ctx, card)
	})
	if err != nil {
		perr := apperrors.NewPersistenceError("save", card.ID, m.cfg.SaveRetry.MaxAttempts, err)
		m.log.Error().Err(perr).Msg("Card write-back failed")
		m.alerts.Emit(models.Alert{
			Type:    models.AlertWarning,
			Kind:    models.EventSaveFailed,
			CardID:  card.ID,
			Title:   "Changes may not be saved",
			Message: fmt.Sprintf("Writing battle card for %s failed after %d attempts", card.Symbol, m.cfg.SaveRetry.MaxAttempts),
		})
	}
}

func (m *Monitor) notifyCardChanged(card *models.BattleCard) {
	m.cbMu.Lock()
	fn := m.onCardChanged
	m.cbMu.Unlock()
	if fn != nil {
		fn(card)
	}
}

// AddCard stores a card and starts watching it if it is active or
// monitoring.
func (m *Monitor) AddCard(ctx context.Context, card *models.BattleCard) error {
	if err := m.store.SaveBattleCard(ctx, card); err != nil {
		return apperrors.Wrap(err, "saving battle card")
	}
	if card.Watchable() {
		m.track(card)
	}
	return nil
}

// ActivateCard commits a draft card; the monitor begins subscribing to
// its instrument.
func (m *Monitor) ActivateCard(ctx context.Context, cardID string) error {
	return m.userAction(ctx, cardID, Activate)
}

// CloseCard closes a card by user action.
func (m *Monitor) CloseCard(ctx context.Context, cardID string) error {
	return m.userAction(ctx, cardID, Close)
}

// CompleteCard marks a card completed by user action.
func (m *Monitor) CompleteCard(ctx context.Context, cardID string) error {
	return m.userAction(ctx, cardID, Complete)
}

// ArchiveCard archives a card by user action.
func (m *Monitor) ArchiveCard(ctx context.Context, cardID string) error {
	return m.userAction(ctx, cardID, Archive)
}

// userAction applies a user-initiated transition under the exclusive
// lock so it cannot interleave with a worker's tick pass on the same
// card.
func (m *Monitor) userAction(ctx context.Context, cardID string, fn func(*models.BattleCard) error) error {
	m.mu.Lock()
	card := m.cards[cardID]
	m.mu.Unlock()

	tracked := card != nil
	if !tracked {
		loaded, err := m.store.GetBattleCard(ctx, cardID)
		if err != nil {
			return err
		}
		card = loaded
	}

	m.mu.Lock()
	before := card.Status
	err := fn(card)
	var snap *models.BattleCard
	if err == nil {
		snap = card.Clone()
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if err := m.store.SaveBattleCard(ctx, snap); err != nil {
		return apperrors.Wrap(err, "saving battle card")
	}
	if before != models.CardClosed && snap.Status == models.CardClosed {
		m.alerts.Emit(CardClosedAlert(snap))
	}
	m.notifyCardChanged(snap)

	if tracked && !snap.Watchable() {
		m.untrack(card)
	}
	if !tracked && snap.Watchable() {
		m.track(card)
	}
	return nil
}

// Card returns a copy of a tracked card, or nil.
func (m *Monitor) Card(cardID string) *models.BattleCard {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if card, ok := m.cards[cardID]; ok {
		return card.Clone()
	}
	return nil
}

// SubscribedSymbols returns the symbols currently subscribed.
func (m *Monitor) SubscribedSymbols() []string {
	return m.subs.symbols()
}

// MonitorMetrics contains monitor counters.
type MonitorMetrics struct {
	TicksReceived  uint64
	TicksDropped   uint64
	TicksMalformed uint64
	EventsApplied  uint64
	Symbols        int
}

// Metrics returns a snapshot of the monitor counters.
func (m *Monitor) Metrics() MonitorMetrics {
	m.metricsMu.Lock()
	defer m.metricsMu.Unlock()
	return MonitorMetrics{
		TicksReceived:  m.ticksReceived,
		TicksDropped:   m.ticksDropped,
		TicksMalformed: m.ticksMalformed,
		EventsApplied:  m.eventsApplied,
		Symbols:        len(m.subs.symbols()),
	}
}
