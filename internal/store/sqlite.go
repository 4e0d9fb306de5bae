// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"battlecard-trader/internal/errors"
	"battlecard-trader/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Battle cards: one row per trade thesis
	CREATE TABLE IF NOT EXISTS battle_cards (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		timeframe TEXT,
		thesis TEXT,
		status TEXT NOT NULL,
		active_scenario_id TEXT,
		reassessment TEXT,
		reassessed_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	-- Scenarios are owned by their card; deleting a card deletes them.
	-- Scenario ids are only unique within a card, so the key is composite.
	CREATE TABLE IF NOT EXISTS scenarios (
		id TEXT NOT NULL,
		card_id TEXT NOT NULL,
		type TEXT NOT NULL,
		trigger_price REAL NOT NULL,
		trigger_condition TEXT,
		entry_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		target1 REAL,
		target2 REAL,
		target3 REAL,
		probability INTEGER,
		is_active INTEGER DEFAULT 0,
		triggered_at DATETIME,
		parent_id TEXT,
		seq INTEGER NOT NULL,
		PRIMARY KEY (card_id, id),
		FOREIGN KEY (card_id) REFERENCES battle_cards(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_scenarios_card ON scenarios(card_id, seq);
	CREATE INDEX IF NOT EXISTS idx_cards_status ON battle_cards(status);
	CREATE INDEX IF NOT EXISTS idx_cards_symbol ON battle_cards(symbol);

	-- Alerts reference cards/scenarios by id only (weak reference)
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT,
		card_id TEXT,
		scenario_id TEXT,
		kind TEXT,
		timestamp DATETIME NOT NULL,
		read INTEGER DEFAULT 0,
		seq INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_seq ON alerts(seq);

	-- Dedup keys outlive their alerts; eviction and dismissal must not
	-- re-open an emission after restart
	CREATE TABLE IF NOT EXISTS alert_keys (
		key TEXT PRIMARY KEY
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// LoadBattleCards loads all battle cards with their scenarios.
func (s *SQLiteStore) LoadBattleCards(ctx context.Context) ([]*models.BattleCard, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, timeframe, thesis, status, active_scenario_id,
		       reassessment, reassessed_at, created_at, updated_at
		FROM battle_cards ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("querying battle cards: %w", err)
	}
	defer rows.Close()

	var cards []*models.BattleCard
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, card := range cards {
		if err := s.loadScenarios(ctx, card); err != nil {
			return nil, err
		}
	}

	return cards, nil
}

// GetBattleCard loads a single battle card by id.
func (s *SQLiteStore) GetBattleCard(ctx context.Context, id string) (*models.BattleCard, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, symbol, timeframe, thesis, status, active_scenario_id,
		       reassessment, reassessed_at, created_at, updated_at
		FROM battle_cards WHERE id = ?`, id)

	card, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("battle card %s: %w", id, errors.ErrCardNotFound)
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadScenarios(ctx, card); err != nil {
		return nil, err
	}
	return card, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCard(r rowScanner) (*models.BattleCard, error) {
	var card models.BattleCard
	var timeframe, thesis, activeID, reassessment sql.NullString
	var reassessedAt sql.NullTime

	err := r.Scan(&card.ID, &card.Symbol, &timeframe, &thesis, &card.Status,
		&activeID, &reassessment, &reassessedAt, &card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		return nil, err
	}

	card.Timeframe = timeframe.String
	card.Thesis = thesis.String
	card.ActiveScenarioID = activeID.String
	card.Reassessment = reassessment.String
	if reassessedAt.Valid {
		t := reassessedAt.Time
		card.ReassessedAt = &t
	}
	return &card, nil
}

func (s *SQLiteStore) loadScenarios(ctx context.Context, card *models.BattleCard) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, trigger_price, trigger_condition, entry_price, stop_loss,
		       target1, target2, target3, probability, is_active, triggered_at, parent_id
		FROM scenarios WHERE card_id = ? ORDER BY seq`, card.ID)
	if err != nil {
		return fmt.Errorf("querying scenarios for card %s: %w", card.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var sc models.Scenario
		var condition, parentID sql.NullString
		var t1, t2, t3 sql.NullFloat64
		var probability sql.NullInt64
		var isActive int
		var triggeredAt sql.NullTime

		err := rows.Scan(&sc.ID, &sc.Type, &sc.TriggerPrice, &condition,
			&sc.EntryPrice, &sc.StopLoss, &t1, &t2, &t3, &probability,
			&isActive, &triggeredAt, &parentID)
		if err != nil {
			return err
		}

		sc.TriggerCondition = condition.String
		sc.ParentID = parentID.String
		sc.Target1 = t1.Float64
		sc.Target2 = t2.Float64
		sc.Target3 = t3.Float64
		sc.Probability = int(probability.Int64)
		sc.IsActive = isActive != 0
		if triggeredAt.Valid {
			t := triggeredAt.Time
			sc.TriggeredAt = &t
		}

		card.Scenarios = append(card.Scenarios, &sc)
	}
	return rows.Err()
}

// SaveBattleCard upserts a card and replaces its scenario rows in one
// transaction.
func (s *SQLiteStore) SaveBattleCard(ctx context.Context, card *models.BattleCard) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var reassessedAt interface{}
	if card.ReassessedAt != nil {
		reassessedAt = *card.ReassessedAt
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO battle_cards (id, symbol, timeframe, thesis, status,
			active_scenario_id, reassessment, reassessed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			symbol = excluded.symbol,
			timeframe = excluded.timeframe,
			thesis = excluded.thesis,
			status = excluded.status,
			active_scenario_id = excluded.active_scenario_id,
			reassessment = excluded.reassessment,
			reassessed_at = excluded.reassessed_at,
			updated_at = excluded.updated_at`,
		card.ID, card.Symbol, card.Timeframe, card.Thesis, card.Status,
		card.ActiveScenarioID, card.Reassessment, reassessedAt,
		card.CreatedAt, card.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting card %s: %w", card.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM scenarios WHERE card_id = ?`, card.ID); err != nil {
		return fmt.Errorf("clearing scenarios for card %s: %w", card.ID, err)
	}

	for i, sc := range card.Scenarios {
		var triggeredAt interface{}
		if sc.TriggeredAt != nil {
			triggeredAt = *sc.TriggeredAt
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO scenarios (id, card_id, type, trigger_price, trigger_condition,
				entry_price, stop_loss, target1, target2, target3, probability,
				is_active, triggered_at, parent_id, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sc.ID, card.ID, sc.Type, sc.TriggerPrice, sc.TriggerCondition,
			sc.EntryPrice, sc.StopLoss, sc.Target1, sc.Target2, sc.Target3,
			sc.Probability, boolToInt(sc.IsActive), triggeredAt, sc.ParentID, i)
		if err != nil {
			return fmt.Errorf("inserting scenario %s: %w", sc.ID, err)
		}
	}

	return tx.Commit()
}

// DeleteBattleCard removes a card and its scenarios.
func (s *SQLiteStore) DeleteBattleCard(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM scenarios WHERE card_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM battle_cards WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadAlerts loads all alerts in emission order.
func (s *SQLiteStore) LoadAlerts(ctx context.Context) ([]*models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, title, message, card_id, scenario_id, kind, timestamp, read
		FROM alerts ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		var a models.Alert
		var message, cardID, scenarioID, kind sql.NullString
		var read int
		if err := rows.Scan(&a.ID, &a.Type, &a.Title, &message, &cardID,
			&scenarioID, &kind, &a.Timestamp, &read); err != nil {
			return nil, err
		}
		a.Message = message.String
		a.CardID = cardID.String
		a.ScenarioID = scenarioID.String
		a.Kind = models.EventKind(kind.String)
		a.Read = read != 0
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

// SaveAlerts replaces the stored alert set with the given one. The
// alert manager owns dedup and eviction; the store just mirrors its
// current state.
func (s *SQLiteStore) SaveAlerts(ctx context.Context, alerts []*models.Alert) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM alerts`); err != nil {
		return err
	}

	for i, a := range alerts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO alerts (id, type, title, message, card_id, scenario_id, kind, timestamp, read, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.Type, a.Title, a.Message, a.CardID, a.ScenarioID,
			string(a.Kind), a.Timestamp, boolToInt(a.Read), i)
		if err != nil {
			return fmt.Errorf("inserting alert %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// LoadAlertKeys loads the persisted alert dedup keys.
func (s *SQLiteStore) LoadAlertKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM alert_keys`)
	if err != nil {
		return nil, fmt.Errorf("querying alert keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// SaveAlertKeys records alert dedup keys. Keys only ever accumulate.
func (s *SQLiteStore) SaveAlertKeys(ctx context.Context, keys []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO alert_keys (key) VALUES (?)`, k); err != nil {
			return fmt.Errorf("inserting alert key %q: %w", k, err)
		}
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
