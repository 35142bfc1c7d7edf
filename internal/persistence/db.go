// Package persistence exports simulation results to SQLite for reporting
// tools. Nothing written here is ever read back into a simulation.
package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/talgya/micro-market/internal/agents"
	"github.com/talgya/micro-market/internal/engine"
	"github.com/talgya/micro-market/internal/events"
	"github.com/talgya/micro-market/internal/ledger"
)

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		households INTEGER NOT NULL,
		firms INTEGER NOT NULL,
		config_yaml TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS round_stats (
		run_id TEXT NOT NULL,
		round INTEGER NOT NULL,
		avg_money REAL NOT NULL,
		avg_utility REAL NOT NULL,
		avg_bread REAL NOT NULL,
		total_money REAL NOT NULL,
		total_bread REAL NOT NULL,
		hired REAL NOT NULL,
		output REAL NOT NULL,
		bread_sold REAL NOT NULL,
		trades INTEGER NOT NULL,
		profit_pool REAL NOT NULL,
		dividend REAL NOT NULL,
		dividend_skipped INTEGER NOT NULL,
		PRIMARY KEY (run_id, round)
	);

	CREATE TABLE IF NOT EXISTS household_rounds (
		run_id TEXT NOT NULL,
		round INTEGER NOT NULL,
		household INTEGER NOT NULL,
		money REAL NOT NULL,
		bread REAL NOT NULL,
		utility REAL NOT NULL,
		PRIMARY KEY (run_id, round, household)
	);

	CREATE TABLE IF NOT EXISTS firm_rounds (
		run_id TEXT NOT NULL,
		round INTEGER NOT NULL,
		firm INTEGER NOT NULL,
		wage REAL NOT NULL,
		price REAL NOT NULL,
		production REAL NOT NULL,
		profit REAL NOT NULL,
		PRIMARY KEY (run_id, round, firm)
	);

	CREATE TABLE IF NOT EXISTS journal (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		round INTEGER NOT NULL,
		tx_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		owner TEXT NOT NULL,
		good TEXT NOT NULL,
		amount TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_journal_run_round ON journal(run_id, round);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run is the metadata row of one simulation run.
type Run struct {
	ID         uuid.UUID `db:"id"`
	Seed       int64     `db:"seed"`
	Households int       `db:"households"`
	Firms      int       `db:"firms"`
	ConfigYAML string    `db:"config_yaml"`
	StartedAt  time.Time `db:"started_at"`
}

// SaveRun records run metadata.
func (db *DB) SaveRun(r Run) error {
	_, err := db.conn.NamedExec(`INSERT INTO runs
		(id, seed, households, firms, config_yaml, started_at)
		VALUES (:id, :seed, :households, :firms, :config_yaml, :started_at)`,
		map[string]any{
			"id":          r.ID.String(),
			"seed":        r.Seed,
			"households":  r.Households,
			"firms":       r.Firms,
			"config_yaml": r.ConfigYAML,
			"started_at":  r.StartedAt.UTC(),
		})
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

type statsRow struct {
	RunID           string  `db:"run_id"`
	Round           int     `db:"round"`
	AvgMoney        float64 `db:"avg_money"`
	AvgUtility      float64 `db:"avg_utility"`
	AvgBread        float64 `db:"avg_bread"`
	TotalMoney      float64 `db:"total_money"`
	TotalBread      float64 `db:"total_bread"`
	Hired           float64 `db:"hired"`
	Output          float64 `db:"output"`
	BreadSold       float64 `db:"bread_sold"`
	Trades          int     `db:"trades"`
	ProfitPool      float64 `db:"profit_pool"`
	Dividend        float64 `db:"dividend"`
	DividendSkipped bool    `db:"dividend_skipped"`
}

func (r statsRow) stats() engine.RoundStats {
	return engine.RoundStats{
		Round:           r.Round,
		AvgMoney:        r.AvgMoney,
		AvgUtility:      r.AvgUtility,
		AvgBread:        r.AvgBread,
		TotalMoney:      r.TotalMoney,
		TotalBread:      r.TotalBread,
		Hired:           r.Hired,
		Output:          r.Output,
		BreadSold:       r.BreadSold,
		Trades:          r.Trades,
		ProfitPool:      r.ProfitPool,
		Dividend:        r.Dividend,
		DividendSkipped: r.DividendSkipped,
	}
}

// SaveRound writes the aggregate stats, every agent's log entry and the
// round's journal entries for the given round in one transaction.
func (db *DB) SaveRound(runID uuid.UUID, sim *engine.Simulation, st engine.RoundStats) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := statsRow{
		RunID:           runID.String(),
		Round:           st.Round,
		AvgMoney:        st.AvgMoney,
		AvgUtility:      st.AvgUtility,
		AvgBread:        st.AvgBread,
		TotalMoney:      st.TotalMoney,
		TotalBread:      st.TotalBread,
		Hired:           st.Hired,
		Output:          st.Output,
		BreadSold:       st.BreadSold,
		Trades:          st.Trades,
		ProfitPool:      st.ProfitPool,
		Dividend:        st.Dividend,
		DividendSkipped: st.DividendSkipped,
	}
	if _, err := tx.NamedExec(`INSERT INTO round_stats
		(run_id, round, avg_money, avg_utility, avg_bread, total_money, total_bread,
		 hired, output, bread_sold, trades, profit_pool, dividend, dividend_skipped)
		VALUES (:run_id, :round, :avg_money, :avg_utility, :avg_bread, :total_money, :total_bread,
		 :hired, :output, :bread_sold, :trades, :profit_pool, :dividend, :dividend_skipped)`, row); err != nil {
		return fmt.Errorf("insert round %d stats: %w", st.Round, err)
	}

	idx := st.Round - 1
	if err := saveHouseholds(tx, runID, st.Round, idx, sim.Households); err != nil {
		return err
	}
	if err := saveFirms(tx, runID, st.Round, idx, sim.Firms); err != nil {
		return err
	}
	if err := saveJournal(tx, runID, sim.Journal.RoundEntries(st.Round)); err != nil {
		return err
	}

	return tx.Commit()
}

func saveHouseholds(tx *sqlx.Tx, runID uuid.UUID, round, idx int, households []*agents.Household) error {
	stmt, err := tx.Preparex(`INSERT INTO household_rounds
		(run_id, round, household, money, bread, utility)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, h := range households {
		if idx >= len(h.Log.Money) {
			return fmt.Errorf("%s has no log entry for round %d", h.ID, round)
		}
		if _, err := stmt.Exec(runID.String(), round, h.ID.Index,
			h.Log.Money[idx], h.Log.Bread[idx], h.Log.Utility[idx]); err != nil {
			return fmt.Errorf("insert %s round %d: %w", h.ID, round, err)
		}
	}
	return nil
}

func saveFirms(tx *sqlx.Tx, runID uuid.UUID, round, idx int, firms []*agents.Firm) error {
	stmt, err := tx.Preparex(`INSERT INTO firm_rounds
		(run_id, round, firm, wage, price, production, profit)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range firms {
		if idx >= len(f.Log.Profit) {
			return fmt.Errorf("%s has no log entry for round %d", f.ID, round)
		}
		if _, err := stmt.Exec(runID.String(), round, f.ID.Index,
			f.Log.Wage[idx], f.Log.Price[idx], f.Log.Production[idx], f.Log.Profit[idx]); err != nil {
			return fmt.Errorf("insert %s round %d: %w", f.ID, round, err)
		}
	}
	return nil
}

func saveJournal(tx *sqlx.Tx, runID uuid.UUID, entries []ledger.Entry) error {
	stmt, err := tx.Preparex(`INSERT INTO journal
		(id, run_id, round, tx_id, kind, owner, good, amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		// decimal amounts go in as text so SQLite keeps every digit
		if _, err := stmt.Exec(e.ID.String(), runID.String(), e.Round, e.TxID.String(),
			string(e.Kind), e.Owner, e.Good, e.Amount.String()); err != nil {
			return fmt.Errorf("insert journal entry %s: %w", e.ID, err)
		}
	}
	return nil
}

// JournalNet sums the stored journal amounts of a run per good for the
// given entry kinds.
func (db *DB) JournalNet(runID uuid.UUID, kinds ...ledger.EntryKind) (map[string]decimal.Decimal, error) {
	var rows []struct {
		Kind   string `db:"kind"`
		Good   string `db:"good"`
		Amount string `db:"amount"`
	}
	if err := db.conn.Select(&rows,
		"SELECT kind, good, amount FROM journal WHERE run_id = ?", runID.String()); err != nil {
		return nil, err
	}
	net := make(map[string]decimal.Decimal)
	for _, r := range rows {
		if len(kinds) > 0 && !slices.Contains(kinds, ledger.EntryKind(r.Kind)) {
			continue
		}
		amt, err := decimal.NewFromString(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("journal amount %q: %w", r.Amount, err)
		}
		net[r.Good] = net[r.Good].Add(amt)
	}
	return net, nil
}

// RoundStats returns the stored stats of a run in round order.
func (db *DB) RoundStats(runID uuid.UUID) ([]engine.RoundStats, error) {
	var rows []statsRow
	if err := db.conn.Select(&rows,
		"SELECT * FROM round_stats WHERE run_id = ? ORDER BY round", runID.String()); err != nil {
		return nil, err
	}
	out := make([]engine.RoundStats, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.stats())
	}
	return out, nil
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

// LastRoundKey is the meta key holding the last exported round of runID.
func LastRoundKey(runID uuid.UUID) string {
	return "last_round:" + runID.String()
}

// Exporter writes every round of one run. It is an events.Sink so it can be
// fanned out alongside the other round sinks.
type Exporter struct {
	db    *DB
	runID uuid.UUID
	sim   *engine.Simulation
}

var _ events.Sink = (*Exporter)(nil)

// Exporter creates an exporter for runID reading agent logs from sim.
func (db *DB) Exporter(runID uuid.UUID, sim *engine.Simulation) *Exporter {
	return &Exporter{db: db, runID: runID, sim: sim}
}

// Export writes round st and records it as the run's last exported round.
func (x *Exporter) Export(st engine.RoundStats) error {
	if err := x.db.SaveRound(x.runID, x.sim, st); err != nil {
		return fmt.Errorf("export round %d: %w", st.Round, err)
	}
	if err := x.db.SaveMeta(LastRoundKey(x.runID), fmt.Sprintf("%d", st.Round)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	slog.Debug("round exported", "run", x.runID, "round", st.Round)
	return nil
}

// Publish exports the round carried by e.
func (x *Exporter) Publish(_ context.Context, e events.RoundCompleted) error {
	return x.Export(e.Stats)
}

// Close is a no-op; the DB is closed by its owner.
func (x *Exporter) Close() error { return nil }
