package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/radieske/parimutuel-pools/internal/parimutuel"
	"github.com/shopspring/decimal"
)

// Dialect isola as diferenças entre Postgres e SQLite.
type Dialect struct {
	Name string

	schema      string
	dollarArgs  bool   // $1,$2 em vez de ?
	shareLock   string // trava a linha do mercado contra CloseMarket durante AppendBet
	updateLock  string
	snapshotOpt *sql.TxOptions
}

var Postgres = Dialect{
	Name:        "postgres",
	schema:      postgresSchema,
	dollarArgs:  true,
	shareLock:   " FOR SHARE",
	updateLock:  " FOR UPDATE",
	snapshotOpt: &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
}

// SQLite roda com uma única conexão: qualquer transação já serializa os escritores.
var SQLite = Dialect{
	Name:   "sqlite",
	schema: sqliteSchema,
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS markets (
    kind          TEXT PRIMARY KEY,
    status        TEXT    NOT NULL,
    rake          NUMERIC NOT NULL,
    rake_version  TEXT    NOT NULL,
    opened_at_ms  BIGINT  NOT NULL
);

CREATE TABLE IF NOT EXISTS market_outcomes (
    kind      TEXT    NOT NULL REFERENCES markets(kind),
    outcome   TEXT    NOT NULL,
    position  INTEGER NOT NULL,
    PRIMARY KEY (kind, outcome)
);

CREATE TABLE IF NOT EXISTS bets (
    seq           BIGSERIAL PRIMARY KEY,
    id            TEXT    NOT NULL UNIQUE,
    kind          TEXT    NOT NULL REFERENCES markets(kind),
    outcome       TEXT    NOT NULL,
    bettor_id     TEXT    NOT NULL,
    amount        NUMERIC NOT NULL CHECK (amount > 0),
    placed_at_ms  BIGINT  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bets_kind    ON bets(kind, seq);
CREATE INDEX IF NOT EXISTS idx_bets_outcome ON bets(kind, outcome);

CREATE TABLE IF NOT EXISTS settlements (
    kind           TEXT PRIMARY KEY REFERENCES markets(kind),
    status         TEXT    NOT NULL,
    rake           NUMERIC NOT NULL,
    rake_version   TEXT    NOT NULL,
    settled_at_ms  BIGINT  NOT NULL
);

CREATE TABLE IF NOT EXISTS settlement_pools (
    kind           TEXT    NOT NULL REFERENCES settlements(kind),
    position       INTEGER NOT NULL,
    proposition    TEXT    NOT NULL,
    winners        TEXT    NOT NULL,
    gross          NUMERIC NOT NULL,
    distributable  NUMERIC NOT NULL,
    winning_stake  NUMERIC NOT NULL,
    winning_bettors INTEGER NOT NULL DEFAULT 0,
    status         TEXT    NOT NULL,
    PRIMARY KEY (kind, position)
);

CREATE TABLE IF NOT EXISTS payouts (
    kind       TEXT    NOT NULL REFERENCES settlements(kind),
    bettor_id  TEXT    NOT NULL,
    amount     NUMERIC NOT NULL,
    PRIMARY KEY (kind, bettor_id)
);
`

// valores monetários ficam em TEXT no SQLite para não passar por REAL
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS markets (
    kind          TEXT PRIMARY KEY,
    status        TEXT    NOT NULL,
    rake          TEXT    NOT NULL,
    rake_version  TEXT    NOT NULL,
    opened_at_ms  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS market_outcomes (
    kind      TEXT    NOT NULL REFERENCES markets(kind),
    outcome   TEXT    NOT NULL,
    position  INTEGER NOT NULL,
    PRIMARY KEY (kind, outcome)
);

CREATE TABLE IF NOT EXISTS bets (
    seq           INTEGER PRIMARY KEY AUTOINCREMENT,
    id            TEXT    NOT NULL UNIQUE,
    kind          TEXT    NOT NULL REFERENCES markets(kind),
    outcome       TEXT    NOT NULL,
    bettor_id     TEXT    NOT NULL,
    amount        TEXT    NOT NULL,
    placed_at_ms  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bets_kind    ON bets(kind, seq);
CREATE INDEX IF NOT EXISTS idx_bets_outcome ON bets(kind, outcome);

CREATE TABLE IF NOT EXISTS settlements (
    kind           TEXT PRIMARY KEY REFERENCES markets(kind),
    status         TEXT    NOT NULL,
    rake           TEXT    NOT NULL,
    rake_version   TEXT    NOT NULL,
    settled_at_ms  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settlement_pools (
    kind           TEXT    NOT NULL REFERENCES settlements(kind),
    position       INTEGER NOT NULL,
    proposition    TEXT    NOT NULL,
    winners        TEXT    NOT NULL,
    gross          TEXT    NOT NULL,
    distributable  TEXT    NOT NULL,
    winning_stake  TEXT    NOT NULL,
    winning_bettors INTEGER NOT NULL DEFAULT 0,
    status         TEXT    NOT NULL,
    PRIMARY KEY (kind, position)
);

CREATE TABLE IF NOT EXISTS payouts (
    kind       TEXT NOT NULL REFERENCES settlements(kind),
    bettor_id  TEXT NOT NULL,
    amount     TEXT NOT NULL,
    PRIMARY KEY (kind, bettor_id)
);
`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implementa Store sobre database/sql (Postgres ou SQLite).
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewSQL aplica o schema e devolve o store.
func NewSQL(ctx context.Context, db *sql.DB, d Dialect) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		return nil, fmt.Errorf("ledger: apply %s schema: %w", d.Name, err)
	}
	return &SQLStore{db: db, dialect: d, now: time.Now}, nil
}

// q reescreve os placeholders ? para o dialeto.
func (s *SQLStore) q(query string) string {
	if !s.dialect.dollarArgs {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) ListBets(ctx context.Context, kind parimutuel.MarketKind) ([]parimutuel.Bet, error) {
	return s.listBets(ctx, `SELECT id, outcome, bettor_id, amount, placed_at_ms FROM bets WHERE kind = ? ORDER BY seq`, kind)
}

func (s *SQLStore) ListBetsByOutcome(ctx context.Context, kind parimutuel.MarketKind, outcome parimutuel.OutcomeID) ([]parimutuel.Bet, error) {
	return s.listBets(ctx, `SELECT id, outcome, bettor_id, amount, placed_at_ms FROM bets WHERE kind = ? AND outcome = ? ORDER BY seq`, kind, outcome.String())
}

// listBets lê dentro de uma transação de leitura: snapshot único por chamada.
func (s *SQLStore) listBets(ctx context.Context, query string, kind parimutuel.MarketKind, extra ...any) ([]parimutuel.Bet, error) {
	tx, err := s.db.BeginTx(ctx, s.dialect.snapshotOpt)
	if err != nil {
		return nil, fmt.Errorf("ledger: begin snapshot: %w", err)
	}
	defer tx.Rollback()

	args := append([]any{string(kind)}, extra...)
	rows, err := tx.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list bets: %w", err)
	}
	defer rows.Close()

	var out []parimutuel.Bet
	for rows.Next() {
		var (
			b       parimutuel.Bet
			outcome string
			placed  int64
		)
		if err := rows.Scan(&b.ID, &outcome, &b.BettorID, &b.Amount, &placed); err != nil {
			return nil, fmt.Errorf("ledger: scan bet: %w", err)
		}
		if b.Outcome, err = parimutuel.ParseOutcomeID(outcome); err != nil {
			return nil, fmt.Errorf("ledger: bet %s: %w", b.ID, err)
		}
		b.Market = kind
		b.PlacedAt = time.UnixMilli(placed).UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, tx.Commit()
}

func (s *SQLStore) Market(ctx context.Context, kind parimutuel.MarketKind) (parimutuel.Market, error) {
	return s.market(ctx, s.db, kind)
}

func (s *SQLStore) market(ctx context.Context, qr querier, kind parimutuel.MarketKind) (parimutuel.Market, error) {
	m := parimutuel.Market{Kind: kind}
	var (
		status, version string
		fraction        decimal.Decimal
		opened          int64
	)
	err := qr.QueryRowContext(ctx, s.q(`SELECT status, rake, rake_version, opened_at_ms FROM markets WHERE kind = ?`), string(kind)).
		Scan(&status, &fraction, &version, &opened)
	if errors.Is(err, sql.ErrNoRows) {
		return m, fmt.Errorf("%w: %s", ErrMarketNotFound, kind)
	}
	if err != nil {
		return m, fmt.Errorf("ledger: read market %s: %w", kind, err)
	}
	if m.Rake, err = parimutuel.NewRake(fraction, version); err != nil {
		return m, err
	}
	m.Status = parimutuel.MarketStatus(status)
	m.OpenedAt = time.UnixMilli(opened).UTC()

	rows, err := qr.QueryContext(ctx, s.q(`SELECT outcome FROM market_outcomes WHERE kind = ? ORDER BY position`), string(kind))
	if err != nil {
		return m, fmt.Errorf("ledger: read outcomes %s: %w", kind, err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return m, err
		}
		o, err := parimutuel.ParseOutcomeID(raw)
		if err != nil {
			return m, err
		}
		m.Outcomes = append(m.Outcomes, o)
	}
	return m, rows.Err()
}

func (s *SQLStore) Markets(ctx context.Context) ([]parimutuel.Market, error) {
	var out []parimutuel.Market
	for _, k := range parimutuel.Kinds {
		m, err := s.Market(ctx, k)
		if errors.Is(err, ErrMarketNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *SQLStore) Version(ctx context.Context, kind parimutuel.MarketKind) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM bets WHERE kind = ?`), string(kind)).Scan(&n)
	return n, err
}

func (s *SQLStore) AppendBet(ctx context.Context, nb NewBet) (string, error) {
	if err := validateNewBet(nb); err != nil {
		return "", err
	}
	kind := nb.Outcome.Kind

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("ledger: begin append: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, s.q(`SELECT status FROM markets WHERE kind = ?`+s.dialect.shareLock), string(kind)).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrMarketNotFound, kind)
	}
	if err != nil {
		return "", fmt.Errorf("ledger: lock market %s: %w", kind, err)
	}
	if parimutuel.MarketStatus(status) != parimutuel.StatusOpen {
		return "", fmt.Errorf("%w: %s", ErrMarketClosed, kind)
	}

	var offered int
	if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM market_outcomes WHERE kind = ? AND outcome = ?`),
		string(kind), nb.Outcome.String()).Scan(&offered); err != nil {
		return "", fmt.Errorf("ledger: check outcome: %w", err)
	}
	if offered == 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownOutcome, nb.Outcome)
	}

	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO bets (id, kind, outcome, bettor_id, amount, placed_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)`),
		id, string(kind), nb.Outcome.String(), nb.BettorID, nb.Amount.String(), s.now().UnixMilli(),
	); err != nil {
		return "", fmt.Errorf("ledger: insert bet: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("ledger: commit bet: %w", err)
	}
	return id, nil
}

func (s *SQLStore) IsOpen(ctx context.Context, kind parimutuel.MarketKind) (bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT status FROM markets WHERE kind = ?`), string(kind)).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return parimutuel.MarketStatus(status) == parimutuel.StatusOpen, nil
}

func (s *SQLStore) OpenMarket(ctx context.Context, kind parimutuel.MarketKind, outcomes []parimutuel.OutcomeID, rake parimutuel.Rake) (parimutuel.Market, error) {
	if err := validateOpen(kind, outcomes, rake); err != nil {
		return parimutuel.Market{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return parimutuel.Market{}, fmt.Errorf("ledger: begin open: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, s.q(`SELECT status FROM markets WHERE kind = ?`+s.dialect.updateLock), string(kind)).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO markets (kind, status, rake, rake_version, opened_at_ms)
			VALUES (?, ?, ?, ?, ?)`),
			string(kind), string(parimutuel.StatusOpen), rake.Fraction().String(), rake.Version(), s.now().UnixMilli(),
		); err != nil {
			return parimutuel.Market{}, fmt.Errorf("ledger: insert market: %w", err)
		}
	case err != nil:
		return parimutuel.Market{}, fmt.Errorf("ledger: lock market %s: %w", kind, err)
	case parimutuel.MarketStatus(status) != parimutuel.StatusOpen:
		return parimutuel.Market{}, fmt.Errorf("%w: %s", ErrMarketClosed, kind)
	}

	var next int
	if err := tx.QueryRowContext(ctx, s.q(`SELECT COALESCE(MAX(position) + 1, 0) FROM market_outcomes WHERE kind = ?`), string(kind)).Scan(&next); err != nil {
		return parimutuel.Market{}, err
	}
	for _, o := range outcomes {
		res, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO market_outcomes (kind, outcome, position) VALUES (?, ?, ?)
			ON CONFLICT (kind, outcome) DO NOTHING`),
			string(kind), o.String(), next)
		if err != nil {
			return parimutuel.Market{}, fmt.Errorf("ledger: insert outcome %s: %w", o, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			next++
		}
	}

	m, err := s.market(ctx, tx, kind)
	if err != nil {
		return parimutuel.Market{}, err
	}
	return m, tx.Commit()
}

func (s *SQLStore) CloseMarket(ctx context.Context, kind parimutuel.MarketKind) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE markets SET status = ? WHERE kind = ? AND status = ?`),
		string(parimutuel.StatusClosed), string(kind), string(parimutuel.StatusOpen))
	if err != nil {
		return fmt.Errorf("ledger: close %s: %w", kind, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	m, err := s.Market(ctx, kind)
	if err != nil {
		return err
	}
	if m.Status == parimutuel.StatusSettled {
		return fmt.Errorf("%w: %s", ErrAlreadySettled, kind)
	}
	return nil
}

func (s *SQLStore) RecordSettlement(ctx context.Context, st parimutuel.Settlement) error {
	if err := validateSettlement(st); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin settlement: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.q(`UPDATE markets SET status = ? WHERE kind = ? AND status = ?`),
		string(parimutuel.StatusSettled), string(st.Market), string(parimutuel.StatusClosed))
	if err != nil {
		return fmt.Errorf("ledger: mark settled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		m, err := s.market(ctx, tx, st.Market)
		if err != nil {
			return err
		}
		if m.Status == parimutuel.StatusOpen {
			return fmt.Errorf("%w: %s", parimutuel.ErrMarketOpen, st.Market)
		}
		return fmt.Errorf("%w: %s", ErrAlreadySettled, st.Market)
	}

	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO settlements (kind, status, rake, rake_version, settled_at_ms)
		VALUES (?, ?, ?, ?, ?)`),
		string(st.Market), string(st.Status), st.Rake.Fraction().String(), st.Rake.Version(), st.SettledAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("ledger: insert settlement: %w", err)
	}
	for i, p := range st.Pools {
		winners, err := json.Marshal(p.Winners)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO settlement_pools (kind, position, proposition, winners, gross, distributable, winning_stake, winning_bettors, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			string(st.Market), i, p.Proposition, string(winners),
			p.Gross.String(), p.Distributable.String(), p.WinningStake.String(), p.WinningBettors, string(p.Status),
		); err != nil {
			return fmt.Errorf("ledger: insert settlement pool: %w", err)
		}
	}
	for bettor, amount := range st.Payouts {
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO payouts (kind, bettor_id, amount) VALUES (?, ?, ?)`),
			string(st.Market), bettor, amount.String()); err != nil {
			return fmt.Errorf("ledger: insert payout: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) Settlement(ctx context.Context, kind parimutuel.MarketKind) (parimutuel.Settlement, error) {
	tx, err := s.db.BeginTx(ctx, s.dialect.snapshotOpt)
	if err != nil {
		return parimutuel.Settlement{}, err
	}
	defer tx.Rollback()

	st := parimutuel.Settlement{Market: kind, Payouts: map[string]decimal.Decimal{}}
	var (
		status, version string
		fraction        decimal.Decimal
		settled         int64
	)
	err = tx.QueryRowContext(ctx, s.q(`SELECT status, rake, rake_version, settled_at_ms FROM settlements WHERE kind = ?`), string(kind)).
		Scan(&status, &fraction, &version, &settled)
	if errors.Is(err, sql.ErrNoRows) {
		if _, merr := s.market(ctx, tx, kind); merr != nil {
			return st, merr
		}
		return st, fmt.Errorf("%w: %s", ErrNotSettled, kind)
	}
	if err != nil {
		return st, fmt.Errorf("ledger: read settlement %s: %w", kind, err)
	}
	if st.Rake, err = parimutuel.NewRake(fraction, version); err != nil {
		return st, err
	}
	st.Status = parimutuel.SettlementStatus(status)
	st.SettledAt = time.UnixMilli(settled).UTC()

	pools, err := tx.QueryContext(ctx, s.q(`
		SELECT proposition, winners, gross, distributable, winning_stake, winning_bettors, status
		FROM settlement_pools WHERE kind = ? ORDER BY position`), string(kind))
	if err != nil {
		return st, err
	}
	defer pools.Close()
	for pools.Next() {
		var (
			p              parimutuel.PoolResult
			winners, pstat string
		)
		if err := pools.Scan(&p.Proposition, &winners, &p.Gross, &p.Distributable, &p.WinningStake, &p.WinningBettors, &pstat); err != nil {
			return st, err
		}
		if err := json.Unmarshal([]byte(winners), &p.Winners); err != nil {
			return st, fmt.Errorf("ledger: decode winners: %w", err)
		}
		p.Status = parimutuel.SettlementStatus(pstat)
		st.Pools = append(st.Pools, p)
	}
	if err := pools.Err(); err != nil {
		return st, err
	}
	st.Winners = winnersOf(st.Pools)

	payouts, err := tx.QueryContext(ctx, s.q(`SELECT bettor_id, amount FROM payouts WHERE kind = ?`), string(kind))
	if err != nil {
		return st, err
	}
	defer payouts.Close()
	for payouts.Next() {
		var (
			bettor string
			amount decimal.Decimal
		)
		if err := payouts.Scan(&bettor, &amount); err != nil {
			return st, err
		}
		st.Payouts[bettor] = amount
	}
	if err := payouts.Err(); err != nil {
		return st, err
	}
	return st, tx.Commit()
}

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQLStore) Close() error                   { return s.db.Close() }
