package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/betbot/hlarb/internal/domain"
)

// Journal 执行审计日志（只追加）。启动时不会回读，也不参与任何交易决策。
type Journal struct {
	db *sql.DB
}

// Open 打开（或创建）sqlite 文件
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "mkdir journal dir")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS executions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts TEXT NOT NULL,
  symbol TEXT NOT NULL,
  side TEXT NOT NULL,
  tif TEXT NOT NULL,
  notional_usd TEXT NOT NULL,
  reference_price TEXT NOT NULL,
  quantity TEXT NOT NULL,
  limit_price TEXT NOT NULL,
  cloid TEXT,
  dry_run INTEGER NOT NULL DEFAULT 0,
  outcome TEXT NOT NULL, -- accepted | rejected | transport_failure | dry_run
  oid INTEGER,
  filled_quantity TEXT NOT NULL DEFAULT '0',
  avg_fill_price TEXT,
  reason TEXT
);`,
		`CREATE INDEX IF NOT EXISTS idx_executions_symbol_id ON executions(symbol, id DESC);`,
	}
	for _, st := range stmts {
		if _, err := j.db.ExecContext(ctx, st); err != nil {
			return errors.Wrap(err, "migrate journal")
		}
	}
	return nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append 写入一条记录，返回自增 id
func (j *Journal) Append(ctx context.Context, rec domain.ExecutionRecord) (int64, error) {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	var oid sql.NullInt64
	if rec.ExchangeOID != 0 {
		oid = sql.NullInt64{Int64: rec.ExchangeOID, Valid: true}
	}
	var avgPx sql.NullString
	if rec.AvgFillPrice.Valid {
		avgPx = sql.NullString{String: rec.AvgFillPrice.Decimal.String(), Valid: true}
	}
	res, err := j.db.ExecContext(ctx, `
INSERT INTO executions (ts, symbol, side, tif, notional_usd, reference_price, quantity, limit_price,
  cloid, dry_run, outcome, oid, filled_quantity, avg_fill_price, reason)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
`,
		rec.At.UTC().Format(time.RFC3339Nano), rec.Symbol, string(rec.Side), string(rec.TimeInForce),
		rec.NotionalUSD.String(), rec.ReferencePrice.String(), rec.Quantity.String(), rec.LimitPrice.String(),
		nullString(rec.Cloid), rec.DryRun, rec.Outcome, oid, rec.FilledQuantity.String(), avgPx, nullString(rec.Reason),
	)
	if err != nil {
		return 0, errors.Wrapf(err, "insert execution %s", rec.Symbol)
	}
	return res.LastInsertId()
}

// ListOptions 查询条件
type ListOptions struct {
	Symbol string // 为空表示全部
	Limit  int    // <=0 时默认 100
}

// List 按 id 倒序返回最近的记录
func (j *Journal) List(ctx context.Context, opt ListOptions) ([]domain.ExecutionRecord, error) {
	limit := opt.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := `
SELECT id, ts, symbol, side, tif, notional_usd, reference_price, quantity, limit_price,
  cloid, dry_run, outcome, oid, filled_quantity, avg_fill_price, reason
FROM executions`
	args := []any{}
	if opt.Symbol != "" {
		q += ` WHERE symbol = ?`
		args = append(args, opt.Symbol)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query executions")
	}
	defer rows.Close()

	var out []domain.ExecutionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "iterate executions")
}

func scanRecord(rows *sql.Rows) (domain.ExecutionRecord, error) {
	var (
		rec                                 domain.ExecutionRecord
		ts, side, tif                       string
		notional, ref, qty, limitPx, filled string
		cloid, avgPx, reason                sql.NullString
		oid                                 sql.NullInt64
	)
	if err := rows.Scan(&rec.ID, &ts, &rec.Symbol, &side, &tif, &notional, &ref, &qty, &limitPx,
		&cloid, &rec.DryRun, &rec.Outcome, &oid, &filled, &avgPx, &reason); err != nil {
		return rec, errors.Wrap(err, "scan execution")
	}

	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return rec, errors.Wrapf(err, "parse ts %q", ts)
	}
	rec.At = at
	rec.Side = domain.Side(side)
	rec.TimeInForce = domain.TimeInForce(tif)
	rec.Cloid = cloid.String
	rec.Reason = reason.String
	rec.ExchangeOID = oid.Int64

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&rec.NotionalUSD, notional},
		{&rec.ReferencePrice, ref},
		{&rec.Quantity, qty},
		{&rec.LimitPrice, limitPx},
		{&rec.FilledQuantity, filled},
	} {
		v, err := decimal.NewFromString(f.src)
		if err != nil {
			return rec, errors.Wrapf(err, "parse decimal %q", f.src)
		}
		*f.dst = v
	}
	if avgPx.Valid {
		v, err := decimal.NewFromString(avgPx.String)
		if err != nil {
			return rec, errors.Wrapf(err, "parse avg_fill_price %q", avgPx.String)
		}
		rec.AvgFillPrice = decimal.NewNullDecimal(v)
	}
	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
