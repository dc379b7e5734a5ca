package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nao1215/tokentrail/internal/model"
)

// EdgeStore keeps one aggregated row per (from, to) pair. It backs data
// sources that return cumulative per-counterparty totals and page with a
// numeric offset.
type EdgeStore struct {
	db      *DB
	t       tables
	offsets string
}

// NewEdgeStore creates the aggregated transfer store for scope.
func NewEdgeStore(db *DB, scope Scope) (*EdgeStore, error) {
	t, err := scope.tables()
	if err != nil {
		return nil, err
	}
	return &EdgeStore{db: db, t: t, offsets: t.offsets}, nil
}

// Layout reports LayoutAggregated.
func (s *EdgeStore) Layout() model.Layout {
	return model.LayoutAggregated
}

// SaveTransfers upserts a page of edges and moves the cursor of
// (addr, dir) to offset in the same transaction.
//
// Providers report cumulative totals, so a conflicting row keeps the larger
// value and count and widens its time range. Re-applying the same page is
// a no-op.
func (s *EdgeStore) SaveTransfers(ctx context.Context, addr string, dir model.Direction, transfers []model.Transfer, offset int64) error {
	t := s.t.edges
	query := s.db.rebind(`
	INSERT INTO ` + t + ` (from_addr, to_addr, total_value, txn_count, first_txn_ts, last_txn_ts)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (from_addr, to_addr) DO UPDATE SET
		total_value = CASE WHEN excluded.total_value > ` + t + `.total_value THEN excluded.total_value ELSE ` + t + `.total_value END,
		txn_count = CASE WHEN excluded.txn_count > ` + t + `.txn_count THEN excluded.txn_count ELSE ` + t + `.txn_count END,
		first_txn_ts = CASE WHEN excluded.first_txn_ts < ` + t + `.first_txn_ts THEN excluded.first_txn_ts ELSE ` + t + `.first_txn_ts END,
		last_txn_ts = CASE WHEN excluded.last_txn_ts > ` + t + `.last_txn_ts THEN excluded.last_txn_ts ELSE ` + t + `.last_txn_ts END
	`)

	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare edge upsert: %w", err)
		}
		defer stmt.Close()

		for _, tr := range transfers {
			_, err := stmt.ExecContext(ctx,
				tr.From,
				tr.To,
				tr.TotalValue,
				tr.TxnCount,
				tr.FirstTxnTS,
				tr.LastTxnTS,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert edge %s->%s: %w", tr.From, tr.To, err)
			}
		}
		return s.db.upsertTrackOffset(ctx, tx, s.offsets, addr, dir.String(), offset)
	})
}

// Edges returns persisted edges of addr in dir, oldest first.
func (s *EdgeStore) Edges(ctx context.Context, addr string, dir model.Direction, offset, limit int) ([]model.TransferEdge, error) {
	column := "from_addr"
	if dir == model.TransferIn {
		column = "to_addr"
	}
	query := s.db.rebind(`
	SELECT from_addr, to_addr, total_value, txn_count, first_txn_ts, last_txn_ts
	FROM ` + s.t.edges + `
	WHERE ` + column + ` = ?
	ORDER BY first_txn_ts, from_addr, to_addr
	LIMIT ? OFFSET ?
	`)

	rows, err := s.db.db.QueryContext(ctx, query, addr, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges of %s: %w", addr, err)
	}
	defer rows.Close()

	var edges []model.TransferEdge
	for rows.Next() {
		var e model.TransferEdge
		if err := rows.Scan(&e.From, &e.To, &e.TotalValue, &e.TxnCount, &e.FirstTxnTS, &e.LastTxnTS); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// CounterAddresses returns the distinct counterparties of addr in dir.
// skipZero drops edges with a zero total.
func (s *EdgeStore) CounterAddresses(ctx context.Context, addr string, dir model.Direction, skipZero bool) ([]string, error) {
	self, other := "from_addr", "to_addr"
	if dir == model.TransferIn {
		self, other = "to_addr", "from_addr"
	}
	query := `SELECT DISTINCT ` + other + ` FROM ` + s.t.edges + ` WHERE ` + self + ` = ?`
	if skipZero {
		query += ` AND total_value <> 0`
	}
	query += ` ORDER BY ` + other
	return queryStrings(ctx, s.db, query, addr)
}

// FlowInfo returns the transfer count and total amount from one address to another.
func (s *EdgeStore) FlowInfo(ctx context.Context, from, to string) (model.FlowInfo, error) {
	query := `
	SELECT COALESCE(SUM(txn_count), 0), COALESCE(SUM(total_value), 0)
	FROM ` + s.t.edges + `
	WHERE from_addr = ? AND to_addr = ?
	`
	return queryFlowInfo(ctx, s.db, query, from, to)
}

// TotalFlow returns the count and amount of every transfer of addr in dir.
func (s *EdgeStore) TotalFlow(ctx context.Context, addr string, dir model.Direction) (model.FlowInfo, error) {
	column := "from_addr"
	if dir == model.TransferIn {
		column = "to_addr"
	}
	query := `
	SELECT COALESCE(SUM(txn_count), 0), COALESCE(SUM(total_value), 0)
	FROM ` + s.t.edges + `
	WHERE ` + column + ` = ?
	`
	return queryFlowInfo(ctx, s.db, query, addr)
}

func queryStrings(ctx context.Context, db *DB, query string, args ...any) ([]string, error) {
	rows, err := db.db.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query counter addresses: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan counter address: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func queryFlowInfo(ctx context.Context, db *DB, query string, args ...any) (model.FlowInfo, error) {
	var info model.FlowInfo
	if err := db.db.QueryRowContext(ctx, db.rebind(query), args...).Scan(&info.Count, &info.Amount); err != nil {
		return model.FlowInfo{}, fmt.Errorf("failed to query flow info: %w", err)
	}
	return info, nil
}
