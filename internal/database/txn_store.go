package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nao1215/tokentrail/internal/model"
)

// TxnStore keeps one row per transfer, unique on (txn_hash, from, to).
// Aggregates are computed at query time. It backs data sources that return
// individual transfers and page from a block-timestamp watermark.
type TxnStore struct {
	db      *DB
	t       tables
	offsets string
}

// NewTxnStore creates the per-transaction transfer store for scope.
func NewTxnStore(db *DB, scope Scope) (*TxnStore, error) {
	t, err := scope.tables()
	if err != nil {
		return nil, err
	}
	return &TxnStore{db: db, t: t, offsets: t.offsets}, nil
}

// Layout reports LayoutPerTransaction.
func (s *TxnStore) Layout() model.Layout {
	return model.LayoutPerTransaction
}

// SaveTransfers inserts a page of transfers, ignoring ones already stored,
// and moves the watermark of (addr, dir) to offset in the same transaction.
func (s *TxnStore) SaveTransfers(ctx context.Context, addr string, dir model.Direction, transfers []model.Transfer, offset int64) error {
	query := s.db.rebind(`
	INSERT INTO ` + s.t.transfers + ` (txn_hash, from_addr, to_addr, amount, block_num, block_ts)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (txn_hash, from_addr, to_addr) DO NOTHING
	`)

	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare transfer insert: %w", err)
		}
		defer stmt.Close()

		for _, tr := range transfers {
			_, err := stmt.ExecContext(ctx,
				tr.TxnHash,
				tr.From,
				tr.To,
				tr.TotalValue,
				tr.Block,
				tr.LastTxnTS,
			)
			if err != nil {
				return fmt.Errorf("failed to insert transfer %s: %w", tr.TxnHash, err)
			}
		}
		return s.db.upsertTrackOffset(ctx, tx, s.offsets, addr, dir.String(), offset)
	})
}

// Edges returns the transfers of addr in dir grouped per counterparty,
// ordered by first transfer time.
func (s *TxnStore) Edges(ctx context.Context, addr string, dir model.Direction, offset, limit int) ([]model.TransferEdge, error) {
	column := "from_addr"
	if dir == model.TransferIn {
		column = "to_addr"
	}
	query := s.db.rebind(`
	SELECT from_addr, to_addr, SUM(amount), COUNT(1), MIN(block_ts), MAX(block_ts)
	FROM ` + s.t.transfers + `
	WHERE ` + column + ` = ?
	GROUP BY from_addr, to_addr
	ORDER BY MIN(block_ts), from_addr, to_addr
	LIMIT ? OFFSET ?
	`)

	rows, err := s.db.db.QueryContext(ctx, query, addr, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers of %s: %w", addr, err)
	}
	defer rows.Close()

	var edges []model.TransferEdge
	for rows.Next() {
		var e model.TransferEdge
		if err := rows.Scan(&e.From, &e.To, &e.TotalValue, &e.TxnCount, &e.FirstTxnTS, &e.LastTxnTS); err != nil {
			return nil, fmt.Errorf("failed to scan transfer group: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// CounterAddresses returns the distinct counterparties of addr in dir.
// skipZero drops counterparties whose summed amount is zero.
func (s *TxnStore) CounterAddresses(ctx context.Context, addr string, dir model.Direction, skipZero bool) ([]string, error) {
	self, other := "from_addr", "to_addr"
	if dir == model.TransferIn {
		self, other = "to_addr", "from_addr"
	}
	query := `SELECT ` + other + ` FROM ` + s.t.transfers + ` WHERE ` + self + ` = ? GROUP BY ` + other
	if skipZero {
		query += ` HAVING SUM(amount) <> 0`
	}
	query += ` ORDER BY ` + other
	return queryStrings(ctx, s.db, query, addr)
}

// FlowInfo returns the transfer count and total amount from one address to another.
func (s *TxnStore) FlowInfo(ctx context.Context, from, to string) (model.FlowInfo, error) {
	query := `
	SELECT COUNT(1), COALESCE(SUM(amount), 0)
	FROM ` + s.t.transfers + `
	WHERE from_addr = ? AND to_addr = ?
	`
	return queryFlowInfo(ctx, s.db, query, from, to)
}

// TotalFlow returns the count and amount of every transfer of addr in dir.
func (s *TxnStore) TotalFlow(ctx context.Context, addr string, dir model.Direction) (model.FlowInfo, error) {
	column := "from_addr"
	if dir == model.TransferIn {
		column = "to_addr"
	}
	query := `
	SELECT COUNT(1), COALESCE(SUM(amount), 0)
	FROM ` + s.t.transfers + `
	WHERE ` + column + ` = ?
	`
	return queryFlowInfo(ctx, s.db, query, addr)
}
