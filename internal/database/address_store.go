package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nao1215/tokentrail/internal/model"
)

// AddressStore persists address metadata, per-direction statistics and the
// crawl cursors of one scope. Lookups go through a bounded LRU cache that
// is safe to share between crawl workers.
type AddressStore struct {
	db    *DB
	t     tables
	cache *lru.Cache[string, model.Address]
}

// NewAddressStore creates the store for scope. cacheSize bounds the number
// of cached records.
func NewAddressStore(db *DB, scope Scope, cacheSize int) (*AddressStore, error) {
	t, err := scope.tables()
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[string, model.Address](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create address cache: %w", err)
	}
	return &AddressStore{db: db, t: t, cache: cache}, nil
}

// Get returns the metadata of addr, or nil, nil when the address was never
// recorded. Callers must not mutate the returned value.
func (s *AddressStore) Get(ctx context.Context, addr string) (*model.Address, error) {
	if a, ok := s.cache.Get(addr); ok {
		return &a, nil
	}

	query := s.db.rebind(`
	SELECT addr, is_contract, entity_tag, health_score, tag_info, health_info, statistics
	FROM ` + s.t.addresses + `
	WHERE addr = ?
	`)

	var (
		a          model.Address
		score      sql.NullFloat64
		tagInfo    sql.NullString
		healthInfo sql.NullString
		statistics sql.NullString
	)
	err := s.db.db.QueryRowContext(ctx, query, addr).Scan(
		&a.Address,
		&a.IsContract,
		&a.EntityTag,
		&score,
		&tagInfo,
		&healthInfo,
		&statistics,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get address %s: %w", addr, err)
	}

	if score.Valid {
		v := score.Float64
		a.HealthScore = &v
	}
	a.TagInfo = rawJSON(tagInfo)
	a.HealthInfo = rawJSON(healthInfo)
	a.Statistics = rawJSON(statistics)

	s.cache.Add(addr, a)
	return &a, nil
}

// Save upserts the metadata of a. Empty payload fields and a nil health
// score keep the stored values.
func (s *AddressStore) Save(ctx context.Context, a *model.Address) error {
	if a == nil || a.Address == "" {
		return errors.New("address is empty")
	}

	var score any
	if a.HealthScore != nil {
		score = *a.HealthScore
	}

	t := s.t.addresses
	query := s.db.rebind(`
	INSERT INTO ` + t + ` (addr, is_contract, entity_tag, health_score, tag_info, health_info, statistics)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (addr) DO UPDATE SET
		is_contract = excluded.is_contract,
		entity_tag = excluded.entity_tag,
		health_score = COALESCE(excluded.health_score, ` + t + `.health_score),
		tag_info = COALESCE(excluded.tag_info, ` + t + `.tag_info),
		health_info = COALESCE(excluded.health_info, ` + t + `.health_info),
		statistics = COALESCE(excluded.statistics, ` + t + `.statistics),
		updated_at = CURRENT_TIMESTAMP
	`)

	_, err := s.db.db.ExecContext(ctx, query,
		a.Address,
		a.IsContract,
		a.EntityTag,
		score,
		nullableJSON(a.TagInfo),
		nullableJSON(a.HealthInfo),
		nullableJSON(a.Statistics),
	)
	if err != nil {
		return fmt.Errorf("failed to save address %s: %w", a.Address, err)
	}

	// The row may now differ from what the caller passed in.
	s.cache.Remove(a.Address)
	return nil
}

// TrackOffset returns the crawl cursor of (addr, dir). found is false when
// the pair was never crawled.
func (s *AddressStore) TrackOffset(ctx context.Context, addr string, dir model.Direction) (offset int64, found bool, err error) {
	query := s.db.rebind(`SELECT track_offset FROM ` + s.t.offsets + ` WHERE addr = ? AND direction = ?`)
	err = s.db.db.QueryRowContext(ctx, query, addr, dir.String()).Scan(&offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get track offset of %s/%s: %w", addr, dir, err)
	}
	return offset, true, nil
}

// UpdateStats stores the counterparty statistics of addr for dir.
func (s *AddressStore) UpdateStats(ctx context.Context, addr string, dir model.Direction, metrics model.FlowMetrics) error {
	data, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}

	column := "output"
	if dir == model.TransferIn {
		column = "input"
	}
	query := s.db.rebind(`
	INSERT INTO ` + s.t.stats + ` (addr, ` + column + `)
	VALUES (?, ?)
	ON CONFLICT (addr) DO UPDATE SET
		` + column + ` = excluded.` + column + `,
		updated_at = CURRENT_TIMESTAMP
	`)
	if _, err := s.db.db.ExecContext(ctx, query, addr, string(data)); err != nil {
		return fmt.Errorf("failed to save stats of %s: %w", addr, err)
	}
	return nil
}

// Stats returns the stored statistics of addr for dir, or nil when absent.
func (s *AddressStore) Stats(ctx context.Context, addr string, dir model.Direction) (*model.FlowMetrics, error) {
	column := "output"
	if dir == model.TransferIn {
		column = "input"
	}
	query := s.db.rebind(`SELECT ` + column + ` FROM ` + s.t.stats + ` WHERE addr = ?`)

	var data sql.NullString
	err := s.db.db.QueryRowContext(ctx, query, addr).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !data.Valid) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stats of %s: %w", addr, err)
	}

	var m model.FlowMetrics
	if err := json.Unmarshal([]byte(data.String), &m); err != nil {
		return nil, fmt.Errorf("failed to decode stats of %s: %w", addr, err)
	}
	return &m, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func rawJSON(s sql.NullString) json.RawMessage {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.RawMessage(s.String)
}
