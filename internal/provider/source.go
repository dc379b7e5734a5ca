package provider

import (
	"context"

	"github.com/nao1215/tokentrail/internal/model"
)

// DefaultPageSize is the number of rows requested per transfer page.
const DefaultPageSize = 200

// Query selects one page of transfers of Token for Address in Direction.
type Query struct {
	Token     string
	Address   string
	Direction model.Direction

	// Offset is the position of the first row to return.
	Offset int64

	// Since restricts per-transaction sources to transfers at or after
	// this block timestamp (milliseconds). 0 means no lower bound.
	Since int64

	// Limit is the page size. 0 means DefaultPageSize.
	Limit int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultPageSize
	}
	return q.Limit
}

// Page is one provider response.
type Page struct {
	Transfers []model.Transfer

	// Total is the number of rows matching the query, when the provider
	// reports it. 0 means unknown.
	Total int64
}

// TransferSource returns transfer pages. Layout tells how its rows
// should be stored and paged.
type TransferSource interface {
	Name() string
	Layout() model.Layout
	Transfers(ctx context.Context, q Query) (*Page, error)
}

// MetadataSource returns the full metadata of one address, including its
// health score.
type MetadataSource interface {
	AddressInfo(ctx context.Context, token, address string) (*model.Address, error)
}

// TagSource returns the entity tag and contract flag of one address.
type TagSource interface {
	AddressTag(ctx context.Context, token, address string) (*model.AddressHint, error)
}
