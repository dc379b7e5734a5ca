package traverse

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ExpandFunc processes node and returns the children to walk next.
type ExpandFunc[T any] func(ctx context.Context, node T) ([]T, error)

// Walker walks a graph depth-first from a root. The children of each node
// are walked concurrently, at most Limit at a time per node.
type Walker[T any] struct {
	limit  int
	expand ExpandFunc[T]
}

// NewWalker returns a walker. A non-positive limit walks children one at
// a time.
func NewWalker[T any](limit int, expand ExpandFunc[T]) *Walker[T] {
	return &Walker[T]{limit: max(limit, 1), expand: expand}
}

// Walk expands root and, recursively, every child it returns. The first
// error cancels the remaining work and is returned.
func (w *Walker[T]) Walk(ctx context.Context, root T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	children, err := w.expand(ctx, root)
	if err != nil {
		return err
	}
	if len(children) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.limit)
	for _, child := range children {
		g.Go(func() error {
			return w.Walk(gctx, child)
		})
	}
	return g.Wait()
}
