package tmdb

import (
	"context"
	"iter"
)

// PageFunc fetches one page of a listing, starting at 1.
type PageFunc[T any] func(ctx context.Context, page int) (*Page[T], error)

// Paginate lazily yields up to limit items from successive pages. It stops at
// the limit, at the first empty page, or after the last page reported by the
// upstream. A fetch error is yielded once and ends the sequence. Every call
// starts again from page 1.
func Paginate[T any](ctx context.Context, fetch PageFunc[T], limit int) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		collected := 0
		for page := 1; collected < limit; page++ {
			p, err := fetch(ctx, page)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if p == nil || len(p.Results) == 0 {
				return
			}
			for _, item := range p.Results {
				if !yield(item, nil) {
					return
				}
				collected++
				if collected >= limit {
					return
				}
			}
			if p.TotalPages > 0 && page >= p.TotalPages {
				return
			}
		}
	}
}
