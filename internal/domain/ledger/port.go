package ledger

import (
	"context"
	"errors"
)

// ErrDisabled is returned by callers when no ledger driver is configured.
var ErrDisabled = errors.New("ledger disabled")

// Repository port for persisting and querying ledger records
type Repository interface {
	Record(ctx context.Context, e *Event) error
	RecordRejection(ctx context.Context, r *Rejection) error
	Paginate(ctx context.Context, page, pageSize int) (Page, error)
	Rejections(ctx context.Context, sessionID string, limit int) ([]*Rejection, error)
	Ping(ctx context.Context) error
	Close() error
}

// NormalizePage applies the default and maximum page size.
func NormalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

// NormalizeLimit bounds a rejection listing: default 20, max 100.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
