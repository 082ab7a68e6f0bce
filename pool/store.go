package pool

import (
	"context"

	"github.com/xraph/factoring/id"
)

type Store interface {
	CreatePool(ctx context.Context, p *Pool) error
	GetPool(ctx context.Context, poolID id.PoolID) (*Pool, error)
	ListPools(ctx context.Context, opts ListOpts) ([]*Pool, error)
	UpdatePool(ctx context.Context, p *Pool) error
}

type ListOpts struct {
	ChainID     uint64
	EnabledOnly bool
	Limit       int
	Offset      int
}
