package swap

import (
	"context"

	"github.com/xraph/factoring/id"
)

type Store interface {
	CreateRoute(ctx context.Context, r *Route) error
	GetRoute(ctx context.Context, routeID id.RouteID) (*Route, error)
	UpdateRoute(ctx context.Context, r *Route) error

	CreateSwap(ctx context.Context, s *Swap) error
	GetSwap(ctx context.Context, swapID id.SwapID) (*Swap, error)
	ListSwaps(ctx context.Context, opts ListOpts) ([]*Swap, error)
}

type ListOpts struct {
	Trader string
	Limit  int
	Offset int
}
