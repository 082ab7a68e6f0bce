package settings

import "context"

type Store interface {
	// GetSettings returns a not-found error until settings are first saved.
	GetSettings(ctx context.Context) (*Settings, error)
	PutSettings(ctx context.Context, s *Settings) error

	IncrementCounter(ctx context.Context, name string) (uint64, error)
	Counter(ctx context.Context, name string) (uint64, error)
}
