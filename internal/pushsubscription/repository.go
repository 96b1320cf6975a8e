package pushsubscription

import "context"

type Repository interface {
	// Upsert stores s, replacing any subscription with the same endpoint.
	Upsert(ctx context.Context, s *Subscription) error
	List(ctx context.Context) ([]*Subscription, error)
	Delete(ctx context.Context, id string) error
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}
