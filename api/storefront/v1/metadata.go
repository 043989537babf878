package storefrontv1

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// Ключи gRPC metadata. Принципал проставляется слоем аутентификации.
const (
	MetadataActorID        = "x-actor-id"
	MetadataActorRole      = "x-actor-role"
	MetadataIdempotencyKey = "idempotency-key"
)

// WithPrincipal добавляет принципала в исходящую metadata.
func WithPrincipal(ctx context.Context, actorID, role string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, MetadataActorID, actorID, MetadataActorRole, role)
}

// WithIdempotencyKey добавляет idempotency-key в исходящую metadata.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, MetadataIdempotencyKey, key)
}
