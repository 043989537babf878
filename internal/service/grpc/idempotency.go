package grpcsvc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefront/v1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
)

type idempotencyErrorPayload struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

// withIdempotency выполняет handler не более одного раза на idempotency-key.
// Без ключа или без guard запрос обрабатывается как обычно.
func withIdempotency[T any](
	s *Server,
	ctx context.Context,
	method string,
	req any,
	handler func(context.Context) (*T, error),
) (*T, error) {
	if s.idempotency == nil {
		return handler(ctx)
	}
	key := readIdempotencyKey(ctx)
	if key == "" {
		return handler(ctx)
	}

	reqHash, err := idempotency.RequestHash(method, req)
	if err != nil {
		s.logger.WithError(err).WithField("method", method).Warn("failed to build idempotency request hash")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	replay, err := s.idempotency.Begin(ctx, key, reqHash)
	if err != nil {
		return nil, s.fail(method, err)
	}
	if replay != nil {
		return replayIdempotency[T](s, *replay)
	}

	resp, runErr := handler(ctx)
	if runErr != nil {
		s.cacheIdempotencyFailure(ctx, key, runErr)
		return nil, runErr
	}

	body, err := json.Marshal(resp)
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode idempotent response")
		body = nil
	}
	s.idempotency.Complete(ctx, key, body, int(codes.OK))
	return resp, nil
}

func replayIdempotency[T any](s *Server, record domain.IdempotencyRecord) (*T, error) {
	switch record.Status {
	case domain.IdempotencyStatusDone:
		if len(record.ResponseBody) == 0 {
			return nil, status.Error(codes.Internal, "idempotency cache is empty")
		}
		resp := new(T)
		if err := json.Unmarshal(record.ResponseBody, resp); err != nil {
			s.logger.WithError(err).WithField("idempotency_key", record.Key).Warn("failed to decode cached idempotency response")
			return nil, status.Error(codes.Internal, "failed to decode cached idempotency response")
		}
		return resp, nil
	case domain.IdempotencyStatusFailed:
		return nil, decodeIdempotencyFailure(record)
	default:
		return nil, status.Error(codes.Internal, "unknown idempotency record status")
	}
}

func (s *Server) cacheIdempotencyFailure(ctx context.Context, key string, runErr error) {
	st := status.Convert(runErr)
	code := st.Code()
	if code == codes.OK {
		code = codes.Internal
	}

	payload, err := json.Marshal(idempotencyErrorPayload{
		Code:    int32(code), //nolint:gosec // codes.Code is a bounded enum value.
		Message: st.Message(),
	})
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode idempotency failure payload")
		payload = nil
	}
	s.idempotency.Fail(ctx, key, payload, int(code))
}

func decodeIdempotencyFailure(record domain.IdempotencyRecord) error {
	if len(record.ResponseBody) > 0 {
		var payload idempotencyErrorPayload
		if err := json.Unmarshal(record.ResponseBody, &payload); err == nil {
			if code, ok := grpcCode(int(payload.Code)); ok && code != codes.OK {
				if payload.Message == "" {
					payload.Message = "previous request with the same idempotency key failed"
				}
				return status.Error(code, payload.Message)
			}
		}
	}

	if code, ok := grpcCode(record.StatusCode); ok && code != codes.OK {
		return status.Error(code, "previous request with the same idempotency key failed")
	}
	return status.Error(codes.Internal, "previous request with the same idempotency key failed")
}

func grpcCode(value int) (codes.Code, bool) {
	if value < int(codes.OK) || value > int(codes.Unauthenticated) {
		return codes.Internal, false
	}
	return codes.Code(uint32(value)), true //nolint:gosec // bounded above.
}

func readIdempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	return firstValue(md, storefrontv1.MetadataIdempotencyKey)
}
