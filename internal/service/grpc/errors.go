package grpcsvc

import (
	"context"
	"errors"
	"strconv"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
)

const (
	errorDomain = "storefront"
	// retryAfter подсказывает клиенту паузу перед повтором Aborted-запроса.
	retryAfter = 100 * time.Millisecond
)

// toStatus переводит доменную ошибку в gRPC-статус с деталями. Текст
// внутренних ошибок наружу не отдаётся.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); ok {
		return st.Err()
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	code, reason := classify(err)
	if code == codes.Internal {
		return status.Error(codes.Internal, "internal error")
	}

	st := status.New(code, err.Error())
	detailed, detailErr := st.WithDetails(errorDetails(err, code, reason)...)
	if detailErr != nil {
		return st.Err()
	}
	return detailed.Err()
}

func classify(err error) (codes.Code, string) {
	switch {
	case errors.Is(err, domain.ErrVariantSelectorRequired):
		return codes.InvalidArgument, "VARIANT_SELECTOR_REQUIRED"
	case domain.IsInvalidInput(err):
		return codes.InvalidArgument, "INVALID_INPUT"
	case domain.IsNotFound(err):
		return codes.NotFound, "NOT_FOUND"
	case domain.IsInsufficientStock(err):
		return codes.FailedPrecondition, "INSUFFICIENT_STOCK"
	case domain.IsStockRaceLost(err):
		return codes.Aborted, "STOCK_RACE_LOST"
	case domain.IsVersionConflict(err):
		return codes.Aborted, "VERSION_CONFLICT"
	case errors.Is(err, domain.ErrSequenceConflict):
		return codes.Aborted, "SEQUENCE_CONFLICT"
	case domain.IsUnauthorized(err):
		return codes.PermissionDenied, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrLastSuperAdmin):
		return codes.FailedPrecondition, "LAST_SUPER_ADMIN"
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return codes.AlreadyExists, "IDEMPOTENCY_KEY_REUSED"
	case errors.Is(err, idempotency.ErrInProgress):
		return codes.Aborted, "IDEMPOTENCY_IN_PROGRESS"
	case errors.Is(err, domain.ErrIdempotencyKeyRequired):
		return codes.InvalidArgument, "IDEMPOTENCY_KEY_REQUIRED"
	default:
		return codes.Internal, "INTERNAL"
	}
}

func errorDetails(err error, code codes.Code, reason string) []protoadapt.MessageV1 {
	info := &errdetails.ErrorInfo{Reason: reason, Domain: errorDomain}
	details := []protoadapt.MessageV1{info}

	if de, ok := domain.AsError(err); ok {
		info.Metadata = errorMetadata(de)
		if de.Resource != "" {
			details = append(details, &errdetails.ResourceInfo{
				ResourceType: de.Resource,
				ResourceName: de.ResourceID,
				Description:  de.Reason,
			})
		}
	}
	if violations := fieldViolations(err); len(violations) > 0 {
		details = append(details, &errdetails.BadRequest{FieldViolations: violations})
	}
	if code == codes.Aborted {
		details = append(details, &errdetails.RetryInfo{RetryDelay: durationpb.New(retryAfter)})
	}
	return details
}

func errorMetadata(de *domain.Error) map[string]string {
	md := make(map[string]string)
	set := func(key, value string) {
		if value != "" {
			md[key] = value
		}
	}
	set("resource", de.Resource)
	set("resource_id", de.ResourceID)
	set("action", de.Action)
	set("field", de.Field)
	if de.Requested > 0 {
		md["requested"] = strconv.Itoa(int(de.Requested))
		md["available"] = strconv.Itoa(int(de.Available))
	}
	if len(md) == 0 {
		return nil
	}
	return md
}

// fieldViolations собирает все ошибки полей, включая объединённые через errors.Join.
func fieldViolations(err error) []*errdetails.BadRequest_FieldViolation {
	var out []*errdetails.BadRequest_FieldViolation
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if de, ok := e.(*domain.Error); ok {
			if de.Field != "" {
				out = append(out, &errdetails.BadRequest_FieldViolation{Field: de.Field, Description: de.Reason})
			}
			return
		}
		switch wrapped := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range wrapped.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(wrapped.Unwrap())
		}
	}
	walk(err)
	return out
}
