package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsVersionConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "order version conflict", err: ErrOrderVersionConflict, want: true},
		{name: "product version conflict", err: ErrProductVersionConflict, want: true},
		{name: "joined", err: errors.Join(ErrOrderVersionConflict, errors.New("additional context")), want: true},
		{name: "other error", err: ErrOrderNotFound, want: false},
		{name: "nil error", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVersionConflict(tt.err); got != tt.want {
				t.Errorf("IsVersionConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNotFoundKinds(t *testing.T) {
	for _, err := range []error{ErrProductNotFound, ErrVariantNotFound, ErrOrderNotFound, ErrAdminNotFound} {
		if !IsNotFound(err) {
			t.Errorf("%v must be a not found error", err)
		}
	}
	if !errors.Is(NotFoundError(ErrVariantNotFound, "product", "p-1"), ErrVariantNotFound) {
		t.Error("structured error must keep its specific kind")
	}
}

func TestStructuredError_Context(t *testing.T) {
	err := fmt.Errorf("commit: %w", StockError(ErrStockRaceLost, StockKey{ProductID: "p-1", VariantID: "v-2"}, 3, 1))

	if !IsStockRaceLost(err) {
		t.Fatal("expected stock race lost kind")
	}
	if IsInsufficientStock(err) {
		t.Fatal("race lost must be distinct from insufficient stock")
	}

	details, ok := AsError(err)
	if !ok {
		t.Fatal("expected structured error in chain")
	}
	if details.Resource != "variant" || details.ResourceID != "p-1/v-2" {
		t.Fatalf("unexpected resource context: %+v", details)
	}
	if details.Requested != 3 || details.Available != 1 {
		t.Fatalf("unexpected stock context: %+v", details)
	}
	if !strings.Contains(err.Error(), "requested=3 available=1") {
		t.Fatalf("message lacks stock context: %s", err.Error())
	}
}

func TestUnauthorizedError(t *testing.T) {
	err := UnauthorizedError(ResourceOrders, ActionRead, "role policy")
	if !IsUnauthorized(err) {
		t.Fatal("expected unauthorized kind")
	}
	details, _ := AsError(err)
	if details.Resource != "orders" || details.Action != "read" {
		t.Fatalf("unexpected context: %+v", details)
	}
}

func TestInvalidField(t *testing.T) {
	err := InvalidField("customer.phone", "is required")
	if !IsInvalidInput(err) {
		t.Fatal("expected invalid input kind")
	}
	details, _ := AsError(err)
	if details.Field != "customer.phone" {
		t.Fatalf("field = %q", details.Field)
	}
}
