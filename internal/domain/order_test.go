package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	return domain.Order{
		ID:     "order-1",
		Number: "ORD-20260314-0001",
		Customer: domain.Customer{
			FirstName: "Aminata",
			LastName:  "Sy",
			Phone:     "+22236000000",
		},
		Shipping: domain.ShippingAddress{
			Address:    "Ilot K 12",
			City:       "Nouakchott",
			PostalCode: "10001",
			Country:    domain.DefaultShippingCountry,
		},
		Lines: []domain.OrderLine{
			{
				ProductID:      "product-1",
				ProductName:    "Melhfa",
				Quantity:       5,
				UnitPriceMinor: 100,
				TotalMinor:     500,
			},
		},
		Status:        domain.OrderStatusPending,
		History:       []domain.StatusEntry{{Status: domain.OrderStatusPending, At: now}},
		TotalMinor:    500,
		PaymentMethod: domain.PaymentMethodCashOnDelivery,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{name: "no number", mut: func(o *domain.Order) { o.Number = "" }},
		{name: "unknown status", mut: func(o *domain.Order) { o.Status = "lost" }},
		{name: "no items", mut: func(o *domain.Order) { o.Lines = nil }},
		{name: "qty invalid", mut: func(o *domain.Order) { o.Lines[0].Quantity = 0 }},
		{name: "line total mismatch", mut: func(o *domain.Order) { o.Lines[0].TotalMinor = 499 }},
		{name: "amount mismatch", mut: func(o *domain.Order) { o.TotalMinor = 999 }},
		{name: "history out of sync", mut: func(o *domain.Order) { o.Status = domain.OrderStatusShipped }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)

			errs := order.ValidateInvariants()
			if len(errs) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
			for _, err := range errs {
				if !domain.IsInvalidInput(err) {
					t.Fatalf("expected invalid input error, got %v", err)
				}
			}
		})
	}
}

func TestOrderTransition_SameStatusIsNoop(t *testing.T) {
	order := makeOrder()
	before := len(order.History)

	changed := order.Transition(domain.OrderStatusPending, "again", time.Now().UTC())
	if changed {
		t.Fatal("transition to the current status must report no change")
	}
	if len(order.History) != before {
		t.Fatalf("history grew from %d to %d", before, len(order.History))
	}
}

func TestOrderTransition_AnyStatusReachable(t *testing.T) {
	statuses := []domain.OrderStatus{
		domain.OrderStatusCancelled,
		domain.OrderStatusDelivered,
		domain.OrderStatusPending,
		domain.OrderStatusShipped,
		domain.OrderStatusConfirmed,
	}

	order := makeOrder()
	now := order.CreatedAt
	for i, status := range statuses {
		now = now.Add(time.Minute)
		if !order.Transition(status, "", now) {
			t.Fatalf("step %d: transition to %s rejected", i, status)
		}
		if order.Status != status {
			t.Fatalf("step %d: status = %s, want %s", i, order.Status, status)
		}
	}
	if got, want := len(order.History), len(statuses)+1; got != want {
		t.Fatalf("history length = %d, want %d", got, want)
	}
	if order.IsPaid {
		t.Fatal("is_paid must stay false without entering paid")
	}
}

func TestOrderTransition_PaidReentryRestampsDate(t *testing.T) {
	order := makeOrder()
	first := order.CreatedAt.Add(time.Hour)
	second := first.Add(time.Hour)

	order.Transition(domain.OrderStatusPaid, "cash received", first)
	order.Transition(domain.OrderStatusDelivered, "", first.Add(time.Minute))
	order.Transition(domain.OrderStatusPaid, "recount", second)

	paidEntries := 0
	for _, entry := range order.History {
		if entry.Status == domain.OrderStatusPaid {
			paidEntries++
		}
	}
	if paidEntries != 2 {
		t.Fatalf("expected two paid history entries, got %d", paidEntries)
	}
	if !order.IsPaid {
		t.Fatal("is_paid must remain true")
	}
	if !order.PaymentDate.Equal(second) {
		t.Fatalf("payment date = %v, want %v", order.PaymentDate, second)
	}
	if last := order.History[len(order.History)-1]; last.Comment != "recount" {
		t.Fatalf("last history comment = %q", last.Comment)
	}
}

func TestParseOrderStatus(t *testing.T) {
	t.Parallel()

	if s, err := domain.ParseOrderStatus(" Shipped "); err != nil || s != domain.OrderStatusShipped {
		t.Fatalf("ParseOrderStatus(Shipped) = %q, %v", s, err)
	}
	if _, err := domain.ParseOrderStatus("refunded"); !domain.IsInvalidInput(err) {
		t.Fatalf("expected invalid input for unknown status, got %v", err)
	}
}

func TestOrderNumberFormatting(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 1, 2, 23, 59, 0, 0, time.UTC)
	prefix := domain.OrderNumberPrefix(day)
	if prefix != "ORD-20260102-" {
		t.Fatalf("prefix = %q", prefix)
	}

	number := domain.FormatOrderNumber(prefix, 7)
	if number != "ORD-20260102-0007" {
		t.Fatalf("number = %q", number)
	}

	seq, ok := domain.ParseOrderSequence(number, prefix)
	if !ok || seq != 7 {
		t.Fatalf("ParseOrderSequence = %d, %v", seq, ok)
	}
	if _, ok := domain.ParseOrderSequence("ORD-20260101-0003", prefix); ok {
		t.Fatal("sequence of another day must not parse")
	}
	if _, ok := domain.ParseOrderSequence(prefix+"12a4", prefix); ok {
		t.Fatal("garbage suffix must not parse")
	}
}

func TestOrderClone_DoesNotShareSlices(t *testing.T) {
	t.Parallel()

	order := makeOrder()
	order.Lines[0].Variant = &domain.VariantAttributes{Color: "red"}
	clone := order.Clone()

	clone.Lines[0].ProductName = "changed"
	clone.Lines[0].Variant.Color = "blue"
	clone.History[0].Comment = "changed"

	if order.Lines[0].ProductName != "Melhfa" || order.Lines[0].Variant.Color != "red" || order.History[0].Comment != "" {
		t.Fatal("clone mutated the original order")
	}
}

func TestOrderFilterMatch(t *testing.T) {
	t.Parallel()

	order := makeOrder()
	cases := []struct {
		name   string
		filter domain.OrderFilter
		want   bool
	}{
		{name: "empty", filter: domain.OrderFilter{}, want: true},
		{name: "status match", filter: domain.OrderFilter{Status: domain.OrderStatusPending}, want: true},
		{name: "status mismatch", filter: domain.OrderFilter{Status: domain.OrderStatusPaid}, want: false},
		{name: "after", filter: domain.OrderFilter{CreatedAfter: order.CreatedAt.Add(time.Second)}, want: false},
		{name: "before exclusive", filter: domain.OrderFilter{CreatedBefore: order.CreatedAt}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Match(order); got != tc.want {
				t.Fatalf("Match() = %v, want %v", got, tc.want)
			}
		})
	}
}
