package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending: заказ создан, остаток списан, ждёт подтверждения.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed: заказ подтверждён оператором.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusPreparing: заказ собирается.
	OrderStatusPreparing OrderStatus = "preparing"
	// OrderStatusShipped: заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered: заказ вручён клиенту.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusPaid: оплата получена; выставляет IsPaid и PaymentDate.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusCancelled: заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusPaid, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseOrderStatus разбирает статус из внешнего представления.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", InvalidField("status", fmt.Sprintf("unknown status %q", raw))
	}
	return s, nil
}

// PaymentMethod: способ оплаты заказа.
type PaymentMethod string

// PaymentMethodCashOnDelivery: оплата при получении, единственный поддерживаемый способ.
const PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"

// DefaultShippingCountry подставляется, если страна доставки не указана.
const DefaultShippingCountry = "Mauritanie"

// Customer: контакт покупателя.
type Customer struct {
	FirstName string
	LastName  string
	Phone     string
}

// ShippingAddress: адрес доставки.
type ShippingAddress struct {
	Address        string
	City           string
	PostalCode     string
	Country        string
	AdditionalInfo string
}

// OrderLine: позиция заказа. Название, цена, картинка и атрибуты фиксируются
// на момент оформления и не зависят от последующих правок товара.
type OrderLine struct {
	ProductID      string
	ProductName    string
	Quantity       int32
	UnitPriceMinor int64
	TotalMinor     int64
	Picture        string
	VariantID      string
	Variant        *VariantAttributes
	SKU            string
}

// StockKey возвращает счётчик остатка, из которого списана позиция.
func (l OrderLine) StockKey() StockKey {
	return StockKey{ProductID: l.ProductID, VariantID: l.VariantID}
}

// StatusEntry: запись истории статусов.
type StatusEntry struct {
	Status  OrderStatus
	At      time.Time
	Comment string
}

// Order агрегирует состояние заказа, его позиции и историю статусов.
type Order struct {
	ID            string
	Number        string
	Customer      Customer
	Shipping      ShippingAddress
	Lines         []OrderLine
	Status        OrderStatus
	History       []StatusEntry
	TotalMinor    int64
	PaymentMethod PaymentMethod
	IsPaid        bool
	// PaymentDate: нулевое значение, пока заказ не переводился в paid.
	PaymentDate time.Time
	Notes       string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Transition переводит заказ в новый статус. Граф переходов не ограничен:
// любой статус достижим из любого. Повтор текущего статуса: no-op без записи
// в историю. Вход в paid каждый раз выставляет IsPaid и перештамповывает PaymentDate.
// Возвращает true, если заказ изменился.
func (o *Order) Transition(next OrderStatus, comment string, now time.Time) bool {
	if next == o.Status {
		return false
	}

	o.History = append(o.History, StatusEntry{Status: next, At: now, Comment: comment})
	o.Status = next
	if next == OrderStatusPaid {
		o.IsPaid = true
		o.PaymentDate = now
	}
	o.UpdatedAt = now
	return true
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.Number == "" {
		errs = append(errs, InvalidField("order_number", "is required"))
	}
	if !o.Status.Valid() {
		errs = append(errs, InvalidField("status", "is not supported"))
	}
	if len(o.Lines) == 0 {
		errs = append(errs, InvalidField("items", "order must contain at least one item"))
	}
	if len(o.History) == 0 || o.History[len(o.History)-1].Status != o.Status {
		errs = append(errs, InvalidField("status_history", "last entry must match current status"))
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, line := range o.Lines {
		if line.Quantity <= 0 {
			errs = append(errs, InvalidField("items.quantity", "must be greater than zero"))
		}
		if line.UnitPriceMinor < 0 {
			errs = append(errs, InvalidField("items.price", "must be non-negative"))
		}
		if line.TotalMinor != int64(line.Quantity)*line.UnitPriceMinor {
			errs = append(errs, InvalidField("items.total_price", "does not match quantity * price"))
		}
		calc += line.TotalMinor
	}
	if calc != o.TotalMinor {
		errs = append(errs, InvalidField("total_amount", "does not match items sum"))
	}

	return errs
}

// Clone возвращает копию заказа, не разделяющую срезы с оригиналом.
func (o Order) Clone() Order {
	out := o
	out.Lines = make([]OrderLine, len(o.Lines))
	for i, line := range o.Lines {
		if line.Variant != nil {
			attrs := *line.Variant
			line.Variant = &attrs
		}
		out.Lines[i] = line
	}
	out.History = append([]StatusEntry(nil), o.History...)
	return out
}

const (
	orderNumberPrefix = "ORD-"
	// MaxDailyOrderSequence: верхняя граница дневной последовательности (4 разряда).
	MaxDailyOrderSequence = 9999
)

// OrderNumberPrefix возвращает префикс номеров заказов за календарный день: ORD-YYYYMMDD-.
func OrderNumberPrefix(day time.Time) string {
	return orderNumberPrefix + day.Format("20060102") + "-"
}

// FormatOrderNumber собирает номер заказа из префикса дня и порядкового номера.
func FormatOrderNumber(prefix string, seq int) string {
	return fmt.Sprintf("%s%04d", prefix, seq)
}

// ParseOrderSequence извлекает порядковый номер из номера заказа с заданным префиксом.
func ParseOrderSequence(number, prefix string) (int, bool) {
	if !strings.HasPrefix(number, prefix) {
		return 0, false
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(number, prefix))
	if err != nil || seq <= 0 {
		return 0, false
	}
	return seq, true
}

// OrderFilter задаёт выборку заказов для листинга.
type OrderFilter struct {
	Status        OrderStatus
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Limit         int
	Offset        int
}

// Match проверяет, подходит ли заказ под фильтр (без учёта Limit/Offset).
func (f OrderFilter) Match(o Order) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if !f.CreatedAfter.IsZero() && o.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && !o.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}
