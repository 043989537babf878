package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound: базовая ошибка отсутствующего ресурса (товар, вариант, заказ, администратор).
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput: отсутствуют обязательные поля или значения вне допустимого диапазона.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientStock: предварительная проверка остатка не прошла.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrStockRaceLost означает, что условное списание не прошло и остаток изменился между проверкой и списанием.
	ErrStockRaceLost = errors.New("stock race lost")
	// ErrVariantSelectorRequired: для вариативного товара не указан ни вариант, ни атрибуты.
	ErrVariantSelectorRequired = errors.New("variant selector required")
	// ErrUnauthorized: актор неактивен или не имеет права на действие.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSequenceConflict: номер заказа уже занят; повторяется внутри сборщика и наружу не выходит.
	ErrSequenceConflict = errors.New("order number sequence conflict")
	// ErrVersionConflict сигнализирует о конфликте версий при сохранении (optimistic locking).
	ErrVersionConflict = errors.New("version conflict")
	// ErrLastSuperAdmin: операция оставила бы систему без активного superAdmin.
	ErrLastSuperAdmin = errors.New("last active super admin cannot be demoted or deactivated")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	ErrVariantNotFound = fmt.Errorf("variant %w", ErrNotFound)
	ErrOrderNotFound   = fmt.Errorf("order %w", ErrNotFound)
	ErrAdminNotFound   = fmt.Errorf("admin %w", ErrNotFound)

	ErrOrderVersionConflict   = fmt.Errorf("order %w", ErrVersionConflict)
	ErrProductVersionConflict = fmt.Errorf("product %w", ErrVersionConflict)
	ErrAdminVersionConflict   = fmt.Errorf("admin %w", ErrVersionConflict)
)

// Error несёт структурированный контекст ошибки: вызывающая сторона сама
// формирует текст для пользователя по Kind/Resource/Action/Field.
type Error struct {
	// Kind: одна из sentinel-ошибок пакета, по ней работает errors.Is.
	Kind       error
	Resource   string
	ResourceID string
	Action     string
	Field      string
	Reason     string
	// Requested/Available заполняются для ошибок остатка.
	Requested int32
	Available int32
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Resource != "" {
		b.WriteString(": ")
		b.WriteString(e.Resource)
		if e.ResourceID != "" {
			b.WriteString(" ")
			b.WriteString(e.ResourceID)
		}
	}
	if e.Action != "" {
		b.WriteString(" action=")
		b.WriteString(e.Action)
	}
	if e.Field != "" {
		b.WriteString(" field=")
		b.WriteString(e.Field)
	}
	if e.Reason != "" {
		b.WriteString(" (")
		b.WriteString(e.Reason)
		b.WriteString(")")
	}
	if e.Requested > 0 {
		fmt.Fprintf(&b, " requested=%d available=%d", e.Requested, e.Available)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// InvalidField строит ошибку InvalidInput для конкретного поля.
func InvalidField(field, reason string) error {
	return &Error{Kind: ErrInvalidInput, Field: field, Reason: reason}
}

// NotFoundError строит ошибку отсутствия ресурса с идентификатором.
func NotFoundError(kind error, resource, id string) error {
	return &Error{Kind: kind, Resource: resource, ResourceID: id}
}

// StockError строит ошибку остатка (InsufficientStock или StockRaceLost) по слоту.
func StockError(kind error, key StockKey, requested, available int32) error {
	return &Error{
		Kind:       kind,
		Resource:   key.Resource(),
		ResourceID: key.String(),
		Requested:  requested,
		Available:  available,
	}
}

// UnauthorizedError фиксирует ресурс и действие, на которые не хватило прав.
func UnauthorizedError(resource Resource, action Action, reason string) error {
	return &Error{Kind: ErrUnauthorized, Resource: string(resource), Action: string(action), Reason: reason}
}

// AsError извлекает структурированный контекст, если он есть в цепочке.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsNotFound проверяет, что ресурс отсутствует.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput проверяет ошибку валидации входных данных.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsStockRaceLost проверяет проигрыш гонки за остаток на этапе списания.
func IsStockRaceLost(err error) bool {
	return errors.Is(err, ErrStockRaceLost)
}

// IsInsufficientStock проверяет провал предварительной проверки остатка.
func IsInsufficientStock(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}

// IsUnauthorized проверяет отказ в доступе.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
