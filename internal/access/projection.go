package access

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Shape: форма ответа для роли.
type Shape int

const (
	// ShapeFull: полный объект.
	ShapeFull Shape = iota
	// ShapeSummary: только сводные поля, без позиций и деталей.
	ShapeSummary
)

// projectionRules задаёт форму ответа по роли и ресурсу. Роли и ресурсы
// без правила получают полный объект.
var projectionRules = map[domain.Role]map[domain.Resource]Shape{
	domain.RoleContentEditor: {domain.ResourceOrders: ShapeSummary},
	domain.RoleOrderManager:  {domain.ResourceProducts: ShapeSummary},
}

// ShapeFor возвращает форму ответа для роли.
func ShapeFor(role domain.Role, resource domain.Resource) Shape {
	if shape, ok := projectionRules[role][resource]; ok {
		return shape
	}
	return ShapeFull
}

// OrderView: заказ в форме, разрешённой роли.
type OrderView struct {
	ID         string
	Number     string
	Status     domain.OrderStatus
	TotalMinor int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	// Detail равен nil в сводной форме.
	Detail *OrderDetail
}

// OrderDetail: поля заказа, скрытые в сводке.
type OrderDetail struct {
	Customer      domain.Customer
	Shipping      domain.ShippingAddress
	Lines         []domain.OrderLine
	History       []domain.StatusEntry
	PaymentMethod domain.PaymentMethod
	IsPaid        bool
	PaymentDate   time.Time
	Notes         string
	Version       int64
}

// ProjectOrder строит представление заказа для роли.
func ProjectOrder(role domain.Role, order domain.Order) OrderView {
	if ShapeFor(role, domain.ResourceOrders) == ShapeSummary {
		return summarizeOrder(order)
	}
	return FullOrder(order)
}

func summarizeOrder(order domain.Order) OrderView {
	return OrderView{
		ID:         order.ID,
		Number:     order.Number,
		Status:     order.Status,
		TotalMinor: order.TotalMinor,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
}

// FullOrder строит полное представление независимо от роли. Используется
// для ответа покупателю, оформившему заказ.
func FullOrder(order domain.Order) OrderView {
	view := summarizeOrder(order)
	full := order.Clone()
	view.Detail = &OrderDetail{
		Customer:      full.Customer,
		Shipping:      full.Shipping,
		Lines:         full.Lines,
		History:       full.History,
		PaymentMethod: full.PaymentMethod,
		IsPaid:        full.IsPaid,
		PaymentDate:   full.PaymentDate,
		Notes:         full.Notes,
		Version:       full.Version,
	}
	return view
}

// ProjectOrders проецирует список заказов.
func ProjectOrders(role domain.Role, orders []domain.Order) []OrderView {
	out := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		out = append(out, ProjectOrder(role, order))
	}
	return out
}

// ProductView: товар в форме, разрешённой роли.
type ProductView struct {
	ID                  string
	Name                string
	MainPicture         string
	CompanyID           string
	BasePriceMinor      int64
	EffectivePriceMinor int64
	Discount            *domain.Discount
	// Quantity хранит эффективный остаток, для variable это сумма по вариантам.
	Quantity int32
	// Detail равен nil в сокращённой форме.
	Detail *ProductDetail
}

// ProductDetail: поля товара, скрытые в сокращённой форме.
type ProductDetail struct {
	Shape               domain.ProductShape
	Description         string
	CategoryIDs         []string
	Pictures            []string
	Variants            []domain.Variant
	AvailableAttributes domain.AvailableAttributes
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ProjectProduct строит представление товара для роли на момент now.
func ProjectProduct(role domain.Role, product domain.Product, now time.Time) ProductView {
	full := product.Clone()
	view := ProductView{
		ID:                  full.ID,
		Name:                full.Name,
		MainPicture:         full.MainPicture,
		CompanyID:           full.CompanyID,
		BasePriceMinor:      full.BasePriceMinor,
		EffectivePriceMinor: full.EffectivePrice(now),
		Discount:            full.Discount,
		Quantity:            full.TotalStock(),
	}
	if ShapeFor(role, domain.ResourceProducts) == ShapeSummary {
		return view
	}
	view.Detail = &ProductDetail{
		Shape:               full.Shape,
		Description:         full.Description,
		CategoryIDs:         full.CategoryIDs,
		Pictures:            full.Pictures,
		Variants:            full.Variants,
		AvailableAttributes: full.AvailableAttributes,
		Version:             full.Version,
		CreatedAt:           full.CreatedAt,
		UpdatedAt:           full.UpdatedAt,
	}
	return view
}

// ProjectProducts проецирует список товаров.
func ProjectProducts(role domain.Role, products []domain.Product, now time.Time) []ProductView {
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, ProjectProduct(role, p, now))
	}
	return out
}
