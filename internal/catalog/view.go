package catalog

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// LineResolution описывает разрешённую позицию корзины, то есть снимок названия, цены,
// картинки и SKU на момент заказа, пригодный для фиксации в OrderLine.
type LineResolution struct {
	ProductID   string
	ProductName string
	Slot        domain.StockSlot
	Quantity    int32
}

// Line замораживает разрешение в строку заказа.
func (r LineResolution) Line() domain.OrderLine {
	line := domain.OrderLine{
		ProductID:      r.ProductID,
		ProductName:    r.ProductName,
		Quantity:       r.Quantity,
		UnitPriceMinor: r.Slot.PriceMinor,
		TotalMinor:     int64(r.Quantity) * r.Slot.PriceMinor,
		Picture:        r.Slot.Picture,
		VariantID:      r.Slot.Key.VariantID,
		SKU:            r.Slot.SKU,
	}
	if r.Slot.Attributes != nil {
		attrs := *r.Slot.Attributes
		line.Variant = &attrs
	}
	return line
}

// View разрешает ссылку на товар и селектор варианта в оценённую позицию.
// Только чтение: остатки не меняются.
type View struct {
	products domain.ProductRepository
	logger   *log.Entry
	now      func() time.Time
}

// NewView создаёт представление каталога поверх хранилища товаров.
func NewView(products domain.ProductRepository, logger *log.Entry) *View {
	if logger == nil {
		logger = log.New().WithField("component", "catalog-view")
	}
	return &View{
		products: products,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ResolveLine находит товар, выбирает слот остатка по форме товара и
// предварительно проверяет наличие. Авторитетная проверка происходит при списании.
func (v *View) ResolveLine(ctx context.Context, productID string, qty int32, sel domain.VariantSelector) (LineResolution, error) {
	if productID == "" {
		return LineResolution{}, domain.InvalidField("items.product_id", "is required")
	}
	if qty <= 0 {
		return LineResolution{}, domain.InvalidField("items.quantity", "must be greater than zero")
	}

	product, err := v.products.Get(ctx, productID)
	if err != nil {
		return LineResolution{}, err
	}

	slot, err := product.Resolve(sel, v.now())
	if err != nil {
		return LineResolution{}, err
	}
	if qty > slot.Available {
		v.logger.WithFields(log.Fields{
			"product_id": product.ID,
			"variant_id": slot.Key.VariantID,
			"requested":  qty,
			"available":  slot.Available,
		}).Debug("stock pre-check failed")
		return LineResolution{}, domain.StockError(domain.ErrInsufficientStock, slot.Key, qty, slot.Available)
	}

	return LineResolution{
		ProductID:   product.ID,
		ProductName: product.Name,
		Slot:        slot,
		Quantity:    qty,
	}, nil
}
