package catalog

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	updateMaxRetries = 3
	updateBaseDelay  = 10 * time.Millisecond
	skuLength        = 8
)

// ProductInput описывает новую карточку товара.
type ProductInput struct {
	Shape          domain.ProductShape
	Name           string
	Description    string
	CompanyID      string
	CategoryIDs    []string
	BasePriceMinor int64
	// Quantity: начальный остаток simple-товара.
	Quantity int32
	Variants []VariantInput
}

// VariantInput описывает новый вариант.
type VariantInput struct {
	Attributes domain.VariantAttributes
	Quantity   int32
	PriceMinor *int64
	SKU        string
}

// VariantPatch: частичное изменение варианта; nil-поля не трогаются.
type VariantPatch struct {
	Attributes *domain.VariantAttributes
	PriceMinor *int64
	// ClearPrice снимает переопределение цены варианта.
	ClearPrice bool
	SKU        *string
}

// Manager выполняет операции управления каталогом, которые затрагивают
// производные кэши атрибутов или остатки.
type Manager struct {
	products    domain.ProductRepository
	ledger      domain.StockLedger
	attachments domain.AttachmentService
	logger      *log.Entry
	now         func() time.Time
}

// NewManager создаёт менеджер каталога. attachments может быть nil,
// тогда загрузка картинок недоступна.
func NewManager(products domain.ProductRepository, ledger domain.StockLedger, attachments domain.AttachmentService, logger *log.Entry) *Manager {
	if logger == nil {
		logger = log.New().WithField("component", "catalog-manager")
	}
	return &Manager{
		products:    products,
		ledger:      ledger,
		attachments: attachments,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Get возвращает карточку товара.
func (m *Manager) Get(ctx context.Context, id string) (domain.Product, error) {
	return m.products.Get(ctx, id)
}

// List возвращает страницу товаров.
func (m *Manager) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	return m.products.List(ctx, filter)
}

// CreateProduct заводит товар с начальными остатками.
func (m *Manager) CreateProduct(ctx context.Context, in ProductInput) (domain.Product, error) {
	now := m.now()
	product := domain.Product{
		ID:             uuid.NewString(),
		Shape:          in.Shape,
		Name:           strings.TrimSpace(in.Name),
		Description:    in.Description,
		CompanyID:      in.CompanyID,
		CategoryIDs:    append([]string(nil), in.CategoryIDs...),
		BasePriceMinor: in.BasePriceMinor,
		Quantity:       in.Quantity,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if product.Shape == "" {
		product.Shape = domain.ProductShapeSimple
	}
	for _, v := range in.Variants {
		product.Variants = append(product.Variants, newVariant(v))
	}
	product.RecomputeAvailableAttributes()

	if err := joinInvalid(product.ValidateInvariants()); err != nil {
		return domain.Product{}, err
	}
	if err := m.products.Create(ctx, product); err != nil {
		return domain.Product{}, err
	}

	m.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"shape":      product.Shape,
		"variants":   len(product.Variants),
	}).Info("product created")
	return product, nil
}

// AddVariant добавляет вариант вариативному товару.
func (m *Manager) AddVariant(ctx context.Context, productID string, in VariantInput) (domain.Product, error) {
	return m.update(ctx, productID, func(p *domain.Product) error {
		if p.Shape != domain.ProductShapeVariable {
			return domain.InvalidField("variants", "simple product cannot have variants")
		}
		p.Variants = append(p.Variants, newVariant(in))
		return nil
	})
}

// UpdateVariant меняет атрибуты, цену или SKU варианта. Остаток меняется только через Restock.
func (m *Manager) UpdateVariant(ctx context.Context, productID, variantID string, patch VariantPatch) (domain.Product, error) {
	return m.update(ctx, productID, func(p *domain.Product) error {
		v, ok := p.VariantByID(variantID)
		if !ok {
			return domain.NotFoundError(domain.ErrVariantNotFound, "variant", domain.StockKey{ProductID: productID, VariantID: variantID}.String())
		}
		if patch.Attributes != nil {
			v.Attributes = *patch.Attributes
		}
		switch {
		case patch.ClearPrice:
			v.PriceMinor = nil
		case patch.PriceMinor != nil:
			price := *patch.PriceMinor
			v.PriceMinor = &price
		}
		if patch.SKU != nil && strings.TrimSpace(*patch.SKU) != "" {
			v.SKU = strings.TrimSpace(*patch.SKU)
		}
		return nil
	})
}

// RemoveVariant удаляет вариант вместе с его остатком.
func (m *Manager) RemoveVariant(ctx context.Context, productID, variantID string) (domain.Product, error) {
	return m.update(ctx, productID, func(p *domain.Product) error {
		for i := range p.Variants {
			if p.Variants[i].ID == variantID {
				p.Variants = append(p.Variants[:i], p.Variants[i+1:]...)
				return nil
			}
		}
		return domain.NotFoundError(domain.ErrVariantNotFound, "variant", domain.StockKey{ProductID: productID, VariantID: variantID}.String())
	})
}

// SetDiscount задаёт скидочную цену. Нулевой expiresAt означает бессрочную скидку.
func (m *Manager) SetDiscount(ctx context.Context, productID string, priceMinor int64, expiresAt time.Time) (domain.Product, error) {
	if priceMinor < 0 {
		return domain.Product{}, domain.InvalidField("discount.price_minor", "must be non-negative")
	}
	if !expiresAt.IsZero() && !expiresAt.After(m.now()) {
		return domain.Product{}, domain.InvalidField("discount.expires_at", "must be in the future")
	}
	return m.update(ctx, productID, func(p *domain.Product) error {
		p.Discount = &domain.Discount{PriceMinor: priceMinor, ExpiresAt: expiresAt.UTC()}
		return nil
	})
}

// ClearDiscount снимает скидку.
func (m *Manager) ClearDiscount(ctx context.Context, productID string) (domain.Product, error) {
	return m.update(ctx, productID, func(p *domain.Product) error {
		p.Discount = nil
		return nil
	})
}

// Restock пополняет остаток товара или варианта через ledger.
func (m *Manager) Restock(ctx context.Context, key domain.StockKey, qty int32) (domain.Product, error) {
	if err := m.ledger.Restock(ctx, key, qty); err != nil {
		return domain.Product{}, err
	}
	m.logger.WithFields(log.Fields{
		"product_id": key.ProductID,
		"variant_id": key.VariantID,
		"quantity":   qty,
	}).Info("stock replenished")
	return m.products.Get(ctx, key.ProductID)
}

// AttachPicture загружает картинку во внешнее хранилище и добавляет URL к товару
// или к варианту. Первая картинка становится основной.
func (m *Manager) AttachPicture(ctx context.Context, productID, variantID, filename string, content io.Reader) (domain.Product, error) {
	if m.attachments == nil {
		return domain.Product{}, domain.InvalidField("picture", "attachment service is not configured")
	}
	if _, err := m.products.Get(ctx, productID); err != nil {
		return domain.Product{}, err
	}

	url, err := m.attachments.Upload(ctx, filename, content)
	if err != nil {
		m.logger.WithError(err).WithField("product_id", productID).Warn("picture upload failed")
		return domain.Product{}, err
	}

	return m.update(ctx, productID, func(p *domain.Product) error {
		if variantID == "" {
			p.Pictures = append(p.Pictures, url)
			if p.MainPicture == "" {
				p.MainPicture = url
			}
			return nil
		}
		v, ok := p.VariantByID(variantID)
		if !ok {
			return domain.NotFoundError(domain.ErrVariantNotFound, "variant", domain.StockKey{ProductID: productID, VariantID: variantID}.String())
		}
		v.Pictures = append(v.Pictures, url)
		if v.MainPicture == "" {
			v.MainPicture = url
		}
		return nil
	})
}

// RemovePicture удаляет картинку товара по индексу; если удалена основная,
// основной становится первая оставшаяся.
func (m *Manager) RemovePicture(ctx context.Context, productID string, index int) (domain.Product, error) {
	return m.update(ctx, productID, func(p *domain.Product) error {
		if index < 0 || index >= len(p.Pictures) {
			return domain.InvalidField("picture_index", "out of range")
		}
		removed := p.Pictures[index]
		p.Pictures = append(p.Pictures[:index], p.Pictures[index+1:]...)
		if p.MainPicture == removed {
			p.MainPicture = ""
			if len(p.Pictures) > 0 {
				p.MainPicture = p.Pictures[0]
			}
		}
		return nil
	})
}

// update применяет мутацию к свежей версии карточки и сохраняет её.
// Конфликт версий повторяется с экспоненциальной паузой.
func (m *Manager) update(ctx context.Context, productID string, mutate func(*domain.Product) error) (domain.Product, error) {
	for attempt := 0; attempt < updateMaxRetries; attempt++ {
		product, err := m.products.Get(ctx, productID)
		if err != nil {
			return domain.Product{}, err
		}
		if err := mutate(&product); err != nil {
			return domain.Product{}, err
		}
		product.RecomputeAvailableAttributes()
		product.UpdatedAt = m.now()
		if err := joinInvalid(product.ValidateInvariants()); err != nil {
			return domain.Product{}, err
		}

		err = m.products.Update(ctx, product)
		if err == nil {
			return m.products.Get(ctx, productID)
		}
		if !domain.IsVersionConflict(err) || attempt == updateMaxRetries-1 {
			return domain.Product{}, err
		}

		m.logger.WithFields(log.Fields{
			"product_id": productID,
			"attempt":    attempt + 1,
		}).Warn("product version conflict, retrying")
		if err := sleepContext(ctx, updateBaseDelay*time.Duration(1<<uint(attempt))); err != nil {
			return domain.Product{}, err
		}
	}
	return domain.Product{}, domain.ErrProductVersionConflict
}

func newVariant(in VariantInput) domain.Variant {
	v := domain.Variant{
		ID:         uuid.NewString(),
		SKU:        strings.TrimSpace(in.SKU),
		Attributes: in.Attributes,
		Quantity:   in.Quantity,
	}
	if v.SKU == "" {
		v.SKU = GenerateSKU()
	}
	if in.PriceMinor != nil {
		price := *in.PriceMinor
		v.PriceMinor = &price
	}
	return v
}

// GenerateSKU возвращает короткий код варианта: 8 символов в верхнем регистре.
func GenerateSKU() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:skuLength])
}

func joinInvalid(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
