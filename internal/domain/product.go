package domain

import (
	"sort"
	"strings"
	"time"
)

// ProductShape задаёт модель учёта остатка товара.
type ProductShape string

const (
	// ProductShapeSimple: один счётчик остатка на весь товар, без вариантов.
	ProductShapeSimple ProductShape = "simple"
	// ProductShapeVariable: набор вариантов (цвет × размер), у каждого свой остаток и цена.
	ProductShapeVariable ProductShape = "variable"
)

// Valid проверяет, что форма товара поддерживается.
func (s ProductShape) Valid() bool {
	return s == ProductShapeSimple || s == ProductShapeVariable
}

// VariantAttributes: пара атрибутов варианта; любое из полей может быть пустым.
type VariantAttributes struct {
	Color string `json:"color,omitempty"`
	Size  string `json:"size,omitempty"`
}

// IsZero сообщает, что не задан ни один атрибут.
func (a VariantAttributes) IsZero() bool {
	return a.Color == "" && a.Size == ""
}

// Variant: одна комбинация атрибутов вариативного товара.
type Variant struct {
	ID         string
	SKU        string
	Attributes VariantAttributes
	Quantity   int32
	// PriceMinor переопределяет цену товара, если задан.
	PriceMinor  *int64
	Pictures    []string
	MainPicture string
}

// Discount описывает скидочную цену с необязательным сроком действия.
type Discount struct {
	PriceMinor int64
	// ExpiresAt: момент окончания скидки; нулевое значение означает бессрочную скидку.
	ExpiresAt time.Time
}

// ActiveAt сообщает, действует ли скидка в момент now.
func (d *Discount) ActiveAt(now time.Time) bool {
	if d == nil {
		return false
	}
	return d.ExpiresAt.IsZero() || now.Before(d.ExpiresAt)
}

// AvailableAttributes: производный кэш атрибутов вариантов.
type AvailableAttributes struct {
	Colors []string
	Sizes  []string
}

// Product: карточка товара каталога.
type Product struct {
	ID          string
	Shape       ProductShape
	Name        string
	Description string
	CompanyID   string
	CategoryIDs []string
	Pictures    []string
	MainPicture string

	BasePriceMinor int64
	Discount       *Discount

	// Quantity используется только для simple-товаров.
	Quantity int32
	// Variants используются только для variable-товаров.
	Variants            []Variant
	AvailableAttributes AvailableAttributes

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StockKey адресует единицу учёта остатка: товар целиком или его вариант.
type StockKey struct {
	ProductID string
	VariantID string
}

func (k StockKey) String() string {
	if k.VariantID == "" {
		return k.ProductID
	}
	return k.ProductID + "/" + k.VariantID
}

// Resource возвращает имя ресурса для структурированных ошибок.
func (k StockKey) Resource() string {
	if k.VariantID == "" {
		return "product"
	}
	return "variant"
}

// VariantSelector выбирает вариант по идентификатору или по паре атрибутов.
// Идентификатор имеет приоритет, если заданы оба.
type VariantSelector struct {
	VariantID  string
	Attributes *VariantAttributes
}

// IsZero сообщает, что селектор не задан.
func (s VariantSelector) IsZero() bool {
	return strings.TrimSpace(s.VariantID) == "" && (s.Attributes == nil || s.Attributes.IsZero())
}

// StockSlot: результат разрешения товара и селектора в конкретный счётчик остатка.
type StockSlot struct {
	Key        StockKey
	Available  int32
	PriceMinor int64
	SKU        string
	Picture    string
	// Attributes заполнены только для варианта.
	Attributes *VariantAttributes
}

// stockModel описывает общую способность обеих форм товара найти счётчик остатка и цену.
type stockModel interface {
	resolve(p *Product, sel VariantSelector, now time.Time) (StockSlot, error)
	totalStock(p *Product) int32
}

type simpleStock struct{}

type variableStock struct{}

// model выбирает модель учёта по тегу формы. Это единственное место ветвления по форме.
func (p *Product) model() stockModel {
	if p.Shape == ProductShapeVariable {
		return variableStock{}
	}
	return simpleStock{}
}

// Resolve разрешает селектор в счётчик остатка с ценой на момент now.
func (p *Product) Resolve(sel VariantSelector, now time.Time) (StockSlot, error) {
	return p.model().resolve(p, sel, now)
}

// TotalStock возвращает эффективный остаток, для variable это сумма по вариантам.
func (p *Product) TotalStock() int32 {
	return p.model().totalStock(p)
}

// EffectivePrice возвращает цену товара с учётом действующей скидки.
func (p *Product) EffectivePrice(now time.Time) int64 {
	if p.Discount.ActiveAt(now) {
		return p.Discount.PriceMinor
	}
	return p.BasePriceMinor
}

func (simpleStock) resolve(p *Product, _ VariantSelector, now time.Time) (StockSlot, error) {
	return StockSlot{
		Key:        StockKey{ProductID: p.ID},
		Available:  p.Quantity,
		PriceMinor: p.EffectivePrice(now),
		Picture:    p.MainPicture,
	}, nil
}

func (simpleStock) totalStock(p *Product) int32 {
	return p.Quantity
}

func (variableStock) resolve(p *Product, sel VariantSelector, now time.Time) (StockSlot, error) {
	if sel.IsZero() {
		return StockSlot{}, &Error{Kind: ErrVariantSelectorRequired, Resource: "product", ResourceID: p.ID, Field: "variant"}
	}

	v, ok := p.findVariant(sel)
	if !ok {
		return StockSlot{}, NotFoundError(ErrVariantNotFound, "product", p.ID)
	}

	price := p.EffectivePrice(now)
	if v.PriceMinor != nil {
		price = *v.PriceMinor
	}
	picture := v.MainPicture
	if picture == "" {
		picture = p.MainPicture
	}
	attrs := v.Attributes

	return StockSlot{
		Key:        StockKey{ProductID: p.ID, VariantID: v.ID},
		Available:  v.Quantity,
		PriceMinor: price,
		SKU:        v.SKU,
		Picture:    picture,
		Attributes: &attrs,
	}, nil
}

func (variableStock) totalStock(p *Product) int32 {
	var total int32
	for _, v := range p.Variants {
		total += v.Quantity
	}
	return total
}

func (p *Product) findVariant(sel VariantSelector) (*Variant, bool) {
	if id := strings.TrimSpace(sel.VariantID); id != "" {
		return p.VariantByID(id)
	}
	for i := range p.Variants {
		if p.Variants[i].Attributes == *sel.Attributes {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// VariantByID ищет вариант по идентификатору.
func (p *Product) VariantByID(id string) (*Variant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// RecomputeAvailableAttributes пересобирает кэш цветов и размеров из вариантов.
func (p *Product) RecomputeAvailableAttributes() {
	colors := make(map[string]struct{})
	sizes := make(map[string]struct{})
	for _, v := range p.Variants {
		if v.Attributes.Color != "" {
			colors[v.Attributes.Color] = struct{}{}
		}
		if v.Attributes.Size != "" {
			sizes[v.Attributes.Size] = struct{}{}
		}
	}
	p.AvailableAttributes = AvailableAttributes{
		Colors: sortedKeys(colors),
		Sizes:  sortedKeys(sizes),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ValidateInvariants проверяет инварианты формы товара и возвращает список замечаний.
func (p *Product) ValidateInvariants() []error {
	var errs []error

	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, InvalidField("name", "is required"))
	}
	if !p.Shape.Valid() {
		errs = append(errs, InvalidField("shape", "must be simple or variable"))
	}
	if p.BasePriceMinor < 0 {
		errs = append(errs, InvalidField("base_price_minor", "must be non-negative"))
	}
	if p.Discount != nil && p.Discount.PriceMinor < 0 {
		errs = append(errs, InvalidField("discount.price_minor", "must be non-negative"))
	}
	if p.Quantity < 0 {
		errs = append(errs, InvalidField("quantity", "must be non-negative"))
	}

	switch p.Shape {
	case ProductShapeSimple:
		if len(p.Variants) > 0 {
			errs = append(errs, InvalidField("variants", "simple product cannot have variants"))
		}
	case ProductShapeVariable:
		if p.Quantity != 0 {
			errs = append(errs, InvalidField("quantity", "variable product stock lives in variants"))
		}
		seenIDs := make(map[string]struct{}, len(p.Variants))
		seenAttrs := make(map[VariantAttributes]struct{}, len(p.Variants))
		for _, v := range p.Variants {
			if v.ID == "" {
				errs = append(errs, InvalidField("variants.id", "is required"))
			}
			if _, dup := seenIDs[v.ID]; dup {
				errs = append(errs, InvalidField("variants.id", "must be unique"))
			}
			seenIDs[v.ID] = struct{}{}
			if _, dup := seenAttrs[v.Attributes]; dup {
				errs = append(errs, InvalidField("variants.attributes", "must be unique"))
			}
			seenAttrs[v.Attributes] = struct{}{}
			if v.Quantity < 0 {
				errs = append(errs, InvalidField("variants.quantity", "must be non-negative"))
			}
			if v.PriceMinor != nil && *v.PriceMinor < 0 {
				errs = append(errs, InvalidField("variants.price_minor", "must be non-negative"))
			}
		}
	}

	return errs
}

// Clone возвращает глубокую копию товара.
func (p Product) Clone() Product {
	out := p
	out.CategoryIDs = append([]string(nil), p.CategoryIDs...)
	out.Pictures = append([]string(nil), p.Pictures...)
	if p.Discount != nil {
		d := *p.Discount
		out.Discount = &d
	}
	if p.Variants != nil {
		out.Variants = make([]Variant, len(p.Variants))
		for i, v := range p.Variants {
			out.Variants[i] = v.clone()
		}
	}
	out.AvailableAttributes = AvailableAttributes{
		Colors: append([]string(nil), p.AvailableAttributes.Colors...),
		Sizes:  append([]string(nil), p.AvailableAttributes.Sizes...),
	}
	return out
}

func (v Variant) clone() Variant {
	out := v
	out.Pictures = append([]string(nil), v.Pictures...)
	if v.PriceMinor != nil {
		price := *v.PriceMinor
		out.PriceMinor = &price
	}
	return out
}
