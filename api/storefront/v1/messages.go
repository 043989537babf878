package storefrontv1

import "time"

type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type ShippingAddress struct {
	Address        string `json:"address"`
	City           string `json:"city"`
	PostalCode     string `json:"postal_code"`
	Country        string `json:"country,omitempty"`
	AdditionalInfo string `json:"additional_info,omitempty"`
}

// VariantSelector выбирает вариант по ID или по паре атрибутов.
type VariantSelector struct {
	VariantID string `json:"variant_id,omitempty"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}

type CartItem struct {
	ProductID string           `json:"product_id"`
	Quantity  int32            `json:"quantity"`
	Variant   *VariantSelector `json:"variant,omitempty"`
}

type CreateOrderRequest struct {
	Customer        Customer        `json:"customer"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	Items           []CartItem      `json:"items"`
	Notes           string          `json:"notes,omitempty"`
}

type OrderLine struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int32  `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	TotalMinor     int64  `json:"total_minor"`
	Picture        string `json:"picture,omitempty"`
	VariantID      string `json:"variant_id,omitempty"`
	Color          string `json:"color,omitempty"`
	Size           string `json:"size,omitempty"`
	SKU            string `json:"sku,omitempty"`
}

type StatusEntry struct {
	Status  string    `json:"status"`
	At      time.Time `json:"at"`
	Comment string    `json:"comment,omitempty"`
}

// Order: заказ в полной или сводной форме. В сводной форме (Summary=true)
// заполнены только идентификатор, номер, статус, сумма и даты.
type Order struct {
	ID         string    `json:"id"`
	Number     string    `json:"number"`
	Status     string    `json:"status"`
	TotalMinor int64     `json:"total_minor"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Summary    bool      `json:"summary,omitempty"`

	Customer        *Customer        `json:"customer,omitempty"`
	ShippingAddress *ShippingAddress `json:"shipping_address,omitempty"`
	Lines           []OrderLine      `json:"lines,omitempty"`
	History         []StatusEntry    `json:"history,omitempty"`
	PaymentMethod   string           `json:"payment_method,omitempty"`
	IsPaid          bool             `json:"is_paid,omitempty"`
	PaymentDate     *time.Time       `json:"payment_date,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	Version         int64            `json:"version,omitempty"`
}

type CreateOrderResponse struct {
	Order *Order `json:"order"`
}

type GetOrderRequest struct {
	OrderID string `json:"order_id"`
}

type GetOrderResponse struct {
	Order *Order `json:"order"`
}

type ListOrdersRequest struct {
	Status        string     `json:"status,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
	Limit         int32      `json:"limit,omitempty"`
	Offset        int32      `json:"offset,omitempty"`
}

type ListOrdersResponse struct {
	Orders []*Order `json:"orders"`
}

type UpdateOrderStatusRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Comment string `json:"comment,omitempty"`
}

type UpdateOrderStatusResponse struct {
	Order   *Order `json:"order"`
	Changed bool   `json:"changed"`
}

type GetOrderTimelineRequest struct {
	OrderID string `json:"order_id"`
}

type TimelineEvent struct {
	Type     string `json:"type"`
	Reason   string `json:"reason,omitempty"`
	UnixTime int64  `json:"unix_time"`
}

type GetOrderTimelineResponse struct {
	Events []TimelineEvent `json:"events"`
}

type Discount struct {
	PriceMinor int64      `json:"price_minor"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type Variant struct {
	ID          string   `json:"id"`
	SKU         string   `json:"sku"`
	Color       string   `json:"color,omitempty"`
	Size        string   `json:"size,omitempty"`
	Quantity    int32    `json:"quantity"`
	PriceMinor  *int64   `json:"price_minor,omitempty"`
	Pictures    []string `json:"pictures,omitempty"`
	MainPicture string   `json:"main_picture,omitempty"`
}

// Product: товар в полной или сокращённой форме (Summary=true).
type Product struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	MainPicture         string    `json:"main_picture,omitempty"`
	CompanyID           string    `json:"company_id,omitempty"`
	BasePriceMinor      int64     `json:"base_price_minor"`
	EffectivePriceMinor int64     `json:"effective_price_minor"`
	Discount            *Discount `json:"discount,omitempty"`
	Quantity            int32     `json:"quantity"`
	Summary             bool      `json:"summary,omitempty"`

	Shape           string     `json:"shape,omitempty"`
	Description     string     `json:"description,omitempty"`
	CategoryIDs     []string   `json:"category_ids,omitempty"`
	Pictures        []string   `json:"pictures,omitempty"`
	Variants        []Variant  `json:"variants,omitempty"`
	AvailableColors []string   `json:"available_colors,omitempty"`
	AvailableSizes  []string   `json:"available_sizes,omitempty"`
	Version         int64      `json:"version,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

type ProductResponse struct {
	Product *Product `json:"product"`
}

type GetProductRequest struct {
	ProductID string `json:"product_id"`
}

type ListProductsRequest struct {
	CompanyID string `json:"company_id,omitempty"`
	Limit     int32  `json:"limit,omitempty"`
	Offset    int32  `json:"offset,omitempty"`
}

type ListProductsResponse struct {
	Products []*Product `json:"products"`
}

type VariantInput struct {
	Color      string `json:"color,omitempty"`
	Size       string `json:"size,omitempty"`
	Quantity   int32  `json:"quantity"`
	PriceMinor *int64 `json:"price_minor,omitempty"`
	SKU        string `json:"sku,omitempty"`
}

type CreateProductRequest struct {
	Shape          string         `json:"shape,omitempty"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	CompanyID      string         `json:"company_id,omitempty"`
	CategoryIDs    []string       `json:"category_ids,omitempty"`
	BasePriceMinor int64          `json:"base_price_minor"`
	Quantity       int32          `json:"quantity,omitempty"`
	Variants       []VariantInput `json:"variants,omitempty"`
}

type AddVariantRequest struct {
	ProductID string       `json:"product_id"`
	Variant   VariantInput `json:"variant"`
}

// VariantAttributes заменяет пару атрибутов варианта целиком.
type VariantAttributes struct {
	Color string `json:"color,omitempty"`
	Size  string `json:"size,omitempty"`
}

type UpdateVariantRequest struct {
	ProductID  string             `json:"product_id"`
	VariantID  string             `json:"variant_id"`
	Attributes *VariantAttributes `json:"attributes,omitempty"`
	PriceMinor *int64             `json:"price_minor,omitempty"`
	ClearPrice bool               `json:"clear_price,omitempty"`
	SKU        *string            `json:"sku,omitempty"`
}

type RemoveVariantRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
}

type SetDiscountRequest struct {
	ProductID  string     `json:"product_id"`
	PriceMinor int64      `json:"price_minor"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type ClearDiscountRequest struct {
	ProductID string `json:"product_id"`
}

type RestockProductRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int32  `json:"quantity"`
}

// AttachProductPictureRequest загружает картинку; Content передаётся в base64.
type AttachProductPictureRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Filename  string `json:"filename"`
	Content   []byte `json:"content"`
}

type RemoveProductPictureRequest struct {
	ProductID string `json:"product_id"`
	Index     int32  `json:"index"`
}

type Admin struct {
	ID          string                     `json:"id"`
	Username    string                     `json:"username"`
	Role        string                     `json:"role"`
	Active      bool                       `json:"active"`
	Permissions map[string]map[string]bool `json:"permissions"`
	Version     int64                      `json:"version"`
	CreatedAt   time.Time                  `json:"created_at"`
}

type AdminResponse struct {
	Admin *Admin `json:"admin"`
}

type CreateAdminRequest struct {
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

type AssignAdminRoleRequest struct {
	AdminID string `json:"admin_id"`
	Role    string `json:"role"`
}

type SetAdminActiveRequest struct {
	AdminID string `json:"admin_id"`
	Active  bool   `json:"active"`
}

type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message,omitempty"`
	OrderID   string    `json:"order_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type ListNotificationsRequest struct {
	UnreadOnly bool  `json:"unread_only,omitempty"`
	Limit      int32 `json:"limit,omitempty"`
}

type ListNotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int32          `json:"unread_count"`
}

type MarkNotificationReadRequest struct {
	NotificationID string `json:"notification_id"`
}

type MarkNotificationReadResponse struct {
	UnreadCount int32 `json:"unread_count"`
}
