package grpcsvc

import (
	"strings"
	"time"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefront/v1"
	"github.com/vladislavdragonenkov/storefront/internal/access"
	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/ordering"
)

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func cartItems(items []storefrontv1.CartItem) []ordering.CartItem {
	out := make([]ordering.CartItem, 0, len(items))
	for _, item := range items {
		cart := ordering.CartItem{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
		}
		if item.Variant != nil {
			cart.Selector.VariantID = strings.TrimSpace(item.Variant.VariantID)
			attrs := domain.VariantAttributes{
				Color: strings.TrimSpace(item.Variant.Color),
				Size:  strings.TrimSpace(item.Variant.Size),
			}
			if !attrs.IsZero() {
				cart.Selector.Attributes = &attrs
			}
		}
		out = append(out, cart)
	}
	return out
}

func assembleRequest(req *storefrontv1.CreateOrderRequest) ordering.AssembleRequest {
	return ordering.AssembleRequest{
		Customer: domain.Customer{
			FirstName: req.Customer.FirstName,
			LastName:  req.Customer.LastName,
			Phone:     req.Customer.Phone,
		},
		Shipping: domain.ShippingAddress{
			Address:        req.ShippingAddress.Address,
			City:           req.ShippingAddress.City,
			PostalCode:     req.ShippingAddress.PostalCode,
			Country:        req.ShippingAddress.Country,
			AdditionalInfo: req.ShippingAddress.AdditionalInfo,
		},
		Items: cartItems(req.Items),
		Notes: req.Notes,
	}
}

func orderMessage(view access.OrderView) *storefrontv1.Order {
	out := &storefrontv1.Order{
		ID:         view.ID,
		Number:     view.Number,
		Status:     string(view.Status),
		TotalMinor: view.TotalMinor,
		CreatedAt:  view.CreatedAt,
		UpdatedAt:  view.UpdatedAt,
		Summary:    view.Detail == nil,
	}
	if view.Detail == nil {
		return out
	}

	d := view.Detail
	out.Customer = &storefrontv1.Customer{
		FirstName: d.Customer.FirstName,
		LastName:  d.Customer.LastName,
		Phone:     d.Customer.Phone,
	}
	out.ShippingAddress = &storefrontv1.ShippingAddress{
		Address:        d.Shipping.Address,
		City:           d.Shipping.City,
		PostalCode:     d.Shipping.PostalCode,
		Country:        d.Shipping.Country,
		AdditionalInfo: d.Shipping.AdditionalInfo,
	}
	out.Lines = make([]storefrontv1.OrderLine, 0, len(d.Lines))
	for _, line := range d.Lines {
		msg := storefrontv1.OrderLine{
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			Quantity:       line.Quantity,
			UnitPriceMinor: line.UnitPriceMinor,
			TotalMinor:     line.TotalMinor,
			Picture:        line.Picture,
			VariantID:      line.VariantID,
			SKU:            line.SKU,
		}
		if line.Variant != nil {
			msg.Color = line.Variant.Color
			msg.Size = line.Variant.Size
		}
		out.Lines = append(out.Lines, msg)
	}
	out.History = make([]storefrontv1.StatusEntry, 0, len(d.History))
	for _, entry := range d.History {
		out.History = append(out.History, storefrontv1.StatusEntry{
			Status:  string(entry.Status),
			At:      entry.At,
			Comment: entry.Comment,
		})
	}
	out.PaymentMethod = string(d.PaymentMethod)
	out.IsPaid = d.IsPaid
	out.PaymentDate = optionalTime(d.PaymentDate)
	out.Notes = d.Notes
	out.Version = d.Version
	return out
}

func orderMessages(views []access.OrderView) []*storefrontv1.Order {
	out := make([]*storefrontv1.Order, 0, len(views))
	for _, view := range views {
		out = append(out, orderMessage(view))
	}
	return out
}

func productMessage(view access.ProductView) *storefrontv1.Product {
	out := &storefrontv1.Product{
		ID:                  view.ID,
		Name:                view.Name,
		MainPicture:         view.MainPicture,
		CompanyID:           view.CompanyID,
		BasePriceMinor:      view.BasePriceMinor,
		EffectivePriceMinor: view.EffectivePriceMinor,
		Quantity:            view.Quantity,
		Summary:             view.Detail == nil,
	}
	if view.Discount != nil {
		out.Discount = &storefrontv1.Discount{
			PriceMinor: view.Discount.PriceMinor,
			ExpiresAt:  optionalTime(view.Discount.ExpiresAt),
		}
	}
	if view.Detail == nil {
		return out
	}

	d := view.Detail
	out.Shape = string(d.Shape)
	out.Description = d.Description
	out.CategoryIDs = d.CategoryIDs
	out.Pictures = d.Pictures
	for _, v := range d.Variants {
		out.Variants = append(out.Variants, storefrontv1.Variant{
			ID:          v.ID,
			SKU:         v.SKU,
			Color:       v.Attributes.Color,
			Size:        v.Attributes.Size,
			Quantity:    v.Quantity,
			PriceMinor:  v.PriceMinor,
			Pictures:    v.Pictures,
			MainPicture: v.MainPicture,
		})
	}
	out.AvailableColors = d.AvailableAttributes.Colors
	out.AvailableSizes = d.AvailableAttributes.Sizes
	out.Version = d.Version
	out.CreatedAt = optionalTime(d.CreatedAt)
	out.UpdatedAt = optionalTime(d.UpdatedAt)
	return out
}

func variantInput(in storefrontv1.VariantInput) catalog.VariantInput {
	return catalog.VariantInput{
		Attributes: domain.VariantAttributes{
			Color: strings.TrimSpace(in.Color),
			Size:  strings.TrimSpace(in.Size),
		},
		Quantity:   in.Quantity,
		PriceMinor: in.PriceMinor,
		SKU:        strings.TrimSpace(in.SKU),
	}
}

func adminMessage(a domain.Admin) *storefrontv1.Admin {
	perms := make(map[string]map[string]bool, len(a.Permissions))
	for resource, actions := range a.Permissions {
		inner := make(map[string]bool, len(actions))
		for action, allowed := range actions {
			inner[string(action)] = allowed
		}
		perms[string(resource)] = inner
	}
	return &storefrontv1.Admin{
		ID:          a.ID,
		Username:    a.Username,
		Role:        string(a.Role),
		Active:      a.Active,
		Permissions: perms,
		Version:     a.Version,
		CreatedAt:   a.CreatedAt,
	}
}

func notificationMessages(items []domain.Notification) []storefrontv1.Notification {
	out := make([]storefrontv1.Notification, 0, len(items))
	for _, n := range items {
		out = append(out, storefrontv1.Notification{
			ID:        n.ID,
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			OrderID:   n.OrderID,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}
