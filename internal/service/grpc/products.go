package grpcsvc

import (
	"bytes"
	"context"
	"time"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefront/v1"
	"github.com/vladislavdragonenkov/storefront/internal/access"
	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// GetProduct возвращает товар в форме, разрешённой роли актора.
func (s *Server) GetProduct(ctx context.Context, req *storefrontv1.GetProductRequest) (*storefrontv1.ProductResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	snap, err := s.authorize(ctx, "GetProduct", domain.ResourceProducts, domain.ActionRead)
	if err != nil {
		return nil, err
	}
	if err := requireID("product_id", req.ProductID); err != nil {
		return nil, s.fail("GetProduct", err)
	}

	product, err := s.catalog.Get(ctx, req.ProductID)
	if err != nil {
		return nil, s.fail("GetProduct", err)
	}
	return s.productResponse(snap, product), nil
}

// ListProducts возвращает страницу товаров.
func (s *Server) ListProducts(ctx context.Context, req *storefrontv1.ListProductsRequest) (*storefrontv1.ListProductsResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	snap, err := s.authorize(ctx, "ListProducts", domain.ResourceProducts, domain.ActionRead)
	if err != nil {
		return nil, err
	}
	limit, offset, err := page(req.Limit, req.Offset)
	if err != nil {
		return nil, s.fail("ListProducts", err)
	}

	products, err := s.catalog.List(ctx, domain.ProductFilter{CompanyID: req.CompanyID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, s.fail("ListProducts", err)
	}
	views := access.ProjectProducts(snap.Role, products, s.now())
	out := make([]*storefrontv1.Product, 0, len(views))
	for _, view := range views {
		out = append(out, productMessage(view))
	}
	return &storefrontv1.ListProductsResponse{Products: out}, nil
}

// CreateProduct заводит товар с начальными остатками.
func (s *Server) CreateProduct(ctx context.Context, req *storefrontv1.CreateProductRequest) (*storefrontv1.ProductResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	snap, err := s.authorize(ctx, "CreateProduct", domain.ResourceProducts, domain.ActionCreate)
	if err != nil {
		return nil, err
	}

	in := catalog.ProductInput{
		Shape:          domain.ProductShape(req.Shape),
		Name:           req.Name,
		Description:    req.Description,
		CompanyID:      req.CompanyID,
		CategoryIDs:    req.CategoryIDs,
		BasePriceMinor: req.BasePriceMinor,
		Quantity:       req.Quantity,
	}
	for _, v := range req.Variants {
		in.Variants = append(in.Variants, variantInput(v))
	}

	product, err := s.catalog.CreateProduct(ctx, in)
	if err != nil {
		return nil, s.fail("CreateProduct", err)
	}
	return s.productResponse(snap, product), nil
}

// AddVariant добавляет вариант вариативному товару.
func (s *Server) AddVariant(ctx context.Context, req *storefrontv1.AddVariantRequest) (*storefrontv1.ProductResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	return s.updateProduct(ctx, "AddVariant", req.ProductID, func(ctx context.Context) (domain.Product, error) {
		return s.catalog.AddVariant(ctx, req.ProductID, variantInput(req.Variant))
	})
}

// UpdateVariant частично меняет вариант.
func (s *Server) UpdateVariant(ctx context.Context, req *storefrontv1.UpdateVariantRequest) (*storefrontv1.ProductResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	return s.updateProduct(ctx, "UpdateVariant", req.ProductID, func(ctx context.Context) (domain.Product, error) {
		if err := requireID("variant_id", req.VariantID); err != nil {
			return domain.Product{}, err
		}
		patch := catalog.VariantPatch{
			PriceMinor: req.PriceMinor,
			ClearPrice: req.ClearPrice,
			SKU:        req.SKU,
		}
		if req.Attributes != nil {
			patch.Attributes = &domain.VariantAttributes{Color: req.Attributes.Color, Size: req.Attributes.Size}
		}
		return s.catalog.UpdateVariant(ctx, req.ProductID, req.VariantID, patch)
	})
}

// RemoveVariant удаляет вариант вместе с его остатком.
func (s *Server) RemoveVariant(ctx context.Context, req *storefrontv1.RemoveVariantRequest) (*storefrontv1.ProductResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	return s.updateProduct(ctx, "RemoveVariant", req.ProductID, func(ctx context.Context) (domain.Product, error) {
		if err := requireID("variant_id", req.VariantID); err != nil {
			return domain.Product{}, err
		}
		return s.catalog.RemoveVariant(ctx, req.ProductID, req.VariantID)
	})
}

// SetDiscount назначает скидочную цену; без expires_at скидка бессрочная.
func (s *Server) SetDiscount(ctx context.Context, req *storefrontv1.SetDiscountRequest) (*storefrontv1.ProductResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	return s.updateProduct(ctx, "SetDiscount", req.ProductID, func(ctx context.Context) (domain.Product, error) {
		var expiresAt time.Time
		if req.ExpiresAt != nil {
			expiresAt = *req.ExpiresAt
		}
		return s.catalog.SetDiscount(ctx, req.ProductID, req.PriceMinor, expiresAt)
	})
}

// ClearDiscount снимает скидку.
func (s *Server) ClearDiscount(ctx context.Context, req *storefrontv1.ClearDiscountRequest) (*storefrontv1.ProductResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	return s.updateProduct(ctx, "ClearDiscount", req.ProductID, func(ctx context.Context) (domain.Product, error) {
		return s.catalog.ClearDiscount(ctx, req.ProductID)
	})
}

// RestockProduct пополняет остаток товара или варианта.
func (s *Server) RestockProduct(ctx context.Context, req *storefrontv1.RestockProductRequest) (*storefrontv1.ProductResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	return s.updateProduct(ctx, "RestockProduct", req.ProductID, func(ctx context.Context) (domain.Product, error) {
		key := domain.StockKey{ProductID: req.ProductID, VariantID: req.VariantID}
		return s.catalog.Restock(ctx, key, req.Quantity)
	})
}

// AttachProductPicture загружает картинку товара или варианта.
func (s *Server) AttachProductPicture(ctx context.Context, req *storefrontv1.AttachProductPictureRequest) (*storefrontv1.ProductResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	return s.updateProduct(ctx, "AttachProductPicture", req.ProductID, func(ctx context.Context) (domain.Product, error) {
		if len(req.Content) == 0 {
			return domain.Product{}, domain.InvalidField("content", "is required")
		}
		return s.catalog.AttachPicture(ctx, req.ProductID, req.VariantID, req.Filename, bytes.NewReader(req.Content))
	})
}

// RemoveProductPicture удаляет картинку товара по индексу.
func (s *Server) RemoveProductPicture(ctx context.Context, req *storefrontv1.RemoveProductPictureRequest) (*storefrontv1.ProductResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	return s.updateProduct(ctx, "RemoveProductPicture", req.ProductID, func(ctx context.Context) (domain.Product, error) {
		return s.catalog.RemovePicture(ctx, req.ProductID, int(req.Index))
	})
}

// updateProduct реализует общий путь изменений товара (products/update), проверка
// product_id, мутация и ответ в форме роли.
func (s *Server) updateProduct(
	ctx context.Context,
	operation string,
	productID string,
	mutate func(context.Context) (domain.Product, error),
) (*storefrontv1.ProductResponse, error) {
	snap, err := s.authorize(ctx, operation, domain.ResourceProducts, domain.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if err := requireID("product_id", productID); err != nil {
		return nil, s.fail(operation, err)
	}

	product, err := mutate(ctx)
	if err != nil {
		return nil, s.fail(operation, err)
	}
	return s.productResponse(snap, product), nil
}

func (s *Server) productResponse(snap domain.PermissionSnapshot, product domain.Product) *storefrontv1.ProductResponse {
	return &storefrontv1.ProductResponse{Product: productMessage(access.ProjectProduct(snap.Role, product, s.now()))}
}
