package grpcsvc

import (
	"context"
	"strings"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefront/v1"
	"github.com/vladislavdragonenkov/storefront/internal/access"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CreateOrder оформляет заказ из корзины. Метод публичный; с заголовком
// idempotency-key повтор того же запроса возвращает сохранённый ответ.
func (s *Server) CreateOrder(ctx context.Context, req *storefrontv1.CreateOrderRequest) (*storefrontv1.CreateOrderResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}

	return withIdempotency(
		s,
		ctx,
		storefrontv1.Storefront_CreateOrder_FullMethodName,
		req,
		func(ctx context.Context) (*storefrontv1.CreateOrderResponse, error) {
			order, err := s.assembler.Assemble(ctx, assembleRequest(req))
			if err != nil {
				return nil, s.fail("CreateOrder", err)
			}
			return &storefrontv1.CreateOrderResponse{Order: orderMessage(access.FullOrder(order))}, nil
		},
	)
}

// GetOrder возвращает заказ в форме, разрешённой роли актора.
func (s *Server) GetOrder(ctx context.Context, req *storefrontv1.GetOrderRequest) (*storefrontv1.GetOrderResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	snap, err := s.authorize(ctx, "GetOrder", domain.ResourceOrders, domain.ActionRead)
	if err != nil {
		return nil, err
	}

	order, err := s.loadOrder(ctx, req.OrderID, "GetOrder")
	if err != nil {
		return nil, err
	}
	return &storefrontv1.GetOrderResponse{Order: orderMessage(access.ProjectOrder(snap.Role, order))}, nil
}

// ListOrders возвращает заказы по фильтру, новые первыми.
func (s *Server) ListOrders(ctx context.Context, req *storefrontv1.ListOrdersRequest) (*storefrontv1.ListOrdersResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	snap, err := s.authorize(ctx, "ListOrders", domain.ResourceOrders, domain.ActionRead)
	if err != nil {
		return nil, err
	}

	limit, offset, err := page(req.Limit, req.Offset)
	if err != nil {
		return nil, s.fail("ListOrders", err)
	}
	filter := domain.OrderFilter{Limit: limit, Offset: offset}
	if strings.TrimSpace(req.Status) != "" {
		if filter.Status, err = domain.ParseOrderStatus(req.Status); err != nil {
			return nil, s.fail("ListOrders", err)
		}
	}
	if req.CreatedAfter != nil {
		filter.CreatedAfter = *req.CreatedAfter
	}
	if req.CreatedBefore != nil {
		filter.CreatedBefore = *req.CreatedBefore
	}

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, s.fail("ListOrders", err)
	}
	return &storefrontv1.ListOrdersResponse{Orders: orderMessages(access.ProjectOrders(snap.Role, orders))}, nil
}

// UpdateOrderStatus переводит заказ в новый статус.
func (s *Server) UpdateOrderStatus(ctx context.Context, req *storefrontv1.UpdateOrderStatusRequest) (*storefrontv1.UpdateOrderStatusResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	snap, err := s.authorize(ctx, "UpdateOrderStatus", domain.ResourceOrders, domain.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if err := requireID("order_id", req.OrderID); err != nil {
		return nil, s.fail("UpdateOrderStatus", err)
	}
	next, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, s.fail("UpdateOrderStatus", err)
	}

	order, changed, err := s.orders.Transition(ctx, req.OrderID, next, req.Comment)
	if err != nil {
		return nil, s.fail("UpdateOrderStatus", err)
	}
	return &storefrontv1.UpdateOrderStatusResponse{
		Order:   orderMessage(access.ProjectOrder(snap.Role, order)),
		Changed: changed,
	}, nil
}

// GetOrderTimeline возвращает события жизненного цикла заказа.
func (s *Server) GetOrderTimeline(ctx context.Context, req *storefrontv1.GetOrderTimelineRequest) (*storefrontv1.GetOrderTimelineResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	if _, err := s.authorize(ctx, "GetOrderTimeline", domain.ResourceOrders, domain.ActionRead); err != nil {
		return nil, err
	}

	order, err := s.loadOrder(ctx, req.OrderID, "GetOrderTimeline")
	if err != nil {
		return nil, err
	}
	resp := &storefrontv1.GetOrderTimelineResponse{Events: []storefrontv1.TimelineEvent{}}
	if s.timeline == nil {
		return resp, nil
	}

	events, err := s.timeline.List(ctx, order.ID)
	if err != nil {
		return nil, s.fail("GetOrderTimeline", err)
	}
	for _, event := range events {
		resp.Events = append(resp.Events, storefrontv1.TimelineEvent{
			Type:     event.Type,
			Reason:   event.Reason,
			UnixTime: event.Occurred.Unix(),
		})
	}
	return resp, nil
}

func (s *Server) loadOrder(ctx context.Context, orderID, operation string) (domain.Order, error) {
	if err := requireID("order_id", orderID); err != nil {
		return domain.Order{}, s.fail(operation, err)
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.fail(operation, err)
	}
	return order, nil
}
