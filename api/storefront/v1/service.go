package storefrontv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName: полное имя gRPC-сервиса.
const ServiceName = "storefront.v1.Storefront"

// Полные имена методов.
const (
	Storefront_CreateOrder_FullMethodName          = "/" + ServiceName + "/CreateOrder"
	Storefront_GetOrder_FullMethodName             = "/" + ServiceName + "/GetOrder"
	Storefront_ListOrders_FullMethodName           = "/" + ServiceName + "/ListOrders"
	Storefront_UpdateOrderStatus_FullMethodName    = "/" + ServiceName + "/UpdateOrderStatus"
	Storefront_GetOrderTimeline_FullMethodName     = "/" + ServiceName + "/GetOrderTimeline"
	Storefront_GetProduct_FullMethodName           = "/" + ServiceName + "/GetProduct"
	Storefront_ListProducts_FullMethodName         = "/" + ServiceName + "/ListProducts"
	Storefront_CreateProduct_FullMethodName        = "/" + ServiceName + "/CreateProduct"
	Storefront_AddVariant_FullMethodName           = "/" + ServiceName + "/AddVariant"
	Storefront_UpdateVariant_FullMethodName        = "/" + ServiceName + "/UpdateVariant"
	Storefront_RemoveVariant_FullMethodName        = "/" + ServiceName + "/RemoveVariant"
	Storefront_SetDiscount_FullMethodName          = "/" + ServiceName + "/SetDiscount"
	Storefront_ClearDiscount_FullMethodName        = "/" + ServiceName + "/ClearDiscount"
	Storefront_RestockProduct_FullMethodName       = "/" + ServiceName + "/RestockProduct"
	Storefront_AttachProductPicture_FullMethodName = "/" + ServiceName + "/AttachProductPicture"
	Storefront_RemoveProductPicture_FullMethodName = "/" + ServiceName + "/RemoveProductPicture"
	Storefront_CreateAdmin_FullMethodName          = "/" + ServiceName + "/CreateAdmin"
	Storefront_AssignAdminRole_FullMethodName      = "/" + ServiceName + "/AssignAdminRole"
	Storefront_SetAdminActive_FullMethodName       = "/" + ServiceName + "/SetAdminActive"
	Storefront_ListNotifications_FullMethodName    = "/" + ServiceName + "/ListNotifications"
	Storefront_MarkNotificationRead_FullMethodName = "/" + ServiceName + "/MarkNotificationRead"
)

// StorefrontServer: серверная часть сервиса.
type StorefrontServer interface {
	CreateOrder(context.Context, *CreateOrderRequest) (*CreateOrderResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*GetOrderResponse, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
	UpdateOrderStatus(context.Context, *UpdateOrderStatusRequest) (*UpdateOrderStatusResponse, error)
	GetOrderTimeline(context.Context, *GetOrderTimelineRequest) (*GetOrderTimelineResponse, error)
	GetProduct(context.Context, *GetProductRequest) (*ProductResponse, error)
	ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error)
	CreateProduct(context.Context, *CreateProductRequest) (*ProductResponse, error)
	AddVariant(context.Context, *AddVariantRequest) (*ProductResponse, error)
	UpdateVariant(context.Context, *UpdateVariantRequest) (*ProductResponse, error)
	RemoveVariant(context.Context, *RemoveVariantRequest) (*ProductResponse, error)
	SetDiscount(context.Context, *SetDiscountRequest) (*ProductResponse, error)
	ClearDiscount(context.Context, *ClearDiscountRequest) (*ProductResponse, error)
	RestockProduct(context.Context, *RestockProductRequest) (*ProductResponse, error)
	AttachProductPicture(context.Context, *AttachProductPictureRequest) (*ProductResponse, error)
	RemoveProductPicture(context.Context, *RemoveProductPictureRequest) (*ProductResponse, error)
	CreateAdmin(context.Context, *CreateAdminRequest) (*AdminResponse, error)
	AssignAdminRole(context.Context, *AssignAdminRoleRequest) (*AdminResponse, error)
	SetAdminActive(context.Context, *SetAdminActiveRequest) (*AdminResponse, error)
	ListNotifications(context.Context, *ListNotificationsRequest) (*ListNotificationsResponse, error)
	MarkNotificationRead(context.Context, *MarkNotificationReadRequest) (*MarkNotificationReadResponse, error)
	mustEmbedUnimplementedStorefrontServer()
}

// UnimplementedStorefrontServer должен встраиваться в реализации сервера.
type UnimplementedStorefrontServer struct{}

func (UnimplementedStorefrontServer) CreateOrder(context.Context, *CreateOrderRequest) (*CreateOrderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateOrder not implemented")
}

func (UnimplementedStorefrontServer) GetOrder(context.Context, *GetOrderRequest) (*GetOrderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetOrder not implemented")
}

func (UnimplementedStorefrontServer) ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListOrders not implemented")
}

func (UnimplementedStorefrontServer) UpdateOrderStatus(context.Context, *UpdateOrderStatusRequest) (*UpdateOrderStatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateOrderStatus not implemented")
}

func (UnimplementedStorefrontServer) GetOrderTimeline(context.Context, *GetOrderTimelineRequest) (*GetOrderTimelineResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetOrderTimeline not implemented")
}

func (UnimplementedStorefrontServer) GetProduct(context.Context, *GetProductRequest) (*ProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetProduct not implemented")
}

func (UnimplementedStorefrontServer) ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListProducts not implemented")
}

func (UnimplementedStorefrontServer) CreateProduct(context.Context, *CreateProductRequest) (*ProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateProduct not implemented")
}

func (UnimplementedStorefrontServer) AddVariant(context.Context, *AddVariantRequest) (*ProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AddVariant not implemented")
}

func (UnimplementedStorefrontServer) UpdateVariant(context.Context, *UpdateVariantRequest) (*ProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateVariant not implemented")
}

func (UnimplementedStorefrontServer) RemoveVariant(context.Context, *RemoveVariantRequest) (*ProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RemoveVariant not implemented")
}

func (UnimplementedStorefrontServer) SetDiscount(context.Context, *SetDiscountRequest) (*ProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SetDiscount not implemented")
}

func (UnimplementedStorefrontServer) ClearDiscount(context.Context, *ClearDiscountRequest) (*ProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ClearDiscount not implemented")
}

func (UnimplementedStorefrontServer) RestockProduct(context.Context, *RestockProductRequest) (*ProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RestockProduct not implemented")
}

func (UnimplementedStorefrontServer) AttachProductPicture(context.Context, *AttachProductPictureRequest) (*ProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AttachProductPicture not implemented")
}

func (UnimplementedStorefrontServer) RemoveProductPicture(context.Context, *RemoveProductPictureRequest) (*ProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RemoveProductPicture not implemented")
}

func (UnimplementedStorefrontServer) CreateAdmin(context.Context, *CreateAdminRequest) (*AdminResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateAdmin not implemented")
}

func (UnimplementedStorefrontServer) AssignAdminRole(context.Context, *AssignAdminRoleRequest) (*AdminResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AssignAdminRole not implemented")
}

func (UnimplementedStorefrontServer) SetAdminActive(context.Context, *SetAdminActiveRequest) (*AdminResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SetAdminActive not implemented")
}

func (UnimplementedStorefrontServer) ListNotifications(context.Context, *ListNotificationsRequest) (*ListNotificationsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListNotifications not implemented")
}

func (UnimplementedStorefrontServer) MarkNotificationRead(context.Context, *MarkNotificationReadRequest) (*MarkNotificationReadResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method MarkNotificationRead not implemented")
}

func (UnimplementedStorefrontServer) mustEmbedUnimplementedStorefrontServer() {}

// RegisterStorefrontServer регистрирует реализацию на gRPC-сервере.
func RegisterStorefrontServer(s grpc.ServiceRegistrar, srv StorefrontServer) {
	s.RegisterService(&Storefront_ServiceDesc, srv)
}

func unary[Req, Resp any](name string, call func(StorefrontServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(StorefrontServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(StorefrontServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Storefront_ServiceDesc: дескриптор сервиса для grpc.ServiceRegistrar.
var Storefront_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StorefrontServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateOrder", StorefrontServer.CreateOrder),
		unary("GetOrder", StorefrontServer.GetOrder),
		unary("ListOrders", StorefrontServer.ListOrders),
		unary("UpdateOrderStatus", StorefrontServer.UpdateOrderStatus),
		unary("GetOrderTimeline", StorefrontServer.GetOrderTimeline),
		unary("GetProduct", StorefrontServer.GetProduct),
		unary("ListProducts", StorefrontServer.ListProducts),
		unary("CreateProduct", StorefrontServer.CreateProduct),
		unary("AddVariant", StorefrontServer.AddVariant),
		unary("UpdateVariant", StorefrontServer.UpdateVariant),
		unary("RemoveVariant", StorefrontServer.RemoveVariant),
		unary("SetDiscount", StorefrontServer.SetDiscount),
		unary("ClearDiscount", StorefrontServer.ClearDiscount),
		unary("RestockProduct", StorefrontServer.RestockProduct),
		unary("AttachProductPicture", StorefrontServer.AttachProductPicture),
		unary("RemoveProductPicture", StorefrontServer.RemoveProductPicture),
		unary("CreateAdmin", StorefrontServer.CreateAdmin),
		unary("AssignAdminRole", StorefrontServer.AssignAdminRole),
		unary("SetAdminActive", StorefrontServer.SetAdminActive),
		unary("ListNotifications", StorefrontServer.ListNotifications),
		unary("MarkNotificationRead", StorefrontServer.MarkNotificationRead),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/storefront/v1",
}

// StorefrontClient: типизированный клиент сервиса. Все вызовы идут через JSON-кодек.
type StorefrontClient struct {
	cc grpc.ClientConnInterface
}

// NewStorefrontClient создаёт клиента поверх соединения.
func NewStorefrontClient(cc grpc.ClientConnInterface) *StorefrontClient {
	return &StorefrontClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, CallOptions(opts...)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StorefrontClient) CreateOrder(ctx context.Context, in *CreateOrderRequest, opts ...grpc.CallOption) (*CreateOrderResponse, error) {
	return invoke[CreateOrderResponse](ctx, c.cc, Storefront_CreateOrder_FullMethodName, in, opts)
}

func (c *StorefrontClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*GetOrderResponse, error) {
	return invoke[GetOrderResponse](ctx, c.cc, Storefront_GetOrder_FullMethodName, in, opts)
}

func (c *StorefrontClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	return invoke[ListOrdersResponse](ctx, c.cc, Storefront_ListOrders_FullMethodName, in, opts)
}

func (c *StorefrontClient) UpdateOrderStatus(ctx context.Context, in *UpdateOrderStatusRequest, opts ...grpc.CallOption) (*UpdateOrderStatusResponse, error) {
	return invoke[UpdateOrderStatusResponse](ctx, c.cc, Storefront_UpdateOrderStatus_FullMethodName, in, opts)
}

func (c *StorefrontClient) GetOrderTimeline(ctx context.Context, in *GetOrderTimelineRequest, opts ...grpc.CallOption) (*GetOrderTimelineResponse, error) {
	return invoke[GetOrderTimelineResponse](ctx, c.cc, Storefront_GetOrderTimeline_FullMethodName, in, opts)
}

func (c *StorefrontClient) GetProduct(ctx context.Context, in *GetProductRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, Storefront_GetProduct_FullMethodName, in, opts)
}

func (c *StorefrontClient) ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ListProductsResponse, error) {
	return invoke[ListProductsResponse](ctx, c.cc, Storefront_ListProducts_FullMethodName, in, opts)
}

func (c *StorefrontClient) CreateProduct(ctx context.Context, in *CreateProductRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, Storefront_CreateProduct_FullMethodName, in, opts)
}

func (c *StorefrontClient) AddVariant(ctx context.Context, in *AddVariantRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, Storefront_AddVariant_FullMethodName, in, opts)
}

func (c *StorefrontClient) UpdateVariant(ctx context.Context, in *UpdateVariantRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, Storefront_UpdateVariant_FullMethodName, in, opts)
}

func (c *StorefrontClient) RemoveVariant(ctx context.Context, in *RemoveVariantRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, Storefront_RemoveVariant_FullMethodName, in, opts)
}

func (c *StorefrontClient) SetDiscount(ctx context.Context, in *SetDiscountRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, Storefront_SetDiscount_FullMethodName, in, opts)
}

func (c *StorefrontClient) ClearDiscount(ctx context.Context, in *ClearDiscountRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, Storefront_ClearDiscount_FullMethodName, in, opts)
}

func (c *StorefrontClient) RestockProduct(ctx context.Context, in *RestockProductRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, Storefront_RestockProduct_FullMethodName, in, opts)
}

func (c *StorefrontClient) AttachProductPicture(ctx context.Context, in *AttachProductPictureRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, Storefront_AttachProductPicture_FullMethodName, in, opts)
}

func (c *StorefrontClient) RemoveProductPicture(ctx context.Context, in *RemoveProductPictureRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, Storefront_RemoveProductPicture_FullMethodName, in, opts)
}

func (c *StorefrontClient) CreateAdmin(ctx context.Context, in *CreateAdminRequest, opts ...grpc.CallOption) (*AdminResponse, error) {
	return invoke[AdminResponse](ctx, c.cc, Storefront_CreateAdmin_FullMethodName, in, opts)
}

func (c *StorefrontClient) AssignAdminRole(ctx context.Context, in *AssignAdminRoleRequest, opts ...grpc.CallOption) (*AdminResponse, error) {
	return invoke[AdminResponse](ctx, c.cc, Storefront_AssignAdminRole_FullMethodName, in, opts)
}

func (c *StorefrontClient) SetAdminActive(ctx context.Context, in *SetAdminActiveRequest, opts ...grpc.CallOption) (*AdminResponse, error) {
	return invoke[AdminResponse](ctx, c.cc, Storefront_SetAdminActive_FullMethodName, in, opts)
}

func (c *StorefrontClient) ListNotifications(ctx context.Context, in *ListNotificationsRequest, opts ...grpc.CallOption) (*ListNotificationsResponse, error) {
	return invoke[ListNotificationsResponse](ctx, c.cc, Storefront_ListNotifications_FullMethodName, in, opts)
}

func (c *StorefrontClient) MarkNotificationRead(ctx context.Context, in *MarkNotificationReadRequest, opts ...grpc.CallOption) (*MarkNotificationReadResponse, error) {
	return invoke[MarkNotificationReadResponse](ctx, c.cc, Storefront_MarkNotificationRead_FullMethodName, in, opts)
}
