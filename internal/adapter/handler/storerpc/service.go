package storerpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName           = "shoestore.StoreService"
	SubmitOrderFullMethod = "/shoestore.StoreService/SubmitOrder"
	ListOrdersFullMethod  = "/shoestore.StoreService/ListOrders"
	DeleteOrderFullMethod = "/shoestore.StoreService/DeleteOrder"
	GetStockFullMethod    = "/shoestore.StoreService/GetStock"
)

type StoreServiceServer interface {
	SubmitOrder(context.Context, *SubmitOrderRequest) (*SubmitOrderResponse, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
	DeleteOrder(context.Context, *DeleteOrderRequest) (*DeleteOrderResponse, error)
	GetStock(context.Context, *GetStockRequest) (*GetStockResponse, error)
}

// UnimplementedStoreServiceServer can be embedded to keep servers
// compiling when methods are added.
type UnimplementedStoreServiceServer struct{}

func (UnimplementedStoreServiceServer) SubmitOrder(context.Context, *SubmitOrderRequest) (*SubmitOrderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SubmitOrder not implemented")
}

func (UnimplementedStoreServiceServer) ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListOrders not implemented")
}

func (UnimplementedStoreServiceServer) DeleteOrder(context.Context, *DeleteOrderRequest) (*DeleteOrderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteOrder not implemented")
}

func (UnimplementedStoreServiceServer) GetStock(context.Context, *GetStockRequest) (*GetStockResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetStock not implemented")
}

func RegisterStoreServiceServer(s grpc.ServiceRegistrar, srv StoreServiceServer) {
	s.RegisterService(&StoreService_ServiceDesc, srv)
}

func unary[Req any, Resp any](method string, call func(StoreServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StoreServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(StoreServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var StoreService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StoreServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SubmitOrder",
			Handler:    unary(SubmitOrderFullMethod, StoreServiceServer.SubmitOrder),
		},
		{
			MethodName: "ListOrders",
			Handler:    unary(ListOrdersFullMethod, StoreServiceServer.ListOrders),
		},
		{
			MethodName: "DeleteOrder",
			Handler:    unary(DeleteOrderFullMethod, StoreServiceServer.DeleteOrder),
		},
		{
			MethodName: "GetStock",
			Handler:    unary(GetStockFullMethod, StoreServiceServer.GetStock),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shoestore/store.proto",
}

type StoreServiceClient interface {
	SubmitOrder(ctx context.Context, in *SubmitOrderRequest, opts ...grpc.CallOption) (*SubmitOrderResponse, error)
	ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error)
	DeleteOrder(ctx context.Context, in *DeleteOrderRequest, opts ...grpc.CallOption) (*DeleteOrderResponse, error)
	GetStock(ctx context.Context, in *GetStockRequest, opts ...grpc.CallOption) (*GetStockResponse, error)
}

type storeServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewStoreServiceClient(cc grpc.ClientConnInterface) StoreServiceClient {
	return &storeServiceClient{cc}
}

func (c *storeServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(Codec)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *storeServiceClient) SubmitOrder(ctx context.Context, in *SubmitOrderRequest, opts ...grpc.CallOption) (*SubmitOrderResponse, error) {
	out := new(SubmitOrderResponse)
	if err := c.invoke(ctx, SubmitOrderFullMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storeServiceClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	out := new(ListOrdersResponse)
	if err := c.invoke(ctx, ListOrdersFullMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storeServiceClient) DeleteOrder(ctx context.Context, in *DeleteOrderRequest, opts ...grpc.CallOption) (*DeleteOrderResponse, error) {
	out := new(DeleteOrderResponse)
	if err := c.invoke(ctx, DeleteOrderFullMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storeServiceClient) GetStock(ctx context.Context, in *GetStockRequest, opts ...grpc.CallOption) (*GetStockResponse, error) {
	out := new(GetStockResponse)
	if err := c.invoke(ctx, GetStockFullMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
