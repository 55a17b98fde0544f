package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/shoe-store/internal/adapter/auth"
	"github.com/rl1809/shoe-store/internal/adapter/handler/storerpc"
	"github.com/rl1809/shoe-store/internal/core/domain"
	"github.com/rl1809/shoe-store/internal/core/service"
)

type GRPCHandler struct {
	storerpc.UnimplementedStoreServiceServer
	orders    *service.OrderService
	inventory *service.InventoryService
	logger    *slog.Logger
}

func NewGRPCHandler(orders *service.OrderService, inventory *service.InventoryService, logger *slog.Logger) *GRPCHandler {
	return &GRPCHandler{orders: orders, inventory: inventory, logger: logger}
}

func (h *GRPCHandler) SubmitOrder(ctx context.Context, req *storerpc.SubmitOrderRequest) (*storerpc.SubmitOrderResponse, error) {
	lines := make([]domain.OrderLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, domain.OrderLine{
			ProductID: l.ProductID,
			Price:     l.Price,
			Size:      l.Size,
			Quantity:  int(l.Quantity),
		})
	}

	order, err := h.orders.Submit(ctx, service.CheckoutRequest{
		RequestID: req.RequestId,
		Contact: domain.Contact{
			Name:    req.Contact.Name,
			Email:   req.Contact.Email,
			Phone:   req.Contact.Phone,
			Address: req.Contact.Address,
			City:    req.Contact.City,
			State:   req.Contact.State,
			ZipCode: req.Contact.ZipCode,
		},
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		CouponCode:    req.CouponCode,
		Lines:         lines,
	})
	if err != nil {
		// rejections the caller can act on are answers, not RPC failures
		switch service.KindOf(err) {
		case service.KindDuplicate:
			return &storerpc.SubmitOrderResponse{Message: "duplicate request"}, nil
		case service.KindInsufficientStock:
			resp := &storerpc.SubmitOrderResponse{Message: "sold out"}
			var shortage *service.StockShortageError
			if errors.As(err, &shortage) {
				for _, s := range shortage.Shortages {
					resp.Shortages = append(resp.Shortages, storerpc.Shortage{
						ProductID: s.Line.ProductID,
						Size:      s.Line.Size,
						Requested: int32(s.Line.Quantity),
						Available: int32(s.Available),
					})
				}
			}
			return resp, nil
		}
		return nil, h.status(err)
	}

	return &storerpc.SubmitOrderResponse{
		Success: true,
		Message: "order placed successfully",
		OrderId: order.ID,
	}, nil
}

func (h *GRPCHandler) ListOrders(ctx context.Context, _ *storerpc.ListOrdersRequest) (*storerpc.ListOrdersResponse, error) {
	orders, err := h.orders.List(ctx)
	if err != nil {
		return nil, h.status(err)
	}

	resp := &storerpc.ListOrdersResponse{Orders: make([]storerpc.Order, 0, len(orders))}
	for _, o := range orders {
		out := storerpc.Order{
			Id:            o.ID,
			Email:         o.Contact.Email,
			Status:        string(o.Status),
			PaymentMethod: string(o.PaymentMethod),
			PaymentStatus: string(o.PaymentStatus),
			Total:         o.Total,
			OrderedAtUnix: o.OrderedAt.Unix(),
		}
		for _, l := range o.Lines {
			out.Lines = append(out.Lines, storerpc.OrderLine{
				ProductID: l.ProductID,
				Price:     l.Price,
				Size:      l.Size,
				Quantity:  int32(l.Quantity),
			})
		}
		resp.Orders = append(resp.Orders, out)
	}
	return resp, nil
}

func (h *GRPCHandler) DeleteOrder(ctx context.Context, req *storerpc.DeleteOrderRequest) (*storerpc.DeleteOrderResponse, error) {
	if err := h.orders.Delete(ctx, req.OrderId); err != nil {
		return nil, h.status(err)
	}
	return &storerpc.DeleteOrderResponse{Success: true}, nil
}

func (h *GRPCHandler) GetStock(ctx context.Context, req *storerpc.GetStockRequest) (*storerpc.GetStockResponse, error) {
	sizes, err := h.inventory.ReadStock(ctx, req.ProductId)
	if err != nil {
		return nil, h.status(err)
	}

	resp := &storerpc.GetStockResponse{ProductId: req.ProductId, Sizes: make([]storerpc.SizeStock, 0, len(sizes))}
	for _, s := range sizes {
		resp.Sizes = append(resp.Sizes, storerpc.SizeStock{Size: s.Size, Stock: int32(s.Stock)})
	}
	return resp, nil
}

func (h *GRPCHandler) status(err error) error {
	switch service.KindOf(err) {
	case service.KindValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case service.KindUnauthenticated:
		return status.Error(codes.Unauthenticated, "not authenticated")
	case service.KindForbidden:
		return status.Error(codes.PermissionDenied, "admin role required")
	case service.KindNotFound:
		return status.Error(codes.NotFound, "not found")
	case service.KindInsufficientStock:
		return status.Error(codes.FailedPrecondition, "sold out")
	case service.KindDuplicate:
		return status.Error(codes.AlreadyExists, "duplicate request")
	case service.KindConflict:
		return status.Error(codes.Aborted, "concurrent update, try again")
	}
	h.logger.Error("rpc failed", "err", err)
	return status.Error(codes.Internal, "internal error")
}

// AuthInterceptor verifies an optional "authorization: Bearer <jwt>"
// metadata entry and attaches the identity to the call context.
func AuthInterceptor(verifier *auth.Verifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
			return handler(ctx, req)
		}

		token, err := auth.BearerToken(values[0])
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid authorization metadata")
		}
		identity, err := verifier.Verify(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return handler(auth.WithIdentity(ctx, identity), req)
	}
}
