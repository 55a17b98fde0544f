package handler

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/shoe-store/internal/adapter/auth"
	"github.com/rl1809/shoe-store/internal/adapter/handler/storerpc"
	"github.com/rl1809/shoe-store/internal/core/domain"
	"github.com/rl1809/shoe-store/internal/core/service"
	"github.com/rl1809/shoe-store/internal/port/porttest"
)

const bufSize = 1024 * 1024

type GRPCHandlerSuite struct {
	suite.Suite

	leaks    goleak.Option
	store    *porttest.Store
	verifier *auth.Verifier
	listener *bufconn.Listener
	server   *grpc.Server
	conn     *grpc.ClientConn
	client   storerpc.StoreServiceClient
}

func TestGRPCHandlerSuite(t *testing.T) {
	suite.Run(t, new(GRPCHandlerSuite))
}

func (s *GRPCHandlerSuite) SetupSuite() {
	s.leaks = goleak.IgnoreCurrent()
}

func (s *GRPCHandlerSuite) SetupTest() {
	logger := discard()
	s.store = porttest.NewStore(testShoe("P", 100, domain.SizeStock{Size: 9, Stock: 2}))
	s.store.AddUser("admin@x.com", domain.RoleAdmin)
	s.verifier = auth.NewVerifier(testSecret, "")

	repos := service.Repositories{Shoes: s.store, Orders: s.store, Users: s.store}
	identity := auth.ContextProvider{}
	feed := service.NewStockFeed(16, logger)
	orders := service.NewOrderService(repos, porttest.NewCache(), identity, feed, service.OrderConfig{
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		Timeout:     time.Second,
		Pricing:     service.DefaultPricing(),
	}, logger)
	inventory := service.NewInventoryService(repos, porttest.Blobs{}, identity, feed, time.Second, logger)

	s.listener = bufconn.Listen(bufSize)
	s.server = grpc.NewServer(grpc.UnaryInterceptor(AuthInterceptor(s.verifier)))
	storerpc.RegisterStoreServiceServer(s.server, NewGRPCHandler(orders, inventory, logger))
	go s.server.Serve(s.listener)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return s.listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	s.Require().NoError(err)
	s.conn = conn
	s.client = storerpc.NewStoreServiceClient(conn)
}

func (s *GRPCHandlerSuite) TearDownTest() {
	s.conn.Close()
	s.server.GracefulStop()
	s.listener.Close()
}

func (s *GRPCHandlerSuite) TearDownSuite() {
	goleak.VerifyNone(s.T(), s.leaks,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("google.golang.org/grpc/internal/transport.(*controlBuffer).get"),
	)
}

func (s *GRPCHandlerSuite) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	s.T().Cleanup(cancel)
	return ctx
}

func (s *GRPCHandlerSuite) asAdmin(ctx context.Context) context.Context {
	token, err := s.verifier.Issue(domain.Identity{Subject: "admin", Email: "admin@x.com"}, time.Hour)
	s.Require().NoError(err)
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func (s *GRPCHandlerSuite) submit(requestID string, quantity int32) *storerpc.SubmitOrderResponse {
	resp, err := s.client.SubmitOrder(s.ctx(), &storerpc.SubmitOrderRequest{
		RequestId: requestID,
		Contact:   storerpc.Contact{Name: "Ann", Email: "a@x.com"},
		Lines:     []storerpc.OrderLine{{ProductID: "P", Price: decimal.NewFromInt(100), Size: 9, Quantity: quantity}},
	})
	s.Require().NoError(err)
	return resp
}

func (s *GRPCHandlerSuite) TestSubmitOrder_Success() {
	resp := s.submit("r1", 1)
	s.True(resp.GetSuccess())
	s.NotEmpty(resp.GetOrderId())

	stock, err := s.client.GetStock(s.ctx(), &storerpc.GetStockRequest{ProductId: "P"})
	s.Require().NoError(err)
	s.Equal([]storerpc.SizeStock{{Size: 9, Stock: 1}}, stock.Sizes)
}

func (s *GRPCHandlerSuite) TestSubmitOrder_SoldOut() {
	resp := s.submit("r1", 3)
	s.False(resp.GetSuccess())
	s.Equal("sold out", resp.Message)
	s.Equal([]storerpc.Shortage{{ProductID: "P", Size: 9, Requested: 3, Available: 2}}, resp.Shortages)
	s.Zero(s.store.OrderCount())
}

func (s *GRPCHandlerSuite) TestSubmitOrder_Duplicate() {
	s.True(s.submit("same", 1).GetSuccess())

	resp := s.submit("same", 1)
	s.False(resp.GetSuccess())
	s.Equal("duplicate request", resp.Message)
	s.Equal(1, s.store.OrderCount())
}

func (s *GRPCHandlerSuite) TestSubmitOrder_InvalidArgument() {
	_, err := s.client.SubmitOrder(s.ctx(), &storerpc.SubmitOrderRequest{Contact: storerpc.Contact{Email: "a@x.com"}})
	s.Equal(codes.InvalidArgument, status.Code(err))
}

func (s *GRPCHandlerSuite) TestListOrders_RequiresIdentity() {
	_, err := s.client.ListOrders(s.ctx(), &storerpc.ListOrdersRequest{})
	s.Equal(codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(s.ctx(), "authorization", "Bearer nonsense")
	_, err = s.client.ListOrders(ctx, &storerpc.ListOrdersRequest{})
	s.Equal(codes.Unauthenticated, status.Code(err))
}

func (s *GRPCHandlerSuite) TestAdminListAndDelete() {
	id := s.submit("r1", 1).GetOrderId()

	list, err := s.client.ListOrders(s.asAdmin(s.ctx()), &storerpc.ListOrdersRequest{})
	s.Require().NoError(err)
	s.Require().Len(list.Orders, 1)
	s.Equal(id, list.Orders[0].Id)
	s.Equal("a@x.com", list.Orders[0].Email)
	s.True(list.Orders[0].Total.Equal(decimal.NewFromInt(110)), "total %s", list.Orders[0].Total)

	_, err = s.client.DeleteOrder(s.ctx(), &storerpc.DeleteOrderRequest{OrderId: id})
	s.Equal(codes.Unauthenticated, status.Code(err))

	resp, err := s.client.DeleteOrder(s.asAdmin(s.ctx()), &storerpc.DeleteOrderRequest{OrderId: id})
	s.Require().NoError(err)
	s.True(resp.Success)
	s.Zero(s.store.OrderCount())
}

func (s *GRPCHandlerSuite) TestGetStock_NotFound() {
	_, err := s.client.GetStock(s.ctx(), &storerpc.GetStockRequest{ProductId: "missing"})
	s.Equal(codes.NotFound, status.Code(err))
}

func TestUnimplementedStoreService(t *testing.T) {
	var srv storerpc.UnimplementedStoreServiceServer
	_, err := srv.GetStock(context.Background(), &storerpc.GetStockRequest{})
	require.Equal(t, codes.Unimplemented, status.Code(err))
}
