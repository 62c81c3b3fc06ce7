package grpcsvc_test

import (
	"context"
	"net"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
	grpcsvc "github.com/vladislavdragonenkov/petshop/internal/service/grpc"
	"github.com/vladislavdragonenkov/petshop/internal/service/idempotency"
	"github.com/vladislavdragonenkov/petshop/internal/storage/memory"
	"github.com/vladislavdragonenkov/petshop/internal/storefront"
)

const bufSize = 1024 * 1024

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	return logger.WithField("component", "test")
}

type StorefrontServiceTestSuite struct {
	suite.Suite

	server   *grpc.Server
	conn     *grpc.ClientConn
	client   *grpcsvc.StorefrontClient
	registry *storefront.Registry
	orders   domain.OrderRepository
}

func (s *StorefrontServiceTestSuite) SetupTest() {
	logger := loggerForTests()
	payments := memory.NewPaymentMethodRepository()
	s.Require().NoError(memory.SeedDemoData(context.Background(), payments))
	s.orders = memory.NewOrderRepository()

	s.registry = storefront.NewRegistry(storefront.Config{
		Pets:     memory.NewPetRepository(domain.BasePets()),
		Payments: payments,
		Orders:   s.orders,
		Outbox:   memory.NewOutboxRepository(),
		Timeline: memory.NewTimelineRepository(),
		Logger:   logger,
	})
	guard := idempotency.NewGuard(memory.NewIdempotencyRepository(), 0, logger)

	listener := bufconn.Listen(bufSize)
	s.server = grpc.NewServer()
	grpcsvc.RegisterStorefrontServer(s.server, grpcsvc.NewStorefrontService(s.registry, guard, logger))
	go func() {
		_ = s.server.Serve(listener)
	}()

	dialer := func(context.Context, string) (net.Conn, error) {
		return listener.Dial()
	}
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	s.Require().NoError(err)
	s.conn = conn
	s.client = grpcsvc.NewStorefrontClient(conn)
}

func (s *StorefrontServiceTestSuite) TearDownTest() {
	_ = s.conn.Close()
	s.server.Stop()
}

func (s *StorefrontServiceTestSuite) openSession() context.Context {
	resp, err := s.client.OpenSession(context.Background(), &grpcsvc.OpenSessionRequest{})
	s.Require().NoError(err)
	return grpcsvc.WithSession(context.Background(), resp.SessionID)
}

func (s *StorefrontServiceTestSuite) TestOpenSessionReturnsFirstPage() {
	var header metadata.MD
	resp, err := s.client.OpenSession(context.Background(), &grpcsvc.OpenSessionRequest{}, grpc.Header(&header))
	s.Require().NoError(err)

	s.NotEmpty(resp.SessionID)
	s.Equal([]string{resp.SessionID}, header.Get(grpcsvc.SessionIDHeader))
	s.Equal(1, resp.Page)
	s.False(resp.Exhausted)
	s.Require().Len(resp.Pets, 4)
	s.Equal("Goldie", resp.Pets[0].Name)
	s.Equal("17.38", resp.Pets[0].Price)
	s.Equal(1, s.registry.Len())
}

func (s *StorefrontServiceTestSuite) TestSessionMetadataRequired() {
	_, err := s.client.GetCart(context.Background(), &grpcsvc.GetCartRequest{})
	s.Equal(codes.InvalidArgument, status.Code(err))

	_, err = s.client.GetCart(grpcsvc.WithSession(context.Background(), "missing"), &grpcsvc.GetCartRequest{})
	s.Equal(codes.NotFound, status.Code(err))
}

func (s *StorefrontServiceTestSuite) TestListPetsFiltersAndSorts() {
	ctx := s.openSession()

	resp, err := s.client.ListPets(ctx, &grpcsvc.ListPetsRequest{Sort: "priceAsc"})
	s.Require().NoError(err)
	s.Require().Len(resp.Pets, 4)
	s.Equal([]string{"Goldie", "Sunny", "Luna", "Buddy"}, petNames(resp.Pets))

	resp, err = s.client.ListPets(ctx, &grpcsvc.ListPetsRequest{Species: "cat"})
	s.Require().NoError(err)
	s.Equal([]string{"Luna"}, petNames(resp.Pets))

	resp, err = s.client.ListPets(ctx, &grpcsvc.ListPetsRequest{Text: "IR", Species: "All"})
	s.Require().NoError(err)
	s.Equal([]string{"Sunny"}, petNames(resp.Pets))

	_, err = s.client.ListPets(ctx, &grpcsvc.ListPetsRequest{Species: "Dragon"})
	s.Equal(codes.InvalidArgument, status.Code(err))
}

func (s *StorefrontServiceTestSuite) TestLoadMoreAppendsPage() {
	ctx := s.openSession()

	resp, err := s.client.LoadMore(ctx, &grpcsvc.LoadMoreRequest{CurrentPage: 1})
	s.Require().NoError(err)
	s.Equal(2, resp.Page)
	s.Require().Len(resp.Added, 4)
	s.Equal("1-p2", resp.Added[0].ID)

	stale, err := s.client.LoadMore(ctx, &grpcsvc.LoadMoreRequest{CurrentPage: 1})
	s.Require().NoError(err)
	s.Empty(stale.Added)
	s.Equal(2, stale.Page)

	list, err := s.client.ListPets(ctx, &grpcsvc.ListPetsRequest{})
	s.Require().NoError(err)
	s.Len(list.Pets, 8)
}

func (s *StorefrontServiceTestSuite) TestGetPet() {
	ctx := s.openSession()

	resp, err := s.client.GetPet(ctx, &grpcsvc.GetPetRequest{PetID: "3"})
	s.Require().NoError(err)
	s.Equal("Luna", resp.Pet.Name)
	s.NotEmpty(resp.Description)
	s.Equal("2 years", resp.Age)
	s.Equal("Female", resp.Gender)
	s.Equal("No", resp.Fixed)

	_, err = s.client.GetPet(ctx, &grpcsvc.GetPetRequest{PetID: "404"})
	s.Equal(codes.NotFound, status.Code(err))

	_, err = s.client.GetPet(ctx, &grpcsvc.GetPetRequest{})
	s.Equal(codes.InvalidArgument, status.Code(err))
}

func (s *StorefrontServiceTestSuite) TestCartOperations() {
	ctx := s.openSession()

	_, err := s.client.AddToCart(ctx, &grpcsvc.AddToCartRequest{PetID: "1"})
	s.Require().NoError(err)
	cart, err := s.client.AddToCart(ctx, &grpcsvc.AddToCartRequest{PetID: "2"})
	s.Require().NoError(err)
	s.Equal([]string{"1", "2"}, cart.PetIDs)
	s.Equal("84.79", cart.Total)

	_, err = s.client.AddToCart(ctx, &grpcsvc.AddToCartRequest{PetID: "unknown"})
	s.Equal(codes.NotFound, status.Code(err))

	cart, err = s.client.GetCart(ctx, &grpcsvc.GetCartRequest{})
	s.Require().NoError(err)
	s.Len(cart.Items, 2)

	cart, err = s.client.ClearCart(ctx, &grpcsvc.ClearCartRequest{})
	s.Require().NoError(err)
	s.Empty(cart.PetIDs)
	s.Equal("0.00", cart.Total)
}

func (s *StorefrontServiceTestSuite) TestEnterCheckoutWithoutSignIn() {
	ctx := s.openSession()

	view, err := s.client.EnterCheckout(ctx, &grpcsvc.EnterCheckoutRequest{})
	s.Require().NoError(err)
	s.Equal("Unauthenticated", view.State)
	s.Equal("login", view.Navigate)
	s.False(view.CanConfirm)

	_, err = s.client.ListOrders(ctx, &grpcsvc.ListOrdersRequest{})
	s.Equal(codes.Unauthenticated, status.Code(err))
}

func (s *StorefrontServiceTestSuite) TestEnterCheckoutWithoutPaymentMethod() {
	ctx := s.openSession()
	_, err := s.client.SignIn(ctx, &grpcsvc.SignInRequest{CustomerID: "no-card"})
	s.Require().NoError(err)

	view, err := s.client.EnterCheckout(ctx, &grpcsvc.EnterCheckoutRequest{})
	s.Require().NoError(err)
	s.Equal("NoPaymentInfo", view.State)
	s.False(view.CanConfirm)

	_, err = s.client.ConfirmCheckout(ctx, &grpcsvc.ConfirmCheckoutRequest{})
	s.Equal(codes.FailedPrecondition, status.Code(err))
}

func (s *StorefrontServiceTestSuite) TestSignInRequiresCustomer() {
	ctx := s.openSession()

	_, err := s.client.SignIn(ctx, &grpcsvc.SignInRequest{CustomerID: "  "})
	s.Equal(codes.InvalidArgument, status.Code(err))

	resp, err := s.client.SignIn(ctx, &grpcsvc.SignInRequest{CustomerID: "c-1", Email: "c1@example.com"})
	s.Require().NoError(err)
	s.True(resp.Session.Authenticated)

	out, err := s.client.SignOut(ctx, &grpcsvc.SignOutRequest{})
	s.Require().NoError(err)
	s.False(out.Session.Authenticated)
	s.Empty(out.Session.CustomerID)
}

func (s *StorefrontServiceTestSuite) TestConfirmEmptyCartIsRejected() {
	ctx := s.openSession()
	_, err := s.client.SignIn(ctx, &grpcsvc.SignInRequest{CustomerID: memory.DemoCustomerID})
	s.Require().NoError(err)

	view, err := s.client.EnterCheckout(ctx, &grpcsvc.EnterCheckoutRequest{})
	s.Require().NoError(err)
	s.Equal("Ready", view.State)

	_, err = s.client.ConfirmCheckout(ctx, &grpcsvc.ConfirmCheckoutRequest{})
	s.Equal(codes.InvalidArgument, status.Code(err))

	left, err := s.client.LeaveCheckout(ctx, &grpcsvc.LeaveCheckoutRequest{})
	s.Require().NoError(err)
	s.Equal("Idle", left.State)
}

func (s *StorefrontServiceTestSuite) TestCheckoutFlowWithIdempotentConfirm() {
	ctx := s.openSession()
	_, err := s.client.SignIn(ctx, &grpcsvc.SignInRequest{CustomerID: memory.DemoCustomerID, Email: "demo@example.com"})
	s.Require().NoError(err)
	_, err = s.client.AddToCart(ctx, &grpcsvc.AddToCartRequest{PetID: "1"})
	s.Require().NoError(err)
	_, err = s.client.AddToCart(ctx, &grpcsvc.AddToCartRequest{PetID: "2"})
	s.Require().NoError(err)

	view, err := s.client.EnterCheckout(ctx, &grpcsvc.EnterCheckoutRequest{})
	s.Require().NoError(err)
	s.Equal("Ready", view.State)
	s.Equal("****4242", view.MaskedCard)
	s.True(view.CanConfirm)
	s.Equal("84.79", view.Total)

	confirmCtx := grpcsvc.WithIdempotencyKey(ctx, "confirm-1")
	receipt, err := s.client.ConfirmCheckout(confirmCtx, &grpcsvc.ConfirmCheckoutRequest{})
	s.Require().NoError(err)
	s.Equal("Committed", receipt.State)
	s.Equal("confirmation", receipt.Navigate)
	s.Equal("84.79", receipt.Total)
	s.Require().Len(receipt.Orders, 2)
	for _, order := range receipt.Orders {
		s.Equal("84.79", order.TotalAmount)
		s.Equal(memory.DemoCustomerID, order.CustomerID)
	}

	replayed, err := s.client.ConfirmCheckout(confirmCtx, &grpcsvc.ConfirmCheckoutRequest{})
	s.Require().NoError(err)
	s.Equal(receipt.CheckoutID, replayed.CheckoutID)
	s.Len(replayed.Orders, 2)

	_, err = s.client.ConfirmCheckout(ctx, &grpcsvc.ConfirmCheckoutRequest{})
	s.Equal(codes.FailedPrecondition, status.Code(err))

	history, err := s.client.ListOrders(ctx, &grpcsvc.ListOrdersRequest{})
	s.Require().NoError(err)
	s.Len(history.Orders, 2)

	cart, err := s.client.GetCart(ctx, &grpcsvc.GetCartRequest{})
	s.Require().NoError(err)
	s.Empty(cart.PetIDs)
}

func (s *StorefrontServiceTestSuite) TestFailedConfirmIsReplayed() {
	ctx := s.openSession()
	confirmCtx := grpcsvc.WithIdempotencyKey(ctx, "confirm-failed")

	_, err := s.client.ConfirmCheckout(confirmCtx, &grpcsvc.ConfirmCheckoutRequest{})
	s.Require().Equal(codes.FailedPrecondition, status.Code(err))

	_, err = s.client.ConfirmCheckout(confirmCtx, &grpcsvc.ConfirmCheckoutRequest{})
	s.Equal(codes.FailedPrecondition, status.Code(err))
}

func (s *StorefrontServiceTestSuite) TestIdempotencyKeyBoundToSession() {
	first := s.openSession()
	second := s.openSession()

	_, err := s.client.ConfirmCheckout(grpcsvc.WithIdempotencyKey(first, "shared"), &grpcsvc.ConfirmCheckoutRequest{})
	s.Require().Equal(codes.FailedPrecondition, status.Code(err))

	_, err = s.client.ConfirmCheckout(grpcsvc.WithIdempotencyKey(second, "shared"), &grpcsvc.ConfirmCheckoutRequest{})
	s.Equal(codes.AlreadyExists, status.Code(err))
}

func TestStorefrontServiceTestSuite(t *testing.T) {
	suite.Run(t, new(StorefrontServiceTestSuite))
}

func TestServiceWithoutGuardSkipsIdempotency(t *testing.T) {
	registry := storefront.NewRegistry(storefront.Config{Logger: loggerForTests()})
	service := grpcsvc.NewStorefrontService(registry, nil, loggerForTests())

	sf := registry.Open(context.Background())
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(
		grpcsvc.SessionIDHeader, sf.ID(),
		grpcsvc.IdempotencyKeyHeader, "ignored",
	))

	_, err := service.ConfirmCheckout(ctx, &grpcsvc.ConfirmCheckoutRequest{})
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func petNames(pets []grpcsvc.Pet) []string {
	names := make([]string, 0, len(pets))
	for _, pet := range pets {
		names = append(names, pet.Name)
	}
	return names
}
