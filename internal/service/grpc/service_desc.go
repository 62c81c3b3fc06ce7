package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// ServiceName - полное имя gRPC-сервиса витрины.
const ServiceName = "petshop.v1.Storefront"

const (
	MethodOpenSession     = "/" + ServiceName + "/OpenSession"
	MethodSignIn          = "/" + ServiceName + "/SignIn"
	MethodSignOut         = "/" + ServiceName + "/SignOut"
	MethodListPets        = "/" + ServiceName + "/ListPets"
	MethodLoadMore        = "/" + ServiceName + "/LoadMore"
	MethodGetPet          = "/" + ServiceName + "/GetPet"
	MethodAddToCart       = "/" + ServiceName + "/AddToCart"
	MethodGetCart         = "/" + ServiceName + "/GetCart"
	MethodClearCart       = "/" + ServiceName + "/ClearCart"
	MethodEnterCheckout   = "/" + ServiceName + "/EnterCheckout"
	MethodLeaveCheckout   = "/" + ServiceName + "/LeaveCheckout"
	MethodConfirmCheckout = "/" + ServiceName + "/ConfirmCheckout"
	MethodListOrders      = "/" + ServiceName + "/ListOrders"
)

// Заголовки метаданных.
const (
	SessionIDHeader      = "x-session-id"
	IdempotencyKeyHeader = "idempotency-key"
)

// StorefrontServer - серверная часть petshop.v1.Storefront.
type StorefrontServer interface {
	OpenSession(context.Context, *OpenSessionRequest) (*OpenSessionResponse, error)
	SignIn(context.Context, *SignInRequest) (*SignInResponse, error)
	SignOut(context.Context, *SignOutRequest) (*SignOutResponse, error)
	ListPets(context.Context, *ListPetsRequest) (*ListPetsResponse, error)
	LoadMore(context.Context, *LoadMoreRequest) (*LoadMoreResponse, error)
	GetPet(context.Context, *GetPetRequest) (*GetPetResponse, error)
	AddToCart(context.Context, *AddToCartRequest) (*CartResponse, error)
	GetCart(context.Context, *GetCartRequest) (*CartResponse, error)
	ClearCart(context.Context, *ClearCartRequest) (*CartResponse, error)
	EnterCheckout(context.Context, *EnterCheckoutRequest) (*CheckoutView, error)
	LeaveCheckout(context.Context, *LeaveCheckoutRequest) (*LeaveCheckoutResponse, error)
	ConfirmCheckout(context.Context, *ConfirmCheckoutRequest) (*ConfirmCheckoutResponse, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
}

// RegisterStorefrontServer регистрирует реализацию на gRPC-сервере.
func RegisterStorefrontServer(s grpc.ServiceRegistrar, srv StorefrontServer) {
	s.RegisterService(&StorefrontServiceDesc, srv)
}

// StorefrontServiceDesc описывает сервис без сгенерированного кода: сообщения - Go-структуры,
// кодируемые JSON-кодеком.
var StorefrontServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StorefrontServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "OpenSession", Handler: unary(MethodOpenSession, StorefrontServer.OpenSession)},
		{MethodName: "SignIn", Handler: unary(MethodSignIn, StorefrontServer.SignIn)},
		{MethodName: "SignOut", Handler: unary(MethodSignOut, StorefrontServer.SignOut)},
		{MethodName: "ListPets", Handler: unary(MethodListPets, StorefrontServer.ListPets)},
		{MethodName: "LoadMore", Handler: unary(MethodLoadMore, StorefrontServer.LoadMore)},
		{MethodName: "GetPet", Handler: unary(MethodGetPet, StorefrontServer.GetPet)},
		{MethodName: "AddToCart", Handler: unary(MethodAddToCart, StorefrontServer.AddToCart)},
		{MethodName: "GetCart", Handler: unary(MethodGetCart, StorefrontServer.GetCart)},
		{MethodName: "ClearCart", Handler: unary(MethodClearCart, StorefrontServer.ClearCart)},
		{MethodName: "EnterCheckout", Handler: unary(MethodEnterCheckout, StorefrontServer.EnterCheckout)},
		{MethodName: "LeaveCheckout", Handler: unary(MethodLeaveCheckout, StorefrontServer.LeaveCheckout)},
		{MethodName: "ConfirmCheckout", Handler: unary(MethodConfirmCheckout, StorefrontServer.ConfirmCheckout)},
		{MethodName: "ListOrders", Handler: unary(MethodListOrders, StorefrontServer.ListOrders)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "petshop/v1/storefront",
}

func unary[Req, Resp any](fullMethod string, call func(StorefrontServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
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
	}
}

// StorefrontClient - клиент petshop.v1.Storefront, всегда использующий JSON-кодек.
type StorefrontClient struct {
	cc grpc.ClientConnInterface
}

// NewStorefrontClient создаёт клиента поверх соединения.
func NewStorefrontClient(cc grpc.ClientConnInterface) *StorefrontClient {
	return &StorefrontClient{cc: cc}
}

// WithSession добавляет идентификатор сессии в исходящие метаданные.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, SessionIDHeader, sessionID)
}

// WithIdempotencyKey добавляет idempotency-key в исходящие метаданные.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, IdempotencyKeyHeader, key)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StorefrontClient) OpenSession(ctx context.Context, in *OpenSessionRequest, opts ...grpc.CallOption) (*OpenSessionResponse, error) {
	return invoke[OpenSessionResponse](ctx, c.cc, MethodOpenSession, in, opts)
}

func (c *StorefrontClient) SignIn(ctx context.Context, in *SignInRequest, opts ...grpc.CallOption) (*SignInResponse, error) {
	return invoke[SignInResponse](ctx, c.cc, MethodSignIn, in, opts)
}

func (c *StorefrontClient) SignOut(ctx context.Context, in *SignOutRequest, opts ...grpc.CallOption) (*SignOutResponse, error) {
	return invoke[SignOutResponse](ctx, c.cc, MethodSignOut, in, opts)
}

func (c *StorefrontClient) ListPets(ctx context.Context, in *ListPetsRequest, opts ...grpc.CallOption) (*ListPetsResponse, error) {
	return invoke[ListPetsResponse](ctx, c.cc, MethodListPets, in, opts)
}

func (c *StorefrontClient) LoadMore(ctx context.Context, in *LoadMoreRequest, opts ...grpc.CallOption) (*LoadMoreResponse, error) {
	return invoke[LoadMoreResponse](ctx, c.cc, MethodLoadMore, in, opts)
}

func (c *StorefrontClient) GetPet(ctx context.Context, in *GetPetRequest, opts ...grpc.CallOption) (*GetPetResponse, error) {
	return invoke[GetPetResponse](ctx, c.cc, MethodGetPet, in, opts)
}

func (c *StorefrontClient) AddToCart(ctx context.Context, in *AddToCartRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c.cc, MethodAddToCart, in, opts)
}

func (c *StorefrontClient) GetCart(ctx context.Context, in *GetCartRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c.cc, MethodGetCart, in, opts)
}

func (c *StorefrontClient) ClearCart(ctx context.Context, in *ClearCartRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c.cc, MethodClearCart, in, opts)
}

func (c *StorefrontClient) EnterCheckout(ctx context.Context, in *EnterCheckoutRequest, opts ...grpc.CallOption) (*CheckoutView, error) {
	return invoke[CheckoutView](ctx, c.cc, MethodEnterCheckout, in, opts)
}

func (c *StorefrontClient) LeaveCheckout(ctx context.Context, in *LeaveCheckoutRequest, opts ...grpc.CallOption) (*LeaveCheckoutResponse, error) {
	return invoke[LeaveCheckoutResponse](ctx, c.cc, MethodLeaveCheckout, in, opts)
}

func (c *StorefrontClient) ConfirmCheckout(ctx context.Context, in *ConfirmCheckoutRequest, opts ...grpc.CallOption) (*ConfirmCheckoutResponse, error) {
	return invoke[ConfirmCheckoutResponse](ctx, c.cc, MethodConfirmCheckout, in, opts)
}

func (c *StorefrontClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	return invoke[ListOrdersResponse](ctx, c.cc, MethodListOrders, in, opts)
}
