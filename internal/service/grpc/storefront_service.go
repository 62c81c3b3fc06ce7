// Package grpcsvc публикует витрину как gRPC-сервис petshop.v1.Storefront.
package grpcsvc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	spb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/vladislavdragonenkov/petshop/internal/catalog"
	"github.com/vladislavdragonenkov/petshop/internal/domain"
	"github.com/vladislavdragonenkov/petshop/internal/service/checkout"
	"github.com/vladislavdragonenkov/petshop/internal/service/idempotency"
	"github.com/vladislavdragonenkov/petshop/internal/storefront"
)

const (
	defaultListOrdersLimit = 50
	maxListOrdersLimit     = 500
)

// StorefrontService реализует StorefrontServer поверх реестра сессий.
type StorefrontService struct {
	registry *storefront.Registry
	guard    *idempotency.Guard
	logger   *log.Entry
}

var _ StorefrontServer = (*StorefrontService)(nil)

// NewStorefrontService создаёт сервис. guard=nil отключает идемпотентность ConfirmCheckout.
func NewStorefrontService(registry *storefront.Registry, guard *idempotency.Guard, logger *log.Entry) *StorefrontService {
	if logger == nil {
		logger = log.WithField("component", "storefront-grpc")
	}
	return &StorefrontService{registry: registry, guard: guard, logger: logger}
}

// OpenSession создаёт сессию и возвращает первую страницу каталога.
// Идентификатор также отправляется в заголовке x-session-id.
func (s *StorefrontService) OpenSession(ctx context.Context, _ *OpenSessionRequest) (*OpenSessionResponse, error) {
	sf := s.registry.Open(ctx)
	if err := grpc.SetHeader(ctx, metadata.Pairs(SessionIDHeader, sf.ID())); err != nil {
		s.logger.WithError(err).Debug("failed to set session header")
	}

	return &OpenSessionResponse{
		SessionID: sf.ID(),
		Pets:      toPets(sf.Browse(catalog.Query{})),
		Page:      sf.Page(),
		Exhausted: sf.Exhausted(),
	}, nil
}

func (s *StorefrontService) SignIn(ctx context.Context, req *SignInRequest) (*SignInResponse, error) {
	sf, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := sf.SignIn(req.CustomerID, req.Email); err != nil {
		return nil, toStatus(err)
	}
	return &SignInResponse{Session: toSession(sf.Session())}, nil
}

func (s *StorefrontService) SignOut(ctx context.Context, _ *SignOutRequest) (*SignOutResponse, error) {
	sf, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	sf.SignOut()
	return &SignOutResponse{Session: toSession(sf.Session())}, nil
}

// ListPets возвращает видимый список по уже загруженным страницам.
func (s *StorefrontService) ListPets(ctx context.Context, req *ListPetsRequest) (*ListPetsResponse, error) {
	sf, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	query, err := buildQuery(req)
	if err != nil {
		return nil, toStatus(err)
	}

	return &ListPetsResponse{
		Pets:      toPets(sf.Browse(query)),
		Page:      sf.Page(),
		Exhausted: sf.Exhausted(),
	}, nil
}

func (s *StorefrontService) LoadMore(ctx context.Context, req *LoadMoreRequest) (*LoadMoreResponse, error) {
	sf, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	current := req.CurrentPage
	if current <= 0 {
		current = sf.Page()
	}

	added, page, exhausted := sf.LoadMore(ctx, current)
	return &LoadMoreResponse{Added: toPets(added), Page: page, Exhausted: exhausted}, nil
}

func (s *StorefrontService) GetPet(ctx context.Context, req *GetPetRequest) (*GetPetResponse, error) {
	sf, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(req.PetID)
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "pet_id is required")
	}

	details, err := sf.Pet(ctx, id)
	if err != nil {
		return nil, s.fail(err, "get pet")
	}
	return &GetPetResponse{
		Pet:         toPet(details.Pet),
		Breed:       details.Breed,
		Age:         details.Age,
		Gender:      details.Gender,
		Fixed:       details.Fixed,
		Description: details.Description,
		Health:      details.Health,
	}, nil
}

func (s *StorefrontService) AddToCart(ctx context.Context, req *AddToCartRequest) (*CartResponse, error) {
	sf, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(req.PetID)
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "pet_id is required")
	}

	view, err := sf.AddToCart(id)
	if err != nil {
		return nil, toStatus(err)
	}
	return toCart(view), nil
}

func (s *StorefrontService) GetCart(ctx context.Context, _ *GetCartRequest) (*CartResponse, error) {
	sf, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	return toCart(sf.Cart()), nil
}

func (s *StorefrontService) ClearCart(ctx context.Context, _ *ClearCartRequest) (*CartResponse, error) {
	sf, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	sf.ClearCart()
	return toCart(sf.Cart()), nil
}

// EnterCheckout открывает экран оформления. Отсутствие входа, отсутствие платёжных
// данных и ошибка их загрузки - состояния экрана, а не ошибки вызова.
func (s *StorefrontService) EnterCheckout(ctx context.Context, _ *EnterCheckoutRequest) (*CheckoutView, error) {
	sf, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	view, err := sf.Checkout().Enter(ctx)
	switch {
	case err == nil,
		errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, domain.ErrRemoteRead):
		return toCheckoutView(view), nil
	default:
		return nil, s.fail(err, "enter checkout")
	}
}

func (s *StorefrontService) LeaveCheckout(ctx context.Context, _ *LeaveCheckoutRequest) (*LeaveCheckoutResponse, error) {
	sf, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	sf.Checkout().Leave()
	return &LeaveCheckoutResponse{State: string(sf.Checkout().State())}, nil
}

// ConfirmCheckout подтверждает оформление. С метаданными idempotency-key повтор
// возвращает сохранённый результат вместо повторной фиксации.
func (s *StorefrontService) ConfirmCheckout(ctx context.Context, _ *ConfirmCheckoutRequest) (*ConfirmCheckoutResponse, error) {
	sf, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	key := incomingValue(ctx, IdempotencyKeyHeader)
	if s.guard == nil || key == "" {
		return s.confirm(ctx, sf)
	}

	record, replay, err := s.guard.Begin(key, idempotency.HashRequest(MethodConfirmCheckout, sf.ID()))
	if err != nil {
		return nil, s.fail(err, "begin idempotent confirm")
	}
	if replay {
		return s.replay(record)
	}

	resp, runErr := s.confirm(ctx, sf)
	if runErr != nil {
		body, marshalErr := proto.Marshal(status.Convert(runErr).Proto())
		if marshalErr != nil {
			s.logger.WithError(marshalErr).Warn("failed to encode confirm failure")
		}
		s.guard.Complete(key, body, int(status.Code(runErr)), true)
		return nil, runErr
	}

	body, err := json.Marshal(resp)
	if err != nil {
		s.logger.WithError(err).Warn("failed to encode confirm response")
	}
	s.guard.Complete(key, body, int(codes.OK), false)
	return resp, nil
}

func (s *StorefrontService) confirm(ctx context.Context, sf *storefront.Storefront) (*ConfirmCheckoutResponse, error) {
	receipt, err := sf.Checkout().Confirm(ctx)
	if err != nil {
		return nil, s.fail(err, "confirm checkout")
	}
	return toReceipt(receipt), nil
}

func (s *StorefrontService) replay(record domain.IdempotencyRecord) (*ConfirmCheckoutResponse, error) {
	if record.Status == domain.IdempotencyStatusFailed {
		var st spb.Status
		if len(record.ResponseBody) == 0 || proto.Unmarshal(record.ResponseBody, &st) != nil {
			return nil, status.Error(codes.Internal, "previous request with the same idempotency key failed")
		}
		return nil, status.FromProto(&st).Err()
	}

	var resp ConfirmCheckoutResponse
	if err := json.Unmarshal(record.ResponseBody, &resp); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", record.Key).Warn("failed to decode cached confirm response")
		return nil, status.Error(codes.Internal, "failed to decode cached response")
	}
	return &resp, nil
}

func (s *StorefrontService) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	sf, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultListOrdersLimit
	}
	if limit > maxListOrdersLimit {
		limit = maxListOrdersLimit
	}

	orders, err := sf.Orders(ctx, limit)
	if err != nil {
		return nil, s.fail(err, "list orders")
	}
	return &ListOrdersResponse{Orders: toOrders(orders)}, nil
}

func (s *StorefrontService) session(ctx context.Context) (*storefront.Storefront, error) {
	id := incomingValue(ctx, SessionIDHeader)
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, SessionIDHeader+" metadata is required")
	}
	sf, err := s.registry.Get(id)
	if err != nil {
		return nil, toStatus(err)
	}
	return sf, nil
}

// fail логирует ошибку, которая станет Internal, и переводит её в статус.
func (s *StorefrontService) fail(err error, op string) error {
	st := toStatus(err)
	if status.Code(st) == codes.Internal {
		s.logger.WithError(err).WithField("op", op).Error("storefront request failed")
	}
	return st
}

func incomingValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func buildQuery(req *ListPetsRequest) (catalog.Query, error) {
	query := catalog.Query{Text: req.Text, Sort: catalog.ParseSortMode(req.Sort)}

	species := strings.TrimSpace(req.Species)
	if species == "" || strings.EqualFold(species, catalog.SpeciesAll) {
		return query, nil
	}
	parsed, err := domain.ParseSpecies(species)
	if err != nil {
		return catalog.Query{}, err
	}
	query.Species = string(parsed)
	return query, nil
}

func toPet(pet domain.Pet) Pet {
	return Pet{
		ID:             pet.ID,
		Name:           pet.Name,
		Species:        string(pet.Species),
		Price:          money(pet.Price),
		AdoptionStatus: string(pet.AdoptionStatus),
	}
}

func toPets(pets []domain.Pet) []Pet {
	result := make([]Pet, 0, len(pets))
	for _, pet := range pets {
		result = append(result, toPet(pet))
	}
	return result
}

func toSession(sess domain.Session) Session {
	return Session{CustomerID: sess.CustomerID, Email: sess.Email, Authenticated: sess.Authenticated()}
}

func toCart(view storefront.CartView) *CartResponse {
	ids := view.PetIDs
	if ids == nil {
		ids = []string{}
	}
	return &CartResponse{PetIDs: ids, Items: toPets(view.Items), Total: money(view.Total)}
}

func toCheckoutView(view checkout.View) *CheckoutView {
	return &CheckoutView{
		State:          string(view.State),
		CheckoutID:     view.CheckoutID,
		CustomerID:     view.CustomerID,
		Email:          view.Email,
		MaskedCard:     view.MaskedCard,
		CardholderName: view.CardholderName,
		Expiration:     view.Expiration,
		BillingAddress: view.BillingAddress,
		Items:          toPets(view.Items),
		Total:          money(view.Total),
		CanConfirm:     view.CanConfirm,
		Navigate:       string(view.Navigate),
	}
}

func toReceipt(receipt checkout.Receipt) *ConfirmCheckoutResponse {
	steps := make([]string, 0, len(receipt.FailedSteps))
	for _, step := range receipt.FailedSteps {
		steps = append(steps, string(step))
	}
	return &ConfirmCheckoutResponse{
		CheckoutID:  receipt.CheckoutID,
		State:       string(receipt.State),
		Orders:      toOrders(receipt.Orders),
		Total:       money(receipt.Total),
		FailedSteps: steps,
		Navigate:    string(receipt.Navigate),
	}
}

func toOrders(orders []domain.Order) []Order {
	result := make([]Order, 0, len(orders))
	for _, order := range orders {
		result = append(result, Order{
			ID:          order.ID,
			CustomerID:  order.CustomerID,
			PaymentID:   order.PaymentID,
			PetID:       order.PetID,
			OrderDate:   order.OrderDate,
			TotalAmount: money(order.TotalAmount),
		})
	}
	return result
}

func money(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
