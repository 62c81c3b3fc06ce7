package main

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	grpcsvc "github.com/vladislavdragonenkov/petshop/internal/service/grpc"
)

type scenarioKind string

const (
	scenarioBrowse   scenarioKind = "browse"
	scenarioCart     scenarioKind = "cart"
	scenarioCheckout scenarioKind = "checkout"
)

func parseScenario(value string) (scenarioKind, error) {
	switch kind := scenarioKind(value); kind {
	case scenarioBrowse, scenarioCart, scenarioCheckout:
		return kind, nil
	default:
		return "", fmt.Errorf("unsupported scenario: %s", value)
	}
}

// storefrontAPI - подмножество клиента витрины, которое гоняет нагрузочный тест.
type storefrontAPI interface {
	OpenSession(ctx context.Context, in *grpcsvc.OpenSessionRequest, opts ...grpc.CallOption) (*grpcsvc.OpenSessionResponse, error)
	SignIn(ctx context.Context, in *grpcsvc.SignInRequest, opts ...grpc.CallOption) (*grpcsvc.SignInResponse, error)
	ListPets(ctx context.Context, in *grpcsvc.ListPetsRequest, opts ...grpc.CallOption) (*grpcsvc.ListPetsResponse, error)
	LoadMore(ctx context.Context, in *grpcsvc.LoadMoreRequest, opts ...grpc.CallOption) (*grpcsvc.LoadMoreResponse, error)
	AddToCart(ctx context.Context, in *grpcsvc.AddToCartRequest, opts ...grpc.CallOption) (*grpcsvc.CartResponse, error)
	GetCart(ctx context.Context, in *grpcsvc.GetCartRequest, opts ...grpc.CallOption) (*grpcsvc.CartResponse, error)
	EnterCheckout(ctx context.Context, in *grpcsvc.EnterCheckoutRequest, opts ...grpc.CallOption) (*grpcsvc.CheckoutView, error)
	ConfirmCheckout(ctx context.Context, in *grpcsvc.ConfirmCheckoutRequest, opts ...grpc.CallOption) (*grpcsvc.ConfirmCheckoutResponse, error)
}

var _ storefrontAPI = (*grpcsvc.StorefrontClient)(nil)

var errCheckoutNotReady = status.Error(codes.FailedPrecondition, "checkout is not ready to confirm")

// runner выполняет один сценарий покупателя и пишет метрики каждого вызова.
type runner struct {
	client storefrontAPI
	cfg    config
	runID  string
	col    *collector
}

func (r *runner) run(index int) (err error) {
	start := time.Now()
	defer func() {
		r.col.record(scenarioMetric, time.Since(start), grpcCode(err))
	}()

	opened, err := call(context.Background(), r, "OpenSession", func(ctx context.Context) (*grpcsvc.OpenSessionResponse, error) {
		return r.client.OpenSession(ctx, &grpcsvc.OpenSessionRequest{})
	})
	if err != nil {
		return err
	}
	if opened.SessionID == "" {
		return status.Error(codes.Internal, "open session returned empty session id")
	}
	session := grpcsvc.WithSession(context.Background(), opened.SessionID)

	if _, err := call(session, r, "ListPets", func(ctx context.Context) (*grpcsvc.ListPetsResponse, error) {
		return r.client.ListPets(ctx, &grpcsvc.ListPetsRequest{Species: r.cfg.species, Sort: r.cfg.sort})
	}); err != nil {
		return err
	}

	pets := opened.Pets
	for page := 1; page < r.cfg.pages; page++ {
		more, err := call(session, r, "LoadMore", func(ctx context.Context) (*grpcsvc.LoadMoreResponse, error) {
			return r.client.LoadMore(ctx, &grpcsvc.LoadMoreRequest{})
		})
		if err != nil {
			return err
		}
		pets = append(pets, more.Added...)
		if more.Exhausted {
			break
		}
	}

	if r.cfg.scenario == scenarioBrowse {
		return nil
	}
	if len(pets) == 0 {
		return status.Error(codes.NotFound, "catalog returned no pets")
	}

	pet := pets[index%len(pets)]
	if _, err := call(session, r, "AddToCart", func(ctx context.Context) (*grpcsvc.CartResponse, error) {
		return r.client.AddToCart(ctx, &grpcsvc.AddToCartRequest{PetID: pet.ID})
	}); err != nil {
		return err
	}
	if _, err := call(session, r, "GetCart", func(ctx context.Context) (*grpcsvc.CartResponse, error) {
		return r.client.GetCart(ctx, &grpcsvc.GetCartRequest{})
	}); err != nil {
		return err
	}

	if r.cfg.scenario == scenarioCart {
		return nil
	}
	return r.checkout(session, index)
}

func (r *runner) checkout(session context.Context, index int) error {
	if _, err := call(session, r, "SignIn", func(ctx context.Context) (*grpcsvc.SignInResponse, error) {
		return r.client.SignIn(ctx, &grpcsvc.SignInRequest{CustomerID: r.cfg.customerID})
	}); err != nil {
		return err
	}

	view, err := call(session, r, "EnterCheckout", func(ctx context.Context) (*grpcsvc.CheckoutView, error) {
		return r.client.EnterCheckout(ctx, &grpcsvc.EnterCheckoutRequest{})
	})
	if err != nil {
		return err
	}
	if !view.CanConfirm {
		return fmt.Errorf("%w: state=%s", errCheckoutNotReady, view.State)
	}

	key := fmt.Sprintf("lt-confirm-%s-%d", r.runID, index)
	confirmCtx := grpcsvc.WithIdempotencyKey(session, key)
	receipt, err := call(confirmCtx, r, "ConfirmCheckout", func(ctx context.Context) (*grpcsvc.ConfirmCheckoutResponse, error) {
		return r.client.ConfirmCheckout(ctx, &grpcsvc.ConfirmCheckoutRequest{})
	})
	if err != nil {
		return err
	}
	if len(receipt.Orders) == 0 {
		return status.Error(codes.Internal, "confirm returned no orders")
	}
	return nil
}

// call выполняет RPC с таймаутом и записывает его латентность под именем метода.
func call[Resp any](parent context.Context, r *runner, method string, fn func(context.Context) (*Resp, error)) (*Resp, error) {
	ctx, cancel := context.WithTimeout(parent, r.cfg.timeout)
	defer cancel()

	start := time.Now()
	resp, err := fn(ctx)
	r.col.record(method, time.Since(start), grpcCode(err))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return resp, nil
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}
