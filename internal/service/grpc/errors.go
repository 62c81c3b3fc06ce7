package grpcsvc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
	"github.com/vladislavdragonenkov/petshop/internal/service/idempotency"
)

// toStatus переводит доменную ошибку в gRPC-статус. Внутренние ошибки
// возвращаются без исходного сообщения.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrPetNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case domain.IsValidation(err),
		errors.Is(err, domain.ErrCustomerRequired),
		errors.Is(err, domain.ErrSpeciesInvalid),
		errors.Is(err, domain.ErrIdempotencyKeyRequired):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrCheckoutNotReady):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrCheckoutInProgress),
		errors.Is(err, domain.ErrCheckoutAbandoned),
		errors.Is(err, idempotency.ErrRequestInProgress):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return status.Error(codes.AlreadyExists, "idempotency key is already used with a different request")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
