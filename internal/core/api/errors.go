package api

import (
	"context"
	"errors"

	"github.com/solatis/typekeeper/internal/typedef"
	"github.com/solatis/typekeeper/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service errors to gRPC status codes.
//
//	malformed request, bad field declarations  INVALID_ARGUMENT
//	unknown target                             NOT_FOUND
//	target reopened with other fields         ALREADY_EXISTS
//	engine rejected a definition               FAILED_PRECONDITION
//	deadline                                   DEADLINE_EXCEEDED
//	anything else (store, sink)                UNAVAILABLE
func toStatus(err error) error {
	var invalidReq errInvalidRequest
	switch {
	case err == nil:
		return nil
	case errors.As(err, &invalidReq):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, types.ErrUnknownTarget):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrTargetExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case typedef.IsClientError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, types.ErrIncompatibleDefinition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Unavailable, err.Error())
}
