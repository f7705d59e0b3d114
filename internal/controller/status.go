package controller

import (
	"context"
	"errors"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/vietddude/debugctl/internal/core/domain"
	"github.com/vietddude/debugctl/internal/infra/storage"
)

// storeRetryDelay is the retry hint sent when the store is unavailable.
const storeRetryDelay = time.Second

const (
	resourceDebuggee   = "clouddebugger.googleapis.com/Debuggee"
	resourceBreakpoint = "clouddebugger.googleapis.com/Breakpoint"
)

func notFound(resourceType, name string, err error) error {
	st := status.New(codes.NotFound, err.Error())
	if detailed, derr := st.WithDetails(&errdetails.ResourceInfo{
		ResourceType: resourceType,
		ResourceName: name,
		Description:  "register the debuggee again",
	}); derr == nil {
		st = detailed
	}
	return st.Err()
}

func unavailable(err error) error {
	st := status.New(codes.Unavailable, err.Error())
	if detailed, derr := st.WithDetails(&errdetails.RetryInfo{
		RetryDelay: durationpb.New(storeRetryDelay),
	}); derr == nil {
		st = detailed
	}
	return st.Err()
}

// toStatus maps store and context errors to gRPC status errors.
func toStatus(err error, resourceType, name string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return notFound(resourceType, name, err)
	case errors.Is(err, storage.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, domain.ErrMissingField):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return unavailable(err)
	}
}
