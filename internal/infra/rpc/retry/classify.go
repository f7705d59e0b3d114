package retry

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Class is the retry-relevant classification of a call error.
type Class int

const (
	ClassNone Class = iota
	ClassDeadlineExceeded
	ClassUnavailable
	ClassCancelled
	ClassOther
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassDeadlineExceeded:
		return "deadline_exceeded"
	case ClassUnavailable:
		return "unavailable"
	case ClassCancelled:
		return "cancelled"
	default:
		return "other"
	}
}

// Code returns the gRPC code of err. Bare context errors map to their gRPC
// equivalents so that stubs returning ctx.Err() classify like the transport.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	}
	return codes.Unknown
}

// Classify determines the class of err.
func Classify(err error) Class {
	switch Code(err) {
	case codes.OK:
		return ClassNone
	case codes.DeadlineExceeded:
		return ClassDeadlineExceeded
	case codes.Unavailable:
		return ClassUnavailable
	case codes.Canceled:
		return ClassCancelled
	default:
		return ClassOther
	}
}

// Outcome is the result of a single attempt as seen by the retry loop.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	default:
		return "fatal"
	}
}

// Evaluate classifies the outcome of an attempt under policy p. A nil policy
// makes every error fatal. Cancellation is never retryable.
func Evaluate(p *Policy, err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	if p == nil || p.Predicate == nil || Classify(err) == ClassCancelled {
		return OutcomeFatal
	}
	if p.Predicate(err) {
		return OutcomeRetryable
	}
	return OutcomeFatal
}

// Predicate reports whether an error is eligible for retry.
type Predicate func(err error) bool

// IfCodes retries errors whose gRPC code is one of cs.
func IfCodes(cs ...codes.Code) Predicate {
	set := make(map[codes.Code]struct{}, len(cs))
	for _, c := range cs {
		set[c] = struct{}{}
	}
	return func(err error) bool {
		_, ok := set[Code(err)]
		return ok
	}
}

// IfTransient retries deadline exceeded and unavailable errors.
func IfTransient() Predicate {
	return IfCodes(codes.DeadlineExceeded, codes.Unavailable)
}
