// Package rpc provides the Controller2 client used by debugger agents.
//
// The client exposes the three Controller2 operations with per-call retry,
// timeout and metadata settings:
//   - RegisterDebuggee
//   - ListActiveBreakpoints
//   - UpdateActiveBreakpoint
//
// Every operation comes in a blocking form and an Async form returning a
// Future.
//
// # Quick Start
//
//	client, err := rpc.NewClient(ctx, rpc.WithEndpoint("localhost:7070"), rpc.WithInsecure())
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	resp, err := client.RegisterDebuggee(ctx, nil, rpc.WithDebuggee(&domain.Debuggee{
//	    Project:      "my-project",
//	    Uniquifier:   "build-42",
//	    Description:  "api server",
//	    AgentVersion: "debugctl/go/v1",
//	}))
//
// # Package Structure
//
//   - wire/       - service descriptor, method names and codec
//   - transport/  - endpoint selection and the gRPC transport
//   - retry/      - retry policies, classification and backoff
//   - invoker/    - per-call retry and timeout execution
//   - clientinfo/ - the x-goog-api-client tag
//
// The most used types are re-exported at the root level for convenience.
package rpc

import (
	"github.com/vietddude/debugctl/internal/infra/rpc/clientinfo"
	"github.com/vietddude/debugctl/internal/infra/rpc/retry"
	"github.com/vietddude/debugctl/internal/infra/rpc/transport"
)

// Transport is the connection the client issues calls over.
type Transport = transport.Transport

// MTLSMode controls when the mTLS endpoint is used.
type MTLSMode = transport.MTLSMode

// CertSource supplies the client certificate for mutual TLS.
type CertSource = transport.CertSource

// RetryPolicy describes the retry behavior of a call.
type RetryPolicy = retry.Policy

// ClientInfo is the tag attached to every outbound call.
type ClientInfo = clientinfo.Info

// mTLS modes
const (
	MTLSAuto   = transport.MTLSAuto
	MTLSAlways = transport.MTLSAlways
	MTLSNever  = transport.MTLSNever
)

// DefaultRetryPolicy returns the default policy of the list and update operations.
func DefaultRetryPolicy() *RetryPolicy {
	return retry.DefaultPolicy()
}
