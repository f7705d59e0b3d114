// Package wire defines the Controller2 gRPC contract: the service descriptor,
// the full method names and the codec the messages travel with.
//
// The messages themselves are the domain request/response types. They are
// encoded with the "json" codec registered by this package, so both the client
// transport and the reference controller must import it.
package wire

import (
	"context"

	"google.golang.org/grpc"

	"github.com/vietddude/debugctl/internal/core/domain"
)

const (
	// ServiceName is the fully qualified Controller2 service name.
	ServiceName = "google.devtools.clouddebugger.v2.Controller2"

	RegisterDebuggeeMethod       = "/" + ServiceName + "/RegisterDebuggee"
	ListActiveBreakpointsMethod  = "/" + ServiceName + "/ListActiveBreakpoints"
	UpdateActiveBreakpointMethod = "/" + ServiceName + "/UpdateActiveBreakpoint"
)

// Short operation names, used for configuration keys, metrics and logs.
const (
	OpRegisterDebuggee       = "register_debuggee"
	OpListActiveBreakpoints  = "list_active_breakpoints"
	OpUpdateActiveBreakpoint = "update_active_breakpoint"
)

// Operations lists the short names of every Controller2 operation.
var Operations = []string{
	OpRegisterDebuggee,
	OpListActiveBreakpoints,
	OpUpdateActiveBreakpoint,
}

// ControllerServer is the server API for the Controller2 service.
type ControllerServer interface {
	RegisterDebuggee(context.Context, *domain.RegisterDebuggeeRequest) (*domain.RegisterDebuggeeResponse, error)
	ListActiveBreakpoints(context.Context, *domain.ListActiveBreakpointsRequest) (*domain.ListActiveBreakpointsResponse, error)
	UpdateActiveBreakpoint(context.Context, *domain.UpdateActiveBreakpointRequest) (*domain.UpdateActiveBreakpointResponse, error)
}

// RegisterControllerServer registers srv on s.
func RegisterControllerServer(s grpc.ServiceRegistrar, srv ControllerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc is the grpc.ServiceDesc for the Controller2 service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControllerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RegisterDebuggee", Handler: registerDebuggeeHandler},
		{MethodName: "ListActiveBreakpoints", Handler: listActiveBreakpointsHandler},
		{MethodName: "UpdateActiveBreakpoint", Handler: updateActiveBreakpointHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "google/devtools/clouddebugger/v2/controller.proto",
}

func registerDebuggeeHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(domain.RegisterDebuggeeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControllerServer).RegisterDebuggee(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RegisterDebuggeeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControllerServer).RegisterDebuggee(ctx, req.(*domain.RegisterDebuggeeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listActiveBreakpointsHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(domain.ListActiveBreakpointsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControllerServer).ListActiveBreakpoints(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListActiveBreakpointsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControllerServer).ListActiveBreakpoints(ctx, req.(*domain.ListActiveBreakpointsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func updateActiveBreakpointHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(domain.UpdateActiveBreakpointRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControllerServer).UpdateActiveBreakpoint(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: UpdateActiveBreakpointMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControllerServer).UpdateActiveBreakpoint(ctx, req.(*domain.UpdateActiveBreakpointRequest))
	}
	return interceptor(ctx, in, info, handler)
}
