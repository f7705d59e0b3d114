package controller

import (
	"context"
	"log/slog"
	"path"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/vietddude/debugctl/internal/metrics"
)

// UnaryServerInterceptor records a metric and a debug log line per request.
func UnaryServerInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	method := path.Base(info.FullMethod)
	code := status.Code(err)
	metrics.ControllerRequestsTotal.WithLabelValues(method, code.String()).Inc()
	slog.Debug("Controller request served",
		"method", method,
		"code", code.String(),
		"duration", time.Since(start),
	)
	return resp, err
}
