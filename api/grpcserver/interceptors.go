package grpcserver

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
)

var marshaler = protojson.MarshalOptions{
	Multiline:       false,
	EmitUnpopulated: true,
}

// LoggingInterceptor logs each call with its request as JSON and the
// resulting status code.
func LoggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	attrs := []any{
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"took", time.Since(start),
	}
	if msg, ok := req.(protoreflect.ProtoMessage); ok {
		if b, mErr := marshaler.Marshal(msg); mErr == nil {
			attrs = append(attrs, "request", string(b))
		}
	}

	if err != nil {
		slog.Warn("RPC: failed", append(attrs, "error", err)...)
	} else {
		slog.Debug("RPC: ok", attrs...)
	}
	return resp, err
}
