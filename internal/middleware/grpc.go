package middleware

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnarySecret requires "authorization: Bearer <secret>" metadata on every
// method not listed in open.
func UnarySecret(secret string, open ...string) grpc.UnaryServerInterceptor {
	skip := make(map[string]bool, len(open))
	for _, m := range open {
		skip[m] = true
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if skip[info.FullMethod] {
			return next(ctx, req)
		}
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		raw := ""
		if vals := md.Get("authorization"); len(vals) > 0 {
			raw = bearer(vals[0])
		}
		if raw == "" {
			return nil, status.Error(codes.Unauthenticated, "no secret")
		}
		if !SecretMatches(raw, secret) {
			return nil, status.Error(codes.Unauthenticated, "bad secret")
		}
		return next(ctx, req)
	}
}
