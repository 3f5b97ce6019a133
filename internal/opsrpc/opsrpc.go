// Package opsrpc serves the operator gRPC API: the reminder sweep trigger and
// the standard health service.
package opsrpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"booking-api/internal/apperr"
	"booking-api/internal/booking"
	"booking-api/internal/middleware"
)

const (
	ServiceName            = "booking.ops.v1.ReminderService"
	SendDueRemindersMethod = "/" + ServiceName + "/SendDueReminders"
)

type Runner interface {
	Run(ctx context.Context, trigger string) (booking.SweepResult, error)
}

// ReminderServer is the service contract registered with grpc.
type ReminderServer interface {
	SendDueReminders(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReminderServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendDueReminders", Handler: sendDueRemindersHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "booking/ops/v1/ops.proto",
}

func sendDueRemindersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReminderServer).SendDueReminders(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SendDueRemindersMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReminderServer).SendDueReminders(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

type Server struct {
	runner Runner
	log    *slog.Logger
}

func (s *Server) SendDueReminders(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	res, err := s.runner.Run(ctx, "grpc")
	if err != nil {
		s.log.WarnContext(ctx, "grpc sweep failed", "error", err)
		return nil, toStatus(err)
	}
	out, err := structpb.NewStruct(map[string]any{
		"sent":   res.Sent,
		"failed": res.Failed,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// NewServer builds a grpc server with the reminder and health services. Every
// call is rate limited; all but health checks need the shared secret.
func NewServer(runner Runner, secret string, rl *middleware.RateLimiter, logger *slog.Logger) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.UnaryRateLimit(rl),
			middleware.UnarySecret(secret, "/grpc.health.v1.Health/Check"),
		),
	)
	srv.RegisterService(&serviceDesc, &Server{runner: runner, log: logger.With("component", "opsrpc")})

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, apperr.ErrUnauthenticated), errors.Is(err, apperr.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, apperr.ErrConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, apperr.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}
