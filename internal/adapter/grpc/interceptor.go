package grpc

import (
	"context"
	"slices"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AuthInterceptor returns a gRPC unary server interceptor that validates
// the authorization token from request metadata.
// Methods listed in publicMethods, and every method when validToken is empty, skip the check.
// If the token is missing or invalid, it returns status.Unauthenticated.
func AuthInterceptor(validToken string, publicMethods ...string) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if err := authorize(ctx, validToken, info.FullMethod, publicMethods); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor is the streaming counterpart of AuthInterceptor
func StreamAuthInterceptor(validToken string, publicMethods ...string) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if err := authorize(ss.Context(), validToken, info.FullMethod, publicMethods); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

func authorize(ctx context.Context, validToken, method string, publicMethods []string) error {
	if validToken == "" || slices.Contains(publicMethods, method) {
		return nil
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}

	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		return status.Error(codes.Unauthenticated, "missing authorization header")
	}

	if strings.TrimPrefix(authHeaders[0], "Bearer ") != validToken {
		return status.Error(codes.Unauthenticated, "invalid token")
	}

	return nil
}
