package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryInterceptor authenticates the bearer token sent in the
// "authorization" metadata key. Methods under a public prefix (the health
// service, typically) pass through unauthenticated.
func UnaryInterceptor(v *Verifier, publicPrefixes ...string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		for _, p := range publicPrefixes {
			if strings.HasPrefix(info.FullMethod, p) {
				return handler(ctx, req)
			}
		}

		md, _ := metadata.FromIncomingContext(ctx)
		var header string
		if vals := md.Get("authorization"); len(vals) > 0 {
			header = vals[0]
		}

		caller, err := v.VerifyBearer(header)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		return handler(WithCaller(ctx, caller), req)
	}
}
