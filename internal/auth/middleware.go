package auth

import (
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dwikikusuma/marketplace-core/pkg/httpx"
)

// Middleware authenticates the bearer token and stores the Caller in the
// request context.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := v.VerifyBearer(r.Header.Get("Authorization"))
			if err != nil {
				httpx.WriteError(w, status.Error(codes.Unauthenticated, "unauthorized"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// MustCaller returns the Caller stored by Middleware. Handlers mounted
// behind Middleware can rely on it being present.
func MustCaller(r *http.Request) Caller {
	c, ok := CallerFrom(r.Context())
	if !ok {
		panic("auth: handler mounted without auth.Middleware")
	}
	return c
}
