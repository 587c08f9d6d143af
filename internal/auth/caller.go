package auth

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// Caller is the authenticated identity a request acts as. Services receive it
// as an explicit argument instead of reading session state.
type Caller struct {
	ID   string
	Role Role
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

// CanAccess reports whether the caller may read a resource owned by ownerID.
func (c Caller) CanAccess(ownerID string) bool {
	return c.IsAdmin() || (c.ID != "" && c.ID == ownerID)
}

// RequireAdmin returns ErrForbidden unless the caller is an admin.
func (c Caller) RequireAdmin() error {
	if !c.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

type ctxKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(ctxKey{}).(Caller)
	return c, ok
}

// StatusError converts the auth sentinels into gRPC statuses. ok is false
// for any other error.
func StatusError(err error) (_ error, ok bool) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error()), true
	case errors.Is(err, ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error()), true
	}
	return nil, false
}
