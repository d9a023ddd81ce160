package connect

import (
	"context"
	"crypto/subtle"

	"connectrpc.com/connect"
	zlog "github.com/rs/zerolog/log"
)

const (
	// AdminTokenHeader is the header name for admin authentication token.
	AdminTokenHeader = "X-Admin-Token"
)

// NewAdminAuthInterceptor creates an interceptor that validates the admin
// token of unary control calls.
func NewAdminAuthInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			// Extract token from metadata
			got := req.Header().Get(AdminTokenHeader)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				zlog.Warn().Msgf("api: unauthenticated call: procedure=%s peer=%s", req.Spec().Procedure, req.Peer().Addr)
				return nil, connect.NewError(connect.CodeUnauthenticated, nil)
			}

			return next(ctx, req)
		}
	}
}

// NewTokenInterceptor attaches the admin token to outgoing unary calls.
func NewTokenInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient {
				req.Header().Set(AdminTokenHeader, token)
			}
			return next(ctx, req)
		}
	}
}
