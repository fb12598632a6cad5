package middleware

import (
	"context"
	"net/http"
	"slices"

	"github.com/go-chi/jwtauth/v5"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/worker"
	"github.com/cmlabs-hris/attendance-ledger/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/jwt"
)

type actorKey struct{}

// AuthRequired admits requests whose verified token is one of tokenTypes
// and stores the caller as a worker.Actor on the request context.
func AuthRequired(tokenTypes ...string) func(http.Handler) http.Handler {
	if len(tokenTypes) == 0 {
		tokenTypes = []string{jwt.TokenTypeAccess}
	}
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				response.Unauthorized(w, err.Error())
				return
			}
			if token == nil {
				response.Unauthorized(w, "missing token")
				return
			}

			actor, tokenType, err := jwt.ActorFromClaims(claims)
			if err != nil || !slices.Contains(tokenTypes, tokenType) {
				response.Unauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		}
		return http.HandlerFunc(hfn)
	}
}

func WithActor(ctx context.Context, actor worker.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the authenticated caller; the zero Actor when absent.
func ActorFrom(ctx context.Context) worker.Actor {
	actor, _ := ctx.Value(actorKey{}).(worker.Actor)
	return actor
}
