package auth

import (
	"net/http"
	"strings"

	"github.com/pantrymind/pantrymind-backend/pkg/actor"
	"github.com/pantrymind/pantrymind-backend/pkg/errors"
	"github.com/pantrymind/pantrymind-backend/pkg/httputil"
)

// Gateway headers accepted when trusted headers are enabled (development only).
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserName  = "X-User-Name"
	HeaderKitchenID = "X-Kitchen-ID"
)

// Middleware resolves the caller from a Bearer token and attaches it as the
// request actor. With trustHeaders set, requests without a token may instead
// identify themselves through the gateway headers.
func Middleware(m *Manager, trustHeaders bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, err := resolve(m, r, trustHeaders)
			if err != nil {
				httputil.Error(w, err)
				return
			}

			ctx := actor.WithActor(r.Context(), a)
			httputil.SetCaller(ctx, a.ID, a.KitchenID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolve(m *Manager, r *http.Request, trustHeaders bool) (*actor.Actor, error) {
	header := r.Header.Get("Authorization")
	if header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return nil, errors.Unauthorized("malformed authorization header")
		}
		claims, err := m.Validate(token)
		if err != nil {
			return nil, err
		}
		return claims.Actor(), nil
	}

	if trustHeaders {
		userID := r.Header.Get(HeaderUserID)
		kitchenID := r.Header.Get(HeaderKitchenID)
		if userID != "" && kitchenID != "" {
			return &actor.Actor{
				ID:        userID,
				Name:      r.Header.Get(HeaderUserName),
				KitchenID: kitchenID,
			}, nil
		}
	}

	return nil, errors.Unauthorized("missing credentials")
}
