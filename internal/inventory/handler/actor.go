package handler

import (
	"net/http"

	"github.com/pantrymind/pantrymind-backend/pkg/actor"
	"github.com/pantrymind/pantrymind-backend/pkg/errors"
)

// requestActor returns the caller attached by the auth middleware. Every
// inventory route is kitchen scoped, so an actor without a kitchen is refused.
func requestActor(r *http.Request) (*actor.Actor, error) {
	a := actor.FromContext(r.Context())
	if a == nil || a.ID == "" {
		return nil, errors.Unauthorized("missing credentials")
	}
	if a.KitchenID == "" {
		return nil, errors.Forbidden("no kitchen selected")
	}
	return a, nil
}
