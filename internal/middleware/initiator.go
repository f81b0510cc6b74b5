package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ruralpay/txauth/internal/models"
	"github.com/ruralpay/txauth/internal/services"
)

const (
	HeaderInitiatorID   = "X-Initiator-ID"
	HeaderInitiatorRole = "X-Initiator-Role"
)

type contextKey struct{ name string }

var initiatorKey = &contextKey{"initiator"}

// Initiator copies the caller identity headers into the request context.
// The headers are trusted as given; nothing is authenticated here.
func Initiator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderInitiatorID))
		if id == "" {
			services.SendErrorResponse(w, HeaderInitiatorID+" header required", http.StatusUnauthorized, nil)
			return
		}

		role, err := models.ParseRole(r.Header.Get(HeaderInitiatorRole))
		if err != nil {
			services.SendErrorResponse(w, "Invalid "+HeaderInitiatorRole+" header", http.StatusBadRequest, nil)
			return
		}

		ctx := WithInitiator(r.Context(), models.Initiator{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithInitiator(ctx context.Context, initiator models.Initiator) context.Context {
	return context.WithValue(ctx, initiatorKey, initiator)
}

func InitiatorFrom(ctx context.Context) (models.Initiator, bool) {
	initiator, ok := ctx.Value(initiatorKey).(models.Initiator)
	return initiator, ok
}
