package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/kazz187/tasktracker/pkg/cerr"
	"github.com/kazz187/tasktracker/pkg/clog"
)

// Session identifies the caller of a request.
type Session struct {
	User          string
	Authenticated time.Time
}

type sessionKey struct{}

func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}

// UserFromContext returns the session user, or "" outside a session.
func UserFromContext(ctx context.Context) string {
	if s, ok := SessionFromContext(ctx); ok {
		return s.User
	}
	return ""
}

// APIKeyMiddleware admits requests that present apiKey as a bearer token,
// an X-API-Key header, or an api_key query parameter (for EventSource
// clients, which cannot set headers). It must run inside
// cerr.NewConvertConnectErrorChiMiddleware.
func APIKeyMiddleware(apiKey, user string) func(http.Handler) http.Handler {
	want := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			got := presentedKey(r)
			if got == "" {
				cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "missing api key", nil)
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "invalid api key", nil)
				return
			}
			clog.AddUser(ctx, user)
			ctx = ContextWithSession(ctx, &Session{User: user, Authenticated: time.Now()})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func presentedKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k
	}
	return r.URL.Query().Get("api_key")
}
