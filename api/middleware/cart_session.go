package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const cartSessionValue = "cart_id"

// NewCookieStore builds the signed cookie store that carries the cart session id.
func NewCookieStore(cfg config.SessionConfig) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// CartSession makes sure every request carries a browser session id and puts
// it on the context. A new id is minted, and the cookie written, on first
// visit or when the cookie cannot be decoded.
func CartSession(store sessions.Store, cookieName string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// a tampered or rotated-secret cookie yields a fresh session
			sess, _ := store.Get(r, cookieName)
			if sess == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session store unavailable"))
				return
			}

			sessionID, _ := sess.Values[cartSessionValue].(string)
			if _, err := uuid.Parse(sessionID); err != nil {
				sessionID = uuid.NewString()
				sess.Values[cartSessionValue] = sessionID
				if err := sess.Save(r, w); err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save session cookie"))
					return
				}
			}

			ctx := WithCartSession(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
