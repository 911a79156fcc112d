package api

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"github.com/kfimusic/beatstore/webutil"
)

// SetHeader is a middleware to set a response header.
func SetHeader(key, value string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(key, value)
			next.ServeHTTP(w, r)
		})
	}
}

// AdminAuth requires "Authorization: Bearer <token>" on operator routes.
// An empty token leaves the routes open.
func AdminAuth(token string) func(http.Handler) http.Handler {
	if token == "" {
		log.Println("WARNING (AdminAuth): ADMIN_TOKEN not set; operator routes are unauthenticated.")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			given, ok := strings.CutPrefix(r.Header.Get(webutil.HeaderAuthorization), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(given)), []byte(token)) != 1 {
				denied := webutil.ErrUnauthorized("")
				webutil.RespondWithError(w, denied.Code, denied.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
