package web

import (
	"context"
	"crypto/subtle"
	"net/http"
)

type adminUserKey struct{}

// AdminUser returns the authenticated admin user name from the request
// context, or "" outside the admin subtree.
func AdminUser(ctx context.Context) string {
	user, _ := ctx.Value(adminUserKey{}).(string)
	return user
}

// basicAuth gates a route subtree behind HTTP Basic credentials. A missing
// or unparsable header gets a 401 challenge; parsable but mismatched
// credentials get a 403. The check is stateless: no session or token is
// issued on success.
func basicAuth(username, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="Admin Area"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
			passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
			if !userMatch || !passMatch {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), adminUserKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
