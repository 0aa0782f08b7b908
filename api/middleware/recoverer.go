package middleware

import (
	"fmt"
	"net/http"

	"github.com/angelmondragon/fashionstore-backend/api/responses"
	pkgerrors "github.com/angelmondragon/fashionstore-backend/pkg/errors"
	"github.com/angelmondragon/fashionstore-backend/pkg/logger"
)

// Recoverer turns a handler panic into a storefront INTERNAL_ERROR envelope.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err := fmt.Errorf("panic: %v", rec)
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"panic":  fmt.Sprint(rec),
						"method": r.Method,
						"path":   r.URL.Path,
					})
					if userID := UserIDFromContext(ctx); userID != "" {
						ctx = logg.WithUserID(ctx, userID)
					}
					logg.Error(ctx, "storefront.panic_recovered", err)
				}

				typed := pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storefront request failed").
					WithDetails(map[string]any{"method": r.Method, "path": r.URL.Path})
				responses.WriteError(ctx, logg, w, typed)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
