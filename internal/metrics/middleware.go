package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// unmatchedRoute はルーティングされなかったリクエストのラベル。
const unmatchedRoute = "unmatched"

// NewHTTPMiddleware はリクエストごとの件数と処理時間を記録するミドルウェアを返す。
// ルートパターンはハンドラー実行後にchiのRouteContextから取得する。
func NewHTTPMiddleware(c MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := unmatchedRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			c.ObserveHTTPRequest(r.Method, route, status, time.Since(start))
		})
	}
}
