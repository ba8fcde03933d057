package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/MrEthical07/authkit"
	"go.uber.org/zap"
)

type clientContextKey struct{}

// ClientFromContext returns the client stored by [Session].
func ClientFromContext(ctx context.Context) (*authkit.Client, bool) {
	c, ok := ctx.Value(clientContextKey{}).(*authkit.Client)
	return c, ok
}

// Session starts the engine session for every request. The session is
// committed right before the first header write, or when the handler
// returns without writing.
func Session(engine *authkit.Engine, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}

			ctx := authkit.WithClientIP(r.Context(), clientIP(r))
			cw := &commitWriter{ResponseWriter: w}
			client, err := engine.StartSession(ctx, authkit.NewHTTPCookieJar(cw, r))
			if err != nil {
				logger.Error("start session", zap.Error(err))
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
			cw.commit = func() {
				if err := engine.Commit(ctx, client); err != nil {
					logger.Error("commit session", zap.Error(err))
				}
			}

			ctx = context.WithValue(ctx, clientContextKey{}, client)
			next.ServeHTTP(cw, r.WithContext(ctx))
			cw.flushCommit()
		})
	}
}

// commitWriter runs commit once before the header goes out, so session
// cookies set by Commit still reach the client.
type commitWriter struct {
	http.ResponseWriter
	commit func()
	once   sync.Once
}

func (w *commitWriter) flushCommit() {
	w.once.Do(func() {
		if w.commit != nil {
			w.commit()
		}
	})
}

func (w *commitWriter) WriteHeader(status int) {
	w.flushCommit()
	w.ResponseWriter.WriteHeader(status)
}

func (w *commitWriter) Write(b []byte) (int, error) {
	w.flushCommit()
	return w.ResponseWriter.Write(b)
}

func (w *commitWriter) Flush() {
	w.flushCommit()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *commitWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
