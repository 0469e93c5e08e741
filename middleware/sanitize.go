package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	skyAuth "github.com/MrEthical07/skyAuth"
	"github.com/MrEthical07/skyAuth/sanitize"
)

// SanitizeJSON replaces JSON request bodies with their sanitized form.
// Injection findings are audited; in strict mode they reject the request.
// Bodies that do not parse are left for the handler to reject.
func SanitizeJSON(s *sanitize.Sanitizer, events SecurityEmitter, onErr ErrorWriter) Middleware {
	onErr = orDefault(onErr)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody || !isJSON(r) {
				next.ServeHTTP(w, r)
				return
			}

			raw, err := io.ReadAll(r.Body)
			_ = r.Body.Close()
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					onErr(w, r, ErrBodyTooLarge)
					return
				}
				onErr(w, r, err)
				return
			}

			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.UseNumber()
			var tree any
			if err := dec.Decode(&tree); err != nil {
				r.Body = io.NopCloser(bytes.NewReader(raw))
				next.ServeHTTP(w, r)
				return
			}

			clean, rep, err := s.Check(tree)
			if rep.Injection() {
				emit(events, r.Context(), skyAuth.AuditEventInjectionDetected, "", ErrInjectionRejected, map[string]string{
					"fields": strings.Join(rep.Paths(), ","),
					"strict": boolString(s.Strict()),
				})
			}
			if err != nil {
				onErr(w, r, ErrInjectionRejected)
				return
			}

			body := raw
			if !rep.Clean() {
				if body, err = json.Marshal(clean); err != nil {
					onErr(w, r, err)
					return
				}
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			next.ServeHTTP(w, r)
		})
	}
}

func isJSON(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json")
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
