package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/jx"
)

// writeError writes an API error envelope.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(false) })
		e.Field("error", func(e *jx.Encoder) { e.Str(msg) })
		e.Field("code", func(e *jx.Encoder) { e.Str(code) })
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
