package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Pagination describes a page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func newPagination(page, limit, total int) *Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return &Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// writeData writes {"success":true,"data":...,"pagination":...}.
func writeData(w http.ResponseWriter, r *http.Request, status int, data any, p *Pagination) {
	raw, err := json.Marshal(data)
	if err != nil {
		zctx.From(r.Context()).Error("Encode response", zap.Error(err))
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(true) })
		e.Field("data", func(e *jx.Encoder) { e.Raw(raw) })
		if p != nil {
			e.Field("pagination", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("page", func(e *jx.Encoder) { e.Int(p.Page) })
					e.Field("limit", func(e *jx.Encoder) { e.Int(p.Limit) })
					e.Field("total", func(e *jx.Encoder) { e.Int(p.Total) })
					e.Field("pages", func(e *jx.Encoder) { e.Int(p.Pages) })
				})
			})
		}
	})
	write(w, status, e.Bytes())
}

// writeMessage writes a successful response without data.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(true) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	write(w, status, e.Bytes())
}

// writeError maps err to a status and writes the error envelope. Server side
// failures are logged and their details hidden.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae := classify(err)
	if ae.status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("code", ae.code),
			zap.Error(err),
		)
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(false) })
		e.Field("error", func(e *jx.Encoder) { e.Str(ae.message) })
		e.Field("code", func(e *jx.Encoder) { e.Str(ae.code) })
		if len(ae.details) > 0 {
			e.Field("details", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, d := range ae.details {
						e.Str(d)
					}
				})
			})
		}
	})
	write(w, ae.status, e.Bytes())
}

func write(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &badRequestError{msg: "invalid request body", err: err}
	}
	return h.check(dst)
}

func (h *Handler) check(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	return validationFailure(err)
}

// pageParams reads page and limit query parameters.
func pageParams(r *http.Request, defaultLimit int) (page, limit int, err error) {
	page, limit = 1, defaultLimit
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page < 1 {
			return 0, 0, &badRequestError{msg: "page must be a positive integer", err: err}
		}
	}
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxPageLimit {
			return 0, 0, &badRequestError{msg: "limit must be between 1 and " + strconv.Itoa(maxPageLimit), err: err}
		}
	}
	return page, limit, nil
}

// maxPageLimit bounds page sizes.
const maxPageLimit = 100
