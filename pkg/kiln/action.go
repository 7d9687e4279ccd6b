package kiln

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
)

// ActionRoute is a generated action handler and the path it serves.
type ActionRoute struct {
	Name    string
	Path    string
	Handler http.Handler
}

// MountActions registers every route on r.
func MountActions(r chi.Router, routes ...ActionRoute) {
	for _, rt := range routes {
		r.Handle(rt.Path, rt.Handler)
	}
}

// ActionHandler adapts an action function to HTTP. The request body is
// decoded as JSON into T and the returned component is written as HTML.
//
// Methods other than POST get 405, an undecodable body 400 and an error
// from fn 500.
func ActionHandler[T any](fn func(ctx context.Context, in T) (templ.Component, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var in T
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}

		c, err := fn(r.Context(), in)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if c != nil {
			_ = c.Render(r.Context(), w)
		}
	}
}
