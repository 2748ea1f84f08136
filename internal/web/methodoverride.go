package web

import (
	"net/http"
	"strings"
)

// MethodOverrideField is the form field HTML forms use to send PUT and DELETE.
const MethodOverrideField = "_method"

// MethodOverride rewrites POST requests whose form carries _method=PUT or
// _method=DELETE so routing sees the intended method. Other values are ignored.
func MethodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			switch m := strings.ToUpper(r.PostFormValue(MethodOverrideField)); m {
			case http.MethodPut, http.MethodDelete, http.MethodPatch:
				r = r.Clone(r.Context())
				r.Method = m
			}
		}
		next.ServeHTTP(w, r)
	})
}
