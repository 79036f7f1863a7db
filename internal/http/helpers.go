package http

import (
	"net/http"
	"strconv"
	"strings"
)

// sanitizeInput removes control characters (except tab and newlines) and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// confirmed reports whether the caller passed confirm=true.
func confirmed(r *http.Request) bool {
	ok, err := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return err == nil && ok
}

// requireConfirmation answers 428 unless the destructive call was confirmed.
func requireConfirmation(w http.ResponseWriter, r *http.Request, what string) bool {
	if confirmed(r) {
		return true
	}
	WriteError(w, ErrConfirmationRequired, what+" cannot be undone; repeat the request with confirm=true", nil)
	return false
}

// requireParam returns a path parameter, answering 400 when it is blank.
func requireParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(pathParam(r, name))
	if v == "" {
		WriteError(w, ErrMissingRequiredData, name+" is required", nil)
		return "", false
	}
	return v, true
}
