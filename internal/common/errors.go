package common

import (
	"errors"
	"net/http"
)

// ErrorMapping pairs a domain sentinel with its transport rendering.
type ErrorMapping struct {
	Target error
	Status int
	Code   string
}

// ErrorMap translates domain sentinels into error responses. Handlers declare
// one map per flow so the status and code for each sentinel live in one place.
type ErrorMap []ErrorMapping

// Write renders err using the first matching mapping. Unmapped errors fall
// back to a 500 INTERNAL response.
func (m ErrorMap) Write(w http.ResponseWriter, err error) {
	for _, e := range m {
		if errors.Is(err, e.Target) {
			JSONError(w, e.Status, e.Code, err.Error(), nil)
			return
		}
	}
	JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
}
