package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"platebook/pkg/token"
)

// Error kinds surfaced by the auth core. Handlers translate them to HTTP
// statuses; anything unrecognized is a 500.
var (
	ErrValidation         = errors.New("missing required field")        // 400
	ErrConflict           = errors.New("email already exists")          // 406
	ErrInvalidCredentials = errors.New("invalid email or password")     // 400, uniform
	ErrInvalidToken       = errors.New("invalid or expired token")      // 400
	ErrUnauthenticated    = errors.New("access denied, invalid token")  // 401
)

func errStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusNotAcceptable
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidToken), errors.Is(err, token.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the mapped status and a JSON error body. Internal
// errors never leak their message to the client.
func abortWithError(c *gin.Context, err error) {
	status := errStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
