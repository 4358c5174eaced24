// Package problem renders RFC 7807 application/problem+json error bodies.
//
// No library in the example corpus specializes in RFC 7807; gin's own error
// handling is a generic JSON envelope, not this spec. Hand-rolling this one
// type is a deliberate exception to "always import a library" — there is
// nothing in the corpus to import for it.
package problem

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Problem is an RFC 7807 problem detail body.
type Problem struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Code   string `json:"code,omitempty"`
}

const contentType = "application/problem+json"

// Write sends a Problem with the given HTTP status and machine-readable code.
func Write(c *gin.Context, status int, code, title, detail string) {
	c.Header("Content-Type", contentType)
	c.AbortWithStatusJSON(status, Problem{
		Title:  title,
		Status: status,
		Detail: detail,
		Code:   code,
	})
}

// Unauthorized writes a 401 problem with a generic, non-revealing message.
func Unauthorized(c *gin.Context) {
	Write(c, http.StatusUnauthorized, "unauthorized", "Unauthorized", "missing or invalid credentials")
}

// NotFound writes a 404 problem. Used for both genuinely-missing resources
// and cross-tenant access, which must be indistinguishable from each other.
func NotFound(c *gin.Context, detail string) {
	Write(c, http.StatusNotFound, "forbidden_as_not_found", "Not Found", detail)
}

// Validation writes a 400 problem for malformed/invalid request bodies.
func Validation(c *gin.Context, detail string) {
	Write(c, http.StatusBadRequest, "validation_error", "Bad Request", detail)
}

// Conflict writes a 409 problem for duplicate-creation attempts.
func Conflict(c *gin.Context, detail string) {
	Write(c, http.StatusConflict, "conflict", "Conflict", detail)
}

// SemanticViolation writes a 422 problem (e.g. a duplicate relation).
func SemanticViolation(c *gin.Context, detail string) {
	Write(c, http.StatusUnprocessableEntity, "semantic_violation", "Unprocessable Entity", detail)
}

// Internal writes a 500 problem without leaking internal error detail.
func Internal(c *gin.Context) {
	Write(c, http.StatusInternalServerError, "internal_error", "Internal Server Error", "an internal error occurred")
}

// CapabilityMissing writes a 404 problem for an unsupported JSON-RPC method,
// mirroring jsonrpc.CodeCapabilityMissing at the HTTP layer.
func CapabilityMissing(c *gin.Context, detail string) {
	Write(c, http.StatusNotFound, "capability_not_supported", "Not Found", detail)
}
