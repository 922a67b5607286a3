// Package render centralizes the JSON envelopes every endpoint speaks:
// successes wrap their payload under success/data, failures carry an
// error code with an optional human message and details.
package render

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OK writes a 200 with the standard success envelope.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// OKCount writes a 200 success envelope for list payloads that report
// their length alongside the data.
func OKCount(c *gin.Context, count int, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "count": count, "data": data})
}

// OKMessage writes a 200 success envelope with a human-readable note,
// used by writes that want to confirm what happened.
func OKMessage(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message, "data": data})
}

// Passthrough writes an upstream payload as-is under the success
// envelope. Upstream lookups do not get reshaped.
func Passthrough(c *gin.Context, data any) {
	OK(c, data)
}

// Error writes the failure envelope with just an error code.
func Error(c *gin.Context, status int, code string) {
	c.JSON(status, gin.H{"error": code})
}

// ErrorMessage writes the failure envelope with a human message.
func ErrorMessage(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": code, "message": message})
}

// ErrorDetails writes the failure envelope with validation details.
func ErrorDetails(c *gin.Context, status int, code, message string, details any) {
	c.JSON(status, gin.H{"error": code, "message": message, "details": details})
}

// BadRequest is the 400 shorthand for malformed input.
func BadRequest(c *gin.Context, message string) {
	ErrorMessage(c, http.StatusBadRequest, "invalid_request", message)
}

// NotFound is the 404 shorthand with a guidance message.
func NotFound(c *gin.Context, message string) {
	ErrorMessage(c, http.StatusNotFound, "not_found", message)
}

// Internal is the 500 shorthand. The underlying error goes to the log,
// never to the client.
func Internal(c *gin.Context, message string) {
	ErrorMessage(c, http.StatusInternalServerError, "internal_error", message)
}
