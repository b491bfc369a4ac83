package httpapi

import "github.com/gin-gonic/gin"

// envelope is the uniform response body: {"status":"success","data":...} on
// the happy path, {"status":"error","message":...} otherwise.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

func respondSuccess(contextGin *gin.Context, statusCode int, data any) {
	contextGin.JSON(statusCode, envelope{Status: "success", Data: data})
}

func respondMessage(contextGin *gin.Context, statusCode int, data any, message string) {
	contextGin.JSON(statusCode, envelope{Status: "success", Data: data, Message: message})
}

func respondError(contextGin *gin.Context, statusCode int, message string) {
	contextGin.AbortWithStatusJSON(statusCode, envelope{Status: "error", Message: message})
}

func respondErrorDetails(contextGin *gin.Context, statusCode int, message string, details any) {
	contextGin.AbortWithStatusJSON(statusCode, envelope{Status: "error", Message: message, Details: details})
}
