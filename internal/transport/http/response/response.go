package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeUsernameExists     = 40001
	CodeEmailExists        = 40002
	CodeTooManyDocuments   = 40003
	CodeUnsupportedFormat  = 40004
	CodePageLimitExceeded  = 40005
	CodeMessageEmpty       = 40006
	CodeUnauthorized       = 40100
	CodeInvalidCredentials = 40101
	CodeChatUnusable       = 40300
	CodeChatNotFound       = 40401
	CodeDocumentNotFound   = 40402
	CodeChatNotReady       = 40900
	CodeRetryUnsupported   = 40901
	CodeUnprocessable      = 42200
	CodeInternalServer     = 50000
	CodeUpstream           = 50200
	CodeUnavailable        = 50300
)

type APIResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func OK(c *gin.Context, data any) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// ErrorWithData is used when a partially completed operation still has a
// result worth returning.
func ErrorWithData(c *gin.Context, httpStatus, code int, message string, data any) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}
