package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gopherai-docqa/internal/app"
	"gopherai-docqa/internal/transport/http/middleware"
	"gopherai-docqa/internal/transport/http/response"
)

type apiError struct {
	status int
	code   int
}

// errorTable is walked in order; the first sentinel the error wraps wins.
var errorTable = []struct {
	target error
	apiError
}{
	{app.ErrInvalidInput, apiError{http.StatusBadRequest, response.CodeBadRequest}},
	{app.ErrMessageEmpty, apiError{http.StatusBadRequest, response.CodeMessageEmpty}},
	{app.ErrNoDocuments, apiError{http.StatusBadRequest, response.CodeBadRequest}},
	{app.ErrTooManyDocuments, apiError{http.StatusBadRequest, response.CodeTooManyDocuments}},
	{app.ErrUnsupportedFormat, apiError{http.StatusBadRequest, response.CodeUnsupportedFormat}},
	{app.ErrPageLimitExceeded, apiError{http.StatusBadRequest, response.CodePageLimitExceeded}},
	{app.ErrUsernameExists, apiError{http.StatusBadRequest, response.CodeUsernameExists}},
	{app.ErrEmailExists, apiError{http.StatusBadRequest, response.CodeEmailExists}},
	{app.ErrInvalidCredential, apiError{http.StatusUnauthorized, response.CodeInvalidCredentials}},
	{app.ErrChatNotFound, apiError{http.StatusNotFound, response.CodeChatNotFound}},
	{app.ErrDocumentNotFound, apiError{http.StatusNotFound, response.CodeDocumentNotFound}},
	{app.ErrChatUnusable, apiError{http.StatusForbidden, response.CodeChatUnusable}},
	{app.ErrChatNotReady, apiError{http.StatusConflict, response.CodeChatNotReady}},
	{app.ErrRetryUnsupported, apiError{http.StatusConflict, response.CodeRetryUnsupported}},
	{app.ErrChunkingFailed, apiError{http.StatusUnprocessableEntity, response.CodeUnprocessable}},
	{app.ErrEmbeddingFailed, apiError{http.StatusBadGateway, response.CodeUpstream}},
	{app.ErrRetrievalFailed, apiError{http.StatusBadGateway, response.CodeUpstream}},
	{app.ErrGenerationFailed, apiError{http.StatusBadGateway, response.CodeUpstream}},
	{app.ErrMessageEnqueue, apiError{http.StatusServiceUnavailable, response.CodeUnavailable}},
}

func classify(err error) (apiError, bool) {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			return e.apiError, true
		}
	}
	return apiError{http.StatusInternalServerError, response.CodeInternalServer}, false
}

// writeError maps a service error onto the response envelope. Unknown
// errors are logged through gin and answered with fallback.
func writeError(c *gin.Context, err error, fallback string) {
	writeErrorWithData(c, err, fallback, nil)
}

func writeErrorWithData(c *gin.Context, err error, fallback string, data any) {
	e, known := classify(err)
	message := err.Error()
	if !known {
		_ = c.Error(err)
		message = fallback
	}
	if data == nil {
		response.Error(c, e.status, e.code, message)
		return
	}
	response.ErrorWithData(c, e.status, e.code, message, data)
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := raw.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// requireUser writes 401 and returns false when the token carried no user.
func requireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
	}
	return userID, ok
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil || id == uuid.Nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
