package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gopherai-docqa/internal/app"
	"gopherai-docqa/internal/transport/http/response"
)

const uploadField = "files"

type DocumentHandler struct {
	ingestService *app.IngestService
	maxFileBytes  int64
}

func NewDocumentHandler(ingestService *app.IngestService, maxFileBytes int64) *DocumentHandler {
	return &DocumentHandler{ingestService: ingestService, maxFileBytes: maxFileBytes}
}

// Upload ingests the multipart "files" into the chat named in the path,
// or into a new chat when the route has no chat_id.
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	chatID := uuid.Nil
	if c.Param("chat_id") != "" {
		if chatID, ok = pathUUID(c, "chat_id"); !ok {
			return
		}
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid multipart form")
		return
	}
	files, err := h.readFiles(form.File[uploadField])
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}

	report, err := h.ingestService.Ingest(c.Request.Context(), app.IngestInput{
		UserID: userID,
		ChatID: chatID,
		Files:  files,
	})
	if err != nil {
		if report != nil {
			writeErrorWithData(c, err, "ingest failed", report)
			return
		}
		writeError(c, err, "ingest failed")
		return
	}
	response.OK(c, report)
}

func (h *DocumentHandler) readFiles(headers []*multipart.FileHeader) ([]app.UploadedFile, error) {
	files := make([]app.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		if h.maxFileBytes > 0 && fh.Size > h.maxFileBytes {
			return nil, fmt.Errorf("file %s exceeds %d bytes", fh.Filename, h.maxFileBytes)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s failed", fh.Filename)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s failed", fh.Filename)
		}
		files = append(files, app.UploadedFile{Name: fh.Filename, Data: data})
	}
	return files, nil
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	chatID, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}

	docs, err := h.ingestService.ListDocuments(c.Request.Context(), userID, chatID)
	if err != nil {
		writeError(c, err, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	chatID, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}

	if err := h.ingestService.DeleteDocuments(c.Request.Context(), userID, chatID); err != nil {
		writeError(c, err, "delete documents failed")
		return
	}
	response.OK(c, gin.H{"chat_id": chatID})
}

func (h *DocumentHandler) Retry(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	documentID, ok := pathUUID(c, "document_id")
	if !ok {
		return
	}

	result, err := h.ingestService.RetryDocument(c.Request.Context(), userID, documentID)
	if err != nil {
		if result != nil {
			writeErrorWithData(c, err, "retry document failed", result)
			return
		}
		writeError(c, err, "retry document failed")
		return
	}
	response.OK(c, result)
}
