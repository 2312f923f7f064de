package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"gopherai-docqa/internal/app"
	"gopherai-docqa/internal/transport/http/response"
)

const defaultHistoryLimit = 100

type ChatHandler struct {
	chatService *app.ChatService
}

type CreateChatRequest struct {
	Title string `json:"title" binding:"max=256"`
}

type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) CreateChat(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	chat, err := h.chatService.CreateChat(c.Request.Context(), app.CreateChatInput{
		UserID: userID,
		Title:  req.Title,
	})
	if err != nil {
		writeError(c, err, "create chat failed")
		return
	}
	response.OK(c, chat)
}

// ListChats pages with ?before=<RFC3339 updated_at of the last chat seen>.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid before cursor")
			return
		}
		before = &parsed
	}

	chats, err := h.chatService.ListChats(c.Request.Context(), userID, before)
	if err != nil {
		writeError(c, err, "list chats failed")
		return
	}

	var next string
	if len(chats) > 0 {
		next = chats[len(chats)-1].UpdatedAt.Format(time.RFC3339Nano)
	}
	response.OK(c, gin.H{
		"chats":       chats,
		"next_before": next,
	})
}

func (h *ChatHandler) DeleteChat(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	chatID, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}

	if err := h.chatService.DeleteChat(c.Request.Context(), userID, chatID); err != nil {
		writeError(c, err, "delete chat failed")
		return
	}
	response.OK(c, gin.H{"deleted_chat_id": chatID})
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	chatID, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	messages, err := h.chatService.GetMessages(c.Request.Context(), userID, chatID, limit)
	if err != nil {
		writeError(c, err, "get messages failed")
		return
	}
	response.OK(c, messages)
}

func (h *ChatHandler) Ask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	chatID, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.chatService.Ask(c.Request.Context(), app.AskInput{
		UserID:   userID,
		ChatID:   chatID,
		Question: req.Question,
	})
	if err != nil {
		writeError(c, err, "ask failed")
		return
	}
	response.OK(c, result)
}
