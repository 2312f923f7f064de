package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gopherai-docqa/internal/logger"
	"gopherai-docqa/internal/model"
	"gopherai-docqa/internal/repository"
)

const (
	defaultMessageLimit = 30
	defaultPageSize     = 15
	maxTitleLength      = 256
)

type AsyncMessagePublisher interface {
	Publish(ctx context.Context, msg model.Message) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, chatID uuid.UUID) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, chatID uuid.UUID, messages []model.Message) error
	DeleteHistory(ctx context.Context, chatID uuid.UUID) error
	MarkDirty(ctx context.Context, chatID uuid.UUID) error
	IsDirty(ctx context.Context, chatID uuid.UUID) (bool, error)
}

type Answerer interface {
	Answer(ctx context.Context, question string, chatID uuid.UUID) (*Answer, error)
}

type ChatService struct {
	chatRepo     *repository.ChatRepository
	docRepo      *repository.DocumentRepository
	messageRepo  *repository.MessageRepository
	publisher    AsyncMessagePublisher
	historyCache HistoryCache
	answerer     Answerer
	titler       TextGenerator
	messageLimit int
	pageSize     int
	log          *slog.Logger
}

type ChatOptions struct {
	MessageLimit int
	PageSize     int
	Logger       *slog.Logger
}

type CreateChatInput struct {
	UserID uuid.UUID
	Title  string
}

type AskInput struct {
	UserID   uuid.UUID
	ChatID   uuid.UUID
	Question string
}

type AskResult struct {
	Chat     *model.Chat    `json:"chat"`
	Question model.Message  `json:"question"`
	Answer   model.Message  `json:"answer"`
	Sources  []model.Source `json:"sources"`
}

func NewChatService(
	chatRepo *repository.ChatRepository,
	docRepo *repository.DocumentRepository,
	messageRepo *repository.MessageRepository,
	publisher AsyncMessagePublisher,
	historyCache HistoryCache,
	answerer Answerer,
	titler TextGenerator,
	opts ChatOptions,
) *ChatService {
	if opts.MessageLimit <= 0 {
		opts.MessageLimit = defaultMessageLimit
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &ChatService{
		chatRepo:     chatRepo,
		docRepo:      docRepo,
		messageRepo:  messageRepo,
		publisher:    publisher,
		historyCache: historyCache,
		answerer:     answerer,
		titler:       titler,
		messageLimit: opts.MessageLimit,
		pageSize:     opts.PageSize,
		log:          opts.Logger.With("component", "chat"),
	}
}

func (s *ChatService) CreateChat(ctx context.Context, input CreateChatInput) (*model.Chat, error) {
	if input.UserID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	chat := &model.Chat{
		UserID: input.UserID,
		Title:  truncateTitle(input.Title),
	}
	if err := s.chatRepo.Create(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// ListChats returns one page of the user's chats, most recently updated
// first. before is the updated_at of the last chat of the previous page.
func (s *ChatService) ListChats(ctx context.Context, userID uuid.UUID, before *time.Time) ([]model.Chat, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	return s.chatRepo.ListByUserID(ctx, userID, before, s.pageSize)
}

func (s *ChatService) DeleteChat(ctx context.Context, userID, chatID uuid.UUID) error {
	if _, err := ownedChat(ctx, s.chatRepo, userID, chatID); err != nil {
		return err
	}
	if err := s.chatRepo.Delete(ctx, chatID); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, chatID)
	}
	return nil
}

func (s *ChatService) GetMessages(ctx context.Context, userID, chatID uuid.UUID, limit int) ([]model.Message, error) {
	if _, err := ownedChat(ctx, s.chatRepo, userID, chatID); err != nil {
		return nil, err
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, chatID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, chatID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messageRepo.ListByChatID(ctx, chatID, 0)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, chatID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, chatID, messages)
		}
	}
	return trimMessages(messages, limit), nil
}

// Ask answers a question inside a chat. The chat must be usable and every
// one of its documents ready. Each question counts against the chat's
// message limit; the question that reaches it is still answered.
func (s *ChatService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, ErrMessageEmpty
	}
	chat, err := ownedChat(ctx, s.chatRepo, input.UserID, input.ChatID)
	if err != nil {
		return nil, err
	}

	if chat.NumMessages == 0 {
		s.generateTitle(ctx, chat, question)
	}
	if chat.Status == model.ChatUnusable {
		return nil, ErrChatUnusable
	}
	if err := s.checkReady(ctx, chat.ID); err != nil {
		return nil, err
	}
	if s.publisher == nil {
		return nil, ErrMessageEnqueue
	}

	updated, err := s.chatRepo.IncrementMessages(ctx, chat.ID, s.messageLimit)
	if errors.Is(err, repository.ErrChatFrozen) {
		return nil, ErrChatUnusable
	}
	if err != nil {
		return nil, err
	}

	userMessage := model.Message{
		ID:        uuid.New(),
		ChatID:    chat.ID,
		Role:      model.RoleUser,
		Content:   question,
		CreatedAt: time.Now(),
	}
	if err := s.publish(ctx, userMessage); err != nil {
		return nil, err
	}

	answer, err := s.answerer.Answer(ctx, question, chat.ID)
	if err != nil {
		return nil, err
	}

	llmMessage := model.Message{
		ID:        uuid.New(),
		ChatID:    chat.ID,
		Role:      model.RoleLLM,
		Content:   answer.Text,
		Sources:   answer.Sources,
		CreatedAt: time.Now(),
	}
	if err := s.publish(ctx, llmMessage); err != nil {
		return nil, err
	}

	return &AskResult{
		Chat:     updated,
		Question: userMessage,
		Answer:   llmMessage,
		Sources:  answer.Sources,
	}, nil
}

// checkReady fails unless the chat has documents and all of them are ready.
func (s *ChatService) checkReady(ctx context.Context, chatID uuid.UUID) error {
	docs, err := s.docRepo.ListByChatID(ctx, chatID)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return ErrChatNotReady
	}
	for _, d := range docs {
		if d.Status != model.DocumentReady {
			return ErrChatNotReady
		}
	}
	return nil
}

func (s *ChatService) publish(ctx context.Context, msg model.Message) error {
	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, msg.ChatID)
		_ = s.historyCache.DeleteHistory(ctx, msg.ChatID)
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.log.Error("publish message failed", "chat_id", msg.ChatID, "role", msg.Role, "error", err)
		return ErrMessageEnqueue
	}
	return nil
}

func (s *ChatService) generateTitle(ctx context.Context, chat *model.Chat, question string) {
	if s.titler == nil {
		return
	}
	title, err := s.titler.Generate(ctx, titlePrompt(question))
	if err != nil {
		s.log.Warn("generate chat title failed", "chat_id", chat.ID, "error", err)
		return
	}
	title = truncateTitle(strings.Trim(title, "\"' \n"))
	if title == model.DefaultChatTitle {
		return
	}
	if err := s.chatRepo.UpdateTitle(ctx, chat.ID, title); err != nil {
		s.log.Warn("store chat title failed", "chat_id", chat.ID, "error", err)
		return
	}
	chat.Title = title
}

func ownedChat(ctx context.Context, repo *repository.ChatRepository, userID, chatID uuid.UUID) (*model.Chat, error) {
	if userID == uuid.Nil || chatID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	chat, err := repo.GetByIDAndUserID(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

func truncateTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.DefaultChatTitle
	}
	runes := []rune(title)
	if len(runes) > maxTitleLength {
		return string(runes[:maxTitleLength])
	}
	return title
}

func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}
