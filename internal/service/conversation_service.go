package service

import (
	"context"

	"medibot-go/internal/model"
	"medibot-go/internal/repository"
)

// ConversationService 定义了对话与问诊记录的业务逻辑接口。
type ConversationService interface {
	GetConversationHistory(ctx context.Context, userID uint) ([]model.ChatMessage, error)
	ResetConversation(ctx context.Context, userID uint) error
	GetChatRecords(userID uint, page, pageSize int) ([]model.ChatHistory, int64, error)
}

type conversationService struct {
	conversationRepo repository.ConversationRepository
	historyRepo      repository.HistoryRepository
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(conversationRepo repository.ConversationRepository, historyRepo repository.HistoryRepository) ConversationService {
	return &conversationService{
		conversationRepo: conversationRepo,
		historyRepo:      historyRepo,
	}
}

// GetConversationHistory 获取用户当前会话的完整消息历史。
func (s *conversationService) GetConversationHistory(ctx context.Context, userID uint) ([]model.ChatMessage, error) {
	conversationID, err := s.conversationRepo.GetOrCreateConversationID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.conversationRepo.GetConversationHistory(ctx, conversationID)
}

// ResetConversation 重置用户当前会话，下次问诊开启新会话。
func (s *conversationService) ResetConversation(ctx context.Context, userID uint) error {
	return s.conversationRepo.ResetConversation(ctx, userID)
}

// GetChatRecords 分页获取用户的长期问诊记录。
func (s *conversationService) GetChatRecords(userID uint, page, pageSize int) ([]model.ChatHistory, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	return s.historyRepo.FindByUserWithPagination(userID, offset, pageSize)
}
