package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"medibot-go/internal/config"
	"medibot-go/internal/model"
	"medibot-go/internal/repository"
	"medibot-go/pkg/llm"
	"medibot-go/pkg/log"

	"github.com/gorilla/websocket"
)

// ChatService 定义了问诊对话的接口。
type ChatService interface {
	StreamResponse(ctx context.Context, query string, user *model.User, ws *websocket.Conn, shouldStop func() bool) error
}

type chatService struct {
	retrievalService RetrievalService
	cacheService     CacheService
	llmClient        llm.Client
	conversationRepo repository.ConversationRepository
	historyRepo      repository.HistoryRepository
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	retrievalService RetrievalService,
	cacheService CacheService,
	llmClient llm.Client,
	conversationRepo repository.ConversationRepository,
	historyRepo repository.HistoryRepository,
) ChatService {
	return &chatService{
		retrievalService: retrievalService,
		cacheService:     cacheService,
		llmClient:        llmClient,
		conversationRepo: conversationRepo,
		historyRepo:      historyRepo,
	}
}

// StreamResponse 协调完整的问诊流程并流式下发回答。
// 先查语义缓存，未命中再走检索增强生成；回答完成后写回缓存与历史。
func (s *chatService) StreamResponse(ctx context.Context, query string, user *model.User, ws *websocket.Conn, shouldStop func() bool) error {
	severity := DetectSeverity(query)
	log.Infof("[ChatService] 收到问诊, user: %s, severity: %s", user.Username, severity)

	// 1. 语义缓存短路：命中时整段下发缓存答案，不再调用 LLM
	if cachedAnswer, hit := s.cacheService.Check(ctx, query); hit {
		if err := writeChunk(ws, cachedAnswer); err != nil {
			return fmt.Errorf("failed to write cached answer: %w", err)
		}
		sendCompletion(ws, severity, true)
		s.saveExchange(user, query, cachedAnswer, severity)
		return nil
	}

	// 2. 向量检索获取医学知识上下文
	topK := config.Conf.Index.TopK
	results := s.retrievalService.Search(ctx, query, topK)

	// 3. 构建上下文与 system 消息、历史
	contextText := s.buildContextText(results)
	systemMsg := s.buildSystemMessage(contextText)
	history, err := s.loadHistory(ctx, user.ID)
	if err != nil {
		log.Errorf("[ChatService] 加载对话历史失败: %v", err)
		history = []model.ChatMessage{}
	}
	messages := s.composeMessages(systemMsg, history, query)

	// 拦截 websocket writer 以捕获完整答案，并包装为 JSON 分块
	answerBuilder := &strings.Builder{}
	interceptor := &wsWriterInterceptor{conn: ws, writer: answerBuilder, shouldStop: shouldStop}

	// 4. 调用 LLM 客户端以流式传输响应（带生成参数）
	gen := s.buildGenerationParams()
	llmMsgs := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		llmMsgs = append(llmMsgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	if err := s.llmClient.StreamChatMessages(ctx, llmMsgs, gen, interceptor); err != nil {
		return err
	}

	// 5. 发送完成通知，写回缓存与历史
	sendCompletion(ws, severity, false)
	fullAnswer := answerBuilder.String()
	if len(fullAnswer) > 0 {
		// 使用后台上下文：即使原始请求被取消也要保存成功生成的答案
		s.cacheService.Store(context.Background(), query, fullAnswer)
		s.saveExchange(user, query, fullAnswer, severity)
	}

	return nil
}

// buildContextText 把检索结果拼成带编号与来源标签的上下文片段。
func (s *chatService) buildContextText(searchResults []model.SearchResponseDTO) string {
	if len(searchResults) == 0 {
		return ""
	}
	// 与分块窗口对齐，尽量不截断分块内容
	const maxSnippetLen = 3000
	var contextBuilder strings.Builder
	for i, r := range searchResults {
		snippet := r.Text
		if len(snippet) > maxSnippetLen {
			snippet = snippet[:maxSnippetLen] + "…"
		}
		sourceLabel := r.Metadata.Source
		if r.Metadata.Title != "" {
			sourceLabel += " - " + r.Metadata.Title
		}
		if sourceLabel == "" {
			sourceLabel = "unknown"
		}
		contextBuilder.WriteString(fmt.Sprintf("[%d] (%s) %s\n", i+1, sourceLabel, snippet))
	}
	return contextBuilder.String()
}

// buildSystemMessage 组装 system 提示：回答规则 + 免责声明 + 包裹的检索上下文。
func (s *chatService) buildSystemMessage(contextText string) string {
	prompt := config.Conf.AI.Prompt

	refStart := prompt.RefStart
	if refStart == "" {
		refStart = "<<REF>>"
	}
	refEnd := prompt.RefEnd
	if refEnd == "" {
		refEnd = "<<END>>"
	}

	var sys strings.Builder
	if prompt.Rules != "" {
		sys.WriteString(prompt.Rules)
		sys.WriteString("\n\n")
	}
	if prompt.Disclaimer != "" {
		sys.WriteString(prompt.Disclaimer)
		sys.WriteString("\n\n")
	}
	sys.WriteString(refStart)
	sys.WriteString("\n")
	if contextText != "" {
		sys.WriteString(contextText)
	} else {
		noRes := prompt.NoResultText
		if noRes == "" {
			noRes = "（本轮无检索结果）"
		}
		sys.WriteString(noRes)
		sys.WriteString("\n")
	}
	sys.WriteString(refEnd)
	return sys.String()
}

func (s *chatService) loadHistory(ctx context.Context, userID uint) ([]model.ChatMessage, error) {
	convID, err := s.conversationRepo.GetOrCreateConversationID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.conversationRepo.GetConversationHistory(ctx, convID)
}

func (s *chatService) composeMessages(systemMsg string, history []model.ChatMessage, userInput string) []model.ChatMessage {
	msgs := make([]model.ChatMessage, 0, len(history)+2)
	msgs = append(msgs, model.ChatMessage{Role: "system", Content: systemMsg})
	msgs = append(msgs, history...)
	msgs = append(msgs, model.ChatMessage{Role: "user", Content: userInput})
	return msgs
}

// saveExchange 把一轮问答写入 Redis 会话窗口与 MySQL 长期留存。
// 任何存储失败只记录日志，不影响已经完成的响应。
func (s *chatService) saveExchange(user *model.User, question, answer, severity string) {
	ctx := context.Background()

	conversationID, err := s.conversationRepo.GetOrCreateConversationID(ctx, user.ID)
	if err != nil {
		log.Errorf("[ChatService] 获取对话 ID 失败: %v", err)
		return
	}

	history, err := s.conversationRepo.GetConversationHistory(ctx, conversationID)
	if err != nil {
		log.Errorf("[ChatService] 读取对话历史失败: %v", err)
		history = []model.ChatMessage{}
	}
	now := time.Now()
	history = append(history,
		model.ChatMessage{Role: "user", Content: question, Timestamp: now},
		model.ChatMessage{Role: "assistant", Content: answer, Timestamp: now},
	)
	if err := s.conversationRepo.UpdateConversationHistory(ctx, conversationID, history); err != nil {
		log.Errorf("[ChatService] 保存对话历史失败: %v", err)
	}

	records := []*model.ChatHistory{
		{UserID: user.ID, SessionID: conversationID, Role: "user", Message: question, Severity: severity},
		{UserID: user.ID, SessionID: conversationID, Role: "assistant", Message: answer, Severity: severity},
	}
	for _, record := range records {
		if err := s.historyRepo.Save(record); err != nil {
			log.Errorf("[ChatService] 保存问诊记录失败: %v", err)
		}
	}
}

func (s *chatService) buildGenerationParams() *llm.GenerationParams {
	var gp llm.GenerationParams
	if config.Conf.LLM.Generation.Temperature != 0 {
		t := config.Conf.LLM.Generation.Temperature
		gp.Temperature = &t
	}
	if config.Conf.LLM.Generation.TopP != 0 {
		p := config.Conf.LLM.Generation.TopP
		gp.TopP = &p
	}
	if config.Conf.LLM.Generation.MaxTokens != 0 {
		m := config.Conf.LLM.Generation.MaxTokens
		gp.MaxTokens = &m
	}
	if gp.Temperature == nil && gp.TopP == nil && gp.MaxTokens == nil {
		return nil
	}
	return &gp
}

// wsWriterInterceptor 是对 websocket.Conn 的封装，用于捕获写入的消息。
type wsWriterInterceptor struct {
	conn       *websocket.Conn
	writer     *strings.Builder
	shouldStop func() bool
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *wsWriterInterceptor) WriteMessage(messageType int, data []byte) error {
	if w.shouldStop != nil && w.shouldStop() {
		// 停止标志生效：跳过下发
		return nil
	}
	w.writer.Write(data)
	payload := map[string]string{"chunk": string(data)}
	b, _ := json.Marshal(payload)
	return w.conn.WriteMessage(messageType, b)
}

// writeChunk 把整段文本作为单个分块下发。
func writeChunk(ws *websocket.Conn, text string) error {
	payload := map[string]string{"chunk": text}
	b, _ := json.Marshal(payload)
	return ws.WriteMessage(websocket.TextMessage, b)
}

// sendCompletion 发送完成通知，附带严重程度分级。
func sendCompletion(ws *websocket.Conn, severity string, cached bool) {
	notif := map[string]interface{}{
		"type":              "completion",
		"status":            "finished",
		"severity":          severity,
		"requiresAttention": severity == SeveritySevere,
		"cached":            cached,
		"timestamp":         time.Now().UnixMilli(),
		"date":              time.Now().Format("2006-01-02T15:04:05"),
	}
	b, _ := json.Marshal(notif)
	_ = ws.WriteMessage(websocket.TextMessage, b)
}
