package handler

import (
	"net/http"
	"strconv"

	"medibot-go/internal/config"
	"medibot-go/internal/service"
	"medibot-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 结构体定义了知识检索相关的处理器。
type SearchHandler struct {
	retrievalService service.RetrievalService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(retrievalService service.RetrievalService) *SearchHandler {
	return &SearchHandler{
		retrievalService: retrievalService,
	}
}

// Search 是处理知识检索请求的 Gin 处理函数。
// 支持 query/topK/category 三个查询参数，category 为空时检索全量索引。
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("query")
	log.Infof("[SearchHandler] 收到检索请求, query: %s", query)

	if query == "" {
		log.Warnf("[SearchHandler] 检索请求失败: query 参数为空")
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的查询参数"})
		return
	}

	defaultTopK := strconv.Itoa(config.Conf.Index.TopK)
	topK, err := strconv.Atoi(c.DefaultQuery("topK", defaultTopK))
	if err != nil || topK <= 0 {
		topK = config.Conf.Index.TopK
	}
	category := c.Query("category")
	log.Infof("[SearchHandler] 解析参数, topK: %d, category: '%s'", topK, category)

	results := h.retrievalService.SearchWithFilter(c.Request.Context(), query, category, topK)

	log.Infof("[SearchHandler] 检索成功, query: '%s', 返回 %d 条结果", query, len(results))
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": results, "message": "success"})
}
