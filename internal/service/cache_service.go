package service

import (
	"context"

	"medibot-go/internal/model"
	"medibot-go/internal/repository"
	"medibot-go/internal/vectorindex"
	"medibot-go/pkg/embedding"
	"medibot-go/pkg/log"
)

// EvictionPolicy 在每次写入后收到当前条目数，可据此触发淘汰。
// 当前缓存只追加不淘汰，默认策略什么都不做。
type EvictionPolicy interface {
	AfterStore(entryCount int)
}

type noEviction struct{}

func (noEviction) AfterStore(int) {}

// CacheService 定义了语义问答缓存的操作。
// 命中条件是问题向量与缓存向量的余弦相似度达到阈值。
// Check 与 Store 之间不加锁，并发下同一问题可能写入两次，属可接受行为。
type CacheService interface {
	Check(ctx context.Context, question string) (string, bool)
	Store(ctx context.Context, question, answer string)
	Size() int
}

type cacheService struct {
	embeddingClient embedding.Client
	cacheRepo       repository.CacheRepository
	threshold       float32
	eviction        EvictionPolicy
	index           *vectorindex.FlatIndex[model.CacheEntry]
}

// NewCacheService 创建一个语义缓存实例，并从 Redis 回放历史条目预热内存索引。
// policy 传 nil 时使用不淘汰的默认策略。
func NewCacheService(embeddingClient embedding.Client, cacheRepo repository.CacheRepository, threshold float32, policy EvictionPolicy) CacheService {
	if policy == nil {
		policy = noEviction{}
	}
	s := &cacheService{
		embeddingClient: embeddingClient,
		cacheRepo:       cacheRepo,
		threshold:       threshold,
		eviction:        policy,
		index:           vectorindex.New[model.CacheEntry](embeddingClient.ModelID()),
	}
	s.warmLoad(context.Background())
	return s
}

// warmLoad 从 Redis 加载历史缓存条目重建内存索引。
// 加载失败只记录日志，缓存从空开始工作。
func (s *cacheService) warmLoad(ctx context.Context) {
	if s.cacheRepo == nil {
		return
	}
	entries, err := s.cacheRepo.LoadAll(ctx)
	if err != nil {
		log.Errorf("[CacheService] 预热语义缓存失败: %v", err)
		return
	}
	for _, e := range entries {
		if len(e.Vector) == 0 {
			continue
		}
		err := s.index.Add(
			[][]float32{vectorindex.Normalize(e.Vector)},
			[]model.CacheEntry{{Question: e.Question, Answer: e.Answer}},
		)
		if err != nil {
			log.Warnf("[CacheService] 跳过维度不符的缓存条目, question: '%s', err: %v", e.Question, err)
		}
	}
	log.Infof("[CacheService] 语义缓存预热完成, 条目数: %d", s.index.Size())
}

// Check 查询语义缓存。命中返回缓存答案，任何内部错误都按未命中处理。
func (s *cacheService) Check(ctx context.Context, question string) (string, bool) {
	if s.index.Size() == 0 {
		return "", false
	}

	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, question)
	if err != nil {
		log.Errorf("[CacheService] 向量化缓存查询失败: %v", err)
		return "", false
	}

	hits, err := s.index.Search(vectorindex.Normalize(queryVector), 1)
	if err != nil {
		log.Errorf("[CacheService] 缓存检索失败: %v", err)
		return "", false
	}
	if len(hits) == 0 {
		return "", false
	}

	if hits[0].Score < s.threshold {
		log.Debugf("[CacheService] 缓存未命中, 最高相似度 %.4f 低于阈值 %.2f", hits[0].Score, s.threshold)
		return "", false
	}

	entry := s.index.Metadata(hits[0].Index)
	log.Infof("[CacheService] 缓存命中, 相似度: %.4f, 原问题: '%s'", hits[0].Score, entry.Question)
	return entry.Answer, true
}

// Store 把一条问答对写入缓存，同时镜像到 Redis 供重启后预热。
// 写入失败只记录日志，不影响调用方。
func (s *cacheService) Store(ctx context.Context, question, answer string) {
	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, question)
	if err != nil {
		log.Errorf("[CacheService] 向量化缓存写入失败: %v", err)
		return
	}

	normalized := vectorindex.Normalize(queryVector)
	err = s.index.Add([][]float32{normalized}, []model.CacheEntry{{Question: question, Answer: answer}})
	if err != nil {
		log.Errorf("[CacheService] 写入语义缓存失败: %v", err)
		return
	}

	if s.cacheRepo != nil {
		entry := repository.CachedAnswer{Question: question, Answer: answer, Vector: normalized}
		if err := s.cacheRepo.Append(ctx, entry); err != nil {
			log.Errorf("[CacheService] 镜像缓存条目到 Redis 失败: %v", err)
		}
	}

	s.eviction.AfterStore(s.index.Size())
	log.Infof("[CacheService] 缓存写入成功, 当前条目数: %d", s.index.Size())
}

// Size 返回当前缓存条目数。
func (s *cacheService) Size() int {
	return s.index.Size()
}
