// Package main 是离线索引构建工具的入口点。
// 从语料目录加载医学文档，分块向量化后把索引产物写入输出目录。
package main

import (
	"context"
	"flag"
	"os"

	"medibot-go/internal/config"
	"medibot-go/internal/loader"
	"medibot-go/internal/pipeline"
	"medibot-go/pkg/embedding"
	"medibot-go/pkg/log"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	corpusDir := flag.String("corpus", "./data", "语料根目录（包含 DataSets 与 knowledge_base）")
	outputDir := flag.String("output", "", "索引输出目录，默认取配置中的 index.dir")
	flag.Parse()

	config.Init(*configPath)
	cfg := config.Conf

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()

	dir := *outputDir
	if dir == "" {
		dir = cfg.Index.Dir
	}

	documents := loader.LoadAll(*corpusDir)
	if len(documents) == 0 {
		log.Errorf("语料目录 %s 下没有任何文档，索引未构建", *corpusDir)
		os.Exit(1)
	}

	embeddingClient := embedding.NewClient(cfg.Embedding)
	builder := pipeline.NewBuilder(embeddingClient, cfg.Index.ChunkMaxWords, cfg.Index.ChunkOverlapWords)

	if err := builder.BuildAndPersist(context.Background(), documents, dir); err != nil {
		log.Errorf("索引构建失败: %v", err)
		os.Exit(1)
	}

	log.Infof("索引构建完成, 输出目录: %s", dir)
}
