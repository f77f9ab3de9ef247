// Package loader 负责从本地语料目录加载医学知识文档。
// 支持三类来源：MedlinePlus 健康主题 XML、Kaggle 医学问答 CSV、
// 以及按类别组织的 knowledge_base JSON 目录。
package loader

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"medibot-go/internal/model"
	"medibot-go/pkg/log"
)

var (
	reTag   = regexp.MustCompile(`<[^>]+>`)
	reSpace = regexp.MustCompile(`\s+`)
)

// knowledge_base 下的类别子目录。
var kbCategories = []string{"symptoms", "remedies", "prevention", "qa"}

// CleanText 去除 HTML 标签与多余空白。
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = html.UnescapeString(text)
	text = reTag.ReplaceAllString(text, "")
	return strings.TrimSpace(reSpace.ReplaceAllString(text, " "))
}

type healthTopic struct {
	Language    string `xml:"language,attr"`
	Title       string `xml:"title,attr"`
	ID          string `xml:"id,attr"`
	FullSummary string `xml:"full-summary"`
}

// LoadMedlinePlusXML 解析 MedlinePlus 健康主题 XML，仅保留英文主题。
// 从摘要中抽取含治疗/预防关键词的句子作为补充段落。
func LoadMedlinePlusXML(xmlPath string) ([]model.Document, error) {
	f, err := os.Open(xmlPath)
	if err != nil {
		return nil, fmt.Errorf("open medlineplus xml: %w", err)
	}
	defer f.Close()

	var documents []model.Document
	decoder := xml.NewDecoder(f)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return documents, fmt.Errorf("parse medlineplus xml: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "health-topic" {
			continue
		}

		var topic healthTopic
		if err := decoder.DecodeElement(&topic, &start); err != nil {
			log.Warnf("[Loader] 跳过无法解析的 health-topic 元素: %v", err)
			continue
		}
		if topic.Language != "English" {
			continue
		}

		summary := CleanText(topic.FullSummary)
		treatment := extractSentences(summary, []string{"treatment", "therapy", "medication", "medicine"}, []string{"treatment", "therapy"})
		prevention := extractSentences(summary, []string{"prevent"}, []string{"prevent"})

		docText := fmt.Sprintf("Title: %s\n\n%s", topic.Title, summary)
		if treatment != "" {
			docText += "\n\nTreatment: " + treatment
		}
		if prevention != "" {
			docText += "\n\nPrevention: " + prevention
		}

		documents = append(documents, model.Document{
			Text:   docText,
			Source: "MedlinePlus",
			Title:  topic.Title,
			Type:   "health_topic",
			Extra:  map[string]string{"id": topic.ID},
		})
	}

	return documents, nil
}

// extractSentences 当摘要包含任一 gate 关键词时，
// 返回所有包含 keywords 关键词的句子，以句号拼接。
func extractSentences(summary string, keywords, gate []string) string {
	lower := strings.ToLower(summary)
	gated := false
	for _, g := range gate {
		if strings.Contains(lower, g) {
			gated = true
			break
		}
	}
	if !gated {
		return ""
	}

	var matched []string
	for _, sentence := range strings.Split(summary, ".") {
		sl := strings.ToLower(sentence)
		for _, kw := range keywords {
			if strings.Contains(sl, kw) {
				matched = append(matched, sentence)
				break
			}
		}
	}
	return strings.Join(matched, ".")
}

// LoadKaggleQACSV 加载 Kaggle 医学问答 CSV（Question/Answer/qtype 列）。
func LoadKaggleQACSV(csvPath string) ([]model.Document, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("open kaggle csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read kaggle csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var documents []model.Document
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warnf("[Loader] 跳过无法解析的 CSV 行: %v", err)
			continue
		}

		question := field(row, "Question")
		answer := field(row, "Answer")
		qtype := field(row, "qtype")
		if qtype == "" {
			qtype = "general"
		}
		if question == "" || answer == "" {
			continue
		}

		documents = append(documents, model.Document{
			Text:   fmt.Sprintf("Q: %s\n\nA: %s", question, answer),
			Source: "Kaggle Medical QA",
			Type:   qtype,
			Extra:  map[string]string{"question": question},
		})
	}

	return documents, nil
}

// qa 类别文件结构
type kbQAFile struct {
	Topic  string `json:"topic"`
	Source string `json:"source"`
	QA     []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	} `json:"qa"`
}

// symptoms/remedies/prevention 类别文件结构
type kbTopicFile struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	Description string `json:"description"`
	Treatment   string `json:"treatment"`
	Prevention  string `json:"prevention"`
}

// LoadKnowledgeBaseJSON 加载 knowledge_base 目录下按类别组织的 JSON 文件。
// 缺失的类别目录直接跳过，单个文件解析失败只记录日志。
func LoadKnowledgeBaseJSON(kbDir string) []model.Document {
	var documents []model.Document

	for _, category := range kbCategories {
		categoryPath := filepath.Join(kbDir, category)
		entries, err := os.ReadDir(categoryPath)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
				continue
			}

			path := filepath.Join(categoryPath, name)
			data, err := os.ReadFile(path)
			if err != nil {
				log.Warnf("[Loader] 读取知识库文件失败: %s, err=%v", path, err)
				continue
			}

			if category == "qa" {
				docs, err := parseQAFile(data)
				if err != nil {
					log.Warnf("[Loader] 解析 QA 文件失败: %s, err=%v", path, err)
					continue
				}
				documents = append(documents, docs...)
			} else {
				doc, err := parseTopicFile(data, category)
				if err != nil {
					log.Warnf("[Loader] 解析知识库文件失败: %s, err=%v", path, err)
					continue
				}
				documents = append(documents, doc)
			}
		}
	}

	return documents
}

func parseQAFile(data []byte) ([]model.Document, error) {
	var file kbQAFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	source := file.Source
	if source == "" {
		source = "Knowledge Base"
	}

	var documents []model.Document
	for _, qa := range file.QA {
		documents = append(documents, model.Document{
			Text:     fmt.Sprintf("Q: %s\n\nA: %s", qa.Question, qa.Answer),
			Source:   source,
			Category: "qa",
			Type:     "qa",
			Extra:    map[string]string{"topic": file.Topic},
		})
	}
	return documents, nil
}

func parseTopicFile(data []byte, category string) (model.Document, error) {
	var file kbTopicFile
	if err := json.Unmarshal(data, &file); err != nil {
		return model.Document{}, err
	}

	source := file.Source
	if source == "" {
		source = "Knowledge Base"
	}

	docText := fmt.Sprintf("Topic: %s\n\n%s", file.Name, file.Description)
	if file.Treatment != "" {
		docText += "\n\nTreatment: " + file.Treatment
	}
	if file.Prevention != "" {
		docText += "\n\nPrevention: " + file.Prevention
	}

	return model.Document{
		Text:     docText,
		Source:   source,
		Title:    file.Name,
		Category: category,
		Type:     category,
	}, nil
}

// LoadAll 从语料根目录加载全部文档：
// DataSets 下的 XML/CSV 文件与 knowledge_base 目录。来源缺失时告警并跳过。
func LoadAll(baseDir string) []model.Document {
	var all []model.Document

	dataSets := filepath.Join(baseDir, "DataSets")
	entries, err := os.ReadDir(dataSets)
	if err != nil {
		log.Warnf("[Loader] DataSets 目录不可用: %s, err=%v", dataSets, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dataSets, entry.Name())
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".xml":
			docs, err := LoadMedlinePlusXML(path)
			if err != nil {
				log.Warnf("[Loader] 加载 MedlinePlus XML 失败: %s, err=%v", path, err)
			}
			all = append(all, docs...)
			log.Infof("[Loader] 从 %s 加载 %d 篇 MedlinePlus 文档", entry.Name(), len(docs))
		case ".csv":
			docs, err := LoadKaggleQACSV(path)
			if err != nil {
				log.Warnf("[Loader] 加载 Kaggle CSV 失败: %s, err=%v", path, err)
			}
			all = append(all, docs...)
			log.Infof("[Loader] 从 %s 加载 %d 篇问答文档", entry.Name(), len(docs))
		}
	}

	kbDocs := LoadKnowledgeBaseJSON(filepath.Join(baseDir, "knowledge_base"))
	all = append(all, kbDocs...)
	log.Infof("[Loader] 从 knowledge_base 加载 %d 篇文档", len(kbDocs))

	log.Infof("[Loader] 共加载 %d 篇文档", len(all))
	return all
}
