package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCleanText(t *testing.T) {
	in := "<p>High blood pressure &amp; stress</p>\n\n  <li>  rest  </li>"
	assert.Equal(t, "High blood pressure & stress rest", CleanText(in))
	assert.Equal(t, "", CleanText(""))
}

func TestLoadMedlinePlusXML(t *testing.T) {
	xml := `<?xml version="1.0" encoding="UTF-8"?>
<health-topics total="3">
  <health-topic language="English" id="t1" title="Diabetes">
    <full-summary>&lt;p&gt;Diabetes raises blood sugar. Treatment includes insulin therapy. You can prevent type 2 diabetes with exercise.&lt;/p&gt;</full-summary>
  </health-topic>
  <health-topic language="Spanish" id="t2" title="Diabetes-ES">
    <full-summary>Resumen en espanol.</full-summary>
  </health-topic>
  <health-topic language="English" id="t3" title="Common Cold">
    <full-summary>A cold is a viral infection. Rest helps.</full-summary>
  </health-topic>
</health-topics>`

	path := filepath.Join(t.TempDir(), "topics.xml")
	writeFile(t, path, xml)

	docs, err := LoadMedlinePlusXML(path)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	// 非英文主题被过滤
	assert.Equal(t, "Diabetes", docs[0].Title)
	assert.Equal(t, "Common Cold", docs[1].Title)
	assert.Equal(t, "MedlinePlus", docs[0].Source)
	assert.Equal(t, "health_topic", docs[0].Type)
	assert.Equal(t, "t1", docs[0].Extra["id"])

	// 摘要已去除 HTML，治疗/预防句子被抽取为补充段落
	assert.Contains(t, docs[0].Text, "Title: Diabetes")
	assert.NotContains(t, docs[0].Text, "<p>")
	assert.Contains(t, docs[0].Text, "Treatment:")
	assert.Contains(t, docs[0].Text, "insulin therapy")
	assert.Contains(t, docs[0].Text, "Prevention:")

	// 无治疗关键词的主题不追加补充段落
	assert.NotContains(t, docs[1].Text, "Treatment:")
}

func TestLoadMedlinePlusXMLMissingFile(t *testing.T) {
	_, err := LoadMedlinePlusXML(filepath.Join(t.TempDir(), "nope.xml"))
	require.Error(t, err)
}

func TestLoadKaggleQACSV(t *testing.T) {
	csv := `Question,Answer,qtype
What causes diabetes?,High blood sugar over time.,causes
How to treat a cold?,"Rest, fluids, and time.",treatment
,missing question,causes
No answer here?,,causes
What is fever?,Elevated body temperature.,
`
	path := filepath.Join(t.TempDir(), "qa.csv")
	writeFile(t, path, csv)

	docs, err := LoadKaggleQACSV(path)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "Q: What causes diabetes?\n\nA: High blood sugar over time.", docs[0].Text)
	assert.Equal(t, "Kaggle Medical QA", docs[0].Source)
	assert.Equal(t, "causes", docs[0].Type)
	assert.Equal(t, "What causes diabetes?", docs[0].Extra["question"])

	// qtype 缺失时回落到 general
	assert.Equal(t, "general", docs[2].Type)
}

func TestLoadKnowledgeBaseJSON(t *testing.T) {
	kb := t.TempDir()
	writeFile(t, filepath.Join(kb, "symptoms", "flu.json"), `{
		"name": "Influenza",
		"source": "CDC",
		"description": "Fever, cough and body aches.",
		"treatment": "Antiviral drugs within 48 hours.",
		"prevention": "Annual vaccination."
	}`)
	writeFile(t, filepath.Join(kb, "qa", "cold.json"), `{
		"topic": "Common Cold",
		"qa": [
			{"question": "Is a cold contagious?", "answer": "Yes, especially in the first days."},
			{"question": "Do antibiotics help?", "answer": "No, colds are viral."}
		]
	}`)
	writeFile(t, filepath.Join(kb, "remedies", "broken.json"), `{not json`)

	docs := LoadKnowledgeBaseJSON(kb)
	require.Len(t, docs, 3)

	var topics, qas int
	for _, d := range docs {
		switch d.Category {
		case "symptoms":
			topics++
			assert.Equal(t, "Influenza", d.Title)
			assert.Equal(t, "CDC", d.Source)
			assert.Contains(t, d.Text, "Treatment: Antiviral drugs")
			assert.Contains(t, d.Text, "Prevention: Annual vaccination")
		case "qa":
			qas++
			assert.Equal(t, "Knowledge Base", d.Source)
			assert.Equal(t, "Common Cold", d.Extra["topic"])
		}
	}
	assert.Equal(t, 1, topics)
	assert.Equal(t, 2, qas)
}

func TestLoadKnowledgeBaseJSONMissingDir(t *testing.T) {
	docs := LoadKnowledgeBaseJSON(filepath.Join(t.TempDir(), "absent"))
	assert.Empty(t, docs)
}

func TestLoadAllSkipsMissingSources(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "DataSets", "qa.csv"), "Question,Answer,qtype\nQ1?,A1.,causes\n")

	docs := LoadAll(base)
	require.Len(t, docs, 1)
	assert.Equal(t, "Kaggle Medical QA", docs[0].Source)
}
