package service

import "strings"

// 问诊严重程度分级。
const (
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

// 急症关键词：命中任一即判为 severe，需要提示立即就医。
var severeKeywords = []string{
	"chest pain",
	"shortness of breath",
	"difficulty breathing",
	"severe bleeding",
	"blood in stool",
	"coughing blood",
	"loss of consciousness",
	"lost consciousness",
	"unconscious",
	"stroke",
	"seizure",
	"heart attack",
	"suicidal",
}

// 需要关注的中等症状关键词。
var moderateKeywords = []string{
	"high fever",
	"persistent vomiting",
	"severe headache",
	"dehydration",
	"blurred vision",
	"worsening",
	"severe pain",
}

// DetectSeverity 根据用户问句中的症状关键词给出严重程度分级。
// 只做关键词匹配，不构成诊断。
func DetectSeverity(question string) string {
	lower := strings.ToLower(question)
	for _, kw := range severeKeywords {
		if strings.Contains(lower, kw) {
			return SeveritySevere
		}
	}
	for _, kw := range moderateKeywords {
		if strings.Contains(lower, kw) {
			return SeverityModerate
		}
	}
	return SeverityMild
}
