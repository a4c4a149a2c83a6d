// Package analyzer classifies free-text queries to decide how much weight
// each retrieval signal deserves (alpha tuning).
package analyzer

import (
	"regexp"
	"strings"

	"github.com/siherrmann/patterner/model"
)

// technicalTerms is the fixed vocabulary of pattern names and design words
// used to detect technical queries
var technicalTerms = map[string]bool{
	"singleton": true, "factory": true, "builder": true, "prototype": true,
	"adapter": true, "bridge": true, "composite": true, "decorator": true,
	"facade": true, "flyweight": true, "proxy": true, "observer": true,
	"strategy": true, "command": true, "iterator": true, "mediator": true,
	"memento": true, "state": true, "visitor": true, "template": true,
	"interpreter": true, "chain": true, "pattern": true, "patterns": true,
	"interface": true, "inheritance": true, "polymorphism": true,
	"coupling": true, "cohesion": true, "dependency": true, "injection": true,
	"mvc": true, "solid": true, "encapsulation": true, "abstraction": true,
}

// exploratoryWords signal open-ended questions that benefit from semantic search
var exploratoryWords = map[string]bool{
	"how": true, "what": true, "why": true, "which": true, "best": true,
	"way": true, "ways": true, "should": true, "could": true, "would": true,
	"design": true, "approach": true, "recommend": true, "suggest": true,
	"help": true, "need": true, "want": true, "improve": true,
	"structure": true, "organize": true, "manage": true, "handle": true,
}

// codeSnippetRegexp detects inline code via backticks, braces, parens,
// angle brackets or common code punctuation as proxies
var codeSnippetRegexp = regexp.MustCompile("[`{}()]|::|->|</?\\w+>")

const (
	maxConfidence         = 0.9
	confidencePerTerm     = 0.05
	minAlpha              = 0.1
	maxAlpha              = 0.9
	longQueryChars        = 100
	shortQueryChars       = 30
	longQueryAdjustment   = 0.1
	shortQueryAdjustment  = -0.15
	specificityDensityMin = 0.5
	exploratoryDensityMin = 0.2
)

// Analyze classifies a query and derives the dense/sparse fusion weights.
// It is a pure function: identical input always yields identical output.
func Analyze(query string) *model.QueryAnalysis {
	words := strings.Fields(query)
	wordCount := len(words)

	technicalCount := 0
	exploratoryCount := 0
	for _, word := range words {
		normalized := strings.ToLower(strings.Trim(word, ".,;:!?\"'"))
		if technicalTerms[normalized] {
			technicalCount++
		}
		if exploratoryWords[normalized] {
			exploratoryCount++
		}
	}

	hasCode := codeSnippetRegexp.MatchString(query)
	entropy := charEntropy(query)

	analysis := &model.QueryAnalysis{
		Query:              query,
		WordCount:          wordCount,
		TechnicalTermCount: technicalCount,
		Entropy:            entropy,
		HasCodeSnippet:     hasCode,
	}

	// Classification rules in fixed priority order, first match wins
	var denseAlpha, confidence float64
	specificityDensity := 0.0
	exploratoryDensity := 0.0
	if wordCount > 0 {
		specificityDensity = float64(technicalCount) / float64(wordCount)
		exploratoryDensity = float64(exploratoryCount) / float64(wordCount)
	}

	switch {
	case wordCount > 0 && wordCount <= 2 && specificityDensity >= specificityDensityMin:
		analysis.QueryType = model.QueryTypeSpecific
		analysis.RecommendedStrategy = model.StrategySparse
		denseAlpha = 0.3
		confidence = 0.8
	case wordCount > 5 && exploratoryDensity >= exploratoryDensityMin:
		analysis.QueryType = model.QueryTypeExploratory
		analysis.RecommendedStrategy = model.StrategyDense
		denseAlpha = 0.7
		confidence = 0.75
	case technicalCount >= 1 && wordCount > 3:
		analysis.QueryType = model.QueryTypeExploratory
		if technicalCount >= 2 {
			analysis.RecommendedStrategy = model.StrategyMultiHop
		} else {
			analysis.RecommendedStrategy = model.StrategyHybrid
		}
		denseAlpha = 0.6
		confidence = 0.7
	case hasCode:
		analysis.QueryType = model.QueryTypeSpecific
		analysis.RecommendedStrategy = model.StrategyHybrid
		denseAlpha = 0.4
		confidence = 0.7
	default:
		analysis.QueryType = model.QueryTypeBalanced
		analysis.RecommendedStrategy = model.StrategyHybrid
		denseAlpha = 0.5
		confidence = 0.6
	}

	// Long queries carry more semantic context, short ones favor exact terms
	if len(query) > longQueryChars {
		denseAlpha += longQueryAdjustment
	} else if len(query) < shortQueryChars {
		denseAlpha += shortQueryAdjustment
	}

	denseAlpha = clamp(denseAlpha, minAlpha, maxAlpha)
	analysis.DenseAlpha = denseAlpha
	analysis.SparseAlpha = 1 - denseAlpha

	confidence += confidencePerTerm * float64(technicalCount)
	analysis.Confidence = clamp(confidence, 0, maxConfidence)

	return analysis
}

// charEntropy approximates query entropy as the unique-character ratio
func charEntropy(query string) float64 {
	if len(query) == 0 {
		return 0
	}
	distinct := make(map[rune]bool, len(query))
	total := 0
	for _, r := range query {
		distinct[r] = true
		total++
	}
	return float64(len(distinct)) / float64(total)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
