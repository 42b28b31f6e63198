package gemini

import (
	"context"
	"time"

	"github.com/shhac/devcopilot/internal/repo"
)

// Analysis is the structured answer to an incident analysis prompt.
type Analysis struct {
	Explanation    string   `json:"explanation"`
	RootCause      string   `json:"rootCause"`
	SecurityImpact string   `json:"securityImpact"`
	Suggestions    []string `json:"suggestions"`
}

// AnalyzeInput contains what the model sees about an incident.
type AnalyzeInput struct {
	Diff         repo.Diff
	ErrorContext string
	CodeSnippet  string
}

// Analyzer produces an Analysis for an incident.
type Analyzer interface {
	Analyze(ctx context.Context, input AnalyzeInput) (*Analysis, error)
}

// CachedAnalysis wraps an analysis with cache metadata.
type CachedAnalysis struct {
	Key        string    `json:"key"`
	Model      string    `json:"model"`
	AnalyzedAt time.Time `json:"analyzedAt"`
	Result     *Analysis `json:"result"`
}

// -- generateContent wire types --

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
