package gemini

import (
	"encoding/json"
	"fmt"
	"strings"
)

const analysisJSONSchema = `{
  "explanation": "...",
  "rootCause": "...",
  "securityImpact": "...",
  "suggestions": ["fix 1", "fix 2", "fix 3"]
}`

// BuildPrompt renders the incident analysis prompt.
func BuildPrompt(input AnalyzeInput) (string, error) {
	diff, err := json.MarshalIndent(input.Diff, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal diff: %w", err)
	}

	return fmt.Sprintf(`You are a DevOps security expert analyzing a code diff for bugs and security issues.

CODE DIFF:
%s

ERROR CONTEXT:
%s

CURRENT CODE SNIPPET:
%s

Please provide:
1. A brief explanation (2-3 sentences) of the bug
2. Root cause analysis
3. Security impact
4. A numbered list of specific code fixes needed

Format your response as JSON with this structure:
%s`,
		diff,
		input.ErrorContext,
		input.CodeSnippet,
		analysisJSONSchema,
	), nil
}

// Stock answers used when the model output cannot be used as-is.
var (
	textFallbackSuggestions = []string{
		"Add input validation",
		"Use parameterized queries",
		"Implement proper authentication",
		"Add error handling",
	}
	failedSuggestions = []string{
		"Review code for best practices",
		"Add unit tests",
		"Enable security scanning",
	}
)

// ParseResponse turns model output into an Analysis. It never fails: text
// without a JSON object becomes the explanation of a stock answer, and a
// JSON object that does not parse yields the stock "analysis failed" answer.
func ParseResponse(text string) *Analysis {
	var result Analysis
	// Only an object counts; a bare null would decode into an empty answer.
	if strings.HasPrefix(strings.TrimSpace(text), "{") {
		if err := json.Unmarshal([]byte(text), &result); err == nil {
			return normalize(&result)
		}
	}

	// Fallback: extract JSON between first { and last }
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return &Analysis{
			Explanation:    truncate(text, 200),
			RootCause:      "See explanation",
			SecurityImpact: "Potential security vulnerability",
			Suggestions:    append([]string(nil), textFallbackSuggestions...),
		}
	}

	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return &Analysis{
			Explanation:    "Analysis failed, but vulnerabilities detected",
			RootCause:      "Code quality issue",
			SecurityImpact: "Requires review",
			Suggestions:    append([]string(nil), failedSuggestions...),
		}
	}
	return normalize(&result)
}

func normalize(a *Analysis) *Analysis {
	if a.Suggestions == nil {
		a.Suggestions = []string{}
	}
	return a
}

func truncate(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes])
}
