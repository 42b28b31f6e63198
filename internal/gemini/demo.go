package gemini

import (
	"context"
	"strings"
)

// DemoAnalyzer answers without calling the API. Its output depends only on
// markers in the code snippet, so repeated runs give the same analysis.
type DemoAnalyzer struct{}

var demoRules = []struct {
	marker     string
	suggestion string
}{
	{"return True", "Restore the bcrypt.checkpw call in verify_password instead of returning True"},
	{"# BUG: Missing validation", "Reject empty usernames and passwords before looking up the user"},
	{"Always returns true", "Call verify_password in authenticate_user before creating a session"},
	{"hardcoded_secret", "Load the JWT signing secret from the JWT_SECRET environment variable"},
}

// Analyze implements Analyzer.
func (DemoAnalyzer) Analyze(ctx context.Context, input AnalyzeInput) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var suggestions []string
	for _, r := range demoRules {
		if strings.Contains(input.CodeSnippet, r.marker) {
			suggestions = append(suggestions, r.suggestion)
		}
	}
	if len(suggestions) == 0 {
		return &Analysis{
			Explanation:    "No known vulnerability pattern was found in the current code. The reported error context should be reviewed manually.",
			RootCause:      "Unknown",
			SecurityImpact: "Requires review",
			Suggestions:    append([]string(nil), failedSuggestions...),
		}, nil
	}
	suggestions = append(suggestions, "Add unit tests that reject invalid credentials")

	return &Analysis{
		Explanation: "authenticate_user creates a session for any existing user without verifying the password. " +
			"verify_password was changed to always succeed, so authentication is bypassed.",
		RootCause:      "The hotfix removed the password verification and credential validation from the login path.",
		SecurityImpact: "Critical: anyone who knows a username can log in as that user and forge session tokens.",
		Suggestions:    suggestions,
	}, nil
}

// IsDemoKey reports whether key selects the DemoAnalyzer.
func IsDemoKey(key string) bool {
	key = strings.TrimSpace(key)
	return key == "" || key == DemoKey
}
