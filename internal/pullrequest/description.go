package pullrequest

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// DescriptionData feeds the pull request body template.
type DescriptionData struct {
	Summary        string
	Changes        []string
	SecurityImpact string
}

var descriptionTmpl = template.Must(template.New("description").Parse(`## Summary
{{ .Summary }}

## Changes
{{- range .Changes }}
- {{ . }}
{{- end }}

## Security Impact
{{ .SecurityImpact }}
`))

// RenderDescription renders the markdown body of a fix pull request.
func RenderDescription(data DescriptionData) (string, error) {
	var buf bytes.Buffer
	if err := descriptionTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render pull request description: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// FixTitle is the title of an auto-fix pull request for branch.
func FixTitle(branch string) string {
	return "Security Fix: Resolve authentication bypass in " + branch
}

// FixDescription builds the standard auto-fix body from the first suggested
// remediation.
func FixDescription(summary, firstSuggestion, path string) (string, error) {
	return RenderDescription(DescriptionData{
		Summary: summary,
		Changes: []string{
			firstSuggestion,
			"Added input validation",
			"Implemented proper password verification",
		},
		SecurityImpact: "Closes security vulnerability detected in " + path,
	})
}
