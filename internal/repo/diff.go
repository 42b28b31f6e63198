package repo

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineDiff computes a line-level diff of two texts. The returned patch has a
// single hunk covering both files; Path and Status are left for the caller.
func LineDiff(before, after string) FilePatch {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var body strings.Builder
	var p FilePatch
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range splitLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				p.Additions++
			case diffmatchpatch.DiffDelete:
				p.Deletions++
			}
			body.WriteString(prefix)
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}

	if p.Additions == 0 && p.Deletions == 0 {
		return p
	}
	p.Patch = hunkHeader(countLines(before), countLines(after)) + "\n" + body.String()
	return p
}

func hunkHeader(oldLines, newLines int) string {
	return fmt.Sprintf("@@ -%s +%s @@", hunkRange(oldLines), hunkRange(newLines))
}

func hunkRange(n int) string {
	if n == 0 {
		return "0,0"
	}
	return fmt.Sprintf("1,%d", n)
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	return lines
}

func countLines(text string) int {
	return len(splitLines(text))
}
