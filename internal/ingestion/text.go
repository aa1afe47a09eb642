// Package ingestion turns pasted job descriptions and job board URLs into stored jobs.
package ingestion

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
)

var (
	newlines    = strings.NewReplacer("\r\n", "\n", "\r", "\n")
	bulletMarks = []string{"- ", "* ", "• ", "· "}
)

// CleanText normalizes line endings and whitespace while keeping headings, bullets and
// indentation. Runs of blank lines collapse to one.
func CleanText(content string) string {
	var b strings.Builder
	blank := false
	for _, line := range strings.Split(newlines.Replace(content), "\n") {
		line = cleanLine(line)
		if line == "" {
			blank = b.Len() > 0
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
			if blank {
				b.WriteByte('\n')
			}
		}
		blank = false
		b.WriteString(line)
	}
	return strings.TrimSpace(b.String())
}

func cleanLine(line string) string {
	body := strings.TrimLeft(line, " \t")
	body = strings.TrimRight(body, " \t")
	switch {
	case body == "":
		return ""
	case body[0] == '#':
		return body
	case !isBulletLine(body):
		body = strings.Join(strings.Fields(body), " ")
	}
	return strings.Repeat(" ", len(line)-len(strings.TrimLeft(line, " \t"))) + body
}

func isBulletLine(line string) bool {
	line = strings.TrimLeft(line, " \t")
	return slices.ContainsFunc(bulletMarks, func(m string) bool { return strings.HasPrefix(line, m) })
}

// RequirementsFromText returns the bullet items of a posting, in order and without duplicates.
// It is the requirement list used when no model is available.
func RequirementsFromText(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, line := range strings.Split(CleanText(text), "\n") {
		if !isBulletLine(line) {
			continue
		}
		item := strings.TrimSpace(line)
		for _, m := range bulletMarks {
			item = strings.TrimPrefix(item, m)
		}
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

// TitleFromText returns the first non-empty line of text with any heading markers removed.
func TitleFromText(text string) string {
	for _, line := range strings.Split(CleanText(text), "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "# "))
		if line != "" && !isBulletLine(line) {
			return line
		}
	}
	return ""
}

// IngestFromFile reads a text file and returns its cleaned content and source.
func IngestFromFile(path string) (string, *Source, error) {
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", nil, fmt.Errorf("file not found: %w", err)
	case err != nil:
		return "", nil, fmt.Errorf("failed to read file: %w", err)
	}
	cleaned := CleanText(string(raw))
	return cleaned, newSource(SourceFile, path, cleaned), nil
}
