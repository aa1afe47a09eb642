// Package prompts holds the model prompt templates used by requirement extraction, discovery,
// classification, scoring and team matching. Each JSON file maps a prompt key to a text/template
// body; all files are embedded and parsed once.
package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"sync"
	"text/template"
)

//go:embed *.json
var promptFiles embed.FS

type set struct {
	raw       map[string]string
	templates map[string]*template.Template
}

var (
	loadOnce sync.Once
	loaded   map[string]*set
	loadErr  error
)

func load() (map[string]*set, error) {
	loadOnce.Do(func() {
		loaded, loadErr = parseAll(promptFiles)
	})
	return loaded, loadErr
}

func parseAll(fsys fs.FS) (map[string]*set, error) {
	names, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, err
	}
	out := make(map[string]*set, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file %s: %w", name, err)
		}
		var raw map[string]string
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse prompt file %s: %w", name, err)
		}
		s := &set{raw: raw, templates: make(map[string]*template.Template, len(raw))}
		for key, body := range raw {
			tmpl, err := template.New(name + "/" + key).Option("missingkey=error").Parse(body)
			if err != nil {
				return nil, fmt.Errorf("prompt %s/%s: %w", name, key, err)
			}
			s.templates[key] = tmpl
		}
		out[name] = s
	}
	return out, nil
}

func lookup(filename, key string) (*set, error) {
	all, err := load()
	if err != nil {
		return nil, err
	}
	s, ok := all[filename]
	if !ok {
		return nil, fmt.Errorf("prompt file %s not found", filename)
	}
	if _, ok := s.raw[key]; !ok {
		return nil, fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return s, nil
}

// Get returns the unrendered body of a prompt.
func Get(filename, key string) (string, error) {
	s, err := lookup(filename, key)
	if err != nil {
		return "", err
	}
	return s.raw[key], nil
}

// Render executes a prompt with data. Every placeholder the prompt uses must be present in data.
func Render(filename, key string, data map[string]string) (string, error) {
	s, err := lookup(filename, key)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := s.templates[key].Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s/%s: %w", filename, key, err)
	}
	return buf.String(), nil
}

// Keys lists the prompt keys of a file in sorted order.
func Keys(filename string) ([]string, error) {
	all, err := load()
	if err != nil {
		return nil, err
	}
	s, ok := all[filename]
	if !ok {
		return nil, fmt.Errorf("prompt file %s not found", filename)
	}
	keys := make([]string, 0, len(s.raw))
	for k := range s.raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
