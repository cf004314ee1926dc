// Package planfile reads markdown plan documents from disk and extracts the
// ordered step outline used to seed a task's plan.
//
// A plan file is a markdown document with an optional YAML frontmatter block.
// Every level-two heading starts a step; the text until the next heading is
// the step description.
package planfile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/acastellana/clawcondos/internal/errors"
)

// Frontmatter carries the recognized metadata keys of a plan document.
// Unknown keys are ignored.
type Frontmatter struct {
	Title  string `yaml:"title"`
	TaskID string `yaml:"task_id"`
	Author string `yaml:"author"`
}

// Step is one outline entry extracted from a level-two heading.
type Step struct {
	Title       string
	Description string
}

// Document is a parsed plan file.
type Document struct {
	FilePath    string
	Content     string
	Frontmatter Frontmatter
	Steps       []Step
}

// Read loads and parses the plan file at path.
func Read(path string) (*Document, error) {
	if path == "" {
		return nil, apperrors.NewValidation("plan_file", "path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFound("plan file", path)
		}
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	doc, err := Parse(string(data))
	if err != nil {
		return nil, err
	}
	doc.FilePath = path
	return doc, nil
}

// Parse parses plan markdown content.
func Parse(content string) (*Document, error) {
	doc := &Document{Content: content}

	body, fm, err := splitFrontmatter(content)
	if err != nil {
		return nil, err
	}
	doc.Frontmatter = fm
	doc.Steps = extractSteps(body)
	return doc, nil
}

// splitFrontmatter strips a leading "---" YAML block, if present, and decodes
// it. Content without a frontmatter block is returned untouched.
func splitFrontmatter(content string) (string, Frontmatter, error) {
	var fm Frontmatter

	trimmed := strings.TrimLeft(content, "\uFEFF\n\r")
	if !strings.HasPrefix(trimmed, "---") {
		return content, fm, nil
	}
	rest := trimmed[3:]
	if !strings.HasPrefix(rest, "\n") && !strings.HasPrefix(rest, "\r\n") {
		return content, fm, nil
	}

	lines := strings.Split(rest, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "---" {
			block := strings.Join(lines[:i], "\n")
			if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
				return "", fm, apperrors.NewValidation("plan_file", fmt.Sprintf("invalid frontmatter: %v", err))
			}
			return strings.Join(lines[i+1:], "\n"), fm, nil
		}
	}
	// Unterminated block: treat the whole document as body.
	return content, Frontmatter{}, nil
}

// extractSteps collects "## " headings and the prose beneath each.
func extractSteps(body string) []Step {
	var steps []Step
	var desc []string
	inCodeFence := false

	flush := func() {
		if len(steps) == 0 {
			return
		}
		steps[len(steps)-1].Description = strings.TrimSpace(strings.Join(desc, "\n"))
		desc = nil
	}

	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCodeFence = !inCodeFence
		}
		if !inCodeFence && strings.HasPrefix(line, "## ") {
			flush()
			steps = append(steps, Step{Title: strings.TrimSpace(line[3:])})
			continue
		}
		if len(steps) > 0 {
			desc = append(desc, line)
		}
	}
	flush()
	return steps
}
