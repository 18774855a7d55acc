// Package descriptor reads and writes the SKILL.md descriptor file that
// identifies a skill bundle. The format is deliberately minimal: a leading
// front-matter fence carrying name and description, followed by a free-form
// body that is preserved byte for byte.
package descriptor

import (
	"bytes"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	"gopkg.in/yaml.v3"
)

// FileName is the descriptor file every skill bundle must carry.
const FileName = "SKILL.md"

// maxDirNameBytes caps derived folder names well under common filesystem
// limits, leaving headroom for suffixing.
const maxDirNameBytes = 200

// dirNamePlaceholder is used when sanitizing a skill name leaves nothing.
const dirNamePlaceholder = "skill"

// Descriptor is the decoded form of a SKILL.md file.
type Descriptor struct {
	Name        string
	Description string
	Body        string
}

type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Parse decodes descriptor content. It returns nil when the content is not
// a valid descriptor (missing fence, malformed front-matter, or absent
// name/description); callers treat nil as "not a bundle", not as an error.
// Front-matter fields other than name and description are discarded.
//
// The front-matter is decoded through goldmark's meta extension; the body
// is taken straight from the source bytes so that it survives a
// Build/Parse round trip unchanged.
func Parse(content []byte) *Descriptor {
	_, body, ok := splitFrontmatter(content)
	if !ok {
		return nil
	}

	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return nil
	}

	name, _ := metaData["name"].(string)
	description, _ := metaData["description"].(string)
	if name == "" || description == "" {
		return nil
	}

	return &Descriptor{
		Name:        name,
		Description: description,
		Body:        string(body),
	}
}

// Build serializes a descriptor. Build and Parse round-trip name,
// description, and body exactly. YAML marshaling handles quoting for
// values that would otherwise break the key-value lines.
func Build(name, description, body string) []byte {
	fm, _ := yaml.Marshal(frontmatter{Name: name, Description: description})

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n")
	buf.WriteString(body)
	return buf.Bytes()
}

// splitFrontmatter returns the bytes between the opening fence (which must
// start at offset 0) and the closing fence line, plus the body after the
// closing line. The body is not trimmed or normalized.
func splitFrontmatter(content []byte) (meta, body []byte, ok bool) {
	const fence = "---"

	if !bytes.HasPrefix(content, []byte(fence)) {
		return nil, nil, false
	}
	i := len(fence)
	if i < len(content) && content[i] == '\r' {
		i++
	}
	if i >= len(content) || content[i] != '\n' {
		return nil, nil, false
	}
	i++

	start := i
	for i < len(content) {
		lineEnd := bytes.IndexByte(content[i:], '\n')
		var line []byte
		next := len(content)
		if lineEnd < 0 {
			line = content[i:]
		} else {
			line = content[i : i+lineEnd]
			next = i + lineEnd + 1
		}
		if string(bytes.TrimRight(line, "\r")) == fence {
			return content[start:i], content[next:], true
		}
		i = next
	}
	return nil, nil, false
}

// DirNameForSkill derives a filesystem-safe folder name from a skill's
// display name, falling back to a generic placeholder when nothing of the
// name survives sanitization.
func DirNameForSkill(name string) string {
	if sanitized := SanitizeDirName(name); sanitized != "" {
		return sanitized
	}
	return dirNamePlaceholder
}

// SanitizeDirName collapses runs of path separators, reserved filesystem
// characters, whitespace, and control characters into a single "-", trims
// leading/trailing separators, and truncates the result to stay under the
// path-component byte limit. Returns "" when nothing survives.
func SanitizeDirName(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range name {
		if disallowedInDirName(r) {
			if b.Len() > 0 {
				pendingSep = true
			}
			continue
		}
		if pendingSep {
			b.WriteByte('-')
			pendingSep = false
		}
		b.WriteRune(r)
	}

	out := truncateRunes(b.String(), maxDirNameBytes)
	out = strings.Trim(out, "-")
	// A leading dot would hide the folder from scans, and a bare ".." would
	// escape the skills root.
	out = strings.TrimLeft(out, ".")
	return out
}

func disallowedInDirName(r rune) bool {
	switch r {
	case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
		return true
	}
	return r < 0x20 || r == 0x7f || unicode.IsSpace(r)
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for i := n; i > 0; i-- {
		if utf8.RuneStart(s[i]) {
			return s[:i]
		}
	}
	return ""
}
