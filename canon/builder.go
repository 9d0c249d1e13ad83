package canon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Banner is the fixed header every generated canonical file begins with.
const Banner = `# This is a faff-format file - generated by faff, safe to hand-edit.
# Lines starting with '#' are derived/comment data and are NOT persisted:
# they are recomputed (or discarded) the next time this file is written.
`

// Builder assembles the lines of one canonical document. Assignments (scalars
// and string arrays) within a contiguous run are aligned on '=' as a final
// pass.
type Builder struct {
	lines []string
}

// NewBuilder starts a builder with the standard banner.
func NewBuilder() *Builder {
	b := &Builder{}
	for _, l := range strings.Split(strings.TrimRight(Banner, "\n"), "\n") {
		b.lines = append(b.lines, l)
	}
	return b
}

// Blank appends an empty line.
func (b *Builder) Blank() *Builder {
	b.lines = append(b.lines, "")
	return b
}

// TableHeader appends `[name]`.
func (b *Builder) TableHeader(name string) *Builder {
	b.lines = append(b.lines, fmt.Sprintf("[%s]", name))
	return b
}

// ArrayTableHeader appends `[[name]]`.
func (b *Builder) ArrayTableHeader(name string) *Builder {
	b.lines = append(b.lines, fmt.Sprintf("[[%s]]", name))
	return b
}

// Str appends `key = "value"`.
func (b *Builder) Str(key, value string) *Builder {
	b.lines = append(b.lines, fmt.Sprintf("%s = %s", key, strconv.Quote(value)))
	return b
}

// StrOmitEmpty appends key = "value" only if value is non-empty.
func (b *Builder) StrOmitEmpty(key, value string) *Builder {
	if value == "" {
		return b
	}
	return b.Str(key, value)
}

// Int appends `key = value`.
func (b *Builder) Int(key string, value int64) *Builder {
	b.lines = append(b.lines, fmt.Sprintf("%s = %d", key, value))
	return b
}

// Bool appends `key = true|false`.
func (b *Builder) Bool(key string, value bool) *Builder {
	b.lines = append(b.lines, fmt.Sprintf("%s = %t", key, value))
	return b
}

// StrArray appends `key = ["a", "b"]`.
func (b *Builder) StrArray(key string, values []string) *Builder {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	b.lines = append(b.lines, fmt.Sprintf("%s = [%s]", key, strings.Join(quoted, ", ")))
	return b
}

// StrArrayOmitEmpty appends the array only if non-empty.
func (b *Builder) StrArrayOmitEmpty(key string, values []string) *Builder {
	if len(values) == 0 {
		return b
	}
	return b.StrArray(key, values)
}

// Derived appends a computed annotation. It is emitted immediately as a
// `# key = value` comment line: derived values never participate in
// alignment or parsing, they exist purely for human review.
func (b *Builder) Derived(key, value string) *Builder {
	b.lines = append(b.lines, fmt.Sprintf("# --%s = %s", key, strconv.Quote(value)))
	return b
}

// Comment appends a free-form comment line.
func (b *Builder) Comment(text string) *Builder {
	b.lines = append(b.lines, "# "+text)
	return b
}

var assignmentRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.+)$`)

// Build renders the final text: derived-value commentify pass (handled
// inline by Derived already), then an alignment pass over every maximal run
// of `key = value` assignment lines, string arrays included.
func (b *Builder) Build() string {
	aligned := alignRuns(b.lines)
	return strings.Join(aligned, "\n") + "\n"
}

// alignRuns pads '=' within each contiguous run of assignment lines so the
// signs line up; a blank line, comment, or table header breaks a run
// (cosmetic only, the parser ignores whitespace around '=').
func alignRuns(lines []string) []string {
	out := make([]string, len(lines))
	copy(out, lines)

	start := -1
	flush := func(end int) {
		if start < 0 || end <= start {
			start = -1
			return
		}
		maxKey := 0
		for i := start; i < end; i++ {
			m := assignmentRe.FindStringSubmatch(out[i])
			if m == nil {
				continue
			}
			if len(m[1]) > maxKey {
				maxKey = len(m[1])
			}
		}
		for i := start; i < end; i++ {
			m := assignmentRe.FindStringSubmatch(out[i])
			if m == nil {
				continue
			}
			pad := strings.Repeat(" ", maxKey-len(m[1]))
			out[i] = fmt.Sprintf("%s%s = %s", m[1], pad, m[2])
		}
		start = -1
	}

	for i, l := range lines {
		if assignmentRe.MatchString(l) {
			if start < 0 {
				start = i
			}
		} else {
			flush(i)
		}
	}
	flush(len(lines))
	return out
}
