// Package canon implements the ledger's canonical on-disk text format:
// deterministic key ordering, `=`-alignment, derived-value comments, and a
// strict parser that rejects unknown/duplicate keys. It also implements the
// separate whitespace-free canonical JSON encoding used as the Timesheet
// signing input.
//
// This is hand-rolled rather than built on a generic TOML library: a
// generic encoder would not let us control per-table alignment or treat
// "--foo" keys as derived-value comments, and a generic parser would not
// give us the strict duplicate-key/unknown-key rejection every ledger file
// requires. Emission appends format-string lines per record to an in-memory
// Builder, one table at a time.
package canon

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/faffhub/faff-go/ledgererr"
)

// Value is the dynamic type of a parsed scalar: string, bool, int64, or
// []string.
type Value any

// Table is an ordered set of key/value assignments, as found directly under
// a top-level document, under a `[name]` table, or inside one element of a
// `[[name]]` array-of-tables.
type Table struct {
	keys  map[string]Value
	order []string
}

func newTable() *Table {
	return &Table{keys: make(map[string]Value)}
}

// Set assigns key=value, failing DuplicateKey if key was already assigned
// in this table.
func (t *Table) set(key string, value Value, path string, line int) error {
	if _, exists := t.keys[key]; exists {
		return ledgererr.New(ledgererr.DuplicateKey, "duplicate key %q", key).At(path, line)
	}
	t.keys[key] = value
	t.order = append(t.order, key)
	return nil
}

// Has reports whether key was assigned.
func (t *Table) Has(key string) bool {
	_, ok := t.keys[key]
	return ok
}

// String returns key as a string, or ok=false if absent or wrong type.
func (t *Table) String(key string) (string, bool) {
	v, ok := t.keys[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// StringSlice returns key as a []string, or ok=false if absent or wrong type.
func (t *Table) StringSlice(key string) ([]string, bool) {
	v, ok := t.keys[key]
	if !ok {
		return nil, false
	}
	s, ok := v.([]string)
	return s, ok
}

// Int returns key as an int64, or ok=false if absent or wrong type.
func (t *Table) Int(key string) (int64, bool) {
	v, ok := t.keys[key]
	if !ok {
		return 0, false
	}
	i, ok := v.(int64)
	return i, ok
}

// Keys returns the assigned key names, in document order.
func (t *Table) Keys() []string { return t.order }

// Document is the parsed form of one canonical text file: a top-level
// Table plus any number of named [table]s and [[array-of-table]]s.
type Document struct {
	Top         *Table
	Tables      map[string]*Table
	ArrayTables map[string][]*Table
	arrayOrder  []string // order array-table names were first seen, for re-emission
}

func newDocument() *Document {
	return &Document{
		Top:         newTable(),
		Tables:      make(map[string]*Table),
		ArrayTables: make(map[string][]*Table),
	}
}

// RequireOnlyTopKeys fails UnknownKey if Top has any key outside allowed.
func (d *Document) RequireOnlyTopKeys(path string, allowed ...string) error {
	allowedSet := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = true
	}
	for _, k := range d.Top.order {
		if !allowedSet[k] {
			return ledgererr.New(ledgererr.UnknownKey, "unknown top-level key %q", k).At(path, 0)
		}
	}
	return nil
}

// RequireOnlyKeys fails UnknownKey if t has any key outside allowed.
func RequireOnlyKeys(t *Table, path, context string, allowed ...string) error {
	allowedSet := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = true
	}
	for _, k := range t.order {
		if !allowedSet[k] {
			return ledgererr.New(ledgererr.UnknownKey, "unknown key %q in %s", k, context).At(path, 0)
		}
	}
	return nil
}

// Parse reads a canonical text document: `#` lines are discarded, whitespace
// around `=` is ignored, and duplicate keys within the same table fail.
func Parse(path string, text string) (*Document, error) {
	doc := newDocument()
	var current *Table = doc.Top

	lines := strings.Split(text, "\n")
	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[[") && strings.HasSuffix(line, "]]") {
			name := strings.TrimSpace(line[2 : len(line)-2])
			t := newTable()
			doc.ArrayTables[name] = append(doc.ArrayTables[name], t)
			if _, seen := doc.Tables[name]; !seen && !containsString(doc.arrayOrder, name) {
				doc.arrayOrder = append(doc.arrayOrder, name)
			}
			current = t
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			name := strings.TrimSpace(line[1 : len(line)-1])
			t := newTable()
			doc.Tables[name] = t
			current = t
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			return nil, ledgererr.New(ledgererr.FileCorrupt, "expected key = value, got %q", raw).At(path, lineNo)
		}
		key := strings.TrimSpace(line[:eq])
		rawValue := strings.TrimSpace(line[eq+1:])
		if !isValidKey(key) {
			return nil, ledgererr.New(ledgererr.FileCorrupt, "invalid key %q", key).At(path, lineNo)
		}
		value, err := parseValue(rawValue)
		if err != nil {
			return nil, ledgererr.Wrap(ledgererr.FileCorrupt, err, "parsing value for %q", key).At(path, lineNo)
		}
		if err := current.set(key, value, path, lineNo); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func containsString(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func isValidKey(key string) bool {
	if key == "" {
		return false
	}
	for i, r := range key {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}

func parseValue(raw string) (Value, error) {
	switch {
	case raw == "true":
		return true, nil
	case raw == "false":
		return false, nil
	case strings.HasPrefix(raw, `"`):
		s, err := strconv.Unquote(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid quoted string %q: %w", raw, err)
		}
		return s, nil
	case strings.HasPrefix(raw, "["):
		return parseStringArray(raw)
	default:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i, nil
		}
		return nil, fmt.Errorf("unrecognized scalar %q", raw)
	}
}

func parseStringArray(raw string) ([]string, error) {
	inner := strings.TrimSpace(raw)
	if !strings.HasPrefix(inner, "[") || !strings.HasSuffix(inner, "]") {
		return nil, fmt.Errorf("malformed array %q", raw)
	}
	inner = strings.TrimSpace(inner[1 : len(inner)-1])
	if inner == "" {
		return []string{}, nil
	}
	parts := splitTopLevelCommas(inner)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		s, err := strconv.Unquote(p)
		if err != nil {
			return nil, fmt.Errorf("invalid array element %q: %w", p, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// splitTopLevelCommas splits on commas that are not inside a quoted string.
func splitTopLevelCommas(s string) []string {
	var parts []string
	var buf strings.Builder
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inQuotes = !inQuotes
			buf.WriteByte(c)
		case c == ',' && !inQuotes:
			parts = append(parts, buf.String())
			buf.Reset()
		default:
			buf.WriteByte(c)
		}
	}
	if strings.TrimSpace(buf.String()) != "" {
		parts = append(parts, buf.String())
	}
	return parts
}
