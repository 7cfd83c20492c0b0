package normalize

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed synonyms.txt
var defaultSynonyms string

// SynonymGroup is one line of a synonym table: the canonical phrase and
// the phrases that are rewritten to it.
type SynonymGroup struct {
	Canonical string
	Aliases   []string
}

// ParseSynonyms reads a synonym table. Each line holds whitespace separated
// entries, double quotes group a phrase and a backslash escapes the next
// byte. Lines with fewer than two entries and lines starting with '#' are
// ignored.
func ParseSynonyms(r io.Reader) ([]SynonymGroup, error) {
	var groups []SynonymGroup
	scanner := bufio.NewScanner(r)
	lineNr := 0
	for scanner.Scan() {
		lineNr++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries, err := splitEntries(line)
		if err != nil {
			return nil, fmt.Errorf("synonyms line %d: %w", lineNr, err)
		}
		if len(entries) < 2 {
			continue
		}
		groups = append(groups, SynonymGroup{
			Canonical: entries[0],
			Aliases:   entries[1:],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading synonyms: %w", err)
	}
	return groups, nil
}

// LoadSynonymsFile parses the table at path, or the built-in table when
// path is empty.
func LoadSynonymsFile(path string) ([]SynonymGroup, error) {
	if path == "" {
		return ParseSynonyms(strings.NewReader(defaultSynonyms))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening synonyms file %s: %w", path, err)
	}
	defer f.Close()
	return ParseSynonyms(f)
}

func splitEntries(line string) ([]string, error) {
	var (
		entries []string
		current []byte
		quote   bool
		escape  bool
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case escape:
			current = append(current, c)
			escape = false
		case c == '\\':
			escape = true
		case c == '"':
			quote = !quote
		case (c == ' ' || c == '\t') && !quote:
			if len(current) > 0 {
				entries = append(entries, string(current))
				current = current[:0]
			}
		default:
			current = append(current, c)
		}
	}
	if quote {
		return nil, fmt.Errorf("unterminated quote")
	}
	if len(current) > 0 {
		entries = append(entries, string(current))
	}
	return entries, nil
}
