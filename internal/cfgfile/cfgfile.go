// Package cfgfile edits dump1090-style "key = value" configuration files
// line by line, leaving every untouched line byte-identical.
package cfgfile

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/afero"
)

const filePerm = 0o644

// ErrNotFound is returned by Read when the configuration file does not exist.
var ErrNotFound = errors.New("config file not found")

// Lines is the in-memory form of a configuration file. Each element holds
// one line including its terminator ("\n" or "\r\n").
type Lines []string

// Exists reports whether path names an existing file on fsys.
func Exists(fsys afero.Fs, path string) (bool, error) {
	ok, err := afero.Exists(fsys, path)
	if err != nil {
		return false, fmt.Errorf("failed to stat config file %s: %w", path, err)
	}
	return ok, nil
}

// Read loads the whole file at path and splits it into lines. A final line
// without a terminator gets "\n" appended.
func Read(fsys afero.Fs, path string) (Lines, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(string(data)), nil
}

// Parse splits text into Lines the same way Read does.
func Parse(text string) Lines {
	if text == "" {
		return Lines{}
	}

	lines := Lines(strings.SplitAfter(text, "\n"))
	last := len(lines) - 1
	switch {
	case lines[last] == "":
		lines = lines[:last]
	case !strings.HasSuffix(lines[last], "\n"):
		lines[last] += "\n"
	}

	return lines
}

// Write overwrites the file at path with the concatenation of lines.
// The previous content is not backed up.
func Write(fsys afero.Fs, path string, lines Lines) error {
	if err := afero.WriteFile(fsys, path, lines.Bytes(), filePerm); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// Bytes returns the file content represented by lines.
func (l Lines) Bytes() []byte {
	var sb strings.Builder
	for _, line := range l {
		sb.WriteString(line)
	}
	return []byte(sb.String())
}

// Set assigns value to key. The first non-comment line whose key matches
// exactly is rewritten in place, keeping everything up to and including its
// '='; later duplicates are left alone. When no line matches, "key = value"
// is appended. Set reports whether an existing line was rewritten.
func (l *Lines) Set(key, value string) bool {
	for i, line := range *l {
		if k, ok := lineKey(line); !ok || k != key {
			continue
		}
		eq := strings.IndexByte(line, '=')
		(*l)[i] = line[:eq+1] + " " + value + terminator(line)
		return true
	}

	*l = append(*l, key+" = "+value+"\n")
	return false
}

// Get returns the value of the first line assigning key.
func (l Lines) Get(key string) (string, bool) {
	for _, line := range l {
		if k, ok := lineKey(line); !ok || k != key {
			continue
		}
		eq := strings.IndexByte(line, '=')
		return strings.TrimSpace(line[eq+1:]), true
	}
	return "", false
}

// lineKey returns the trimmed text before the first '=' of an assignment
// line. Blank, comment and malformed lines report false.
func lineKey(line string) (string, bool) {
	stripped := strings.TrimSpace(line)
	if stripped == "" || strings.HasPrefix(stripped, "#") {
		return "", false
	}
	key, _, found := strings.Cut(stripped, "=")
	if !found {
		return "", false
	}
	return strings.TrimSpace(key), true
}

func terminator(line string) string {
	if strings.HasSuffix(line, "\r\n") {
		return "\r\n"
	}
	return "\n"
}
