package feeders

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrDotEnvInvalidLineFormat is returned for .env lines without a '='.
var ErrDotEnvInvalidLineFormat = errors.New("invalid .env line format")

// DotEnvFeeder reads KEY=VALUE pairs from a .env file. The values are
// returned, never exported to the process environment.
type DotEnvFeeder struct {
	Path string
}

// NewDotEnvFeeder creates a DotEnvFeeder reading filePath.
func NewDotEnvFeeder(filePath string) DotEnvFeeder {
	return DotEnvFeeder{Path: filePath}
}

// Environ parses the file. Blank lines and lines starting with '#' are
// skipped; an optional "export " prefix and matching quotes are removed.
func (f DotEnvFeeder) Environ() (map[string]string, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	vars := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		if !ok {
			return nil, fmt.Errorf("%w at line %d: %s", ErrDotEnvInvalidLineFormat, lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		vars[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	return vars, nil
}
