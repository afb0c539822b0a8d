package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// loadDotEnv exports the pairs of a dotenv file without overwriting
// variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	pairs, err := parseDotEnv(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for _, p := range pairs {
		if os.Getenv(p.key) != "" {
			continue
		}
		if err := os.Setenv(p.key, p.value); err != nil {
			return fmt.Errorf("set %s: %w", p.key, err)
		}
	}
	return nil
}

type envPair struct {
	key   string
	value string
}

// parseDotEnv understands KEY=VALUE lines, an optional "export " prefix,
// # comments and single or double quoted values. Later keys win.
func parseDotEnv(r io.Reader) ([]envPair, error) {
	var pairs []envPair
	seen := make(map[string]int)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		k, v, ok := strings.Cut(line, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}

		p := envPair{key: k, value: unquote(strings.TrimSpace(v))}
		if i, dup := seen[k]; dup {
			pairs[i] = p
			continue
		}
		seen[k] = len(pairs)
		pairs = append(pairs, p)
	}
	return pairs, sc.Err()
}

func unquote(v string) string {
	if len(v) < 2 {
		return v
	}
	if q := v[0]; (q == '"' || q == '\'') && v[len(v)-1] == q {
		return v[1 : len(v)-1]
	}
	// Unquoted values may carry a trailing comment.
	if i := strings.Index(v, " #"); i >= 0 {
		return strings.TrimSpace(v[:i])
	}
	return v
}
