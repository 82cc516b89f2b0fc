// Package configutil reads json5 configuration files with optional local overrides.
package configutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// layers returns the files ReadConfig merges, lowest priority first: `<name>.<ext>` then
// `<name>.local.<ext>`.
func layers(name string) []string {
	ext := filepath.Ext(name)
	return []string{
		name,
		strings.TrimSuffix(name, ext) + ".local" + ext,
	}
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces `${NAME}` with the value of the environment variable NAME, escaped for use inside
// a json string. Referencing an unset variable is an error.
func expandEnv(contents []byte) ([]byte, error) {
	missing := []string{}
	out := envRef.ReplaceAllFunc(contents, func(ref []byte) []byte {
		name := string(envRef.FindSubmatch(ref)[1])
		value, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return ref
		}
		escaped, _ := json.Marshal(value)
		return escaped[1 : len(escaped)-1]
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("unset environment variables: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// readLayer decodes path into out and reports whether the file exists.
func readLayer(path string, out any) (bool, error) {
	contents, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(contents) == 0 {
		return true, nil
	}

	contents, err = expandEnv(contents)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	err = json5.Unmarshal(contents, out)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// ReadConfig reads the json5 file name and merges `<name>.local.<ext>` over it when present. String
// values may reference environment variables as `${NAME}`. When neither file exists the error wraps
// fs.ErrNotExist.
func ReadConfig[T any](name string) (T, error) {
	var out T
	found := false
	for _, path := range layers(name) {
		var layer T
		ok, err := readLayer(path, &layer)
		if err != nil {
			return out, err
		}
		if !ok {
			continue
		}
		if found {
			slog.Info("merging config with local overrides", "local", path)
		}
		err = mergo.Merge(&out, layer, mergo.WithOverride)
		if err != nil {
			return out, fmt.Errorf("merge %s: %w", path, err)
		}
		found = true
	}
	if !found {
		return out, fmt.Errorf("read config %s: %w", name, fs.ErrNotExist)
	}
	return out, nil
}

// ReadRecursively looks for name in the working directory and then in each of its parents, returning
// the first one found.
func ReadRecursively[T any](name string) (T, error) {
	var out T

	dir, err := os.Getwd()
	if err != nil {
		return out, err
	}
	for {
		config, err := ReadConfig[T](filepath.Join(dir, name))
		if err == nil {
			return config, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return out, err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return out, fmt.Errorf("read config %s: %w", name, fs.ErrNotExist)
		}
		dir = parent
	}
}
