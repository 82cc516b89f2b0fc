// Package session holds the cookies of one scraping session for the lifetime of the process.
package session

import (
	"slices"
	"strings"
	"sync"
)

// Jar is an ordered cookie name -> value store. Names keep the position of their first insertion, a
// later Set only replaces the value. All methods are safe for concurrent use: the authenticator
// writes while page fetchers render snapshots.
type Jar struct {
	mu     sync.RWMutex
	names  []string
	values map[string]string
}

func NewJar() *Jar {
	return &Jar{values: map[string]string{}}
}

// FromMap builds a jar from already parsed cookies. Go maps are unordered, so names are inserted in
// sorted order to keep rendering deterministic.
func FromMap(cookies map[string]string) *Jar {
	jar := NewJar()
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		jar.Set(name, cookies[name])
	}
	return jar
}

func (j *Jar) Set(name, value string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.values[name]; !ok {
		j.names = append(j.names, name)
	}
	j.values[name] = value
}

func (j *Jar) Get(name string) (string, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	value, ok := j.values[name]
	return value, ok
}

func (j *Jar) Names() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]string, len(j.names))
	copy(out, j.names)
	return out
}

func (j *Jar) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.names)
}

// Render produces the value of a `cookie` request header: `name=value; ` pairs in insertion order,
// trimmed.
func (j *Jar) Render() string {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out strings.Builder
	for _, name := range j.names {
		out.WriteString(name)
		out.WriteString("=")
		out.WriteString(j.values[name])
		out.WriteString("; ")
	}
	return strings.TrimSpace(out.String())
}

// Merge copies the cookie called name from parsed cookies into the jar and reports whether it was
// present.
func (j *Jar) Merge(cookies map[string]string, name string) bool {
	value, ok := cookies[name]
	if !ok {
		return false
	}
	j.Set(name, value)
	return true
}

// ParseSetCookie reads `set-cookie` header values into a name -> value map, keeping only the pair
// before the first `;` of each header. Later headers win over earlier ones.
func ParseSetCookie(headers []string) map[string]string {
	cookies := map[string]string{}
	for _, h := range headers {
		pair, _, _ := strings.Cut(h, ";")
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		cookies[name] = strings.TrimSpace(value)
	}
	return cookies
}
