// Package session keeps the vendor web session cookies between runs.
//
// There is no login flow: the jar is seeded from cookies copied out of a
// browser session and whatever the endpoint hands back is merged in and
// written to disk, so the next invocation picks up where this one left off.
// The jar file is not locked; one writer at a time is assumed.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"
)

// Session is a cookie name to value mapping.
type Session map[string]string

func (s Session) Len() int { return len(s) }

func (s Session) Set(name, value string) { s[name] = value }

func (s Session) Delete(name string) { delete(s, name) }

// Clear drops every cookie.
func (s Session) Clear() {
	for name := range s {
		delete(s, name)
	}
}

// Seed copies cookies into the session.
func (s Session) Seed(cookies map[string]string) {
	for name, value := range cookies {
		s[name] = value
	}
}

// Cookies returns the session as request cookies, sorted by name.
func (s Session) Cookies() []*http.Cookie {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	cookies := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		cookies = append(cookies, &http.Cookie{Name: name, Value: s[name]})
	}
	return cookies
}

// Merge applies Set-Cookie results from a response. Cookies that are being
// expired by the server are removed.
func (s Session) Merge(cookies []*http.Cookie) {
	now := time.Now()
	for _, c := range cookies {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(now)) {
			delete(s, c.Name)
			continue
		}
		s[c.Name] = c.Value
	}
}

// Store persists a Session as a JSON object at Path.
type Store struct {
	Path string
}

func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Restore reads the jar file. A missing file yields an empty session.
func (st *Store) Restore() (Session, error) {
	data, err := os.ReadFile(st.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie jar: %w", err)
	}

	jar := Session{}
	if err := json.Unmarshal(data, &jar); err != nil {
		return nil, fmt.Errorf("failed to parse cookie jar %s: %w", st.Path, err)
	}
	if jar == nil {
		// "null"
		jar = Session{}
	}
	return jar, nil
}

// Persist overwrites the jar file with s.
func (st *Store) Persist(s Session) error {
	if s == nil {
		s = Session{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode cookie jar: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(st.Path, data, 0600); err != nil {
		return fmt.Errorf("failed to write cookie jar: %w", err)
	}
	return nil
}
