package gord

import (
	_ "embed"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"catalogscraper/internal/anticaptcha"
	"catalogscraper/internal/anticaptcha/anticaptchatest"
	"catalogscraper/internal/components/chrono"
	"catalogscraper/internal/components/telemetry"
	"catalogscraper/internal/session"

	"github.com/stretchr/testify/require"
)

//go:embed testdata/login.html
var loginHTML string

//go:embed testdata/root.html
var rootHTML string

//go:embed testdata/page.html
var pageHTML string

//go:embed testdata/videos.html
var videosHTML string

// fakeSite serves the pages the scraper touches. Catalog pages require the user cookie.
type fakeSite struct {
	*httptest.Server

	// LoginFlash is rendered into every login page.
	LoginFlash string
	// Solution is the only captcha answer accepted.
	Solution      string
	CaptchaStatus int
	OmitToken     bool

	mu       sync.Mutex
	logins   int
	captchas int
	posts    []url.Values
	cookies  map[string][]string
	fetches  map[string]int
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()

	site := &fakeSite{
		Solution:      "48213",
		CaptchaStatus: http.StatusOK,
		cookies:       map[string][]string{},
		fetches:       map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions/login", site.login)
	mux.HandleFunc("GET /sessions/display_captcha", site.captcha)
	mux.HandleFunc("POST /sessions/authenticate", site.authenticate)
	mux.HandleFunc("GET /shoots/", site.shoot)
	mux.HandleFunc("GET /{$}", site.catalog)
	site.Server = httptest.NewServer(mux)
	t.Cleanup(site.Close)

	return site
}

func (s *fakeSite) record(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies[r.URL.Path] = append(s.cookies[r.URL.Path], r.Header.Get("cookie"))
	s.fetches[r.URL.RequestURI()]++
}

func (s *fakeSite) login(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	s.mu.Lock()
	s.logins++
	n := s.logins
	s.mu.Unlock()

	page := fmt.Sprintf(loginHTML, s.LoginFlash)
	if s.OmitToken {
		page = strings.Replace(page, `name="csrf-token"`, `name="other"`, 1)
	}
	w.Header().Add("Set-Cookie", fmt.Sprintf("_hofg_session_v2=session-%d; path=/; HttpOnly", n))
	w.Header().Set("content-type", "text/html")
	_, _ = w.Write([]byte(page))
}

func (s *fakeSite) captcha(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	s.mu.Lock()
	s.captchas++
	s.mu.Unlock()

	if s.CaptchaStatus != http.StatusOK {
		w.WriteHeader(s.CaptchaStatus)
		return
	}
	w.Header().Set("content-type", "image/png")
	_, _ = w.Write(anticaptchatest.SamplePNG)
}

func (s *fakeSite) authenticate(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	err := r.ParseForm()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.posts = append(s.posts, r.PostForm)
	s.mu.Unlock()

	if r.PostForm.Get("captcha") != s.Solution {
		http.Redirect(w, r, "/sessions/login", http.StatusFound)
		return
	}
	w.Header().Add("Set-Cookie", "user_token2=abc123; path=/; expires=Fri, 01 Jan 2100 00:00:00 GMT")
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *fakeSite) authorized(w http.ResponseWriter, r *http.Request) bool {
	if !strings.Contains(r.Header.Get("cookie"), "user_token2=abc123") {
		http.Redirect(w, r, "/sessions/login", http.StatusFound)
		return false
	}
	return true
}

func (s *fakeSite) catalog(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	if !s.authorized(w, r) {
		return
	}
	page := r.URL.Query().Get("page")
	if page == "" || page == "1" {
		_, _ = w.Write([]byte(rootHTML))
		return
	}
	var n int
	_, err := fmt.Sscanf(page, "%d", &n)
	if err != nil || n > 3 {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte(fmt.Sprintf(pageHTML, n)))
}

func (s *fakeSite) shoot(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	if !s.authorized(w, r) {
		return
	}
	_, _ = w.Write([]byte(videosHTML))
}

func (s *fakeSite) Posts() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values{}, s.posts...)
}

func (s *fakeSite) Cookies(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.cookies[path]...)
}

func (s *fakeSite) Fetches(uri string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[uri]
}

func (s *fakeSite) Captchas() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captchas
}

func newSiteClient(t *testing.T, site *fakeSite, jar *session.Jar) *Client {
	t.Helper()
	client, err := NewClient(jar, telemetry.SlogAPI{}, Options{
		BaseUrl:           site.URL + "/",
		RequestsPerSecond: 1000,
	})
	require.NoError(t, err)
	return client
}

func newSolver(solver *anticaptchatest.Server) *anticaptcha.Client {
	return anticaptcha.NewClient(telemetry.SlogAPI{}, anticaptcha.Options{
		ApiKey:  "test-key",
		BaseUrl: solver.URL,
		Clock:   chrono.NewFakeImpl(time.Unix(0, 0)),
	})
}
