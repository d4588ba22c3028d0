package session

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/abisalde/creator-dashboard/internal/creator/cookies"
	"github.com/abisalde/creator-dashboard/internal/creator/model"
	"gopkg.in/yaml.v3"
)

// TokenStore persists the session tokens. GetTokens never fails; it returns
// whatever subset is currently stored.
type TokenStore interface {
	SetTokens(tokens model.Tokens) error
	GetTokens() model.Tokens
	ClearTokens() error
}

// JarStore keeps the tokens as cookies for the dashboard origin, so every
// request the APIClient sends carries them like a browser would.
type JarStore struct {
	jar    http.CookieJar
	origin *url.URL
}

func NewJarStore(baseURL string) (*JarStore, error) {
	origin, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if origin.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", baseURL)
	}
	origin.Path = "/"

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &JarStore{jar: jar, origin: origin}, nil
}

func (s *JarStore) Jar() http.CookieJar { return s.jar }

func (s *JarStore) SetTokens(tokens model.Tokens) error {
	expires := time.Now().Add(cookies.TokenRetention)
	var out []*http.Cookie
	for _, c := range tokenCookies(tokens) {
		out = append(out, &http.Cookie{
			Name:     c.name,
			Value:    c.value,
			Path:     "/",
			Expires:  expires,
			MaxAge:   int(cookies.TokenRetention.Seconds()),
			Secure:   s.origin.Scheme == "https",
			HttpOnly: false,
			SameSite: http.SameSiteStrictMode,
		})
	}
	s.jar.SetCookies(s.origin, out)
	return nil
}

func (s *JarStore) GetTokens() model.Tokens {
	var tokens model.Tokens
	for _, c := range s.jar.Cookies(s.origin) {
		switch c.Name {
		case cookies.IDTokenName:
			tokens.IDToken = c.Value
		case cookies.RefreshTokenName:
			tokens.RefreshToken = c.Value
		}
	}
	return tokens
}

// ClearTokens expires both cookies under the secure and the plain attribute
// set so no variant is left behind.
func (s *JarStore) ClearTokens() error {
	for _, secure := range []bool{false, true} {
		var out []*http.Cookie
		for _, name := range tokenCookieNames {
			out = append(out, &http.Cookie{
				Name:     name,
				Path:     "/",
				MaxAge:   -1,
				Secure:   secure,
				SameSite: http.SameSiteStrictMode,
			})
		}
		s.jar.SetCookies(s.origin, out)
	}
	return nil
}

var tokenCookieNames = []string{cookies.IDTokenName, cookies.RefreshTokenName}

type namedToken struct{ name, value string }

func tokenCookies(tokens model.Tokens) []namedToken {
	var out []namedToken
	if tokens.IDToken != "" {
		out = append(out, namedToken{cookies.IDTokenName, tokens.IDToken})
	}
	if tokens.RefreshToken != "" {
		out = append(out, namedToken{cookies.RefreshTokenName, tokens.RefreshToken})
	}
	return out
}

type storedCookie struct {
	Name     string    `yaml:"name"`
	Value    string    `yaml:"value"`
	Path     string    `yaml:"path"`
	Expires  time.Time `yaml:"expires"`
	SameSite string    `yaml:"sameSite"`
	Secure   bool      `yaml:"secure"`
	HTTPOnly bool      `yaml:"httpOnly"`
}

type storedSession struct {
	Cookies []storedCookie `yaml:"cookies"`
}

// FileStore persists the tokens in a YAML file for command line use. The
// entries carry the same attributes the dashboard cookies do.
type FileStore struct {
	path   string
	secure bool
	now    func() time.Time
	mu     sync.Mutex
}

func NewFileStore(path string, secure bool) *FileStore {
	return &FileStore{path: path, secure: secure, now: time.Now}
}

func (s *FileStore) SetTokens(tokens model.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.read()
	expires := s.now().Add(cookies.TokenRetention)
	for _, t := range tokenCookies(tokens) {
		sess.Cookies = removeCookie(sess.Cookies, t.name, s.secure)
		sess.Cookies = append(sess.Cookies, storedCookie{
			Name:     t.name,
			Value:    t.value,
			Path:     "/",
			Expires:  expires,
			SameSite: "strict",
			Secure:   s.secure,
		})
	}
	return s.write(sess)
}

func (s *FileStore) GetTokens() model.Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tokens model.Tokens
	now := s.now()
	for _, c := range s.read().Cookies {
		if !c.Expires.After(now) {
			continue
		}
		switch c.Name {
		case cookies.IDTokenName:
			tokens.IDToken = c.Value
		case cookies.RefreshTokenName:
			tokens.RefreshToken = c.Value
		}
	}
	return tokens
}

func (s *FileStore) ClearTokens() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.read()
	for _, secure := range []bool{false, true} {
		for _, name := range tokenCookieNames {
			sess.Cookies = removeCookie(sess.Cookies, name, secure)
		}
	}
	return s.write(sess)
}

func removeCookie(in []storedCookie, name string, secure bool) []storedCookie {
	out := in[:0]
	for _, c := range in {
		if c.Name == name && c.Secure == secure {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *FileStore) read() storedSession {
	var sess storedSession
	data, err := os.ReadFile(s.path)
	if err != nil {
		return sess
	}
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return storedSession{}
	}
	return sess
}

func (s *FileStore) write(sess storedSession) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := yaml.Marshal(sess)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}
