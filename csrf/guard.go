package csrf

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/skyAuth/internal"
)

// Config controls the cookie and where the echoed token is read from.
type Config struct {
	CookieName string
	HeaderName string
	// FormField is consulted for urlencoded and multipart bodies when the
	// header is absent.
	FormField string

	CookiePath string
	Domain     string
	Secure     bool
	HTTPOnly   bool
	SameSite   http.SameSite
	MaxAge     time.Duration

	SafeMethods []string
	Skip        []SkipRule
}

func DefaultConfig() Config {
	return Config{
		CookieName:  "csrf_token",
		HeaderName:  "X-CSRF-Token",
		FormField:   "_csrf",
		CookiePath:  "/",
		Secure:      true,
		HTTPOnly:    true,
		SameSite:    http.SameSiteStrictMode,
		MaxAge:      12 * time.Hour,
		SafeMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace},
	}
}

type Guard struct {
	cfg      Config
	safe     map[string]struct{}
	newToken func() (string, error)
}

// New returns a Guard. Empty fields fall back to DefaultConfig.
func New(cfg Config) *Guard {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.CookieName) == "" {
		cfg.CookieName = def.CookieName
	}
	if strings.TrimSpace(cfg.HeaderName) == "" {
		cfg.HeaderName = def.HeaderName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = def.CookiePath
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = def.SameSite
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}
	if len(cfg.SafeMethods) == 0 {
		cfg.SafeMethods = def.SafeMethods
	}

	safe := make(map[string]struct{}, len(cfg.SafeMethods))
	for _, m := range cfg.SafeMethods {
		safe[strings.ToUpper(m)] = struct{}{}
	}
	cfg.Skip = append([]SkipRule(nil), cfg.Skip...)

	return &Guard{cfg: cfg, safe: safe, newToken: internal.NewCSRFToken}
}

// HeaderName is the request header that must echo the cookie token.
func (g *Guard) HeaderName() string { return g.cfg.HeaderName }

// CookieName is the cookie that carries the issued token.
func (g *Guard) CookieName() string { return g.cfg.CookieName }

// Exempt reports whether r skips the check and why.
func (g *Guard) Exempt(r *http.Request) (string, bool) {
	if _, ok := g.safe[r.Method]; ok {
		return "safe method", true
	}
	for _, rule := range g.cfg.Skip {
		if rule.Match != nil && rule.Match(r) {
			return rule.Reason, true
		}
	}
	return "", false
}

// Check enforces the double-submit rule on r. It returns nil for exempt
// requests and one of ErrMissingCookie, ErrMissingToken or ErrTokenMismatch
// otherwise.
func (g *Guard) Check(r *http.Request) error {
	if _, exempt := g.Exempt(r); exempt {
		return nil
	}

	cookie, err := r.Cookie(g.cfg.CookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return ErrMissingCookie
	}

	token := strings.TrimSpace(r.Header.Get(g.cfg.HeaderName))
	if token == "" && g.cfg.FormField != "" && isForm(r) {
		token = strings.TrimSpace(r.PostFormValue(g.cfg.FormField))
	}
	if token == "" {
		return ErrMissingToken
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1 {
		return ErrTokenMismatch
	}
	return nil
}

// Issue sets a fresh token cookie and echoes the value in the header so the
// client can read it once.
func (g *Guard) Issue(w http.ResponseWriter) (string, error) {
	token, err := g.newToken()
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     g.cfg.CookieName,
		Value:    token,
		Path:     g.cfg.CookiePath,
		Domain:   g.cfg.Domain,
		MaxAge:   int(g.cfg.MaxAge / time.Second),
		Secure:   g.cfg.Secure,
		HttpOnly: g.cfg.HTTPOnly,
		SameSite: g.cfg.SameSite,
	})
	w.Header().Set(g.cfg.HeaderName, token)
	return token, nil
}

func isForm(r *http.Request) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(ct, "multipart/form-data")
}
