package session

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

// CookiePrefix namespaces every cookie written by CookieStore.
const CookiePrefix = "kalena_"

// CookieOptions controls the attributes of cookies written by CookieStore.
type CookieOptions struct {
	Secure bool
	MaxAge time.Duration
}

// CookieStore is a Store scoped to one HTTP request/response pair. Values
// are base64url encoded. Writes are visible to later Loads on the same store
// even though the browser only sees them on the next request.
type CookieStore struct {
	w    http.ResponseWriter
	r    *http.Request
	opts CookieOptions

	pending map[string]*string // nil value marks a cleared key
}

func NewCookieStore(w http.ResponseWriter, r *http.Request, opts CookieOptions) *CookieStore {
	if opts.MaxAge <= 0 {
		opts.MaxAge = 30 * 24 * time.Hour
	}
	return &CookieStore{w: w, r: r, opts: opts, pending: make(map[string]*string)}
}

func (c *CookieStore) cookie(key, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookiePrefix + key,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.opts.Secure,
		// Lax so the cookie survives the top-level redirect back from the
		// OAuth provider.
		SameSite: http.SameSiteLaxMode,
	}
}

func (c *CookieStore) Store(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	enc := base64.RawURLEncoding.EncodeToString([]byte(value))
	http.SetCookie(c.w, c.cookie(key, enc, int(c.opts.MaxAge/time.Second)))
	c.pending[key] = &value
	return nil
}

func (c *CookieStore) Load(key string) (string, bool) {
	if v, ok := c.pending[key]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	ck, err := c.r.Cookie(CookiePrefix + key)
	if err != nil {
		return "", false
	}
	dec, err := base64.RawURLEncoding.DecodeString(ck.Value)
	if err != nil {
		return "", false
	}
	return string(dec), true
}

func (c *CookieStore) Clear(key string) error {
	http.SetCookie(c.w, c.cookie(key, "", -1))
	c.pending[key] = nil
	return nil
}

// ClearAll expires every kalena_ cookie the request carried as well as any
// key written through this store.
func (c *CookieStore) ClearAll() error {
	keys := make(map[string]struct{})
	for _, ck := range c.r.Cookies() {
		if k, ok := strings.CutPrefix(ck.Name, CookiePrefix); ok && k != "" {
			keys[k] = struct{}{}
		}
	}
	for k := range c.pending {
		keys[k] = struct{}{}
	}
	for k := range keys {
		if err := c.Clear(k); err != nil {
			return err
		}
	}
	return nil
}
