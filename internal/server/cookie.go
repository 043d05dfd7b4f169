package server

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CookieName is the session cookie.
const CookieName = "gemchat.sid"

// HeaderConversationID echoes the session id on every API response.
const HeaderConversationID = "X-Conversation-ID"

// cookieCodec signs session ids with HMAC-SHA256 so clients cannot pick
// another session by editing the cookie.
type cookieCodec struct {
	key []byte
}

// newCookieCodec uses secret as the key, or a random per-process key when
// secret is empty. Cookies signed with a random key do not survive restarts.
func newCookieCodec(secret string) (*cookieCodec, error) {
	if secret != "" {
		return &cookieCodec{key: []byte(secret)}, nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}
	return &cookieCodec{key: key}, nil
}

func (c *cookieCodec) sign(id string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(id))
	return id + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// verify returns the id carried by a signed value.
func (c *cookieCodec) verify(value string) (string, bool) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 {
		return "", false
	}
	id := value[:i]
	if !hmac.Equal([]byte(c.sign(id)), []byte(value)) {
		return "", false
	}
	return id, true
}

// sessionID returns the verified id from the request cookie, or "".
func (s *Server) sessionID(r *http.Request) string {
	ck, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	id, ok := s.cookies.verify(ck.Value)
	if !ok {
		s.logger.Debug("rejected session cookie", "remote", r.RemoteAddr)
		return ""
	}
	return id
}

func (s *Server) setSession(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.cookies.sign(id),
		Path:     "/",
		MaxAge:   int(s.cfg.CookieMaxAge / time.Second),
		Expires:  time.Now().Add(s.cfg.CookieMaxAge),
		HttpOnly: true,
		Secure:   s.cfg.production(),
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(HeaderConversationID, id)
}

func (s *Server) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.production(),
		SameSite: http.SameSiteLaxMode,
	})
}
