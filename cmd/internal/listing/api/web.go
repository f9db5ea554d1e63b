package listingapi

import (
	"net"
	"net/http"
	"strings"

	"listinggen/cmd/internal/session"
)

func (h *Handler) setSessionCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    value,
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func (h *Handler) sessionToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(h.cfg.CookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", false
	}
	return v, true
}

// Lookup returns the session named by the request cookie without creating one.
func (h *Handler) Lookup(r *http.Request) (*session.Session, error) {
	raw, ok := h.sessionToken(r)
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return h.store.Get(raw, h.now())
}

// resolve returns the cookie's session, or issues a new one when the cookie
// is missing, unknown or expired.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	if s, err := h.Lookup(r); err == nil {
		return s, nil
	}

	raw, s, err := h.store.Create(h.now())
	if err != nil {
		return nil, err
	}
	h.setSessionCookie(w, raw)
	h.log.Debug("session.create", "session_id", s.ID)
	if h.onSessions != nil {
		h.onSessions(h.store.Len())
	}
	return s, nil
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
