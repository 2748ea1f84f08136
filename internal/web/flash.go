package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const flashCookieName = "flash"

// Flash kinds map to alert styles.
const (
	FlashSuccess = "success"
	FlashDanger  = "danger"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind string `json:"k"`
	Text string `json:"t"`
}

// setFlash queues messages for the next page the client renders. It
// replaces any messages still pending.
func setFlash(w http.ResponseWriter, secure bool, flashes ...Flash) {
	data, err := json.Marshal(flashes)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns pending messages and clears them. Malformed cookies are
// dropped silently.
func popFlash(w http.ResponseWriter, r *http.Request, secure bool) []Flash {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	data, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if err := json.Unmarshal(data, &flashes); err != nil {
		return nil
	}
	return flashes
}
