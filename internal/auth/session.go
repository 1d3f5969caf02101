package auth

import (
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	sessionName   = "session"
	sessionMaxAge = 24 * 60 * 60
)

// Sessions stores the signed-in user in a signed cookie.
type Sessions struct {
	store *sessions.CookieStore
}

// NewSessions creates a cookie store. The first key signs new cookies; every
// key is accepted when verifying, so keys can be rotated.
func NewSessions(keys []string, secure bool) *Sessions {
	pairs := make([][]byte, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, []byte(k), nil)
	}

	store := sessions.NewCookieStore(pairs...)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   sessionMaxAge,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	}
	return &Sessions{store: store}
}

// User returns the session's user, or nil when nobody is signed in or the
// cookie does not verify.
func (s *Sessions) User(r *http.Request) *User {
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		return nil
	}
	id, _ := sess.Values["id"].(string)
	if id == "" {
		return nil
	}
	email, _ := sess.Values["email"].(string)
	name, _ := sess.Values["name"].(string)
	return &User{ID: id, Email: email, Name: name}
}

// SetUser signs u in.
func (s *Sessions) SetUser(w http.ResponseWriter, r *http.Request, u *User) error {
	// A stale or foreign cookie yields a fresh session alongside the error.
	sess, _ := s.store.Get(r, sessionName)
	sess.Values["id"] = u.ID
	sess.Values["email"] = u.Email
	sess.Values["name"] = u.Name
	return sess.Save(r, w)
}

// Clear expires the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, sessionName)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}
