package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crm/internal/clock"
	"github.com/JonMunkholm/crm/internal/config"
	"github.com/JonMunkholm/crm/internal/notify"
	"github.com/JonMunkholm/crm/internal/source"
	"github.com/JonMunkholm/crm/internal/view"
)

const (
	sessionCookie      = "crm_session"
	sessionIdleTimeout = 30 * time.Minute
)

// session is one browser's view state. mu serialises access to the views;
// handlers release it while a source call is in flight.
type session struct {
	mu     sync.Mutex
	id     string
	notify *notify.Channel
	list   *view.List
	search view.Search
	seen   time.Time
}

// sessionStore keeps sessions in memory, keyed by a random uuid cookie.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	src      source.Source
	clock    clock.Clock
	grid     config.GridConfig
}

func newSessionStore(src source.Source, c clock.Clock, g config.GridConfig) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*session),
		src:      src,
		clock:    c,
		grid:     g,
	}
}

// get returns the session named by the request cookie, or a new one.
func (st *sessionStore) get(w http.ResponseWriter, r *http.Request) *session {
	now := st.clock.Now()

	st.mu.Lock()
	defer st.mu.Unlock()

	if c, err := r.Cookie(sessionCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			if sess, ok := st.sessions[id.String()]; ok {
				sess.seen = now
				return sess
			}
		}
	}

	st.prune(now)
	n := notify.New(st.clock, st.grid.NotifyTTL)
	sess := &session{
		id:     uuid.NewString(),
		notify: n,
		list:   view.NewList(st.src, st.grid.PageSize, n),
		seen:   now,
	}
	st.sessions[sess.id] = sess

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	return sess
}

// prune drops sessions idle past the timeout. Caller holds mu.
func (st *sessionStore) prune(now time.Time) {
	for id, sess := range st.sessions {
		if now.Sub(sess.seen) > sessionIdleTimeout {
			delete(st.sessions, id)
		}
	}
}

// len reports the number of live sessions.
func (st *sessionStore) len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
