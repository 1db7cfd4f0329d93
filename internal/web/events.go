package web

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"kalena/internal/backend"
	"kalena/internal/calendar"
	appLog "kalena/internal/log"
	"kalena/internal/model"
	"kalena/internal/session"
)

// monthEvents is what one render of a month needs.
type monthEvents struct {
	events   []model.Event
	loggedIn bool
	// degraded is set when the backend could not be reached and the grid
	// shows only feed events.
	degraded bool
}

// eventsForMonth gathers backend events (when a token is present) and feed
// events for layout. Backend failures degrade to feed-only; a rejected token
// logs the session out.
func (s *Server) eventsForMonth(ctx context.Context, sess *session.Session, layout calendar.MonthLayout) monthEvents {
	var out monthEvents
	out.events = make([]model.Event, 0)

	if token, ok := sess.Token(); ok {
		out.loggedIn = true
		evs, err := s.backendEvents(ctx, token)
		switch {
		case errors.Is(err, backend.ErrUnauthorized):
			appLog.Info("backend rejected session token, logging out")
			s.forgetToken(token)
			if err := sess.Logout(); err != nil {
				appLog.Error("session logout failed", err)
			}
			out.loggedIn = false
		case err != nil:
			appLog.Error("backend events unavailable, rendering without them", err)
			out.degraded = true
		default:
			out.events = append(out.events, evs...)
		}
	}

	if s.feeds != nil {
		from := calendar.CalendarDate{Year: layout.Year, Month: layout.Month, Day: 1}.Time(s.loc)
		to := from.AddDate(0, 1, 0)
		out.events = append(out.events, s.feeds.EventsBetween(from, to, s.loc)...)
	}

	backend.SortByStart(out.events)
	return out
}

// backendEvents returns the cached events of token or fetches them.
func (s *Server) backendEvents(ctx context.Context, token string) ([]model.Event, error) {
	ttl := s.cfg.EventsCacheTTL()
	key := tokenKey(token)
	now := time.Now()

	if ttl > 0 {
		s.eventsMu.RLock()
		entry, ok := s.eventsCache[key]
		s.eventsMu.RUnlock()
		if ok && now.Sub(entry.updatedAt) < ttl {
			return entry.events, nil
		}
	}

	evs, err := s.backend.UpcomingEvents(ctx, token)
	if err != nil {
		return nil, err
	}
	if ttl > 0 {
		s.eventsMu.Lock()
		for k, e := range s.eventsCache {
			if now.Sub(e.updatedAt) >= ttl {
				delete(s.eventsCache, k)
			}
		}
		s.eventsCache[key] = eventsCacheEntry{events: evs, updatedAt: now}
		s.eventsMu.Unlock()
	}
	return evs, nil
}

func (s *Server) forgetToken(token string) {
	s.eventsMu.Lock()
	delete(s.eventsCache, tokenKey(token))
	s.eventsMu.Unlock()
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// inMonth keeps the events whose start falls on a day of layout.
func inMonth(events []model.Event, layout calendar.MonthLayout, loc *time.Location) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range events {
		if !ev.HasStart() {
			continue
		}
		d := calendar.DateOf(ev.Start, loc)
		if d.Year == layout.Year && d.Month == layout.Month {
			out = append(out, ev)
		}
	}
	return out
}
