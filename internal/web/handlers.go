package web

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"kalena/internal/backend"
	"kalena/internal/calendar"
	"kalena/internal/ics"
	appLog "kalena/internal/log"
	"kalena/internal/model"
	"kalena/internal/session"
)

var weekdays = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

func parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"short": func(s string) string {
			if len(s) > 3 {
				return s[:3]
			}
			return s
		},
	}
	t, err := template.New("").Funcs(funcs).ParseFS(embeddedTemplates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("web: parse templates: %w", err)
	}
	return t, nil
}

// chrome is the data every page header needs.
type chrome struct {
	Title    string
	LoggedIn bool
	User     *model.User
	// CSRF is the form token the logout form posts back.
	CSRF string
}

func (s *Server) pageChrome(sess *session.Session, title string) chrome {
	c := chrome{Title: title, LoggedIn: sess.IsLoggedIn()}
	if !c.LoggedIn {
		return c
	}
	c.User, _ = sess.User()
	tok, err := sess.CSRFToken()
	if err != nil {
		appLog.Error("session form token failed", err)
	}
	c.CSRF = tok
	return c
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		appLog.Error("template render failed", err, "template", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// layoutFor resolves ?month=YYYY-MM, defaulting to the current month.
func (s *Server) layoutFor(r *http.Request) (calendar.MonthLayout, error) {
	if v := r.URL.Query().Get("month"); v != "" {
		y, m, err := calendar.ParseMonth(v)
		if err != nil {
			return calendar.MonthLayout{}, err
		}
		return calendar.ComputeMonthLayout(y, m), nil
	}
	now := s.now().In(s.loc)
	return calendar.ComputeMonthLayout(now.Year(), now.Month()), nil
}

type monthPage struct {
	chrome
	Layout   calendar.MonthLayout
	Today    string
	Weekdays []string
	Weeks    [][]calendar.GridCell
	Prev     string
	Next     string
	Degraded bool
	Empty    bool
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	layout, err := s.layoutFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess := s.session(w, r)
	me := s.eventsForMonth(r.Context(), sess, layout)
	now := s.now().In(s.loc)
	cells := calendar.BuildGrid(layout, me.events, now, s.loc, s.cfg.DisplayCap)

	weeks := make([][]calendar.GridCell, 0, layout.WeekRows)
	for i := 0; i < len(cells); i += 7 {
		weeks = append(weeks, cells[i:i+7])
	}
	empty := true
	for _, c := range cells {
		if !c.Summaries.Empty() {
			empty = false
			break
		}
	}

	s.render(w, http.StatusOK, "month.html", monthPage{
		chrome:   s.pageChrome(sess, layout.Title()),
		Layout:   layout,
		Today:    now.Format("Mon Jan 02 2006"),
		Weekdays: weekdays,
		Weeks:    weeks,
		Prev:     layout.Prev().Key(),
		Next:     layout.Next().Key(),
		Degraded: me.degraded,
		Empty:    empty,
	})
}

type providerLink struct {
	Provider string
	Label    string
	URL      string
}

type loginPage struct {
	chrome
	Providers []providerLink
	Error     string
}

var providerLabels = map[string]string{
	"google":  "Link Google Calendar",
	"outlook": "Link Outlook Calendar",
}

var loginErrors = map[string]string{
	"missing_token": "The calendar provider did not return a session. Please try again.",
	"rejected":      "The session was rejected. Please link your calendar again.",
	"state":         "The sign-in link expired or did not start here. Please try again.",
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	state, err := sess.BeginLink()
	if err != nil {
		appLog.Error("session store link state failed", err)
		http.Error(w, "could not start linking", http.StatusInternalServerError)
		return
	}
	page := loginPage{
		chrome: s.pageChrome(sess, "Link calendars"),
		Error:  loginErrors[r.URL.Query().Get("error")],
	}
	redirect := s.cfg.PublicURL + "/auth/callback"
	for _, p := range backend.Providers {
		link, err := s.backend.LinkURL(p, redirect, state)
		if err != nil {
			appLog.Error("provider link unavailable", err, "provider", p)
			continue
		}
		page.Providers = append(page.Providers, providerLink{Provider: p, Label: providerLabels[p], URL: link})
	}
	s.render(w, http.StatusOK, "login.html", page)
}

// handleAuthCallback finishes the linking flow: the backend redirects here
// with the bearer token it issued and the state minted by handleLogin.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if !sess.FinishLink(r.URL.Query().Get("state")) {
		appLog.Info("auth callback with unknown state rejected")
		http.Redirect(w, r, "/login?error=state", http.StatusSeeOther)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Redirect(w, r, "/login?error=missing_token", http.StatusSeeOther)
		return
	}
	if err := sess.SetToken(token); err != nil {
		appLog.Error("session store token failed", err)
		http.Error(w, "could not store session", http.StatusInternalServerError)
		return
	}

	user, err := s.backend.Profile(r.Context(), token)
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		_ = sess.Logout()
		http.Redirect(w, r, "/login?error=rejected", http.StatusSeeOther)
		return
	case err != nil:
		// The calendar still works without a cached profile.
		appLog.Error("profile fetch failed after login", err)
	default:
		if err := sess.SetUser(user); err != nil {
			appLog.Error("session store user failed", err)
		}
	}
	appLog.Info("calendar linked", "user", user.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if !sess.ValidCSRF(r.PostFormValue("csrf")) {
		http.Error(w, "invalid form token", http.StatusForbidden)
		return
	}
	if token, ok := sess.Token(); ok {
		s.forgetToken(token)
	}
	if err := sess.Logout(); err != nil {
		appLog.Error("session logout failed", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type profilePage struct {
	chrome
	Profile   model.User
	ExpiresAt string
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	user, ok := sess.User()
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	page := profilePage{
		chrome:  s.pageChrome(sess, "User Profile"),
		Profile: *user,
	}
	if token, ok := sess.Token(); ok {
		if exp, ok := session.TokenExpiry(token); ok {
			page.ExpiresAt = exp.In(s.loc).Format(time.RFC1123)
		}
	}
	s.render(w, http.StatusOK, "profile.html", page)
}

type cellDTO struct {
	calendar.GridCell
	Date string `json:"date"`
}

type monthResponse struct {
	Layout   calendar.MonthLayout `json:"layout"`
	Title    string               `json:"title"`
	Today    string               `json:"today"`
	Prev     string               `json:"prev"`
	Next     string               `json:"next"`
	LoggedIn bool                 `json:"logged_in"`
	Degraded bool                 `json:"degraded,omitempty"`
	Cells    []cellDTO            `json:"cells"`
}

func (s *Server) handleAPIMonth(w http.ResponseWriter, r *http.Request) {
	layout, err := s.layoutFor(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	me := s.eventsForMonth(r.Context(), s.session(w, r), layout)
	now := s.now().In(s.loc)
	cells := calendar.BuildGrid(layout, me.events, now, s.loc, s.displayCap(r))

	resp := monthResponse{
		Layout:   layout,
		Title:    layout.Title(),
		Today:    calendar.DateOf(now, s.loc).String(),
		Prev:     layout.Prev().Key(),
		Next:     layout.Next().Key(),
		LoggedIn: me.loggedIn,
		Degraded: me.degraded,
		Cells:    make([]cellDTO, 0, len(cells)),
	}
	for _, c := range cells {
		resp.Cells = append(resp.Cells, cellDTO{GridCell: c, Date: c.Date.String()})
	}
	writeJSON(w, http.StatusOK, resp)
}

type dayResponse struct {
	Date      string             `json:"date"`
	Today     bool               `json:"today"`
	Events    []model.Event      `json:"events"`
	Summaries calendar.Summaries `json:"summaries"`
}

// handleAPIDay lists every event of one day, the view behind a cell's
// "N more events" entry.
func (s *Server) handleAPIDay(w http.ResponseWriter, r *http.Request) {
	d, err := time.ParseInLocation(time.DateOnly, r.URL.Query().Get("date"), s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	layout := calendar.ComputeMonthLayout(d.Year(), d.Month())
	me := s.eventsForMonth(r.Context(), s.session(w, r), layout)

	events := calendar.EventsForDay(me.events, d.Year(), d.Month(), d.Day(), s.loc)
	writeJSON(w, http.StatusOK, dayResponse{
		Date:      d.Format(time.DateOnly),
		Today:     calendar.IsToday(d.Day(), d.Year(), d.Month(), s.now().In(s.loc)),
		Events:    events,
		Summaries: calendar.SummariesForDay(events, s.displayCap(r)),
	})
}

type feedDTO struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type feedsResponse struct {
	Feeds       []feedDTO  `json:"feeds"`
	RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
}

// handleAPIFeeds reports the subscribed feeds. URLs are left out since they
// often carry access tokens.
func (s *Server) handleAPIFeeds(w http.ResponseWriter, _ *http.Request) {
	resp := feedsResponse{Feeds: make([]feedDTO, 0)}
	if status, ok := s.feeds.(FeedStatus); ok {
		for _, src := range status.Sources() {
			resp.Feeds = append(resp.Feeds, feedDTO{ID: src.ID, Name: src.Name})
		}
		if at := status.RefreshedAt(); !at.IsZero() {
			at = at.In(s.loc)
			resp.RefreshedAt = &at
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMonthICS(w http.ResponseWriter, r *http.Request) {
	layout, err := s.layoutFor(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	me := s.eventsForMonth(r.Context(), s.session(w, r), layout)

	var buf bytes.Buffer
	if err := ics.EncodeMonth(&buf, layout.Title(), inMonth(me.events, layout, s.loc)); err != nil {
		appLog.Error("ics export failed", err, "month", layout.Key())
		writeError(w, http.StatusInternalServerError, "failed to export month")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="kalena-%s.ics"`, url.PathEscape(layout.Key())))
	_, _ = buf.WriteTo(w)
}
