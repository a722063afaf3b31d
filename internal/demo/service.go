// Package demo is a small web application that keeps all of its state in a
// cookiesession cookie: a saved text, a page load counter and a fixed secret.
package demo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Morditux/cookiesession"
)

// Session fields used by the demo.
const (
	FieldSavedText  = "savedText"
	FieldSecretData = "secretData"
	FieldPageLoads  = "pageLoads"
)

// SecretData is written on every page load. With encryption enabled it is
// not readable from the cookie.
const SecretData = "This is some secret cookie data that was set when you visited the site!"

// PageData is what the page renders.
type PageData struct {
	SavedText         string `json:"savedText"`
	HasSavedText      bool   `json:"-"`
	AllCookieDataJSON string `json:"allCookieDataJson"`
}

// Service implements the demo actions. Each takes the raw Cookie header of
// the request and, for mutations, returns the Set-Cookie value to send back.
type Service struct {
	sessions *cookiesession.Manager
	logger   *slog.Logger
}

func NewService(sessions *cookiesession.Manager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{sessions: sessions, logger: logger}
}

// LoadData returns the saved text and a JSON dump of the whole session.
func (s *Service) LoadData(ctx context.Context, cookieHeader string) PageData {
	sess := s.sessions.Parse(ctx, cookieHeader)
	text := savedText(sess)
	return PageData{
		SavedText:         text,
		HasSavedText:      text != "",
		AllCookieDataJSON: sess.JSON(),
	}
}

// RecordPageLoad stores SecretData and bumps the page load counter.
func (s *Service) RecordPageLoad(ctx context.Context, cookieHeader string) (string, error) {
	sess := s.sessions.Parse(ctx, cookieHeader)

	loads := 1.0
	if v, ok := sess.Get(FieldPageLoads); ok {
		if n, ok := v.AsNumber(); ok && n != 0 {
			loads = n + 1
		}
	}
	sess.Set(FieldSecretData, cookiesession.String(SecretData))
	sess.Set(FieldPageLoads, cookiesession.Number(loads))

	cookie, err := s.sessions.Commit(sess)
	if err != nil {
		return "", fmt.Errorf("demo: record page load: %w", err)
	}
	loggerFrom(ctx, s.logger).Debug("page load recorded", "page_loads", loads)
	return cookie, nil
}

// UpdateText replaces the saved text.
func (s *Service) UpdateText(ctx context.Context, cookieHeader, newText string) (string, error) {
	sess := s.sessions.Parse(ctx, cookieHeader)
	old := savedText(sess)

	sess.Set(FieldSavedText, cookiesession.String(newText))
	cookie, err := s.sessions.Commit(sess)
	if err != nil {
		return "", fmt.Errorf("demo: update text: %w", err)
	}
	loggerFrom(ctx, s.logger).Info("saved text updated", "old", old, "new", newText)
	return cookie, nil
}

// DestroySession clears every field and returns a cookie that removes the
// session from the browser.
func (s *Service) DestroySession(ctx context.Context, cookieHeader string) (string, error) {
	sess := s.sessions.Parse(ctx, cookieHeader)
	cookie, err := s.sessions.Destroy(ctx, sess)
	if err != nil {
		if cookie == "" {
			return "", fmt.Errorf("demo: destroy session: %w", err)
		}
		// The browser copy is still cleared.
		loggerFrom(ctx, s.logger).Warn("session revocation failed", "error", err)
	}
	loggerFrom(ctx, s.logger).Info("session destroyed")
	return cookie, nil
}

func savedText(sess *cookiesession.Session) string {
	v, ok := sess.Get(FieldSavedText)
	if !ok {
		return ""
	}
	text, _ := v.AsString()
	return text
}
