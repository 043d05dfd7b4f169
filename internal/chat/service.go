// Package chat orchestrates one conversation turn: it sanitizes the user
// message, composes the upstream request from session state, calls the
// provider and folds the reply back into the session history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gemchat/gemchat/internal/prompt"
	"github.com/gemchat/gemchat/internal/provider"
	"github.com/gemchat/gemchat/internal/session"
)

// Result is the outcome of a successful chat turn.
type Result struct {
	Reply     string `json:"response"`
	SessionID string `json:"conversationId"`
}

// Config tunes a Service. Zero values select the defaults.
type Config struct {
	HistoryLimit      int
	MaxMessageLength  int
	Timeout           time.Duration
	SystemInstruction string
}

// Service is the conversation orchestrator. It is safe for concurrent use;
// concurrent turns on the same session are last-writer-wins.
type Service struct {
	store    session.Store
	provider provider.Provider
	cfg      Config
	logger   *slog.Logger
}

func NewService(store session.Store, p provider.Provider, cfg Config, logger *slog.Logger) *Service {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = session.DefaultHistoryLimit
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = prompt.MaxMessageLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, provider: p, cfg: cfg, logger: logger}
}

// Provider returns the upstream the service talks to.
func (s *Service) Provider() provider.Provider { return s.provider }

// Ensure loads the session with the given id, or creates a new one when id
// is empty, unknown or expired. The returned session is always persisted.
func (s *Service) Ensure(ctx context.Context, id string) (*session.Session, error) {
	sess, created, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if created {
		if err := s.store.Save(ctx, sess); err != nil {
			return nil, &SessionError{Op: "create", Err: err}
		}
		s.logger.Debug("session created", "session", sess.ID)
	}
	return sess, nil
}

// lookup loads the session with the given id. When there is none it returns
// a fresh, unsaved session and reports it as created.
func (s *Service) lookup(ctx context.Context, id string) (*session.Session, bool, error) {
	if id != "" {
		sess, err := s.store.Get(ctx, id)
		if err == nil {
			if err := s.store.Touch(ctx, id); err != nil && !errors.Is(err, session.ErrNotFound) {
				return nil, false, &SessionError{Op: "touch", Err: err}
			}
			return sess, false, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return nil, false, &SessionError{Op: "load", Err: err}
		}
	}
	return session.New(), true, nil
}

// Chat runs one conversation turn. On any failure, including cancellation
// of ctx, the session history is left untouched. A session created for this
// turn is only stored once the turn succeeds.
func (s *Service) Chat(ctx context.Context, sessionID, raw string) (*Result, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, invalidMessage()
	}
	message := prompt.SanitizeLimit(raw, s.cfg.MaxMessageLength)

	sess, created, err := s.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	req := prompt.Compose(message, sess.Preferences, sess.History.Turns(), s.cfg.SystemInstruction)

	callCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	resp, err := s.provider.Generate(callCtx, req)
	if err != nil {
		var ue *provider.UpstreamError
		if errors.As(err, &ue) {
			return nil, err
		}
		return nil, &provider.UpstreamError{Provider: s.provider.Name(), Message: "upstream call failed", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &provider.UpstreamError{Provider: s.provider.Name(), Message: "request cancelled", Err: err}
	}

	reply := resp.Text()
	sess.History.AppendPair(session.UserTurn(message), session.AssistantTurn(reply), s.cfg.HistoryLimit)
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, &SessionError{Op: "save", Err: err}
	}
	if created {
		s.logger.Debug("session created", "session", sess.ID)
	}

	return &Result{Reply: reply, SessionID: sess.ID}, nil
}

// Preferences returns the current preference set of the session.
func (s *Service) Preferences(ctx context.Context, sessionID string) (session.Preferences, string, error) {
	sess, err := s.Ensure(ctx, sessionID)
	if err != nil {
		return session.Preferences{}, "", err
	}
	return sess.Preferences, sess.ID, nil
}

// UpdatePreferences applies a partial update. An invalid value for any known
// key rejects the whole update with a *ValidationError and leaves the stored
// set unchanged.
func (s *Service) UpdatePreferences(ctx context.Context, sessionID string, partial map[string]any) (session.Preferences, string, error) {
	sess, err := s.Ensure(ctx, sessionID)
	if err != nil {
		return session.Preferences{}, "", err
	}

	next, fieldErrs := sess.Preferences.Apply(partial)
	if len(fieldErrs) > 0 {
		return sess.Preferences, sess.ID, &ValidationError{Fields: fieldErrs}
	}

	sess.Preferences = next
	if err := s.store.Save(ctx, sess); err != nil {
		return session.Preferences{}, sess.ID, &SessionError{Op: "save", Err: err}
	}
	s.logger.Debug("preferences updated", "session", sess.ID, "preferences", fmt.Sprintf("%+v", next))
	return next, sess.ID, nil
}

// History returns a snapshot of the session's turns.
func (s *Service) History(ctx context.Context, sessionID string) ([]session.Turn, string, error) {
	sess, err := s.Ensure(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	return sess.History.Turns(), sess.ID, nil
}

// Reset destroys the session, and with it the history ledger. The next
// request under the same id starts a fresh session with a new id and an
// empty ledger.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return &SessionError{Op: "delete", Err: err}
	}
	s.logger.Info("session reset", "session", sessionID)
	return nil
}

// Sweep removes expired sessions from the store.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	n, err := s.store.Sweep(ctx)
	if err != nil {
		return 0, &SessionError{Op: "sweep", Err: err}
	}
	return n, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Warn("session sweep failed", "err", err)
				continue
			}
			if n > 0 {
				s.logger.Info("expired sessions swept", "count", n)
			}
		}
	}
}
