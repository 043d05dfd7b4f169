package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gemchat/gemchat/internal/session"
	"github.com/gemchat/gemchat/internal/tui"
)

const helpText = `Commands:
  /prefs                 show current preferences
  /prefs key=value ...   update preferences (responseLength, formality, tone, creativity)
  /history               show the conversation so far
  /reset                 start a new conversation
  /help                  show this help
  /quit                  exit`

// REPL is the interactive chat loop.
type REPL struct {
	api *API
	io  tui.IO

	// PrefsPath, when set, is where preferences are saved after every
	// successful update and restored from on start.
	PrefsPath string

	prefs session.Preferences
}

func NewREPL(api *API, tio tui.IO) *REPL {
	return &REPL{api: api, io: tio, prefs: session.DefaultPreferences()}
}

// Run reads input until EOF, /quit or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	r.restorePreferences(ctx)
	r.io.SystemMessage("Connected. Type /help for commands.")
	r.updateStatus()

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := r.io.ReadInput()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := r.command(ctx, line); quit {
				return nil
			}
			continue
		}
		r.send(ctx, line)
	}
}

func (r *REPL) send(ctx context.Context, text string) {
	r.io.UserMessage(text)
	r.io.ThinkingStart()

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if c, ok := r.io.(tui.RequestCanceller); ok {
		c.SetRequestCancel(cancel)
		defer c.ClearRequestCancel()
	}

	reply, err := r.api.Chat(reqCtx, text)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			r.io.SystemMessage("Request cancelled.")
			return
		}
		r.io.Error(err.Error())
		return
	}
	r.io.Reply(reply.Response)
	r.updateStatus()
}

// command handles a slash command. It returns true when the loop should end.
func (r *REPL) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/help":
		r.io.SystemMessage(helpText)

	case "/reset":
		if err := r.api.Reset(ctx); err != nil {
			r.io.Error(err.Error())
			return false
		}
		r.io.SystemMessage("Conversation reset.")
		// Local preferences carry over to the new session.
		r.restorePreferences(ctx)
		r.updateStatus()

	case "/history":
		turns, err := r.api.History(ctx)
		if err != nil {
			r.io.Error(err.Error())
			return false
		}
		r.io.SystemMessage(formatHistory(turns))
		r.updateStatus()

	case "/prefs":
		if len(fields) == 1 {
			prefs, err := r.api.Preferences(ctx)
			if err != nil {
				r.io.Error(err.Error())
				return false
			}
			r.prefs = prefs
			r.io.SystemMessage(formatPreferences(prefs))
			r.updateStatus()
			return false
		}
		partial, err := parseAssignments(fields[1:])
		if err != nil {
			r.io.Error(err.Error())
			return false
		}
		r.updatePreferences(ctx, partial)

	default:
		r.io.Error(fmt.Sprintf("unknown command %s (try /help)", fields[0]))
	}
	return false
}

func (r *REPL) updatePreferences(ctx context.Context, partial map[string]any) {
	prefs, err := r.api.UpdatePreferences(ctx, partial)
	if err != nil {
		r.io.Error(err.Error())
		return
	}
	r.prefs = prefs
	r.io.SystemMessage("Preferences updated: " + summarize(prefs))
	if r.PrefsPath != "" {
		if err := SavePreferences(r.PrefsPath, prefs); err != nil {
			r.io.Error("save preferences: " + err.Error())
		}
	}
	r.updateStatus()
}

// restorePreferences re-sends locally saved preferences to the current session.
func (r *REPL) restorePreferences(ctx context.Context) {
	if r.PrefsPath == "" {
		return
	}
	saved, ok, err := LoadPreferences(r.PrefsPath)
	if err != nil {
		r.io.Error(err.Error())
		return
	}
	if !ok {
		return
	}
	prefs, err := r.api.UpdatePreferences(ctx, asPartial(saved))
	if err != nil {
		r.io.Error("restore preferences: " + err.Error())
		return
	}
	r.prefs = prefs
}

func (r *REPL) updateStatus() {
	r.io.SetSession(r.api.SessionID(), summarize(r.prefs))
}

// parseAssignments turns ["tone=humorous", "creativity=0.8"] into an update body.
func parseAssignments(args []string) (map[string]any, error) {
	partial := make(map[string]any, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		partial[k] = v
	}
	return partial, nil
}

func summarize(p session.Preferences) string {
	return fmt.Sprintf("%s/%s/%s/%.2g", p.ResponseLength, p.Formality, p.Tone, p.Creativity)
}

func formatPreferences(p session.Preferences) string {
	return fmt.Sprintf("responseLength=%s formality=%s tone=%s creativity=%g",
		p.ResponseLength, p.Formality, p.Tone, p.Creativity)
}

func formatHistory(turns []session.Turn) string {
	if len(turns) == 0 {
		return "(no messages yet)"
	}
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", t.Role, t.Content)
	}
	return b.String()
}
