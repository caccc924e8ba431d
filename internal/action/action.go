// Package action turns configured actions into task payloads.
//
// Every payload built here handles its own failures: errors and panics are
// logged and swallowed, so one broken action never aborts a polling tick.
package action

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"cadence/internal/task"
	logx "cadence/pkg/logx"
)

const (
	KindLog      = "log"
	KindCommand  = "command"
	KindTelegram = "telegram"
	KindSystemd  = "systemd"

	defaultTimeout = 10 * time.Second
	maxOutputLog   = 600
)

// Spec describes one action.
type Spec struct {
	Kind    string
	Message string // log, telegram

	Command string // command
	Args    []string

	Unit      string // systemd; ".service" is appended when no suffix is given
	Operation string // systemd: start | stop | restart | recover (default)

	Timeout time.Duration // command, telegram, systemd; 0 means default

	ChatID   int64 // telegram
	ThreadID int
}

// Sender is the part of *tele.Bot used to deliver messages.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Factory builds payloads. It is safe for concurrent use.
type Factory struct {
	log   logx.Logger
	token string

	mu     sync.Mutex
	sender Sender                   // injected; overrides bots
	bots   map[time.Duration]Sender // one client per send timeout
	newBot func(token string, timeout time.Duration) (Sender, error)

	dialUnits UnitDialer
}

type FactoryOption func(*Factory)

// WithSender injects the telegram sender instead of building a bot from the token.
func WithSender(s Sender) FactoryOption {
	return func(f *Factory) { f.sender = s }
}

func NewFactory(log logx.Logger, telegramToken string, opts ...FactoryOption) *Factory {
	if log.IsZero() {
		log = logx.Nop()
	}
	f := &Factory{
		log:       log.With(logx.String("comp", "action")),
		token:     strings.TrimSpace(telegramToken),
		bots:      map[time.Duration]Sender{},
		newBot:    newBot,
		dialUnits: dialSystemBus,
	}
	for _, o := range opts {
		if o != nil {
			o(f)
		}
	}
	return f
}

// Validate checks spec without building anything.
func Validate(spec Spec) error {
	switch strings.ToLower(strings.TrimSpace(spec.Kind)) {
	case KindLog, "":
		return nil
	case KindCommand:
		if strings.TrimSpace(spec.Command) == "" {
			return errors.New("command required")
		}
		return nil
	case KindTelegram:
		if spec.ChatID == 0 {
			return errors.New("chat_id required")
		}
		if strings.TrimSpace(spec.Message) == "" {
			return errors.New("message required")
		}
		return nil
	case KindSystemd:
		return validateSystemd(spec)
	default:
		return fmt.Errorf("unknown action kind %q", spec.Kind)
	}
}

// Build returns the payload for taskName.
func (f *Factory) Build(taskName string, spec Spec) (task.Payload, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}
	log := f.log.With(logx.String("task", taskName))

	var run func() error
	switch strings.ToLower(strings.TrimSpace(spec.Kind)) {
	case KindLog, "":
		msg := spec.Message
		if msg == "" {
			msg = "task executed"
		}
		run = func() error {
			log.Info(msg)
			return nil
		}
	case KindCommand:
		run = commandRunner(log, spec)
	case KindTelegram:
		sender, err := f.telegramSender(spec.Timeout)
		if err != nil {
			return nil, err
		}
		run = telegramRunner(sender, spec)
	case KindSystemd:
		run = systemdRunner(log, f.dialUnits, spec)
	}

	return guard(log, run), nil
}

// guard turns errors and panics into log lines.
func guard(log logx.Logger, run func() error) task.Payload {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("action panicked", logx.Any("panic", r), logx.Stack(logx.StackTrace(3, 16)))
			}
		}()
		if err := run(); err != nil {
			log.Warn("action failed", logx.Err(err))
		}
	}
}

func commandRunner(log logx.Logger, spec Spec) func() error {
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	name := strings.TrimSpace(spec.Command)
	args := append([]string(nil), spec.Args...)

	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
		took := time.Since(start)
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("command %q timed out after %s", name, timeout)
		}
		if err != nil {
			return fmt.Errorf("command %q: %w (output: %s)", name, err, truncate(strings.TrimSpace(string(out)), maxOutputLog))
		}
		log.Debug("command finished", logx.String("command", name), logx.Duration("took", took))
		return nil
	}
}

func telegramRunner(sender Sender, spec Spec) func() error {
	chat := &tele.Chat{ID: spec.ChatID}
	opt := &tele.SendOptions{ThreadID: spec.ThreadID, DisableWebPagePreview: true}
	msg := spec.Message
	return func() error {
		_, err := sender.Send(chat, msg, opt)
		if err != nil {
			return fmt.Errorf("telegram send to %d: %w", spec.ChatID, err)
		}
		return nil
	}
}

// telegramSender returns a sender whose HTTP client honours timeout.
// Actions sharing a timeout share a bot.
func (f *Factory) telegramSender(timeout time.Duration) (Sender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sender != nil {
		return f.sender, nil
	}
	if f.token == "" {
		return nil, errors.New("telegram action requires telegram.token")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if b, ok := f.bots[timeout]; ok {
		return b, nil
	}
	b, err := f.newBot(f.token, timeout)
	if err != nil {
		return nil, err
	}
	f.bots[timeout] = b
	return b, nil
}

func truncate(s string, maxN int) string {
	if maxN <= 0 || len(s) <= maxN {
		return s
	}
	if maxN < 10 {
		return s[:maxN]
	}
	return s[:maxN-3] + "..."
}
