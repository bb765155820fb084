package notify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

// ErrPermissionDenied tells the dispatcher to stop using a channel for the
// rest of the session.
var ErrPermissionDenied = errors.New("notification permission denied")

// Channel delivers messages to the user.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// PermissionRequester is implemented by channels that must be granted
// permission before their first message.
type PermissionRequester interface {
	RequestPermission(ctx context.Context) error
}

// LogChannel writes alerts to the log. It never fails.
type LogChannel struct {
	logger *zap.Logger
}

func NewLogChannel(logger *zap.Logger) *LogChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(_ context.Context, msg Message) error {
	c.logger.Info("alert", zap.String("tag", msg.Tag), zap.String("title", msg.Title), zap.String("body", msg.Body))
	return nil
}

// DesktopChannel shows alerts through a notify-send compatible command.
// Alerts sharing a tag replace each other on servers that honour the
// stack-tag hint.
type DesktopChannel struct {
	command string
	run     func(ctx context.Context, name string, args ...string) error
}

func NewDesktopChannel(command string) *DesktopChannel {
	if command == "" {
		command = "notify-send"
	}
	return &DesktopChannel{command: command, run: runCommand}
}

func (c *DesktopChannel) Name() string { return "desktop" }

// RequestPermission succeeds when the command is installed.
func (c *DesktopChannel) RequestPermission(context.Context) error {
	if _, err := exec.LookPath(c.command); err != nil {
		return fmt.Errorf("%w: %s not available: %v", ErrPermissionDenied, c.command, err)
	}
	return nil
}

func (c *DesktopChannel) Send(ctx context.Context, msg Message) error {
	return c.run(ctx, c.command,
		"--app-name=taskmaster",
		"--hint=string:x-dunst-stack-tag:"+msg.Tag,
		msg.Title,
		msg.Body,
	)
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, out)
	}
	return nil
}
