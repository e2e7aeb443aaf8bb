package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf("display notification %s with title %s", strconv.Quote(message), strconv.Quote(title))
	return exec.Command("osascript", "-e", script).Run()
}

// Notifier prints watch mode events and mirrors them to the desktop when a
// sender exists for this platform.
type Notifier struct {
	sender NotificationSender
}

// NewNotifier picks the sender for the current platform. Desktop delivery
// is skipped when enabled is false.
func NewNotifier(enabled bool) *Notifier {
	if !enabled {
		return &Notifier{}
	}
	switch runtime.GOOS {
	case "linux":
		return &Notifier{sender: &LinuxNotificationSender{}}
	case "darwin":
		return &Notifier{sender: &MacOSNotificationSender{}}
	default:
		return &Notifier{}
	}
}

// NewNotifierWithSender uses sender for desktop delivery
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

// SendNotification prints and delivers an informational event
func (n *Notifier) SendNotification(title, message string) {
	if !IsQuietMode() {
		fmt.Fprintf(Out, "\n%s: %s\n", Cyan(title), Yellow(message))
	}
	n.deliver(title, message)
}

// SendError prints and delivers a failure
func (n *Notifier) SendError(title, message string) {
	fmt.Fprintf(Out, "\n%s: %s\n", Red(title), Red(message))
	n.deliver(title, message)
}

func (n *Notifier) deliver(title, message string) {
	if n.sender != nil {
		// desktop delivery is best effort
		_ = n.sender.Send(title, message)
	}
}
