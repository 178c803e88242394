package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"clipvault/pkg/config"
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
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("clipvault").Show($toast)
	`, xmlEscape(title), xmlEscape(message))

	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

func xmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;").Replace(s)
}

// PlatformSender returns the desktop sender for the current OS, or nil
func PlatformSender() NotificationSender {
	switch runtime.GOOS {
	case "linux":
		return &LinuxNotificationSender{}
	case "darwin":
		return &MacOSNotificationSender{}
	case "windows":
		return &WindowsNotificationSender{}
	default:
		return nil
	}
}

// Notifier routes run events to the terminal and, when configured, the desktop
type Notifier struct {
	cfg    config.NotificationConfig
	sender NotificationSender
}

// NewNotifier creates a Notifier for the notifications section
func NewNotifier(cfg config.NotificationConfig) *Notifier {
	n := &Notifier{cfg: cfg}
	if strings.EqualFold(cfg.NotificationType, "desktop") {
		n.sender = PlatformSender()
	}
	return n
}

// SetSender replaces the desktop sender
func (n *Notifier) SetSender(s NotificationSender) {
	n.sender = s
}

func (n *Notifier) active() bool {
	return n.cfg.Enabled && !strings.EqualFold(n.cfg.NotificationType, "none")
}

func (n *Notifier) desktop(title, message string) {
	if n.sender != nil {
		// best effort; a missing notify-send must not fail the run
		_ = n.sender.Send(title, message)
	}
}

// Accepted announces an accepted invite code
func (n *Notifier) Accepted(code string) {
	if !n.active() || !n.cfg.OnAccepted {
		return
	}
	writeLine(fmt.Sprintf("\n%s: %s", Green("Code accepted"), Yellow(code)))
	n.desktop("clipvault: code accepted", code)
}

// Complete announces the end of a run
func (n *Notifier) Complete(title, message string) {
	if !n.active() || !n.cfg.OnComplete {
		return
	}
	writeLine(fmt.Sprintf("\n%s: %s", Cyan(title), Yellow(message)))
	n.desktop(title, message)
}

// Error announces a run-ending failure
func (n *Notifier) Error(title string, err error) {
	if !n.active() || !n.cfg.OnError || err == nil {
		return
	}
	writeLine(fmt.Sprintf("\n%s: %s", Red(title), Red(err.Error())))
	n.desktop(title, err.Error())
}
