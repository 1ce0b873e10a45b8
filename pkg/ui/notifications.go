package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"xscraper/pkg/config"
)

// NotificationSender shows a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// commandSender runs a platform notifier command
type commandSender func(title, message string) *exec.Cmd

func (c commandSender) Send(title, message string) error {
	return c(title, message).Run()
}

func notifySend(title, message string) *exec.Cmd {
	return exec.Command("notify-send", "--app-name=xscraper", title, message)
}

func osascript(title, message string) *exec.Cmd {
	return exec.Command("osascript", "-e",
		fmt.Sprintf(`display notification %s with title %s`, quoteAppleScript(message), quoteAppleScript(title)))
}

const toastScript = `
[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
$doc.LoadXml('<toast><visual><binding template="ToastText02"><text id="1">%s</text><text id="2">%s</text></binding></visual></toast>')
[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("xscraper").Show([Windows.UI.Notifications.ToastNotification]::new($doc))
`

func powershellToast(title, message string) *exec.Cmd {
	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command",
		fmt.Sprintf(toastScript, escapeToast(title), escapeToast(message)))
}

func quoteAppleScript(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

// escapeToast escapes XML and the single quotes of the PowerShell literal
var escapeToast = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "'", "''").Replace

var platformSenders = map[string]commandSender{
	"linux":   notifySend,
	"darwin":  osascript,
	"windows": powershellToast,
}

// Notifier prints run notices and mirrors the enabled ones to the desktop
type Notifier struct {
	sender   NotificationSender
	settings config.NotificationConfig
}

// NewNotifier uses the current platform's notifier command, if there is one
func NewNotifier(settings config.NotificationConfig) *Notifier {
	var sender NotificationSender
	if s, ok := platformSenders[runtime.GOOS]; ok {
		sender = s
	}
	return NewNotifierWithSender(sender, settings)
}

// NewNotifierWithSender uses sender for desktop notices; sender may be nil
func NewNotifierWithSender(sender NotificationSender, settings config.NotificationConfig) *Notifier {
	if settings.NotificationType == "none" {
		settings.Enabled = false
	}
	return &Notifier{sender: sender, settings: settings}
}

// notify prints the notice and, when wanted, sends it to the desktop.
// Send failures are ignored: a missing notify-send must not fail a run.
func (n *Notifier) notify(wanted bool, title, message string, colorTitle, colorMessage func(string) string) {
	printf("\n%s: %s\n", colorTitle(title), colorMessage(message))
	if !wanted || n.sender == nil || !n.settings.Enabled || n.settings.NotificationType == "terminal" {
		return
	}
	_ = n.sender.Send(title, message)
}

// SendNotification is always mirrored when desktop notices are enabled
func (n *Notifier) SendNotification(title, message string) {
	n.notify(true, title, message, Cyan, Yellow)
}

func (n *Notifier) SendError(title, message string) {
	n.notify(n.settings.OnError, title, message, Red, Red)
}

func (n *Notifier) SendSuccess(title, message string) {
	n.notify(n.settings.OnComplete, title, message, Green, Green)
}

// SendChange reports a non-empty delta
func (n *Notifier) SendChange(subject string, added, removed int) {
	n.notify(n.settings.OnChange, "CHANGES DETECTED", fmt.Sprintf("%s: +%d / -%d", subject, added, removed), Magenta, Yellow)
}
