// Package console renders operator-facing output for the watcher.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/profile-watch/pwatch/internal/snapshot"
)

const (
	bannerTitle            = "Roblox Profile Watcher"
	bannerAuthorFormat     = "By %s"
	bannerNotice           = "Updates are ONLY sent whilst the watcher is running!"
	trackingFormat         = "Now tracking %s (@%s)"
	watchingFormat         = "🔍 Watching Roblox user ID: %s every %s..."
	changeDetectedFormat   = "⚠️ Change detected at %s!"
	noChangesFormat        = "%s — No changes."
	webhookSkippedFormat   = "⚠️ %s; Discord webhook messages will be skipped."
	resolutionFailedFormat = "❌ Could not resolve %q to a user ID."
	targetPrompt           = "Enter Roblox username or user ID to monitor: "
	clockLayout            = "15:04:05"
	errMessageReadTarget   = "read target"
	errMessageEmptyTarget  = "no target entered"

	colorAccent  = "#00AAFF"
	colorCyan    = "#22D3EE"
	colorWarning = "#F59E0B"
	colorError   = "#EF4444"
	colorDim     = "#6B7280"
)

// ErrEmptyTarget is returned by PromptTarget when the operator enters nothing.
var ErrEmptyTarget = errors.New(errMessageEmptyTarget)

// Console writes styled status lines. It is safe for concurrent use.
type Console struct {
	writer io.Writer
	now    func() time.Time
	mutex  sync.Mutex

	panelStyle   lipgloss.Style
	titleStyle   lipgloss.Style
	infoStyle    lipgloss.Style
	warningStyle lipgloss.Style
	errorStyle   lipgloss.Style
	dimStyle     lipgloss.Style
}

// New constructs a Console writing to writer. The color profile follows the writer.
func New(writer io.Writer, now func() time.Time) *Console {
	if now == nil {
		now = time.Now
	}
	renderer := lipgloss.NewRenderer(writer)
	return &Console{
		writer: writer,
		now:    now,
		panelStyle: renderer.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorAccent)).
			Padding(0, 1),
		titleStyle:   renderer.NewStyle().Bold(true).Foreground(lipgloss.Color(colorCyan)),
		infoStyle:    renderer.NewStyle().Foreground(lipgloss.Color(colorAccent)),
		warningStyle: renderer.NewStyle().Foreground(lipgloss.Color(colorWarning)),
		errorStyle:   renderer.NewStyle().Foreground(lipgloss.Color(colorError)),
		dimStyle:     renderer.NewStyle().Foreground(lipgloss.Color(colorDim)),
	}
}

// Banner prints the startup banner naming the webhook identity.
func (console *Console) Banner(webhookName string) {
	content := console.titleStyle.Render(bannerTitle) + "\n" + fmt.Sprintf(bannerAuthorFormat, webhookName)
	console.println(console.panelStyle.Render(content))
	console.println(bannerNotice)
}

// Watching announces the resolved account and polling interval.
func (console *Console) Watching(accountID string, interval time.Duration) {
	console.println(console.infoStyle.Render(fmt.Sprintf(watchingFormat, accountID, interval)))
}

// WebhookSkipped reports why notifications are disabled.
func (console *Console) WebhookSkipped(reason string) {
	console.println(console.warningStyle.Render(fmt.Sprintf(webhookSkippedFormat, reason)))
}

// ResolutionFailed reports a target that could not be resolved.
func (console *Console) ResolutionFailed(target string) {
	console.println(console.errorStyle.Render(fmt.Sprintf(resolutionFailedFormat, target)))
}

// Tracking prints the "now tracking" panel after the first successful fetch.
func (console *Console) Tracking(profile snapshot.Profile) {
	content := console.titleStyle.Render(fmt.Sprintf(trackingFormat, profile.DisplayName, profile.UserName))
	console.println(console.panelStyle.Render(content))
}

// ChangeDetected prints the change line for a tick that differs from the baseline.
func (console *Console) ChangeDetected(snapshot.Delta) {
	console.println(console.warningStyle.Render(fmt.Sprintf(changeDetectedFormat, console.clock())))
}

// NoChanges prints the quiet line for an unchanged tick.
func (console *Console) NoChanges() {
	console.println(console.dimStyle.Render(fmt.Sprintf(noChangesFormat, console.clock())))
}

// PromptTarget asks the operator for the account to track and returns the trimmed answer.
func (console *Console) PromptTarget(reader io.Reader) (string, error) {
	console.mutex.Lock()
	fmt.Fprint(console.writer, targetPrompt)
	console.mutex.Unlock()

	line, err := bufio.NewReader(reader).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%s: %w", errMessageReadTarget, err)
	}
	target := strings.TrimSpace(line)
	if target == "" {
		return "", ErrEmptyTarget
	}
	return target, nil
}

func (console *Console) clock() string {
	return console.now().Format(clockLayout)
}

func (console *Console) println(line string) {
	console.mutex.Lock()
	defer console.mutex.Unlock()
	fmt.Fprintln(console.writer, line)
}
