package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pairmux/internal/config"
)

const userAgent = "Pairmux-Go/0.1.0"

// Service defines the notification surface exposed to session components.
type Service interface {
	NotifySessionStarted(ctx context.Context, sessionKey string) error
	NotifyMergeCompleted(ctx context.Context, sessionKey, outputFile string) error
	NotifyMergeFailed(ctx context.Context, sessionKey string, err error) error
	NotifyCaptureProcessed(ctx context.Context, captureFile, outputFile string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When notifications are disabled or no topic is configured, a noop
// implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if !cfg.Notifications.Enabled || topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// NewNop returns a service that silently drops every notification.
func NewNop() Service {
	return noopService{}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifySessionStarted(ctx context.Context, sessionKey string) error {
	sessionKey = strings.TrimSpace(sessionKey)
	data := payload{
		title:   "Pairmux - Session Started",
		message: fmt.Sprintf("New fragment pair detected: %s", sessionKey),
		tags:    []string{"pairmux", "session", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyMergeCompleted(ctx context.Context, sessionKey, outputFile string) error {
	sessionKey = strings.TrimSpace(sessionKey)
	outputFile = strings.TrimSpace(outputFile)
	message := fmt.Sprintf("Merge complete: %s", sessionKey)
	if outputFile != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, outputFile)
	}
	data := payload{
		title:    "Pairmux - Merge Complete",
		message:  message,
		tags:     []string{"pairmux", "merge", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyMergeFailed(ctx context.Context, sessionKey string, err error) error {
	sessionKey = strings.TrimSpace(sessionKey)
	reason := "unknown"
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	data := payload{
		title:    "Pairmux - Merge Failed",
		message:  fmt.Sprintf("Merge failed: %s\n%s", sessionKey, reason),
		tags:     []string{"pairmux", "merge", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyCaptureProcessed(ctx context.Context, captureFile, outputFile string) error {
	captureFile = strings.TrimSpace(captureFile)
	outputFile = strings.TrimSpace(outputFile)
	message := fmt.Sprintf("Capture processed: %s", captureFile)
	if outputFile != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, outputFile)
	}
	data := payload{
		title:   "Pairmux - Capture Processed",
		message: message,
		tags:    []string{"pairmux", "capture", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Pairmux - Error",
		message:  builder.String(),
		tags:     []string{"pairmux", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Pairmux - Test",
		message:  "Notification system test",
		tags:     []string{"pairmux", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifySessionStarted(context.Context, string) error            { return nil }
func (noopService) NotifyMergeCompleted(context.Context, string, string) error    { return nil }
func (noopService) NotifyMergeFailed(context.Context, string, error) error        { return nil }
func (noopService) NotifyCaptureProcessed(context.Context, string, string) error  { return nil }
func (noopService) NotifyError(context.Context, error, string) error              { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
