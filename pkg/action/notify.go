package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/monoco-io/fabric/pkg/log"
	"github.com/monoco-io/fabric/pkg/types"
)

// Channel delivers a rendered notification somewhere
type Channel interface {
	// Name returns the channel identifier used in configuration
	Name() string

	// Send delivers the message
	Send(ctx context.Context, subject, body string) error
}

var (
	channelsMu sync.RWMutex
	channels   = map[string]Channel{}
)

// RegisterChannel makes a notification channel available by name.
// Registering the same name twice replaces the earlier channel.
func RegisterChannel(ch Channel) {
	channelsMu.Lock()
	defer channelsMu.Unlock()
	channels[ch.Name()] = ch
}

// GetChannel looks up a registered channel
func GetChannel(name string) (Channel, bool) {
	channelsMu.RLock()
	defer channelsMu.RUnlock()
	ch, ok := channels[name]
	return ch, ok
}

// WebhookChannel POSTs notifications as JSON to a fixed URL
type WebhookChannel struct {
	name   string
	url    string
	client *http.Client
}

// NewWebhookChannel creates a webhook channel posting to url
func NewWebhookChannel(name, url string) *WebhookChannel {
	return &WebhookChannel{
		name: name,
		url:  url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the channel identifier
func (c *WebhookChannel) Name() string {
	return c.name
}

// Send POSTs the notification. Any response below 400 counts as
// delivered.
func (c *WebhookChannel) Send(ctx context.Context, subject, body string) error {
	payload, err := json.Marshal(map[string]string{
		"subject": subject,
		"body":    body,
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook notification rejected with status %d", resp.StatusCode)
	}
	return nil
}

// FileChannel appends notifications to a log file, one line each
type FileChannel struct {
	name string
	path string
	mu   sync.Mutex
}

// NewFileChannel creates a file channel appending to path
func NewFileChannel(name, path string) *FileChannel {
	return &FileChannel{name: name, path: path}
}

// Name returns the channel identifier
func (c *FileChannel) Name() string {
	return c.name
}

// Send appends one timestamped line
func (c *FileChannel) Send(ctx context.Context, subject, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open notification file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s %s: %s\n", time.Now().UTC().Format(time.RFC3339), subject, body)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to append notification: %w", err)
	}
	return nil
}

// ConsoleChannel writes notifications to the structured log
type ConsoleChannel struct {
	name   string
	logger zerolog.Logger
}

// NewConsoleChannel creates a console channel
func NewConsoleChannel(name string) *ConsoleChannel {
	return &ConsoleChannel{
		name:   name,
		logger: log.WithComponent("notify"),
	}
}

// Name returns the channel identifier
func (c *ConsoleChannel) Name() string {
	return c.name
}

// Send logs the notification at info level
func (c *ConsoleChannel) Send(ctx context.Context, subject, body string) error {
	c.logger.Info().
		Str("subject", subject).
		Str("body", body).
		Msg("Notification")
	return nil
}

// SendNotification renders subject/body templates against the event
// and delivers them through a named channel.
type SendNotification struct {
	channel         string
	subjectTemplate string
	bodyTemplate    string
	logger          zerolog.Logger
}

// NewSendNotification creates a notification action targeting the
// named channel
func NewSendNotification(channel, subjectTemplate, bodyTemplate string) *SendNotification {
	return &SendNotification{
		channel:         channel,
		subjectTemplate: subjectTemplate,
		bodyTemplate:    bodyTemplate,
		logger:          log.WithComponent("action"),
	}
}

// Name returns the action name
func (a *SendNotification) Name() string {
	return "send-notification"
}

// CanExecute requires the target channel to be registered
func (a *SendNotification) CanExecute(ctx context.Context, event *types.Event) (bool, error) {
	_, ok := GetChannel(a.channel)
	return ok, nil
}

// Execute renders the templates and sends through the channel
func (a *SendNotification) Execute(ctx context.Context, event *types.Event) (*types.ActionResult, error) {
	ch, ok := GetChannel(a.channel)
	if !ok {
		return FailureResult("notification channel not registered: " + a.channel), nil
	}

	subject := ExpandTemplate(a.subjectTemplate, event)
	body := ExpandTemplate(a.bodyTemplate, event)
	if err := ch.Send(ctx, subject, body); err != nil {
		return nil, err
	}

	a.logger.Debug().
		Str("channel", a.channel).
		Str("subject", subject).
		Msg("Notification sent")
	return SuccessResult(map[string]any{"channel": a.channel, "subject": subject}), nil
}
