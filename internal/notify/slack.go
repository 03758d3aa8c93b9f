package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hamed0406/homelabmon/internal/domain"
)

// Slack posts alerts to an incoming webhook as one colored attachment.
type Slack struct {
	Webhook string
	Client  *http.Client
}

func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type slackPayload struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields"`
	Ts     int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// stateColor maps a health state to a Slack attachment color.
func stateColor(s domain.HealthState) string {
	switch s {
	case domain.Up:
		return "good"
	case domain.Degraded:
		return "warning"
	default:
		return "danger"
	}
}

func slackMessage(a Alert) slackPayload {
	att := slackAttachment{
		Color: stateColor(a.State),
		Text:  a.Text,
		Fields: []slackField{
			{Title: "Target", Value: string(a.TargetID), Short: true},
			{Title: "State", Value: a.State.String(), Short: true},
		},
	}
	if !a.At.IsZero() {
		att.Ts = a.At.Unix()
	}
	return slackPayload{
		Text:        "*" + a.Title + "*",
		Attachments: []slackAttachment{att},
	}
}

func (s *Slack) Send(ctx context.Context, a Alert) error {
	if s == nil || s.Webhook == "" {
		return errors.New("slack disabled")
	}
	body, err := json.Marshal(slackMessage(a))
	if err != nil {
		return fmt.Errorf("slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("slack %s: %w", a.TargetID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("slack: HTTP %d", resp.StatusCode)
	}
	return nil
}
