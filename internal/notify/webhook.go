package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const sinkWebhook = "webhook"

// WebhookSink posts rendered alerts to an ops chat webhook (DingTalk/WeCom text payload).
type WebhookSink struct {
	url      string
	client   *resty.Client
	template *Template
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookSink constructs a webhook sink.
func NewWebhookSink(url string, template *Template) (*WebhookSink, error) {
	if url == "" {
		return nil, errors.New("webhook sink: empty url")
	}
	if template == nil {
		tpl, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = tpl
	}
	return &WebhookSink{
		url:      url,
		client:   resty.New().SetTimeout(10 * time.Second).SetHeader("Content-Type", "application/json"),
		template: template,
	}, nil
}

// Send renders the message and posts it.
func (s *WebhookSink) Send(ctx context.Context, msg Message) error {
	if s == nil || s.url == "" {
		return &DeliveryError{Sink: sinkWebhook, Err: errors.New("empty url")}
	}
	content, err := s.template.Render(templateDataFor(msg))
	if err != nil {
		return &DeliveryError{Sink: sinkWebhook, Err: err}
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(webhookPayload{MsgType: "text", Text: webhookText{Content: content}}).
		Post(s.url)
	if err != nil {
		return &DeliveryError{Sink: sinkWebhook, Err: err}
	}
	if resp.StatusCode() >= 300 {
		return &DeliveryError{Sink: sinkWebhook, Err: fmt.Errorf("non-2xx status %d", resp.StatusCode())}
	}
	return nil
}
