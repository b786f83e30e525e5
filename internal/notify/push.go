package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const sinkPush = "push"

// PushSink sends device notifications through an FCM-compatible HTTP gateway.
type PushSink struct {
	client   *resty.Client
	endpoint string
}

type pushRequest struct {
	To           string            `json:"to"`
	Notification pushNotification  `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type pushResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		Error string `json:"error"`
	} `json:"results"`
}

// NewPushSink constructs a push sink. serverKey is sent as "Authorization: key=<serverKey>".
func NewPushSink(endpoint, serverKey string, timeout time.Duration) (*PushSink, error) {
	if endpoint == "" {
		return nil, errors.New("push sink: empty endpoint")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if serverKey != "" {
		client.SetHeader("Authorization", "key="+serverKey)
	}
	return &PushSink{client: client, endpoint: endpoint}, nil
}

// Send posts the notification to the owner's device token.
func (s *PushSink) Send(ctx context.Context, msg Message) error {
	if s == nil || s.client == nil {
		return &DeliveryError{Sink: sinkPush, Err: errors.New("nil sink")}
	}
	if msg.Target == "" {
		return nil
	}
	var result pushResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(pushRequest{
			To:           msg.Target,
			Notification: pushNotification{Title: msg.Title, Body: msg.Body},
			Data: map[string]string{
				"room_id": strconv.FormatInt(msg.RoomID, 10),
				"kind":    msg.Kind,
			},
		}).
		SetResult(&result).
		Post(s.endpoint)
	if err != nil {
		return &DeliveryError{Sink: sinkPush, Err: err}
	}
	if resp.IsError() {
		return &DeliveryError{Sink: sinkPush, Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	if result.Failure > 0 {
		reason := "rejected"
		if len(result.Results) > 0 && result.Results[0].Error != "" {
			reason = result.Results[0].Error
		}
		return &DeliveryError{Sink: sinkPush, Err: errors.New(reason)}
	}
	return nil
}
