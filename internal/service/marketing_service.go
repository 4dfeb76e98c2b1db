package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MarketingForwarder POSTs tracked funnel events to the webhook configured for their event name.
type MarketingForwarder struct {
	webhooks map[string]string
	client   *http.Client
	log      *zap.Logger
}

// Event names match case-insensitively; viper lowercases map keys.
func NewMarketingForwarder(webhooks map[string]string, log *zap.Logger) *MarketingForwarder {
	byName := make(map[string]string, len(webhooks))
	for name, url := range webhooks {
		byName[strings.ToLower(name)] = url
	}
	return &MarketingForwarder{
		webhooks: byName,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log.Named("marketing"),
	}
}

// Forward returns false when no webhook is configured for the event name.
func (f *MarketingForwarder) Forward(ctx context.Context, eventName string, payload json.RawMessage) (bool, error) {
	url := f.webhooks[strings.ToLower(eventName)]
	if url == "" {
		return false, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("forward %s: %w", eventName, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("forward %s: webhook returned %d", eventName, resp.StatusCode)
	}
	f.log.Debug("marketing event forwarded", zap.String("event_name", eventName))
	return true, nil
}
