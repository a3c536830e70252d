package openaicompat

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"retrieval-agent/internal/application/port/output"
)

// loggingTransport logs every request to the model endpoint. Headers are not
// logged since they carry the api key.
type loggingTransport struct {
	base   http.RoundTripper
	logger output.LoggerPort
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body map[string]any
	if req.Body != nil {
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(raw))
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &body)
		}
	}

	t.logger.Debug("HTTP Request",
		"method", req.Method,
		"url", req.URL.String(),
		"model", body["model"],
		"messages", messageCount(body),
	)

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Warn("HTTP Request failed", "url", req.URL.String(), "error", err)
		return nil, err
	}

	t.logger.Debug("HTTP Response",
		"status", resp.Status,
		"statusCode", resp.StatusCode,
		"duration", time.Since(start),
	)
	return resp, nil
}

func messageCount(body map[string]any) int {
	msgs, _ := body["messages"].([]any)
	return len(msgs)
}
