package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPRunner starts the generation workflow through a workflow-dispatch
// style endpoint (for example GitHub Actions' workflow_dispatch).
type HTTPRunner struct {
	url        string
	token      string
	ref        string
	httpClient *http.Client
}

var _ Trigger = (*HTTPRunner)(nil)

func NewHTTPRunner(url, token, ref string) *HTTPRunner {
	if ref == "" {
		ref = "main"
	}
	return &HTTPRunner{
		url:   url,
		token: token,
		ref:   ref,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (r *HTTPRunner) Trigger(ctx context.Context, job Job) error {
	if r.url == "" {
		return fmt.Errorf("workflow runner misconfigured: no url")
	}

	body, err := json.Marshal(map[string]any{
		"ref": r.ref,
		"inputs": map[string]string{
			"keyword":      job.Keyword,
			"article_type": job.ArticleType,
			"entry_id":     job.EntryID.String(),
		},
	})
	if err != nil {
		return fmt.Errorf("marshal workflow payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github+json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("trigger workflow: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("workflow error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	return nil
}
