package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/okrsync/internal/initiative"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

// maxDigestLines caps how many changes one digest lists.
const maxDigestLines = 20

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// NotifyChanges posts a digest of snapshot changes to the channel.
func (p *Poster) NotifyChanges(ctx context.Context, changes []initiative.Change) error {
	if len(changes) == 0 {
		return nil
	}
	text := formatDigest(changes)

	ts, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
		},
	})
	if err != nil {
		return err
	}

	p.logger.Info("posted change digest to slack", "ts", ts, "changes", len(changes))
	return nil
}

func (p *Poster) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

func formatDigest(changes []initiative.Change) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*Initiative updates: %d*\n", len(changes))
	for i, c := range changes {
		if i == maxDigestLines {
			fmt.Fprintf(&sb, "_…and %d more_\n", len(changes)-maxDigestLines)
			break
		}
		it := c.After
		switch c.Kind {
		case initiative.ChangeAdded:
			fmt.Fprintf(&sb, "• :new: *%s* (%s, %s%%)", c.Identity, it.Status.Label(), it.Progress)
		case initiative.ChangeRemoved:
			fmt.Fprintf(&sb, "• :wastebasket: *%s* removed", c.Identity)
		case initiative.ChangeUpdated:
			fmt.Fprintf(&sb, "• %s *%s* now %s, %s%% (%s)",
				statusEmoji(it.Status), c.Identity, it.Status.Label(), it.Progress, strings.Join(c.Fields, ", "))
		}
		if c.Kind != initiative.ChangeRemoved && it.HasBlockers() {
			fmt.Fprintf(&sb, "\n   Blockers: %s", it.Blockers)
		}
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

func statusEmoji(s initiative.Status) string {
	switch s {
	case initiative.StatusOnTrack:
		return ":large_green_circle:"
	case initiative.StatusAtRisk:
		return ":large_yellow_circle:"
	case initiative.StatusBlocked:
		return ":red_circle:"
	}
	return ":white_circle:"
}
