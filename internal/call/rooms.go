package call

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// RoomProvisioner creates meeting rooms on a Daily-compatible REST API.
// Without an API key, or when the API is unreachable, it falls back to a
// fabricated room URL under the configured domain so the rest of the
// flow stays exercisable.
type RoomProvisioner struct {
	apiKey string
	apiURL string
	domain string
	client *http.Client
	now    func() time.Time
}

func NewRoomProvisioner(apiKey, apiURL, domain string) *RoomProvisioner {
	return &RoomProvisioner{
		apiKey: apiKey,
		apiURL: apiURL,
		domain: domain,
		client: &http.Client{Timeout: 15 * time.Second},
		now:    time.Now,
	}
}

type roomResponse struct {
	URL string `json:"url"`
}

// CreateRoom provisions a fresh room and returns its join URL.
func (p *RoomProvisioner) CreateRoom(ctx context.Context) (string, error) {
	if p.apiKey == "" {
		return p.fabricateURL(), nil
	}

	payload, err := json.Marshal(map[string]any{
		"properties": map[string]any{
			"enable_screenshare": true,
			"start_audio_off":    false,
			"start_video_off":    true,
			"exp":                p.now().Add(2 * time.Hour).Unix(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal room request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/rooms", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build room request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		log.Printf("call: room API unreachable, fabricating URL: %v", err)
		return p.fabricateURL(), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Printf("call: room API returned %d: %s", resp.StatusCode, body)
		return p.fabricateURL(), nil
	}

	var room roomResponse
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return "", fmt.Errorf("decode room response: %w", err)
	}
	if room.URL == "" {
		return "", fmt.Errorf("room response missing url")
	}
	return room.URL, nil
}

func (p *RoomProvisioner) fabricateURL() string {
	return fmt.Sprintf("https://%s.daily.co/co-narrator-%d", p.domain, p.now().UnixMilli())
}
