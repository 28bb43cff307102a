package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// WebhookTestConfig holds the settings for one manual webhook delivery
type WebhookTestConfig struct {
	HookbotURL    string
	WebhookPath   string
	WebhookSecret string
	Room          string
	EventType     string
	FixturePath   string
}

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run ./scripts <event type> <payload.json> [hookbot url]")
		fmt.Println("Example: go run ./scripts \"Pipeline Hook\" internal/gitlab/testdata/pipeline.json")
		fmt.Println("Environment: WEBHOOK_SECRET (required), ROOM (required), WEBHOOK_PATH (default /webhooks)")
		os.Exit(1)
	}

	hookbotURL := "http://localhost:3000"
	if len(os.Args) > 3 {
		hookbotURL = os.Args[3]
	}

	config := WebhookTestConfig{
		HookbotURL:    hookbotURL,
		WebhookPath:   envOr("WEBHOOK_PATH", "/webhooks"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		Room:          os.Getenv("ROOM"),
		EventType:     os.Args[1],
		FixturePath:   os.Args[2],
	}
	if config.WebhookSecret == "" || config.Room == "" {
		fmt.Println("❌ WEBHOOK_SECRET and ROOM must be set")
		os.Exit(1)
	}

	fmt.Printf("🚀 Sending test webhook\n\n")
	fmt.Printf("📋 Configuration:\n")
	fmt.Printf("   🔗 Hookbot URL: %s%s\n", config.HookbotURL, config.WebhookPath)
	fmt.Printf("   🏠 Room: %s\n", config.Room)
	fmt.Printf("   ⚡ Event: %s\n", config.EventType)
	fmt.Printf("   📄 Payload: %s\n\n", config.FixturePath)

	if err := sendWebhook(config); err != nil {
		fmt.Printf("❌ Webhook test failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Webhook accepted, check the room for the message\n")
}

func sendWebhook(config WebhookTestConfig) error {
	payload, err := os.ReadFile(config.FixturePath)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	target := fmt.Sprintf("%s%s?room=%s", config.HookbotURL, config.WebhookPath, url.QueryEscape(config.Room))
	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "GitLab/17.0.0")
	req.Header.Set("X-Gitlab-Event", config.EventType)
	req.Header.Set("X-Gitlab-Token", config.WebhookSecret)
	req.Header.Set("X-Gitlab-Event-UUID", fmt.Sprintf("test-uuid-%d", time.Now().Unix()))

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	fmt.Printf("📨 Response Status: %s\n", resp.Status)
	fmt.Printf("📄 Response Body: %s\n", string(body))

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
