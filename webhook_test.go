package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func Test_webhook(t *testing.T) {
	trigger := make(chan struct{}, 1)
	wh := &GithubWebhookHandler{
		trigger: trigger,
		secret:  "a1b2c3d4e5",
		log:     slog.Default(),
	}

	body := []byte(`{"action":"created","repository":{"name":"appA_ynh","html_url":"https://github.com/YunoHost-Apps/appA_ynh"}}`)
	signature := wh.computeHMAC(body, wh.secret)

	send := func(t *testing.T, server *httptest.Server, method, event, signature string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(method, server.URL, strings.NewReader(string(body)))
		if err != nil {
			t.Fatalf("Failed to make a request: %v", err)
		}
		req.Header.Set("X-Hub-Signature-256", signature)
		if event != "" {
			req.Header.Set("X-GitHub-Event", event)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("Failed to send request: %v", err)
		}
		return resp
	}

	drained := func() bool {
		select {
		case <-trigger:
			return true
		default:
			return false
		}
	}

	t.Run("validate signature", func(t *testing.T) {

		if !wh.isValidSignature(body, signature) {
			t.Errorf("isValidSignature() expected true")
		}

		invalidSig := wh.computeHMAC(body, "invalid-secret")

		if wh.isValidSignature(body, invalidSig) {
			t.Errorf("isValidSignature() expected false")
		}

		if wh.isValidSignature([]byte{}, "") {
			t.Errorf("isValidSignature() expected false for emtpy signature")
		}
	})

	t.Run("invalid method", func(t *testing.T) {
		server := httptest.NewServer(http.Handler(wh))
		defer server.Close()

		resp := send(t, server, "GET", "repository", signature)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status %v, got %v", http.StatusBadRequest, resp.StatusCode)
		}
		if drained() {
			t.Errorf("run must not be queued")
		}
	})

	t.Run("invalid signature", func(t *testing.T) {
		server := httptest.NewServer(http.Handler(wh))
		defer server.Close()

		resp := send(t, server, "POST", "repository", wh.computeHMAC(body, "invalid-secret"))
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status %v, got %v", http.StatusBadRequest, resp.StatusCode)
		}
		if drained() {
			t.Errorf("run must not be queued")
		}
	})

	t.Run("ping event", func(t *testing.T) {
		server := httptest.NewServer(http.Handler(wh))
		defer server.Close()

		resp := send(t, server, "POST", "ping", signature)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status %v, got %v", http.StatusOK, resp.StatusCode)
		}

		reply, _ := io.ReadAll(resp.Body)
		if string(reply) != "pong" {
			t.Errorf("Expected pong for ping event")
		}
		if drained() {
			t.Errorf("run must not be queued")
		}
	})

	t.Run("repository event", func(t *testing.T) {
		server := httptest.NewServer(http.Handler(wh))
		defer server.Close()

		// 2nd event is coalesced with the queued one
		for i := 0; i < 2; i++ {
			resp := send(t, server, "POST", "repository", signature)
			if resp.StatusCode != http.StatusOK {
				t.Errorf("Expected status %v, got %v", http.StatusOK, resp.StatusCode)
			}
		}
		if !drained() {
			t.Errorf("run must be queued")
		}
		if drained() {
			t.Errorf("only one run must be queued")
		}
	})

	t.Run("other event", func(t *testing.T) {
		server := httptest.NewServer(http.Handler(wh))
		defer server.Close()

		resp := send(t, server, "POST", "issues", signature)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status %v, got %v", http.StatusOK, resp.StatusCode)
		}
		if drained() {
			t.Errorf("run must not be queued")
		}
	})
}
