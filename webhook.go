package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

type GitHubEvent struct {
	// The action that was performed. Example: created, renamed or transferred.
	Action string `json:"action"`

	Repository struct {
		Name  string `json:"name"`
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
		HtmlURL string `json:"html_url"`
	} `json:"repository"`
}

// GithubWebhookHandler queues a synchronisation run when a repository
// of the upstream organization is created or updated.
type GithubWebhookHandler struct {
	trigger chan<- struct{}
	secret  string
	log     *slog.Logger
}

func (wh *GithubWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		wh.log.Error("cannot read request body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !wh.isValidSignature(body, r.Header.Get("X-Hub-Signature-256")) {
		wh.log.Error("invalid signature")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event := r.Header.Get("X-GitHub-Event")

	var payload GitHubEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		wh.log.Error("cannot unmarshal json payload", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// The ping event is a confirmation from GitHub that
	// the webhook is configured correctly.
	if event == "ping" {
		w.Write([]byte("pong"))
		return
	}

	// only process 'repository' and 'push' events but return ok for all
	// events to mark successful delivery
	switch event {
	case "repository":
		wh.log.Debug("repository event received", "repo", payload.Repository.HtmlURL, "action", payload.Action)
		wh.queueRun()
	case "push":
		wh.log.Debug("push event received", "repo", payload.Repository.HtmlURL)
		wh.queueRun()
	}
}

// queueRun requests a synchronisation run, request is dropped if a run
// is already queued
func (wh *GithubWebhookHandler) queueRun() {
	select {
	case wh.trigger <- struct{}{}:
	default:
	}
}

func (wh *GithubWebhookHandler) isValidSignature(message []byte, signature string) bool {
	return hmac.Equal([]byte(signature), []byte(wh.computeHMAC(message, wh.secret)))
}

func (wh *GithubWebhookHandler) computeHMAC(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))

	if _, err := mac.Write(message); err != nil {
		wh.log.Error("cannot compute hmac for request", "error", err)
		return ""
	}

	// GH adds `sha256=` prefix in header value
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
