package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const defaultServerURL = "http://localhost:8080"

// clientFlags are shared by the commands that talk to a running server.
type clientFlags struct {
	server string
	token  string
}

func (f *clientFlags) register(cmd interface {
	StringVar(p *string, name, value, usage string)
}) {
	cmd.StringVar(&f.server, "server", "", "Server base URL (defaults to PAINTING_SERVER env var or "+defaultServerURL+")")
	cmd.StringVar(&f.token, "token", "", "Bearer token (defaults to PAINTING_TOKEN env var)")
}

// resolve fills unset flags from the environment.
func (f *clientFlags) resolve() (serverURL, token string, err error) {
	serverURL = firstNonEmpty(f.server, os.Getenv("PAINTING_SERVER"), defaultServerURL)
	token = firstNonEmpty(f.token, os.Getenv("PAINTING_TOKEN"))
	if token == "" {
		return "", "", fmt.Errorf("--token or PAINTING_TOKEN is required")
	}
	return strings.TrimRight(serverURL, "/"), token, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// apiError reads the {"error": "..."} body of a failed response.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil {
		msg = firstNonEmpty(payload.Message, payload.Error, msg)
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
