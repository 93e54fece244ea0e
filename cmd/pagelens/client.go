package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pagelens-ai/pagelens/pkg/jsonutil"
)

// serverBaseURL turns a listen address into a reachable base URL. The cache,
// status, and history commands talk to a running serve process because the
// result cache and limiter live only in that process's memory.
func serverBaseURL(server, listen string) string {
	if server != "" {
		return strings.TrimSuffix(server, "/")
	}
	addr := listen
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

func apiCall(method, url, apiKey string, out any) error {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if jsonutil.Unmarshal(body, &e) == nil && e.Error.Message != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error.Message)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return jsonutil.Unmarshal(body, out)
}
