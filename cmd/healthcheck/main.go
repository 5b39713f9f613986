// Command healthcheck exits 0 when the dorametrics API on DORA_LISTEN_ADDR
// reports itself healthy. It is meant for container HEALTHCHECK directives.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	httphandler "github.com/ericfisherdev/dorametrics/internal/adapter/driving/http"
	"github.com/ericfisherdev/dorametrics/internal/config"
)

const timeout = 2 * time.Second

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := check(ctx, &http.Client{Timeout: timeout}, healthURL(os.Getenv("DORA_LISTEN_ADDR")))
	if err != nil {
		fmt.Fprintln(os.Stderr, "unhealthy:", err)
		os.Exit(1)
	}
}

// check requires a 200 answer whose body reports the serving status.
func check(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s answered %d", url, resp.StatusCode)
	}

	var body httphandler.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	if body.Status != httphandler.HealthStatusOK {
		return fmt.Errorf("status %q", body.Status)
	}
	return nil
}

// healthURL builds the health endpoint URL from the API listen address. The
// API binds all interfaces inside a container, so those are dialed on loopback.
func healthURL(listenAddr string) string {
	if listenAddr == "" {
		listenAddr = config.DefaultListenAddr
	}

	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		host, port, _ = net.SplitHostPort(config.DefaultListenAddr)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}

	return "http://" + net.JoinHostPort(host, port) + httphandler.HealthPath
}
