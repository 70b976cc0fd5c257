// Command tick fires queue ticks against a running server. It is meant to
// be run from cron or a systemd timer; each invocation advances at most
// count units of work.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"doc-translator/internal/config"
)

func main() {
	url := flag.String("url", "http://localhost:8080/internal/tick", "tick endpoint URL")
	secret := flag.String("secret", os.Getenv(config.EnvTickSecret), "tick shared secret")
	count := flag.Int("n", 1, "number of ticks to fire")
	interval := flag.Duration("interval", time.Second, "pause between ticks")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintf(os.Stderr, "no tick secret (pass -secret or set %s)\n", config.EnvTickSecret)
		os.Exit(2)
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	for i := 0; i < *count; i++ {
		if i > 0 {
			time.Sleep(*interval)
		}
		body, err := fire(client, *url, *secret)
		if err != nil {
			fmt.Fprintln(os.Stderr, "tick failed:", err)
			os.Exit(1)
		}
		fmt.Println(body)
	}
}

func fire(client *http.Client, url, secret string) (string, error) {
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+secret)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return strings.TrimSpace(string(body)), nil
}
