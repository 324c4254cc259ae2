package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
)

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	raw, _ := reader.ReadString('\n')
	return strings.TrimSpace(raw)
}

func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	adminKey := os.Getenv("ADMIN_API_KEY")

	reader := bufio.NewReader(os.Stdin)
	raw := prompt(reader, "Endpoint URL to monitor (e.g., https://api.example.com/v1/markets): ")
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		fmt.Println("Invalid URL.")
		return
	}

	method := strings.ToUpper(prompt(reader, "HTTP method [GET]: "))
	if method == "" {
		method = http.MethodGet
	}
	scoped := strings.EqualFold(prompt(reader, "Append ?exchange=<tenant> per tenant? [y/N]: "), "y")
	token := strings.EqualFold(prompt(reader, "Requires a bearer token? [y/N]: "), "y")

	body, _ := json.Marshal(map[string]any{
		"url":            raw,
		"method":         method,
		"tenant_scoped":  scoped,
		"token_required": token,
	})

	req, err := http.NewRequest(http.MethodPost, api+"/api/endpoints", bytes.NewReader(body))
	if err != nil {
		fmt.Println("Error building request:", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if adminKey != "" {
		req.Header.Set("X-API-Key", adminKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("Error contacting API:", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		fmt.Println("Registered! The next check cycle will probe it.")
	} else {
		fmt.Println("API returned status:", resp.Status)
	}
}
