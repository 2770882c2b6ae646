package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	sessionServer string
	sessionToken  string
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions on a running gateway",
}

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a session",
	Run: func(cmd *cobra.Command, args []string) {
		body, err := apiRequest(http.MethodPost, "/session")
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		var resp struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(resp.SessionID)
	},
}

var sessionLogCmd = &cobra.Command{
	Use:   "log <session-id>",
	Short: "Show a session's event log",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		body, err := apiRequest(http.MethodGet, "/session/"+args[0]+"/log")
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		var resp struct {
			Events []struct {
				EventType string         `json:"event_type"`
				Data      map[string]any `json:"data,omitempty"`
				CreatedAt time.Time      `json:"created_at"`
			} `json:"events"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		for _, ev := range resp.Events {
			line := fmt.Sprintf("%s  %s", ev.CreatedAt.Format(time.RFC3339), ev.EventType)
			if len(ev.Data) > 0 {
				data, _ := json.Marshal(ev.Data)
				line += "  " + string(data)
			}
			fmt.Println(line)
		}
	},
}

func init() {
	sessionCmd.PersistentFlags().StringVar(&sessionServer, "server", "http://127.0.0.1:8080", "Gateway base URL")
	sessionCmd.PersistentFlags().StringVar(&sessionToken, "token", "", "Bearer token for the gateway")
	sessionCmd.AddCommand(sessionNewCmd)
	sessionCmd.AddCommand(sessionLogCmd)
	rootCmd.AddCommand(sessionCmd)
}

func apiRequest(method, path string) ([]byte, error) {
	url := strings.TrimRight(sessionServer, "/") + path
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, err
	}
	if sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+sessionToken)
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}
