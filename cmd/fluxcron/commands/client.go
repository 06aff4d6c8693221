package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// apiError mirrors gateway.errorResponse.
type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// client is a thin HTTP client over the cron gateway's JSON API.
type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func newClientFromFlags(cmd *cobra.Command) (*client, error) {
	addr, err := cmd.Root().PersistentFlags().GetString("server")
	if err != nil {
		return nil, err
	}
	token, _ := cmd.Root().PersistentFlags().GetString("token")
	return &client{
		baseURL: addr,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (c *client) do(method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s %s: %w (is the server running? see `fluxcron serve`)", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("%s", apiErr.Error.Message)
		}
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}
	return data, nil
}

func (c *client) listEntries() ([]map[string]any, error) {
	data, err := c.do(http.MethodGet, "/api/entries", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Entries []map[string]any `json:"entries"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func (c *client) createEntry(body any) (map[string]any, error) {
	data, err := c.do(http.MethodPost, "/api/entries", body)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) startEntry(id string) error {
	_, err := c.do(http.MethodPost, "/api/entries/"+id+"/start", nil)
	return err
}

func (c *client) stopEntry(id string) error {
	_, err := c.do(http.MethodPost, "/api/entries/"+id+"/stop", nil)
	return err
}

func (c *client) deleteEntry(id string, kill bool) error {
	path := "/api/entries/" + id
	if kill {
		path += "?kill=true"
	}
	_, err := c.do(http.MethodDelete, path, nil)
	return err
}

func (c *client) sync(topic string, epsilonSeconds float64) error {
	_, err := c.do(http.MethodPost, "/api/sync", map[string]any{
		"topic":   topic,
		"epsilon": epsilonSeconds,
	})
	return err
}
