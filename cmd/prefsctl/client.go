package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/prefs/internal/api"
)

type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	if cfg.Server.Token == "" {
		return nil, fmt.Errorf("no API token: set PREFSCTL_TOKEN to the token printed by prefsctl serve")
	}
	return &apiClient{
		baseURL:    "http://" + cfg.Server.Addr,
		token:      cfg.Server.Token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is prefsctl serve running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) put(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

func (c *apiClient) patch(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPatch, path, body)
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// --- remote ---

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Read or change the record held by a running prefsctl serve",
}

var remoteShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show every preference",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/prefs")
		if err != nil {
			return err
		}
		var prefsResp api.PrefsResponse
		if err := decodeJSON(resp, &prefsResp); err != nil {
			return err
		}
		printValueMap(cmd.OutOrStdout(), prefsResp.Values)
		return nil
	},
}

var remoteGetCmd = &cobra.Command{
	Use:   "get <field>",
	Short: "Print one preference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/prefs/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var field api.FieldResponse
		if err := decodeJSON(resp, &field); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), field.Value)
		return nil
	},
}

var remoteSetCmd = &cobra.Command{
	Use:   "set <field> <value>",
	Short: "Change one preference",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		// The server parses the text according to the field's kind.
		resp, err := client.put(cmd.Context(), "/prefs/"+url.PathEscape(args[0]), map[string]any{"value": args[1]})
		if err != nil {
			return err
		}
		var field api.FieldResponse
		if err := decodeJSON(resp, &field); err != nil {
			return err
		}
		printSuccess("Set %s = %s", field.Name, formatValue(field.Value))
		return nil
	},
}

var remoteEditCmd = &cobra.Command{
	Use:   "edit <field=value>...",
	Short: "Change several preferences in one transaction",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := parseAssignments(args)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.patch(cmd.Context(), "/prefs", body)
		if err != nil {
			return err
		}
		var prefsResp api.PrefsResponse
		if err := decodeJSON(resp, &prefsResp); err != nil {
			return err
		}
		printValueMap(cmd.OutOrStdout(), prefsResp.Values)
		return nil
	},
}

func init() {
	remoteCmd.AddCommand(remoteShowCmd)
	remoteCmd.AddCommand(remoteGetCmd)
	remoteCmd.AddCommand(remoteSetCmd)
	remoteCmd.AddCommand(remoteEditCmd)
}
