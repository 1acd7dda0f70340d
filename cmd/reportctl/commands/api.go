package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const (
	reportsPath    = "/api/v1/reports"
	requestTimeout = 30 * time.Second
)

// apiClient issues the thin calls made by submit and status
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// apiResponse is a raw API reply; the body is always JSON.
type apiResponse struct {
	StatusCode int
	Body       []byte
}

func (c *apiClient) submit(ctx context.Context, body []byte) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+reportsPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *apiClient) status(ctx context.Context, jobID string) (*apiResponse, error) {
	u := c.baseURL + reportsPath + "?" + url.Values{"job_id": {jobID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *apiClient) do(req *http.Request) (*apiResponse, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &apiResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an assessment to the report API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := apiURL(cmd)
			if err != nil {
				return err
			}
			input, _ := cmd.Flags().GetString(flagInput)

			body, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			resp, err := newAPIClient(addr).submit(cmd.Context(), body)
			if err != nil {
				return err
			}
			return printResponse(cmd, resp)
		},
	}

	cmd.Flags().StringP(flagInput, "i", "", "Path to the assessment JSON file")
	cmd.Flags().String(flagAPI, defaultAPIURL, "Report API address (env: REPORTCTL_API)")
	_ = cmd.MarkFlagRequired(flagInput)

	return cmd
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status and report links of a job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := apiURL(cmd)
			if err != nil {
				return err
			}
			jobID, _ := cmd.Flags().GetString(flagJobID)
			if strings.TrimSpace(jobID) == "" {
				return fmt.Errorf("job ID cannot be empty")
			}

			resp, err := newAPIClient(addr).status(cmd.Context(), jobID)
			if err != nil {
				return err
			}
			return printResponse(cmd, resp)
		},
	}

	cmd.Flags().String(flagJobID, "", "Job ID returned by submit")
	cmd.Flags().String(flagAPI, defaultAPIURL, "Report API address (env: REPORTCTL_API)")
	_ = cmd.MarkFlagRequired(flagJobID)

	return cmd
}

// printResponse pretty-prints the body and turns 4xx/5xx into an error.
func printResponse(cmd *cobra.Command, resp *apiResponse) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, resp.Body, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(resp.Body)
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("api returned %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return nil
}
