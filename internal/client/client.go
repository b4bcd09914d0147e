package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zmcp/civicrm-mcp/internal/constants"
	"github.com/zmcp/civicrm-mcp/internal/debug"
	"github.com/zmcp/civicrm-mcp/internal/logging"
	"github.com/zmcp/civicrm-mcp/internal/models"
)

// API is the remote CRM boundary consumed by the resolver and the tool handlers
type API interface {
	Call(ctx context.Context, entity, action string, params *models.APIParams) (*models.APIResult, error)
}

// CiviClient handles HTTP communication with the CiviCRM API v4 ajax endpoint
type CiviClient struct {
	baseURL    string
	apiPath    string
	httpClient *http.Client
	apiKey     string
	siteKey    string
	userAgent  string
}

// NewCiviClient creates a new CiviCRM client. A zero timeout selects the default.
func NewCiviClient(baseURL, apiPath string, timeout time.Duration) *CiviClient {
	// Ensure base URL ends with /
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if apiPath == "" {
		apiPath = constants.DefaultAPIPath
	}
	if timeout <= 0 {
		timeout = constants.DefaultTimeout * time.Second
	}

	return &CiviClient{
		baseURL: baseURL,
		apiPath: strings.Trim(apiPath, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: constants.DefaultUserAgent,
	}
}

// SetAPIKey configures the bearer credential sent with every request
func (c *CiviClient) SetAPIKey(key string) {
	c.apiKey = key
}

// SetSiteKey configures the optional site key header
func (c *CiviClient) SetSiteKey(key string) {
	c.siteKey = key
}

// Endpoint returns the URL a call to entity/action is posted to
func (c *CiviClient) Endpoint(entity, action string) string {
	return c.baseURL + c.apiPath + "/" + url.PathEscape(entity) + "/" + url.PathEscape(action)
}

// Call invokes one API v4 action and decodes the result set
func (c *CiviClient) Call(ctx context.Context, entity, action string, params *models.APIParams) (*models.APIResult, error) {
	if params == nil {
		params = &models.APIParams{}
	}

	req, err := c.buildRequest(ctx, entity, action, params)
	if err != nil {
		return nil, err
	}

	logging.Debug("Client", "%s %s", req.Method, debug.MaskURL(req.URL.String()))
	logging.Debug("Client", "Request headers: %s", debug.MaskHeaders(req.Header))

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	result, err := c.parseResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", entity, action, err)
	}
	return result, nil
}

// buildRequest creates the form-encoded POST with authentication headers
func (c *CiviClient) buildRequest(ctx context.Context, entity, action string, params *models.APIParams) (*http.Request, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}

	form := url.Values{}
	form.Set(constants.ParamsFormField, string(encoded))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(entity, action), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(constants.ContentType, constants.ContentTypeFormURL)
	req.Header.Set(constants.Accept, constants.ContentTypeJSON)
	req.Header.Set(constants.UserAgent, c.userAgent)
	req.Header.Set(constants.RequestedWith, constants.XMLHttpRequest)

	if c.apiKey != "" {
		req.Header.Set(constants.CiviAuthHeader, constants.BearerPrefix+c.apiKey)
	}
	if c.siteKey != "" {
		req.Header.Set(constants.CiviKeyHeader, c.siteKey)
	}

	return req, nil
}

// doRequest executes the request once; failed calls surface to the caller
func (c *CiviClient) doRequest(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", constants.ErrRequestFailed, err)
	}
	logging.Debug("Client", "Response %d in %s", resp.StatusCode, time.Since(start).Round(time.Millisecond))
	return resp, nil
}

func (c *CiviClient) parseResponse(resp *http.Response) (*models.APIResult, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseErrorFromBody(body, resp.StatusCode)
	}

	return parseAPIResponse(body, resp.StatusCode)
}
