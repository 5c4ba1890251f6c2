package tuya

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tuyactl/internal/domain"
	"tuyactl/internal/infra"
)

const devicePageSize = 50

type Client struct {
	accessID   string
	accessKey  string
	baseURL    string
	httpClient *http.Client
	retry      infra.RetryConfig
	store      TokenStore

	mu    sync.RWMutex
	token Token
}

// NewClient builds a client for one of the known Tuya regions.
func NewClient(accessID, accessKey, region string) *Client {
	baseURL := "https://openapi.tuyaus.com"
	switch strings.ToLower(region) {
	case "eu":
		baseURL = "https://openapi.tuyaeu.com"
	case "cn":
		baseURL = "https://openapi.tuyacn.com"
	case "in":
		baseURL = "https://openapi.tuyain.com"
	}

	return NewClientWithURL(accessID, accessKey, baseURL)
}

func NewClientWithURL(accessID, accessKey, baseURL string) *Client {
	return &Client{
		accessID:   accessID,
		accessKey:  accessKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		retry:      infra.DefaultRetryConfig(),
	}
}

// SetTokenStore enables token persistence. Must be called before the first
// request.
func (c *Client) SetTokenStore(store TokenStore) { c.store = store }

// SetRetryConfig overrides the transport retry policy.
func (c *Client) SetRetryConfig(cfg infra.RetryConfig) { c.retry = cfg }

// Authenticate forces a full credential grant and returns the issued token.
// The token is cached for subsequent calls.
func (c *Client) Authenticate(ctx context.Context) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	token, err := c.grantToken(ctx)
	if err != nil {
		return Token{}, err
	}

	c.setTokenLocked(ctx, token)
	return token, nil
}

// GetDevices lists every device linked to the account, following the
// cloud's pagination cursor.
func (c *Client) GetDevices(ctx context.Context) ([]domain.Device, error) {
	query := map[string]string{"size": fmt.Sprintf("%d", devicePageSize)}

	var devices []domain.Device
	for {
		path := "/v1.0/iot-01/associated-users/devices?" + canonicalQuery(query)
		result, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, fmt.Errorf("fetching devices: %w", err)
		}

		var page struct {
			Devices []struct {
				ID          string `json:"id"`
				Name        string `json:"name"`
				Category    string `json:"category"`
				ProductName string `json:"product_name"`
				Online      bool   `json:"online"`
			} `json:"devices"`
			HasMore    bool   `json:"has_more"`
			LastRowKey string `json:"last_row_key"`
		}
		if err := json.Unmarshal(result, &page); err != nil {
			return nil, fmt.Errorf("parsing devices: %w", err)
		}

		for _, d := range page.Devices {
			devices = append(devices, domain.Device{
				ID:          d.ID,
				Name:        d.Name,
				Category:    d.Category,
				ProductName: d.ProductName,
				Type:        categoryToType(d.Category),
				Online:      d.Online,
			})
		}

		if !page.HasMore || page.LastRowKey == "" {
			return devices, nil
		}
		query["last_row_key"] = page.LastRowKey
	}
}

// GetDeviceStatus returns the current data points of a device.
func (c *Client) GetDeviceStatus(ctx context.Context, deviceID string) ([]domain.Status, error) {
	path := fmt.Sprintf("/v1.0/iot-03/devices/%s/status", deviceID)
	result, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching device status: %w", err)
	}

	var points []struct {
		Code  string `json:"code"`
		Value any    `json:"value"`
	}
	if err := json.Unmarshal(result, &points); err != nil {
		return nil, fmt.Errorf("parsing device status: %w", err)
	}

	status := make([]domain.Status, 0, len(points))
	for _, p := range points {
		status = append(status, domain.Status{Code: p.Code, Value: p.Value})
	}

	return status, nil
}

// GetDeviceFunctions returns the command codes a device accepts.
func (c *Client) GetDeviceFunctions(ctx context.Context, deviceID string) ([]domain.Function, error) {
	path := fmt.Sprintf("/v1.0/iot-03/devices/%s/functions", deviceID)
	result, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching device functions: %w", err)
	}

	var set struct {
		Category  string `json:"category"`
		Functions []struct {
			Code   string `json:"code"`
			Type   string `json:"type"`
			Values string `json:"values"`
		} `json:"functions"`
	}
	if err := json.Unmarshal(result, &set); err != nil {
		return nil, fmt.Errorf("parsing device functions: %w", err)
	}

	functions := make([]domain.Function, 0, len(set.Functions))
	for _, f := range set.Functions {
		functions = append(functions, domain.Function{Code: f.Code, Type: f.Type, Values: f.Values})
	}

	return functions, nil
}

// SendCommands issues one or more commands to a device.
func (c *Client) SendCommands(ctx context.Context, deviceID string, cmds []domain.Command) error {
	if len(cmds) == 0 {
		return errors.New("tuya: no commands to send")
	}

	wire := make([]map[string]any, 0, len(cmds))
	for _, cmd := range cmds {
		wire = append(wire, map[string]any{"code": cmd.Code, "value": cmd.Value})
	}
	body, err := json.Marshal(map[string]any{"commands": wire})
	if err != nil {
		return fmt.Errorf("encoding commands: %w", err)
	}

	path := fmt.Sprintf("/v1.0/iot-03/devices/%s/commands", deviceID)
	if _, err := c.doRequest(ctx, http.MethodPost, path, body); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && !errors.Is(apiErr, ErrAuthentication) && !errors.Is(apiErr, ErrDeviceNotFound) {
			return fmt.Errorf("%w: %w", ErrCommandRejected, apiErr)
		}
		return fmt.Errorf("sending commands: %w", err)
	}

	return nil
}

// doRequest ensures a usable token, signs and sends the request, and retries
// exactly once with a fresh token when the cloud reports the attached token
// as invalid.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	result, err := c.call(ctx, method, path, body, token.AccessToken)

	var apiErr *APIError
	if errors.As(err, &apiErr) && isTokenCode(apiErr.Code) {
		token, err = c.reauthenticate(ctx, token)
		if err != nil {
			return nil, err
		}

		result, err = c.call(ctx, method, path, body, token.AccessToken)
		if errors.As(err, &apiErr) && isTokenCode(apiErr.Code) {
			return nil, fmt.Errorf("%w: %w", ErrAuthentication, apiErr)
		}
	}

	return result, err
}

// call performs one signed request/response cycle. Transport failures and
// retryable HTTP statuses go through the backoff loop; provider rejections
// surface as *APIError without retrying.
func (c *Client) call(ctx context.Context, method, path string, body []byte, accessToken string) (json.RawMessage, error) {
	var respBody []byte

	retryErr := infra.WithRetry(ctx, c.retry, func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = strings.NewReader(string(body))
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return infra.Permanent(fmt.Errorf("creating request: %w", err))
		}

		c.signRequest(req, accessToken, method, path, body)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &NetworkError{Op: "sending request", Err: err}
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return &NetworkError{Op: "reading response", Err: err}
		}

		if infra.IsRetryableHTTPStatus(resp.StatusCode) {
			return &NetworkError{Op: "http status", Err: fmt.Errorf("%d: %s", resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode != http.StatusOK {
			return infra.Permanent(&NetworkError{Op: "http status", Err: fmt.Errorf("%d: %s", resp.StatusCode, string(respBody))})
		}

		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	return parseEnvelope(respBody)
}

// signRequest attaches the Tuya OpenAPI signature headers. The signature
// covers accessID + token + timestamp + nonce + method, the SHA-256 of the
// body, and the path including its query string.
func (c *Client) signRequest(req *http.Request, accessToken, method, path string, body []byte) {
	timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())
	nonce := uuid.NewString()

	bodyHash := sha256.Sum256(body)
	stringToSign := method + "\n" + hex.EncodeToString(bodyHash[:]) + "\n\n" + path
	payload := c.accessID + accessToken + timestamp + nonce + stringToSign

	mac := hmac.New(sha256.New, []byte(c.accessKey))
	mac.Write([]byte(payload))
	sign := strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))

	req.Header.Set("client_id", c.accessID)
	req.Header.Set("t", timestamp)
	req.Header.Set("nonce", nonce)
	req.Header.Set("sign", sign)
	req.Header.Set("sign_method", "HMAC-SHA256")
	if accessToken != "" {
		req.Header.Set("access_token", accessToken)
	}
}

// ensureToken returns a usable token, refreshing or re-granting under the
// write lock when the cached one is missing or stale.
func (c *Client) ensureToken(ctx context.Context) (Token, error) {
	c.mu.RLock()
	if c.token.Usable() {
		token := c.token
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.Usable() {
		return c.token, nil
	}

	// A previous run may have left a still-valid token in the store.
	if c.store != nil && c.token.AccessToken == "" {
		if stored, err := c.store.LoadToken(ctx); err == nil {
			if stored.Usable() {
				c.token = stored
				return stored, nil
			}
			if stored.RefreshToken != "" {
				c.token.RefreshToken = stored.RefreshToken
			}
		}
	}

	token, err := c.acquireTokenLocked(ctx)
	if err != nil {
		return Token{}, err
	}

	c.setTokenLocked(ctx, token)
	return token, nil
}

// reauthenticate discards the rejected token and fetches a new one.
func (c *Client) reauthenticate(ctx context.Context, rejected Token) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may already have replaced it.
	if c.token.Usable() && c.token.AccessToken != rejected.AccessToken {
		return c.token, nil
	}

	c.token.AccessToken = ""
	c.token.ExpiresAt = time.Time{}

	token, err := c.acquireTokenLocked(ctx)
	if err != nil {
		return Token{}, err
	}

	c.setTokenLocked(ctx, token)
	return token, nil
}

// acquireTokenLocked tries the refresh-token exchange first and falls back
// to a full credential grant. Callers hold the write lock.
func (c *Client) acquireTokenLocked(ctx context.Context) (Token, error) {
	if c.token.RefreshToken != "" {
		token, err := c.exchangeToken(ctx, "/v1.0/token/"+c.token.RefreshToken)
		if err == nil {
			return token, nil
		}
		var netErr *NetworkError
		if errors.As(err, &netErr) {
			return Token{}, err
		}
		// Refresh token rejected; fall through to a full grant.
	}

	return c.grantToken(ctx)
}

func (c *Client) grantToken(ctx context.Context) (Token, error) {
	return c.exchangeToken(ctx, "/v1.0/token?grant_type=1")
}

// exchangeToken performs a token endpoint call, signed without an access
// token, and maps provider rejection to ErrAuthentication.
func (c *Client) exchangeToken(ctx context.Context, path string) (Token, error) {
	result, err := c.call(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return Token{}, fmt.Errorf("%w: %w", ErrAuthentication, apiErr)
		}
		return Token{}, err
	}

	var grant struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpireTime   int64  `json:"expire_time"`
		UID          string `json:"uid"`
	}
	if err := json.Unmarshal(result, &grant); err != nil {
		return Token{}, fmt.Errorf("parsing token response: %w", err)
	}
	if grant.AccessToken == "" {
		return Token{}, fmt.Errorf("%w: empty access token in response", ErrAuthentication)
	}

	return Token{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(grant.ExpireTime) * time.Second),
		UID:          grant.UID,
	}, nil
}

// setTokenLocked caches the token and persists it best-effort.
func (c *Client) setTokenLocked(ctx context.Context, token Token) {
	c.token = token
	if c.store != nil {
		// The in-memory token stays authoritative if the write fails.
		_ = c.store.SaveToken(ctx, token)
	}
}

func parseEnvelope(body []byte) (json.RawMessage, error) {
	var envelope struct {
		Success bool            `json:"success"`
		Code    int             `json:"code"`
		Msg     string          `json:"msg"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if !envelope.Success {
		return nil, &APIError{Code: envelope.Code, Msg: envelope.Msg}
	}
	return envelope.Result, nil
}

// canonicalQuery joins query parameters with keys in alphabetical order, the
// order the cloud expects inside the signature.
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, "&")
}

func categoryToType(category string) domain.DeviceType {
	switch category {
	case "dj", "dd", "fwd", "xdd", "dc", "tgq":
		return domain.DeviceTypeLight
	case "cz", "pc":
		return domain.DeviceTypePlug
	case "kg", "tdq":
		return domain.DeviceTypeSwitch
	case "wk", "wkf":
		return domain.DeviceTypeThermostat
	case "pir", "mcs", "ywbj", "rqbj", "jwbj":
		return domain.DeviceTypeSensor
	default:
		return domain.DeviceTypeOther
	}
}
