package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/interfaces"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
)

// maxBodyBytes caps upstream JSON bodies; chart and news payloads stay well below it.
const maxBodyBytes = 16 << 20

type AsyncNetworkManager struct {
	Config       *models.MConfig
	ProxyManager interfaces.IProxyManager
	Logger       *logger.Logger

	mu     sync.RWMutex
	client *http.Client
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) *AsyncNetworkManager {
	var proxies []string
	if cfg.Network.Enabled {
		proxies = cfg.Network.Proxies
	}

	nm := &AsyncNetworkManager{
		Config:       cfg,
		ProxyManager: helpers.NewProxyManager(proxies, cfg.Network.UserAgent, log),
		Logger:       log,
	}
	nm.client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if nm.ProxyManager.HasProxies() {
		proxyStr, err := nm.ProxyManager.GetCurrentProxy()
		if err == nil && proxyStr != "" {
			proxyURL, err := url.Parse(proxyStr)
			if err == nil {
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   time.Duration(nm.Config.Network.RequestTimeout) * time.Second,
	}
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) httpClient() *http.Client {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	return nm.client
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) rotateProxy() {
	if !nm.ProxyManager.HasProxies() {
		return
	}

	nm.ProxyManager.RotateProxy()
	client := nm.createClient()
	nm.mu.Lock()
	nm.client = client
	nm.mu.Unlock()
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) newRequest(ctx context.Context, urlStr string, params, headers map[string]string) (*http.Request, error) {
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		q := reqURL.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		reqURL.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", nm.ProxyManager.GetUserAgent())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries and proxy rotation.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string, headers map[string]string) ([]byte, error) {
	var body []byte
	attempt := 0

	err := helpers.RetryWithBackoff(ctx, nm.Logger, "GET "+redact(urlStr), nm.Config.Network.MaxRetries, 500*time.Millisecond, func() error {
		if attempt > 0 {
			nm.rotateProxy()
		}
		attempt++

		req, err := nm.newRequest(ctx, urlStr, params, headers)
		if err != nil {
			return helpers.NewValidationError("invalid upstream url: %v", err)
		}

		resp, err := nm.httpClient().Do(req)
		if err != nil {
			return helpers.NewTransportError("upstream", 0, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
			nm.Logger.Info("Request blocked (%d). Rotating proxy.", resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return helpers.NewTransportError("upstream", resp.StatusCode, fmt.Errorf("bad status: %d %s", resp.StatusCode, snippet))
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return helpers.NewTransportError("upstream", 0, err)
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// -----------------------------------------------------------------------------

// Open performs a single GET without retries and hands back the response.
func (nm *AsyncNetworkManager) Open(ctx context.Context, urlStr string) (*http.Response, error) {
	req, err := nm.newRequest(ctx, urlStr, nil, nil)
	if err != nil {
		return nil, helpers.NewValidationError("invalid url: %v", err)
	}

	resp, err := nm.httpClient().Do(req)
	if err != nil {
		return nil, helpers.NewTransportError("upstream", 0, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, helpers.NewTransportError("upstream", resp.StatusCode, fmt.Errorf("bad status: %d", resp.StatusCode))
	}
	return resp, nil
}

// -----------------------------------------------------------------------------

// redact drops the query string so API keys never reach the log.
func redact(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	return u.String()
}
