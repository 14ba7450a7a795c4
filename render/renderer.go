package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"pilotage/domain"
	"pilotage/infra/tracing"
	"strconv"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout = 60 * time.Second
	printPath      = "/bordereaux/print"
	pdfPath        = "/pdf"
)

// Config points at the headless browser service that prints pages to PDF and
// at the application serving the print views.
type Config struct {
	RendererURL string
	AppBaseURL  string
	Timeout     time.Duration
}

// ConfigFromEnv reads RENDERER_URL and APP_BASE_URL.
func ConfigFromEnv() Config {
	timeout := defaultTimeout
	if v := os.Getenv("RENDERER_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}
	return Config{
		RendererURL: strings.TrimRight(os.Getenv("RENDERER_URL"), "/"),
		AppBaseURL:  strings.TrimRight(os.Getenv("APP_BASE_URL"), "/"),
		Timeout:     timeout,
	}
}

func (c Config) Enabled() bool {
	return c.RendererURL != "" && c.AppBaseURL != ""
}

type pdfRequest struct {
	URL             string `json:"url"`
	Format          string `json:"format"`
	PrintBackground bool   `json:"printBackground"`
	Media           string `json:"media"`
}

type Client struct {
	config Config
	http   *http.Client
}

func NewClient(config Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{config: config, http: tracing.NewHTTPClient(&http.Client{Timeout: timeout})}
}

// PrintURL is the page rendered for a bordereau. The period is omitted for
// documents that do not belong to a month.
func (c *Client) PrintURL(projectID types.ID, docType string, period *domain.Period) string {
	q := url.Values{}
	q.Set("projectId", projectID.String())
	q.Set("type", docType)
	if period != nil {
		q.Set("year", strconv.Itoa(period.Year))
		q.Set("month", strconv.Itoa(period.Month))
	}
	return c.config.AppBaseURL + printPath + "?" + q.Encode()
}

// RenderBordereau asks the rendering service to print the bordereau view as
// an A4 PDF.
func (c *Client) RenderBordereau(ctx context.Context, projectID types.ID, docType string, period *domain.Period) ([]byte, error) {
	return c.RenderURL(ctx, c.PrintURL(projectID, docType, period))
}

func (c *Client) RenderURL(ctx context.Context, pageURL string) ([]byte, error) {
	if !c.config.Enabled() {
		return nil, errors.New("renderer is not configured")
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(pdfRequest{URL: pageURL, Format: "A4", PrintBackground: true, Media: "print"}); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.RendererURL+pdfPath, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		logrus.WithField("url", pageURL).Errorf("renderer responded %d: %s", resp.StatusCode, truncate(body, 512))
		return nil, fmt.Errorf("print page error: status %d", resp.StatusCode)
	}
	if len(body) == 0 {
		return nil, errors.New("renderer returned an empty document")
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
