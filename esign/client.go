package esign

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"pilotage/infra/tracing"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	apiPrefix          = "/api/rest/v6"
	invalidAccessPoint = "INVALID_API_ACCESS_POINT"
	defaultHTTPTimeout = 30 * time.Second
)

// Provider is the subset of the Adobe Sign API the signature workflow uses.
type Provider interface {
	CreateTransientDocument(ctx context.Context, fileName string, data []byte) (string, error)
	CreateAgreement(ctx context.Context, req AgreementRequest) (*AgreementResponse, error)
	SignedDocument(ctx context.Context, agreementID string) ([]byte, error)
	AuditTrail(ctx context.Context, agreementID string) ([]byte, error)
	Members(ctx context.Context, agreementID string) (*Members, error)
	SendReminder(ctx context.Context, agreementID string, participantIDs []string, note string) error
}

type AgreementRequest struct {
	FileInfos           []FileInfo           `json:"fileInfos"`
	Name                string               `json:"name"`
	Message             string               `json:"message,omitempty"`
	ParticipantSetsInfo []ParticipantSetInfo `json:"participantSetsInfo"`
	SignatureType       string               `json:"signatureType"`
	State               string               `json:"state"`
}

type FileInfo struct {
	TransientDocumentID string `json:"transientDocumentId"`
}

type ParticipantSetInfo struct {
	MemberInfos []MemberInfo `json:"memberInfos"`
	Order       int          `json:"order"`
	Role        string       `json:"role"`
}

type MemberInfo struct {
	Email string `json:"email"`
}

type AgreementResponse struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

type Members struct {
	ParticipantSets []ParticipantSet `json:"participantSets"`
}

type ParticipantSet struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	Role        string   `json:"role"`
	MemberInfos []Member `json:"memberInfos"`
}

type Member struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type accessPoints struct {
	APIAccessPoint string `json:"api_access_point"`
	WebAccessPoint string `json:"web_access_point"`
}

// Client calls the Adobe Sign REST API v6 with a bearer token. Requests are
// rate limited and the API access point is discovered once, then refreshed
// when the provider rejects it.
type Client struct {
	config  Config
	http    *http.Client
	limiter *rate.Limiter

	mu            sync.Mutex
	cachedBaseURI string
}

func NewClient(config Config) *Client {
	if config.DiscoveryURI == "" {
		config.DiscoveryURI = DefaultDiscoveryURI
	}
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		config:  config,
		http:    tracing.NewHTTPClient(&http.Client{Timeout: defaultHTTPTimeout}),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
}

func (c *Client) baseURI(ctx context.Context) (string, error) {
	if c.config.BaseURI != "" {
		return strings.TrimRight(c.config.BaseURI, "/"), nil
	}
	c.mu.Lock()
	cached := c.cachedBaseURI
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.config.DiscoveryURI, "/")+apiPrefix+"/base_uris", nil)
	if err != nil {
		return "", err
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("adobe sign base_uris failed: %d %s", resp.StatusCode, string(body))
	}
	var ap accessPoints
	if err := json.Unmarshal(body, &ap); err != nil {
		return "", err
	}
	if ap.APIAccessPoint == "" {
		return "", errors.New("adobe sign base_uris returned no api access point")
	}
	base := strings.TrimRight(ap.APIAccessPoint, "/")
	c.mu.Lock()
	c.cachedBaseURI = base
	c.mu.Unlock()
	return base, nil
}

func (c *Client) resetBaseURI() {
	c.mu.Lock()
	c.cachedBaseURI = ""
	c.mu.Unlock()
}

// newRequest builds a fresh request for every attempt, bodies cannot be replayed.
type newRequest func(ctx context.Context, url string) (*http.Request, error)

func (c *Client) call(ctx context.Context, path string, build newRequest) ([]byte, error) {
	body, status, err := c.attempt(ctx, path, build)
	if err != nil {
		return nil, err
	}
	if status < 300 {
		return body, nil
	}
	if strings.Contains(string(body), invalidAccessPoint) {
		logrus.WithField("path", path).Info("adobe sign access point rejected, rediscovering")
		c.resetBaseURI()
		body, status, err = c.attempt(ctx, path, build)
		if err != nil {
			return nil, err
		}
		if status < 300 {
			return body, nil
		}
	}
	return nil, fmt.Errorf("adobe sign error: %d %s", status, string(body))
}

func (c *Client) attempt(ctx context.Context, path string, build newRequest) ([]byte, int, error) {
	base, err := c.baseURI(ctx)
	if err != nil {
		return nil, 0, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}
	req, err := build(ctx, base+path)
	if err != nil {
		return nil, 0, err
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func getRequest(ctx context.Context, url string) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
}

func jsonRequest(method string, payload interface{}) newRequest {
	return func(ctx context.Context, url string) (*http.Request, error) {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, method, url, &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}
}

func (c *Client) CreateTransientDocument(ctx context.Context, fileName string, data []byte) (string, error) {
	body, err := c.call(ctx, apiPrefix+"/transientDocuments", func(ctx context.Context, url string) (*http.Request, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("File", fileName)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return "", err
	}
	var out struct {
		TransientDocumentID string `json:"transientDocumentId"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if out.TransientDocumentID == "" {
		return "", errors.New("adobe sign returned no transient document id")
	}
	return out.TransientDocumentID, nil
}

func (c *Client) CreateAgreement(ctx context.Context, agreement AgreementRequest) (*AgreementResponse, error) {
	body, err := c.call(ctx, apiPrefix+"/agreements", jsonRequest(http.MethodPost, agreement))
	if err != nil {
		return nil, err
	}
	out := AgreementResponse{}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("adobe sign returned no agreement id")
	}
	return &out, nil
}

func (c *Client) SignedDocument(ctx context.Context, agreementID string) ([]byte, error) {
	return c.call(ctx, apiPrefix+"/agreements/"+agreementID+"/combinedDocument", getRequest)
}

func (c *Client) AuditTrail(ctx context.Context, agreementID string) ([]byte, error) {
	return c.call(ctx, apiPrefix+"/agreements/"+agreementID+"/auditTrail", getRequest)
}

func (c *Client) Members(ctx context.Context, agreementID string) (*Members, error) {
	body, err := c.call(ctx, apiPrefix+"/agreements/"+agreementID+"/members", getRequest)
	if err != nil {
		return nil, err
	}
	out := Members{}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SendReminder(ctx context.Context, agreementID string, participantIDs []string, note string) error {
	payload := map[string]interface{}{
		"recipientParticipantIds": participantIDs,
		"status":                  "ACTIVE",
	}
	if note != "" {
		payload["note"] = note
	}
	_, err := c.call(ctx, apiPrefix+"/agreements/"+agreementID+"/reminders", jsonRequest(http.MethodPost, payload))
	return err
}
