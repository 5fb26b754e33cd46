package s3

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// CredentialPath is the sidecar endpoint that brokers short-lived bucket credentials.
const CredentialPath = "/credential"

const sidecarCredentialSource = "ManagedSidecar"

// SidecarCredentialsProvider retrieves bucket credentials from the managed host's sidecar.
// Wrap it in aws.NewCredentialsCache so keys are refreshed only near expiry.
type SidecarCredentialsProvider struct {
	endpoint string
	client   *http.Client
}

type sidecarCredential struct {
	AccessKeyID     string    `json:"access_key_id"`
	SecretAccessKey string    `json:"secret_access_key"`
	SessionToken    string    `json:"session_token"`
	Expiration      time.Time `json:"expiration"`
}

// NewSidecarCredentialsProvider creates a provider reading from sidecarURL.
func NewSidecarCredentialsProvider(sidecarURL string, client *http.Client) (*SidecarCredentialsProvider, error) {
	sidecarURL = strings.TrimSuffix(strings.TrimSpace(sidecarURL), "/")
	if sidecarURL == "" {
		return nil, errors.New("sidecar url is required for sidecar credentials")
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &SidecarCredentialsProvider{endpoint: sidecarURL + CredentialPath, client: client}, nil
}

// Retrieve implements aws.CredentialsProvider.
func (p *SidecarCredentialsProvider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("build sidecar credential request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("sidecar credential request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return aws.Credentials{}, fmt.Errorf("sidecar credential request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload sidecarCredential
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err != nil {
		return aws.Credentials{}, fmt.Errorf("decode sidecar credential: %w", err)
	}
	if payload.AccessKeyID == "" || payload.SecretAccessKey == "" {
		return aws.Credentials{}, errors.New("sidecar credential response is missing keys")
	}

	creds := aws.Credentials{
		AccessKeyID:     payload.AccessKeyID,
		SecretAccessKey: payload.SecretAccessKey,
		SessionToken:    payload.SessionToken,
		Source:          sidecarCredentialSource,
	}
	if !payload.Expiration.IsZero() {
		creds.CanExpire = true
		creds.Expires = payload.Expiration
	}
	return creds, nil
}
