// README: Identity provider HTTP adapter: async OCR and face liveness task creation.
package kyc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"carryhub/internal/config"
)

// TaskRequest carries image references; uploads and storage happen elsewhere.
type TaskRequest struct {
	Type       Type
	GroupID    string
	TaskID     string
	FrontImage string
	BackImage  string
	Selfie     string
	Consent    bool
}

type Provider interface {
	CreateTask(ctx context.Context, req TaskRequest) (requestID string, err error)
}

type HTTPProvider struct {
	baseURL   string
	apiKey    string
	accountID string
	http      *http.Client
}

func NewHTTPProvider(cfg config.KYCConfig) *HTTPProvider {
	return &HTTPProvider{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		accountID: cfg.AccountID,
		http:      &http.Client{Timeout: cfg.Timeout},
	}
}

var taskPaths = map[Type]string{
	TypePAN:            "/tasks/async/extract/ind_pan",
	TypeAadhaar:        "/tasks/async/extract/ind_aadhaar",
	TypeDrivingLicense: "/tasks/async/extract/ind_driving_license",
	TypeFace:           "/tasks/async/check_photo_liveness/face",
}

func (p *HTTPProvider) CreateTask(ctx context.Context, req TaskRequest) (string, error) {
	path, ok := taskPaths[req.Type]
	if !ok {
		return "", ErrUnknownType
	}
	data := map[string]any{}
	switch req.Type {
	case TypeFace:
		data["document1"] = req.Selfie
	default:
		data["document1"] = req.FrontImage
		if req.BackImage != "" {
			data["document2"] = req.BackImage
		}
	}
	if req.Type == TypeAadhaar {
		data["consent"] = "yes"
	}
	payload, err := json.Marshal(map[string]any{
		"task_id":  req.TaskID,
		"group_id": req.GroupID,
		"data":     data,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", p.apiKey)
	httpReq.Header.Set("account-id", p.accountID)

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("provider returned %d: %s", resp.StatusCode, body)
	}
	var out struct {
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if out.RequestID == "" {
		return "", fmt.Errorf("provider response has no request_id")
	}
	return out.RequestID, nil
}
