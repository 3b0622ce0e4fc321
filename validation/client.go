package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ManualReviewStatus is the JSON alternative to a report download: the
// pipeline could not finish automatically and a human has to step in.
type ManualReviewStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

const (
	ManualReviewRequired  = "manual_review_required"
	ManualReviewInitiated = "manual_review_initiated"
)

// ReportResult is either a downloadable report (Data set) or a manual
// review status (ManualReview set), never both.
type ReportResult struct {
	ContentType  string
	FileName     string
	Data         []byte
	ManualReview *ManualReviewStatus
}

// IsArchive reports whether the payload is a multi-file archive rather than
// a single report file.
func (r *ReportResult) IsArchive() bool {
	return strings.Contains(r.ContentType, "zip")
}

// Client talks to the validation/OSS-calculation backend. Requests are
// throttled so a retry storm on the Correction screen cannot hammer the
// service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // validation of large files is slow
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// ValidateFile submits the uploaded binary and returns the backend's result
// for it: the issued session id plus the raw validation result for the
// normalizer. A transport or service failure returns a *ServiceError and
// the normalizer must not run.
func (c *Client) ValidateFile(ctx context.Context, fileName string, file io.Reader) (*FileResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/validate", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Message: fmt.Sprintf("validation service unreachable: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: "failed to read validation response"}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ServiceError{
			StatusCode: resp.StatusCode,
			Message:    flattenErrorBody(respBody, resp.StatusCode),
		}
	}

	var parsed ValidateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: "malformed validation response"}
	}
	if len(parsed.Files) == 0 {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: "validation response contained no files"}
	}
	if parsed.Files[0].SessionID == "" {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: "validation response missing session id"}
	}

	return &parsed.Files[0], nil
}

// FetchReport retrieves the generated report for a session. A JSON response
// means manual review instead of a download; anything else is the report
// binary (single file or archive, per content type).
func (c *Client) FetchReport(ctx context.Context, sessionID string) (*ReportResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/reports/%s", c.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Message: fmt.Sprintf("validation service unreachable: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: "failed to read report response"}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ServiceError{
			StatusCode: resp.StatusCode,
			Message:    flattenErrorBody(respBody, resp.StatusCode),
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		var status ManualReviewStatus
		if err := json.Unmarshal(respBody, &status); err != nil {
			return nil, &ServiceError{StatusCode: resp.StatusCode, Message: "malformed report status response"}
		}
		return &ReportResult{ContentType: contentType, ManualReview: &status}, nil
	}

	return &ReportResult{
		ContentType: contentType,
		FileName:    fileNameFromDisposition(resp.Header.Get("Content-Disposition"), sessionID, contentType),
		Data:        respBody,
	}, nil
}

func fileNameFromDisposition(disposition, sessionID, contentType string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := params["filename"]; name != "" {
				return name
			}
		}
	}
	if strings.Contains(contentType, "zip") {
		return fmt.Sprintf("oss-report-%s.zip", sessionID)
	}
	return fmt.Sprintf("oss-report-%s.csv", sessionID)
}
