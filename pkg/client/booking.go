package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"lessonbook/pkg/model"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderRequesterID    = "X-Requester-ID"
)

// APIError is a non-2xx answer from the booking service.
type APIError struct {
	StatusCode int            `json:"-"`
	Code       string         `json:"code"`
	Message    string         `json:"error"`
	Details    map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("booking api: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// BookingClient is a typed client for the booking HTTP API.
type BookingClient struct {
	httpClient *HttpClient
}

func NewBookingClient(baseURL string) *BookingClient {
	return &BookingClient{httpClient: NewHttpClient(baseURL)}
}

// Book submits a booking request. A conflict or validation failure is
// returned as *APIError alongside the decoded result when one is present.
func (c *BookingClient) Book(ctx context.Context, req model.BookingRequest) (*model.BookingResult, error) {
	headers := map[string]string{HeaderRequesterID: req.RequesterID}
	if req.IdempotencyKey != "" {
		headers[HeaderIdempotencyKey] = req.IdempotencyKey
	}

	resp, err := c.httpClient.POST(ctx, "/api/v1/bookings", req, headers)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, decodeAPIError(resp)
	}

	var result model.BookingResult
	if err := decodeData(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *BookingClient) GetCommitment(ctx context.Context, id string) (*model.Commitment, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/bookings/id/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var commitment model.Commitment
	if err := decodeData(resp, &commitment); err != nil {
		return nil, err
	}
	return &commitment, nil
}

func (c *BookingClient) Availability(ctx context.Context, ownerID, date, startTime, endTime string) ([]model.ConflictingCommitment, error) {
	q := url.Values{}
	q.Set("owner_id", ownerID)
	q.Set("date", date)
	q.Set("start_time", startTime)
	q.Set("end_time", endTime)

	resp, err := c.httpClient.GET(ctx, "/api/v1/bookings/availability?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var body struct {
		Available bool                          `json:"available"`
		Conflicts []model.ConflictingCommitment `json:"conflicts"`
	}
	if err := decodeData(resp, &body); err != nil {
		return nil, err
	}
	return body.Conflicts, nil
}

func (c *BookingClient) TransactionStatus(ctx context.Context, id string) (*model.TransactionStatus, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/bookings/transactions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var status model.TransactionStatus
	if err := decodeData(resp, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *BookingClient) Cleanup(ctx context.Context) (*model.CleanupResult, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/bookings/transactions/cleanup", nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var result model.CleanupResult
	if err := decodeData(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *BookingClient) WaitForHealthy(ctx context.Context) error {
	return c.httpClient.WaitForHealthy(ctx)
}

func decodeData(resp *Response, target any) error {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := resp.DecodeJSON(&wrapper); err != nil {
		return fmt.Errorf("could not decode response wrapper (%s): %w", resp, err)
	}
	if err := json.Unmarshal(wrapper.Data, target); err != nil {
		return fmt.Errorf("could not decode response data (%s): %w", resp, err)
	}
	return nil
}

func decodeAPIError(resp *Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := resp.DecodeJSON(apiErr); err != nil {
		apiErr.Message = string(resp.Body)
	}
	return apiErr
}
