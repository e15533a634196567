package acl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// BaseAdapter carries the client and service name shared by adapters and
// maps every failed call to a domain error.
type BaseAdapter struct {
	client      *clients.Client
	serviceName string
}

// NewBaseAdapter creates a base adapter.
func NewBaseAdapter(client *clients.Client, serviceName string) BaseAdapter {
	return BaseAdapter{
		client:      client,
		serviceName: serviceName,
	}
}

// ServiceName returns the name of the external service.
func (a *BaseAdapter) ServiceName() string {
	return a.serviceName
}

// Get performs a GET and returns the body of a successful response. The
// caller closes it.
func (a *BaseAdapter) Get(ctx context.Context, path, operation string) (io.ReadCloser, error) {
	resp, err := a.client.Get(ctx, path)

	return a.body(resp, err, operation)
}

// Post performs a JSON POST and returns the body of a successful response.
// The caller closes it.
func (a *BaseAdapter) Post(ctx context.Context, path string, payload []byte, operation string) (io.ReadCloser, error) {
	resp, err := a.client.Post(ctx, path, payload)

	return a.body(resp, err, operation)
}

func (a *BaseAdapter) body(resp *http.Response, err error, operation string) (io.ReadCloser, error) {
	if err != nil {
		return nil, MapHTTPError(nil, err, a.serviceName, operation, "")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer func() { _ = resp.Body.Close() }()

		return nil, MapHTTPError(resp, nil, a.serviceName, operation, "")
	}

	return resp.Body, nil
}

// DecodeResponse decodes a JSON body into T and closes it. Undecodable
// payloads yield a domain.MalformedError.
func DecodeResponse[T any](body io.ReadCloser, origin string) (*T, error) {
	if body == nil {
		return nil, domain.NewMalformedError(origin, errors.New("response body is nil"))
	}
	defer func() { _ = body.Close() }()

	var result T
	if err := json.NewDecoder(body).Decode(&result); err != nil {
		return nil, domain.NewMalformedError(origin, err)
	}

	return &result, nil
}

// ValidatePositive rejects non-positive numbers with a domain.ValidationError.
func ValidatePositive[T ~int | ~int64 | ~float64](value T, fieldName string) error {
	if value <= 0 {
		return domain.NewValidationError(fieldName, "must be positive")
	}

	return nil
}

// Translator converts one external DTO into a domain value.
type Translator[External any, Domain any] func(ext *External) (Domain, error)

// TranslateSlice translates every item. With skipInvalid set, items the
// translator rejects are dropped and counted; otherwise the first failure
// is returned.
func TranslateSlice[E any, D any](items []E, translate Translator[E, D], skipInvalid bool) ([]D, int, error) {
	result := make([]D, 0, len(items))
	skipped := 0

	for i := range items {
		translated, err := translate(&items[i])
		if err != nil {
			if skipInvalid {
				skipped++
				continue
			}

			return nil, 0, fmt.Errorf("translating item %d: %w", i, err)
		}

		result = append(result, translated)
	}

	return result, skipped, nil
}
