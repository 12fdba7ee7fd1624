// Package payment adapts to the external payment provider: creating and
// retrieving payment intents and issuing refunds over HTTP, wrapped in the
// circuit breaker so a provider outage degrades fast instead of piling up
// blocked goroutines.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/internal/domain"
	"example.com/orderfulfillment/pkg/circuitbreaker"
)

// Intent mirrors the provider's payment-intent representation.
type Intent struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"`
	Amount        domain.Money `json:"amount"`
	PaymentMethod string       `json:"paymentMethod"`
	// ClientSecret is only populated by CreateIntent; it is handed to the
	// storefront so it can complete the payment directly with the provider.
	ClientSecret string `json:"clientSecret,omitempty"`
}

// RefundReason enumerates the reasons this system ever issues a refund for.
type RefundReason string

// ReasonRequestedByCustomer is the only reason the compensation handler
// ever issues.
const ReasonRequestedByCustomer RefundReason = "requested_by_customer"

// Adapter is the seam between the saga/compensation code and the external
// payment provider, allowing a fake implementation in tests.
type Adapter interface {
	// CreateIntent mints a new payment intent for orderID worth amount,
	// called once during order creation before the saga ever runs.
	CreateIntent(ctx context.Context, orderID string, amount domain.Money) (*Intent, error)
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
	Refund(ctx context.Context, intentID string, reason RefundReason) error
}

// HTTPAdapter is the production Adapter implementation.
type HTTPAdapter struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.Breaker
}

// NewHTTPAdapter создаёт адаптер платёжного провайдера поверх HTTP.
func NewHTTPAdapter(baseURL string, timeout time.Duration, breaker *circuitbreaker.Breaker) *HTTPAdapter {
	return &HTTPAdapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
	}
}

// CreateIntent asks the provider to open a new payment intent for an order.
func (a *HTTPAdapter) CreateIntent(ctx context.Context, orderID string, amount domain.Money) (*Intent, error) {
	url := fmt.Sprintf("%s/v1/payment_intents", a.baseURL)
	body, err := json.Marshal(map[string]interface{}{
		"amount":   int64(amount),
		"metadata": map[string]string{"orderId": orderID},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFatalInternal, "построение тела запроса создания платёжного намерения", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFatalInternal, "построение запроса создания платёжного намерения", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.breaker.ExecuteHTTP(func() (*http.Response, error) { return a.client.Do(req) })
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return nil, apperr.Wrap(apperr.KindExternalServiceError, "платёжный провайдер недоступен (circuit open)", err)
		}
		return nil, apperr.Wrap(apperr.KindExternalServiceError, "запрос создания платёжного намерения", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, apperr.New(apperr.KindExternalServiceError, "платёжный провайдер вернул ошибку сервера")
	}
	if resp.StatusCode >= 400 {
		return nil, apperr.New(apperr.KindValidationFailure, "платёжный провайдер отклонил создание намерения")
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, apperr.Wrap(apperr.KindFatalInternal, "разбор ответа платёжного провайдера", err)
	}
	return &intent, nil
}

// GetIntent fetches the current state of a payment intent by ID.
func (a *HTTPAdapter) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	url := fmt.Sprintf("%s/v1/payment_intents/%s", a.baseURL, intentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFatalInternal, "построение запроса платёжного провайдера", err)
	}

	resp, err := a.breaker.ExecuteHTTP(func() (*http.Response, error) { return a.client.Do(req) })
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return nil, apperr.Wrap(apperr.KindExternalServiceError, "платёжный провайдер недоступен (circuit open)", err)
		}
		return nil, apperr.Wrap(apperr.KindExternalServiceError, "запрос к платёжному провайдеру", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperr.New(apperr.KindNotFound, "payment intent не найден")
	}
	if resp.StatusCode >= 500 {
		return nil, apperr.New(apperr.KindExternalServiceError, "платёжный провайдер вернул ошибку сервера")
	}
	if resp.StatusCode >= 400 {
		return nil, apperr.New(apperr.KindPaymentVerificationFail, "платёжный провайдер отклонил запрос")
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, apperr.Wrap(apperr.KindFatalInternal, "разбор ответа платёжного провайдера", err)
	}
	return &intent, nil
}

// Refund issues a refund for the given intent; errors from this call are
// logged by the compensation handler, never escalated above it — releasing
// inventory and cancelling the order take precedence over a failed refund.
func (a *HTTPAdapter) Refund(ctx context.Context, intentID string, reason RefundReason) error {
	url := fmt.Sprintf("%s/v1/refunds", a.baseURL)
	body, err := json.Marshal(map[string]string{
		"payment_intent": intentID,
		"reason":         string(reason),
	})
	if err != nil {
		return apperr.Wrap(apperr.KindFatalInternal, "построение тела запроса на возврат", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(apperr.KindFatalInternal, "построение запроса на возврат", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.breaker.ExecuteHTTP(func() (*http.Response, error) { return a.client.Do(req) })
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return apperr.Wrap(apperr.KindExternalServiceError, "платёжный провайдер недоступен (circuit open)", err)
		}
		return apperr.Wrap(apperr.KindExternalServiceError, "запрос возврата к платёжному провайдеру", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apperr.New(apperr.KindExternalServiceError, "платёжный провайдер отклонил возврат")
	}
	return nil
}
