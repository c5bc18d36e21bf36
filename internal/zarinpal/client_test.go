package zarinpal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	return &Client{
		MerchantID:  "merchant-test",
		CallbackURL: "https://shop.test/verify",
		BaseURL:     baseURL,
		HTTP:        &http.Client{Timeout: 2 * time.Second},
	}
}

func TestRequestPayment_Success(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/payment/request.json", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"data":{"code":100,"authority":"A000123"},"errors":[]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	res, err := c.RequestPayment(context.Background(), 5000, "test order", "order-1")
	require.NoError(t, err)

	assert.Equal(t, "A000123", res.Authority)
	assert.Equal(t, srv.URL+"/StartPay/A000123", res.URL)
	assert.Equal(t, "merchant-test", gotBody["merchant_id"])
	assert.Equal(t, float64(5000), gotBody["amount"])
	assert.Equal(t, "https://shop.test/verify?order_id=order-1", gotBody["callback_url"])
}

func TestRequestPayment_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[],"errors":{"code":-11,"message":"merchant inactive"}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).RequestPayment(context.Background(), 5000, "x", "order-1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "-11")
}

func TestRequestPayment_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"code":100,"authority":"A9"},"errors":[]}`))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).RequestPayment(context.Background(), 100, "x", "o")
	require.NoError(t, err)
	assert.Equal(t, "A9", res.Authority)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRequestPayment_UnavailableAfterRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).RequestPayment(context.Background(), 100, "x", "o")
	assert.ErrorIs(t, err, ErrUnavailable)
	// Satu kali retry, tidak lebih.
	assert.Equal(t, int32(2), calls.Load())
}

func TestVerify_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/payment/verify.json", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"code":100,"ref_id":123456789},"errors":[]}`))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).Verify(context.Background(), "A000123", 5000)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "123456789", res.RefID)
}

func TestVerify_Failures(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{
			name:   "payment declined",
			body:   `{"data":[],"errors":{"code":-51,"message":"failed"}}`,
			reason: errorMessages[-51],
		},
		{
			name:   "amount mismatch",
			body:   `{"data":[],"errors":{"code":-50,"message":"mismatch"}}`,
			reason: errorMessages[-50],
		},
		{
			name:   "unknown code",
			body:   `{"data":[],"errors":{"code":-77,"message":"?"}}`,
			reason: "خطای ناشناخته",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			res, err := testClient(srv.URL).Verify(context.Background(), "A1", 100)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tc.reason, res.Reason)
		})
	}
}

func TestVerify_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server detects the client disconnect and
		// cancels r.Context(); otherwise srv.Close() blocks forever.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := testClient(srv.URL).Verify(ctx, "A1", 100)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNew_BaseURLBySandbox(t *testing.T) {
	assert.Equal(t, sandboxBase, New("m", "cb", true).BaseURL)
	assert.Equal(t, productionBase, New("m", "cb", false).BaseURL)
}
