// Package zarinpal adalah adapter ke gateway pembayaran Zarinpal (API v4).
// Gateway diperlakukan sebagai kolaborator tak-andal yg deliver callback
// at-least-once; retry & timeout ditangani di boundary ini.
package zarinpal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	sandboxBase    = "https://sandbox.zarinpal.com/pg"
	productionBase = "https://api.zarinpal.com/pg"

	codeOK = 100
)

// ErrUnavailable: fault transient (network/timeout/5xx) setelah satu kali
// retry. Caller wajib rollback reservasi.
var ErrUnavailable = errors.New("payment gateway unavailable")

type PaymentRequest struct {
	URL       string // link StartPay utk redirect user
	Authority string // token otoritas, satu per attempt pembayaran
}

type VerifyResult struct {
	Success bool
	RefID   string // kode pelacakan, hanya saat Success
	Reason  string // pesan kegagalan utk user, hanya saat !Success
}

type Client struct {
	MerchantID  string
	CallbackURL string
	BaseURL     string // di-override di test
	HTTP        *http.Client
}

func New(merchantID, callbackURL string, sandbox bool) *Client {
	base := productionBase
	if sandbox {
		base = sandboxBase
	}
	return &Client{
		MerchantID:  merchantID,
		CallbackURL: callbackURL,
		BaseURL:     base,
		HTTP:        &http.Client{Timeout: 10 * time.Second},
	}
}

// Bentuk respons v4. Field "data" dan "errors" bisa berupa object ATAU
// array kosong tergantung sukses/gagal, makanya RawMessage.
type gwResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

type gwData struct {
	Code      int             `json:"code"`
	Authority string          `json:"authority"`
	RefID     json.RawMessage `json:"ref_id"` // kadang number, kadang string
}

type gwError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (r gwResponse) data() (gwData, bool) {
	var d gwData
	if err := json.Unmarshal(r.Data, &d); err != nil {
		return gwData{}, false
	}
	return d, true
}

func (r gwResponse) err() gwError {
	var e gwError
	_ = json.Unmarshal(r.Errors, &e)
	return e
}

// RequestPayment minta link pembayaran utk satu order. Amount = total Toman
// bulat yg sudah fix di order.
func (c *Client) RequestPayment(ctx context.Context, amountToman int64, description, orderID string) (PaymentRequest, error) {
	body := map[string]any{
		"merchant_id":  c.MerchantID,
		"amount":       amountToman,
		"description":  description,
		"callback_url": c.CallbackURL + "?order_id=" + orderID,
	}
	resp, err := c.post(ctx, c.BaseURL+"/v4/payment/request.json", body)
	if err != nil {
		return PaymentRequest{}, err
	}
	d, ok := resp.data()
	if !ok || d.Code != codeOK || d.Authority == "" {
		return PaymentRequest{}, fmt.Errorf("payment request rejected (code %d, %s): %w",
			resp.err().Code, resp.err().Message, ErrUnavailable)
	}
	return PaymentRequest{
		URL:       c.PaymentURL(d.Authority),
		Authority: d.Authority,
	}, nil
}

// PaymentURL bangun ulang link StartPay dari authority yg tersimpan
// (dipakai utk jawab ulang place-order yg idempotent).
func (c *Client) PaymentURL(authority string) string {
	return c.BaseURL + "/StartPay/" + authority
}

// Verify konfirmasi pembayaran ke gateway. Amount mismatch dikembalikan
// gateway sebagai code -50 dan kita teruskan sebagai kegagalan verifikasi,
// tidak pernah dikoreksi diam-diam.
func (c *Client) Verify(ctx context.Context, authority string, amountToman int64) (VerifyResult, error) {
	body := map[string]any{
		"merchant_id": c.MerchantID,
		"amount":      amountToman,
		"authority":   authority,
	}
	resp, err := c.post(ctx, c.BaseURL+"/v4/payment/verify.json", body)
	if err != nil {
		return VerifyResult{}, err
	}
	if d, ok := resp.data(); ok && d.Code == codeOK {
		return VerifyResult{Success: true, RefID: refIDString(d.RefID)}, nil
	}
	code := resp.err().Code
	if code == 0 {
		if d, ok := resp.data(); ok {
			code = d.Code
		}
	}
	return VerifyResult{Success: false, Reason: errorMessage(code)}, nil
}

// post: satu kali retry dgn backoff pendek utk fault transient, lalu
// menyerah sebagai ErrUnavailable.
func (c *Client) post(ctx context.Context, url string, body any) (gwResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return gwResponse{}, err
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(300 * time.Millisecond):
			case <-ctx.Done():
				return gwResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return gwResponse{}, err
		}
		req.Header.Set("Content-Type", "application/json")

		res, err := c.HTTP.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if res.StatusCode >= 500 {
			res.Body.Close()
			lastErr = fmt.Errorf("gateway http %d", res.StatusCode)
			continue
		}

		var out gwResponse
		err = json.NewDecoder(res.Body).Decode(&out)
		res.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return out, nil
	}
	return gwResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func refIDString(raw json.RawMessage) string {
	var n int64
	if json.Unmarshal(raw, &n) == nil {
		return strconv.FormatInt(n, 10)
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}
