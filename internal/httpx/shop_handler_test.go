package httpx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamedAligholizade/sefareshgiri-bot/internal/checkout"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/checkout/checkouttest"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/httpx"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/orders"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/zarinpal"
)

type handlerRig struct {
	mux    *chi.Mux
	ledger *checkouttest.MemLedger
	store  *checkouttest.MemStore
	gw     *checkouttest.FakeGateway
	redis  *redis.Client
}

func newHandlerRig(t *testing.T) *handlerRig {
	t.Helper()
	ledger := checkouttest.NewMemLedger()
	store := checkouttest.NewMemStore()
	gw := &checkouttest.FakeGateway{}
	n := &checkouttest.RecordNotifier{}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &httpx.ShopHandler{
		Coordinator: &checkout.Coordinator{Ledger: ledger, Store: store, Gateway: gw, Notifier: n},
		Reconciler:  &checkout.Reconciler{Store: store, Ledger: ledger, Gateway: gw, Notifier: n},
		Store:       store,
		Lister:      store,
		Redis:       rdb,
		Service:     "shop-api-test",
	}
	mux := chi.NewRouter()
	h.Register(mux)
	return &handlerRig{mux: mux, ledger: ledger, store: store, gw: gw, redis: rdb}
}

func (rig *handlerRig) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	rig.mux.ServeHTTP(rec, req)
	return rec
}

func (rig *handlerRig) placeOrder(t *testing.T, req httpx.PlaceOrderReq) httpx.PlaceOrderResp {
	t.Helper()
	rec := rig.do(t, http.MethodPost, "/orders", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp httpx.PlaceOrderResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestPlaceOrderEndpoint_Created(t *testing.T) {
	rig := newHandlerRig(t)
	rig.ledger.AddProduct("p1", 5, 10000)

	resp := rig.placeOrder(t, httpx.PlaceOrderReq{
		Items: []orders.ItemInput{{ProductID: "p1", Qty: 2}},
	})
	assert.NotEmpty(t, resp.OrderID)
	assert.NotEmpty(t, resp.PaymentURL)
	assert.Equal(t, int64(20000), resp.TotalToman)
	assert.Equal(t, 3, rig.ledger.Units("p1"))
}

// Bentuk body sederhana dari storefront: product_id + qty langsung.
func TestPlaceOrderEndpoint_SingleItemForm(t *testing.T) {
	rig := newHandlerRig(t)
	rig.ledger.AddProduct("p1", 5, 7000)

	resp := rig.placeOrder(t, httpx.PlaceOrderReq{ProductID: "p1", Qty: 1})
	assert.Equal(t, int64(7000), resp.TotalToman)
}

// Replay external_id: jawaban datang dari cache idempotency di Redis,
// coordinator (dan gateway) tidak disentuh lagi.
func TestPlaceOrderEndpoint_IdempotentReplay(t *testing.T) {
	rig := newHandlerRig(t)
	rig.ledger.AddProduct("p1", 5, 100)

	req := httpx.PlaceOrderReq{ExternalID: "ext-9", Items: []orders.ItemInput{{ProductID: "p1", Qty: 2}}}
	first := rig.placeOrder(t, req)
	require.Equal(t, 1, rig.gw.RequestCount())

	rec := rig.do(t, http.MethodPost, "/orders", req)
	require.Equal(t, http.StatusOK, rec.Code)

	var replay httpx.PlaceOrderResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replay))
	assert.Equal(t, first.OrderID, replay.OrderID)
	assert.Equal(t, first.PaymentURL, replay.PaymentURL)
	assert.Equal(t, 1, rig.gw.RequestCount())
	assert.Equal(t, 3, rig.ledger.Units("p1"))
}

// Cache idempotency tidak boleh menghidupkan lagi order yg sudah terminal:
// setelah cancel, external_id yg sama harus menghasilkan order baru.
func TestPlaceOrderEndpoint_RetryAfterCancel_NewOrder(t *testing.T) {
	rig := newHandlerRig(t)
	rig.ledger.AddProduct("p1", 5, 100)

	req := httpx.PlaceOrderReq{ExternalID: "ext-10", Items: []orders.ItemInput{{ProductID: "p1", Qty: 1}}}
	first := rig.placeOrder(t, req)

	rec := rig.do(t, http.MethodPost, "/orders/"+first.OrderID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	second := rig.placeOrder(t, req)
	assert.NotEqual(t, first.OrderID, second.OrderID)
	assert.Equal(t, 4, rig.ledger.Units("p1"))
	assert.Equal(t, 2, rig.gw.RequestCount())
}

func TestPlaceOrderEndpoint_OutOfStock(t *testing.T) {
	rig := newHandlerRig(t)
	rig.ledger.AddProduct("p1", 1, 100)

	rec := rig.do(t, http.MethodPost, "/orders", httpx.PlaceOrderReq{
		Items: []orders.ItemInput{{ProductID: "p1", Qty: 2}},
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OUT_OF_STOCK", body["error"])
	assert.Equal(t, "p1", body["product_id"])
	assert.Equal(t, 1, rig.ledger.Units("p1"))
}

func TestPlaceOrderEndpoint_Validation(t *testing.T) {
	rig := newHandlerRig(t)

	for name, req := range map[string]httpx.PlaceOrderReq{
		"tanpa item": {},
		"qty nol":    {Items: []orders.ItemInput{{ProductID: "p1", Qty: 0}}},
	} {
		rec := rig.do(t, http.MethodPost, "/orders", req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR", name)
	}
}

func TestPlaceOrderEndpoint_GatewayDown(t *testing.T) {
	rig := newHandlerRig(t)
	rig.ledger.AddProduct("p1", 5, 100)
	rig.gw.RequestErr = zarinpal.ErrUnavailable

	rec := rig.do(t, http.MethodPost, "/orders", httpx.PlaceOrderReq{
		Items: []orders.ItemInput{{ProductID: "p1", Qty: 2}},
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "GATEWAY_UNAVAILABLE")
	// Reservasi dilepas lagi kalau gateway gagal kasih link bayar.
	assert.Equal(t, 5, rig.ledger.Units("p1"))
}

func TestCancelOrderEndpoint(t *testing.T) {
	rig := newHandlerRig(t)
	rig.ledger.AddProduct("p1", 5, 100)

	resp := rig.placeOrder(t, httpx.PlaceOrderReq{Items: []orders.ItemInput{{ProductID: "p1", Qty: 2}}})

	rec := rig.do(t, http.MethodPost, "/orders/"+resp.OrderID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(orders.StatusCancelled))
	assert.Equal(t, 5, rig.ledger.Units("p1"))

	// Cancel kedua: 409, stok tidak dobel balik.
	rec = rig.do(t, http.MethodPost, "/orders/"+resp.OrderID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ALREADY_CANCELLED")
	assert.Equal(t, 5, rig.ledger.Units("p1"))
}

func TestCancelOrderEndpoint_Paid(t *testing.T) {
	rig := newHandlerRig(t)
	rig.ledger.AddProduct("p1", 5, 100)
	rig.gw.VerifyResult = zarinpal.VerifyResult{Success: true, RefID: "R1"}

	resp := rig.placeOrder(t, httpx.PlaceOrderReq{Items: []orders.ItemInput{{ProductID: "p1", Qty: 1}}})
	o, err := rig.store.Get(context.Background(), resp.OrderID)
	require.NoError(t, err)

	url := fmt.Sprintf("/verify?Authority=%s&Status=OK&order_id=%s", o.Authority, o.ID)
	rec := rig.do(t, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = rig.do(t, http.MethodPost, "/orders/"+resp.OrderID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ALREADY_PAID")
}

func TestCancelOrderEndpoint_NotFound(t *testing.T) {
	rig := newHandlerRig(t)
	rec := rig.do(t, http.MethodPost, "/orders/ghost/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// Webhook verify wajib 200 juga utk delivery ulang dari gateway; 5xx cuma
// utk fault transient supaya gateway nge-retry.
func TestVerifyCallbackEndpoint_ReplayStays200(t *testing.T) {
	rig := newHandlerRig(t)
	rig.ledger.AddProduct("p1", 5, 100)
	rig.gw.VerifyResult = zarinpal.VerifyResult{Success: true, RefID: "R9"}

	resp := rig.placeOrder(t, httpx.PlaceOrderReq{Items: []orders.ItemInput{{ProductID: "p1", Qty: 1}}})
	o, err := rig.store.Get(context.Background(), resp.OrderID)
	require.NoError(t, err)

	url := fmt.Sprintf("/verify?Authority=%s&Status=OK&order_id=%s", o.Authority, o.ID)
	first := rig.do(t, http.MethodGet, url, nil)
	second := rig.do(t, http.MethodGet, url, nil)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 1, rig.gw.VerifyCount())

	got, err := rig.store.Get(context.Background(), resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, got.Status)
	assert.Equal(t, "R9", got.RefID)
}

func TestVerifyCallbackEndpoint_TransientFaultIs500(t *testing.T) {
	rig := newHandlerRig(t)
	rig.ledger.AddProduct("p1", 5, 100)
	rig.gw.VerifyErr = zarinpal.ErrUnavailable

	resp := rig.placeOrder(t, httpx.PlaceOrderReq{Items: []orders.ItemInput{{ProductID: "p1", Qty: 1}}})
	o, err := rig.store.Get(context.Background(), resp.OrderID)
	require.NoError(t, err)

	url := fmt.Sprintf("/verify?Authority=%s&Status=OK&order_id=%s", o.Authority, o.ID)
	rec := rig.do(t, http.MethodGet, url, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// Gateway pulih, retry callback yg sama harus sukses.
	rig.gw.VerifyErr = nil
	rig.gw.VerifyResult = zarinpal.VerifyResult{Success: true, RefID: "R2"}
	rec = rig.do(t, http.MethodGet, url, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyCallbackEndpoint_UnknownOrderStill200(t *testing.T) {
	rig := newHandlerRig(t)
	rec := rig.do(t, http.MethodGet, "/verify?Authority=A1&Status=OK&order_id=ghost", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetOrderEndpoint(t *testing.T) {
	rig := newHandlerRig(t)
	rig.ledger.AddProduct("p1", 5, 100)

	resp := rig.placeOrder(t, httpx.PlaceOrderReq{Items: []orders.ItemInput{{ProductID: "p1", Qty: 2}}})

	rec := rig.do(t, http.MethodGet, "/orders/"+resp.OrderID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, resp.OrderID, body["order_id"])
	assert.Equal(t, string(orders.StatusAwaitingPayment), body["status"])
	assert.Equal(t, float64(200), body["total_toman"])

	rec = rig.do(t, http.MethodGet, "/orders/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrdersEndpoint(t *testing.T) {
	rig := newHandlerRig(t)
	rig.ledger.AddProduct("p1", 10, 100)

	user := int64(42)
	first := rig.placeOrder(t, httpx.PlaceOrderReq{UserID: &user, Items: []orders.ItemInput{{ProductID: "p1", Qty: 1}}})
	second := rig.placeOrder(t, httpx.PlaceOrderReq{UserID: &user, Items: []orders.ItemInput{{ProductID: "p1", Qty: 2}}})
	// Order user lain tidak boleh ikut.
	other := int64(7)
	rig.placeOrder(t, httpx.PlaceOrderReq{UserID: &other, Items: []orders.ItemInput{{ProductID: "p1", Qty: 1}}})

	rec := rig.do(t, http.MethodGet, "/orders?user_id=42", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	ids := []any{list[0]["order_id"], list[1]["order_id"]}
	assert.Contains(t, ids, first.OrderID)
	assert.Contains(t, ids, second.OrderID)

	rec = rig.do(t, http.MethodGet, "/orders", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
