package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/hamedAligholizade/sefareshgiri-bot/internal/checkout"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/orders"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/redisx"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/zarinpal"
)

// OrderLister: riwayat order per user, dipakai tampilan "My Orders".
type OrderLister interface {
	ListForUser(ctx context.Context, userID int64) ([]orders.Order, error)
}

type ShopHandler struct {
	Coordinator *checkout.Coordinator
	Reconciler  *checkout.Reconciler
	Catalog     *orders.Catalog
	Store       checkout.Store
	Lister      OrderLister
	Redis       *redis.Client
	Service     string
}

type PlaceOrderReq struct {
	ExternalID string             `json:"external_id,omitempty"`
	UserID     *int64             `json:"user_id,omitempty"`
	Items      []orders.ItemInput `json:"items,omitempty"`

	// Bentuk sederhana satu item; dipakai storefront web.
	ProductID string `json:"product_id,omitempty"`
	Qty       int    `json:"qty,omitempty"`
}

type PlaceOrderResp struct {
	OrderID    string `json:"order_id"`
	PaymentURL string `json:"payment_url"`
	TotalToman int64  `json:"total_toman"`
}

type apiError struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	ProductID string `json:"product_id,omitempty"`
}

func (h *ShopHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.placeOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/products", h.listProducts)
	r.Get("/verify", h.verifyCallback)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *ShopHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "VALIDATION_ERROR", Message: "invalid json"})
		return
	}
	items := req.Items
	if len(items) == 0 && req.ProductID != "" {
		items = []orders.ItemInput{{ProductID: req.ProductID, Qty: req.Qty}}
	}

	// Fast path idempotency dari Redis: replay external_id yg sudah sukses
	// dijawab dari cache, tanpa ke coordinator. Cek dulu ordernya masih
	// aktif -- cache tidak boleh menghidupkan lagi order yg sudah terminal.
	// Guard sesungguhnya tetap di DB (FindByExternalID).
	idemKey := ""
	if req.ExternalID != "" {
		idemKey = fmt.Sprintf(redisx.KeyIdemOrderCreate, req.ExternalID)
	}
	if idemKey != "" && h.Redis != nil {
		if s, err := h.Redis.Get(r.Context(), idemKey).Result(); err == nil && s != "" {
			var cached PlaceOrderResp
			if json.Unmarshal([]byte(s), &cached) == nil {
				if o, gerr := h.Store.Get(r.Context(), cached.OrderID); gerr == nil && !orders.IsTerminal(o.Status) {
					writeJSON(w, http.StatusOK, cached)
					return
				}
			}
		}
	}

	res, err := h.Coordinator.PlaceOrder(r.Context(), req.ExternalID, req.UserID, items)
	if err != nil {
		var oos *checkout.OutOfStockError
		switch {
		case errors.As(err, &oos):
			writeJSON(w, http.StatusConflict, apiError{Error: "OUT_OF_STOCK", ProductID: oos.ProductID})
		case errors.Is(err, checkout.ErrValidation):
			writeJSON(w, http.StatusBadRequest, apiError{Error: "VALIDATION_ERROR", Message: err.Error()})
		case errors.Is(err, zarinpal.ErrUnavailable):
			writeJSON(w, http.StatusBadGateway, apiError{Error: "GATEWAY_UNAVAILABLE"})
		default:
			writeJSON(w, http.StatusInternalServerError, apiError{Error: "INTERNAL", Message: err.Error()})
		}
		return
	}

	resp := PlaceOrderResp{
		OrderID:    res.Order.ID,
		PaymentURL: res.PaymentURL,
		TotalToman: res.Order.TotalToman,
	}

	h.cacheStatus(r.Context(), res.Order)
	if idemKey != "" && h.Redis != nil {
		b, _ := json.Marshal(resp)
		_ = h.Redis.Set(r.Context(), idemKey, b, redisx.TTLIdempotency).Err()
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *ShopHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	order, err := h.Coordinator.Cancel(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrAlreadyPaid):
			writeJSON(w, http.StatusConflict, apiError{Error: "ALREADY_PAID"})
		case errors.Is(err, checkout.ErrAlreadyCancelled):
			writeJSON(w, http.StatusConflict, apiError{Error: "ALREADY_CANCELLED"})
		case errors.Is(err, orders.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, apiError{Error: "NOT_FOUND"})
		default:
			writeJSON(w, http.StatusInternalServerError, apiError{Error: "INTERNAL", Message: err.Error()})
		}
		return
	}

	h.cacheStatus(r.Context(), order)
	writeJSON(w, http.StatusOK, map[string]any{"order_id": order.ID, "status": order.Status})
}

// verifyCallback: webhook dari Zarinpal setelah user selesai di halaman
// pembayaran. WAJIB balas 200 juga utk order yg sudah direkonsiliasi,
// supaya retry gateway tidak dianggap delivery gagal.
func (h *ShopHandler) verifyCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	authority := firstOf(q.Get("Authority"), q.Get("authority"))
	status := firstOf(q.Get("Status"), q.Get("status"))
	orderID := q.Get("order_id")

	// Shortcut dedup di Redis: callback yg persis sama sudah pernah selesai
	// diproses, tidak usah sentuh DB/gateway lagi. Guard di DB tetap sumber
	// kebenaran; key ini cuma akselerator.
	dedupKey := fmt.Sprintf(redisx.KeyDedup, h.Service, orderID+":"+authority)
	if h.Redis != nil {
		if seen, err := redisx.Exists(r.Context(), h.Redis, dedupKey); err == nil && seen {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "این سفارش قبلا پردازش شده است.")
			return
		}
	}

	outcome, err := h.Reconciler.HandleCallback(r.Context(), authority, status, orderID)
	if err != nil {
		// Fault transient: 5xx biar gateway nge-retry callback-nya.
		http.Error(w, "خطا در تایید پرداخت. لطفا با پشتیبانی تماس بگیرید.", http.StatusInternalServerError)
		return
	}

	if o, gerr := h.Store.Get(r.Context(), orderID); gerr == nil {
		h.cacheStatus(r.Context(), o)
	}
	if h.Redis != nil && outcome != checkout.OutcomeOrderNotFound {
		_ = h.Redis.Set(r.Context(), dedupKey, 1, redisx.TTLDedup).Err()
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	switch outcome {
	case checkout.OutcomeConfirmed:
		fmt.Fprint(w, "پرداخت با موفقیت انجام شد. می‌توانید به ربات بازگردید.")
	case checkout.OutcomeFailed:
		if status != checkout.CallbackStatusOK {
			fmt.Fprint(w, "پرداخت انجام نشد. می‌توانید به ربات بازگردید و مجددا تلاش کنید.")
		} else {
			fmt.Fprint(w, "پرداخت ناموفق بود. می‌توانید به ربات بازگردید و مجددا تلاش کنید.")
		}
	case checkout.OutcomeAlreadyReconciled:
		fmt.Fprint(w, "این سفارش قبلا پردازش شده است.")
	default:
		fmt.Fprint(w, "سفارش مورد نظر یافت نشد.")
	}
}

func (h *ShopHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	// 2) fallback DB
	o, err := h.Store.Get(ctx, orderID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, apiError{Error: "NOT_FOUND"})
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, statusBody(o))
}

func (h *ShopHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "VALIDATION_ERROR", Message: "user_id wajib angka"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Lister.ListForUser(ctx, userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "INTERNAL", Message: err.Error()})
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, o := range list {
		out = append(out, statusBody(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ShopHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.ListAvailable(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "INTERNAL", Message: err.Error()})
		return
	}
	type productView struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		Description    string `json:"description"`
		PriceToman     int64  `json:"price_toman"`
		ImagePath      string `json:"image_path"`
		AvailableUnits int    `json:"available_units"`
	}
	out := make([]productView, 0, len(ps))
	for _, p := range ps {
		out = append(out, productView{p.ID, p.Name, p.Description, p.PriceToman, p.ImagePath, p.AvailableUnits})
	}
	writeJSON(w, http.StatusOK, out)
}

func statusBody(o orders.Order) map[string]any {
	return map[string]any{
		"order_id":       o.ID,
		"status":         o.Status,
		"payment_status": o.PaymentStatus,
		"total_toman":    o.TotalToman,
		"ref_id":         o.RefID,
	}
}

// cacheStatus: tulis cache status order di Redis, best effort saja.
func (h *ShopHandler) cacheStatus(ctx context.Context, o orders.Order) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	b, _ := json.Marshal(statusBody(o))
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}

func firstOf(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
