// Package checkouttest menyediakan fake in-memory utk port checkout.
// Semuanya dijaga mutex supaya tes konkuren mengamati atomicity yg sama
// dgn implementasi pgx.
package checkouttest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamedAligholizade/sefareshgiri-bot/internal/orders"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/zarinpal"
)

type MemLedger struct {
	mu    sync.Mutex
	stock map[string]int
	price map[string]int64
}

func NewMemLedger() *MemLedger {
	return &MemLedger{stock: map[string]int{}, price: map[string]int64{}}
}

func (l *MemLedger) AddProduct(id string, units int, price int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[id] = units
	l.price[id] = price
}

func (l *MemLedger) SetPrice(id string, price int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.price[id] = price
}

func (l *MemLedger) Units(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stock[id]
}

func (l *MemLedger) Reserve(_ context.Context, productID string, qty int) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.stock[productID]
	if !ok {
		return 0, orders.ErrProductNotFound
	}
	if s < qty {
		return 0, fmt.Errorf("need %d, have %d: %w", qty, s, orders.ErrOutOfStock)
	}
	l.stock[productID] = s - qty
	return l.price[productID], nil
}

func (l *MemLedger) Release(_ context.Context, productID string, qty int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.stock[productID]; !ok {
		return nil // produk terhapus: no-op
	}
	l.stock[productID] += qty
	return nil
}

type MemStore struct {
	mu         sync.Mutex
	orders     map[string]orders.Order
	items      map[string][]orders.OrderItem
	byExternal map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{
		orders:     map[string]orders.Order{},
		items:      map[string][]orders.OrderItem{},
		byExternal: map[string]string{},
	}
}

func (s *MemStore) Create(_ context.Context, externalID string, userID *int64, lines []orders.Line) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Meniru partial unique index: satu external_id maksimal satu order aktif.
	if externalID != "" {
		if prev, ok := s.byExternal[externalID]; ok && !orders.IsTerminal(s.orders[prev].Status) {
			return orders.Order{}, fmt.Errorf("create order: external id %s masih aktif", externalID)
		}
	}

	var total int64
	for _, ln := range lines {
		total += ln.PriceToman * int64(ln.Qty)
	}
	o := orders.Order{
		ID:            uuid.NewString(),
		ExternalID:    externalID,
		UserID:        userID,
		Status:        orders.StatusPending,
		PaymentStatus: orders.PayNotPaid,
		TotalToman:    total,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	s.orders[o.ID] = o
	for i, ln := range lines {
		s.items[o.ID] = append(s.items[o.ID], orders.OrderItem{
			ID: int64(i + 1), OrderID: o.ID, ProductID: ln.ProductID, Qty: ln.Qty, PriceToman: ln.PriceToman,
		})
	}
	if externalID != "" {
		s.byExternal[externalID] = o.ID
	}
	return o, nil
}

func (s *MemStore) Transition(_ context.Context, orderID string, t orders.Transition) (orders.Order, error) {
	if err := t.Validate(); err != nil {
		return orders.Order{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}

	statusOK := false
	for _, st := range t.Expect {
		if o.Status == st {
			statusOK = true
			break
		}
	}
	payOK := len(t.ExpectPay) == 0
	for _, ps := range t.ExpectPay {
		if o.PaymentStatus == ps {
			payOK = true
			break
		}
	}
	if !statusOK || !payOK {
		return orders.Order{}, orders.ErrConflict
	}

	o.Status = t.To
	if t.ToPay != "" {
		o.PaymentStatus = t.ToPay
	}
	if t.Authority != "" {
		o.Authority = t.Authority
	}
	if t.RefID != "" {
		o.RefID = t.RefID
	}
	o.UpdatedAt = time.Now()
	s.orders[orderID] = o
	return o, nil
}

func (s *MemStore) Get(_ context.Context, orderID string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return o, nil
}

func (s *MemStore) FindByExternalID(_ context.Context, externalID string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byExternal[externalID]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return s.orders[id], nil
}

func (s *MemStore) ListForUser(_ context.Context, userID int64) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Order
	for _, o := range s.orders {
		if o.UserID != nil && *o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) ItemsOf(_ context.Context, orderID string) ([]orders.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]orders.OrderItem(nil), s.items[orderID]...), nil
}

// FakeGateway: gateway deterministik. Set RequestErr/VerifyErr utk fault
// transient, VerifyResult utk hasil verifikasi.
type FakeGateway struct {
	mu           sync.Mutex
	RequestErr   error
	VerifyErr    error
	VerifyResult zarinpal.VerifyResult
	requests     int
	verifies     int
}

func (g *FakeGateway) RequestPayment(_ context.Context, _ int64, _, orderID string) (zarinpal.PaymentRequest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests++
	if g.RequestErr != nil {
		return zarinpal.PaymentRequest{}, g.RequestErr
	}
	authority := fmt.Sprintf("A%06d-%s", g.requests, orderID)
	return zarinpal.PaymentRequest{URL: g.PaymentURL(authority), Authority: authority}, nil
}

func (g *FakeGateway) Verify(_ context.Context, _ string, _ int64) (zarinpal.VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifies++
	if g.VerifyErr != nil {
		return zarinpal.VerifyResult{}, g.VerifyErr
	}
	return g.VerifyResult, nil
}

func (g *FakeGateway) PaymentURL(authority string) string {
	return "https://gateway.test/StartPay/" + authority
}

func (g *FakeGateway) RequestCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests
}

func (g *FakeGateway) VerifyCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verifies
}

// RecordNotifier mencatat event per jenis, utk assert "notify tepat sekali".
type RecordNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *RecordNotifier) Notify(_ context.Context, event string, _ orders.NotificationPayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *RecordNotifier) Count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e == event {
			c++
		}
	}
	return c
}

func (n *RecordNotifier) Total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}
