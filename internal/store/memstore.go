package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"commerce-core/internal/models"
)

// MemStore is an in-memory Store used by tests and local development runs.
// Locking semantics mirror the SQL implementation: a row read through
// StockForUpdate/OrderForUpdate/BookingForUpdate stays locked until the
// enclosing transaction commits or rolls back, and writes staged inside a
// transaction become visible only on commit.
type MemStore struct {
	mu sync.Mutex

	products    map[int64]models.Product
	stocks      map[int64]models.ProductStock
	movements   []models.Movement
	orders      map[int64]models.Order
	orderItems  map[int64][]models.OrderItem
	bookings    map[int64]models.Booking
	technicians map[int64]models.Technician
	alerts      map[int64]models.Alert

	stockLocks   map[int64]*sync.Mutex
	orderLocks   map[int64]*sync.Mutex
	bookingLocks map[int64]*sync.Mutex

	seq int64
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		products:     make(map[int64]models.Product),
		stocks:       make(map[int64]models.ProductStock),
		orders:       make(map[int64]models.Order),
		orderItems:   make(map[int64][]models.OrderItem),
		bookings:     make(map[int64]models.Booking),
		technicians:  make(map[int64]models.Technician),
		alerts:       make(map[int64]models.Alert),
		stockLocks:   make(map[int64]*sync.Mutex),
		orderLocks:   make(map[int64]*sync.Mutex),
		bookingLocks: make(map[int64]*sync.Mutex),
	}
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }

func (s *MemStore) nextID() int64 {
	s.seq++
	return s.seq
}

// AddProduct seeds a product with its stock row.
func (s *MemStore) AddProduct(p models.Product, stock int, lowThreshold, maxStock *int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.nextID()
	}
	s.products[p.ID] = p
	s.stocks[p.ID] = models.ProductStock{
		ProductID:         p.ID,
		Stock:             stock,
		LowStockThreshold: lowThreshold,
		MaxStock:          maxStock,
		UpdatedAt:         time.Now(),
	}
	return p.ID
}

// AddTechnician seeds a technician.
func (s *MemStore) AddTechnician(t models.Technician) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.nextID()
	}
	s.technicians[t.ID] = t
	return t.ID
}

// AddBooking seeds a booking.
func (s *MemStore) AddBooking(b models.Booking) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.nextID()
	}
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	s.bookings[b.ID] = b
	return b.ID
}

func (s *MemStore) rowMutex(locks map[int64]*sync.Mutex, id int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := locks[id]
	if !ok {
		l = &sync.Mutex{}
		locks[id] = l
	}
	return l
}

// WithTx implements Store.
func (s *MemStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx := &memTx{
		s:               s,
		held:            make(map[*sync.Mutex]bool),
		pendingStocks:   make(map[int64]models.ProductStock),
		pendingOrders:   make(map[int64]models.Order),
		pendingBookings: make(map[int64]models.Booking),
	}
	if err := fn(tx); err != nil {
		tx.release()
		return err
	}
	tx.commit()
	return nil
}

type memTx struct {
	s *MemStore

	held      map[*sync.Mutex]bool
	heldOrder []*sync.Mutex

	pendingStocks    map[int64]models.ProductStock
	pendingMovements []models.Movement
	pendingOrders    map[int64]models.Order
	pendingItems     []models.OrderItem
	pendingBookings  map[int64]models.Booking
}

func (t *memTx) lock(l *sync.Mutex) {
	if t.held[l] {
		return
	}
	l.Lock()
	t.held[l] = true
	t.heldOrder = append(t.heldOrder, l)
}

func (t *memTx) release() {
	for i := len(t.heldOrder) - 1; i >= 0; i-- {
		t.heldOrder[i].Unlock()
	}
	t.held = nil
	t.heldOrder = nil
}

func (t *memTx) commit() {
	s := t.s
	s.mu.Lock()
	for id, ps := range t.pendingStocks {
		s.stocks[id] = ps
	}
	s.movements = append(s.movements, t.pendingMovements...)
	for id, o := range t.pendingOrders {
		s.orders[id] = o
	}
	for _, item := range t.pendingItems {
		s.orderItems[item.OrderID] = append(s.orderItems[item.OrderID], item)
	}
	for id, b := range t.pendingBookings {
		s.bookings[id] = b
	}
	s.mu.Unlock()
	t.release()
}

// StockForUpdate implements Tx.
func (t *memTx) StockForUpdate(ctx context.Context, productID int64) (*models.ProductStock, error) {
	t.lock(t.s.rowMutex(t.s.stockLocks, productID))

	if ps, ok := t.pendingStocks[productID]; ok {
		return &ps, nil
	}
	t.s.mu.Lock()
	ps, ok := t.s.stocks[productID]
	t.s.mu.Unlock()
	if !ok {
		return nil, &models.NotFoundError{Entity: "product stock", ID: productID}
	}
	return &ps, nil
}

// UpdateStock implements Tx.
func (t *memTx) UpdateStock(ctx context.Context, productID int64, newStock int) error {
	ps, err := t.StockForUpdate(ctx, productID)
	if err != nil {
		return err
	}
	ps.Stock = newStock
	ps.UpdatedAt = time.Now()
	t.pendingStocks[productID] = *ps
	return nil
}

// InsertMovement implements Tx.
func (t *memTx) InsertMovement(ctx context.Context, m *models.Movement) error {
	t.s.mu.Lock()
	m.ID = t.s.nextID()
	t.s.mu.Unlock()
	m.CreatedAt = time.Now()
	t.pendingMovements = append(t.pendingMovements, *m)
	return nil
}

// MovementsByReference implements Tx.
func (t *memTx) MovementsByReference(ctx context.Context, refID int64, refType models.ReferenceType) ([]models.Movement, error) {
	t.s.mu.Lock()
	committed := filterMovements(t.s.movements, refID, refType)
	t.s.mu.Unlock()
	return append(committed, filterMovements(t.pendingMovements, refID, refType)...), nil
}

// ProductsByIDs implements Tx.
func (t *memTx) ProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	products := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := t.s.products[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

// InsertOrder implements Tx.
func (t *memTx) InsertOrder(ctx context.Context, o *models.Order) error {
	t.s.mu.Lock()
	o.ID = t.s.nextID()
	t.s.mu.Unlock()
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
	t.pendingOrders[o.ID] = *o
	return nil
}

// InsertOrderItem implements Tx.
func (t *memTx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	t.s.mu.Lock()
	item.ID = t.s.nextID()
	t.s.mu.Unlock()
	t.pendingItems = append(t.pendingItems, *item)
	return nil
}

func (t *memTx) order(id int64) (models.Order, bool) {
	if o, ok := t.pendingOrders[id]; ok {
		return o, true
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	o, ok := t.s.orders[id]
	return o, ok
}

// OrderForUpdate implements Tx.
func (t *memTx) OrderForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	t.lock(t.s.rowMutex(t.s.orderLocks, id))

	o, ok := t.order(id)
	if !ok || o.IsDeleted {
		return nil, &models.NotFoundError{Entity: "order", ID: id}
	}
	return &o, nil
}

// OrderItems implements Tx.
func (t *memTx) OrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	t.s.mu.Lock()
	items := append([]models.OrderItem(nil), t.s.orderItems[orderID]...)
	t.s.mu.Unlock()
	for _, item := range t.pendingItems {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	return items, nil
}

// UpdateOrderStatus implements Tx.
func (t *memTx) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus, cancelReason string) error {
	o, ok := t.order(id)
	if !ok {
		return &models.NotFoundError{Entity: "order", ID: id}
	}
	o.Status = status
	o.CancelReason = cancelReason
	o.UpdatedAt = time.Now()
	t.pendingOrders[id] = o
	return nil
}

// SoftDeleteOrder implements Tx.
func (t *memTx) SoftDeleteOrder(ctx context.Context, id int64) error {
	o, ok := t.order(id)
	if !ok {
		return &models.NotFoundError{Entity: "order", ID: id}
	}
	o.IsDeleted = true
	o.UpdatedAt = time.Now()
	t.pendingOrders[id] = o
	return nil
}

func (t *memTx) booking(id int64) (models.Booking, bool) {
	if b, ok := t.pendingBookings[id]; ok {
		return b, true
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	b, ok := t.s.bookings[id]
	return b, ok
}

// BookingForUpdate implements Tx.
func (t *memTx) BookingForUpdate(ctx context.Context, id int64) (*models.Booking, error) {
	t.lock(t.s.rowMutex(t.s.bookingLocks, id))

	b, ok := t.booking(id)
	if !ok {
		return nil, &models.NotFoundError{Entity: "booking", ID: id}
	}
	return &b, nil
}

// UpdateBookingStatus implements Tx.
func (t *memTx) UpdateBookingStatus(ctx context.Context, id int64, status models.BookingStatus) error {
	b, ok := t.booking(id)
	if !ok {
		return &models.NotFoundError{Entity: "booking", ID: id}
	}
	b.Status = status
	b.UpdatedAt = time.Now()
	t.pendingBookings[id] = b
	return nil
}

// AssignBooking implements Tx.
func (t *memTx) AssignBooking(ctx context.Context, bookingID, technicianID int64) error {
	b, ok := t.booking(bookingID)
	if !ok {
		return &models.NotFoundError{Entity: "booking", ID: bookingID}
	}
	b.TechnicianID = &technicianID
	b.UpdatedAt = time.Now()
	t.pendingBookings[bookingID] = b
	return nil
}

// AppendBookingNote implements Tx.
func (t *memTx) AppendBookingNote(ctx context.Context, bookingID int64, note string) error {
	b, ok := t.booking(bookingID)
	if !ok {
		return &models.NotFoundError{Entity: "booking", ID: bookingID}
	}
	if b.Notes == "" {
		b.Notes = note
	} else {
		b.Notes = strings.Join([]string{b.Notes, note}, "\n")
	}
	b.UpdatedAt = time.Now()
	t.pendingBookings[bookingID] = b
	return nil
}

// TechnicianByID implements Tx.
func (t *memTx) TechnicianByID(ctx context.Context, id int64) (*models.Technician, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	tech, ok := t.s.technicians[id]
	if !ok {
		return nil, &models.NotFoundError{Entity: "technician", ID: id}
	}
	return &tech, nil
}

// TechnicianBookings implements Tx.
func (t *memTx) TechnicianBookings(ctx context.Context, technicianID int64, date time.Time) ([]models.Booking, error) {
	t.s.mu.Lock()
	all := make([]models.Booking, 0, len(t.s.bookings))
	for _, b := range t.s.bookings {
		all = append(all, b)
	}
	t.s.mu.Unlock()

	var out []models.Booking
	for _, b := range all {
		if staged, ok := t.pendingBookings[b.ID]; ok {
			b = staged
		}
		if b.TechnicianID == nil || *b.TechnicianID != technicianID || b.Status == models.BookingStatusCancelled {
			continue
		}
		if b.ScheduledDate != nil && sameDay(*b.ScheduledDate, date) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func filterMovements(movements []models.Movement, refID int64, refType models.ReferenceType) []models.Movement {
	var out []models.Movement
	for _, m := range movements {
		if m.ReferenceID == refID && m.ReferenceType == refType {
			out = append(out, m)
		}
	}
	return out
}

// ProductsByIDs implements Store.
func (s *MemStore) ProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	products := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

// ProductStock implements Store.
func (s *MemStore) ProductStock(ctx context.Context, productID int64) (*models.ProductStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.stocks[productID]
	if !ok {
		return nil, &models.NotFoundError{Entity: "product stock", ID: productID}
	}
	return &ps, nil
}

// ProductStocks implements Store.
func (s *MemStore) ProductStocks(ctx context.Context) ([]models.ProductStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ProductStock, 0, len(s.stocks))
	for _, ps := range s.stocks {
		out = append(out, ps)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// OrderByID implements Store.
func (s *MemStore) OrderByID(ctx context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.IsDeleted {
		return nil, &models.NotFoundError{Entity: "order", ID: id}
	}
	return &o, nil
}

// OrderItems implements Store.
func (s *MemStore) OrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OrderItem(nil), s.orderItems[orderID]...), nil
}

// MovementsByReference implements Store.
func (s *MemStore) MovementsByReference(ctx context.Context, refID int64, refType models.ReferenceType) ([]models.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterMovements(s.movements, refID, refType), nil
}

// ProductMovements implements Store.
func (s *MemStore) ProductMovements(ctx context.Context, productID int64) ([]models.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Movement
	for _, m := range s.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

// BookingByID implements Store.
func (s *MemStore) BookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, &models.NotFoundError{Entity: "booking", ID: id}
	}
	return &b, nil
}

// UnresolvedAlerts implements Store.
func (s *MemStore) UnresolvedAlerts(ctx context.Context, productID int64) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Alert
	for _, a := range s.alerts {
		if a.ProductID == productID && !a.IsResolved {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AlertByID implements Store.
func (s *MemStore) AlertByID(ctx context.Context, id int64) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, &models.NotFoundError{Entity: "alert", ID: id}
	}
	return &a, nil
}

// InsertAlert implements Store. Mirrors the SQL partial unique index: when an
// unresolved alert of the same type already exists the insert is a no-op and
// the alert keeps a zero ID.
func (s *MemStore) InsertAlert(ctx context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.alerts {
		if existing.ProductID == alert.ProductID && existing.Type == alert.Type && !existing.IsResolved {
			return nil
		}
	}
	alert.ID = s.nextID()
	alert.CreatedAt = time.Now()
	s.alerts[alert.ID] = *alert
	return nil
}

// ResolveAlert implements Store.
func (s *MemStore) ResolveAlert(ctx context.Context, alertID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[alertID]
	if !ok || a.IsResolved {
		return &models.NotFoundError{Entity: "unresolved alert", ID: alertID}
	}
	a.IsResolved = true
	a.ResolvedAt = &at
	s.alerts[alertID] = a
	return nil
}
