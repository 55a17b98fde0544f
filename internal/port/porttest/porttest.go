// Package porttest provides in-memory implementations of the port
// interfaces for tests.
package porttest

import (
	"context"
	"sort"
	"sync"

	"github.com/rl1809/shoe-store/internal/core/domain"
	"github.com/rl1809/shoe-store/internal/port"
)

// Store is an in-memory ShoeRepository, OrderRepository and
// UserRepository. InTx holds the store lock for the whole transaction, which
// gives it the same serial behaviour as row locks on the real database.
type Store struct {
	mu     sync.Mutex
	shoes  map[string]domain.Shoe
	orders map[string]domain.Order
	users  map[string]domain.User

	LockCalls  map[string]int
	LockOrder  []string
	WriteCalls int
	// Conflicts makes the next n LockSizes calls fail as if a deadlock was detected
	Conflicts int
	TxCount   int
}

func NewStore(shoes ...domain.Shoe) *Store {
	s := &Store{
		shoes:     make(map[string]domain.Shoe),
		orders:    make(map[string]domain.Order),
		users:     make(map[string]domain.User),
		LockCalls: make(map[string]int),
	}
	for _, sh := range shoes {
		sh.Sizes = domain.CloneSizes(sh.Sizes)
		s.shoes[sh.ID] = sh
	}
	return s
}

func (s *Store) AddUser(email string, role domain.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = domain.User{ID: "u-" + email, Email: email, Name: email, Role: role}
}

func (s *Store) Sizes(id string) []domain.SizeStock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneSizes(s.shoes[id].Sizes)
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Store) GetShoe(_ context.Context, id string) (*domain.Shoe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shoes[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	sh.Sizes = domain.CloneSizes(sh.Sizes)
	return &sh, nil
}

func (s *Store) QueryShoes(_ context.Context, q domain.ShoeQuery) ([]domain.Shoe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Shoe
	for _, id := range s.sortedIDs() {
		sh := s.shoes[id]
		if len(q.IDs) > 0 && !contains(q.IDs, sh.ID) {
			continue
		}
		if len(q.Brands) > 0 && !contains(q.Brands, sh.Brand) {
			continue
		}
		if len(q.Categories) > 0 && !contains(q.Categories, sh.Category) {
			continue
		}
		out = append(out, sh)
		if q.Take > 0 && len(out) == q.Take {
			break
		}
	}
	return out, nil
}

func (s *Store) ListShoesAfter(_ context.Context, afterID string, limit int) ([]domain.Shoe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Shoe
	for _, id := range s.sortedIDs() {
		if id <= afterID {
			continue
		}
		out = append(out, s.shoes[id])
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) DistinctShoeValues(_ context.Context, field domain.ShoeField) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, sh := range s.shoes {
		v := sh.Brand
		if field == domain.ShoeFieldCategory {
			v = sh.Category
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) CreateShoe(_ context.Context, shoe domain.Shoe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shoes[shoe.ID]; ok {
		return port.ErrAlreadyExists
	}
	s.shoes[shoe.ID] = shoe
	return nil
}

func (s *Store) UpdateShoe(_ context.Context, shoe domain.Shoe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.shoes[shoe.ID]
	if !ok {
		return port.ErrNotFound
	}
	if cur.Version != shoe.Version {
		return port.ErrVersionConflict
	}
	shoe.Version++
	shoe.Sizes = domain.CloneSizes(shoe.Sizes)
	s.shoes[shoe.ID] = shoe
	return nil
}

func (s *Store) DeleteShoe(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shoes[id]; !ok {
		return port.ErrNotFound
	}
	delete(s.shoes, id)
	return nil
}

func (s *Store) InTx(ctx context.Context, fn func(tx port.StockTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TxCount++

	t := &tx{store: s, sizes: make(map[string][]domain.SizeStock), versions: make(map[string]int)}
	if err := fn(t); err != nil {
		return err
	}

	for _, o := range t.orders {
		s.orders[o.ID] = o
	}
	for id, sizes := range t.sizes {
		sh := s.shoes[id]
		sh.Sizes = sizes
		sh.Version = t.versions[id]
		s.shoes[id] = sh
	}
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &o, nil
}

func (s *Store) ListOrders(_ context.Context, email string) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if email == "" || o.Contact.Email == email {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateOrderProgress(_ context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orders[order.ID]
	if !ok {
		return port.ErrNotFound
	}
	cur.Status = order.Status
	cur.PaymentStatus = order.PaymentStatus
	cur.DeliveryDate = order.DeliveryDate
	cur.UpdatedAt = order.UpdatedAt
	s.orders[order.ID] = cur
	return nil
}

func (s *Store) DeleteOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return port.ErrNotFound
	}
	delete(s.orders, id)
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &u, nil
}

func (s *Store) CreateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Email]; ok {
		return port.ErrAlreadyExists
	}
	s.users[u.Email] = u
	return nil
}

func (s *Store) sortedIDs() []string {
	ids := make([]string, 0, len(s.shoes))
	for id := range s.shoes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// tx stages writes until InTx commits. The store lock is already held.
type tx struct {
	store    *Store
	orders   []domain.Order
	sizes    map[string][]domain.SizeStock
	versions map[string]int
}

func (t *tx) InsertOrder(_ context.Context, order domain.Order) error {
	if _, ok := t.store.orders[order.ID]; ok {
		return port.ErrAlreadyExists
	}
	order.Lines = append([]domain.OrderLine(nil), order.Lines...)
	t.orders = append(t.orders, order)
	return nil
}

func (t *tx) LockSizes(_ context.Context, productID string) ([]domain.SizeStock, int, error) {
	t.store.LockCalls[productID]++
	t.store.LockOrder = append(t.store.LockOrder, productID)
	if t.store.Conflicts > 0 {
		t.store.Conflicts--
		return nil, 0, port.ErrVersionConflict
	}
	sh, ok := t.store.shoes[productID]
	if !ok {
		return nil, 0, port.ErrNotFound
	}
	return domain.CloneSizes(sh.Sizes), sh.Version, nil
}

func (t *tx) WriteSizes(_ context.Context, productID string, sizes []domain.SizeStock, version int) error {
	t.store.WriteCalls++
	if t.store.shoes[productID].Version != version {
		return port.ErrVersionConflict
	}
	t.sizes[productID] = domain.CloneSizes(sizes)
	t.versions[productID] = version + 1
	return nil
}

type Cache struct {
	mu       sync.Mutex
	keys     map[string]bool
	Released []string
	Carts    map[string][]domain.CartEntry
}

func NewCache() *Cache {
	return &Cache{keys: make(map[string]bool), Carts: make(map[string][]domain.CartEntry)}
}

func (c *Cache) SetIdempotency(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keys[key] {
		return false, nil
	}
	c.keys[key] = true
	return true, nil
}

func (c *Cache) ReleaseIdempotency(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	c.Released = append(c.Released, key)
	return nil
}

func (c *Cache) SaveCart(_ context.Context, sessionID string, entries []domain.CartEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Carts[sessionID] = append([]domain.CartEntry(nil), entries...)
	return nil
}

func (c *Cache) LoadCart(_ context.Context, sessionID string) ([]domain.CartEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, ok := c.Carts[sessionID]
	if !ok {
		return []domain.CartEntry{}, nil
	}
	return append([]domain.CartEntry(nil), entries...), nil
}

func (c *Cache) DeleteCart(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Carts, sessionID)
	return nil
}

// Identity resolves every request to the same caller; nil means anonymous.
type Identity struct {
	Ident *domain.Identity
}

func (s Identity) Identity(context.Context) (*domain.Identity, bool) {
	return s.Ident, s.Ident != nil
}

// As resolves every request to a caller with the given email.
func As(email string) Identity {
	return Identity{Ident: &domain.Identity{Subject: "sub-" + email, Email: email, Name: email}}
}

var Anonymous = Identity{}

type Blobs struct{}

func (Blobs) PublicURL(_ context.Context, ref string) (string, error) {
	return "https://cdn.test/" + ref, nil
}

// Notifier records published updates and fans them out to subscribers of
// the same product.
type Notifier struct {
	// OnSubscribe runs after a subscription is registered and before
	// SubscribeStock returns.
	OnSubscribe func(productID string)

	mu        sync.Mutex
	published []domain.StockUpdate
	subs      map[string][]chan domain.StockUpdate
}

func (n *Notifier) PublishStock(_ context.Context, update domain.StockUpdate) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, update)
	for _, ch := range n.subs[update.ProductID] {
		select {
		case ch <- update:
		default:
		}
	}
	return nil
}

func (n *Notifier) SubscribeStock(ctx context.Context, productID string) (<-chan domain.StockUpdate, error) {
	ch := make(chan domain.StockUpdate, 16)

	n.mu.Lock()
	if n.subs == nil {
		n.subs = make(map[string][]chan domain.StockUpdate)
	}
	n.subs[productID] = append(n.subs[productID], ch)
	n.mu.Unlock()

	if n.OnSubscribe != nil {
		n.OnSubscribe(productID)
	}

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		defer n.mu.Unlock()
		subs := n.subs[productID]
		for i, c := range subs {
			if c == ch {
				n.subs[productID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

// Subscribers reports how many live subscriptions productID has.
func (n *Notifier) Subscribers(productID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[productID])
}

func (n *Notifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.published)
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
