package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/shoe-store/internal/core/domain"
	"github.com/rl1809/shoe-store/internal/port"
)

const (
	defaultPageSize = 13
	maxPageSize     = 100
)

type Page struct {
	Shoes  []domain.Shoe `json:"shoes"`
	Cursor string        `json:"cursor"`
	Done   bool          `json:"done"`
}

// InventoryService is the read side of the stock ledger plus the admin
// mutation path. Shoppers never write stock through it.
type InventoryService struct {
	shoes   port.ShoeRepository
	blobs   port.BlobResolver
	access  access
	feed    *StockFeed
	timeout time.Duration
	logger  *slog.Logger
}

func NewInventoryService(repos Repositories, blobs port.BlobResolver, identity port.IdentityProvider,
	feed *StockFeed, timeout time.Duration, logger *slog.Logger) *InventoryService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &InventoryService{
		shoes:   repos.Shoes,
		blobs:   blobs,
		access:  access{identity: identity, users: repos.Users},
		feed:    feed,
		timeout: timeout,
		logger:  logger,
	}
}

func (s *InventoryService) ReadStock(ctx context.Context, productID string) ([]domain.SizeStock, error) {
	shoe, err := s.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	return shoe.Sizes, nil
}

func (s *InventoryService) Get(ctx context.Context, id string) (*domain.Shoe, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	shoe, err := s.shoes.GetShoe(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get shoe %s: %w", id, err)
	}
	return shoe, nil
}

func (s *InventoryService) Query(ctx context.Context, q domain.ShoeQuery) ([]domain.Shoe, error) {
	if q.Take < 0 {
		return nil, invalid("take must not be negative")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	shoes, err := s.shoes.QueryShoes(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query shoes: %w", err)
	}
	if shoes == nil {
		shoes = []domain.Shoe{}
	}
	return shoes, nil
}

func (s *InventoryService) Distinct(ctx context.Context, field domain.ShoeField) ([]string, error) {
	if !field.Valid() {
		return nil, invalid("cannot list distinct %q", field)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	values, err := s.shoes.DistinctShoeValues(ctx, field)
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", field, err)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

// Page walks the inventory in id order. The cursor is opaque to callers; an
// empty cursor starts from the beginning.
func (s *InventoryService) Page(ctx context.Context, cursor string, limit int) (*Page, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	after, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// one extra row tells us whether another page exists
	shoes, err := s.shoes.ListShoesAfter(ctx, after, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list shoes: %w", err)
	}

	page := &Page{Shoes: shoes, Done: len(shoes) <= limit}
	if !page.Done {
		page.Shoes = shoes[:limit]
	}
	if page.Shoes == nil {
		page.Shoes = []domain.Shoe{}
	}
	if n := len(page.Shoes); n > 0 {
		page.Cursor = encodeCursor(page.Shoes[n-1].ID)
	} else {
		page.Cursor = cursor
	}
	return page, nil
}

func (s *InventoryService) Create(ctx context.Context, shoe domain.Shoe) (*domain.Shoe, error) {
	if _, err := s.access.requireAdmin(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now()
	shoe.ID = uuid.NewString()
	shoe.Version = 0
	shoe.CreatedAt = now
	shoe.UpdatedAt = now
	shoe.Sizes = domain.CloneSizes(shoe.Sizes)

	if shoe.ImageID != "" {
		url, err := s.blobs.PublicURL(ctx, shoe.ImageID)
		if err != nil {
			return nil, fmt.Errorf("resolve image: %w", err)
		}
		shoe.DefaultImage = url
	}
	if err := validateShoe(shoe); err != nil {
		return nil, err
	}

	if err := s.shoes.CreateShoe(ctx, shoe); err != nil {
		return nil, fmt.Errorf("create shoe: %w", err)
	}
	s.logger.Info("shoe created", "shoe_id", shoe.ID, "name", shoe.Name)
	return &shoe, nil
}

// Update applies commands in order and writes the result with a version
// check. A concurrent checkout or edit in between yields ErrConflict; the
// caller re-reads and tries again.
func (s *InventoryService) Update(ctx context.Context, id string, cmds ...domain.UpdateCommand) (*domain.Shoe, error) {
	ident, err := s.access.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if len(cmds) == 0 {
		return nil, invalid("no changes")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	shoe, err := s.shoes.GetShoe(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get shoe %s: %w", id, err)
	}

	sizesChanged := false
	for _, cmd := range cmds {
		switch c := cmd.(type) {
		case domain.SetImage:
			url, err := s.blobs.PublicURL(ctx, c.ImageID)
			if err != nil {
				return nil, fmt.Errorf("resolve image: %w", err)
			}
			c.URL = url
			cmd = c
		case domain.SetSizes:
			sizesChanged = true
		}
		cmd.Apply(shoe)
	}
	if err := validateShoe(*shoe); err != nil {
		return nil, err
	}
	shoe.UpdatedAt = time.Now()

	err = s.shoes.UpdateShoe(ctx, *shoe)
	if errors.Is(err, port.ErrVersionConflict) {
		return nil, fmt.Errorf("%w: shoe %s changed since it was read", ErrConflict, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update shoe %s: %w", id, err)
	}
	shoe.Version++

	if sizesChanged {
		s.feed.Push(domain.StockUpdate{ProductID: id, Sizes: domain.CloneSizes(shoe.Sizes), At: shoe.UpdatedAt})
	}
	s.logger.Info("shoe updated", "shoe_id", id, "changes", len(cmds), "by", ident.Email)
	return shoe, nil
}

func (s *InventoryService) Delete(ctx context.Context, id string) error {
	ident, err := s.access.requireAdmin(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.shoes.DeleteShoe(ctx, id); err != nil {
		return fmt.Errorf("delete shoe %s: %w", id, err)
	}
	s.logger.Info("shoe deleted", "shoe_id", id, "by", ident.Email)
	return nil
}

func validateShoe(shoe domain.Shoe) error {
	if strings.TrimSpace(shoe.Name) == "" {
		return invalid("name is required")
	}
	if shoe.Price.IsNegative() {
		return invalid("price must not be negative")
	}
	if shoe.DiscountPrice != nil && shoe.DiscountPrice.IsNegative() {
		return invalid("discount price must not be negative")
	}
	if !wholeCents(shoe.Price) || (shoe.DiscountPrice != nil && !wholeCents(*shoe.DiscountPrice)) {
		return invalid("prices carry at most %d decimal places", moneyPlaces)
	}
	if err := domain.ValidateSizes(shoe.Sizes); err != nil {
		return invalid("%v", err)
	}
	return nil
}

func encodeCursor(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func decodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", invalid("malformed cursor")
	}
	return string(b), nil
}
