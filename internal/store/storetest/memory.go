// Package storetest provides an in-memory store for service and handler tests.
package storetest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"coffee-shop/internal/models"
	"coffee-shop/internal/store"

	"github.com/shopspring/decimal"
)

// ErrInjected is returned by operations failed on purpose through the fault flags.
var ErrInjected = errors.New("storetest: injected failure")

// Memory mirrors the transactional behaviour of store.Store. Every
// multi-row write either applies fully or not at all.
type Memory struct {
	mu sync.Mutex

	// FailOrderItemInsert fails CreateOrderWithItems after the order row is staged.
	FailOrderItemInsert bool
	// FailRatingUpdate fails CreateReviewAndRefreshRating after the review is staged.
	FailRatingUpdate bool
	// HideExistingReviews makes GetReviewByUserAndProduct report no review,
	// simulating a concurrent insert landing between check and write.
	HideExistingReviews bool
	// Err, when set, is returned by every read.
	Err error

	products  map[int64]*models.Product
	users     map[int64]string
	orders    []models.Order
	items     []models.OrderItem
	reviews   []models.Review
	favorites []models.Favorite
	nextID    int64
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		products: make(map[int64]*models.Product),
		users:    make(map[int64]string),
	}
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

// AddProduct seeds a catalog product.
func (m *Memory) AddProduct(p models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.products[p.ID] = &cp
}

// AddUser seeds a user so joined reads can resolve the email.
func (m *Memory) AddUser(id int64, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = email
}

// SetOrderStatus changes the status of an existing order.
func (m *Memory) SetOrderStatus(orderID int64, status models.OrderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].ID == orderID {
			m.orders[i].Status = status
		}
	}
}

// Orders returns a copy of all persisted orders.
func (m *Memory) Orders() []models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Order(nil), m.orders...)
}

// Items returns a copy of all persisted order items.
func (m *Memory) Items() []models.OrderItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.OrderItem(nil), m.items...)
}

// Reviews returns a copy of all persisted reviews.
func (m *Memory) Reviews() []models.Review {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Review(nil), m.reviews...)
}

// Product returns a copy of a product, or nil.
func (m *Memory) Product(id int64) *models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (m *Memory) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if p := m.Product(id); p != nil {
		return p, nil
	}
	return nil, store.ErrNotFound
}

func (m *Memory) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	result := []models.Product{}
	for _, p := range m.products {
		if filter.Roast != "" && filter.Roast != "all" && !strings.EqualFold(p.RoastType, filter.Roast) {
			continue
		}
		if filter.Origin != "" && filter.Origin != "all" && !strings.EqualFold(p.Origin, filter.Origin) {
			continue
		}
		if filter.FeaturedOnly && !p.IsFeatured {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].IsFeatured != result[j].IsFeatured {
			return result[i].IsFeatured
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (m *Memory) ListFeaturedProducts(ctx context.Context, limit int) ([]models.Product, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	result := []models.Product{}
	for _, p := range m.products {
		if p.IsFeatured {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Rating.GreaterThan(result[j].Rating)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *Memory) CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := *order
	staged.ID = m.id()
	staged.OrderDate = time.Now()

	stagedItems := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		if m.FailOrderItemInsert {
			return ErrInjected
		}
		if _, ok := m.products[item.ProductID]; !ok {
			return errors.New("storetest: foreign key violation on product_id")
		}
		item.ID = m.id()
		item.OrderID = staged.ID
		stagedItems = append(stagedItems, item)
	}

	m.orders = append(m.orders, staged)
	m.items = append(m.items, stagedItems...)
	*order = staged
	copy(items, stagedItems)
	return nil
}

func (m *Memory) GetOrdersWithItemsByUserID(ctx context.Context, userID int64) ([]models.OrderWithItems, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	result := []models.OrderWithItems{}
	for i := len(m.orders) - 1; i >= 0; i-- {
		o := m.orders[i]
		if o.UserID != userID {
			continue
		}
		entry := models.OrderWithItems{Order: o, Items: []models.OrderLine{}}
		for _, item := range m.items {
			if item.OrderID != o.ID {
				continue
			}
			name := ""
			if p, ok := m.products[item.ProductID]; ok {
				name = p.Name
			}
			entry.Items = append(entry.Items, models.OrderLine{
				OrderID:     o.ID,
				ProductID:   item.ProductID,
				ProductName: name,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
			})
		}
		entry.ItemCount = len(entry.Items)
		result = append(result, entry)
	}
	return result, nil
}

func (m *Memory) HasPurchased(ctx context.Context, userID, productID int64) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if o.UserID != userID || o.Status != models.OrderStatusCompleted {
			continue
		}
		for _, item := range m.items {
			if item.OrderID == o.ID && item.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *Memory) GetReviewByUserAndProduct(ctx context.Context, userID, productID int64) (*models.Review, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.HideExistingReviews {
		return nil, nil
	}
	for _, r := range m.reviews {
		if r.UserID == userID && r.ProductID == productID {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) CreateReviewAndRefreshRating(ctx context.Context, review *models.Review) (*models.ProductRating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.reviews {
		if r.UserID == review.UserID && r.ProductID == review.ProductID {
			return nil, store.ErrDuplicate
		}
	}

	product, ok := m.products[review.ProductID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if m.FailRatingUpdate {
		return nil, ErrInjected
	}

	staged := *review
	staged.ID = m.id()
	staged.ReviewDate = time.Now()

	sum, count := int64(staged.Rating), 1
	for _, r := range m.reviews {
		if r.ProductID == review.ProductID {
			sum += int64(r.Rating)
			count++
		}
	}
	avg := decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(int64(count)), 16).Round(1)

	m.reviews = append(m.reviews, staged)
	product.Rating = avg
	product.ReviewCount = count
	*review = staged

	return &models.ProductRating{ProductID: product.ID, Rating: avg, ReviewCount: count}, nil
}

func (m *Memory) GetReviewsByProductID(ctx context.Context, productID int64) ([]models.ReviewWithUser, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	result := []models.ReviewWithUser{}
	for i := len(m.reviews) - 1; i >= 0; i-- {
		r := m.reviews[i]
		if r.ProductID == productID {
			result = append(result, models.ReviewWithUser{Review: r, UserEmail: m.users[r.UserID]})
		}
	}
	return result, nil
}

func (m *Memory) GetRecentReviews(ctx context.Context, limit int) ([]models.FeaturedReview, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	result := []models.FeaturedReview{}
	for i := len(m.reviews) - 1; i >= 0 && len(result) < limit; i-- {
		r := m.reviews[i]
		name := ""
		if p, ok := m.products[r.ProductID]; ok {
			name = p.Name
		}
		result = append(result, models.FeaturedReview{
			ReviewWithUser: models.ReviewWithUser{Review: r, UserEmail: m.users[r.UserID]},
			ProductName:    name,
		})
	}
	return result, nil
}

func (m *Memory) GetFavoritesByUserID(ctx context.Context, userID int64) ([]models.Favorite, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	result := []models.Favorite{}
	for i := len(m.favorites) - 1; i >= 0; i-- {
		if m.favorites[i].UserID == userID {
			result = append(result, m.favorites[i])
		}
	}
	return result, nil
}

func (m *Memory) FavoriteExists(ctx context.Context, userID, productID int64) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range m.favorites {
		if f.UserID == userID && f.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) AddFavorite(ctx context.Context, userID, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range m.favorites {
		if f.UserID == userID && f.ProductID == productID {
			return store.ErrDuplicate
		}
	}
	p, ok := m.products[productID]
	if !ok {
		return errors.New("storetest: foreign key violation on product_id")
	}
	m.favorites = append(m.favorites, models.Favorite{
		ID:          m.id(),
		UserID:      userID,
		ProductID:   productID,
		CreatedAt:   time.Now(),
		ProductName: p.Name,
		Description: p.Description,
		Price:       p.Price,
		RoastType:   p.RoastType,
		Origin:      p.Origin,
	})
	return nil
}

func (m *Memory) RemoveFavorite(ctx context.Context, userID, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.favorites[:0]
	for _, f := range m.favorites {
		if f.UserID != userID || f.ProductID != productID {
			kept = append(kept, f)
		}
	}
	m.favorites = kept
	return nil
}

// Recorder captures published events.
type Recorder struct {
	mu              sync.Mutex
	OrdersPlaced    []*models.OrderPlacedEvent
	ReviewsSubmitted []*models.ReviewSubmittedEvent
	Err             error
}

func (r *Recorder) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.OrdersPlaced = append(r.OrdersPlaced, event)
	return r.Err
}

func (r *Recorder) PublishReviewSubmitted(ctx context.Context, event *models.ReviewSubmittedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ReviewsSubmitted = append(r.ReviewsSubmitted, event)
	return r.Err
}
