package service

import (
	"context"
	"errors"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CartService manages user and guest carts
type CartService struct {
	carts   CartRepository
	catalog *CatalogService
	logger  *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(carts CartRepository, catalog *CatalogService) *CartService {
	return &CartService{
		carts:   carts,
		catalog: catalog,
		logger:  util.GetLogger(),
	}
}

// CartLine identifies a cart line and, for writes, its quantity
type CartLine struct {
	ProductID primitive.ObjectID
	Quantity  int
	Size      string
	Color     string
}

func (l CartLine) matches(item models.CartItem) bool {
	return item.ProductID == l.ProductID && item.Size == l.Size && item.Color == l.Color
}

// Get returns the owner's cart
func (s *CartService) Get(ctx context.Context, owner models.CartOwner) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Get")
	defer span.End()

	if owner.IsZero() {
		return nil, invalidRequest("User or guest ID is required")
	}
	return s.load(ctx, owner)
}

func (s *CartService) load(ctx context.Context, owner models.CartOwner) (*models.Cart, error) {
	cart, err := s.carts.GetCart(ctx, owner)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCartNotFound
	}
	return cart, err
}

// AddItem puts a product into the cart, creating the cart when needed.
// Adding a line that already exists increases its quantity.
func (s *CartService) AddItem(ctx context.Context, owner models.CartOwner, line CartLine) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if owner.IsZero() {
		return nil, invalidRequest("User or guest ID is required")
	}
	if line.Quantity <= 0 {
		return nil, invalidRequest("Quantity must be positive")
	}

	product, err := s.catalog.Get(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}

	cart, err := s.load(ctx, owner)
	if errors.Is(err, ErrCartNotFound) {
		cart = &models.Cart{UserID: owner.UserID, Items: []models.CartItem{}}
		if owner.UserID == nil {
			cart.GuestID = owner.GuestID
		}
	} else if err != nil {
		return nil, err
	}

	merged := false
	for i := range cart.Items {
		if line.matches(cart.Items[i]) {
			cart.Items[i].Quantity += line.Quantity
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, models.CartItem{
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.FirstImage(),
			Price:     product.EffectivePrice(),
			Quantity:  line.Quantity,
			Size:      line.Size,
			Color:     line.Color,
		})
	}

	return s.save(ctx, cart)
}

// UpdateItem sets a line's quantity; zero removes the line
func (s *CartService) UpdateItem(ctx context.Context, owner models.CartOwner, line CartLine) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateItem")
	defer span.End()

	if owner.IsZero() {
		return nil, invalidRequest("User or guest ID is required")
	}
	if line.Quantity < 0 {
		return nil, invalidRequest("Quantity must not be negative")
	}

	cart, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}

	idx := findLine(cart.Items, line)
	if idx < 0 {
		return nil, ErrProductNotFound
	}
	if line.Quantity == 0 {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	} else {
		cart.Items[idx].Quantity = line.Quantity
	}

	return s.save(ctx, cart)
}

// RemoveItem drops a line from the cart
func (s *CartService) RemoveItem(ctx context.Context, owner models.CartOwner, line CartLine) (*models.Cart, error) {
	line.Quantity = 0
	return s.UpdateItem(ctx, owner, line)
}

// Merge folds a guest cart into the user's cart and deletes the guest cart.
// Without a guest cart the user's own cart is returned.
func (s *CartService) Merge(ctx context.Context, userID primitive.ObjectID, guestID string) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Merge")
	defer span.End()

	if guestID == "" {
		return nil, invalidRequest("Guest ID is required")
	}
	userOwner := models.CartOwner{UserID: &userID}
	guestOwner := models.CartOwner{GuestID: guestID}

	guest, err := s.load(ctx, guestOwner)
	if errors.Is(err, ErrCartNotFound) {
		return s.load(ctx, userOwner)
	}
	if err != nil {
		return nil, err
	}
	if len(guest.Items) == 0 {
		return nil, invalidRequest("Guest cart is empty")
	}

	cart, err := s.load(ctx, userOwner)
	switch {
	case errors.Is(err, ErrCartNotFound):
		// adopt the guest cart
		cart = guest
		cart.UserID = &userID
		cart.GuestID = ""
		return s.save(ctx, cart)
	case err != nil:
		return nil, err
	}

	for _, item := range guest.Items {
		line := CartLine{ProductID: item.ProductID, Size: item.Size, Color: item.Color}
		if idx := findLine(cart.Items, line); idx >= 0 {
			cart.Items[idx].Quantity += item.Quantity
		} else {
			cart.Items = append(cart.Items, item)
		}
	}

	merged, err := s.save(ctx, cart)
	if err != nil {
		return nil, err
	}
	if err := s.carts.DeleteCart(ctx, guestOwner); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("Failed to delete merged guest cart", zap.String("guest_id", guestID), zap.Error(err))
	}
	return merged, nil
}

func (s *CartService) save(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	total := decimal.Zero
	for _, item := range cart.Items {
		total = total.Add(lineTotal(item.Price, item.Quantity))
	}
	cart.TotalPrice = roundMoney(total)

	if err := s.carts.SaveCart(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func findLine(items []models.CartItem, line CartLine) int {
	for i := range items {
		if line.matches(items[i]) {
			return i
		}
	}
	return -1
}
