package service

import (
	"context"

	"github.com/LightDreamhs/MyPetShop3.0/internal/cart"
)

func (s *Service) GetCart(ctx context.Context) (cart.Cart, error) {
	actor, _, err := s.session(ctx)
	if err != nil {
		return cart.Cart{}, err
	}
	return s.carts.Get(ctx, actor.Username)
}

// AddCartItem looks the product up upstream and appends it at its list
// price, or zero when it has none.
func (s *Service) AddCartItem(ctx context.Context, productID int64) (cart.Cart, error) {
	actor, upCtx, err := s.session(ctx)
	if err != nil {
		return cart.Cart{}, err
	}
	product, err := s.upstream.GetProduct(upCtx, productID)
	if err != nil {
		return cart.Cart{}, err
	}
	return s.mutateCart(ctx, actor.Username, func(c *cart.Cart) error {
		return c.AddItem(product, product.DefaultUnitPrice())
	})
}

func (s *Service) UpdateCartItem(ctx context.Context, index int, field string, value int64) (cart.Cart, error) {
	actor, _, err := s.session(ctx)
	if err != nil {
		return cart.Cart{}, err
	}
	return s.mutateCart(ctx, actor.Username, func(c *cart.Cart) error {
		return c.UpdateItem(index, cart.Field(field), value)
	})
}

func (s *Service) RemoveCartItem(ctx context.Context, index int) (cart.Cart, error) {
	actor, _, err := s.session(ctx)
	if err != nil {
		return cart.Cart{}, err
	}
	return s.mutateCart(ctx, actor.Username, func(c *cart.Cart) error {
		return c.RemoveItem(index)
	})
}

func (s *Service) ClearCart(ctx context.Context) error {
	actor, _, err := s.session(ctx)
	if err != nil {
		return err
	}
	return s.carts.Delete(ctx, actor.Username)
}

// mutateCart loads, edits and stores the operator's cart. A failed edit
// leaves the stored cart untouched.
func (s *Service) mutateCart(ctx context.Context, operator string, edit func(*cart.Cart) error) (cart.Cart, error) {
	c, err := s.carts.Get(ctx, operator)
	if err != nil {
		return cart.Cart{}, err
	}
	if err := edit(&c); err != nil {
		return cart.Cart{}, err
	}
	if err := s.carts.Put(ctx, operator, c); err != nil {
		return cart.Cart{}, err
	}
	return c, nil
}
