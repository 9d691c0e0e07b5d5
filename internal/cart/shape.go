package cart

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"storefront/internal/domain"
)

// ErrInvalidBasket is returned for baskets that fail the shape check or the
// full schema check.
var ErrInvalidBasket = errors.New("invalid basket")

var validate = validator.New(validator.WithRequiredStructEnabled())

// checkShape is the minimal guard applied before a basket is persisted or
// pushed: a non-empty id and an item list that is present.
func checkShape(b domain.CustomerBasket) error {
	if err := validate.Var(b.ID, "required"); err != nil {
		return fmt.Errorf("%w: id missing", ErrInvalidBasket)
	}
	if err := validate.Var(b.Items, "required"); err != nil {
		return fmt.Errorf("%w: items missing", ErrInvalidBasket)
	}
	return nil
}

// Validate applies the full schema to a basket coming from storage or the
// backend. Nothing that fails here is ever partially accepted.
func Validate(b domain.CustomerBasket) error {
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBasket, err)
	}
	ids := make(map[int]struct{}, len(b.Items))
	for _, item := range b.Items {
		if _, dup := ids[item.ID]; dup {
			return fmt.Errorf("%w: duplicate item id %d", ErrInvalidBasket, item.ID)
		}
		ids[item.ID] = struct{}{}
	}
	return nil
}

// Decode parses a serialized basket and validates it.
func Decode(raw []byte) (domain.CustomerBasket, error) {
	var b domain.CustomerBasket
	if err := json.Unmarshal(raw, &b); err != nil {
		return domain.CustomerBasket{}, fmt.Errorf("%w: %v", ErrInvalidBasket, err)
	}
	if err := Validate(b); err != nil {
		return domain.CustomerBasket{}, err
	}
	return b, nil
}
