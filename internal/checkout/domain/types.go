package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type QuoteLine struct {
	ProductID string
	Name      string
	Quantity  int32
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Quote is a cart priced at current catalog prices. Lines keep cart order.
type Quote struct {
	UserID   string
	Lines    []QuoteLine
	Subtotal decimal.Decimal
	// Skipped holds product ids dropped because the product no longer exists.
	Skipped []string
}

// MissingProductPolicy decides what happens to cart lines whose product is gone.
type MissingProductPolicy string

const (
	PolicySkip   MissingProductPolicy = "skip"
	PolicyReject MissingProductPolicy = "reject"
)

func ParsePolicy(s string) (MissingProductPolicy, error) {
	switch p := MissingProductPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicySkip, nil
	case PolicySkip, PolicyReject:
		return p, nil
	default:
		return "", fmt.Errorf("unknown missing product policy %q", s)
	}
}
