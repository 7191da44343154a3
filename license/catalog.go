// Package license answers "does this wallet already own permanent access
// to this item" with a read-only contract call, and offers the one-time
// on-chain purchase path. The item catalog maps domain item identifiers to
// the numeric ids the license contract expects; the mapping is total and
// injective, and unknown identifiers fail closed rather than defaulting to
// an id some other item paid for.
package license

import (
	"fmt"
	"math/big"
	"strings"

	lenspay "github.com/openxr-labs/lenspay"
)

// Item is one purchasable entry in the catalog: a lens or a game.
type Item struct {
	ID          string // domain identifier used throughout the app
	ContractID  int64  // id the license contract was deployed with
	Name        string
	Description string
	PriceWei    *big.Int // one-time license price in wei
}

// wei converts a decimal ether amount to wei exactly, without float
// rounding.
func wei(ether string) *big.Int {
	whole, frac, _ := strings.Cut(ether, ".")
	if len(frac) > 18 {
		panic("bad catalog price: " + ether)
	}
	frac += strings.Repeat("0", 18-len(frac))

	w, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		panic("bad catalog price: " + ether)
	}
	return w
}

// Catalog lists every item registered on the license contract, in
// contract-id order.
var Catalog = []Item{
	{ID: "cosmic-vibes", ContractID: 1, Name: "Cosmic Vibes", Description: "Neon holographic digital art lens", PriceWei: wei("0.1")},
	{ID: "rainbow-blast", ContractID: 2, Name: "Rainbow Blast", Description: "Neon holographic digital art lens", PriceWei: wei("0.12")},
	{ID: "pixel-paradise", ContractID: 3, Name: "Pixel Paradise", Description: "Neon holographic digital art lens", PriceWei: wei("0.13")},
	{ID: "electric-dreams", ContractID: 4, Name: "Electric Dreams", Description: "Neon holographic digital art lens", PriceWei: wei("0.15")},
	{ID: "prism-party", ContractID: 5, Name: "Prism Party", Description: "Abstract colorful neon lens", PriceWei: wei("0.14")},
	{ID: "neon-nights", ContractID: 6, Name: "Neon Nights", Description: "Abstract colorful neon lens", PriceWei: wei("0.16")},
	{ID: "retro-wave", ContractID: 7, Name: "Retro Wave", Description: "Abstract colorful neon lens", PriceWei: wei("0.18")},
	{ID: "glitch-mode", ContractID: 8, Name: "Glitch Mode", Description: "Abstract colorful neon lens", PriceWei: wei("0.2")},
	{ID: "crystal-burst", ContractID: 9, Name: "Crystal Burst", Description: "Abstract colorful neon lens", PriceWei: wei("0.22")},
	{ID: "vapor-dreams", ContractID: 10, Name: "Vapor Dreams", Description: "Abstract colorful neon lens", PriceWei: wei("0.25")},
	{ID: "cyber-glow", ContractID: 11, Name: "Cyber Glow", Description: "Abstract colorful neon lens", PriceWei: wei("0.28")},
	{ID: "laser-lights", ContractID: 12, Name: "Laser Lights", Description: "Abstract colorful neon lens", PriceWei: wei("0.3")},
	{ID: "ueeaauueeaa", ContractID: 13, Name: "UEEAAUUEEAA", Description: "Immersive AR gaming experience", PriceWei: wei("0.25")},
}

var byID = func() map[string]Item {
	m := make(map[string]Item, len(Catalog))
	for _, item := range Catalog {
		if _, dup := m[item.ID]; dup {
			panic("duplicate catalog item id: " + item.ID)
		}
		m[item.ID] = item
	}
	return m
}()

// Lookup returns the catalog entry for a domain item identifier. Unknown
// identifiers are a typed error, never a fallback to another item's id.
func Lookup(itemID string) (Item, error) {
	item, ok := byID[itemID]
	if !ok {
		return Item{}, lenspay.NewPaymentError(
			lenspay.ErrCodeInvalidItem,
			fmt.Sprintf("unknown item identifier: %s", itemID),
			nil,
		)
	}
	return item, nil
}

// ContractID maps a domain item identifier to the uint256 id the license
// contract expects. Fail-closed: unknown identifiers error.
func ContractID(itemID string) (*big.Int, error) {
	item, err := Lookup(itemID)
	if err != nil {
		return nil, err
	}
	return big.NewInt(item.ContractID), nil
}
