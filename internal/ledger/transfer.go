package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// Transfer moves qty of good from one ledger to another. The source is checked
// before either side is touched, so a failed transfer has no effect.
func Transfer(from, to *Ledger, good string, qty float64) error {
	if err := checkQuantity(qty); err != nil {
		return fmt.Errorf("transfer %s: %w", good, err)
	}
	if from == to {
		return ErrSelfTransfer
	}
	if !from.covers(good, qty) {
		return fmt.Errorf("transfer %s %.6g from %s holding %.6g: %w",
			good, qty, from.owner, from.holdings[good], ErrInsufficientResource)
	}
	move(from, to, good, qty, uuid.New())
	return nil
}

// Swap executes a two-legged trade: qty of good moves from seller to buyer and
// payment of currency moves from buyer to seller. Both legs are validated
// before either is applied.
func Swap(buyer, seller *Ledger, good string, qty float64, currency string, payment float64) error {
	if err := checkQuantity(qty); err != nil {
		return fmt.Errorf("swap %s: %w", good, err)
	}
	if err := checkQuantity(payment); err != nil {
		return fmt.Errorf("swap %s payment: %w", good, err)
	}
	if buyer == seller {
		return ErrSelfTransfer
	}
	if !buyer.covers(currency, payment) {
		return fmt.Errorf("%s needs %.6g %s, holds %.6g: %w",
			buyer.owner, payment, currency, buyer.holdings[currency], ErrInsufficientFunds)
	}
	if !seller.covers(good, qty) {
		return fmt.Errorf("%s needs %.6g %s, holds %.6g: %w",
			seller.owner, qty, good, seller.holdings[good], ErrInsufficientResource)
	}

	tx := uuid.New()
	move(seller, buyer, good, qty, tx)
	move(buyer, seller, currency, payment, tx)
	return nil
}

func move(from, to *Ledger, good string, qty float64, tx uuid.UUID) {
	qty = from.remove(good, qty)
	to.add(good, qty)

	j := from.journal
	if j == nil {
		j = to.journal
	}
	j.recordPair(tx, from.owner, to.owner, good, qty)
}
