package economy

// Selector picks one offer out of a candidate set. It returns false when the
// set is empty.
type Selector func(offers []Offer) (Offer, bool)

// HighestPrice selects the offer with the maximum unit price. Ties go to the
// earliest posted offer.
func HighestPrice(offers []Offer) (Offer, bool) {
	return pick(offers, func(a, b float64) bool { return a > b })
}

// LowestPrice selects the offer with the minimum unit price. Ties go to the
// earliest posted offer.
func LowestPrice(offers []Offer) (Offer, bool) {
	return pick(offers, func(a, b float64) bool { return a < b })
}

func pick(offers []Offer, better func(a, b float64) bool) (Offer, bool) {
	if len(offers) == 0 {
		return Offer{}, false
	}
	best := offers[0]
	for _, o := range offers[1:] {
		if better(o.Price, best.Price) {
			best = o
		}
	}
	return best, true
}
