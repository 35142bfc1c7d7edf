package economy

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/talgya/micro-market/internal/agents"
	"github.com/talgya/micro-market/internal/ledger"
)

var (
	ErrInvalidOffer  = errors.New("invalid offer")
	ErrOfferNotFound = errors.New("offer not found")
	ErrNotAddressee  = errors.New("offer addressed to another agent")

	ErrInsufficientFunds    = ledger.ErrInsufficientFunds
	ErrInsufficientResource = ledger.ErrInsufficientResource
)

// Market is the offer book for one round. Offers are kept per good in posting
// order and discarded when the next round begins.
type Market struct {
	round  int
	offers map[string][]*Offer
	trades []Trade
}

// NewMarket creates an empty market.
func NewMarket() *Market {
	return &Market{offers: make(map[string][]*Offer)}
}

// BeginRound discards all open offers and trades and starts round r.
func (m *Market) BeginRound(r int) {
	m.round = r
	m.offers = make(map[string][]*Offer)
	m.trades = nil
}

// Clear discards every open offer. Trades already executed are kept.
func (m *Market) Clear() {
	m.offers = make(map[string][]*Offer)
}

// Round returns the current round.
func (m *Market) Round() int {
	return m.round
}

// Post validates and opens an offer, returning it with its ID and round filled in.
func (m *Market) Post(o Offer) (Offer, error) {
	switch {
	case o.Sender == nil:
		return Offer{}, fmt.Errorf("%w: no sender", ErrInvalidOffer)
	case o.Good == "":
		return Offer{}, fmt.Errorf("%w: no good", ErrInvalidOffer)
	case !positive(o.Quantity):
		return Offer{}, fmt.Errorf("%w: quantity %v", ErrInvalidOffer, o.Quantity)
	case !positive(o.Price):
		return Offer{}, fmt.Errorf("%w: price %v", ErrInvalidOffer, o.Price)
	case o.Receiver != nil && *o.Receiver == o.Sender.ID:
		return Offer{}, fmt.Errorf("%w: addressed to sender", ErrInvalidOffer)
	}

	o.ID = uuid.New()
	o.Round = m.round

	posted := o
	m.offers[o.Good] = append(m.offers[o.Good], &posted)
	return o, nil
}

// Buy posts a buy offer from sender, optionally addressed to receiver.
func (m *Market) Buy(sender *agents.Agent, receiver *agents.AgentID, good string, qty, price float64) (Offer, error) {
	return m.Post(Offer{Direction: Buy, Good: good, Quantity: qty, Price: price, Sender: sender, Receiver: receiver})
}

// Sell posts a sell offer from sender, optionally addressed to receiver.
func (m *Market) Sell(sender *agents.Agent, receiver *agents.AgentID, good string, qty, price float64) (Offer, error) {
	return m.Post(Offer{Direction: Sell, Good: good, Quantity: qty, Price: price, Sender: sender, Receiver: receiver})
}

// Offers returns every open offer for good in posting order. No offers yields
// an empty slice, not an error.
func (m *Market) Offers(good string) []Offer {
	open := m.offers[good]
	out := make([]Offer, 0, len(open))
	for _, o := range open {
		out = append(out, *o)
	}
	return out
}

// OffersFor returns the open offers for good that id is allowed to accept.
func (m *Market) OffersFor(good string, id agents.AgentID) []Offer {
	var out []Offer
	for _, o := range m.Offers(good) {
		if o.VisibleTo(id) {
			out = append(out, o)
		}
	}
	return out
}

// Open returns the number of open offers across all goods.
func (m *Market) Open() int {
	n := 0
	for _, list := range m.offers {
		n += len(list)
	}
	return n
}

// Accept executes qty units of offer o against acceptor as one atomic
// transfer of goods and money. The offer is closed whether or not execution
// succeeds; a failed execution leaves both ledgers untouched.
func (m *Market) Accept(o Offer, acceptor *agents.Agent, qty float64) (Trade, error) {
	open, idx := m.find(o.Good, o.ID)
	if open == nil {
		return Trade{}, fmt.Errorf("%w: %s", ErrOfferNotFound, o.ID)
	}
	if acceptor == nil {
		return Trade{}, fmt.Errorf("%w: no acceptor", ErrInvalidOffer)
	}
	if !open.VisibleTo(acceptor.ID) {
		return Trade{}, fmt.Errorf("%s accepting %s: %w", acceptor.ID, open, ErrNotAddressee)
	}
	if !positive(qty) || qty > open.Quantity+ledger.Epsilon {
		return Trade{}, fmt.Errorf("%w: accept %v of %v", ErrInvalidOffer, qty, open.Quantity)
	}
	qty = math.Min(qty, open.Quantity)

	m.remove(o.Good, idx)

	buyer, seller := open.Sender, acceptor
	if open.Direction == Sell {
		buyer, seller = acceptor, open.Sender
	}
	if err := ledger.Swap(buyer.Ledger, seller.Ledger, open.Good, qty, agents.GoodMoney, qty*open.Price); err != nil {
		return Trade{}, fmt.Errorf("execute %s: %w", open, err)
	}

	t := Trade{
		OfferID:  open.ID,
		Round:    m.round,
		Good:     open.Good,
		Quantity: qty,
		Price:    open.Price,
		Buyer:    buyer.ID,
		Seller:   seller.ID,
	}
	m.trades = append(m.trades, t)
	return t, nil
}

// Trades returns the trades executed this round, in execution order.
func (m *Market) Trades() []Trade {
	out := make([]Trade, len(m.trades))
	copy(out, m.trades)
	return out
}

// Volume returns the quantity of good traded this round.
func (m *Market) Volume(good string) float64 {
	v := 0.0
	for _, t := range m.trades {
		if t.Good == good {
			v += t.Quantity
		}
	}
	return v
}

func (m *Market) find(good string, id uuid.UUID) (*Offer, int) {
	for i, o := range m.offers[good] {
		if o.ID == id {
			return o, i
		}
	}
	return nil, -1
}

func (m *Market) remove(good string, idx int) {
	open := m.offers[good]
	m.offers[good] = append(open[:idx:idx], open[idx+1:]...)
}

func positive(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}
