// Package economy provides the offer book, production function and round
// accounting for the market model.
package economy

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/talgya/micro-market/internal/agents"
)

// Direction is the side of an offer from the sender's point of view.
type Direction uint8

const (
	Buy Direction = iota
	Sell
)

func (d Direction) String() string {
	if d == Sell {
		return "sell"
	}
	return "buy"
}

// Offer is a proposed trade of Quantity units of Good at unit Price.
// Offers live only within the round they were posted in.
type Offer struct {
	ID        uuid.UUID       `json:"id"`
	Direction Direction       `json:"direction"`
	Good      string          `json:"good"`
	Quantity  float64         `json:"quantity"`
	Price     float64         `json:"price"`
	Sender    *agents.Agent   `json:"-"`
	Receiver  *agents.AgentID `json:"receiver,omitempty"` // nil = open to everyone
	Round     int             `json:"round"`
}

// Value is the total payment the offer implies.
func (o Offer) Value() float64 {
	return o.Quantity * o.Price
}

// VisibleTo reports whether id may see and accept the offer.
func (o Offer) VisibleTo(id agents.AgentID) bool {
	if o.Sender != nil && o.Sender.ID == id {
		return false
	}
	return o.Receiver == nil || *o.Receiver == id
}

func (o Offer) String() string {
	to := "anyone"
	if o.Receiver != nil {
		to = o.Receiver.String()
	}
	from := "?"
	if o.Sender != nil {
		from = o.Sender.ID.String()
	}
	return fmt.Sprintf("%s %s %.4g %s @ %.4g -> %s", from, o.Direction, o.Quantity, o.Good, o.Price, to)
}

// Trade is an executed offer.
type Trade struct {
	OfferID  uuid.UUID      `json:"offer_id"`
	Round    int            `json:"round"`
	Good     string         `json:"good"`
	Quantity float64        `json:"quantity"`
	Price    float64        `json:"price"`
	Buyer    agents.AgentID `json:"buyer"`
	Seller   agents.AgentID `json:"seller"`
}
