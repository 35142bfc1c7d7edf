// Market phases: firms post directed offers, then households respond in
// population order.
package engine

import (
	"log/slog"
	"math"

	"github.com/talgya/micro-market/internal/agents"
	"github.com/talgya/micro-market/internal/ledger"
)

// hireLabor runs the labor market. Each firm offers the wage for one hire to
// a random household, then each household sells labor to the best-paying
// offer addressed to it.
func (s *Simulation) hireLabor() {
	for _, f := range s.Firms {
		f.Log.Wage = append(f.Log.Wage, s.Model.Wage)

		target, ok := s.randomHousehold()
		if !ok {
			continue
		}
		if _, err := s.Market.Buy(&f.Agent, &target, agents.GoodLabor, s.Model.LaborPerHire, s.Model.Wage); err != nil {
			slog.Debug("labor offer rejected", "agent", f.ID, "error", err)
		}
	}

	for _, h := range s.Households {
		offer, ok := s.LaborPolicy(s.Market.OffersFor(agents.GoodLabor, h.ID))
		if !ok {
			continue
		}
		qty := math.Min(offer.Quantity, h.Ledger.Possession(agents.GoodLabor))
		if qty <= ledger.Epsilon {
			continue
		}

		trade, err := s.Market.Accept(offer, &h.Agent, qty)
		if err != nil {
			slog.Debug("labor sale failed", "agent", h.ID, "offer", offer.ID, "error", err)
			continue
		}
		if f := s.firm(trade.Buyer); f != nil {
			f.LaborHired += trade.Quantity
		}
	}
}

// sellBread runs the goods market. Each firm with stock offers all of it at
// the fixed price to a random household, then each household buys a fixed
// quantity from the cheapest offer addressed to it when it can pay.
func (s *Simulation) sellBread() {
	for _, f := range s.Firms {
		f.Log.Price = append(f.Log.Price, s.Model.BreadPrice)

		stock := f.Ledger.Possession(agents.GoodBread)
		if stock <= 0 {
			continue
		}
		target, ok := s.randomHousehold()
		if !ok {
			continue
		}
		if _, err := s.Market.Sell(&f.Agent, &target, agents.GoodBread, stock, s.Model.BreadPrice); err != nil {
			slog.Debug("bread offer rejected", "agent", f.ID, "error", err)
		}
	}

	for _, h := range s.Households {
		offer, ok := s.BreadPolicy(s.Market.OffersFor(agents.GoodBread, h.ID))
		if !ok {
			continue
		}
		qty := math.Min(s.Model.BreadPerPurchase, offer.Quantity)
		if h.Money()+ledger.Epsilon < qty*offer.Price {
			continue
		}

		if _, err := s.Market.Accept(offer, &h.Agent, qty); err != nil {
			slog.Debug("bread purchase failed", "agent", h.ID, "offer", offer.ID, "error", err)
		}
	}
}
