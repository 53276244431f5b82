package orderbook

import (
	"github.com/holiman/uint256"

	"poolbook/domain/ray"
)

// PriceLevel is the FIFO of orders resting at a single price.
type PriceLevel struct {
	Price ray.Ray

	TotalQty   uint256.Int
	OrderCount int

	orders []Order
}

func (p *PriceLevel) Enqueue(o Order) {
	p.orders = append(p.orders, o)
	p.TotalQty.Add(&p.TotalQty, &o.Quantity)
	p.OrderCount++
}

func (p *PriceLevel) Empty() bool {
	return len(p.orders) == 0
}

// Head returns the first order queued at this price.
func (p *PriceLevel) Head() (Order, bool) {
	if p.Empty() {
		return Order{}, false
	}
	return p.orders[0], true
}
