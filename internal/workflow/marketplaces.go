package workflow

import (
	"strings"

	"github.com/iurnickita/sellerdesk/internal/model"
)

// new → assembly → ready_to_shipment → shipped; anything else moves to
// assembly so a selection never regresses to new.
type wildberries struct{}

func (wildberries) Marketplace() model.Marketplace { return model.MarketplaceWildberries }

func (wildberries) StatusOf(order model.Order) string {
	return resolve(order.InternalStatus, order.Status)
}

func (wildberries) Next(current string) Target {
	switch current {
	case StatusNew:
		return Target{Status: StatusAssembly}
	case StatusAssembly:
		return Target{Status: StatusReadyToShipment}
	case StatusReadyToShipment, StatusShipped:
		return Target{Status: StatusShipped}
	default:
		return Target{Status: StatusAssembly}
	}
}

func (wildberries) TracksInternal() bool { return true }

func (wildberries) ReportsOn(target Target) bool {
	return target.Status == StatusReadyToShipment
}

// new → processing → ready_to_ship → shipped; unknown and mixed restart at new.
type ozon struct{}

func (ozon) Marketplace() model.Marketplace { return model.MarketplaceOzon }

func (ozon) StatusOf(order model.Order) string {
	return resolve(order.Status)
}

func (ozon) Next(current string) Target {
	return linear(current)
}

func (ozon) TracksInternal() bool { return false }

func (ozon) ReportsOn(target Target) bool {
	return target.Status == StatusReadyToShip
}

// Status and sub-status are coupled while an order is processing:
// processing/* → processing/ready_to_ship → shipped. Outside processing the
// linear chain applies.
type yandex struct{}

func (yandex) Marketplace() model.Marketplace { return model.MarketplaceYandex }

func (yandex) StatusOf(order model.Order) string {
	status := resolve(order.Status)
	if status != StatusProcessing {
		return status
	}
	if strings.EqualFold(strings.TrimSpace(order.SubStatus), StatusReadyToShip) {
		return StatusReadyToShip
	}
	return StatusProcessing
}

func (yandex) Next(current string) Target {
	switch current {
	case StatusProcessing:
		return Target{Status: StatusProcessing, SubStatus: StatusReadyToShip}
	case StatusReadyToShip:
		return Target{Status: StatusShipped}
	default:
		return linear(current)
	}
}

func (yandex) TracksInternal() bool { return false }

func (yandex) ReportsOn(target Target) bool {
	return target.Status == StatusProcessing && target.SubStatus == StatusReadyToShip
}

func linear(current string) Target {
	switch current {
	case StatusNew:
		return Target{Status: StatusProcessing}
	case StatusProcessing:
		return Target{Status: StatusReadyToShip}
	case StatusReadyToShip, StatusShipped:
		return Target{Status: StatusShipped}
	default:
		return Target{Status: StatusNew}
	}
}
