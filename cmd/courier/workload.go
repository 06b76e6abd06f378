package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/glimte/courier/contracts"
	"github.com/glimte/courier/future"
	"github.com/glimte/courier/messaging"
)

// The synthetic workload models warehouses that track stock for a catalogue of SKUs.

var skus = []string{"apple", "bread", "cheese", "dates", "eggs"}

var errOutOfStock = errors.New("out of stock")

// stockChanged is broadcast to every warehouse
type stockChanged struct {
	SKU   string
	Delta int
}

// stockLevelRequest asks the primary warehouse for its stock of SKU
type stockLevelRequest struct {
	contracts.RequestMessage[int]
	SKU string
}

// reservationRequest reserves stock at the primary warehouse and answers with a reservation id
type reservationRequest struct {
	contracts.AsyncRequestMessage[string]
	SKU      string
	Quantity int
}

// warehouseNamesRequest collects the names of all warehouses
type warehouseNamesRequest struct {
	contracts.CollectionRequestMessage[string]
}

// availabilityRequest collects the stock of SKU from every warehouse, each counted asynchronously
type availabilityRequest struct {
	contracts.AsyncCollectionRequestMessage[int]
	SKU string
}

// warehouse is a recipient
type warehouse struct {
	name    string
	stock   map[string]int
	latency time.Duration
}

func newWarehouse(name string, latency time.Duration) *warehouse {
	w := &warehouse{
		name:    name,
		stock:   make(map[string]int, len(skus)),
		latency: latency,
	}
	for _, sku := range skus {
		w.stock[sku] = 10 + rand.IntN(90)
	}
	return w
}

func onStockChanged(ctx context.Context, w *warehouse, msg stockChanged) error {
	w.stock[msg.SKU] = max(0, w.stock[msg.SKU]+msg.Delta)
	return nil
}

func onStockLevel(ctx context.Context, w *warehouse, req *stockLevelRequest) error {
	return req.Reply(w.stock[req.SKU])
}

func onReservation(ctx context.Context, w *warehouse, req *reservationRequest) error {
	if w.stock[req.SKU] < req.Quantity {
		return req.ReplyFuture(future.Failed[string](fmt.Errorf("%w: %s", errOutOfStock, req.SKU)))
	}
	w.stock[req.SKU] -= req.Quantity

	id := fmt.Sprintf("%s-%s-%d", w.name, req.SKU, req.Quantity)
	latency := w.latency
	return req.ReplyFunc(func(ctx context.Context) (string, error) {
		select {
		case <-time.After(latency):
			return id, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
}

func onWarehouseNames(ctx context.Context, w *warehouse, req *warehouseNamesRequest) error {
	req.Reply(w.name)
	return nil
}

func onAvailability(ctx context.Context, w *warehouse, req *availabilityRequest) error {
	level, latency := w.stock[req.SKU], w.latency
	return req.ReplyFunc(func(ctx context.Context) (int, error) {
		select {
		case <-time.After(latency):
			return level, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})
}

// registerWarehouse subscribes w to the broadcast and collection messages.
// Only the primary warehouse answers single-reply requests.
func registerWarehouse(m *messaging.Messenger, w *warehouse, primary bool) error {
	errs := []error{
		messaging.Register(m, w, onStockChanged),
		messaging.Register(m, w, onWarehouseNames),
		messaging.Register(m, w, onAvailability),
	}
	if primary {
		errs = append(errs,
			messaging.Register(m, w, onStockLevel),
			messaging.Register(m, w, onReservation),
		)
	}
	return errors.Join(errs...)
}

// randomStep sends one random message or request through m
func randomStep(ctx context.Context, m *messaging.Messenger) error {
	sku := skus[rand.IntN(len(skus))]

	switch n := rand.IntN(10); {
	case n < 6:
		_, err := messaging.Send(ctx, m, stockChanged{SKU: sku, Delta: rand.IntN(11) - 5})
		return err
	case n < 8:
		_, err := messaging.SendRequest[int](ctx, m, &stockLevelRequest{SKU: sku})
		return err
	case n < 9:
		_, err := messaging.RequestAll[warehouseNamesRequest, string](ctx, m)
		return err
	default:
		req, err := messaging.Send(ctx, m, &availabilityRequest{SKU: sku})
		if err != nil {
			return err
		}
		_, err = req.GetResponses(ctx)
		return err
	}
}
