package interceptors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrDeliveryFiltered is returned by a FilteringInterceptor configured with SkipWithError
var ErrDeliveryFiltered = errors.New("delivery filtered")

// DeliveryFilter decides whether a delivery reaches its handler
type DeliveryFilter interface {
	// ShouldDeliver returns true if the handler should be invoked
	ShouldDeliver(ctx context.Context, d *Delivery) (bool, error)
}

// DeliveryFilterFunc is a function adapter for DeliveryFilter
type DeliveryFilterFunc func(ctx context.Context, d *Delivery) (bool, error)

// ShouldDeliver implements DeliveryFilter
func (f DeliveryFilterFunc) ShouldDeliver(ctx context.Context, d *Delivery) (bool, error) {
	return f(ctx, d)
}

// SkipBehavior defines what happens when a delivery is filtered out
type SkipBehavior int

const (
	// SkipSilently skips the handler without error
	SkipSilently SkipBehavior = iota
	// SkipWithError fails the dispatch with ErrDeliveryFiltered
	SkipWithError
	// SkipWithLog logs that the handler was skipped
	SkipWithLog
)

// FilteringInterceptor skips handlers whose delivery does not pass a filter
type FilteringInterceptor struct {
	filter       DeliveryFilter
	skipBehavior SkipBehavior
	logger       *slog.Logger
}

// NewFilteringInterceptor creates a new filtering interceptor
func NewFilteringInterceptor(filter DeliveryFilter, skipBehavior SkipBehavior, logger *slog.Logger) *FilteringInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return &FilteringInterceptor{
		filter:       filter,
		skipBehavior: skipBehavior,
		logger:       logger,
	}
}

// Intercept implements Interceptor
func (i *FilteringInterceptor) Intercept(ctx context.Context, d *Delivery, next Handler) error {
	deliver, err := i.filter.ShouldDeliver(ctx, d)
	if err != nil {
		return fmt.Errorf("filter error: %w", err)
	}

	if !deliver {
		switch i.skipBehavior {
		case SkipWithError:
			return fmt.Errorf("%w: type=%s, recipient=%s", ErrDeliveryFiltered, d.MessageType, d.RecipientType())
		case SkipWithLog:
			i.logger.InfoContext(ctx, "delivery skipped by filter",
				"dispatchId", d.DispatchID,
				"messageType", d.MessageType,
				"recipient", d.RecipientType(),
			)
			return nil
		default:
			return nil
		}
	}

	return next.Handle(ctx, d)
}

// Name implements Interceptor
func (i *FilteringInterceptor) Name() string {
	return "FilteringInterceptor"
}

// CompositeFilter combines multiple filters with AND logic
type CompositeFilter struct {
	filters []DeliveryFilter
}

// NewCompositeFilter creates a new composite filter
func NewCompositeFilter(filters ...DeliveryFilter) *CompositeFilter {
	return &CompositeFilter{filters: filters}
}

// ShouldDeliver implements DeliveryFilter - all filters must return true
func (f *CompositeFilter) ShouldDeliver(ctx context.Context, d *Delivery) (bool, error) {
	for _, filter := range f.filters {
		deliver, err := filter.ShouldDeliver(ctx, d)
		if err != nil {
			return false, err
		}
		if !deliver {
			return false, nil
		}
	}
	return true, nil
}

// OrFilter combines multiple filters with OR logic
type OrFilter struct {
	filters []DeliveryFilter
}

// NewOrFilter creates a new OR filter
func NewOrFilter(filters ...DeliveryFilter) *OrFilter {
	return &OrFilter{filters: filters}
}

// ShouldDeliver implements DeliveryFilter - at least one filter must return true
func (f *OrFilter) ShouldDeliver(ctx context.Context, d *Delivery) (bool, error) {
	for _, filter := range f.filters {
		deliver, err := filter.ShouldDeliver(ctx, d)
		if err != nil {
			return false, err
		}
		if deliver {
			return true, nil
		}
	}
	return false, nil
}

// MessageTypeFilter allows only the listed message types
type MessageTypeFilter struct {
	allowedTypes map[string]bool
}

// NewMessageTypeFilter creates a filter that only allows specific message types
func NewMessageTypeFilter(allowedTypes ...string) *MessageTypeFilter {
	typeMap := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		typeMap[t] = true
	}
	return &MessageTypeFilter{allowedTypes: typeMap}
}

// ShouldDeliver implements DeliveryFilter
func (f *MessageTypeFilter) ShouldDeliver(ctx context.Context, d *Delivery) (bool, error) {
	return f.allowedTypes[d.MessageType], nil
}

// RecipientTypeFilter blocks the listed recipient types
type RecipientTypeFilter struct {
	blocked map[string]bool
}

// NewRecipientTypeFilter creates a filter that skips recipients of the given printable types,
// e.g. "*audit.Logger"
func NewRecipientTypeFilter(blockedTypes ...string) *RecipientTypeFilter {
	blocked := make(map[string]bool, len(blockedTypes))
	for _, t := range blockedTypes {
		blocked[t] = true
	}
	return &RecipientTypeFilter{blocked: blocked}
}

// ShouldDeliver implements DeliveryFilter
func (f *RecipientTypeFilter) ShouldDeliver(ctx context.Context, d *Delivery) (bool, error) {
	return !f.blocked[d.RecipientType()], nil
}

// ConditionalInterceptor executes an interceptor only if a condition is met
type ConditionalInterceptor struct {
	condition   DeliveryFilter
	interceptor Interceptor
}

// NewConditionalInterceptor creates a new conditional interceptor
func NewConditionalInterceptor(condition DeliveryFilter, interceptor Interceptor) *ConditionalInterceptor {
	return &ConditionalInterceptor{
		condition:   condition,
		interceptor: interceptor,
	}
}

// Intercept implements Interceptor
func (i *ConditionalInterceptor) Intercept(ctx context.Context, d *Delivery, next Handler) error {
	shouldExecute, err := i.condition.ShouldDeliver(ctx, d)
	if err != nil {
		return err
	}

	if shouldExecute {
		return i.interceptor.Intercept(ctx, d, next)
	}

	return next.Handle(ctx, d)
}

// Name implements Interceptor
func (i *ConditionalInterceptor) Name() string {
	return fmt.Sprintf("ConditionalInterceptor[%s]", i.interceptor.Name())
}
