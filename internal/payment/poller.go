package payment

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ratemate/ratemate/internal/cache"
	"github.com/ratemate/ratemate/internal/domain"
)

// Poller drives purchases toward a terminal state. It only classifies status;
// granting the purchased entitlement belongs to the caller, exactly once, on
// the first Paid observation.
type Poller struct {
	client  Client
	intents *cache.Cache[int64, domain.PaymentIntent]
	amount  int64
	logger  *log.Logger
}

// NewPoller constructs a Poller whose intent dedup window equals ttl.
func NewPoller(client Client, ttl time.Duration, amount int64, logger *log.Logger) *Poller {
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{
		client:  client,
		intents: cache.New[int64, domain.PaymentIntent](ttl),
		amount:  amount,
		logger:  logger,
	}
}

// CreateIntent returns an open bill for the user, reusing a cached intent
// while its bill still reports Waiting (or Unknown, which is treated as
// pending) inside the dedup window. Terminal bills are evicted and replaced.
func (p *Poller) CreateIntent(ctx context.Context, userID int64) (domain.PaymentIntent, error) {
	if intent, ok := p.intents.Get(userID); ok {
		switch p.client.Status(ctx, intent.BillID) {
		case StatusWaiting, StatusUnknown:
			return intent, nil
		default:
			p.intents.Invalidate(userID)
		}
	}

	intent, err := p.client.CreateBill(ctx, p.amount)
	if err != nil {
		return domain.PaymentIntent{}, fmt.Errorf("create bill: %w", err)
	}
	p.intents.Put(userID, intent)
	p.logger.Printf("payment: created bill %s for user %d", intent.BillID, userID)
	return intent, nil
}

// Poll classifies the bill's current status. Gateway trouble surfaces as
// StatusUnknown, never as an error.
func (p *Poller) Poll(ctx context.Context, billID string) Status {
	return p.client.Status(ctx, billID)
}

// Settle drops the user's cached intent once a terminal status was observed.
func (p *Poller) Settle(userID int64) {
	p.intents.Invalidate(userID)
}
