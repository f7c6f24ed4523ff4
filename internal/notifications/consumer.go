package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopvana/shopvana-backend/pkg/logger"
	"github.com/shopvana/shopvana-backend/pkg/mailer"
	"github.com/shopvana/shopvana-backend/pkg/redis"
)

const popTimeout = 5 * time.Second

type popClient interface {
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) ([]string, error)
	QueueKey(name string) string
}

// Consumer drains the email queue and delivers through the configured
// sender. One consumer per worker process.
type Consumer struct {
	queue  popClient
	sender mailer.Sender
	logger *logger.Logger
}

// NewConsumer builds a Consumer.
func NewConsumer(queue popClient, sender mailer.Sender, logg *logger.Logger) (*Consumer, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue client required")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{queue: queue, sender: sender, logger: logg}, nil
}

// Run blocks until ctx is cancelled, popping and delivering jobs. A job
// that fails to deliver is logged and dropped; the queue holds rendered
// emails, not business state.
func (c *Consumer) Run(ctx context.Context) error {
	key := c.queue.QueueKey(emailQueue)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		values, err := c.queue.BRPop(ctx, popTimeout, key)
		if err != nil {
			if redis.IsNil(err) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error(ctx, "pop email job", err)
			time.Sleep(time.Second)
			continue
		}
		if len(values) < 2 {
			continue
		}
		c.deliver(ctx, []byte(values[1]))
	}
}

func (c *Consumer) deliver(ctx context.Context, payload []byte) {
	var job EmailJob
	if err := json.Unmarshal(payload, &job); err != nil {
		c.logger.Error(ctx, "decode email job", err)
		return
	}
	ctx = c.logger.WithField(ctx, "to_email", job.ToEmail)
	msg := mailer.Message{
		ToEmail:  job.ToEmail,
		ToName:   job.ToName,
		Subject:  job.Subject,
		HTMLBody: job.HTMLBody,
	}
	if err := c.sender.Send(ctx, msg); err != nil {
		c.logger.Error(ctx, "deliver email", err)
		return
	}
	c.logger.Info(ctx, "email delivered")
}
