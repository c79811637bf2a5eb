// Package notify delivers newly harvested signals to downstream channels.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/Amsmoox/tradebot/internal/model"
)

// Notifier delivers a batch of newly persisted signals, in the order they
// were extracted. Delivery is best effort: a failed notification is logged
// and never rolls back persistence.
type Notifier interface {
	Notify(ctx context.Context, signals []model.Signal) error
}

// Multi fans a batch out to several notifiers. Each notifier gets the full
// batch; one channel failing does not stop the others.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, signals []model.Signal) error {
	for _, n := range m {
		if err := n.Notify(ctx, signals); err != nil {
			zap.L().Error("notify: channel delivery failed", zap.Error(err))
		}
	}
	return nil
}
