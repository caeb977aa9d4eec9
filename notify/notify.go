package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mcdexio/chain-collector/common/logging"
	"github.com/mcdexio/chain-collector/common/utils"
	"github.com/redis/go-redis/v9"
)

// Publisher is the part of a redis client the notifier uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// BlockIndexed is published after every committed block.
type BlockIndexed struct {
	ChainID   string    `json:"chainId"`
	Height    int64     `json:"height"`
	Timestamp time.Time `json:"timestamp"`
	Txs       int       `json:"txs"`
}

// Channel returns the pub/sub channel of chainID.
func Channel(chainID string) string {
	return "collector:" + chainID + ":block.indexed"
}

// Notifier publishes indexed blocks without holding up the synchronizer: events are queued on
// an unbounded channel and published from Run. Publishing is best effort.
type Notifier struct {
	logger logging.Logger
	client Publisher
	queue  *utils.UnlimitedChannel[*BlockIndexed]
}

func NewNotifier(logger logging.Logger, client Publisher) *Notifier {
	return &Notifier{logger: logger, client: client, queue: utils.NewUnlimitedChannel[*BlockIndexed]()}
}

// Enqueue schedules ev for publication.
func (n *Notifier) Enqueue(ev *BlockIndexed) {
	select {
	case n.queue.In() <- ev:
	case <-n.queue.Done():
	}
}

// Run publishes queued events until ctx is done.
func (n *Notifier) Run(ctx context.Context) error {
	defer n.queue.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-n.queue.Out():
			n.publish(ctx, ev)
		}
	}
}

func (n *Notifier) publish(ctx context.Context, ev *BlockIndexed) {
	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Warn("encode block %d event: %s", ev.Height, err)
		return
	}
	channel := Channel(ev.ChainID)
	if err := n.client.Publish(ctx, channel, payload).Err(); err != nil {
		n.logger.Warn("publish block %d on %s: %s", ev.Height, channel, err)
		return
	}
	n.logger.Debug("published block %d on %s", ev.Height, channel)
}
