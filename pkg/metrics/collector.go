package metrics

import (
	"time"

	"github.com/Kylemclean11/Xline/pkg/consensus"
	"github.com/Kylemclean11/Xline/pkg/replog"
	"github.com/Kylemclean11/Xline/pkg/specpool"
)

// Collector periodically samples a node's consensus state into the
// package's prometheus gauges. It polls rather than pushing on every
// state change, matching the teacher's collector shape: cheap to run,
// and unaffected by whichever component happens to mutate state.
type Collector struct {
	node *consensus.Node
	log  *replog.Log
	pool *specpool.Pool
	cfg  consensus.Config

	stopCh chan struct{}
}

// NewCollector creates a collector over one node's consensus components.
func NewCollector(node *consensus.Node, cfg consensus.Config) *Collector {
	return &Collector{
		node:   node,
		log:    node.Log(),
		pool:   node.Pool(),
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if c.node.IsLeader() {
		IsLeader.Set(1)
	} else {
		IsLeader.Set(0)
	}
	CurrentTerm.Set(float64(c.node.Term()))
	LogLastIndex.Set(float64(c.log.LastIndex()))
	CommitIndex.Set(float64(c.log.CommitIndex()))
	LastApplied.Set(float64(c.log.LastApplied()))
	SpecPoolSize.Set(float64(c.pool.Len()))
	PeersTotal.Set(float64(len(c.cfg.Peers)))
}
