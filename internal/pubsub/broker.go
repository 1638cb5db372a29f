// Package pubsub fans a single buffer's completed packets out to any
// number of concurrent SSE subscribers, independent of how many readers
// the dispatch loop itself is driving.
package pubsub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Packet is the wire-ready shape of one completed trace packet, published
// to stream subscribers as tracebuf.PacketRef values are produced. Bytes
// is a flattened copy: subscribers live on the far side of an SSE
// connection and must not hold references into the trace buffer's store.
type Packet struct {
	ProducerID uint16 `json:"producer_id"`
	WriterID   uint16 `json:"writer_id"`
	ChunkID    uint32 `json:"chunk_id"`
	Bytes      []byte `json:"bytes"`
}

// AllowAll accepts every packet; used by subscribers with no filter.
func AllowAll(Packet) bool { return true }

// PacketBroker publishes completed Packets to a dynamic set of subscriber
// channels. A subscriber only receives a packet if its allow predicate
// accepts it, and a publish never blocks: a full channel drops the packet
// rather than stalling the dispatch loop that's calling Publish.
type PacketBroker struct {
	mtx         sync.Mutex
	subscribers map[chan<- Packet]*packetSubscriber
	active      atomic.Bool
}

type packetSubscriber struct {
	allow func(Packet) bool
	ch    chan<- Packet
	stats Stats
}

// NewPacketBroker returns a PacketBroker with no subscribers.
func NewPacketBroker() *PacketBroker {
	return &PacketBroker{subscribers: map[chan<- Packet]*packetSubscriber{}}
}

// Publish offers pkt to every current subscriber whose allow predicate
// accepts it. Publish never blocks: a subscriber whose channel is full at
// that instant simply misses the packet, counted in its Drops stat.
func (b *PacketBroker) Publish(ctx context.Context, pkt Packet) {
	if !b.active.Load() { // avoid the lock entirely when nobody's listening
		return
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()

	if len(b.subscribers) <= 0 {
		return
	}

	for _, sub := range b.subscribers {
		if !sub.allow(pkt) {
			sub.stats.Skips++
			continue
		}
		select {
		case sub.ch <- pkt:
			sub.stats.Sends++
		default:
			sub.stats.Drops++
		}
	}
}

// Subscribe registers ch to receive packets accepted by allow, and blocks
// until ctx is canceled. The caller is expected to drain ch concurrently.
func (b *PacketBroker) Subscribe(ctx context.Context, allow func(Packet) bool, ch chan<- Packet) (Stats, error) {
	if err := func() error {
		b.mtx.Lock()
		defer b.mtx.Unlock()

		if _, ok := b.subscribers[ch]; ok {
			return fmt.Errorf("already subscribed")
		}

		b.subscribers[ch] = &packetSubscriber{
			allow: allow,
			ch:    ch,
		}

		b.active.Store(len(b.subscribers) > 0)

		return nil
	}(); err != nil {
		return Stats{}, err
	}

	<-ctx.Done()

	sub := func() *packetSubscriber {
		b.mtx.Lock()
		defer b.mtx.Unlock()

		sub := b.subscribers[ch]
		delete(b.subscribers, ch)

		b.active.Store(len(b.subscribers) > 0)

		return sub
	}()
	if sub == nil {
		return Stats{}, fmt.Errorf("not subscribed (programmer error)")
	}

	return sub.stats, ctx.Err()
}

// Stats returns the current send/skip/drop counts for an active
// subscriber channel.
func (b *PacketBroker) Stats(ctx context.Context, ch chan<- Packet) (Stats, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	sub, ok := b.subscribers[ch]
	if !ok {
		return Stats{}, fmt.Errorf("not subscribed")
	}

	return sub.stats, nil
}

// Stats tracks how a single subscriber's packets were disposed of.
type Stats struct {
	Skips uint64 `json:"skips"`
	Sends uint64 `json:"sends"`
	Drops uint64 `json:"drops"`
}

func (s Stats) String() string {
	return fmt.Sprintf("skips=%d sends=%d drops=%d", s.Skips, s.Sends, s.Drops)
}
