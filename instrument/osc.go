package instrument

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go-synthwave/debug"

	"github.com/hypebeast/go-osc/osc"
)

// OSCBackend forwards triggers to an OSC synth (SuperCollider, Pure
// Data and the like). Each trigger is a bundle timetagged with the
// scheduled play time so the receiver can render it sample-accurately:
//
//	<prefix>/<name>/note  int32 note..., float32 seconds
//	<prefix>/<name>/hit   float32 seconds
//	<prefix>/<name>/volume float32 dB
type OSCBackend struct {
	host   string
	port   int
	prefix string

	mu     sync.Mutex
	client packetSender
	out    chan osc.Packet
	cancel context.CancelFunc
	done   chan struct{}
}

type packetSender interface {
	Send(packet osc.Packet) error
}

// Outgoing packets buffered before triggers start being dropped
const oscQueueSize = 256

func NewOSCBackend(host string, port int, prefix string) *OSCBackend {
	prefix = "/" + strings.Trim(prefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	return &OSCBackend{host: host, port: port, prefix: prefix}
}

func (b *OSCBackend) Name() string { return "osc" }

func (b *OSCBackend) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.host == "" || b.port <= 0 || b.port > 65535 {
		return fmt.Errorf("osc target %s:%d: invalid address", b.host, b.port)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.out != nil {
		return nil
	}
	if b.client == nil {
		b.client = osc.NewClient(b.host, b.port)
	}

	b.out = make(chan osc.Packet, oscQueueSize)
	loopCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.writeLoop(loopCtx, b.client, b.out, b.done)

	debug.Log("backend", "osc output to %s:%d%s", b.host, b.port, b.prefix)
	return nil
}

func (b *OSCBackend) writeLoop(ctx context.Context, c packetSender, out <-chan osc.Packet, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-out:
			if err := c.Send(p); err != nil {
				debug.Error("osc-out", err)
			}
		}
	}
}

func (b *OSCBackend) enqueue(p osc.Packet) {
	b.mu.Lock()
	out := b.out
	b.mu.Unlock()
	if out == nil {
		return
	}
	select {
	case out <- p:
	default:
		debug.LogEvery(50, "osc-out", "queue full, packet dropped")
	}
}

func (b *OSCBackend) Instrument(p Patch) (Instrument, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.out == nil {
		return nil, ErrNotOpen
	}
	return &oscInstrument{b: b, addr: b.prefix + "/" + p.Name}, nil
}

func (b *OSCBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.out == nil {
		return nil
	}
	b.cancel()
	<-b.done
	b.out = nil
	return nil
}

type oscInstrument struct {
	b    *OSCBackend
	addr string
}

func (o *oscInstrument) Play(notes []uint8, dur time.Duration, at time.Time) {
	args := make([]any, 0, len(notes)+1)
	for _, n := range notes {
		args = append(args, int32(n))
	}
	args = append(args, float32(dur.Seconds()))
	o.bundle(at, osc.NewMessage(o.addr+"/note", args...))
}

func (o *oscInstrument) Hit(dur time.Duration, at time.Time) {
	o.bundle(at, osc.NewMessage(o.addr+"/hit", float32(dur.Seconds())))
}

func (o *oscInstrument) bundle(at time.Time, msg *osc.Message) {
	b := osc.NewBundle(at)
	if err := b.Append(msg); err != nil {
		debug.Error("osc-out", err)
		return
	}
	o.b.enqueue(b)
}

func (o *oscInstrument) SetVolume(db float64) {
	o.b.enqueue(osc.NewMessage(o.addr+"/volume", float32(db)))
}
