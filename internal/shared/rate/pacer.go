package rate

import (
	"context"

	"go.uber.org/ratelimit"
)

// Pacer meters background work to a fixed per-second rate. Tokens are
// produced by a leaky-bucket limiter into a buffered channel, so a worker
// can select on pacing alongside its context and a short idle phase banks a
// small burst instead of stalling the producer.
type Pacer struct {
	ch chan struct{}
	l  ratelimit.Limiter
}

func NewPacer(ctx context.Context, perSec, burst int) *Pacer {
	if perSec < 1 {
		perSec = 1
	}
	if burst < 1 {
		burst = 1
	}
	p := &Pacer{
		ch: make(chan struct{}, burst),
		l:  ratelimit.New(perSec),
	}
	go p.fill(ctx)
	return p
}

func (p *Pacer) fill(ctx context.Context) {
	defer close(p.ch)
	for {
		p.l.Take()
		select {
		case <-ctx.Done():
			return
		case p.ch <- struct{}{}:
		}
	}
}

// C is the pacing channel; one receive permits one unit of work. It is
// closed once the context ends.
func (p *Pacer) C() <-chan struct{} {
	return p.ch
}
