package app

import (
	"fmt"
	"time"

	"bruna/hal"
	"bruna/kernel"
)

// ping sends a numbered ping to its peer, waits for the reply, then sleeps.
type ping struct {
	log     hal.Logger
	peer    kernel.ProcessID
	pause   time.Duration
	seq     uint64
	waiting bool
}

func newPing(log hal.Logger, peer kernel.ProcessID, pause time.Duration) *ping {
	return &ping{log: log, peer: peer, pause: pause}
}

func (p *ping) Step(ctx *kernel.Context) {
	if !p.waiting {
		p.seq++
		if _, err := ctx.Send(p.peer, []byte(fmt.Sprintf("ping %d", p.seq))); err != nil {
			p.logf("ping: send to %d: %v", p.peer, err)
			ctx.Exit()
			return
		}
		p.waiting = true
		return
	}
	msg, ok := ctx.Recv()
	if !ok {
		return
	}
	p.waiting = false
	p.logf("ping: %q from %d at tick %d", msg.Payload(), msg.Sender(), ctx.NowTick())
	ctx.Sleep(p.pause)
}

func (p *ping) logf(format string, args ...any) {
	if p.log != nil {
		p.log.WriteLineString(fmt.Sprintf(format, args...))
	}
}

// pong answers every message with "pong" plus the original payload.
type pong struct {
	log     hal.Logger
	answers uint64
}

func newPong(log hal.Logger) *pong { return &pong{log: log} }

func (p *pong) Step(ctx *kernel.Context) {
	msg, ok := ctx.Recv()
	if !ok {
		return
	}
	reply := append([]byte("pong/"), msg.Payload()...)
	if _, err := ctx.Send(msg.Sender(), reply); err != nil && p.log != nil {
		p.log.WriteLineString(fmt.Sprintf("pong: reply to %d: %v", msg.Sender(), err))
		return
	}
	p.answers++
}

// sleeper wakes every period, keeps a scratch buffer alive, and sleeps again.
type sleeper struct {
	log    hal.Logger
	period time.Duration
	wakes  uint64
	buf    kernel.Address
}

func newSleeper(log hal.Logger, period time.Duration) *sleeper {
	return &sleeper{log: log, period: period}
}

func (s *sleeper) Step(ctx *kernel.Context) {
	if s.buf == 0 {
		addr, err := ctx.Alloc(256)
		if err == nil {
			s.buf = addr
		}
	}
	s.wakes++
	if s.log != nil && s.wakes > 1 {
		s.log.WriteLineString(fmt.Sprintf("sleeper: wake %d at tick %d", s.wakes-1, ctx.NowTick()))
	}
	ctx.Sleep(s.period)
}
