package framework

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the loop interval when none is set.
const DefaultInterval = 50 * time.Millisecond

// Loop runs controllers periodically, stage by stage.
type Loop struct {
	Interval time.Duration

	controllers [numStages][]Controller
	runners     []Runnable

	lock       sync.Mutex
	pending    []Message
	iterations uint64
	wakeUpCh   chan struct{}
}

type loopCtxKeyType struct{}

var loopCtxKey loopCtxKeyType

// LoopCtlFrom gets LoopControl from the context passed to Runnables
// started by the loop.
func LoopCtlFrom(ctx context.Context) LoopControl {
	ctl, _ := ctx.Value(loopCtxKey).(LoopControl)
	return ctl
}

// NewLoop creates a Loop.
func NewLoop(interval time.Duration) *Loop {
	return &Loop{Interval: interval, wakeUpCh: make(chan struct{}, 1)}
}

// AddController registers controllers at a stage. Controllers which are
// also Runnable are started with the loop.
func (l *Loop) AddController(stage Stage, ctls ...Controller) *Loop {
	l.controllers[stage] = append(l.controllers[stage], ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnables started with the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	runner := NewRunnerWith(context.WithValue(ctx, loopCtxKey, LoopControl(l)))
	runner.Go(l.runners...)
	defer runner.Wait()

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.RunOnce(ctx)
		case <-l.wakeCh():
			l.RunOnce(ctx)
		}
	}
}

// RunOnce runs a single iteration.
func (l *Loop) RunOnce(ctx context.Context) {
	l.lock.Lock()
	l.iterations++
	iter := &iteration{
		loop:     l,
		ctx:      ctx,
		time:     time.Now(),
		n:        l.iterations,
		messages: l.pending,
	}
	l.pending = nil
	l.lock.Unlock()

	for stage := Stage(0); stage < numStages; stage++ {
		iter.stage = stage
		for _, ctl := range l.controllers[stage] {
			if err := ctl.Control(iter); err != nil {
				glog.Errorf("%s controller error: %v", stage, err)
			}
		}
	}
	if n := len(iter.messages); n > 0 {
		glog.V(2).Infof("%d messages not processed", n)
	}
}

// PostMessage implements LoopControl.
func (l *Loop) PostMessage(msg Message) {
	l.lock.Lock()
	l.pending = append(l.pending, msg)
	l.lock.Unlock()
}

// TriggerNext implements LoopControl.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeCh() <- struct{}{}:
	default:
	}
}

func (l *Loop) wakeCh() chan struct{} {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.wakeUpCh == nil {
		l.wakeUpCh = make(chan struct{}, 1)
	}
	return l.wakeUpCh
}

type iteration struct {
	loop     *Loop
	ctx      context.Context
	time     time.Time
	n        uint64
	stage    Stage
	messages []Message
}

func (it *iteration) Context() context.Context { return it.ctx }
func (it *iteration) Time() time.Time          { return it.time }
func (it *iteration) Iteration() uint64        { return it.n }
func (it *iteration) Stage() Stage             { return it.stage }
func (it *iteration) PostMessage(msg Message)  { it.loop.PostMessage(msg) }
func (it *iteration) TriggerNext()             { it.loop.TriggerNext() }

func (it *iteration) ProcessMessages(fn func(Message) bool) {
	remains := it.messages[:0]
	for _, msg := range it.messages {
		if !fn(msg) {
			remains = append(remains, msg)
		}
	}
	it.messages = remains
}
