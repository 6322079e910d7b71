package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/fes.go/pkg/fes"
)

// Param is the parameter a Command changes.
type Param string

// Parameters.
const (
	ParamAmp Param = "amp"
	ParamPW  Param = "pw"
)

// Command asks to change a parameter of a channel.
type Command struct {
	Param   Param
	Channel string
	Value   int
}

func (c Command) String() string {
	return fmt.Sprintf("%s %s=%d", c.Channel, c.Param, c.Value)
}

// ErrBadCommand indicates a malformed command.
var ErrBadCommand = errors.New("bad command")

// ErrPublishTimeout indicates the broker did not acknowledge in time.
var ErrPublishTimeout = errors.New("publish timeout")

// PublishTimeout bounds the wait for the broker to acknowledge a status.
const PublishTimeout = time.Second

// ParseCommand parses a command received on <name>/set/<param>/<channel>.
func ParseCommand(name, topic string, payload []byte) (Command, error) {
	tokens := strings.Split(topic, "/")
	if len(tokens) != 4 || tokens[0] != name || tokens[1] != "set" {
		return Command{}, fmt.Errorf("%w: topic %q", ErrBadCommand, topic)
	}
	cmd := Command{Param: Param(tokens[2]), Channel: tokens[3]}
	if cmd.Param != ParamAmp && cmd.Param != ParamPW {
		return Command{}, fmt.Errorf("%w: unknown parameter %q", ErrBadCommand, tokens[2])
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		return Command{}, fmt.Errorf("%w: %s: %v", ErrBadCommand, topic, err)
	}
	cmd.Value = v
	return cmd, nil
}

// Link connects one stimulator to the broker. Status is published by
// Run, PublishStatus only queues the latest snapshot.
type Link struct {
	Queue     *Queue
	Name      string
	OnCommand func(Command)

	lock    sync.Mutex
	last    []byte
	pending chan []byte
}

// NewLink creates a Link for the stimulator name. The last status is
// published again whenever q reconnects.
func NewLink(q *Queue, name string) *Link {
	l := &Link{Queue: q, Name: name, pending: make(chan []byte, 1)}
	q.OnConnect = l.republish
	return l
}

// StatusTopic returns the topic status is published to.
func (l *Link) StatusTopic() string {
	return l.Name + "/status"
}

// CommandFilter returns the filter commands are received on.
func (l *Link) CommandFilter() string {
	return l.Name + "/set/+/+"
}

// PublishStatus queues a retained status snapshot. A snapshot not yet
// published is replaced.
func (l *Link) PublishStatus(st fes.Status) error {
	data, err := EncodeStatus(st)
	if err != nil {
		return err
	}
	l.lock.Lock()
	l.last = data
	l.offer(data)
	l.lock.Unlock()
	return nil
}

func (l *Link) republish(*Queue) {
	l.lock.Lock()
	if l.last != nil {
		l.offer(l.last)
	}
	l.lock.Unlock()
}

// offer must be called with lock held.
func (l *Link) offer(data []byte) {
	select {
	case l.pending <- data:
		return
	default:
	}
	select {
	case <-l.pending:
	default:
	}
	l.pending <- data
}

// Run implements framework.Runnable. It receives commands and publishes
// queued status until ctx is done.
func (l *Link) Run(ctx context.Context) error {
	sub := l.Queue.Sub(l.CommandFilter(), l.handleCommand)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-l.pending:
			if err := l.publish(data); err != nil {
				glog.Warningf("Publish status: %v", err)
			}
		}
	}
}

func (l *Link) publish(data []byte) error {
	token := l.Queue.Pub(l.StatusTopic(), data, true)
	if !token.WaitTimeout(PublishTimeout) {
		return ErrPublishTimeout
	}
	return token.Error()
}

func (l *Link) handleCommand(topic string, payload []byte) {
	cmd, err := ParseCommand(l.Name, topic, payload)
	if err != nil {
		glog.Warningf("Command ignored: %v", err)
		return
	}
	glog.V(1).Infof("Command %s", cmd)
	if fn := l.OnCommand; fn != nil {
		fn(cmd)
	}
}
