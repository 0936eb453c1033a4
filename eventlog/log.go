package eventlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/tinylib/msgp/msgp"

	"github.com/synqronlabs/wren"
	"github.com/synqronlabs/wren/address"
	"github.com/synqronlabs/wren/utils"
)

// Log writes events to a shared stream. It is safe for concurrent use by
// every connection of a server.
type Log struct {
	mu  sync.Mutex
	w   *msgp.Writer
	now func() time.Time
}

// New returns a Log writing to w. Every event is flushed when written.
func New(w io.Writer) *Log {
	return &Log{w: msgp.NewWriter(w), now: time.Now}
}

// Handler returns a new event handler for one connection. Its signature
// matches wren.HandlerFactory.
func (l *Log) Handler() wren.EventHandler {
	return &handler{log: l, conn: utils.GenerateID()}
}

func (l *Log) write(e *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.Time = l.now()
	if err := e.EncodeMsg(l.w); err != nil {
		return fmt.Errorf("eventlog: writing %s event: %w", e.Kind, err)
	}
	if err := l.w.Flush(); err != nil {
		return fmt.Errorf("eventlog: writing %s event: %w", e.Kind, err)
	}
	return nil
}

// handler records the events of one connection. A failed write vetoes the
// event, so nothing is accepted that was not recorded.
type handler struct {
	log  *Log
	conn string
	size int64
}

var _ wren.EventHandler = (*handler)(nil)

func (h *handler) OnConnect(_ context.Context, remote net.Addr) error {
	e := &Event{Conn: h.conn, Kind: KindConnect}
	if ip, err := utils.AddrIP(remote); err == nil {
		e.Remote = ip
	}
	return h.log.write(e)
}

func (h *handler) OnDomain(_ context.Context, domain string) error {
	return h.log.write(&Event{Conn: h.conn, Kind: KindDomain, Domain: domain})
}

func (h *handler) OnSender(_ context.Context, from *address.Mailbox) error {
	return h.log.write(&Event{Conn: h.conn, Kind: KindSender, Mailbox: from})
}

func (h *handler) OnRecipient(_ context.Context, to address.Mailbox) error {
	return h.log.write(&Event{Conn: h.conn, Kind: KindRecipient, Mailbox: &to})
}

func (h *handler) OnBodyStart(context.Context) error {
	h.size = 0
	return nil
}

func (h *handler) OnBodyPart(_ context.Context, chunk []byte) error {
	h.size += int64(len(chunk))
	return nil
}

func (h *handler) OnBodyEnd(context.Context) error {
	return h.log.write(&Event{Conn: h.conn, Kind: KindMessage, Size: h.size})
}

// Reader decodes the events written by a Log.
type Reader struct {
	r *msgp.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: msgp.NewReader(r)}
}

// Next returns the next event, or io.EOF at the end of the stream.
func (r *Reader) Next() (Event, error) {
	var e Event
	if err := e.DecodeMsg(r.r); err != nil {
		if errors.Is(err, io.EOF) {
			return Event{}, io.EOF
		}
		return Event{}, fmt.Errorf("eventlog: reading event: %w", err)
	}
	return e, nil
}

// ReadAll decodes every event in r.
func ReadAll(r io.Reader) ([]Event, error) {
	reader := NewReader(r)
	var events []Event
	for {
		e, err := reader.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, e)
	}
}
