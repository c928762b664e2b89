package presenter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"ghnotifier/internal/feed"
	"ghnotifier/pkg/logx"
)

const (
	notifyDest      = "org.freedesktop.Notifications"
	notifyPath      = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyIface     = "org.freedesktop.Notifications"
	memberInvoked   = "ActionInvoked"
	memberClosed    = "NotificationClosed"
	defaultActionID = "default"

	// orphanLimit bounds signals that arrive for ids not yet registered.
	orphanLimit = 64
)

type notification struct {
	AppName string
	Summary string
	Body    string
	Actions []string
	Expire  time.Duration
}

// notifier is the Notify call of the notification service.
type notifier interface {
	Notify(ctx context.Context, n notification) (uint32, error)
}

type busNotifier struct{ obj dbus.BusObject }

func (b busNotifier) Notify(ctx context.Context, n notification) (uint32, error) {
	expire := int32(-1)
	if n.Expire > 0 {
		expire = int32(n.Expire / time.Millisecond)
	}
	var id uint32
	call := b.obj.CallWithContext(ctx, notifyIface+".Notify", 0,
		n.AppName, uint32(0), "", n.Summary, n.Body, n.Actions, map[string]dbus.Variant{}, expire)
	if call.Err != nil {
		return 0, call.Err
	}
	if err := call.Store(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// Desktop presents items as freedesktop notifications over the session bus.
type Desktop struct {
	appName string
	expire  time.Duration
	log     logx.Logger
	now     func() time.Time

	conn    *dbus.Conn
	signals chan *dbus.Signal
	n       notifier

	mu      sync.Mutex
	pending map[uint32]*oneShot
	orphans map[uint32]Action
	closed  bool
	done    chan struct{}
}

type DesktopConfig struct {
	AppName string
	Expire  time.Duration
}

// NewDesktop connects to the session bus and subscribes to action signals.
func NewDesktop(cfg DesktopConfig, log logx.Logger) (*Desktop, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: session bus: %v", ErrUnavailable, err)
	}
	for _, member := range []string{memberInvoked, memberClosed} {
		if err := conn.AddMatchSignal(
			dbus.WithMatchObjectPath(notifyPath),
			dbus.WithMatchInterface(notifyIface),
			dbus.WithMatchMember(member),
		); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%w: match %s: %v", ErrUnavailable, member, err)
		}
	}
	d := newDesktop(cfg, busNotifier{obj: conn.Object(notifyDest, notifyPath)}, log)
	d.conn = conn
	d.signals = make(chan *dbus.Signal, 16)
	conn.Signal(d.signals)
	go d.loop()
	return d, nil
}

func newDesktop(cfg DesktopConfig, n notifier, log logx.Logger) *Desktop {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Desktop{
		appName: cfg.AppName,
		expire:  cfg.Expire,
		log:     log,
		now:     time.Now,
		n:       n,
		pending: make(map[uint32]*oneShot),
		orphans: make(map[uint32]Action),
		done:    make(chan struct{}),
	}
}

func (d *Desktop) Present(ctx context.Context, it feed.Item) (Signal, error) {
	m := Format(d.appName, it, d.now())
	id, err := d.n.Notify(ctx, notification{
		AppName: m.AppName,
		Summary: m.Summary,
		Body:    m.Body,
		Actions: []string{defaultActionID, "Open"},
		Expire:  d.expire,
	})
	if err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}

	o := newOneShot()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		o.abandon()
		return o.signal(), nil
	}
	if a, ok := d.orphans[id]; ok {
		delete(d.orphans, id)
		o.resolve(a)
		return o.signal(), nil
	}
	d.pending[id] = o
	d.log.Debug("notification shown", logx.Int64("notification_id", int64(id)), logx.String("item_id", it.ID))
	return o.signal(), nil
}

func (d *Desktop) loop() {
	for {
		select {
		case <-d.done:
			return
		case sig, ok := <-d.signals:
			if !ok {
				return
			}
			d.handleSignal(sig)
		}
	}
}

// handleSignal maps ActionInvoked(id, key) and NotificationClosed(id, reason).
func (d *Desktop) handleSignal(sig *dbus.Signal) {
	if sig == nil || len(sig.Body) < 2 {
		return
	}
	id, ok := sig.Body[0].(uint32)
	if !ok {
		return
	}
	var action Action
	switch sig.Name {
	case notifyIface + "." + memberInvoked:
		key, _ := sig.Body[1].(string)
		if key != defaultActionID && key != "Open" {
			return
		}
		action = ActionOpen
	case notifyIface + "." + memberClosed:
		action = ActionDismiss
	default:
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.pending[id]
	if !ok {
		// Other applications' notifications share the bus; remember a few
		// in case ours has not been registered yet.
		if _, seen := d.orphans[id]; !seen {
			if len(d.orphans) >= orphanLimit {
				clear(d.orphans)
			}
			d.orphans[id] = action
		}
		return
	}
	delete(d.pending, id)
	o.resolve(action)
}

// Close abandons outstanding signals and releases the bus connection.
func (d *Desktop) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for id, o := range d.pending {
		o.abandon()
		delete(d.pending, id)
	}
	close(d.done)
	d.mu.Unlock()

	if d.conn == nil {
		return nil
	}
	d.conn.RemoveSignal(d.signals)
	return d.conn.Close()
}
