package ble

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/chesslink-companion/internal/protocol"
)

// State is the connection lifecycle state. Conflicting operations are
// rejected here instead of relying on the views to disable buttons.
type State string

const (
	StateIdle       State = "idle"
	StateScanning   State = "scanning"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
)

const (
	DefaultScanWindow     = 4 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

type stateCallbackEntry struct {
	id       int
	callback func(State)
}

type peripheralsCallbackEntry struct {
	id       int
	callback func([]Peripheral)
}

// Central owns the discovered-peripheral list and at most one active link.
type Central struct {
	adapter        Adapter
	serviceUUID    string
	charUUID       string
	preferredName  string
	scanWindow     time.Duration
	connectTimeout time.Duration

	mu          sync.RWMutex
	state       State
	peripherals []Peripheral
	seen        map[string]int // peripheral id -> index, for wholesale rebuilds
	link        Link
	connected   Peripheral

	cbM      sync.RWMutex
	stateCbs []stateCallbackEntry
	listCbs  []peripheralsCallbackEntry
	nextCb   int

	logger *zap.Logger
}

type Option func(*Central)

func WithScanWindow(d time.Duration) Option {
	return func(c *Central) {
		if d > 0 {
			c.scanWindow = d
		}
	}
}

func WithConnectTimeout(d time.Duration) Option {
	return func(c *Central) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

func WithUUIDs(serviceUUID, charUUID string) Option {
	return func(c *Central) {
		if serviceUUID != "" {
			c.serviceUUID = serviceUUID
		}
		if charUUID != "" {
			c.charUUID = charUUID
		}
	}
}

// WithPreferredName bubbles peripherals advertising the given name to the
// front of the scan-result list.
func WithPreferredName(name string) Option {
	return func(c *Central) { c.preferredName = name }
}

func NewCentral(adapter Adapter, logger *zap.Logger, opts ...Option) *Central {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Central{
		adapter:        adapter,
		serviceUUID:    protocol.ServiceUUID,
		charUUID:       protocol.CharacteristicUUID,
		scanWindow:     DefaultScanWindow,
		connectTimeout: DefaultConnectTimeout,
		state:          StateIdle,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Central) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Scanning reports whether a scan window is open.
func (c *Central) Scanning() bool { return c.State() == StateScanning }

// Peripherals returns a copy of the last scan's result list, with
// preferred-name matches first.
func (c *Central) Peripherals() []Peripheral {
	c.mu.RLock()
	list := append([]Peripheral(nil), c.peripherals...)
	name := c.preferredName
	c.mu.RUnlock()
	if name == "" {
		return list
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Name == name && list[j].Name != name
	})
	return list
}

// Connected returns the peripheral behind the active link, if any.
func (c *Central) Connected() (Peripheral, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected, c.state == StateConnected
}

// OnStateChange registers a lifecycle observer.
func (c *Central) OnStateChange(cb func(State)) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextCb++
	id := c.nextCb
	c.stateCbs = append(c.stateCbs, stateCallbackEntry{id: id, callback: cb})
	return id
}

func (c *Central) RemoveStateCallback(id int) {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	for i, cb := range c.stateCbs {
		if cb.id == id {
			c.stateCbs = append(c.stateCbs[:i], c.stateCbs[i+1:]...)
			break
		}
	}
}

// OnPeripherals registers an observer for scan-result list updates.
func (c *Central) OnPeripherals(cb func([]Peripheral)) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextCb++
	id := c.nextCb
	c.listCbs = append(c.listCbs, peripheralsCallbackEntry{id: id, callback: cb})
	return id
}

func (c *Central) RemovePeripheralsCallback(id int) {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	for i, cb := range c.listCbs {
		if cb.id == id {
			c.listCbs = append(c.listCbs[:i], c.listCbs[i+1:]...)
			break
		}
	}
}

func (c *Central) notifyPeripherals(list []Peripheral) {
	c.cbM.RLock()
	callbacks := make([]peripheralsCallbackEntry, len(c.listCbs))
	copy(callbacks, c.listCbs)
	c.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(append([]Peripheral(nil), list...))
		}
	}
}

// Scan opens a fixed discovery window. The result list is reset to empty up
// front and rebuilt wholesale as results arrive. Scan blocks until the
// window elapses; the scanning flag always clears on return, even when
// discovery failed to start.
func (c *Central) Scan(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateScanning:
		c.mu.Unlock()
		return ErrScanInProgress
	case StateConnecting:
		c.mu.Unlock()
		return ErrConnectInProgress
	case StateConnected:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateScanning
	c.peripherals = nil
	c.seen = make(map[string]int)
	c.mu.Unlock()
	c.fanoutState(StateScanning)
	c.notifyPeripherals(nil)

	sctx, cancel := context.WithTimeout(ctx, c.scanWindow)
	defer cancel()

	err := c.adapter.Scan(sctx, c.addResult)

	c.mu.Lock()
	if c.state == StateScanning {
		c.state = StateIdle
	}
	c.mu.Unlock()
	c.fanoutState(StateIdle)

	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		c.logger.Warn("scan_failed", zap.Error(err))
		return err
	}
	c.logger.Info("scan_done", zap.Int("peripherals", len(c.Peripherals())))
	return nil
}

func (c *Central) addResult(p Peripheral) {
	c.mu.Lock()
	if c.state != StateScanning {
		c.mu.Unlock()
		return
	}
	if i, ok := c.seen[p.ID]; ok {
		c.peripherals[i] = p
	} else {
		c.seen[p.ID] = len(c.peripherals)
		c.peripherals = append(c.peripherals, p)
	}
	list := append([]Peripheral(nil), c.peripherals...)
	c.mu.Unlock()
	c.notifyPeripherals(list)
}

// Connect dials the peripheral within the configured timeout, subscribes to
// the board characteristic, and sends the liveness probe. Incoming payloads
// are decoded as UTF-8 and forwarded to onMessage. Failure is reported as a
// *ConnectError carrying the cause kind.
func (c *Central) Connect(ctx context.Context, p Peripheral, onMessage func(string)) error {
	c.mu.Lock()
	switch c.state {
	case StateScanning:
		c.mu.Unlock()
		return ErrScanInProgress
	case StateConnecting:
		c.mu.Unlock()
		return ErrConnectInProgress
	case StateConnected:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()
	c.fanoutState(StateConnecting)

	cctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	notify := func(b []byte) {
		if onMessage != nil {
			onMessage(string(b))
		}
	}
	link, err := c.adapter.Connect(cctx, p.ID, c.serviceUUID, c.charUUID, notify)
	if err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		c.fanoutState(StateIdle)
		cerr := classifyConnectError(err)
		c.logger.Warn("connect_failed",
			zap.String("peripheral", p.ID),
			zap.String("kind", string(cerr.Kind)),
			zap.Error(err),
		)
		return cerr
	}

	c.mu.Lock()
	c.link = link
	c.connected = p
	c.state = StateConnected
	c.mu.Unlock()
	c.fanoutState(StateConnected)
	c.logger.Info("connected", zap.String("peripheral", p.ID), zap.String("name", p.Name))

	if err := link.Write([]byte(protocol.Ping)); err != nil {
		// Probe failure is not fatal; the link stays up and PONG just
		// never arrives.
		c.logger.Warn("liveness_probe_failed", zap.Error(err))
	}
	return nil
}

// SendText writes s to the board. With no active link it is a silent no-op.
func (c *Central) SendText(s string) error {
	c.mu.RLock()
	link := c.link
	st := c.state
	c.mu.RUnlock()
	if link == nil || st != StateConnected {
		c.logger.Debug("send_skipped_not_connected", zap.String("text", s))
		return nil
	}
	if err := link.Write([]byte(s)); err != nil {
		c.logger.Error("send_failed", zap.Error(err))
		return err
	}
	return nil
}

// Disconnect cancels the subscription and releases the link. Idempotent.
func (c *Central) Disconnect() {
	c.mu.Lock()
	link := c.link
	c.link = nil
	c.connected = Peripheral{}
	wasConnected := c.state == StateConnected
	if wasConnected {
		c.state = StateIdle
	}
	c.mu.Unlock()

	if link != nil {
		if err := link.Unsubscribe(); err != nil {
			c.logger.Debug("unsubscribe_failed", zap.Error(err))
		}
		if err := link.Close(); err != nil {
			c.logger.Debug("link_close_failed", zap.Error(err))
		}
	}
	if wasConnected {
		c.fanoutState(StateIdle)
		c.logger.Info("disconnected")
	}
}

// fanoutState notifies observers of the current state without re-checking
// for duplicates; callers only invoke it after an actual transition.
func (c *Central) fanoutState(s State) {
	c.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(c.stateCbs))
	copy(callbacks, c.stateCbs)
	c.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(s)
		}
	}
}
