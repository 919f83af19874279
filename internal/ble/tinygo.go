package ble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"
)

// TinyGoAdapter drives the host radio through tinygo.org/x/bluetooth.
// Peripheral IDs are the stringified addresses from the last scan; the raw
// address is cached so Connect can dial without re-parsing platform-specific
// address formats.
type TinyGoAdapter struct {
	adapter *bluetooth.Adapter
	logger  *zap.Logger

	mu    sync.Mutex
	addrs map[string]bluetooth.Address
}

func NewTinyGoAdapter(logger *zap.Logger) (*TinyGoAdapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := bluetooth.DefaultAdapter
	if err := a.Enable(); err != nil {
		return nil, fmt.Errorf("enable bluetooth adapter: %w", err)
	}
	return &TinyGoAdapter{
		adapter: a,
		logger:  logger,
		addrs:   make(map[string]bluetooth.Address),
	}, nil
}

func (t *TinyGoAdapter) Scan(ctx context.Context, found func(Peripheral)) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- t.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
			id := r.Address.String()
			t.mu.Lock()
			t.addrs[id] = r.Address
			t.mu.Unlock()
			if found != nil {
				found(Peripheral{ID: id, Name: r.LocalName(), RSSI: r.RSSI})
			}
		})
	}()

	select {
	case <-ctx.Done():
		if err := t.adapter.StopScan(); err != nil {
			t.logger.Debug("stop_scan_failed", zap.Error(err))
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (t *TinyGoAdapter) Connect(ctx context.Context, id, serviceUUID, charUUID string, notify func([]byte)) (Link, error) {
	t.mu.Lock()
	addr, ok := t.addrs[id]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeripheral, id)
	}

	svcUUID, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("parse service uuid: %w", err)
	}
	chrUUID, err := bluetooth.ParseUUID(charUUID)
	if err != nil {
		return nil, fmt.Errorf("parse characteristic uuid: %w", err)
	}

	timeout := 10 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}

	// The dial and discovery calls below do not take a context, so they run
	// in a goroutine and the result is abandoned on deadline.
	type dialResult struct {
		link *tinygoLink
		err  error
	}
	resCh := make(chan dialResult, 1)
	go func() {
		dev, err := t.adapter.Connect(addr, bluetooth.ConnectionParams{
			ConnectionTimeout: bluetooth.NewDuration(timeout),
		})
		if err != nil {
			resCh <- dialResult{err: fmt.Errorf("dial %s: %w", id, err)}
			return
		}
		svcs, err := dev.DiscoverServices([]bluetooth.UUID{svcUUID})
		if err != nil || len(svcs) == 0 {
			_ = dev.Disconnect()
			resCh <- dialResult{err: fmt.Errorf("%w: %s", ErrServiceNotFound, serviceUUID)}
			return
		}
		chars, err := svcs[0].DiscoverCharacteristics([]bluetooth.UUID{chrUUID})
		if err != nil || len(chars) == 0 {
			_ = dev.Disconnect()
			resCh <- dialResult{err: fmt.Errorf("%w: %s", ErrCharacteristicNotFound, charUUID)}
			return
		}
		char := chars[0]
		if err := char.EnableNotifications(func(buf []byte) {
			if notify != nil {
				notify(append([]byte(nil), buf...))
			}
		}); err != nil {
			_ = dev.Disconnect()
			resCh <- dialResult{err: fmt.Errorf("enable notifications: %w", err)}
			return
		}
		resCh <- dialResult{link: &tinygoLink{dev: dev, char: char}}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if res := <-resCh; res.link != nil {
				_ = res.link.Close()
			}
		}()
		return nil, ctx.Err()
	case res := <-resCh:
		return res.link, res.err
	}
}

type tinygoLink struct {
	dev  bluetooth.Device
	char bluetooth.DeviceCharacteristic
}

func (l *tinygoLink) Write(p []byte) error {
	_, err := l.char.WriteWithoutResponse(p)
	return err
}

func (l *tinygoLink) Unsubscribe() error {
	return l.char.EnableNotifications(nil)
}

func (l *tinygoLink) Close() error {
	return l.dev.Disconnect()
}
