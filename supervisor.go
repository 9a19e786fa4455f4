package intesismqtt

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// maxRetries bounds one reconnection sequence; after the attempt with
	// this index fails, the supervisor gives up until the next
	// disconnect/reconnect cycle.
	maxRetries = 10

	// maxWait caps the exponential backoff between attempts.
	maxWait = 300 * time.Second

	// reconnectDelay is the fixed delay before the first attempt of a
	// fresh sequence.
	reconnectDelay = 30 * time.Second
)

// callLaterFunc schedules fn on the supervisor's behalf after d and returns
// a cancel function reporting whether the call was stopped before it ran.
type callLaterFunc func(d time.Duration, fn func()) (cancel func() bool)

func afterFunc(d time.Duration, fn func()) func() bool {
	t := time.AfterFunc(d, fn)
	return t.Stop
}

// Supervisor watches the controller's connectivity on behalf of one device
// and drives reconnection with bounded exponential backoff. It also relays
// change notifications to a refresh callback.
//
// At most one retry sequence is active per supervisor: a disconnect observed
// while a sequence is already running does not start a second one, and an
// observed recovery cancels the pending attempt.
type Supervisor struct {
	controller connectable
	deviceID   string
	deviceType string
	refresh    func(force bool)
	callLater  callLaterFunc

	mu        sync.Mutex
	connected bool
	retrying  bool
	cancel    func() bool
}

// NewSupervisor binds a supervisor to deviceID. The controller is assumed
// connected at creation, matching a bridge that only builds devices after a
// successful setup. refresh is invoked, outside any lock, whenever a change
// notification targets this device.
func NewSupervisor(c connectable, deviceID, deviceType string, refresh func(force bool)) *Supervisor {
	return &Supervisor{
		controller: c,
		deviceID:   deviceID,
		deviceType: deviceType,
		refresh:    refresh,
		callLater:  afterFunc,
		connected:  true,
	}
}

// OnUpdate handles a change notification from the controller. It never
// fails: connection errors are recovered inside the retry loop.
func (s *Supervisor) OnUpdate(deviceID string) {
	now := s.controller.IsConnected()

	s.mu.Lock()
	switch {
	case s.connected && !now:
		// Connection has dropped.
		s.connected = false
		if !s.retrying {
			s.retrying = true
			log.Infof("connection to %s API was lost, reconnecting in %v", s.deviceType, reconnectDelay)
			s.cancel = s.callLater(reconnectDelay, func() { s.tryConnect(0) })
		}
	case !s.connected && now:
		// Connection has been restored from outside the retry loop.
		s.connected = true
		s.stopRetryLocked()
		log.Debugf("connection to %s API was restored", s.deviceType)
	}
	s.mu.Unlock()

	if deviceID == "" || deviceID == s.deviceID {
		s.refresh(true)
	}
}

// Connected reports the last connectivity state the supervisor observed.
func (s *Supervisor) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Stop cancels any pending reconnection attempt.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopRetryLocked()
}

func (s *Supervisor) stopRetryLocked() {
	s.retrying = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// backoffWait returns min(2^attempt, maxWait) seconds.
func backoffWait(attempt int) time.Duration {
	w := time.Second << uint(attempt)
	if w > maxWait || w <= 0 {
		w = maxWait
	}
	return w
}

func (s *Supervisor) tryConnect(attempt int) {
	if s.controller.IsConnected() {
		// Connectivity came back on its own while this attempt was
		// pending; nothing to do.
		s.mu.Lock()
		s.connected = true
		s.stopRetryLocked()
		s.mu.Unlock()
		return
	}

	err := s.controller.Connect(context.Background())
	if err == nil {
		s.mu.Lock()
		s.connected = true
		s.retrying = false
		s.cancel = nil
		s.mu.Unlock()
		log.Infof("reconnected to %s API", s.deviceType)
		return
	}

	if !errors.Is(err, ErrConnection) {
		// Not a designed failure path; give up on this sequence rather
		// than retrying something the backoff cannot fix.
		log.Errorf("unexpected error reconnecting to %s API: %v", s.deviceType, err)
		s.mu.Lock()
		s.retrying = false
		s.cancel = nil
		s.mu.Unlock()
		return
	}

	if attempt < maxRetries {
		wait := backoffWait(attempt)
		log.Infof("failed to reconnect to %s API, retrying in %v", s.deviceType, wait)
		s.mu.Lock()
		if s.retrying {
			s.cancel = s.callLater(wait, func() { s.tryConnect(attempt + 1) })
		}
		s.mu.Unlock()
		return
	}

	log.Errorf("failed to reconnect to %s API after %d retries, giving up", s.deviceType, maxRetries)
	s.mu.Lock()
	s.retrying = false
	s.cancel = nil
	s.mu.Unlock()
}
