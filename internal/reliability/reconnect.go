package reliability

import (
	"sync"
	"time"

	"github.com/ShadowCorp-Dev/nearconnect/internal/model"
	"github.com/ShadowCorp-Dev/nearconnect/internal/nearerr"
)

// ReconnectTrigger names an independently-enabled reconnection source.
type ReconnectTrigger string

const (
	TriggerVisibility    ReconnectTrigger = "visibility"
	TriggerNetworkOnline ReconnectTrigger = "network_online"
	TriggerWakeFromSleep ReconnectTrigger = "wake_from_sleep"
	TriggerHeartbeatFail ReconnectTrigger = "heartbeat_fail"
	TriggerUserActivity  ReconnectTrigger = "user_activity"
)

// ReconnectManagerConfig tunes reentry guards and sleep detection.
type ReconnectManagerConfig struct {
	MinReconnectInterval time.Duration
	SleepCheckInterval    time.Duration
	SleepThreshold        time.Duration
	Retry                 RetryConfig
}

// NewReconnectManagerConfig returns the documented defaults.
func NewReconnectManagerConfig() ReconnectManagerConfig {
	return ReconnectManagerConfig{
		MinReconnectInterval: 5 * time.Second,
		SleepCheckInterval:   10 * time.Second,
		SleepThreshold:       30 * time.Second,
		Retry:                NewRetryConfig(),
	}
}

// ReconnectFunc performs the actual reconnect; returns the refreshed
// account list on success.
type ReconnectFunc func() ([]model.Account, error)

// ReplayFunc replays one queued operation through the driver.
type ReplayFunc func(op *model.QueuedOperation) error

// ReconnectManager coordinates reconnect attempts from multiple trigger
// sources and replays the operation queue, FIFO, on success.
type ReconnectManager struct {
	mu          sync.Mutex
	cfg         ReconnectManagerConfig
	reconnect   ReconnectFunc
	replay      ReplayFunc
	attempting  bool
	lastAttempt time.Time
	queue       []*model.QueuedOperation

	lastSleepTick time.Time
	stop          chan struct{}

	onReplayResult func(op *model.QueuedOperation, err error)
}

// NewReconnectManager constructs a manager bound to reconnect/replay
// callbacks.
func NewReconnectManager(cfg ReconnectManagerConfig, reconnect ReconnectFunc, replay ReplayFunc) *ReconnectManager {
	if cfg.MinReconnectInterval <= 0 {
		cfg = NewReconnectManagerConfig()
	}
	return &ReconnectManager{cfg: cfg, reconnect: reconnect, replay: replay}
}

func (rm *ReconnectManager) OnReplayResult(f func(op *model.QueuedOperation, err error)) {
	rm.onReplayResult = f
}

// Enqueue appends op to the replay queue (FIFO order preserved).
func (rm *ReconnectManager) Enqueue(op *model.QueuedOperation) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.queue = append(rm.queue, op)
}

// Clear rejects every queued operation with a user-cancelled error and
// empties the queue.
func (rm *ReconnectManager) Clear() {
	rm.mu.Lock()
	queue := rm.queue
	rm.queue = nil
	rm.mu.Unlock()

	cancelErr := nearerr.New(nearerr.UserRejected, "cancelled by queue clear", nil)
	for _, op := range queue {
		if op.Reject != nil {
			op.Reject(cancelErr)
		}
	}
}

// QueueLen reports the number of queued operations awaiting replay.
func (rm *ReconnectManager) QueueLen() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.queue)
}

// Trigger attempts a reconnect from the given source. Reentry is blocked
// while a previous attempt is in flight or within MinReconnectInterval of
// the last attempt; those calls are silently ignored (not an error — a
// trigger firing redundantly is expected, e.g. visibility + network-online
// racing each other).
func (rm *ReconnectManager) Trigger(source ReconnectTrigger) {
	rm.mu.Lock()
	if rm.attempting || time.Since(rm.lastAttempt) < rm.cfg.MinReconnectInterval {
		rm.mu.Unlock()
		return
	}
	rm.attempting = true
	rm.lastAttempt = time.Now()
	rm.mu.Unlock()

	go rm.attempt()
}

func (rm *ReconnectManager) attempt() {
	defer func() {
		rm.mu.Lock()
		rm.attempting = false
		rm.mu.Unlock()
	}()

	_, err := WithRetry(rm.cfg.Retry, func() (any, error) {
		accounts, err := rm.reconnect()
		return accounts, err
	})
	if err != nil {
		return
	}
	rm.replayQueue()
}

// replayQueue drains the queue in FIFO order, reporting each outcome
// independently; the queue shrinks as each entry is replayed so a
// concurrent Clear never races a half-replayed entry.
func (rm *ReconnectManager) replayQueue() {
	for {
		rm.mu.Lock()
		if len(rm.queue) == 0 {
			rm.mu.Unlock()
			return
		}
		op := rm.queue[0]
		rm.queue = rm.queue[1:]
		rm.mu.Unlock()

		err := rm.replay(op)
		if err == nil && op.Resolve != nil {
			op.Resolve(nil)
		} else if err != nil && op.Reject != nil {
			op.Reject(err)
		}
		if rm.onReplayResult != nil {
			rm.onReplayResult(op, err)
		}
	}
}

// StartSleepDetection launches the 10s tick used to detect wake-from-sleep:
// if a tick fires more than SleepThreshold late, the process (and likely the
// device/socket) was suspended, and TriggerWakeFromSleep fires.
func (rm *ReconnectManager) StartSleepDetection() {
	rm.mu.Lock()
	if rm.stop != nil {
		rm.mu.Unlock()
		return
	}
	rm.stop = make(chan struct{})
	rm.lastSleepTick = time.Now()
	stop := rm.stop
	rm.mu.Unlock()

	go func() {
		ticker := time.NewTicker(rm.cfg.SleepCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				rm.mu.Lock()
				expected := rm.lastSleepTick.Add(rm.cfg.SleepCheckInterval)
				behind := now.Sub(expected)
				rm.lastSleepTick = now
				rm.mu.Unlock()
				if behind >= rm.cfg.SleepThreshold {
					rm.Trigger(TriggerWakeFromSleep)
				}
			}
		}
	}()
}

// Destroy cancels timers and listeners; any in-flight attempt still
// completes but no further triggers fire.
func (rm *ReconnectManager) Destroy() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.stop != nil {
		close(rm.stop)
		rm.stop = nil
	}
}
