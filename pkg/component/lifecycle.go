package component

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/pilot/pkg/health"
	"github.com/cuemby/pilot/pkg/log"
	"github.com/cuemby/pilot/pkg/metrics"
)

const (
	idlerThreadWatcher = "thread-watcher"
	idlerProfileFlush  = "profile-flush"
	idlerHeartbeatChk  = "heartbeat-check"
	idlerHeartbeatEmit = "heartbeat-emit"

	profileFlushInterval = 60 * time.Second
)

// OnAlive, if set before Start, is invoked whenever this component
// observes an "alive" control message from any sender (including
// itself). Session-level component tracking hooks in here; Component
// itself does not keep a registry of peers.
type AliveHook func(sender, owner string)

// Start performs the component's post-construction initialization and
// launches its event loop. It corresponds to the spec's
// initializeCommon + initializeChild (spec §4.3 steps 3-4): every lock,
// goroutine, and bridge connection a Component uses is created here, not
// in New. Whether this call happens in the process that would otherwise
// have spawned a child, or inside an actual spawned child process, is a
// decision pkg/launch makes outside of Component — from Component's own
// point of view Start always performs the "child" initialization.
func (c *Component) Start(ctx context.Context) error {
	c.initializeCommon()
	if err := c.initializeChild(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.loopCancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runLoop(loopCtx)
	}()

	metrics.ComponentsTotal.WithLabelValues(c.Kind).Inc()
	return nil
}

// initializeCommon allocates the locks and per-instance state every
// Component needs, registers the log/state/control publishers, and
// arms the thread-watcher and profile-flush idlers. Run in both the
// "parent runs it inline" and "spawned child" cases alike (spec §4.3
// step 3).
func (c *Component) initializeCommon() {
	c.lock = newCallbackLock()
	c.threadErr = make(chan error, 1)
	c.logger = log.WithComponent(c.Config.UID, c.Kind)

	for _, ch := range []string{"log", "state", "control"} {
		if err := c.RegisterPublisher(ch); err != nil {
			c.logger.Warn().Err(err).Str("channel", ch).Msg("component: channel not configured")
		}
	}

	c.RegisterTimedCB(idlerThreadWatcher, c.checkThreadHealth, nil, 0)
	c.RegisterTimedCB(idlerProfileFlush, c.flushProfile, nil, profileFlushInterval)
}

// checkThreadHealth is the thread-watcher idler body: any subscriber or
// idler goroutine that panics reports itself on threadErr instead of
// silently vanishing (spec §7, "Thread death ... fatal: raise from the
// watcher idler, finalise and exit").
func (c *Component) checkThreadHealth(_ interface{}) {
	select {
	case err := <-c.threadErr:
		c.logger.Error().Err(err).Msg("component: callback thread died, terminating")
		go c.Stop()
	default:
	}
}

// flushProfile is the profile-flush idler body (spec §7, "profiles and
// logs are flushed by the periodic profile-flush idler (every 60s)").
// zerolog writes synchronously, so there is no buffered writer to flush
// here; this idler's role is to refresh the point-in-time gauges a
// profiler would otherwise sample on its own schedule.
func (c *Component) flushProfile(_ interface{}) {
	if c.heart != nil {
		metrics.HeartbeatAgeSeconds.WithLabelValues(c.Config.UID).Set(time.Since(c.heart.LastSeen).Seconds())
	}
}

// initializeChild subscribes to control for heartbeat monitoring and
// cancel requests, arms the heartbeat emit/check idlers, installs
// SIGTERM/SIGHUP handlers, and publishes this component's "alive"
// message (spec §4.3 step 4).
func (c *Component) initializeChild(ctx context.Context) error {
	c.heart = health.NewStatus()
	c.heartCfg = health.ConfigFromComponent(
		c.Config.HeartbeatIntervalDuration(),
		c.Config.HeartbeatTimeoutDuration(),
	)

	if err := c.RegisterSubscriber("control", c.handleControl, nil); err != nil {
		return err
	}

	interval := c.Config.HeartbeatIntervalDuration()
	if interval <= 0 {
		interval = time.Second
	}
	c.RegisterTimedCB(idlerHeartbeatEmit, c.emitHeartbeat, nil, interval)
	c.RegisterTimedCB(idlerHeartbeatChk, c.checkHeartbeat, nil, interval)

	c.installSignalHandlers()

	metrics.RegisterComponent(c.Config.UID, c.Kind, true, "started")

	return c.publishAlive(ctx)
}

func (c *Component) installSignalHandlers() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGHUP)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-sigCh:
			c.logger.Info().Msg("component: received termination signal")
			go c.Stop()
		case <-c.stopped:
		}
		signal.Stop(sigCh)
	}()
}

func (c *Component) publishAlive(ctx context.Context) error {
	arg := AliveArg{Sender: c.Config.UID, Owner: c.Config.Owner}
	payload, err := encodeControl(CmdAlive, arg)
	if err != nil {
		return err
	}
	p, err := c.getPubSub("control")
	if err != nil {
		return err
	}
	return p.Publish(ctx, payload)
}

func (c *Component) emitHeartbeat(_ interface{}) {
	arg := HeartbeatArg{Sender: c.Config.UID}
	payload, err := encodeControl(CmdHeartbeat, arg)
	if err != nil {
		c.logger.Error().Err(err).Msg("component: encode heartbeat")
		return
	}
	if err := c.Publish(context.Background(), "control", payload); err != nil {
		c.logger.Warn().Err(err).Msg("component: publish heartbeat")
	}
}

func (c *Component) checkHeartbeat(_ interface{}) {
	result := c.heart.Sample(time.Now(), c.heartCfg)
	metrics.HeartbeatAgeSeconds.WithLabelValues(c.Config.UID).Set(time.Since(c.heart.LastSeen).Seconds())
	if !result.Alive {
		metrics.HeartbeatTimeoutsTotal.WithLabelValues(c.Config.UID).Inc()
		metrics.UpdateComponent(c.Config.UID, c.Kind, false, "heartbeat timeout")
		c.logger.Error().
			Str("heart", c.Config.EffectiveHeart()).
			Msg("component: heartbeat timeout, terminating")
		go c.Stop()
	}
}

// handleControl is the subscriber callback bound to the control
// channel: it decodes the closed {alive, heartbeat, cancel_units}
// command set (spec §3.3, §6) and ignores anything else.
func (c *Component) handleControl(_ string, payload []byte, _ interface{}) {
	msg, err := decodeControl(payload)
	if err != nil {
		c.logger.Warn().Err(err).Msg("component: malformed control message")
		return
	}
	switch msg.Cmd {
	case CmdAlive:
		var arg AliveArg
		if err := decodeArg(msg.Arg, &arg); err != nil {
			return
		}
		if c.OnAlive != nil {
			c.OnAlive(arg.Sender, arg.Owner)
		}
	case CmdHeartbeat:
		var arg HeartbeatArg
		if err := decodeArg(msg.Arg, &arg); err != nil {
			return
		}
		if arg.Sender == c.Config.EffectiveHeart() {
			c.heart.Seen(time.Now())
		}
	case CmdCancelUnits:
		var arg CancelUnitsArg
		if err := decodeArg(msg.Arg, &arg); err != nil {
			return
		}
		c.markCanceled(arg.UIDs)
	default:
		c.logger.Debug().Str("cmd", msg.Cmd).Msg("component: unknown control command, ignoring")
	}
}

// Stop signals every idler and subscriber goroutine to terminate, stops
// the event loop, joins every goroutine except the caller's own, and
// runs the finalizers. Stop is idempotent and safe to call from a
// callback goroutine (spec §4.3 step 6) — in that case its own
// goroutine is, by construction, never joined from within itself since
// sync.Once + WaitGroup.Wait on every *other* tracked goroutine doesn't
// block on the caller.
func (c *Component) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopped)
		if c.loopCancel != nil {
			c.loopCancel()
		}

		c.regMu.Lock()
		subs := make([]*subscription, 0, len(c.subs))
		for _, s := range c.subs {
			subs = append(subs, s)
		}
		idlers := make([]*idler, 0, len(c.idlers))
		for _, i := range c.idlers {
			idlers = append(idlers, i)
		}
		c.regMu.Unlock()

		for _, s := range subs {
			closeIfOpen(s.stop)
		}
		for _, i := range idlers {
			closeIfOpen(i.stop)
		}

		// A blocked callback goroutine may be parked waiting on the
		// callback lock; drop it so stop doesn't deadlock waiting for
		// that goroutine to finish its own Unlock (spec §4.3 step 6,
		// "drops any held callback lock so blocked threads can exit").
		c.lock.Unlock()

		c.wg.Wait()
		c.finalizeChild()
		c.finalizeCommon()
	})
}

func closeIfOpen(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}

// Wait blocks until Stop has fully run.
func (c *Component) Wait() {
	<-c.stopped
	// stopped closes at the start of Stop; Do returns only once the
	// running Stop body (join and finalizers) has returned.
	c.stopOnce.Do(func() {})
}

func (c *Component) finalizeChild() {
	metrics.HeartbeatTimeoutsTotal.WithLabelValues(c.Config.UID)
}

func (c *Component) finalizeCommon() {
	metrics.ComponentsTotal.WithLabelValues(c.Kind).Dec()
	metrics.Forget(c.Config.UID)
	c.logger.Info().Time("closed_at", time.Now()).Msg("component: stopped")
}
