// SPDX-License-Identifier: GPL-3.0-only

// Package controller owns all brightness state and serializes every change to
// it on a single goroutine. Other goroutines post commands and read snapshots.
package controller

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/shini4i/edr-brightness-daemon/internal/als"
	"github.com/shini4i/edr-brightness-daemon/internal/auto"
	"github.com/shini4i/edr-brightness-daemon/internal/config"
	"github.com/shini4i/edr-brightness-daemon/internal/gain"
)

const (
	// PollInterval is the period of the cap and duck poll.
	PollInterval = time.Second

	// NotSupportedProbeDelay is how long a negative capability probe waits
	// before it is confirmed.
	NotSupportedProbeDelay = 800 * time.Millisecond

	// RecoveryBurst is how long a recovery burst holds the overlay.
	RecoveryBurst = 2 * time.Second

	// DisengagedPolls is how many consecutive polls must see the extended
	// range collapsed before a recovery burst starts.
	DisengagedPolls = 2

	// disengagedHeadroom is the reference headroom treated as collapsed.
	disengagedHeadroom = 1.02

	commandQueueSize = 32
)

var (
	// ErrStopped is returned by commands posted after Run returned.
	ErrStopped = errors.New("controller stopped")

	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("controller already running")

	errPanicked = errors.New("command panicked")
)

type command struct {
	name string
	fn   func(now time.Time) error
	done chan error
}

// Controller is the single owner of the brightness pipeline. All fields
// below the collaborators are touched only by the Run goroutine, or before
// Run starts.
type Controller struct {
	caps      Capabilities
	overlay   Overlay
	hdr       HDRDetector
	store     Persister
	observers []Observer
	now       func() time.Time

	samplerCfg als.SamplerConfig
	settings   config.Settings
	sampler    *als.Sampler
	auto       *auto.Controller
	gain       *gain.Controller

	displays        []string
	capDetails      gain.CapDetails
	notSupported    bool
	probeDue        time.Time
	recoveryUntil   time.Time
	disengagedPolls int
	recoveries      uint64
	panics          uint64

	cmds     chan command
	saves    chan config.Settings
	stopped  chan struct{}
	running  atomic.Bool
	snapshot atomic.Pointer[Snapshot]
}

// Option configures a Controller.
type Option func(*Controller)

// WithOverlay sets the overlay driven by recovery bursts and capability
// reports.
func WithOverlay(o Overlay) Option {
	return func(c *Controller) { c.overlay = o }
}

// WithHDRDetector sets the source of the HDR-likely signal.
func WithHDRDetector(d HDRDetector) Option {
	return func(c *Controller) { c.hdr = d }
}

// WithPersister sets where changed settings are saved.
func WithPersister(p Persister) Option {
	return func(c *Controller) { c.store = p }
}

// WithObserver adds a snapshot observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, o) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithSamplerConfig replaces the sampler tuning. The blend constants still
// come from the settings.
func WithSamplerConfig(cfg als.SamplerConfig) Option {
	return func(c *Controller) { c.samplerCfg = cfg }
}

// New creates a controller from the loaded settings. Nothing runs until Run.
func New(binder als.Binder, caps Capabilities, applier Applier, settings config.Settings, opts ...Option) *Controller {
	settings.Clamp()

	c := &Controller{
		caps:       caps,
		now:        time.Now,
		samplerCfg: als.DefaultSamplerConfig(),
		settings:   settings,
		cmds:       make(chan command, commandQueueSize),
		saves:      make(chan config.Settings, 1),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.samplerCfg.Blend = settings.BlendConfig()
	c.sampler = als.NewSampler(binder, settings.Calibrator(), c.samplerCfg)
	c.auto = auto.NewController(settings.AutoProfile(), settings.SampleHz)

	var ga gain.Applier
	if applier != nil {
		ga = applier
	}
	c.gain = gain.NewController(ga, settings.DuckConfig())
	c.gain.SetUserPercent(settings.UserPercent)
	c.capDetails = gain.ComputeCap(nil, false, settings.CapConfig())

	c.publish(c.now())
	return c
}

// Run drives the controller until ctx is cancelled. It must be called once.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	saverDone := make(chan struct{})
	go c.saveLoop(saverDone)
	defer func() { <-saverDone }()
	defer close(c.stopped)

	var t loopTimers
	defer t.stop()

	log.Info().
		Str("profile", c.settings.Profile).
		Bool("auto", c.settings.AutoEnabled).
		Float64("sampleHz", c.settings.SampleHz).
		Msg("Controller started")

	c.guard("poll", c.pollTick)
	t.reconcile(c)

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			log.Info().Msg("Controller stopped")
			return nil
		case cmd := <-c.cmds:
			cmd.done <- c.exec(cmd)
		case <-t.sampleC():
			c.guard("sample", c.sampleTick)
		case <-t.poll.C:
			c.guard("poll", c.pollTick)
		case <-t.duckC():
			c.guard("duck", c.duckTick)
		case <-t.deadlineC():
			t.deadline, t.deadlineAt = nil, time.Time{}
			c.guard("deadline", c.onDeadline)
		}
		t.reconcile(c)
	}
}

// guard runs one tick body and contains any panic so it never crosses the
// tick boundary.
func (c *Controller) guard(task string, fn func(now time.Time)) {
	defer func() {
		if r := recover(); r != nil {
			c.panics++
			log.Error().Interface("panic", r).Str("task", task).Msg("Recovered from panic in controller tick")
		}
	}()
	fn(c.now())
}

func (c *Controller) exec(cmd command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.panics++
			log.Error().Interface("panic", r).Str("command", cmd.name).Msg("Recovered from panic in controller command")
			err = fmt.Errorf("%s: %w", cmd.name, errPanicked)
		}
	}()
	return cmd.fn(c.now())
}

// do posts fn to the Run goroutine and waits for its result.
func (c *Controller) do(ctx context.Context, name string, fn func(now time.Time) error) error {
	cmd := command{name: name, fn: fn, done: make(chan error, 1)}
	select {
	case c.cmds <- cmd:
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.done:
		return err
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn without waiting for it to run.
func (c *Controller) post(name string, fn func(now time.Time)) {
	cmd := command{
		name: name,
		fn:   func(now time.Time) error { fn(now); return nil },
		done: make(chan error, 1),
	}
	select {
	case c.cmds <- cmd:
	case <-c.stopped:
		log.Debug().Str("event", name).Msg("Dropping event for stopped controller")
	}
}

func (c *Controller) shutdown() {
	if !c.recoveryUntil.IsZero() && c.overlay != nil {
		c.overlay.EndRecovery()
	}
	c.recoveryUntil = time.Time{}
}

// sampleTick runs the sensor pipeline and folds the estimate into the auto
// state machine. With no estimate the state machine holds its last input.
func (c *Controller) sampleTick(now time.Time) {
	if !c.settings.AutoEnabled {
		return
	}

	est, ok := c.sampler.Tick(now, c.auto.Profile().FilterTau)
	if !ok {
		c.publish(now)
		return
	}

	d := c.auto.Evaluate(est.Lux, now)
	log.Debug().
		Float64("lux", est.Lux).
		Float64("dx", est.DX).
		Float64("blend", est.BlendWeight).
		Bool("surrogate", est.Surrogate).
		Str("state", d.State.String()).
		Float64("percent", d.Percent).
		Msg("Sample")

	if d.Transition != auto.NoTransition {
		c.applyIntent()
		c.gain.Apply()
	}
	c.publish(now)
}

// pollTick recomputes the cap, watches for a collapsed extended range,
// folds the HDR signal and applies the gain.
func (c *Controller) pollTick(now time.Time) {
	c.refreshCap(now)
	c.watchEngagement(now)
	if c.hdr != nil {
		c.gain.ObserveHDR(c.hdr.HDRContentLikely(), now)
	}
	c.applyIntent()
	c.gain.Apply()
	c.publish(now)
}

func (c *Controller) duckTick(now time.Time) {
	if c.gain.TickDuck(now) {
		c.gain.Apply()
	}
	c.publish(now)
}

func (c *Controller) onDeadline(now time.Time) {
	if !c.recoveryUntil.IsZero() && !now.Before(c.recoveryUntil) {
		c.recoveryUntil = time.Time{}
		if c.overlay != nil {
			c.overlay.EndRecovery()
		}
		log.Info().Msg("Recovery burst finished")
	}
	if !c.probeDue.IsZero() && !now.Before(c.probeDue) {
		c.probeDue = time.Time{}
		c.confirmNotSupported()
	}
	c.publish(now)
}

func (c *Controller) nextDeadline() time.Time {
	switch {
	case c.recoveryUntil.IsZero():
		return c.probeDue
	case c.probeDue.IsZero():
		return c.recoveryUntil
	case c.probeDue.Before(c.recoveryUntil):
		return c.probeDue
	default:
		return c.recoveryUntil
	}
}

func (c *Controller) readCaps() ([]gain.Headroom, bool) {
	if c.caps == nil {
		return nil, false
	}
	return c.caps.Headroom(), c.caps.AnyEDR()
}

// refreshCap installs a fresh cap and target list. The factor is re-derived
// from the intent, never carried over from the old cap.
func (c *Controller) refreshCap(now time.Time) {
	readings, anyEDR := c.readCaps()
	d := gain.ComputeCap(readings, anyEDR, c.settings.CapConfig())
	if d.Cap != c.capDetails.Cap {
		log.Info().
			Float64("cap", d.Cap).
			Float64("previous", c.capDetails.Cap).
			Str("display", d.BestDisplay).
			Msg("Gain cap changed")
	}
	c.capDetails = d
	c.gain.SetCap(d.Cap)

	targets := lo.FilterMap(readings, func(h gain.Headroom, _ int) (string, bool) {
		return h.DisplayID, h.Target
	})
	if !slices.Equal(targets, c.displays) {
		log.Info().Strs("displays", targets).Msg("Target displays changed")
		c.displays = targets
		c.gain.SetDisplays(targets)
	}

	switch {
	case d.SawEDR:
		c.probeDue = time.Time{}
	case !c.notSupported && c.probeDue.IsZero():
		c.probeDue = now.Add(NotSupportedProbeDelay)
		log.Debug().Msg("No extended range display seen, scheduling re-probe")
	}
}

func (c *Controller) confirmNotSupported() {
	readings, anyEDR := c.readCaps()
	if gain.ComputeCap(readings, anyEDR, c.settings.CapConfig()).SawEDR {
		return
	}
	c.notSupported = true
	log.Warn().Msg("No display supports extended range")
	if c.overlay != nil {
		c.overlay.DisplayNotSupported(true)
	}
}

// watchEngagement starts a recovery burst when the reference headroom has
// collapsed to unity for DisengagedPolls polls while gain is wanted.
func (c *Controller) watchEngagement(now time.Time) {
	percent, active := c.intent()
	collapsed := active && percent > 0 &&
		c.capDetails.SawEDR &&
		c.capDetails.BestDisplay != "" &&
		c.capDetails.BestRef <= disengagedHeadroom
	if !collapsed {
		c.disengagedPolls = 0
		return
	}

	c.disengagedPolls++
	if c.disengagedPolls < DisengagedPolls || !c.recoveryUntil.IsZero() {
		return
	}

	c.disengagedPolls = 0
	c.recoveryUntil = now.Add(RecoveryBurst)
	c.recoveries++
	log.Warn().
		Float64("headroom", c.capDetails.BestRef).
		Str("display", c.capDetails.BestDisplay).
		Msg("Extended range disengaged, starting recovery burst")
	if c.overlay != nil {
		c.overlay.BeginRecovery()
	}
	c.gain.Invalidate()
}

// intent is the percent and engagement the gain path should follow.
func (c *Controller) intent() (float64, bool) {
	if c.settings.AutoEnabled {
		return c.auto.Percent(), c.auto.State() == auto.Enabled
	}
	return c.settings.UserPercent, c.settings.Enabled
}

func (c *Controller) applyIntent() {
	percent, active := c.intent()
	c.gain.SetActive(active)
	c.gain.SetUserPercent(percent)
}

// persist hands the settings to the save goroutine, replacing any save
// still pending.
func (c *Controller) persist() {
	if c.store == nil {
		return
	}
	select {
	case <-c.saves:
	default:
	}
	select {
	case c.saves <- c.settings:
	default:
	}
}

func (c *Controller) saveLoop(done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case s := <-c.saves:
			c.save(s)
		case <-c.stopped:
			select {
			case s := <-c.saves:
				c.save(s)
			default:
			}
			return
		}
	}
}

func (c *Controller) save(s config.Settings) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(s); err != nil {
		log.Error().Err(err).Msg("Failed to save settings")
	}
}

// loopTimers holds the Run goroutine's tickers. A nil ticker disables its
// case in the select.
type loopTimers struct {
	sample      *time.Ticker
	sampleEvery time.Duration
	poll        *time.Ticker
	duck        *time.Ticker
	deadline    *time.Timer
	deadlineAt  time.Time
}

func (t *loopTimers) sampleC() <-chan time.Time {
	if t.sample == nil {
		return nil
	}
	return t.sample.C
}

func (t *loopTimers) duckC() <-chan time.Time {
	if t.duck == nil {
		return nil
	}
	return t.duck.C
}

func (t *loopTimers) deadlineC() <-chan time.Time {
	if t.deadline == nil {
		return nil
	}
	return t.deadline.C
}

// reconcile starts, stops or re-arms each timer to match the controller.
func (t *loopTimers) reconcile(c *Controller) {
	if t.poll == nil {
		t.poll = time.NewTicker(PollInterval)
	}

	every := c.settings.SampleInterval()
	switch {
	case !c.settings.AutoEnabled && t.sample != nil:
		t.sample.Stop()
		t.sample = nil
		log.Debug().Msg("Sampling stopped")
	case c.settings.AutoEnabled && t.sample == nil:
		t.sample = time.NewTicker(every)
		t.sampleEvery = every
		log.Debug().Dur("interval", every).Msg("Sampling started")
	case c.settings.AutoEnabled && every != t.sampleEvery:
		t.sample.Reset(every)
		t.sampleEvery = every
	}

	switch ducking := c.gain.Ducking(); {
	case ducking && t.duck == nil:
		t.duck = time.NewTicker(time.Second / gain.DuckFrameRate)
	case !ducking && t.duck != nil:
		t.duck.Stop()
		t.duck = nil
	}

	next := c.nextDeadline()
	if next.Equal(t.deadlineAt) {
		return
	}
	if t.deadline != nil {
		t.deadline.Stop()
		t.deadline = nil
	}
	t.deadlineAt = next
	if !next.IsZero() {
		t.deadline = time.NewTimer(max(next.Sub(c.now()), 0))
	}
}

func (t *loopTimers) stop() {
	for _, tk := range []*time.Ticker{t.sample, t.poll, t.duck} {
		if tk != nil {
			tk.Stop()
		}
	}
	if t.deadline != nil {
		t.deadline.Stop()
	}
}
