package playlist

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/StarFreedomX/ktv-casting/internal/log"
	"github.com/StarFreedomX/ktv-casting/internal/media"
	"github.com/StarFreedomX/ktv-casting/internal/soapcalls"
)

const (
	positionPollInterval = 2 * time.Second
	endThreshold         = time.Second
	zeroStreakLimit      = 3
	finalStopTimeout     = 2 * time.Second
	advanceSettleDelay   = 5 * time.Second
)

// Driver is the slice of the SOAP caller the synchronizer needs.
type Driver interface {
	SetAVTransportURI(ctx context.Context, mediaURL string, metadata []byte) error
	Play(ctx context.Context) error
	Stop(ctx context.Context) error
	Pause(ctx context.Context) error
	GetPositionInfo(ctx context.Context) (soapcalls.PositionInfo, error)
}

// Screen is where one-line status updates land.
type Screen interface {
	EmitMsg(string)
	EmitProgress(pos, dur time.Duration)
}

type positionReading struct {
	pos   time.Duration
	dur   time.Duration
	ended bool
}

// Synchronizer owns the CastState and reconciles the remote room's
// current track onto the renderer. All SOAP calls of a transition
// complete before the next event is consumed; reconciliation is
// serial per renderer.
type Synchronizer struct {
	driver   Driver
	client   *Client
	queue    *Queue
	screen   Screen
	proxyURL func(string) string
	nickname string
	log      zerolog.Logger

	state CastState

	pauseToggle <-chan struct{}
	positions   chan positionReading
	stopPoller  context.CancelFunc
	settleUntil time.Time
}

// NewSynchronizer wires the reconciler. pauseToggle delivers
// pause/resume requests from the terminal collaborator; proxyURL maps
// a remote media URL to its renderer-visible proxied form.
func NewSynchronizer(driver Driver, client *Client, queue *Queue, screen Screen,
	proxyURL func(string) string, nickname string, pauseToggle <-chan struct{}) *Synchronizer {
	return &Synchronizer{
		driver:      driver,
		client:      client,
		queue:       queue,
		screen:      screen,
		proxyURL:    proxyURL,
		nickname:    nickname,
		log:         log.WithComponent("sync"),
		pauseToggle: pauseToggle,
		positions:   make(chan positionReading, 4),
	}
}

// State returns a copy of the current cast state. Test hook; the
// loop itself is the only writer.
func (s *Synchronizer) State() CastState {
	return s.state
}

// Run consumes events until the context is cancelled. Its last act is
// a best-effort Stop with a shortened deadline.
func (s *Synchronizer) Run(ctx context.Context) error {
	defer s.finalStop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.pauseToggle:
			s.handlePauseToggle(ctx)

		case reading := <-s.positions:
			s.handlePosition(ctx, reading)

		case <-s.queue.Ready():
			for {
				ev, ok := s.queue.TryPop()
				if !ok {
					break
				}
				s.handleEvent(ctx, ev)
				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
		}
	}
}

func (s *Synchronizer) handleEvent(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventSnapshot:
		s.reconcile(ctx, ev.Snapshot)
	case EventAdvance:
		// The web side advanced; the embedded playlist state is
		// whatever the room now says.
		snap, err := s.client.FetchSnapshot(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("advance received but snapshot fetch failed")
			s.stopRenderer(ctx)
			return
		}
		s.reconcile(ctx, snap)
	case EventLost:
		s.screen.EmitMsg("Room unreachable, continuing on cached playlist")
	}
}

// reconcile makes the renderer match the snapshot's current track with
// the minimal sequence of SOAP calls. Applying the same snapshot twice
// is a no-op the second time, unless the first attempt left the cast
// Failed; then the track is cast again.
func (s *Synchronizer) reconcile(ctx context.Context, snap Snapshot) {
	desired, ok := snap.Current()

	switch {
	case !ok:
		if s.state.active() {
			s.stopRenderer(ctx)
		}

	case s.state.active() && desired.Identity() == s.state.Track.Identity():
		// Same track, possibly paused: no action.

	case s.state.Phase == Ended && desired.Identity() == s.state.Track.Identity() && time.Now().Before(s.settleUntil):
		// The renderer just finished this track and the remote has
		// not switched yet; give the advance time to land instead of
		// restarting the same song.

	default:
		s.castTrack(ctx, desired)
	}
}

func (s *Synchronizer) castTrack(ctx context.Context, track Track) {
	s.cancelPoller()

	// Failures here are ignored: a fresh SetAVTransportURI follows.
	_ = s.driver.Stop(ctx)

	s.state = CastState{Phase: Preparing, Track: track}

	mediaURL := s.proxyURL(track.URL)
	mimeType := media.TypeOf(ctx, track.MIME, track.URL)

	metadata, err := soapcalls.DIDLMetadata(track.Title, s.nickname, mimeType, mediaURL)
	if err != nil {
		s.failTrack(track, err)
		return
	}

	if err := s.driver.SetAVTransportURI(ctx, mediaURL, metadata); err != nil {
		s.failTrack(track, err)
		return
	}

	if err := s.driver.Play(ctx); err != nil {
		s.failTrack(track, err)
		return
	}

	s.state = CastState{
		Phase:     Playing,
		Track:     track,
		StartedAt: time.Now(),
	}
	if track.Duration > 0 {
		s.state.LastDuration = time.Duration(track.Duration) * time.Second
	}

	s.screen.EmitMsg("Now playing: " + trackLabel(track))
	s.startPoller(ctx)
}

func (s *Synchronizer) failTrack(track Track, err error) {
	s.log.Warn().Err(err).Str("track", trackLabel(track)).Msg("cast failed")
	s.screen.EmitMsg("Renderer unreachable, retrying")
	s.state = CastState{Phase: Failed, Track: track}
}

func (s *Synchronizer) stopRenderer(ctx context.Context) {
	s.cancelPoller()
	if err := s.driver.Stop(ctx); err != nil {
		s.log.Warn().Err(err).Msg("stop failed")
	}
	s.state = CastState{Phase: Idle}
	s.screen.EmitMsg("Playback stopped")
}

func (s *Synchronizer) handlePauseToggle(ctx context.Context) {
	switch s.state.Phase {
	case Playing:
		if err := s.driver.Pause(ctx); err != nil {
			s.log.Warn().Err(err).Msg("pause failed")
			return
		}
		s.state.Phase = Paused
		s.screen.EmitMsg("Paused: " + trackLabel(s.state.Track))
	case Paused:
		if err := s.driver.Play(ctx); err != nil {
			s.log.Warn().Err(err).Msg("resume failed")
			return
		}
		s.state.Phase = Playing
		s.screen.EmitMsg("Now playing: " + trackLabel(s.state.Track))
	}
}

func (s *Synchronizer) handlePosition(ctx context.Context, reading positionReading) {
	if s.state.Phase != Playing {
		return
	}

	s.state.LastPosition = reading.pos
	if reading.dur > 0 {
		s.state.LastDuration = reading.dur
	}
	s.screen.EmitProgress(reading.pos, s.state.LastDuration)

	if !reading.ended {
		return
	}

	s.cancelPoller()
	s.state.Phase = Ended
	s.settleUntil = time.Now().Add(advanceSettleDelay)
	s.screen.EmitMsg("Track finished, advancing")

	if err := s.client.Advance(ctx); err != nil {
		s.log.Warn().Err(err).Msg("advance request failed")
	}
	// The remote is authoritative: the next snapshot switches tracks.
}

// startPoller launches the position poller for the current track. It
// only reads; end-of-track decisions flow back through the positions
// channel into the main loop.
func (s *Synchronizer) startPoller(ctx context.Context) {
	pollCtx, cancel := context.WithCancel(ctx)
	s.stopPoller = cancel

	go func() {
		ticker := time.NewTicker(positionPollInterval)
		defer ticker.Stop()

		var (
			sawNonZero bool
			zeroStreak int
		)

		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
			}

			info, err := s.driver.GetPositionInfo(pollCtx)
			if err != nil {
				continue
			}

			rel, relOK := soapcalls.ParseClock(info.RelTime)
			dur, durOK := soapcalls.ParseClock(info.TrackDuration)

			reading := positionReading{pos: rel, dur: dur}

			if durOK && dur > 0 && relOK && rel >= dur-endThreshold {
				reading.ended = true
			}

			if relOK {
				switch {
				case rel > 0:
					sawNonZero = true
					zeroStreak = 0
				case sawNonZero:
					// Renderer self-stopped and rewound.
					zeroStreak++
					if zeroStreak >= zeroStreakLimit {
						reading.ended = true
					}
				}
			}

			select {
			case s.positions <- reading:
			case <-pollCtx.Done():
				return
			}

			if reading.ended {
				return
			}
		}
	}()
}

func (s *Synchronizer) cancelPoller() {
	if s.stopPoller != nil {
		s.stopPoller()
		s.stopPoller = nil
	}
	// Drain stale readings so an old track's end cannot leak into
	// the next one.
	for {
		select {
		case <-s.positions:
		default:
			return
		}
	}
}

func (s *Synchronizer) finalStop() {
	s.cancelPoller()
	ctx, cancel := context.WithTimeout(context.Background(), finalStopTimeout)
	defer cancel()
	_ = s.driver.Stop(ctx)
}

func trackLabel(t Track) string {
	if t.Title != "" {
		return t.Title
	}
	return t.URL
}
