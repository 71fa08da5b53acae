package interactive

import (
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/encoding"
	"github.com/mattn/go-runewidth"
	"github.com/pkg/errors"

	"github.com/StarFreedomX/ktv-casting/internal/soapcalls"
)

// NewScreen renders cast status in the terminal and forwards key
// presses: Ctrl+P toggles pause, n advances, ESC/Ctrl+C quits.
type NewScreen struct {
	Current tcell.Screen

	mu         sync.Mutex
	lastAction string
	position   time.Duration
	duration   time.Duration

	pauseToggle chan<- struct{}
	advance     func()
	quit        func()
	interrupt   func()
}

// InitTcellNewScreen sets up the terminal screen. quit runs on ESC,
// interrupt on Ctrl+C; the caller maps those to its exit codes.
func InitTcellNewScreen(pauseToggle chan<- struct{}, advance, quit, interrupt func()) (*NewScreen, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, errors.New("interactive: can't start new screen")
	}

	return &NewScreen{
		Current:     s,
		pauseToggle: pauseToggle,
		advance:     advance,
		quit:        quit,
		interrupt:   interrupt,
	}, nil
}

func (p *NewScreen) emitStr(x, y int, style tcell.Style, str string) {
	s := p.Current
	for _, c := range str {
		var comb []rune
		w := runewidth.RuneWidth(c)
		if w == 0 {
			comb = []rune{c}
			c = ' '
			w = 1
		}
		s.SetContent(x, y, c, comb, style)
		x += w
	}
}

// EmitMsg displays a one-line status update.
func (p *NewScreen) EmitMsg(inputtext string) {
	p.mu.Lock()
	p.lastAction = inputtext
	p.mu.Unlock()
	p.redraw()
}

// EmitProgress updates the position readout for the current track.
func (p *NewScreen) EmitProgress(pos, dur time.Duration) {
	p.mu.Lock()
	p.position = pos
	p.duration = dur
	p.mu.Unlock()
	p.redraw()
}

func (p *NewScreen) redraw() {
	p.mu.Lock()
	action := p.lastAction
	pos, dur := p.position, p.duration
	p.mu.Unlock()

	s := p.Current
	w, h := s.Size()
	boldStyle := tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite).Bold(true)

	s.Clear()

	p.emitStr(w/2-len(action)/2, h/2, boldStyle, action)
	if dur > 0 {
		progress := fmt.Sprintf("%s / %s", soapcalls.FormatClock(pos), soapcalls.FormatClock(dur))
		p.emitStr(w/2-len(progress)/2, h/2+1, tcell.StyleDefault, progress)
	}
	p.emitStr(1, 1, tcell.StyleDefault, "ESC to stop and exit.")
	p.emitStr(w/2-len("Ctrl+P pause/resume, n next song.")/2, h/2+3, tcell.StyleDefault, "Ctrl+P pause/resume, n next song.")

	s.Show()
}

// InterInit starts the event loop. Blocks until quit.
func (p *NewScreen) InterInit() error {
	encoding.Register()
	s := p.Current
	if err := s.Init(); err != nil {
		return fmt.Errorf("InterInit screen init error: %w", err)
	}

	defStyle := tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite)
	s.SetStyle(defStyle)

	p.EmitMsg("Waiting for playlist...")

	for {
		switch ev := s.PollEvent().(type) {
		case *tcell.EventInterrupt:
			return nil
		case *tcell.EventResize:
			s.Sync()
			p.redraw()
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyEscape:
				p.quit()
				return nil
			case ev.Key() == tcell.KeyCtrlC:
				p.interrupt()
				return nil
			case ev.Key() == tcell.KeyCtrlP:
				select {
				case p.pauseToggle <- struct{}{}:
				default:
				}
			case ev.Rune() == 'n':
				p.advance()
			}
		}
	}
}

// Interrupt wakes the event loop so InterInit returns; used when an
// external shutdown (signal, fatal error) ends the session.
func (p *NewScreen) Interrupt() {
	p.Current.PostEventWait(tcell.NewEventInterrupt(nil))
}

// Fini releases the terminal.
func (p *NewScreen) Fini() {
	p.Current.Fini()
}
