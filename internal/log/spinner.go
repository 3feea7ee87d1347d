package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var spinnerColor = color.New(color.FgCyan)

// ProgressSpinner shows a spinner with a message on one terminal line while
// a long operation runs. On a non-terminal writer it prints nothing.
type ProgressSpinner struct {
	mu      sync.Mutex
	message string
	current int
	writer  io.Writer
	enabled bool
	stop    chan struct{}
	done    chan struct{}
}

// NewProgressSpinner creates a spinner writing to stderr.
func NewProgressSpinner(message string) *ProgressSpinner {
	return NewProgressSpinnerTo(os.Stderr, message)
}

// NewProgressSpinnerTo creates a spinner writing to w. Only an *os.File on a
// colour-capable terminal animates.
func NewProgressSpinnerTo(w io.Writer, message string) *ProgressSpinner {
	_, isFile := w.(*os.File)
	return &ProgressSpinner{
		message: message,
		writer:  w,
		enabled: isFile && !color.NoColor,
	}
}

// Start begins the animation. Calling Start on a running spinner does
// nothing.
func (p *ProgressSpinner) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled || p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.animate(p.stop, p.done)
}

// Stop ends the animation and clears the line.
func (p *ProgressSpinner) Stop() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
	fmt.Fprint(p.writer, "\r\033[K")
}

// Message updates the spinner message
func (p *ProgressSpinner) Message(msg string) {
	p.mu.Lock()
	p.message = msg
	p.mu.Unlock()
}

func (p *ProgressSpinner) animate(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			p.draw()
			p.mu.Unlock()
		case <-stop:
			return
		}
	}
}

func (p *ProgressSpinner) draw() {
	frame := spinnerFrames[p.current%len(spinnerFrames)]
	p.current++
	fmt.Fprintf(p.writer, "\r%s %s", spinnerColor.Sprint(frame), p.message)
}
