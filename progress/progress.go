// progress.go - Fortschrittsanzeige fuer das CLI
//
// Dieses Modul enthaelt:
// - State: Interface fuer renderbare Fortschrittszustaende
// - Progress: Sammelt Zustaende und rendert sie periodisch auf ein Terminal
package progress

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// State ist ein renderbarer Fortschrittszustand
type State interface {
	String() string
}

// Progress rendert eine Liste von States zyklisch auf ein Terminal
type Progress struct {
	mu sync.Mutex
	w  io.Writer

	pos    int
	ticker *time.Ticker
	states []State
}

// NewProgress erstellt eine Fortschrittsanzeige und startet das Rendering
func NewProgress(w io.Writer) *Progress {
	p := &Progress{w: w}
	go p.start()
	return p
}

// Add haengt einen neuen State an die Anzeige an
func (p *Progress) Add(_ string, s State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.states = append(p.states, s)
}

func (p *Progress) width() int {
	f, ok := p.w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 80
	}

	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

func (p *Progress) render() {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf := bufio.NewWriter(p.w)
	fmt.Fprint(buf, "\033[?25l")
	defer fmt.Fprint(buf, "\033[?25h")

	// Cursor zurueck an den Anfang des Blocks
	if p.pos > 0 {
		fmt.Fprintf(buf, "\033[%dA\033[1G", p.pos)
	}

	width := p.width()
	for _, state := range p.states {
		line := state.String()
		if len(line) > width {
			line = line[:width]
		}
		fmt.Fprint(buf, line, strings.Repeat(" ", max(0, width-len(line))), "\n")
	}
	p.pos = len(p.states)

	buf.Flush()
}

func (p *Progress) start() {
	p.ticker = time.NewTicker(100 * time.Millisecond)
	for range p.ticker.C {
		p.render()
	}
}

func (p *Progress) stop() bool {
	p.mu.Lock()
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}
	stopped := len(p.states) > 0
	p.mu.Unlock()

	if stopped {
		p.render()
	}
	return stopped
}

// Stop haelt das Rendering an und laesst die letzte Ausgabe stehen
func (p *Progress) Stop() bool {
	for _, state := range p.states {
		if spinner, ok := state.(*Spinner); ok {
			spinner.Stop()
		}
	}
	return p.stop()
}

// StopAndClear haelt das Rendering an und loescht die Ausgabe
func (p *Progress) StopAndClear() bool {
	stopped := p.Stop()
	if stopped {
		p.mu.Lock()
		defer p.mu.Unlock()

		// Block zeilenweise loeschen
		fmt.Fprint(p.w, "\033[1G")
		for range p.pos {
			fmt.Fprint(p.w, "\033[2K\033[1A")
		}
		fmt.Fprint(p.w, "\033[2K")
		p.pos = 0
	}

	return stopped
}
