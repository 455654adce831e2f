// stepbar.go - Schritt-Fortschrittsbalken fuer zaehlbare Operationen
// Haupttypen: StepBar
package progress

import (
	"fmt"
	"strings"
	"sync"
)

// StepBar zeigt den Fortschritt einer Operation mit bekannter Schrittzahl
type StepBar struct {
	mu      sync.Mutex
	message string
	current int
	total   int
}

// NewStepBar erstellt einen Fortschrittsbalken mit Gesamtschrittzahl
func NewStepBar(message string, total int) *StepBar {
	return &StepBar{message: message, total: total}
}

// Set setzt den aktuellen Schritt
func (b *StepBar) Set(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = min(n, b.total)
}

func (b *StepBar) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	const barWidth = 30
	filled := 0
	if b.total > 0 {
		filled = barWidth * b.current / b.total
	}

	var sb strings.Builder
	if b.message != "" {
		sb.WriteString(b.message)
		sb.WriteString(" ")
	}
	sb.WriteString("[")
	sb.WriteString(strings.Repeat("█", filled))
	sb.WriteString(strings.Repeat(" ", barWidth-filled))
	sb.WriteString(fmt.Sprintf("] %d/%d", b.current, b.total))

	return sb.String()
}
