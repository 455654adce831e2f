// prompts.go - Prompt-Quelle
// Hauptfunktionen: ReadPrompts
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadPrompts liest eine zeilenweise Prompt-Datei. Jede nicht-leere,
// Whitespace-getrimmte Zeile ist ein Prompt; Leerzeilen werden uebersprungen.
func ReadPrompts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var prompts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		prompts = append(prompts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(prompts) == 0 {
		return nil, fmt.Errorf("prompt file %s contains no prompts", path)
	}
	return prompts, nil
}
