// registry.go - Registry der Sampling-Backends
//
// Diese Datei enthaelt:
// - Register: Registriert einen Backend-Konstruktor
// - New: Initialisiert ein Backend anhand seines Namens
//
// Backends werden ueber Build-Tags eingebunden und registrieren sich in
// ihrem init(); ohne einkompiliertes Backend schlaegt New fehl.
package engine

import (
	"errors"
	"fmt"
)

// ErrUnavailable wird zurueckgegeben, wenn kein Backend nutzbar ist
var ErrUnavailable = errors.New("no sampling backend available")

// Constructor baut ein Backend aus den Engine-Konstruktionsparametern des
// Inference-Dokuments (Solver-Konfiguration, Netzwerk-Kwargs).
type Constructor func(kwargs map[string]any) (Engine, error)

// engines speichert alle registrierten Backend-Konstruktoren
var engines = make(map[string]Constructor)

// Register registriert einen Backend-Konstruktor fuer den gegebenen Namen
func Register(name string, f Constructor) {
	if _, ok := engines[name]; ok {
		panic("engine: backend already registered")
	}

	engines[name] = f
}

// New initialisiert das Backend mit dem gegebenen Namen. Der leere Name
// waehlt das einzige registrierte Backend, sofern genau eines existiert.
func New(name string, kwargs map[string]any) (Engine, error) {
	if len(engines) == 0 {
		return nil, fmt.Errorf("%w: build with an engine tag", ErrUnavailable)
	}

	if name == "" {
		if len(engines) == 1 {
			for _, f := range engines {
				return f(kwargs)
			}
		}
		return nil, fmt.Errorf("%w: multiple backends registered, set AF_ENGINE", ErrUnavailable)
	}

	f, ok := engines[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown backend %q", ErrUnavailable, name)
	}
	return f(kwargs)
}
