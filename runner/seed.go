// seed.go - Seed-Aufloesung fuer reproduzierbare Jobs
//
// Dieses Modul enthaelt:
// - ResolveSeed: Loest eine Seed-Spezifikation in (realisierter Seed, RNG) auf
//
// Der RNG-Handle wird explizit pro Job erzeugt und durchgereicht; es gibt
// keinen prozess-globalen Seed-Zustand. Der realisierte Seed - nie der
// Platzhalter -1 - wandert ins Manifest.
package runner

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// FreshSeed ist die Seed-Spezifikation fuer einen frischen,
// nicht-deterministischen Seed
const FreshSeed int64 = -1

// ResolveSeed loest eine Seed-Spezifikation auf. Jeder Wert ausser -1 wird
// direkt verwendet; -1 zieht frische Entropie. Der zurueckgegebene Seed ist
// der realisierte Wert fuer das Manifest.
func ResolveSeed(spec int64) (int64, *rand.Rand) {
	seed := spec
	if spec == FreshSeed {
		var bts [8]byte
		if _, err := cryptorand.Read(bts[:]); err != nil {
			panic(err) // crypto/rand never fails on supported platforms
		}
		seed = int64(binary.LittleEndian.Uint64(bts[:]) & (1<<63 - 1))
	}

	return seed, rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}
