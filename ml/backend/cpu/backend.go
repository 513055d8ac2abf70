// backend.go - Pure-Go CPU-Backend fuer Tensor-Operationen
// Dieses Modul registriert das Backend und verwaltet seine Parameter.
package cpu

import (
	"log/slog"

	"github.com/7blacky7/flowmatch/envconfig"
	"github.com/7blacky7/flowmatch/ml"
)

func init() {
	ml.RegisterBackend("cpu", New)
}

// Backend ist ein eager CPU-Backend: jede Operation materialisiert ihr
// Ergebnis sofort, Forward/Compute sind No-Ops.
type Backend struct {
	threads int
}

// New erstellt ein neues CPU-Backend.
func New(params ml.BackendParams) (ml.Backend, error) {
	threads := params.NumThreads
	if threads <= 0 {
		threads = envconfig.NumThreads()
	}

	slog.Debug("initializing cpu backend", "threads", threads)

	return &Backend{threads: threads}, nil
}

// Name gibt den Backend-Namen zurueck.
func (b *Backend) Name() string {
	return "cpu"
}

// NewContext erstellt einen neuen Compute-Kontext.
func (b *Backend) NewContext() ml.Context {
	return &Context{threads: b.threads}
}

// Close gibt alle Ressourcen frei.
func (b *Backend) Close() {}
