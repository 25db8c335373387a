// Package componentregistry registers every connector and operator shipped
// with the runtime. The core packages only know their built-ins; adapters
// that pull in network or storage dependencies are registered here.
package componentregistry

import (
	"errors"

	pkgerrors "github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/offramp"
	natsofframp "github.com/jaysonsantos/tremor-runtime/offramp/nats"
	"github.com/jaysonsantos/tremor-runtime/onramp"
	httponramp "github.com/jaysonsantos/tremor-runtime/onramp/http"
	natsonramp "github.com/jaysonsantos/tremor-runtime/onramp/nats"
	"github.com/jaysonsantos/tremor-runtime/onramp/udp"
	"github.com/jaysonsantos/tremor-runtime/onramp/ws"
	"github.com/jaysonsantos/tremor-runtime/operator"
	"github.com/jaysonsantos/tremor-runtime/operator/wal"
)

// Registries groups the three artefact registries of a runtime.
type Registries struct {
	Onramps   *onramp.Registry
	Offramps  *offramp.Registry
	Operators *operator.Registry
}

// Defaults returns the process-wide registries
func Defaults() Registries {
	return Registries{Onramps: onramp.Default, Offramps: offramp.Default, Operators: operator.Default}
}

// New returns fresh registries with everything registered
func New() (Registries, error) {
	r := Registries{Onramps: onramp.NewRegistry(), Offramps: offramp.NewRegistry(), Operators: operator.NewRegistry()}
	return r, Register(r)
}

// Register adds the shipped connectors and operators:
//
//   - onramps: udp, http, nats, ws
//   - offramps: nats (stdout, file and blackhole are built in)
//   - operators: generic::wal (passthrough and generic::batch are built in)
func Register(r Registries) error {
	if r.Onramps == nil || r.Offramps == nil || r.Operators == nil {
		return pkgerrors.WrapFatal(
			errors.New("registries cannot be nil"),
			"ComponentRegistry", "Register", "registry validation")
	}

	onramps := []struct {
		name     string
		register func(*onramp.Registry) error
	}{
		{udp.Type, udp.Register},
		{httponramp.Type, httponramp.Register},
		{natsonramp.Type, natsonramp.Register},
		{ws.Type, ws.Register},
	}
	for _, o := range onramps {
		if err := o.register(r.Onramps); err != nil {
			return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", o.name+" onramp registration")
		}
	}

	if err := natsofframp.Register(r.Offramps); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "nats offramp registration")
	}

	if err := wal.Register(r.Operators); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "WAL operator registration")
	}
	return nil
}
