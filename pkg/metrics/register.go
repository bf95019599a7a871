package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Register adds cs to reg. A collector already registered under the same
// descriptors is replaced, so a component reopened on the same registry
// reports its new state. The returned func unregisters cs.
func Register(reg prometheus.Registerer, cs ...prometheus.Collector) (func(), error) {
	if reg == nil {
		return func() {}, nil
	}

	unregister := func(n int) {
		for _, c := range cs[:n] {
			reg.Unregister(c)
		}
	}

	for i, c := range cs {
		err := reg.Register(c)
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			// c describes the same metrics, so it unregisters the existing one
			reg.Unregister(c)
			err = reg.Register(c)
		}
		if err != nil {
			unregister(i)
			return nil, err
		}
	}

	return func() { unregister(len(cs)) }, nil
}
