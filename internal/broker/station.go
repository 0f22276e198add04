package broker

import (
	"reflect"

	"github.com/orb-project/orb-core/internal/agent"
	"github.com/orb-project/orb-core/internal/port"
)

// StationFor builds a Station polling cell's output, in turn calling
// dispatch for every value it receives. dispatch is expected to run the
// pre-dispatch routing (§4.4) and then the Plan's matching handler,
// returning the handler's Flow. V is the agent's produced value type; the
// cell's output channel itself carries port.Output[V] envelopes.
func StationFor[I, V any](name string, cell *agent.Cell[I, port.Output[V]], dispatch func(port.Output[V]) Flow) Station {
	return Station{
		Name: name,
		Poll: func() (Flow, bool) {
			out, enabled := cell.Output()
			if !enabled {
				return Continue, false
			}
			select {
			case value, ok := <-out:
				if !ok {
					return Continue, false
				}
				return dispatch(value), true
			default:
				return Continue, false
			}
		},
		Chan: func() reflect.Value {
			out, enabled := cell.Output()
			if !enabled {
				return reflect.Value{}
			}
			return reflect.ValueOf(out)
		},
	}
}
