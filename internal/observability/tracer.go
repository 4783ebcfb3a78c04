package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer name shared by the runtime packages.
const InstrumentationName = "github.com/goliatone/go-sqlsession"

// Tracer returns the tracer for component from the global provider.
func Tracer(component string) trace.Tracer {
	if component == "" {
		return otel.Tracer(InstrumentationName)
	}
	return otel.Tracer(InstrumentationName + "/" + component)
}
