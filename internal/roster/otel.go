package roster

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/locshare/locshare/internal/roster"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
