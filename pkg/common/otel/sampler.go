package otel

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// routeExcluder drops spans for routes that are hit on a schedule rather
// than by clients, such as /v1/health and /v1/readiness, and
// probability-samples everything else. Without it the probe traffic would
// drown out the batch and lifecycle traces.
type routeExcluder struct {
	routes      map[string]struct{}
	probability float64
}

func newRouteExcluder(routes map[string]struct{}, probability float64) routeExcluder {
	return routeExcluder{
		routes:      routes,
		probability: probability,
	}
}

// ShouldSample implements the sdktrace.Sampler interface.
func (re routeExcluder) ShouldSample(params sdktrace.SamplingParameters) sdktrace.SamplingResult {
	for _, attr := range params.Attributes {
		if attr.Key != "http.target" {
			continue
		}
		if _, excluded := re.routes[attr.Value.AsString()]; excluded {
			return sdktrace.SamplingResult{Decision: sdktrace.Drop}
		}
	}

	return sdktrace.TraceIDRatioBased(re.probability).ShouldSample(params)
}

// Description implements the sdktrace.Sampler interface.
func (routeExcluder) Description() string { return "routeExcluder" }
