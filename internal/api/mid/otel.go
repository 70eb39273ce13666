// Package mid provides app level middleware support.
package mid

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/upload-armada/pkg/common/otel"
	"github.com/ahrav/upload-armada/pkg/web"
)

// Otel starts the otel tracing and stores the trace id in the context.
func Otel(tracer trace.Tracer) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			ctx = otel.InjectTracing(ctx, tracer)

			ctx, span := otel.AddSpan(ctx, tracer, "request",
				attribute.String("endpoint", r.RequestURI))
			defer span.End()

			return next(ctx, r.WithContext(ctx))
		}

		return h
	}

	return m
}
