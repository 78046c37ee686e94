package catalog

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("dropwatch.catalog")
