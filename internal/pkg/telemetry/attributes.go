package telemetry

import "go.opentelemetry.io/otel/attribute"

// TracerName is the instrumentation scope of spans created by this module.
const TracerName = "github.com/samirrijal/exsitu"

// Span attribute keys.
const (
	AttrPage      = attribute.Key("exsitu.page")
	AttrPageSize  = attribute.Key("exsitu.page_size")
	AttrBounds    = attribute.Key("exsitu.bounds")
	AttrObjects   = attribute.Key("exsitu.objects")
	AttrQuery     = attribute.Key("exsitu.geocode.query")
	AttrAttempt   = attribute.Key("exsitu.attempt")
	AttrUpstream  = attribute.Key("exsitu.upstream")
	AttrMirrorRun = attribute.Key("exsitu.mirror.run")
)
