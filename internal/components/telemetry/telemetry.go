// Package telemetry is the reporting seam of every component: structured logs through API, spans and
// metrics through OpenTelemetry, and HTTP client instrumentation.
package telemetry

// API receives the reports of a component. Components never log directly, so tests can swap in a
// recorder and assert on what was reported.
type API interface {
	// ReportBroken reports a failure that needs fixing: a selector that stopped matching, a service
	// that answers garbage.
	//
	// id names the component and method, `<struct>.<method>` in lowercase with dashes inside names
	// (`crawler.query-page`), declared as a `report_*` const next to its users. Details go in params,
	// errors wrapped with fmt.Errorf when more context helps.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something unexpected that the component recovered from. id follows
	// ReportBroken.
	ReportWarning(id string, params ...any)

	// ReportDebug reports progress useful when running with --verbose.
	ReportDebug(msg string, params ...any)

	// ReportCount reports a point-in-time value for id, like the shoots found by one crawl.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id (and debug message) with a namespace, usually the package reporting.
// Scoping a ScopedAPI nests the namespaces as `outer/inner`.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	if parent, ok := inner.(ScopedAPI); ok {
		return ScopedAPI{
			namespace: parent.namespace + "/" + namespace,
			inner:     parent.inner,
		}
	}
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scope(id string) string {
	return s.namespace + ": " + id
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scope(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scope(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scope(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scope(id), count)
}
