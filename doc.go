// Package queryx turns individual asynchronous call sites into observable,
// cache-backed, deduplicated state machines.
//
// An [Endpoint] wraps an async function from an argument of type A to a
// result of type R. Callers derive [Observer] values from an Endpoint with
// [Endpoint.Use], assign an argument with [Observer.SetArg], and read the
// observer's status, data, and error as the underlying fetch progresses.
//
//	ep := queryx.NewEndpoint(fetchUser, queryx.EndpointOptions[int]{})
//	obs := ep.Use()
//	obs.SetArg(userID)
//	// ... later, once a fetch completes ...
//	if obs.IsSuccess() {
//		data, _ := obs.Data()
//		fmt.Println(data)
//	}
//
// Observers that share an Endpoint and an argument share one in-flight
// request and one cached result: concurrent callers for the same argument
// never invoke the async function more than once at a time. Results are
// cached for the lifetime of the Endpoint (there is no background eviction;
// see [Cache] for the retention policy) and may be invalidated explicitly
// with [Endpoint.Invalidate] or overwritten with [Endpoint.UpdateQueryData].
//
// queryx owns the caching and lifecycle engine only. Rendering a view when
// an Observer's state changes, performing HTTP/serialization/auth inside
// the async function, and wiring a specific UI framework to an Observer are
// all left to the caller; see [Observer.OnStateChanged] for the one hook a
// rendering host needs.
package queryx
