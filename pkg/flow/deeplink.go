package flow

// Event is one "application opened via URL" occurrence.
type Event struct {
	// URL is the full URL the application was invoked with, including the
	// query string.
	URL string
}

// DeepLinkSource emits an Event whenever the host application is re-invoked
// through a registered URL scheme. Subscribe registers a handler and returns
// a remove function that deregisters it; remove must be safe to call more
// than once.
type DeepLinkSource interface {
	Subscribe(handler func(Event)) (remove func(), err error)
}
