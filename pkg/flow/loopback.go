package flow

import (
	"context"
	_ "embed"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// DefaultLoopbackPort is the default port for the local callback listener.
const DefaultLoopbackPort = 3000

//go:embed templates/callback_page.html
var callbackPageHTML string

// Loopback is a DeepLinkSource for hosts without custom URL schemes (CLI,
// desktop agents). It runs a temporary local HTTP server; every request it
// receives is surfaced as a deep-link event carrying the full request URL,
// and the browser tab gets a static completion page.
type Loopback struct {
	mu        sync.Mutex
	port      int
	server    *http.Server
	listener  net.Listener
	serverURL string
	handlers  map[int]func(Event)
	nextID    int
}

// NewLoopback creates a loopback source on the given port. Port 0 picks a
// random free port at Start time.
func NewLoopback(port int) *Loopback {
	return &Loopback{
		port:     port,
		handlers: make(map[int]func(Event)),
	}
}

// Start begins listening and returns the callback URL to register with the
// auth server. The server stops when the context is canceled.
func (l *Loopback) Start(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.listener != nil {
		return l.callbackURLLocked(), nil
	}

	addr := fmt.Sprintf("127.0.0.1:%d", l.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start loopback listener on %s: %w", addr, err)
	}

	l.listener = listener
	l.port = listener.Addr().(*net.TCPAddr).Port
	l.serverURL = fmt.Sprintf("http://localhost:%d", l.port)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", l.handleRequest)

	l.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	server := l.server
	go func() {
		_ = server.Serve(listener)
	}()
	go func() {
		<-ctx.Done()
		l.Stop()
	}()

	return l.callbackURLLocked(), nil
}

// CallbackURL returns the URL the server redirects back to, valid after
// Start.
func (l *Loopback) CallbackURL() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.callbackURLLocked()
}

func (l *Loopback) callbackURLLocked() string {
	if l.serverURL == "" {
		return ""
	}
	return l.serverURL + "/callback"
}

// Subscribe implements DeepLinkSource.
func (l *Loopback) Subscribe(handler func(Event)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.handlers[id] = handler

	var once sync.Once
	remove := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.handlers, id)
		})
	}
	return remove, nil
}

// handleRequest converts one HTTP request into a deep-link event.
func (l *Loopback) handleRequest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(callbackPageHTML))

	l.mu.Lock()
	serverURL := l.serverURL
	handlers := make([]func(Event), 0, len(l.handlers))
	for _, h := range l.handlers {
		handlers = append(handlers, h)
	}
	l.mu.Unlock()

	event := Event{URL: serverURL + r.URL.String()}
	for _, handler := range handlers {
		handler(event)
	}
}

// Stop shuts the listener down. Safe to call repeatedly.
func (l *Loopback) Stop() {
	l.mu.Lock()
	server := l.server
	listener := l.listener
	l.server = nil
	l.listener = nil
	l.mu.Unlock()

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
	if listener != nil {
		_ = listener.Close()
	}
}
