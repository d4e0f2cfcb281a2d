package qdrant

import (
	"net/http"
	"sync"
	"time"
)

// One *http.Client per endpoint, shared by every Store handle. Experiment
// grids open dozens of stores against the same endpoint; sharing keeps the
// connection pool to one.
var clients = struct {
	sync.Mutex
	byURL map[string]*clientRef
}{byURL: make(map[string]*clientRef)}

type clientRef struct {
	client *http.Client
	refs   int
}

func sharedClient(url string, timeout time.Duration) *http.Client {
	clients.Lock()
	defer clients.Unlock()
	ref, ok := clients.byURL[url]
	if !ok {
		ref = &clientRef{client: &http.Client{Timeout: timeout}}
		clients.byURL[url] = ref
	}
	ref.refs++
	return ref.client
}

func releaseClient(url string) {
	clients.Lock()
	defer clients.Unlock()
	ref, ok := clients.byURL[url]
	if !ok {
		return
	}
	ref.refs--
	if ref.refs <= 0 {
		ref.client.CloseIdleConnections()
		delete(clients.byURL, url)
	}
}
