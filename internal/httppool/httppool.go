// Package httppool provides the single shared *http.Client used for every
// outbound call to an agent, sized per spec §4.2 so a slow or dead agent
// can never starve the transport's connection pool for the others.
package httppool

import (
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	dialTimeout     = 5 * time.Second
	keepAlive       = 30 * time.Second
	responseHeader  = 30 * time.Second
	writeTimeout    = 10 * time.Second
	idleConnTimeout = 90 * time.Second
	maxConnsTotal   = 100
	maxIdlePerHost  = 50
)

var (
	once   sync.Once
	client *http.Client
)

// Get returns the process-wide pooled HTTP client, constructing it on first
// use. Safe for concurrent use.
func Get() *http.Client {
	once.Do(func() {
		transport := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   dialTimeout,
				KeepAlive: keepAlive,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          maxConnsTotal,
			MaxIdleConnsPerHost:   maxIdlePerHost,
			MaxConnsPerHost:       maxConnsTotal,
			IdleConnTimeout:       idleConnTimeout,
			TLSHandshakeTimeout:   dialTimeout,
			ResponseHeaderTimeout: responseHeader,
			ExpectContinueTimeout: 1 * time.Second,
		}
		client = &http.Client{
			Transport: transport,
			// Per-request deadlines are applied via context by callers
			// (agentclient); this is only the outer backstop.
			Timeout: responseHeader + writeTimeout + dialTimeout,
		}
	})
	return client
}

// Close releases idle connections held by the shared client. Safe to call
// during graceful shutdown even if Get was never called.
func Close() {
	if client == nil {
		return
	}
	if t, ok := client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}
