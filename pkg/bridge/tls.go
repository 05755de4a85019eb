package bridge

import (
	"crypto/tls"
	"strings"
	"sync"
)

// tlsState holds the optional client/server TLS configuration a session
// installs via SetTLSConfig before any wss:// bridge is resolved. A
// session that never calls SetTLSConfig can still use ws:// bridges.
// Serving a wss:// address without one configured fails fast instead of
// falling back to plaintext. Dialing a wss:// address without one is not
// rejected up front: the dial uses the websocket library's default TLS
// settings.
var tlsState struct {
	mu  sync.RWMutex
	cfg *tls.Config
}

// SetTLSConfig installs the *tls.Config used for every wss:// bridge
// dialed or served from this point on. cfg normally comes from a
// session's pkg/security.CertAuthority: Certificates set from
// IssueComponentCertificate for serving, RootCAs set from the CA's
// GetRootCACert for dialing.
func SetTLSConfig(cfg *tls.Config) {
	tlsState.mu.Lock()
	defer tlsState.mu.Unlock()
	tlsState.cfg = cfg
}

func getTLSConfig() *tls.Config {
	tlsState.mu.RLock()
	defer tlsState.mu.RUnlock()
	return tlsState.cfg
}

func isSecureAddr(addr string) bool {
	return strings.HasPrefix(addr, schemeWSS+"://")
}
