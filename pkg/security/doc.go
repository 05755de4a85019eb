/*
Package security provides the certificate authority behind a session's
wire bridges: when a bridge is configured to speak websocket-over-TLS
rather than plain websocket, CertAuthority issues the component and CA
certificates involved.

# Components

CertAuthority generates a 10-year self-signed root (Initialize), persists
it as PEM files (SaveToDir/LoadFromDir), and issues 90-day component
certificates signed by that root (IssueComponentCertificate). certs.go
holds the PEM read/write helpers for the CA's ca.crt and ca.key files.

# Usage

	ca := security.NewCertAuthority()
	if err := ca.LoadFromDir(caDir); err != nil {
		if err := ca.Initialize(); err != nil {
			return err
		}
		_ = ca.SaveToDir(caDir)
	}

	cert, err := ca.IssueComponentCertificate(cfg.UID, kind, nil, nil)

# Non-goals

This package does not manage user-supplied secrets — there is no secrets
store in the pilot data model, only item descriptions and bridge wire
traffic, neither of which this package encrypts.
*/
package security
