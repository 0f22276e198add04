/*
SPIFFE workload identity
Issues the mTLS client identity the orb presents to backend services
(capture upload, audit log) and authorizes the backend it connects to.
*/

package identity

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/spiffe/go-spiffe/v2/spiffetls/tlsconfig"
	"github.com/spiffe/go-spiffe/v2/workloadapi"
)

// WorkloadIdentity holds the orb's X.509 SVID, fetched from a local SPIRE
// agent over the workload API, and issues mTLS client configs authorized
// to talk only to a named backend SPIFFE ID.
type WorkloadIdentity struct {
	source *workloadapi.X509Source
}

// NewWorkloadIdentity connects to the SPIRE agent listening on socketPath
// and fetches the orb's SVID. A short timeout keeps a missing SPIRE agent
// from hanging orb startup indefinitely.
func NewWorkloadIdentity(socketPath string) (*WorkloadIdentity, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	source, err := workloadapi.NewX509Source(
		ctx,
		workloadapi.WithClientOptions(workloadapi.WithAddr(socketPath)),
	)
	if err != nil {
		return nil, fmt.Errorf("identity: connect to spire agent: %w", err)
	}

	svid, err := source.GetX509SVID()
	if err != nil {
		source.Close()
		return nil, fmt.Errorf("identity: fetch svid: %w", err)
	}
	slog.Info("orb workload identity issued", "spiffe_id", svid.ID.String(), "socket_path", socketPath)

	return &WorkloadIdentity{source: source}, nil
}

// SVIDHash returns a 64-bit fingerprint of the orb's current leaf
// certificate, attached to audit log rows so a backend can correlate
// records with the exact SVID that produced them
// without storing the full certificate.
func (w *WorkloadIdentity) SVIDHash() (uint64, error) {
	svid, err := w.source.GetX509SVID()
	if err != nil {
		return 0, fmt.Errorf("identity: fetch svid: %w", err)
	}
	return fingerprintCertificate(svid.Certificates[0].Raw), nil
}

func fingerprintCertificate(certDER []byte) uint64 {
	hash := sha256.Sum256(certDER)
	var result uint64
	for i := 0; i < 8; i++ {
		result = (result << 8) | uint64(hash[i])
	}
	return result
}

// ClientTLSConfig returns an mTLS client config presenting the orb's SVID
// and authorized to connect only to backendID, so a compromised or
// misconfigured endpoint can't be substituted for the real upload/audit
// backend.
func (w *WorkloadIdentity) ClientTLSConfig(backendID string) (*tls.Config, error) {
	id, err := spiffeid.FromString(backendID)
	if err != nil {
		return nil, fmt.Errorf("identity: invalid backend spiffe id: %w", err)
	}
	return tlsconfig.MTLSClientConfig(w.source, w.source, tlsconfig.AuthorizeID(id)), nil
}

// Close releases the workload API connection.
func (w *WorkloadIdentity) Close() error {
	return w.source.Close()
}

// OrbSPIFFEID builds the SPIFFE ID this orb presents within trustDomain,
// scoped to its hardware serial number.
func OrbSPIFFEID(trustDomain, serial string) string {
	return fmt.Sprintf("spiffe://%s/orb/%s", trustDomain, serial)
}
