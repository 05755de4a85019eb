package security

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadCACertToFile(t *testing.T) {
	certDir := t.TempDir()

	ca := NewCertAuthority()
	require.NoError(t, ca.Initialize())

	caCertDER := ca.GetRootCACert()
	require.NoError(t, SaveCACertToFile(caCertDER, certDir))
	require.FileExists(t, filepath.Join(certDir, "ca.crt"))

	loadedCACert, err := LoadCACertFromFile(certDir)
	require.NoError(t, err)
	require.True(t, loadedCACert.Equal(ca.rootCert))
}

func TestSaveLoadRSAKeyToFile(t *testing.T) {
	dir := t.TempDir()

	ca := NewCertAuthority()
	require.NoError(t, ca.Initialize())

	require.NoError(t, saveRSAKeyToFile(ca.rootKey, dir, "ca.key"))
	require.FileExists(t, filepath.Join(dir, "ca.key"))

	loadedKey, err := loadRSAKeyFromFile(dir, "ca.key")
	require.NoError(t, err)
	require.Equal(t, ca.rootKey.D, loadedKey.D)
}
