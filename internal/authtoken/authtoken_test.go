package authtoken

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sinfolonokojo/mt5-backend/internal/apperr"
)

func TestIssuer_IssueThenVerifyRoundTrips(t *testing.T) {
	issuer := New("shared-secret", time.Hour)
	token := issuer.Issue()
	require.NoError(t, issuer.Verify(token))
}

func TestIssuer_VerifyRejectsWrongSecret(t *testing.T) {
	issuer := New("shared-secret", time.Hour)
	token := issuer.Issue()

	other := New("different-secret", time.Hour)
	err := other.Verify(token)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthorised, apperr.KindOf(err))
}

func TestIssuer_VerifyRejectsMalformedToken(t *testing.T) {
	issuer := New("shared-secret", time.Hour)

	err := issuer.Verify("not-valid-base64!!")
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthorised, apperr.KindOf(err))

	noDot := base64.StdEncoding.EncodeToString([]byte("just-one-part"))
	err = issuer.Verify(noDot)
	require.Error(t, err)
}

func TestIssuer_VerifyRejectsExpiredToken(t *testing.T) {
	issuer := New("shared-secret", time.Millisecond)
	token := issuer.Issue()
	time.Sleep(5 * time.Millisecond)

	err := issuer.Verify(token)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthorised, apperr.KindOf(err))
}

func TestIssuer_VerifyRejectsTamperedSignature(t *testing.T) {
	issuer := New("shared-secret", time.Hour)
	token := issuer.Issue()

	decoded, err := base64.StdEncoding.DecodeString(token)
	require.NoError(t, err)
	tampered := string(decoded) + "ff"
	tamperedToken := base64.StdEncoding.EncodeToString([]byte(tampered))

	err = issuer.Verify(tamperedToken)
	require.Error(t, err)
}
