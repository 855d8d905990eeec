package auth

import (
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	m := NewManager("super-secret", DefaultTTL)

	for _, id := range []int64{1, 42, 1 << 40} {
		tok, err := m.Encode(id, t0)
		require.NoError(t, err)

		got, err := m.Decode(tok, t0)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}

func TestDecode_ExpiredAfterTTL(t *testing.T) {
	t.Parallel()

	m := NewManager("super-secret", DefaultTTL)

	tok, err := m.Encode(7, t0)
	require.NoError(t, err)

	_, err = m.Decode(tok, t0.Add(DefaultTTL+time.Second))
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrTokenInvalid)

	// still valid on the last second of its life
	got, err := m.Decode(tok, t0.Add(DefaultTTL))
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)
}

func TestDecode_TamperedSignature(t *testing.T) {
	t.Parallel()

	m := NewManager("super-secret", DefaultTTL)

	for _, id := range []int64{1, 99, 123456} {
		tok, err := m.Encode(id, t0)
		require.NoError(t, err)

		parts := strings.Split(tok, ".")
		require.Len(t, parts, 3)

		sig := []byte(parts[2])
		if sig[0] == 'A' {
			sig[0] = 'B'
		} else {
			sig[0] = 'A'
		}
		tampered := parts[0] + "." + parts[1] + "." + string(sig)

		_, err = m.Decode(tampered, t0)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	}
}

func TestDecode_TamperedLastSignatureChar(t *testing.T) {
	t.Parallel()

	m := NewManager("super-secret", DefaultTTL)

	for id := int64(1); id <= 50; id++ {
		tok, err := m.Encode(id, t0)
		require.NoError(t, err)

		// the last char of a 43-char HS256 signature carries 2 padding bits;
		// flipping its low bit leaves the decoded bytes unchanged under
		// lenient base64
		sig := []byte(tok[strings.LastIndex(tok, ".")+1:])
		require.Len(t, sig, 43)
		sig[len(sig)-1] ^= 1

		tampered := tok[:strings.LastIndex(tok, ".")+1] + string(sig)
		require.NotEqual(t, tok, tampered)

		_, err = m.Decode(tampered, t0)
		assert.ErrorIs(t, err, ErrTokenInvalid, "id %d", id)
	}
}

func TestDecode_TamperedAndExpiredIsInvalid(t *testing.T) {
	t.Parallel()

	m := NewManager("super-secret", DefaultTTL)

	tok, err := m.Encode(3, t0)
	require.NoError(t, err)

	_, err = m.Decode(tok+"x", t0.Add(time.Hour))
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDecode_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewManager("right-secret", DefaultTTL).Encode(5, t0)
	require.NoError(t, err)

	_, err = NewManager("wrong-secret", DefaultTTL).Decode(tok, t0)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDecode_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	m := NewManager("super-secret", DefaultTTL)

	claims := Claims{
		Subject:   strconv.Itoa(5),
		IssuedAt:  jwt.NewNumericDate(t0),
		ExpiresAt: jwt.NewNumericDate(t0.Add(time.Minute)),
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("super-secret"))
	require.NoError(t, err)

	_, err = m.Decode(hs512, t0)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Decode(none, t0)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	m := NewManager("k", DefaultTTL)

	for _, raw := range []string{"", "not.a.jwt", "abc"} {
		_, err := m.Decode(raw, t0)
		assert.ErrorIs(t, err, ErrTokenInvalid, "token %q", raw)
	}
}

func TestDecode_NonNumericSubject(t *testing.T) {
	t.Parallel()

	claims := Claims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(t0.Add(time.Minute)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = NewManager("k", DefaultTTL).Decode(tok, t0)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestEncode_FreshClaimsEachTime(t *testing.T) {
	t.Parallel()

	m := NewManager("k", DefaultTTL)

	first, err := m.Encode(1, t0)
	require.NoError(t, err)
	second, err := m.Encode(1, t0.Add(2*time.Second))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	claims := &Claims{}
	_, _, err = jwt.NewParser().ParseUnverified(second, claims)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(2*time.Second).Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, t0.Add(2*time.Second+DefaultTTL).Unix(), claims.ExpiresAt.Unix())
}

func TestDecode_ConcurrentCallers(t *testing.T) {
	t.Parallel()

	m := NewManager("k", DefaultTTL)

	tok, err := m.Encode(11, t0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := m.Decode(tok, t0)
			assert.NoError(t, err)
			assert.Equal(t, int64(11), id)
		}()
	}
	wg.Wait()
}
