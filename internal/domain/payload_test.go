package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPayloadStampsVersion(t *testing.T) {
	t.Parallel()

	p := NewPayload(map[string]any{"url": "https://a.test/"})
	require.Equal(t, PayloadSchemaVersion, p.SchemaVersion())
	require.Equal(t, "https://a.test/", p["url"])
	require.NoError(t, p.CheckSchema())
}

func TestCheckSchema(t *testing.T) {
	t.Parallel()

	// Unversioned payloads pass as version 1.
	require.NoError(t, Payload{"url": "x"}.CheckSchema())

	err := Payload{"schema_version": 99}.CheckSchema()
	require.ErrorIs(t, err, ErrSchemaVersion)

	// JSON round trips turn ints into float64.
	require.NoError(t, Payload{"schema_version": float64(1)}.CheckSchema())
}

func TestPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	p := NewPayload(map[string]any{"url": "https://a.test/", "count": 3})
	v, err := p.Value()
	require.NoError(t, err)

	var scanned Payload
	require.NoError(t, scanned.Scan(v))
	require.Equal(t, "https://a.test/", scanned["url"])
	require.EqualValues(t, 3, scanned["count"])
	require.Equal(t, PayloadSchemaVersion, scanned.SchemaVersion())
}

func TestPayloadScanEdgeCases(t *testing.T) {
	t.Parallel()

	var p Payload
	require.NoError(t, p.Scan(nil))
	require.Nil(t, p)

	require.NoError(t, p.Scan(""))
	require.NotNil(t, p)
	require.Empty(t, p)

	require.Error(t, p.Scan(42))
}

func TestEmptyPayloadValue(t *testing.T) {
	t.Parallel()

	v, err := Payload{}.Value()
	require.NoError(t, err)
	require.Equal(t, "{}", v)
}

func TestStringListRoundTrip(t *testing.T) {
	t.Parallel()

	l := StringList{"cloudflare", "captcha"}
	v, err := l.Value()
	require.NoError(t, err)

	var scanned StringList
	require.NoError(t, scanned.Scan(v))
	require.Equal(t, l, scanned)

	require.True(t, l.Contains("captcha"))
	require.False(t, l.Contains("akamai"))
}

func TestEmptyStringListValue(t *testing.T) {
	t.Parallel()

	v, err := StringList(nil).Value()
	require.NoError(t, err)
	require.Equal(t, "[]", v)

	var scanned StringList
	require.NoError(t, scanned.Scan(v))
	require.Empty(t, scanned)
}
