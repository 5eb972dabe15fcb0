package timex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnixRoundTrip(t *testing.T) {
	at := time.Unix(1700000000, 0).UTC()
	assert.Equal(t, int64(1700000000), Unix(at))
	assert.Equal(t, at, FromUnix(1700000000))
}

func TestPtrHelpers(t *testing.T) {
	assert.Nil(t, UnixPtr(nil))
	assert.Nil(t, FromUnixPtr(nil))

	at := time.Unix(1700000000, 0).UTC()
	s := UnixPtr(&at)
	require.NotNil(t, s)
	assert.Equal(t, int64(1700000000), *s)

	back := FromUnixPtr(s)
	require.NotNil(t, back)
	assert.Equal(t, at, *back)
}

func TestUnix_NormalizesZone(t *testing.T) {
	zone := time.FixedZone("plus2", 2*3600)
	local := time.Unix(1700000000, 0).In(zone)
	assert.Equal(t, int64(1700000000), Unix(local))
}
