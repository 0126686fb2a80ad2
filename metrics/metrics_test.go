package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(WhitelistHits.WithLabelValues("hash"))
	WhitelistHits.WithLabelValues("hash").Inc()
	after := testutil.ToFloat64(WhitelistHits.WithLabelValues("hash"))
	assert.Equal(t, before+1, after)

	before = testutil.ToFloat64(WhitelistReloads)
	WhitelistReloads.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(WhitelistReloads))
}
