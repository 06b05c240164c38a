package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserversAreSafeBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		ObserveMerge(ResultSuccess, time.Millisecond)
		IncResolution("source")
		AddInserted("event", 3)
		ObserveAreaQuery("", time.Millisecond)
		ObserveExport("", ResultError, time.Millisecond)
		IncAuthFailure("")
		AddDuplicateChargersDeleted(2)
	})
}

func TestInitRegistersCounters(t *testing.T) {
	Init(nil, nil)

	before := testutil.ToFloat64(insertedTotal.WithLabelValues("comment"))
	AddInserted("comment", 2)
	AddInserted("comment", 0)
	assert.Equal(t, before+2, testutil.ToFloat64(insertedTotal.WithLabelValues("comment")))

	before = testutil.ToFloat64(resolutionsTotal.WithLabelValues("unknown"))
	IncResolution("")
	assert.Equal(t, before+1, testutil.ToFloat64(resolutionsTotal.WithLabelValues("unknown")))

	before = testutil.ToFloat64(authFailures.WithLabelValues("missing_token"))
	IncAuthFailure("missing_token")
	assert.Equal(t, before+1, testutil.ToFloat64(authFailures.WithLabelValues("missing_token")))
}
