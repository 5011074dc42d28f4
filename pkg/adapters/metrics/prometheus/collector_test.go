package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordResolution("ok")
	c.RecordPoll("ok", 100*time.Millisecond)
	c.RecordPoll("ok", 200*time.Millisecond)
	c.RecordPoll("failed", time.Second)
	c.RecordEventEmitted("chat")
	c.RecordEventLagged("chat", 3)
	c.RecordDecodeError("chat")
	c.SetActiveSubscriptions(2)
	c.SetSessionHealthy(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.resolutions.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.polls.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.polls.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.eventsEmitted.WithLabelValues("chat")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.eventsLagged.WithLabelValues("chat")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.decodeErrors.WithLabelValues("chat")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.activeSubscriptions))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionHealthy))

	c.SetSessionHealthy(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.sessionHealthy))
}
