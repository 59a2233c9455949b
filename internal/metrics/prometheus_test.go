package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollectorSingleton(t *testing.T) {
	c1 := NewCollector()
	c2 := NewCollector()

	require.NotNil(t, c1)
	assert.Same(t, c1, c2, "NewCollector must return the same instance")
}

func TestCollectorRecordsDoNotPanic(t *testing.T) {
	c := NewCollector()

	assert.NotPanics(t, func() {
		c.RecordEngineStatus(true)
		c.RecordEngineStatus(false)
		c.RecordEngineCrash()
		c.RecordEngineReload()
		c.RecordProtocolLine("info")
		c.RecordSearchStarted()
		c.RecordStopIssued()
		c.RecordSearchDuration(0.42)
		c.RecordInfoRecord()
		c.RecordSnapshotSeq(7)
		c.RecordCacheHit()
		c.RecordCacheMiss()
	})
}
