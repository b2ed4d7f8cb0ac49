package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUsageArchiver_ObjectKey(t *testing.T) {
	a := &UsageArchiver{cfg: ArchiverConfig{Prefix: "usage/", PodName: "providerd-0"}}

	ts := time.Date(2026, 8, 23, 14, 30, 22, 123456789, time.UTC)
	key := a.objectKey(ts)

	assert.Equal(t, "usage/2026/08/23/providerd-0-20260823-143022-123456789.jsonl", key)
}
