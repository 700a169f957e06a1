//go:build unit

package queries_test

import (
	"testing"
	"time"

	"schedcore/internal/domain/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyFingerprintCoversEveryKnob(t *testing.T) {
	base := basePolicy(t)
	fp := base.Fingerprint(30*time.Minute, 0)
	assert.Equal(t, fp, base.Fingerprint(30*time.Minute, 0), "fingerprint must be stable")

	longer := base
	longer.Horizon = 14 * 24 * time.Hour
	assert.NotEqual(t, fp, longer.Fingerprint(30*time.Minute, 0))

	hours, err := schedule.ParseBusinessHours("Mon=10:00-16:00", "UTC")
	require.NoError(t, err)
	rehoured := base
	rehoured.GlobalHours = hours
	assert.NotEqual(t, fp, rehoured.Fingerprint(30*time.Minute, 0))

	assert.NotEqual(t, fp, base.Fingerprint(30*time.Minute, 10*time.Minute))
	assert.NotEqual(t, fp, base.Fingerprint(45*time.Minute, 0))
}
