package bankprocessor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"git.taler.net/nexus/internal/domain/bankaccount"
	"git.taler.net/nexus/internal/domain/scheduledtask"
	"git.taler.net/nexus/internal/domain/shared"
)

func TestDateRangeForSinceLastUsesWatermark(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	acc := &bankaccount.Account{
		LastStatementCreationTimestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	params := &scheduledtask.FetchParams{Level: shared.FetchLevelStatement, RangeType: shared.RangeSinceLast}

	rng := dateRangeFor(params, acc, now)

	assert.Equal(t, "2026-03-01", rng.Start)
	assert.Equal(t, "2026-03-10", rng.End)
}

func TestDateRangeForSinceLastWithZeroWatermarkFetchesEverything(t *testing.T) {
	acc := &bankaccount.Account{}
	params := &scheduledtask.FetchParams{Level: shared.FetchLevelReport, RangeType: shared.RangeSinceLast}

	rng := dateRangeFor(params, acc, time.Now())

	assert.Nil(t, rng)
}

func TestDateRangeForPreviousDays(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	days := 5
	params := &scheduledtask.FetchParams{Level: shared.FetchLevelReport, RangeType: shared.RangePreviousDays, Number: &days}

	rng := dateRangeFor(params, &bankaccount.Account{}, now)

	assert.Equal(t, "2026-03-05", rng.Start)
	assert.Equal(t, "2026-03-10", rng.End)
}

func TestDateRangeForLatestAndAllAreNil(t *testing.T) {
	acc := &bankaccount.Account{}
	now := time.Now()

	assert.Nil(t, dateRangeFor(&scheduledtask.FetchParams{RangeType: shared.RangeLatest}, acc, now))
	assert.Nil(t, dateRangeFor(&scheduledtask.FetchParams{RangeType: shared.RangeAll}, acc, now))
}
