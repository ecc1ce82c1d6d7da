package counter

import (
	"context"
	"strconv"

	"github.com/vikrampresence-a11y/storefront/internal/pkg/cache"
)

const webhookOutcomesKey = "webhook:counters:outcomes"

// Webhook handling outcomes tracked for operator visibility. Failures that
// are acknowledged to the sender (integrity gaps, ledger errors) only show up
// here and in the logs.
const (
	OutcomeProcessed        = "processed"
	OutcomeDuplicate        = "duplicate"
	OutcomeIgnored          = "ignored"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeParseError       = "parse_error"
	OutcomeIntegrityError   = "integrity_error"
	OutcomeLedgerError      = "ledger_error"
	OutcomeDispatchError    = "dispatch_error"
)

// AddOutcome increments the pending counter for one webhook outcome in Redis
func AddOutcome(outcome string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, webhookOutcomesKey, outcome, 1).Err()
}

// Snapshot returns all webhook outcome counters
func Snapshot() (map[string]int64, error) {
	ctx := context.Background()
	raw, err := cache.GetClient().HGetAll(ctx, webhookOutcomesKey).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(raw))
	for outcome, count := range raw {
		if n, err := strconv.ParseInt(count, 10, 64); err == nil {
			result[outcome] = n
		}
	}
	return result, nil
}
