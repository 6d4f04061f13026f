package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chriscoveyduck/octopus2adls/pkg/lake"
)

// ErrRunInFlight means another invocation holds the run lease. The trigger
// contract is "at most one logical run in flight"; the lease enforces it
// when triggers can overlap.
var ErrRunInFlight = errors.New("pipeline: another run holds the lease")

type lease struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

func leaseOwner() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), time.Now().UnixNano())
}

// acquireLease claims the run lease for ttl. A live lease held by someone
// else fails the acquisition; an expired lease is taken over.
func acquireLease(ctx context.Context, store lake.ObjectStore, owner string, ttl time.Duration) error {
	data, err := store.Get(ctx, lake.LeasePath)
	if err == nil {
		var l lease
		if json.Unmarshal(data, &l) == nil && l.Owner != owner && time.Now().Before(l.ExpiresAt) {
			return fmt.Errorf("%w: held by %s until %s", ErrRunInFlight, l.Owner, l.ExpiresAt.Format(time.RFC3339))
		}
	} else if !errors.Is(err, lake.ErrNotFound) {
		return err
	}

	payload, err := json.Marshal(lease{Owner: owner, ExpiresAt: time.Now().Add(ttl)})
	if err != nil {
		return err
	}
	return store.Put(ctx, lake.LeasePath, payload)
}

// releaseLease drops the lease if we still own it.
func releaseLease(ctx context.Context, store lake.ObjectStore, owner string) {
	data, err := store.Get(ctx, lake.LeasePath)
	if err != nil {
		return
	}
	var l lease
	if json.Unmarshal(data, &l) == nil && l.Owner == owner {
		_ = store.Delete(ctx, lake.LeasePath)
	}
}
