// Package ratelimit implements the per-provider request and token governor.
//
// Each provider has two independent buckets, requests-per-minute and
// tokens-per-minute. Both refill linearly with elapsed time and are capped at
// their nominal per-minute capacity, so a bucket is full again once a minute
// has passed without use.
//
// Buckets are process-wide and shared by every session that talks to the same
// provider: the quota they approximate belongs to the account, not to a
// session. [Governor] is the seam for swapping the in-memory [Local]
// implementation for a centralized counter service in multi-process
// deployments.
package ratelimit
