// Package coordinator runs the probe loop: draw a batch of untried codes,
// probe them through a bounded worker group, reconcile the outcomes into the
// ledger and stop once a code is accepted.
//
// Batches are strictly sequential. The next batch is generated only after
// the previous one's tried set has been saved, so a restarted run never
// probes a code that was already rejected.
package coordinator
