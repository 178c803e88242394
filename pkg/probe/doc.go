// Package probe sends one candidate code to the probe endpoint and classifies
// the HTTP outcome.
//
// Any status outside the rejection set counts as accepted. A probe that got
// no response is never accepted: under the exhaust policy it is rejected like
// any other failed code, under the retry policy it is left for a later batch.
package probe
