// Package scoring converts observations into a transparent 0-100 confidence
// score. Score is a pure function over its inputs so it can run synchronously
// on every submission and vote, and again in the batch decay sweep, with
// identical results. All thresholds and ladders are package-level tables so
// policy can be tuned without touching control flow.
package scoring
