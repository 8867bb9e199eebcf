// Package sim provides the core discrete-event simulation engine for SimUci.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - patient.go: PatientProfile input and the StageDurations outcome of one run
//   - timeline.go: the four-stage patient timeline process and its VAM constraint
//   - replication.go: replication/batch runners that turn single runs into tables
//
// # Architecture
//
// One patient's timeline is a strictly ordered sequence of stage draws on a
// logical clock; stages never interleave across patients, so the process is an
// ordinary function call chain rather than a scheduled coroutine. Randomness is
// partitioned per replication (rng.go) so batches are reproducible under any
// execution order.
//
// Statistical validation of simulation output against ground truth lives in
// the sim/stats sub-package.
package sim
