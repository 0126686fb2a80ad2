// Package core contains the shared data model for the Argus detection
// pipeline: log fragments and reassembled scripts, whitelist rules, analysis
// results, and the stable content-hashing contract every component relies on.
package core
