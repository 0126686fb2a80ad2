// Package reassembly reconstructs complete script text from out-of-order,
// duplicated, chunked log fragments.
package reassembly

import (
	"sort"

	"argus/core"
	"argus/metrics"

	"go.uber.org/zap"
)

// boilerplateTexts are exact script texts emitted constantly by interactive
// hosts; they carry no signal and are dropped in default mode.
var boilerplateTexts = func() map[string]struct{} {
	texts := []string{
		"prompt",
		"exit",
		"cls",
		"clear-host",
		"$global:?",
		"& {Set-StrictMode -Version 1; $this.Exception.InnerException.PSMessageDetails}",
	}
	m := make(map[string]struct{}, len(texts))
	for _, t := range texts {
		m[t] = struct{}{}
	}
	return m
}()

// Config holds configuration for a Reassembler.
type Config struct {
	// Deep disables boilerplate and duplicate-text filtering so every
	// reconstructed group is returned.
	Deep   bool
	Logger *zap.SugaredLogger
}

// Reassembler turns a collection of log fragments into the minimal set of
// distinct reassembled scripts. A Reassembler is stateless across calls;
// each Reassemble invocation is a single batch pass.
type Reassembler struct {
	deep   bool
	logger *zap.SugaredLogger
}

// New creates a Reassembler.
func New(cfg *Config) *Reassembler {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &Reassembler{
		deep:   cfg.Deep,
		logger: cfg.Logger,
	}
}

// chunkKey identifies one chunk of one script for deduplication.
type chunkKey struct {
	scriptID string
	sequence int
}

// Reassemble deduplicates and stitches the supplied fragments into scripts.
// The same underlying events replayed through multiple collection paths
// produce identical output: duplicate (scriptID, sequence) observations keep
// only the first, and assembly order depends only on sequence numbers, never
// on input order. Groups missing chunks are still emitted, marked incomplete.
func (r *Reassembler) Reassemble(fragments []core.LogFragment) []core.ReassembledScript {
	// Dedup stage: first observation of each (scriptID, sequence) wins.
	seen := make(map[chunkKey]struct{}, len(fragments))
	groups := make(map[string][]core.LogFragment)
	var order []string

	for _, frag := range fragments {
		key := chunkKey{scriptID: frag.ScriptID, sequence: frag.SequenceNumber}
		if _, dup := seen[key]; dup {
			r.logger.Debugw("Discarding duplicate fragment",
				"script_id", frag.ScriptID,
				"sequence", frag.SequenceNumber)
			continue
		}
		seen[key] = struct{}{}
		if _, ok := groups[frag.ScriptID]; !ok {
			order = append(order, frag.ScriptID)
		}
		groups[frag.ScriptID] = append(groups[frag.ScriptID], frag)
	}

	// Assembly stage: sort each group by sequence and concatenate payloads.
	scripts := make([]core.ReassembledScript, 0, len(groups))
	emittedHashes := make(map[string]struct{}, len(groups))

	for _, scriptID := range order {
		script := r.assemble(scriptID, groups[scriptID])

		if !r.deep {
			if _, benign := boilerplateTexts[script.Text]; benign {
				r.logger.Debugw("Dropping boilerplate script", "script_id", scriptID)
				continue
			}
			if _, dup := emittedHashes[script.Hash]; dup {
				r.logger.Debugw("Dropping duplicate script text",
					"script_id", scriptID,
					"hash", script.Hash)
				continue
			}
		}

		emittedHashes[script.Hash] = struct{}{}
		scripts = append(scripts, script)
		if script.Reassembled {
			metrics.ScriptsReassembled.WithLabelValues("true").Inc()
		} else {
			metrics.ScriptsReassembled.WithLabelValues("false").Inc()
		}
	}

	return scripts
}

// assemble builds one ReassembledScript from a deduplicated fragment group.
func (r *Reassembler) assemble(scriptID string, group []core.LogFragment) core.ReassembledScript {
	sort.Slice(group, func(i, j int) bool {
		return group[i].SequenceNumber < group[j].SequenceNumber
	})

	text := ""
	first := group[0]
	firstTimestamp := first.Timestamp
	for _, frag := range group {
		text += frag.Payload
		if frag.Timestamp.Before(firstTimestamp) {
			firstTimestamp = frag.Timestamp
		}
		// chunkTotal is declared redundantly on every fragment; the lowest
		// sequence number wins and disagreement is reported, not resolved.
		if frag.ChunkTotal != first.ChunkTotal {
			r.logger.Warnw("Fragments disagree on chunk total",
				"script_id", scriptID,
				"declared", first.ChunkTotal,
				"conflicting", frag.ChunkTotal,
				"sequence", frag.SequenceNumber)
		}
	}

	return core.ReassembledScript{
		ScriptID:           scriptID,
		Text:               text,
		Hash:               core.HashContent(text),
		ChunkObservedCount: len(group),
		ChunkTotalDeclared: first.ChunkTotal,
		Reassembled:        len(group) == first.ChunkTotal,
		FirstTimestamp:     firstTimestamp,
		Level:              first.Level,
		Host:               first.Host,
		Instance:           first.Instance,
	}
}

// Items converts reassembled scripts into pipeline input items, so recovered
// scripts can be fed straight back into the detection orchestrator.
func Items(scripts []core.ReassembledScript) []core.InputItem {
	items := make([]core.InputItem, 0, len(scripts))
	for _, s := range scripts {
		items = append(items, core.InputItem{Source: "script:" + s.ScriptID, Content: s.Text})
	}
	return items
}
