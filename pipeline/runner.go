package pipeline

import (
	"context"
	"fmt"

	"github.com/vk/flowtag/contract"
	"github.com/vk/flowtag/executor"
	"github.com/vk/flowtag/internal/ctxlog"
	"github.com/vk/flowtag/record"
	"github.com/zclconf/go-cty/cty"
)

// Runner executes pipeline definitions in-process, stage by stage, over an
// in-memory record slice. Reduce stages group records locally by the
// configured field before aggregation.
type Runner struct {
	registry *Registry
	exec     *executor.Executor
}

// NewRunner creates a runner over the given descriptor registry.
func NewRunner(registry *Registry) *Runner {
	return &Runner{registry: registry, exec: executor.New()}
}

// boundStage is a stage resolved against the registry.
type boundStage struct {
	stage *Stage
	desc  *contract.Descriptor
}

// bind resolves every stage and validates every contract up front, so a
// misconfigured pipeline fails before any record is processed.
func (r *Runner) bind(def *Definition) ([]boundStage, error) {
	if len(def.Stages) == 0 {
		return nil, fmt.Errorf("pipeline %q has no stages", def.Name)
	}

	bound := make([]boundStage, 0, len(def.Stages))
	for _, s := range def.Stages {
		d, ok := r.registry.Lookup(s.Use)
		if !ok {
			return nil, fmt.Errorf("pipeline %q, stage %q: no descriptor registered as %q", def.Name, s.Name, s.Use)
		}
		if err := r.exec.Validate(d); err != nil {
			return nil, fmt.Errorf("pipeline %q, stage %q: %w", def.Name, s.Name, err)
		}
		if d.Role() == contract.RoleReduce && s.GroupBy == "" {
			return nil, fmt.Errorf("pipeline %q, stage %q: reduce stage requires group_by", def.Name, s.Name)
		}
		if d.Role() != contract.RoleReduce && s.GroupBy != "" {
			return nil, fmt.Errorf("pipeline %q, stage %q: group_by is only valid on reduce stages", def.Name, s.Name)
		}
		bound = append(bound, boundStage{stage: s, desc: d})
	}
	return bound, nil
}

// Run sends the input records through every stage in order and returns the
// records leaving the final stage.
func (r *Runner) Run(ctx context.Context, def *Definition, input []*record.Record) ([]*record.Record, error) {
	bound, err := r.bind(def)
	if err != nil {
		return nil, err
	}

	logger := ctxlog.FromContext(ctx).With("pipeline", def.Name)
	recs := input

	for _, b := range bound {
		stageCtx := executor.WithStage(ctx, b.stage.Name)
		stageLogger := logger.With("stage", b.stage.Name)
		stageCtx = ctxlog.WithLogger(stageCtx, stageLogger)

		in := len(recs)
		switch b.desc.Role() {
		case contract.RoleMap:
			recs, err = r.runMap(stageCtx, b, recs)
		case contract.RoleFilter:
			recs, err = r.runFilter(stageCtx, b, recs)
		case contract.RoleReduce:
			recs, err = r.runReduce(stageCtx, b, recs)
		}
		if err != nil {
			return nil, fmt.Errorf("pipeline %q, stage %q: %w", def.Name, b.stage.Name, err)
		}
		stageLogger.Debug("Stage complete.", "records_in", in, "records_out", len(recs))
	}

	return recs, nil
}

func (r *Runner) runMap(ctx context.Context, b boundStage, recs []*record.Record) ([]*record.Record, error) {
	var out []*record.Record
	for _, rec := range recs {
		emitted, err := r.exec.Transform(ctx, b.desc, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, emitted...)
	}
	return out, nil
}

func (r *Runner) runFilter(ctx context.Context, b boundStage, recs []*record.Record) ([]*record.Record, error) {
	var out []*record.Record
	for _, rec := range recs {
		keep, err := r.exec.Keep(ctx, b.desc, rec)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *Runner) runReduce(ctx context.Context, b boundStage, recs []*record.Record) ([]*record.Record, error) {
	groups, err := groupRecords(recs, b.stage.GroupBy)
	if err != nil {
		return nil, err
	}
	var out []*record.Record
	for _, g := range groups {
		emitted, err := r.exec.Aggregate(ctx, b.desc, g)
		if err != nil {
			return nil, err
		}
		out = append(out, emitted...)
	}
	return out, nil
}

// groupRecords partitions records by the value of one field, preserving
// first-seen key order. This local grouping stands in for the shuffle an
// external engine performs.
func groupRecords(recs []*record.Record, field string) ([]*record.Group, error) {
	type accum struct {
		key     cty.Value
		members []*record.Record
	}
	var order []string
	buckets := make(map[string]*accum)

	for _, rec := range recs {
		key, ok := rec.Get(field)
		if !ok {
			return nil, fmt.Errorf("record %s has no field %q to group by", rec, field)
		}
		id := key.GoString()
		bucket, seen := buckets[id]
		if !seen {
			bucket = &accum{key: key}
			buckets[id] = bucket
			order = append(order, id)
		}
		bucket.members = append(bucket.members, rec)
	}

	groups := make([]*record.Group, 0, len(order))
	for _, id := range order {
		bucket := buckets[id]
		groups = append(groups, record.NewGroup(field, bucket.key, bucket.members))
	}
	return groups, nil
}
