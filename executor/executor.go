// Package executor runs a planner.Plan against an MVCC snapshot, applying
// an RLS predicate to every candidate before it is returned, and produces
// an ordered result honoring the caller's requested limit.
package executor

import (
	"context"
	"fmt"
	"sort"

	"github.com/kartikbazzad/coredoc/mvcc"
	"github.com/kartikbazzad/coredoc/planner"
	"github.com/kartikbazzad/coredoc/rls"
)

// OrderSpec is the caller's requested result ordering.
type OrderSpec struct {
	Field string
	Desc  bool
}

// Options bundles a read's non-plan inputs. Ctx, if non-nil, is checked
// between candidates so a query that overruns its admission-controlled
// deadline stops scanning rather than running to completion anyway.
type Options struct {
	Ctx      context.Context
	Snapshot mvcc.CommitTS
	RLS      rls.Predicate
	OrderBy  *OrderSpec
}

// Execute runs plan against store at the given snapshot, filters every
// candidate through the RLS predicate before it can be returned, and
// applies the requested ordering.
func Execute(store *mvcc.Store, plan *planner.Plan, opts Options) ([]map[string]any, error) {
	if opts.RLS == nil {
		return nil, fmt.Errorf("executor: RLS predicate is required (use rls.AllowAll for service-role paths)")
	}

	ids, natural, err := candidateIDs(store, plan, opts.Snapshot)
	if err != nil {
		return nil, err
	}

	docs := make([]map[string]any, 0, len(ids))
	for i, id := range ids {
		if opts.Ctx != nil && i&255 == 0 {
			if err := opts.Ctx.Err(); err != nil {
				return nil, fmt.Errorf("executor: %w", err)
			}
		}
		body, ok, err := store.Get(opts.Snapshot, plan.Collection, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if !planner.Matches(plan.Filter, body) {
			continue
		}
		if !opts.RLS(body) {
			continue
		}
		docs = append(docs, body)
	}

	docs, err = applyOrdering(docs, natural, opts.OrderBy, plan.Limit)
	if err != nil {
		return nil, err
	}

	if plan.Limit != nil && len(docs) > *plan.Limit {
		docs = docs[:*plan.Limit]
	}
	return docs, nil
}

// candidateIDs resolves a plan's access path into the set of ids to check,
// plus the field whose natural order the access path already produces
// results in ("_id" for primary_lookup/collection_scan, the index's field
// path otherwise).
func candidateIDs(store *mvcc.Store, plan *planner.Plan, snapshot mvcc.CommitTS) (ids []string, naturalOrderField string, err error) {
	switch plan.Access {
	case planner.AccessPrimaryLookup:
		return []string{plan.ID}, "_id", nil

	case planner.AccessIndexEq:
		key, err := encodeKey(plan.Key)
		if err != nil {
			return nil, "", err
		}
		ids, err := store.LookupByIndex(plan.Collection, plan.IndexName, key)
		return ids, indexField(plan), err

	case planner.AccessIndexScan:
		lower, err := encodeBound(plan.Lower)
		if err != nil {
			return nil, "", err
		}
		upper, err := encodeBound(plan.Upper)
		if err != nil {
			return nil, "", err
		}
		ids, err := store.RangeByIndex(plan.Collection, plan.IndexName, lower, upper)
		return ids, indexField(plan), err

	case planner.AccessCollectionScan:
		var scanned []string
		err := store.Scan(snapshot, plan.Collection, func(id string, _ map[string]any) bool {
			scanned = append(scanned, id)
			return true
		})
		if err != nil {
			return nil, "", err
		}
		sort.Strings(scanned)
		return scanned, "_id", nil

	default:
		return nil, "", fmt.Errorf("executor: unknown access kind %v", plan.Access)
	}
}

func indexField(plan *planner.Plan) string {
	return plan.IndexName
}

func encodeKey(v any) ([]byte, error) {
	return mvcc.EncodeIndexKey(v)
}

func encodeBound(b planner.Bound) ([]byte, error) {
	if !b.Present {
		return nil, nil
	}
	return mvcc.EncodeIndexKey(b.Value)
}

// applyOrdering honors the caller's requested order. If it agrees with the
// access path's natural order (or none was requested) the sequence is left
// alone; otherwise the executor materializes a bounded buffer of size
// limit+1 and performs a stable sort, per §4.5. A reordering request
// without a limit has no provable bound on how much must be buffered, so it
// is rejected rather than silently sorting an unbounded result.
func applyOrdering(docs []map[string]any, naturalField string, orderBy *OrderSpec, limit *int) ([]map[string]any, error) {
	if orderBy == nil || orderBy.Field == naturalField && !orderBy.Desc {
		return docs, nil
	}
	if limit == nil {
		return nil, fmt.Errorf("executor: order_by %q disagrees with the natural access-path order and no limit was supplied", orderBy.Field)
	}

	buf := docs
	if len(buf) > *limit+1 {
		buf = buf[:*limit+1]
	}
	sort.SliceStable(buf, func(i, j int) bool {
		less := compareField(buf[i], buf[j], orderBy.Field)
		if orderBy.Desc {
			return less > 0
		}
		return less < 0
	})
	return buf, nil
}

func compareField(a, b map[string]any, field string) int {
	av, aok := a[field]
	bv, bok := b[field]
	if !aok || !bok {
		return 0
	}
	af, aIsNum := toFloat(av)
	bf, bIsNum := toFloat(bv)
	if aIsNum && bIsNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := fmt.Sprintf("%v", av), fmt.Sprintf("%v", bv)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
