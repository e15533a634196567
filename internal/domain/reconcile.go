package domain

import (
	"context"
	"fmt"
	"time"
)

// Resolution names the side kept when a conflict is resolved.
type Resolution string

const (
	KeepRemote Resolution = "remote"
	KeepLocal  Resolution = "local"
)

// Valid reports whether r is a known resolution.
func (r Resolution) Valid() bool {
	return r == KeepRemote || r == KeepLocal
}

// ConflictPolicy selects how divergent records are resolved.
type ConflictPolicy string

const (
	// PolicyServerWins always keeps the remote version.
	PolicyServerWins ConflictPolicy = "server_wins"

	// PolicyManual asks a chooser for every conflict.
	PolicyManual ConflictPolicy = "manual"
)

// Conflict is a record whose local and remote versions disagree on text or
// category.
type Conflict struct {
	ID         string
	Local      Quote
	Remote     Quote
	Resolution Resolution
}

// ConflictResolver decides which side of a conflict to keep.
type ConflictResolver interface {
	Resolve(ctx context.Context, c Conflict) (Resolution, error)
}

// ResolverFunc adapts a function to ConflictResolver.
type ResolverFunc func(ctx context.Context, c Conflict) (Resolution, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, c Conflict) (Resolution, error) {
	return f(ctx, c)
}

// ServerWins resolves every conflict in favour of the remote record.
var ServerWins ConflictResolver = ResolverFunc(func(context.Context, Conflict) (Resolution, error) {
	return KeepRemote, nil
})

// Always resolves every conflict to r. It backs non-interactive manual mode.
func Always(r Resolution) ConflictResolver {
	return ResolverFunc(func(context.Context, Conflict) (Resolution, error) {
		return r, nil
	})
}

// MergeResult is the outcome of reconciling a remote list into a local set.
type MergeResult struct {
	Merged    QuoteSet
	Conflicts []Conflict

	// Inserted counts remote records whose id was unknown locally.
	Inserted int
}

// Reconcile merges remote into a copy of local.
//
// Unknown ids are inserted as-is. Records with identical text and category
// keep whichever side has the later UpdatedAt, local on a tie. Divergent
// records are reported as conflicts, in remote order, and settled by resolver:
// a kept remote record is stamped with now; a kept local record is stamped
// with now and flagged for upload. Local ids absent from remote are left
// untouched. local is never modified.
func Reconcile(
	ctx context.Context,
	local QuoteSet,
	remote []Quote,
	resolver ConflictResolver,
	now time.Time,
) (*MergeResult, error) {
	if resolver == nil {
		resolver = ServerWins
	}

	result := &MergeResult{Merged: local.Clone()}

	for _, r := range remote {
		existing, ok := result.Merged[r.ID]
		if !ok {
			result.Merged[r.ID] = r
			result.Inserted++
			continue
		}

		if existing.SameContent(r) {
			if r.UpdatedAt.After(existing.UpdatedAt) {
				result.Merged[r.ID] = r
			}
			continue
		}

		c := Conflict{ID: r.ID, Local: existing, Remote: r}

		choice, err := resolver.Resolve(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("resolving conflict on %s: %w", r.ID, err)
		}

		switch choice {
		case KeepRemote:
			kept := r
			kept.UpdatedAt = now
			result.Merged[r.ID] = kept
		case KeepLocal:
			kept := existing
			kept.NeedsSync = true
			kept.UpdatedAt = now
			result.Merged[r.ID] = kept
		default:
			return nil, NewValidationErrorWithValue("resolution", "must be remote or local", choice)
		}

		c.Resolution = choice
		result.Conflicts = append(result.Conflicts, c)
	}

	return result, nil
}
