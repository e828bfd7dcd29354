package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pantrymind/pantrymind-backend/internal/inventory/catalog"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/repository"
	"github.com/pantrymind/pantrymind-backend/pkg/errors"
	"github.com/pantrymind/pantrymind-backend/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// GroupResolver finds or creates the group a purchase belongs to.
//
// Resolution order: exact unique key, then any group in the same
// (kitchen, category, base unit) scope whose name canonicalizes identically,
// then the first fuzzy match in that scope, then a new group. Creation is an
// insert that yields on conflict, so concurrent first purchases of one item
// converge on a single group.
//
// Resolve must not run inside a caller's transaction: a group created there
// would be invisible to concurrent callers until commit.
type GroupResolver struct {
	groups        GroupStore
	units         *catalog.UnitConverter
	matcher       catalog.Matcher
	minExpiryDays int
	flight        singleflight.Group
	logger        *logger.Logger
}

// NewGroupResolver creates a new group resolver
func NewGroupResolver(groups GroupStore, units *catalog.UnitConverter, matcher catalog.Matcher, minExpiryDays int, log *logger.Logger) *GroupResolver {
	return &GroupResolver{
		groups:        groups,
		units:         units,
		matcher:       matcher,
		minExpiryDays: minExpiryDays,
		logger:        log.WithComponent("group-resolver"),
	}
}

// Resolve returns the group for a purchase of displayName measured in unit
func (r *GroupResolver) Resolve(ctx context.Context, displayName, categoryID, unit, kitchenID string) (*repository.Group, error) {
	normalized := catalog.Normalize(displayName)
	if normalized == "" {
		return nil, errors.Validation(map[string]string{"name": "must contain at least one letter"})
	}

	key := repository.GroupKey{
		NormalizedName: normalized,
		CategoryID:     categoryID,
		BaseUnit:       r.units.BaseUnit(unit),
		KitchenID:      kitchenID,
	}

	flightKey := strings.Join([]string{key.KitchenID, key.CategoryID, key.BaseUnit, key.NormalizedName}, "\x00")
	// The flight is shared, so one caller going away must not fail the others.
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.flight.Do(flightKey, func() (interface{}, error) {
		return r.resolve(shared, displayName, key)
	})
	if err != nil {
		return nil, err
	}

	// Callers sharing a flight must not share the struct.
	g := *v.(*repository.Group)
	return &g, nil
}

func (r *GroupResolver) resolve(ctx context.Context, displayName string, key repository.GroupKey) (*repository.Group, error) {
	g, err := r.groups.FindByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("find group by key: %w", err)
	}
	if g != nil {
		return g, nil
	}

	scope, err := r.groups.ListInScope(ctx, key.KitchenID, key.CategoryID, key.BaseUnit)
	if err != nil {
		return nil, fmt.Errorf("list groups in scope: %w", err)
	}

	for _, candidate := range scope {
		if catalog.Normalize(candidate.Name) == key.NormalizedName {
			return candidate, nil
		}
	}

	names := make([]string, len(scope))
	for i, candidate := range scope {
		names[i] = candidate.Name
	}
	if match, ok := r.matcher.FindBestMatch(displayName, names); ok {
		for _, candidate := range scope {
			if candidate.Name == match {
				r.logger.Debug().
					Str("input", displayName).
					Str("matched", candidate.Name).
					Str("group_id", candidate.ID).
					Msg("purchase fuzzy-matched to existing group")
				return candidate, nil
			}
		}
	}

	return r.create(ctx, displayName, key)
}

func (r *GroupResolver) create(ctx context.Context, displayName string, key repository.GroupKey) (*repository.Group, error) {
	g := &repository.Group{
		Name:               catalog.DisplayName(displayName),
		NormalizedName:     key.NormalizedName,
		CategoryID:         key.CategoryID,
		BaseUnit:           key.BaseUnit,
		KitchenID:          key.KitchenID,
		MinStock:           r.units.DefaultMinStock(key.BaseUnit),
		MinExpiryDaysAlert: r.minExpiryDays,
	}

	created, err := r.groups.CreateIfAbsent(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	if created {
		r.logger.Info().
			Str("group_id", g.ID).
			Str("name", g.Name).
			Str("kitchen_id", g.KitchenID).
			Msg("inventory group created")
		return g, nil
	}

	// Lost the insert race; the winner's row is committed by now.
	winner, err := r.groups.FindByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("re-read group after conflict: %w", err)
	}
	if winner == nil {
		return nil, errors.Internal("inventory group disappeared after conflicting insert")
	}
	return winner, nil
}
