package service

import (
	"context"
	"sort"

	"github.com/straye-as/pipeline-api/internal/cache"
	"github.com/straye-as/pipeline-api/internal/domain"
	"go.uber.org/zap"
)

// MutationKind names a write that can stale cached aggregates
type MutationKind string

const (
	MutationCreate          MutationKind = "create"
	MutationAdvance         MutationKind = "advance"
	MutationRevert          MutationKind = "revert"
	MutationAssign          MutationKind = "assign"
	MutationExecutionUpdate MutationKind = "execution_update"
	MutationRelease         MutationKind = "release"
	MutationFinancials      MutationKind = "financials"
	MutationPreviewLinks    MutationKind = "preview_links"
	MutationPostUpdate      MutationKind = "post_update"
	MutationRoleChange      MutationKind = "role_change"
	MutationClientLink      MutationKind = "client_link"
)

type keyScope uint8

const (
	scopeAdmin keyScope = 1 << iota
	scopeOwnerFetcher
	scopeExecution
	scopeProjectUpdates
	scopeProjectLogs
	scopeDevelopers
)

const scopeProjectFeed = scopeProjectUpdates | scopeProjectLogs

// invalidationTable lists the cache scopes each mutation stales. Execution
// scope covers the developer and team both before and after the write, so
// added and removed members are included.
var invalidationTable = map[MutationKind]keyScope{
	MutationCreate:          scopeAdmin | scopeOwnerFetcher,
	MutationAdvance:         scopeAdmin | scopeOwnerFetcher | scopeExecution | scopeProjectFeed,
	MutationRevert:          scopeAdmin | scopeOwnerFetcher | scopeExecution | scopeProjectFeed,
	MutationExecutionUpdate: scopeAdmin | scopeOwnerFetcher | scopeExecution | scopeProjectFeed,
	MutationAssign:          scopeAdmin | scopeOwnerFetcher | scopeExecution | scopeProjectFeed,
	MutationRelease:         scopeAdmin | scopeOwnerFetcher | scopeExecution | scopeProjectLogs,
	MutationFinancials:      scopeAdmin | scopeOwnerFetcher | scopeExecution | scopeProjectLogs,
	MutationPreviewLinks:    scopeExecution | scopeProjectFeed,
	MutationPostUpdate:      scopeExecution | scopeProjectFeed,
	MutationRoleChange:      scopeDevelopers,
	MutationClientLink:      scopeDevelopers,
}

// Invalidator deletes the cache keys a mutation stales
type Invalidator struct {
	cache  cache.Cache
	logger *zap.Logger
}

func NewInvalidator(c cache.Cache, logger *zap.Logger) *Invalidator {
	return &Invalidator{cache: c, logger: logger}
}

// KeysFor returns the sorted keys staled by kind. before may be nil for
// creations; after may be nil for writes that do not touch a project.
func KeysFor(kind MutationKind, before, after *domain.Project) []string {
	scope, ok := invalidationTable[kind]
	if !ok {
		return nil
	}

	keys := make(map[string]struct{})
	add := func(k string) { keys[k] = struct{}{} }

	projects := make([]*domain.Project, 0, 2)
	for _, p := range []*domain.Project{before, after} {
		if p != nil {
			projects = append(projects, p)
		}
	}

	if scope&scopeAdmin != 0 {
		for _, k := range cache.AdminKeys() {
			add(k)
		}
	}
	if scope&scopeDevelopers != 0 {
		add(cache.KeyAdminDevelopers)
	}
	for _, p := range projects {
		if scope&scopeOwnerFetcher != 0 && p.CreatedByID != 0 {
			add(cache.FetcherEarningsKey(p.CreatedByID))
		}
		if scope&scopeExecution != 0 {
			if p.AssignedToID != nil {
				add(cache.ExecutionProjectsKey(*p.AssignedToID))
			}
			for _, id := range p.TeamIDs() {
				add(cache.ExecutionProjectsKey(id))
			}
		}
		if scope&scopeProjectUpdates != 0 && p.ID != 0 {
			add(cache.ProjectUpdatesKey(p.ID))
		}
		if scope&scopeProjectLogs != 0 && p.ID != 0 {
			add(cache.ProjectLogsKey(p.ID))
		}
	}

	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Invalidate deletes the keys for kind. A cache failure is logged and does
// not fail the already committed write; the per-key TTL bounds the staleness.
func (i *Invalidator) Invalidate(ctx context.Context, kind MutationKind, before, after *domain.Project) {
	keys := KeysFor(kind, before, after)
	if len(keys) == 0 {
		return
	}
	if err := i.cache.Delete(ctx, keys...); err != nil {
		i.logger.Error("cache invalidation failed",
			zap.String("mutation", string(kind)),
			zap.Strings("keys", keys),
			zap.Error(err))
		return
	}
	i.logger.Debug("cache invalidated",
		zap.String("mutation", string(kind)),
		zap.Strings("keys", keys))
}
