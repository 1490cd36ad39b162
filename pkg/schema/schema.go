//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package schema implements the entity/action type registry: a
// single-shot builder that registers entity and action types, then
// produces an immutable, content-addressed [Schema] artifact. Schema
// hashing is canonical — registration order never affects the resulting
// hash — so the same logical schema always yields the same content hash
// regardless of which order a caller happened to call Register* in.
package schema

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/hodei/authzcore/pkg/kernel"
)

// SchemaError is the structured error type this package produces.
type SchemaError struct {
	Kind   string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error (%s): %s", e.Kind, e.Reason)
}

// SchemaError kinds.
const (
	ErrDuplicateEntityType          = "DuplicateEntityType"
	ErrDuplicateActionType          = "DuplicateActionType"
	ErrBuilderConsumed              = "BuilderConsumed"
	ErrUnknownDomain                = "UnknownDomain"
	ErrUnknownPrincipalTypeInAction = "UnknownPrincipalTypeInAction"
	ErrUnknownResourceTypeInAction  = "UnknownResourceTypeInAction"
)

// entityTypeRecord is the canonical, serializable projection of a
// registered entity type, used both for the Schema artifact and for
// computing the content hash.
type entityTypeRecord struct {
	Service kernel.ServiceName
	Type    kernel.ResourceTypeName
}

type actionTypeRecord struct {
	Name   kernel.ActionName
	action kernel.ActionType
}

// SchemaStoragePort is the port [SchemaBuilder.BuildWithStorage] uses to
// persist and retrieve schemas by content hash, so registering the same
// logical schema twice (e.g. across process restarts) returns the
// existing record instead of minting a duplicate one. Defined here,
// alongside the type it serves, rather than in pkg/schema/storage —
// that package provides an implementation (InMemoryStorage) but the
// port itself belongs with its consumer.
type SchemaStoragePort interface {
	Put(ctx context.Context, s *Schema) error
	Get(ctx context.Context, contentHash string) (*Schema, error)
	Latest(ctx context.Context) (*Schema, error)
}

// Schema is the immutable artifact produced by [SchemaBuilder.Build]. It
// groups registered entity/action types by the service ("domain") that
// registered them and exposes a canonical content hash for
// registration-order-independent equality and caching.
type Schema struct {
	Domains     map[kernel.ServiceName][]kernel.ResourceTypeName
	Actions     map[kernel.ServiceName][]kernel.ActionName
	ContentHash string
}

// SchemaBuilder accumulates entity and action type registrations. It is
// single-shot: calling [Build] consumes it, and any further Register*
// call on the same builder returns [ErrBuilderConsumed]. This mirrors the
// teacher's registry lifecycle, where a domain registry is built once at
// startup and never mutated afterward.
type SchemaBuilder struct {
	entities map[kernel.ResourceTypeName]entityTypeRecord
	actions  map[kernel.ActionName]actionTypeRecord
	built    bool
}

// NewSchemaBuilder constructs an empty SchemaBuilder.
func NewSchemaBuilder() *SchemaBuilder {
	return &SchemaBuilder{
		entities: make(map[kernel.ResourceTypeName]entityTypeRecord),
		actions:  make(map[kernel.ActionName]actionTypeRecord),
	}
}

// RegisterEntityType registers an entity type with the schema. Returns
// [ErrDuplicateEntityType] if the same type name was already registered
// (by this or another service), since type names are unique within the
// schema's namespace.
func (b *SchemaBuilder) RegisterEntityType(t kernel.HodeiEntityType) error {
	if b.built {
		return &SchemaError{Kind: ErrBuilderConsumed, Reason: "Build already called on this builder"}
	}
	name := t.TypeName()
	if _, exists := b.entities[name]; exists {
		return &SchemaError{Kind: ErrDuplicateEntityType, Reason: fmt.Sprintf("entity type %q already registered", name)}
	}
	b.entities[name] = entityTypeRecord{Service: t.Service(), Type: name}
	return nil
}

// RegisterActionType registers an action type with the schema. Returns
// [ErrDuplicateActionType] if the same action name was already registered.
func (b *SchemaBuilder) RegisterActionType(a kernel.ActionType) error {
	if b.built {
		return &SchemaError{Kind: ErrBuilderConsumed, Reason: "Build already called on this builder"}
	}
	name := a.ActionName()
	if _, exists := b.actions[name]; exists {
		return &SchemaError{Kind: ErrDuplicateActionType, Reason: fmt.Sprintf("action %q already registered", name)}
	}
	b.actions[name] = actionTypeRecord{Name: name, action: a}
	return nil
}

// Build consumes the builder and produces an immutable [Schema]. After
// Build returns, the builder rejects any further registration.
func (b *SchemaBuilder) Build() (*Schema, error) {
	if b.built {
		return nil, &SchemaError{Kind: ErrBuilderConsumed, Reason: "Build already called on this builder"}
	}
	b.built = true
	return b.buildSchema()
}

// BuildWithStorage consumes the builder the same way [Build] does, but
// checks store for an existing schema with the same content hash before
// minting a new one: registering an identical type set twice (e.g.
// across a process restart re-running the same bounded-context
// registration at startup) returns the previously persisted record
// rather than a fresh, merely equal one. A newly computed schema is
// persisted via store.Put before being returned.
func (b *SchemaBuilder) BuildWithStorage(ctx context.Context, store SchemaStoragePort) (*Schema, error) {
	if b.built {
		return nil, &SchemaError{Kind: ErrBuilderConsumed, Reason: "Build already called on this builder"}
	}
	b.built = true

	sc, err := b.buildSchema()
	if err != nil {
		return nil, err
	}

	if existing, err := store.Get(ctx, sc.ContentHash); err == nil {
		return existing, nil
	}

	if err := store.Put(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// buildSchema does the actual building work shared by Build and
// BuildWithStorage; callers are responsible for the built/consumed
// bookkeeping.
func (b *SchemaBuilder) buildSchema() (*Schema, error) {
	domains := make(map[kernel.ServiceName][]kernel.ResourceTypeName)
	entityNames := sortedEntityNames(b.entities)
	for _, name := range entityNames {
		rec := b.entities[name]
		domains[rec.Service] = append(domains[rec.Service], rec.Type)
	}

	actionsByService := make(map[kernel.ServiceName][]kernel.ActionName)
	actionNames := sortedActionNames(b.actions)
	for _, name := range actionNames {
		svc := serviceOfAction(name)
		actionsByService[svc] = append(actionsByService[svc], name)
	}

	if err := b.validateActionTypeReferences(actionNames, entityNames); err != nil {
		return nil, err
	}

	hash := computeContentHash(entityNames, b.entities, actionNames)

	return &Schema{Domains: domains, Actions: actionsByService, ContentHash: hash}, nil
}

// validateActionTypeReferences checks that every registered action's
// AppliesToPrincipal/AppliesToResource predicates match at least one
// registered entity type. ActionType exposes these as predicates rather
// than an enumerable type list, so "the referenced type is unknown" is
// detected as "no registered entity type satisfies the predicate" —
// the action declares principal/resource types the schema never
// registered.
func (b *SchemaBuilder) validateActionTypeReferences(actionNames []kernel.ActionName, entityNames []kernel.ResourceTypeName) error {
	for _, name := range actionNames {
		rec := b.actions[name]

		principalKnown := false
		resourceKnown := false
		for _, t := range entityNames {
			if rec.action.AppliesToPrincipal(t) {
				principalKnown = true
			}
			if rec.action.AppliesToResource(t) {
				resourceKnown = true
			}
			if principalKnown && resourceKnown {
				break
			}
		}

		if !principalKnown {
			return &SchemaError{Kind: ErrUnknownPrincipalTypeInAction, Reason: fmt.Sprintf("action %q applies to no registered principal entity type", name)}
		}
		if !resourceKnown {
			return &SchemaError{Kind: ErrUnknownResourceTypeInAction, Reason: fmt.Sprintf("action %q applies to no registered resource entity type", name)}
		}
	}
	return nil
}

func sortedEntityNames(m map[kernel.ResourceTypeName]entityTypeRecord) []kernel.ResourceTypeName {
	names := make([]kernel.ResourceTypeName, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func sortedActionNames(m map[kernel.ActionName]actionTypeRecord) []kernel.ActionName {
	names := make([]kernel.ActionName, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// serviceOfAction extracts the "service" prefix from an action name of
// the form "service:Verb" (per kernel.NewActionName's grammar), falling
// back to the whole name when no ':' separator is present.
func serviceOfAction(name kernel.ActionName) kernel.ServiceName {
	s := string(name)
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return kernel.ServiceName(s[:i])
		}
	}
	return kernel.ServiceName(s)
}

// computeContentHash canonically serializes the registered entity/action
// sets (already sorted, so registration order cannot affect the digest)
// and SHA-256 hashes the result.
func computeContentHash(entityNames []kernel.ResourceTypeName, entities map[kernel.ResourceTypeName]entityTypeRecord, actionNames []kernel.ActionName) string {
	h := sha256.New()
	for _, name := range entityNames {
		rec := entities[name]
		fmt.Fprintf(h, "entity:%s:%s\n", rec.Service, rec.Type)
	}
	for _, name := range actionNames {
		fmt.Fprintf(h, "action:%s\n", name)
	}
	return hex.EncodeToString(h.Sum(nil))
}
