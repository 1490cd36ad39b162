package schema_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hodei/authzcore/pkg/kernel"
	"github.com/hodei/authzcore/pkg/schema"
	"github.com/hodei/authzcore/pkg/schema/storage"
)

type entityType struct {
	svc  kernel.ServiceName
	name kernel.ResourceTypeName
}

func (e entityType) Service() kernel.ServiceName       { return e.svc }
func (e entityType) TypeName() kernel.ResourceTypeName { return e.name }

type actionType struct {
	name kernel.ActionName
}

func (a actionType) ActionName() kernel.ActionName                  { return a.name }
func (a actionType) AppliesToPrincipal(kernel.ResourceTypeName) bool { return true }
func (a actionType) AppliesToResource(kernel.ResourceTypeName) bool  { return true }
func (a actionType) UID() string                                     { return kernel.ActionUID(a.name) }

// scopedActionType applies only to a specific principal/resource type pair,
// so registering it against a schema that never registers that type
// exercises the unknown-type-reference validation in Build.
type scopedActionType struct {
	name               kernel.ActionName
	principal, resource kernel.ResourceTypeName
}

func (a scopedActionType) ActionName() kernel.ActionName { return a.name }
func (a scopedActionType) AppliesToPrincipal(t kernel.ResourceTypeName) bool {
	return t == a.principal
}
func (a scopedActionType) AppliesToResource(t kernel.ResourceTypeName) bool {
	return t == a.resource
}
func (a scopedActionType) UID() string { return kernel.ActionUID(a.name) }

func TestSchemaBuilderHashIsOrderIndependent(t *testing.T) {
	b1 := schema.NewSchemaBuilder()
	require.NoError(t, b1.RegisterEntityType(entityType{svc: "iam", name: "User"}))
	require.NoError(t, b1.RegisterEntityType(entityType{svc: "s3", name: "Bucket"}))
	require.NoError(t, b1.RegisterActionType(actionType{name: "s3:GetObject"}))
	s1, err := b1.Build()
	require.NoError(t, err)

	b2 := schema.NewSchemaBuilder()
	require.NoError(t, b2.RegisterActionType(actionType{name: "s3:GetObject"}))
	require.NoError(t, b2.RegisterEntityType(entityType{svc: "s3", name: "Bucket"}))
	require.NoError(t, b2.RegisterEntityType(entityType{svc: "iam", name: "User"}))
	s2, err := b2.Build()
	require.NoError(t, err)

	assert.Equal(t, s1.ContentHash, s2.ContentHash)
}

func TestSchemaBuilderRejectsDuplicateEntityType(t *testing.T) {
	b := schema.NewSchemaBuilder()
	require.NoError(t, b.RegisterEntityType(entityType{svc: "iam", name: "User"}))
	err := b.RegisterEntityType(entityType{svc: "iam", name: "User"})
	require.Error(t, err)
	var serr *schema.SchemaError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, schema.ErrDuplicateEntityType, serr.Kind)
}

func TestSchemaBuilderIsSingleShot(t *testing.T) {
	b := schema.NewSchemaBuilder()
	_, err := b.Build()
	require.NoError(t, err)

	err = b.RegisterEntityType(entityType{svc: "iam", name: "User"})
	require.Error(t, err)
	var serr *schema.SchemaError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, schema.ErrBuilderConsumed, serr.Kind)

	_, err = b.Build()
	require.Error(t, err)
}

func TestSchemaBuilderRejectsActionWithUnknownPrincipalType(t *testing.T) {
	b := schema.NewSchemaBuilder()
	require.NoError(t, b.RegisterEntityType(entityType{svc: "s3", name: "Bucket"}))
	require.NoError(t, b.RegisterActionType(scopedActionType{name: "s3:GetObject", principal: "User", resource: "Bucket"}))

	_, err := b.Build()
	require.Error(t, err)
	var serr *schema.SchemaError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, schema.ErrUnknownPrincipalTypeInAction, serr.Kind)
}

func TestSchemaBuilderRejectsActionWithUnknownResourceType(t *testing.T) {
	b := schema.NewSchemaBuilder()
	require.NoError(t, b.RegisterEntityType(entityType{svc: "iam", name: "User"}))
	require.NoError(t, b.RegisterActionType(scopedActionType{name: "s3:GetObject", principal: "User", resource: "Bucket"}))

	_, err := b.Build()
	require.Error(t, err)
	var serr *schema.SchemaError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, schema.ErrUnknownResourceTypeInAction, serr.Kind)
}

func TestSchemaBuilderAcceptsActionWithKnownTypes(t *testing.T) {
	b := schema.NewSchemaBuilder()
	require.NoError(t, b.RegisterEntityType(entityType{svc: "iam", name: "User"}))
	require.NoError(t, b.RegisterEntityType(entityType{svc: "s3", name: "Bucket"}))
	require.NoError(t, b.RegisterActionType(scopedActionType{name: "s3:GetObject", principal: "User", resource: "Bucket"}))

	s, err := b.Build()
	require.NoError(t, err)
	assert.Contains(t, s.Actions["s3"], kernel.ActionName("s3:GetObject"))
}

func TestBuildWithStoragePersistsNewSchema(t *testing.T) {
	store := storage.NewInMemoryStorage()
	ctx := context.Background()

	b := schema.NewSchemaBuilder()
	require.NoError(t, b.RegisterEntityType(entityType{svc: "iam", name: "User"}))
	s, err := b.BuildWithStorage(ctx, store)
	require.NoError(t, err)

	persisted, err := store.Get(ctx, s.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, s, persisted)
}

func TestBuildWithStorageReturnsExistingSchemaForSameContentHash(t *testing.T) {
	store := storage.NewInMemoryStorage()
	ctx := context.Background()

	b1 := schema.NewSchemaBuilder()
	require.NoError(t, b1.RegisterEntityType(entityType{svc: "iam", name: "User"}))
	first, err := b1.BuildWithStorage(ctx, store)
	require.NoError(t, err)

	b2 := schema.NewSchemaBuilder()
	require.NoError(t, b2.RegisterEntityType(entityType{svc: "iam", name: "User"}))
	second, err := b2.BuildWithStorage(ctx, store)
	require.NoError(t, err)

	assert.Same(t, first, second, "registering an identical type set twice must return the already-persisted schema")
}

func TestSchemaDomainsGroupedByService(t *testing.T) {
	b := schema.NewSchemaBuilder()
	require.NoError(t, b.RegisterEntityType(entityType{svc: "iam", name: "User"}))
	require.NoError(t, b.RegisterEntityType(entityType{svc: "iam", name: "Group"}))
	s, err := b.Build()
	require.NoError(t, err)
	assert.ElementsMatch(t, []kernel.ResourceTypeName{"User", "Group"}, s.Domains["iam"])
}
