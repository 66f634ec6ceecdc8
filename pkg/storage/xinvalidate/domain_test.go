package xinvalidate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// allKeys 预置所有领域 key 的宇宙，用于检查哪些被删、哪些保留
var allKeys = []string{
	"listings:property:p1",
	"listings:property:p2",
	"listings:list:all",
	"listings:list:city:paris",
	"listings:list:city:lyon",
	"listings:owner:o1:properties",
	"listings:owner:o2:properties",
	"listings:search:featured",
	"rentals:rental:r1",
	"rentals:rental:r1:payments",
	"rentals:rental:r2",
	"rentals:property:p1:rentals",
	"rentals:tenant:t1:rentals",
	"rentals:owner:o1:stats",
	"rentals:owner:o2:stats",
	"tenants:tenant:t1",
	"tenants:tenant:t1:balance",
	"tenants:tenant:t2",
	"tenants:owner:o1:tenants",
	"tenants:owner:o1:stats",
	"presentation:/properties",
	"presentation:/properties/p1",
	"presentation:/city/paris",
	"presentation:/owner/o1/dashboard",
	"presentation:/tenant/t1/dashboard",
	"presentation:/rentals/r1",
}

func remaining(env *testEnv) map[string]bool {
	out := make(map[string]bool, len(allKeys))
	for _, k := range allKeys {
		out[k] = env.mr.Exists(k)
	}
	return out
}

func assertDeleted(t *testing.T, env *testEnv, deleted ...string) {
	t.Helper()
	want := make(map[string]bool, len(allKeys))
	for _, k := range allKeys {
		want[k] = true
	}
	for _, k := range deleted {
		want[k] = false
	}
	assert.Equal(t, want, remaining(env))
}

func TestManager_Property(t *testing.T) {
	env := newTestEnv(t)
	m := env.newManager(t)
	env.seed(t, allKeys...)

	m.Property(context.Background(), PropertyChange{ID: "p1", OwnerID: "o1", City: " Paris "})

	assertDeleted(t, env,
		"listings:property:p1",
		"listings:list:all",
		"listings:list:city:paris",
		"listings:owner:o1:properties",
		"listings:search:featured",
		"presentation:/properties",
		"presentation:/properties/p1",
		"presentation:/city/paris",
		"presentation:/owner/o1/dashboard",
	)
}

func TestManager_Property_OptionalFilters(t *testing.T) {
	env := newTestEnv(t)
	rev := &recordingRevalidator{}
	m := env.newManager(t, WithRevalidator(rev))
	env.seed(t, allKeys...)

	m.Property(context.Background(), PropertyChange{ID: "p1"})

	assertDeleted(t, env,
		"listings:property:p1",
		"listings:list:all",
		"listings:search:featured",
	)
	assert.Equal(t, []string{"/properties", "/properties/p1"}, rev.got())
}

func TestManager_Rental(t *testing.T) {
	env := newTestEnv(t)
	m := env.newManager(t)
	env.seed(t, allKeys...)

	m.Rental(context.Background(), RentalChange{ID: "r1", PropertyID: "p1", TenantID: "t1", OwnerID: "o1"})

	assertDeleted(t, env,
		"rentals:rental:r1",
		"rentals:property:p1:rentals",
		"rentals:tenant:t1:rentals",
		"rentals:owner:o1:stats",
		"listings:property:p1",
		"presentation:/rentals/r1",
		"presentation:/properties/p1",
		"presentation:/tenant/t1/dashboard",
		"presentation:/owner/o1/dashboard",
	)
}

func TestManager_Tenant(t *testing.T) {
	env := newTestEnv(t)
	m := env.newManager(t)
	env.seed(t, allKeys...)

	m.Tenant(context.Background(), TenantChange{ID: "t1", OwnerID: "o1"})

	assertDeleted(t, env,
		"tenants:tenant:t1",
		"tenants:owner:o1:tenants",
		"tenants:owner:o1:stats",
		"rentals:tenant:t1:rentals",
		"rentals:owner:o1:stats",
		"presentation:/tenant/t1/dashboard",
		"presentation:/owner/o1/dashboard",
	)
}

func TestManager_Owner(t *testing.T) {
	env := newTestEnv(t)
	m := env.newManager(t)
	env.seed(t, allKeys...)

	m.Owner(context.Background(), "o1")

	assertDeleted(t, env,
		"listings:owner:o1:properties",
		"rentals:owner:o1:stats",
		"tenants:owner:o1:tenants",
		"tenants:owner:o1:stats",
		"presentation:/owner/o1/dashboard",
	)
}

func TestManager_Payment(t *testing.T) {
	env := newTestEnv(t)
	m := env.newManager(t)
	env.seed(t, allKeys...)

	m.Payment(context.Background(), PaymentChange{RentalID: "r1", TenantID: "t1", OwnerID: "o1"})

	assertDeleted(t, env,
		"rentals:rental:r1",
		"rentals:rental:r1:payments",
		"rentals:owner:o1:stats",
		"tenants:tenant:t1:balance",
		"presentation:/rentals/r1",
		"presentation:/tenant/t1/dashboard",
		"presentation:/owner/o1/dashboard",
	)
}

func TestManager_MissingIDIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	logger, logs := newTestLogger(t)
	m, err := New(env.client, WithLogger(logger))
	if !assert.NoError(t, err) {
		return
	}
	env.seed(t, allKeys...)
	ctx := context.Background()

	m.Property(ctx, PropertyChange{OwnerID: "o1"})
	m.Rental(ctx, RentalChange{PropertyID: "p1"})
	m.Tenant(ctx, TenantChange{OwnerID: "o1"})
	m.Owner(ctx, "")
	m.Payment(ctx, PaymentChange{TenantID: "t1"})

	assertDeleted(t, env)
	assert.Contains(t, logs.String(), "missing entity id")
}

func TestPlan_GroupsByNamespaceInOrder(t *testing.T) {
	p := newPlan()
	p.add(NamespaceRentals, "a")
	p.add(NamespaceListings, "b")
	p.add(NamespaceRentals, "c")

	assert.Equal(t, []string{NamespaceRentals, NamespaceListings}, p.order)
	assert.Equal(t, []string{"a", "c"}, p.keys[NamespaceRentals])
}

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "list:city:new york", PropertyCityListKey("  New York "))
	assert.Equal(t, "/city/new york", CityPath("New York"))
	assert.Equal(t, "owner:o1:properties", OwnerPropertiesKey("o1"))
	assert.Equal(t, "rental:r1:payments", RentalPaymentsKey("r1"))
}
