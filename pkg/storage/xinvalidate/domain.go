package xinvalidate

import (
	"context"
	"log/slog"
)

// PropertyChange 房源变更。OwnerID 与 City 可选，为空时跳过相关 key。
type PropertyChange struct {
	ID      string
	OwnerID string
	City    string
}

// RentalChange 租约变更
type RentalChange struct {
	ID         string
	PropertyID string
	TenantID   string
	OwnerID    string
}

// TenantChange 租客变更
type TenantChange struct {
	ID      string
	OwnerID string
}

// PaymentChange 付款入账，通常在持锁的付款事务提交后调用
type PaymentChange struct {
	RentalID string
	TenantID string
	OwnerID  string
}

// Property 房源变更：详情、列表、房东名下房源、推荐搜索及相关页面
func (m *Manager) Property(ctx context.Context, c PropertyChange) {
	if !m.requireID(ctx, "property", c.ID) {
		return
	}
	p := newPlan()
	p.add(NamespaceListings,
		PropertyDetailKey(c.ID),
		PropertyListAllKey(),
		FeaturedSearchKey(),
	)
	p.page(PropertiesPath(), PropertyPath(c.ID))
	if c.City != "" {
		p.add(NamespaceListings, PropertyCityListKey(c.City))
		p.page(CityPath(c.City))
	}
	if c.OwnerID != "" {
		p.add(NamespaceListings, OwnerPropertiesKey(c.OwnerID))
		p.page(OwnerDashboardPath(c.OwnerID))
	}
	m.apply(ctx, p)
}

// Rental 租约变更：租约列表与统计，以及房源详情（可租状态）
func (m *Manager) Rental(ctx context.Context, c RentalChange) {
	if !m.requireID(ctx, "rental", c.ID) {
		return
	}
	p := newPlan()
	p.add(NamespaceRentals, RentalDetailKey(c.ID))
	p.page(RentalPath(c.ID))
	if c.PropertyID != "" {
		p.add(NamespaceRentals, PropertyRentalsKey(c.PropertyID))
		p.add(NamespaceListings, PropertyDetailKey(c.PropertyID))
		p.page(PropertyPath(c.PropertyID))
	}
	if c.TenantID != "" {
		p.add(NamespaceRentals, TenantRentalsKey(c.TenantID))
		p.page(TenantDashboardPath(c.TenantID))
	}
	if c.OwnerID != "" {
		p.add(NamespaceRentals, OwnerRentalStatsKey(c.OwnerID))
		p.page(OwnerDashboardPath(c.OwnerID))
	}
	m.apply(ctx, p)
}

// Tenant 租客变更：详情、租客的租约列表、房东侧租客统计
func (m *Manager) Tenant(ctx context.Context, c TenantChange) {
	if !m.requireID(ctx, "tenant", c.ID) {
		return
	}
	p := newPlan()
	p.add(NamespaceTenants, TenantDetailKey(c.ID))
	p.add(NamespaceRentals, TenantRentalsKey(c.ID))
	p.page(TenantDashboardPath(c.ID))
	if c.OwnerID != "" {
		p.add(NamespaceTenants, OwnerTenantsKey(c.OwnerID), OwnerTenantStatsKey(c.OwnerID))
		p.add(NamespaceRentals, OwnerRentalStatsKey(c.OwnerID))
		p.page(OwnerDashboardPath(c.OwnerID))
	}
	m.apply(ctx, p)
}

// Owner 房东维度的聚合数据，跨全部命名空间
func (m *Manager) Owner(ctx context.Context, ownerID string) {
	if !m.requireID(ctx, "owner", ownerID) {
		return
	}
	p := newPlan()
	p.add(NamespaceListings, OwnerPropertiesKey(ownerID))
	p.add(NamespaceRentals, OwnerRentalStatsKey(ownerID))
	p.add(NamespaceTenants, OwnerTenantsKey(ownerID), OwnerTenantStatsKey(ownerID))
	p.page(OwnerDashboardPath(ownerID))
	m.apply(ctx, p)
}

// Payment 付款入账：付款记录、租约详情、租客余额、房东统计
func (m *Manager) Payment(ctx context.Context, c PaymentChange) {
	if !m.requireID(ctx, "payment", c.RentalID) {
		return
	}
	p := newPlan()
	p.add(NamespaceRentals, RentalPaymentsKey(c.RentalID), RentalDetailKey(c.RentalID))
	p.page(RentalPath(c.RentalID))
	if c.TenantID != "" {
		p.add(NamespaceTenants, TenantBalanceKey(c.TenantID))
		p.page(TenantDashboardPath(c.TenantID))
	}
	if c.OwnerID != "" {
		p.add(NamespaceRentals, OwnerRentalStatsKey(c.OwnerID))
		p.page(OwnerDashboardPath(c.OwnerID))
	}
	m.apply(ctx, p)
}

func (m *Manager) requireID(ctx context.Context, entity, id string) bool {
	if id != "" {
		return true
	}
	m.logger.Warn(ctx, "invalidation skipped: missing entity id", slog.String("entity", entity))
	return false
}

// apply 每个命名空间一次批量删除，随后通知展示层
func (m *Manager) apply(ctx context.Context, p *plan) {
	for _, ns := range p.order {
		m.InvalidateBatch(ctx, ns, p.keys[ns])
	}
	m.Revalidate(ctx, p.paths...)
}

// plan 一次领域失效涉及的 key，按命名空间首次出现的顺序分组
type plan struct {
	order []string
	keys  map[string][]string
	paths []string
}

func newPlan() *plan {
	return &plan{keys: make(map[string][]string)}
}

func (p *plan) add(namespace string, keys ...string) {
	if _, ok := p.keys[namespace]; !ok {
		p.order = append(p.order, namespace)
	}
	p.keys[namespace] = append(p.keys[namespace], keys...)
}

func (p *plan) page(paths ...string) {
	p.paths = append(p.paths, paths...)
}
