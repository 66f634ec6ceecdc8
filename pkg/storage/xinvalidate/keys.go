package xinvalidate

import (
	"strings"
)

// 内置命名空间
const (
	NamespaceListings     = "listings"
	NamespaceRentals      = "rentals"
	NamespaceTenants      = "tenants"
	NamespacePresentation = "presentation"
)

// =============================================================================
// listings
// =============================================================================

// PropertyDetailKey 房源详情
func PropertyDetailKey(id string) string { return "property:" + id }

// PropertyListAllKey 全部房源列表
func PropertyListAllKey() string { return "list:all" }

// PropertyCityListKey 城市房源列表，城市名统一为小写
func PropertyCityListKey(city string) string { return "list:city:" + normalizeCity(city) }

// OwnerPropertiesKey 房东名下房源
func OwnerPropertiesKey(ownerID string) string { return "owner:" + ownerID + ":properties" }

// FeaturedSearchKey 推荐搜索结果
func FeaturedSearchKey() string { return "search:featured" }

// =============================================================================
// rentals
// =============================================================================

// RentalDetailKey 租约详情
func RentalDetailKey(id string) string { return "rental:" + id }

// RentalPaymentsKey 租约付款记录
func RentalPaymentsKey(rentalID string) string { return "rental:" + rentalID + ":payments" }

// PropertyRentalsKey 房源的租约列表
func PropertyRentalsKey(propertyID string) string { return "property:" + propertyID + ":rentals" }

// TenantRentalsKey 租客的租约列表
func TenantRentalsKey(tenantID string) string { return "tenant:" + tenantID + ":rentals" }

// OwnerRentalStatsKey 房东租金统计
func OwnerRentalStatsKey(ownerID string) string { return "owner:" + ownerID + ":stats" }

// =============================================================================
// tenants
// =============================================================================

// TenantDetailKey 租客详情
func TenantDetailKey(id string) string { return "tenant:" + id }

// TenantBalanceKey 租客余额
func TenantBalanceKey(tenantID string) string { return "tenant:" + tenantID + ":balance" }

// OwnerTenantsKey 房东的租客列表
func OwnerTenantsKey(ownerID string) string { return "owner:" + ownerID + ":tenants" }

// OwnerTenantStatsKey 房东的租客统计
func OwnerTenantStatsKey(ownerID string) string { return "owner:" + ownerID + ":stats" }

// =============================================================================
// presentation 页面路径
// =============================================================================

// PropertiesPath 房源列表页
func PropertiesPath() string { return "/properties" }

// PropertyPath 房源详情页
func PropertyPath(id string) string { return "/properties/" + id }

// CityPath 城市页
func CityPath(city string) string { return "/city/" + normalizeCity(city) }

// OwnerDashboardPath 房东面板
func OwnerDashboardPath(ownerID string) string { return "/owner/" + ownerID + "/dashboard" }

// TenantDashboardPath 租客面板
func TenantDashboardPath(tenantID string) string { return "/tenant/" + tenantID + "/dashboard" }

// RentalPath 租约详情页
func RentalPath(id string) string { return "/rentals/" + id }

func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
