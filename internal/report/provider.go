package report

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"reportflow/internal/models"
)

// DataProvider resolves a tenant, report type and date range into report
// figures. Implementations are I/O bound and must honor ctx.
type DataProvider interface {
	Fetch(ctx context.Context, tenantID string, typ Type, rng DateRange, filters Filters) (*Data, error)
}

// AnalyticsProvider is the gorm-backed production DataProvider, aggregating
// over the orders table.
type AnalyticsProvider struct {
	db *gorm.DB
}

func NewAnalyticsProvider(db *gorm.DB) *AnalyticsProvider {
	return &AnalyticsProvider{db: db}
}

func (p *AnalyticsProvider) Fetch(ctx context.Context, tenantID string, typ Type, rng DateRange, filters Filters) (*Data, error) {
	data := &Data{
		Type:        typ,
		TenantID:    tenantID,
		Range:       rng,
		GeneratedAt: time.Now(),
	}

	base := func() *gorm.DB {
		q := p.db.WithContext(ctx).Model(&models.Order{}).
			Where("tenant_id = ? AND created_at >= ? AND created_at < ?", tenantID, rng.Start, rng.End)
		if len(filters.BranchIDs) > 0 {
			q = q.Where("branch_id IN ?", filters.BranchIDs)
		}
		return q
	}

	var err error
	switch typ {
	case TypeSales:
		err = p.salesFigures(base, data)
	case TypeFinancialSummary:
		err = p.financialFigures(base, data)
	case TypeMenuPerformance:
		err = p.menuFigures(base, data)
	case TypeCustomerAnalytics:
		err = p.customerFigures(base, data)
	case TypeStaffPerformance:
		err = p.groupedFigures(base, data, "staff_id", "Staff")
	case TypeBranchPerformance:
		err = p.groupedFigures(base, data, "branch_id", "Branch")
	default:
		return nil, fmt.Errorf("no provider binding for report type %q", typ)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (p *AnalyticsProvider) salesFigures(base func() *gorm.DB, data *Data) error {
	var orderCount int64
	var revenue, items int64

	if err := base().Where("status = ?", "completed").Count(&orderCount).Error; err != nil {
		return err
	}
	if err := base().Where("status = ?", "completed").
		Select("COALESCE(SUM(total_amount), 0)").Scan(&revenue).Error; err != nil {
		return err
	}
	if err := base().Where("status = ?", "completed").
		Select("COALESCE(SUM(item_count), 0)").Scan(&items).Error; err != nil {
		return err
	}

	avg := int64(0)
	if orderCount > 0 {
		avg = revenue / orderCount
	}
	data.Summary = []Metric{
		{Label: "Total Orders", Value: fmt.Sprintf("%d", orderCount)},
		{Label: "Total Revenue", Value: formatAmount(revenue)},
		{Label: "Average Order Value", Value: formatAmount(avg)},
		{Label: "Items Sold", Value: fmt.Sprintf("%d", items)},
	}

	// Breakdown by payment method.
	type methodRow struct {
		PaymentMethod string
		Orders        int64
		Revenue       int64
	}
	var rows []methodRow
	if err := base().Where("status = ?", "completed").
		Select("payment_method, COUNT(*) AS orders, COALESCE(SUM(total_amount), 0) AS revenue").
		Group("payment_method").Order("revenue DESC").
		Scan(&rows).Error; err != nil {
		return err
	}
	data.Header = []string{"Payment Method", "Orders", "Revenue"}
	for _, r := range rows {
		data.Rows = append(data.Rows, []string{r.PaymentMethod, fmt.Sprintf("%d", r.Orders), formatAmount(r.Revenue)})
	}
	return nil
}

func (p *AnalyticsProvider) financialFigures(base func() *gorm.DB, data *Data) error {
	var gross, tax int64
	var refunded int64

	if err := base().Where("status = ?", "completed").
		Select("COALESCE(SUM(total_amount), 0)").Scan(&gross).Error; err != nil {
		return err
	}
	if err := base().Where("status = ?", "completed").
		Select("COALESCE(SUM(tax_amount), 0)").Scan(&tax).Error; err != nil {
		return err
	}
	if err := base().Where("status = ?", "refunded").
		Select("COALESCE(SUM(total_amount), 0)").Scan(&refunded).Error; err != nil {
		return err
	}

	data.Summary = []Metric{
		{Label: "Gross Revenue", Value: formatAmount(gross)},
		{Label: "Tax Collected", Value: formatAmount(tax)},
		{Label: "Refunded", Value: formatAmount(refunded)},
		{Label: "Net Revenue", Value: formatAmount(gross - tax - refunded)},
	}
	return nil
}

func (p *AnalyticsProvider) menuFigures(base func() *gorm.DB, data *Data) error {
	type typeRow struct {
		OrderType string
		Orders    int64
		Items     int64
	}
	var rows []typeRow
	if err := base().Where("status = ?", "completed").
		Select("order_type, COUNT(*) AS orders, COALESCE(SUM(item_count), 0) AS items").
		Group("order_type").Order("items DESC").
		Scan(&rows).Error; err != nil {
		return err
	}

	var totalItems int64
	for _, r := range rows {
		totalItems += r.Items
	}
	data.Summary = []Metric{
		{Label: "Items Ordered", Value: fmt.Sprintf("%d", totalItems)},
		{Label: "Order Channels", Value: fmt.Sprintf("%d", len(rows))},
	}
	data.Header = []string{"Order Type", "Orders", "Items"}
	for _, r := range rows {
		data.Rows = append(data.Rows, []string{r.OrderType, fmt.Sprintf("%d", r.Orders), fmt.Sprintf("%d", r.Items)})
	}
	return nil
}

func (p *AnalyticsProvider) customerFigures(base func() *gorm.DB, data *Data) error {
	var customers, orders int64
	if err := base().Where("customer_id != ''").
		Distinct("customer_id").Count(&customers).Error; err != nil {
		return err
	}
	if err := base().Count(&orders).Error; err != nil {
		return err
	}

	perCustomer := "0"
	if customers > 0 {
		perCustomer = fmt.Sprintf("%.1f", float64(orders)/float64(customers))
	}
	data.Summary = []Metric{
		{Label: "Unique Customers", Value: fmt.Sprintf("%d", customers)},
		{Label: "Total Orders", Value: fmt.Sprintf("%d", orders)},
		{Label: "Orders per Customer", Value: perCustomer},
	}
	return nil
}

// groupedFigures covers staff-performance and branch-performance, which share
// shape: per-entity order counts and revenue.
func (p *AnalyticsProvider) groupedFigures(base func() *gorm.DB, data *Data, column, label string) error {
	type groupRow struct {
		Entity  string
		Orders  int64
		Revenue int64
	}
	var rows []groupRow
	if err := base().Where("status = ?", "completed").
		Select(column + " AS entity, COUNT(*) AS orders, COALESCE(SUM(total_amount), 0) AS revenue").
		Group(column).Order("revenue DESC").
		Scan(&rows).Error; err != nil {
		return err
	}

	var revenue int64
	for _, r := range rows {
		revenue += r.Revenue
	}
	data.Summary = []Metric{
		{Label: label + " Count", Value: fmt.Sprintf("%d", len(rows))},
		{Label: "Total Revenue", Value: formatAmount(revenue)},
	}
	data.Header = []string{label, "Orders", "Revenue"}
	for _, r := range rows {
		data.Rows = append(data.Rows, []string{r.Entity, fmt.Sprintf("%d", r.Orders), formatAmount(r.Revenue)})
	}
	return nil
}

func formatAmount(minor int64) string {
	return fmt.Sprintf("%.2f", float64(minor)/100)
}
