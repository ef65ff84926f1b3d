package erp

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ordersync/backend/internal/domain/integration"
)

// orderRowsQuery joins the order header with its optional-fields row, which
// carries the shipment tracking and the hold reason. ORDDATE is stored as a
// YYYYMMDD number.
const orderRowsQuery = `SELECT
	RTRIM(h.PONUMBER) AS po_number,
	RTRIM(h.ORDNUMBER) AS ord_number,
	RTRIM(h.LOCATION) AS location,
	RTRIM(h.CUSTOMER) AS company,
	COALESCE(RTRIM(h1.SHIPTRACK), '') AS ship_track,
	h.ORDDATE AS ord_date,
	h.ONHOLD AS on_hold,
	COALESCE(RTRIM(h1.HOLDREASON), '') AS hold_reason
FROM OEORDH h
LEFT JOIN OEORDH1 h1 ON h.ORDUNIQ = h1.ORDUNIQ
WHERE h.CUSTOMER = @customer AND h.ORDDATE >= @released
ORDER BY h.ORDDATE, h.ORDNUMBER`

// DateLayout is how the ERP stores calendar dates
const DateLayout = "20060102"

type orderRow struct {
	PONumber   string `gorm:"column:po_number"`
	OrdNumber  string `gorm:"column:ord_number"`
	Location   string `gorm:"column:location"`
	Company    string `gorm:"column:company"`
	ShipTrack  string `gorm:"column:ship_track"`
	OrdDate    int64  `gorm:"column:ord_date"`
	OnHold     int    `gorm:"column:on_hold"`
	HoldReason string `gorm:"column:hold_reason"`
}

// GormSource implements integration.ErpSource over the order-entry tables
type GormSource struct {
	db       *gorm.DB
	customer string
	loc      *time.Location
	logger   *zap.Logger
}

var _ integration.ErpSource = (*GormSource)(nil)

// NewGormSource reads orders of customer; ERP dates are interpreted in loc
func NewGormSource(db *gorm.DB, customer string, loc *time.Location, logger *zap.Logger) *GormSource {
	if loc == nil {
		loc = time.UTC
	}
	return &GormSource{db: db, customer: customer, loc: loc, logger: logger}
}

// ListOrderRows implements integration.ErpSource. Rows with an unparseable
// order date are kept with a zero OrderDate.
func (s *GormSource) ListOrderRows(ctx context.Context, since time.Time) ([]integration.ErpRow, error) {
	released, err := strconv.ParseInt(since.In(s.loc).Format(DateLayout), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("format release date: %w", err)
	}

	var rows []orderRow
	err = s.db.WithContext(ctx).
		Raw(orderRowsQuery, sql.Named("customer", s.customer), sql.Named("released", released)).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: erp query: %w", integration.ErrSourceUnavailable, err)
	}

	out := make([]integration.ErpRow, 0, len(rows))
	for _, r := range rows {
		orderDate, err := time.ParseInLocation(DateLayout, strconv.FormatInt(r.OrdDate, 10), s.loc)
		if err != nil {
			s.logger.Debug("Unparseable erp order date",
				zap.String("po", r.PONumber),
				zap.Int64("ord_date", r.OrdDate),
			)
			orderDate = time.Time{}
		}
		out = append(out, integration.ErpRow{
			PurchaseOrderNumber: strings.TrimSpace(r.PONumber),
			ErpOrderNumber:      strings.TrimSpace(r.OrdNumber),
			WarehouseCode:       strings.TrimSpace(r.Location),
			Company:             strings.TrimSpace(r.Company),
			OrderDate:           orderDate,
			ShipTrack:           strings.TrimSpace(r.ShipTrack),
			OnHold:              r.OnHold != 0,
			HoldReason:          strings.TrimSpace(r.HoldReason),
		})
	}
	s.logger.Debug("Read erp order rows",
		zap.Int64("released", released),
		zap.Int("rows", len(out)),
	)
	return out, nil
}
