package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/arledger_backend/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// newAliasId returns the short public identifier stored alongside the
// numeric primary key. 10 hex chars of a fresh uuid is plenty of entropy
// for branch-scoped ledgers while staying readable in URLs.
func newAliasId() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// maturityDate is the date a credit invoice becomes due: transaction
// date plus the grace days copied from the customer at creation time.
func maturityDate(transactionDate time.Time, graceDays int) time.Time {
	return transactionDate.AddDate(0, 0, graceDays)
}

// instrumentCatalogEntry is the denormalized row the allocation engine
// needs per payment instrument: its type's behavior flags.
type instrumentCatalogEntry struct {
	InstrumentId     int            `json:"instrument_id"`
	InstrumentName   string         `json:"instrument_name"`
	InstrumentTypeId int            `json:"instrument_type_id"`
	Kind             InstrumentKind `json:"kind"`
	IsCashEquivalent bool           `json:"is_cash_equivalent"`
	AutoNumber       bool           `json:"auto_number"`
	IsActive         bool           `json:"is_active"`
}

func instrumentCatalogKey(branchId int) string {
	return "InstrumentCatalog:" + fmt.Sprint(branchId)
}

// getInstrumentCatalog returns instrument id => entry for the branch,
// redis first, db on miss. Invalidate with clearInstrumentCatalog on any
// instrument or instrument-type write.
func getInstrumentCatalog(ctx context.Context, branchId int) (map[int]instrumentCatalogEntry, error) {
	catalog := make(map[int]instrumentCatalogEntry)
	redisKey := instrumentCatalogKey(branchId)
	exists, err := config.GetRedisObject(redisKey, &catalog)
	if err != nil {
		return nil, err
	}
	if exists {
		return catalog, nil
	}

	db := config.GetDB()
	var rows []instrumentCatalogEntry
	err = db.WithContext(ctx).Table("payment_instruments pi").
		Select("pi.id AS instrument_id, pi.instrument_name, pi.instrument_type_id, pit.kind, pit.is_cash_equivalent, pit.auto_number, pi.is_active").
		Joins("JOIN payment_instrument_types pit ON pit.id = pi.instrument_type_id").
		Where("pi.branch_id = ?", branchId).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		catalog[row.InstrumentId] = row
	}
	if err := config.SetRedisObject(redisKey, &catalog, 0); err != nil {
		return nil, err
	}
	return catalog, nil
}

func clearInstrumentCatalog(branchId int) error {
	return config.RemoveRedisKey(instrumentCatalogKey(branchId))
}

// sumDecimals is a nil-safe fold over detail amounts.
func sumDecimals(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
