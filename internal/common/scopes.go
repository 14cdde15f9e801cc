package common

import "gorm.io/gorm"

// ByCycleReport filters rows belonging to one (cycle, report) pair.
// Usage: db.Scopes(common.ByCycleReport(cycleID, reportID)).Find(&phases)
func ByCycleReport(cycleID, reportID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("cycle_id = ? AND report_id = ?", cycleID, reportID)
	}
}

// CurrentOnly restricts a versioned-artifact query to the current version of
// each lineage.
func CurrentOnly() func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("is_current = ?", true)
	}
}

// ByStatus filters by lifecycle status when one is given.
func ByStatus(status string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if status == "" {
			return db
		}
		return db.Where("status = ?", status)
	}
}

// OpenOnly restricts assignments to non-terminal statuses.
func OpenOnly() func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("status IN ?", []string{"pending", "acknowledged", "in_progress"})
	}
}
