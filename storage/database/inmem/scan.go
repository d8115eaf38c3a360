package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/neighborguard/core/patrol"
)

type scanRepository struct {
	db *scanTable
}

var _ patrol.Repository = (*scanRepository)(nil) // interface compliance check

func NewScanRepository(db *DB) patrol.Repository {
	return &scanRepository{db: db.scan}
}

func (repo *scanRepository) CreateScan(_ context.Context, scan patrol.Scan) (patrol.Scan, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	scan.ID = uuid.New().String()
	repo.db.table[scan.ID] = &scan
	return scan, nil
}

func (repo *scanRepository) GetScan(_ context.Context, id string) (patrol.Scan, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.table[id]; ok {
		return *s, nil
	}
	return patrol.Scan{}, patrol.ErrNotFound
}

func (repo *scanRepository) QueryScans(_ context.Context, filter patrol.ScanFilter) ([]patrol.Scan, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	scans := make([]patrol.Scan, 0)
	for _, s := range repo.db.table {
		if filter.Match(*s) {
			scans = append(scans, *s)
		}
	}
	patrol.SortByTimestamp(scans)
	return scans, nil
}

func (repo *scanRepository) UpdateScanStatus(_ context.Context, id string, status patrol.SyncStatus) (patrol.Scan, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.table[id]
	if !ok {
		return patrol.Scan{}, patrol.ErrNotFound
	}
	s.Status = status
	return *s, nil
}
