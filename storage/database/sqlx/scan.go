package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/neighborguard/core/patrol"
)

const scanColumns = "id, officer_id, house_id, timestamp, status"

type scanRow struct {
	ID        string    `db:"id"`
	OfficerID string    `db:"officer_id"`
	HouseID   string    `db:"house_id"`
	Timestamp time.Time `db:"timestamp"`
	Status    string    `db:"status"`
}

func (r scanRow) toScan() patrol.Scan {
	return patrol.Scan{
		ID:        r.ID,
		OfficerID: r.OfficerID,
		HouseID:   r.HouseID,
		Timestamp: r.Timestamp.UTC(),
		Status:    patrol.SyncStatus(r.Status),
	}
}

type scanRepository struct {
	db *sqlx.DB
}

var _ patrol.Repository = (*scanRepository)(nil) // interface compliance check

func NewScanRepository(db *sqlx.DB) patrol.Repository {
	return &scanRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to patrol.ErrNotFound
func (repo *scanRepository) trapNoRowsErr(err error, msg string) error {
	if isNoRows(err) {
		return patrol.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *scanRepository) CreateScan(ctx context.Context, scan patrol.Scan) (patrol.Scan, error) {
	scan.ID = uuid.New().String()
	scan.Timestamp = scan.Timestamp.UTC()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO scans (`+scanColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		scan.ID, scan.OfficerID, scan.HouseID, scan.Timestamp, string(scan.Status))
	if err != nil {
		return patrol.Scan{}, errors.Wrap(err, "inserting scan")
	}
	return scan, nil
}

func (repo *scanRepository) GetScan(ctx context.Context, id string) (patrol.Scan, error) {
	if _, err := uuid.Parse(id); err != nil {
		return patrol.Scan{}, patrol.ErrNotFound
	}
	var row scanRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+scanColumns+` FROM scans WHERE id = $1`, id); err != nil {
		return patrol.Scan{}, repo.trapNoRowsErr(err, "finding scan")
	}
	return row.toScan(), nil
}

func (repo *scanRepository) QueryScans(ctx context.Context, filter patrol.ScanFilter) ([]patrol.Scan, error) {
	q := psql.Select(scanColumns).From("scans").OrderBy("timestamp", "id")
	if len(filter.OfficerIDs) > 0 {
		q = q.Where("officer_id = ANY(?::uuid[])", pq.Array(filter.OfficerIDs))
	}
	if filter.HouseID != "" {
		q = q.Where(sq.Eq{"house_id": filter.HouseID})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		q = q.Where("status = ANY(?)", pq.Array(statuses))
	}
	if !filter.From.IsZero() {
		q = q.Where(sq.GtOrEq{"timestamp": filter.From.UTC()})
	}
	if !filter.To.IsZero() {
		q = q.Where(sq.Lt{"timestamp": filter.To.UTC()})
	}

	var rows []scanRow
	if err := selectContext(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying scans")
	}
	scans := make([]patrol.Scan, 0, len(rows))
	for _, r := range rows {
		scans = append(scans, r.toScan())
	}
	return scans, nil
}

func (repo *scanRepository) UpdateScanStatus(ctx context.Context, id string, status patrol.SyncStatus) (patrol.Scan, error) {
	if _, err := uuid.Parse(id); err != nil {
		return patrol.Scan{}, patrol.ErrNotFound
	}
	var row scanRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE scans SET status = $2 WHERE id = $1 RETURNING `+scanColumns, id, string(status))
	if err != nil {
		return patrol.Scan{}, repo.trapNoRowsErr(err, "updating scan status")
	}
	return row.toScan(), nil
}
