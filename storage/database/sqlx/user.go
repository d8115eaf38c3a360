package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/neighborguard/core"
	"github.com/trezcool/neighborguard/core/user"
)

const (
	userColumns     = "u.id, u.role, u.name, u.username, u.email, u.phone, u.status, u.password_hash, u.created_at, u.updated_at, u.last_login"
	officerColumns  = userColumns + ", o.badge_number, o.assigned_houses, o.scans_this_week, o.target_scans, o.compliance_rate, o.suspension_end_date"
	residentColumns = userColumns + ", r.house_id, r.payment_status, r.subscription_end_date"

	updateUserQuery = `UPDATE users u SET name = $2, username = $3, email = $4, phone = $5,
	status = COALESCE(NULLIF($6, ''), status), password_hash = COALESCE($7, password_hash),
	updated_at = COALESCE($8, updated_at), last_login = COALESCE($9, last_login)
	WHERE id = $1 RETURNING ` + userColumns
)

var userOrderColumns = map[string]string{
	"name":       "u.name",
	"username":   "u.username",
	"email":      "u.email",
	"status":     "u.status",
	"role":       "u.role",
	"created_at": "u.created_at",
}

type (
	userRow struct {
		ID           string      `db:"id"`
		Role         string      `db:"role"`
		Name         string      `db:"name"`
		Username     null.String `db:"username"`
		Email        null.String `db:"email"`
		Phone        string      `db:"phone"`
		Status       string      `db:"status"`
		PasswordHash []byte      `db:"password_hash"`
		CreatedAt    time.Time   `db:"created_at"`
		UpdatedAt    time.Time   `db:"updated_at"`
		LastLogin    null.Time   `db:"last_login"`
	}

	officerRow struct {
		userRow
		BadgeNumber       string         `db:"badge_number"`
		AssignedHouses    pq.StringArray `db:"assigned_houses"`
		ScansThisWeek     int            `db:"scans_this_week"`
		TargetScans       int            `db:"target_scans"`
		ComplianceRate    int            `db:"compliance_rate"`
		SuspensionEndDate null.Time      `db:"suspension_end_date"`
	}

	residentRow struct {
		userRow
		HouseID             string    `db:"house_id"`
		PaymentStatus       string    `db:"payment_status"`
		SubscriptionEndDate time.Time `db:"subscription_end_date"`
	}
)

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Role:         user.Role(r.Role),
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		Phone:        r.Phone,
		Status:       user.Status(r.Status),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

func (r officerRow) toOfficer() user.Officer {
	ofc := user.Officer{
		User:           r.userRow.toUser(),
		BadgeNumber:    r.BadgeNumber,
		AssignedHouses: []string(r.AssignedHouses),
		ScansThisWeek:  r.ScansThisWeek,
		TargetScans:    r.TargetScans,
		ComplianceRate: r.ComplianceRate,
	}
	if ofc.AssignedHouses == nil {
		ofc.AssignedHouses = []string{}
	}
	if r.SuspensionEndDate.Valid {
		end := r.SuspensionEndDate.Time.UTC()
		ofc.SuspensionEndDate = &end
	}
	return ofc
}

func (r residentRow) toResident() user.Resident {
	return user.Resident{
		User:                r.userRow.toUser(),
		HouseID:             r.HouseID,
		PaymentStatus:       user.PaymentStatus(r.PaymentStatus),
		SubscriptionEndDate: r.SubscriptionEndDate.UTC(),
	}
}

func nullString(s string) null.String { return null.NewString(s, s != "") }

func nullTime(t time.Time) null.Time { return null.NewTime(t.UTC(), !t.IsZero()) }

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo *userRepository) trapNoRowsErr(err error, msg string) error {
	if isNoRows(err) {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	ids := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		if u.ID != "" {
			ids = append(ids, u.ID)
		}
	}

	var row struct {
		Username null.String `db:"username"`
		Email    null.String `db:"email"`
	}
	err := repo.db.GetContext(ctx, &row,
		`SELECT username, email FROM users WHERE (username = $1 OR email = $2) AND NOT (id = ANY($3::uuid[])) LIMIT 1`,
		nullString(username), nullString(email), pq.Array(ids))
	switch {
	case isNoRows(err):
		return nil
	case err != nil:
		return errors.Wrap(err, "checking user uniqueness")
	case username != "" && row.Username.String == username:
		return user.ErrUsernameExists
	default:
		return user.ErrEmailExists
	}
}

func (repo *userRepository) insertUser(ctx context.Context, exec sqlx.ExtContext, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	var row userRow
	err := sqlx.GetContext(ctx, exec, &row,
		`INSERT INTO users AS u (id, role, name, username, email, phone, status, password_hash, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING `+userColumns,
		usr.ID, string(usr.Role), usr.Name, nullString(usr.Username), nullString(usr.Email), usr.Phone,
		string(usr.Status), usr.PasswordHash, usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), nullTime(usr.LastLogin))
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	return repo.insertUser(ctx, repo.db, usr)
}

func (repo *userRepository) CreateOfficer(ctx context.Context, ofc user.Officer) (user.Officer, error) {
	ofc.Role = user.RoleOfficer
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		usr, err := repo.insertUser(ctx, tx, ofc.User)
		if err != nil {
			return err
		}
		ofc.User = usr
		_, err = tx.ExecContext(ctx,
			`INSERT INTO officers (user_id, badge_number, assigned_houses, scans_this_week, target_scans, compliance_rate, suspension_end_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			usr.ID, ofc.BadgeNumber, pq.Array(ofc.AssignedHouses), ofc.ScansThisWeek, ofc.TargetScans,
			ofc.ComplianceRate, null.TimeFromPtr(ofc.SuspensionEndDate))
		return errors.Wrap(err, "inserting officer")
	})
	if err != nil {
		return user.Officer{}, err
	}
	return ofc, nil
}

func (repo *userRepository) CreateResident(ctx context.Context, res user.Resident) (user.Resident, error) {
	res.Role = user.RoleResident
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		usr, err := repo.insertUser(ctx, tx, res.User)
		if err != nil {
			return err
		}
		res.User = usr
		_, err = tx.ExecContext(ctx,
			`INSERT INTO residents (user_id, house_id, payment_status, subscription_end_date) VALUES ($1, $2, $3, $4)`,
			usr.ID, res.HouseID, string(res.PaymentStatus), res.SubscriptionEndDate.UTC())
		return errors.Wrap(err, "inserting resident")
	})
	if err != nil {
		return user.Resident{}, err
	}
	return res, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var row userRow
	var err error

	switch {
	case filter.ID != "":
		if _, err = uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		err = repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, filter.ID)
	case filter.UsernameOrEmail != "":
		err = repo.db.GetContext(ctx, &row,
			`SELECT `+userColumns+` FROM users u WHERE u.username = $1 OR u.email = $1 LIMIT 1`, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return row.toUser(), nil
}

// filter adds the QueryFilter conditions over the "u" users alias.
func (repo *userRepository) filter(q sq.SelectBuilder, filter user.QueryFilter) sq.SelectBuilder {
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(sq.Or{
			sq.ILike{"u.name": pattern},
			sq.ILike{"u.username": pattern},
			sq.ILike{"u.email": pattern},
		})
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, 0, len(filter.Roles))
		for _, r := range filter.Roles {
			roles = append(roles, string(r))
		}
		q = q.Where("u.role = ANY(?)", pq.Array(roles))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		q = q.Where("u.status = ANY(?)", pq.Array(statuses))
	}
	if filter.HouseID != "" {
		q = q.Where(sq.Or{
			sq.Expr("u.id IN (SELECT user_id FROM residents WHERE house_id = ?)", filter.HouseID),
			sq.Expr("u.id IN (SELECT user_id FROM officers WHERE ? = ANY(assigned_houses))", filter.HouseID),
		})
	}
	return q
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	q := repo.filter(psql.Select(userColumns).From("users u"), filter).
		OrderBy(orderBy(ordering, userOrderColumns, "u.created_at DESC")...)

	var rows []userRow
	if err := selectContext(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo *userRepository) updateUser(ctx context.Context, exec sqlx.ExtContext, usr user.User) (user.User, error) {
	var hash interface{}
	if usr.PasswordHash != nil {
		hash = usr.PasswordHash
	}
	var row userRow
	err := sqlx.GetContext(ctx, exec, &row, updateUserQuery,
		usr.ID, usr.Name, nullString(usr.Username), nullString(usr.Email), usr.Phone,
		string(usr.Status), hash, nullTime(usr.UpdatedAt), nullTime(usr.LastLogin))
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "updating user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if _, err := uuid.Parse(usr.ID); err != nil {
		return user.User{}, user.ErrNotFound
	}
	return repo.updateUser(ctx, repo.db, usr)
}

func (repo *userRepository) GetOfficer(ctx context.Context, id string) (user.Officer, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.Officer{}, user.ErrNotFound
	}
	var row officerRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+officerColumns+` FROM users u JOIN officers o ON o.user_id = u.id WHERE u.id = $1`, id)
	if err != nil {
		return user.Officer{}, repo.trapNoRowsErr(err, "finding officer")
	}
	return row.toOfficer(), nil
}

func (repo *userRepository) QueryOfficers(ctx context.Context, filter user.QueryFilter) ([]user.Officer, error) {
	q := psql.Select(officerColumns).From("users u").Join("officers o ON o.user_id = u.id").OrderBy("u.created_at")
	q = repo.filter(q, filter)

	var rows []officerRow
	if err := selectContext(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying officers")
	}
	officers := make([]user.Officer, 0, len(rows))
	for _, r := range rows {
		officers = append(officers, r.toOfficer())
	}
	return officers, nil
}

func (repo *userRepository) UpdateOfficer(ctx context.Context, ofc user.Officer) (user.Officer, error) {
	if _, err := uuid.Parse(ofc.ID); err != nil {
		return user.Officer{}, user.ErrNotFound
	}
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		usr, err := repo.updateUser(ctx, tx, ofc.User)
		if err != nil {
			return err
		}
		ofc.User = usr
		res, err := tx.ExecContext(ctx,
			`UPDATE officers SET badge_number = $2, assigned_houses = $3, scans_this_week = $4, target_scans = $5,
			compliance_rate = $6, suspension_end_date = $7 WHERE user_id = $1`,
			ofc.ID, ofc.BadgeNumber, pq.Array(ofc.AssignedHouses), ofc.ScansThisWeek, ofc.TargetScans,
			ofc.ComplianceRate, null.TimeFromPtr(ofc.SuspensionEndDate))
		if err != nil {
			return errors.Wrap(err, "updating officer")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return user.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return user.Officer{}, err
	}
	return ofc, nil
}

func (repo *userRepository) GetResident(ctx context.Context, id string) (user.Resident, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.Resident{}, user.ErrNotFound
	}
	var row residentRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+residentColumns+` FROM users u JOIN residents r ON r.user_id = u.id WHERE u.id = $1`, id)
	if err != nil {
		return user.Resident{}, repo.trapNoRowsErr(err, "finding resident")
	}
	return row.toResident(), nil
}

func (repo *userRepository) QueryResidents(ctx context.Context, filter user.QueryFilter) ([]user.Resident, error) {
	q := psql.Select(residentColumns).From("users u").Join("residents r ON r.user_id = u.id").OrderBy("u.created_at")
	q = repo.filter(q, filter)

	var rows []residentRow
	if err := selectContext(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying residents")
	}
	residents := make([]user.Resident, 0, len(rows))
	for _, r := range rows {
		residents = append(residents, r.toResident())
	}
	return residents, nil
}

func (repo *userRepository) UpdateResident(ctx context.Context, res user.Resident) (user.Resident, error) {
	if _, err := uuid.Parse(res.ID); err != nil {
		return user.Resident{}, user.ErrNotFound
	}
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		usr, err := repo.updateUser(ctx, tx, res.User)
		if err != nil {
			return err
		}
		res.User = usr
		result, err := tx.ExecContext(ctx,
			`UPDATE residents SET house_id = $2, payment_status = $3, subscription_end_date = $4 WHERE user_id = $1`,
			res.ID, res.HouseID, string(res.PaymentStatus), res.SubscriptionEndDate.UTC())
		if err != nil {
			return errors.Wrap(err, "updating resident")
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return user.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return user.Resident{}, err
	}
	return res, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM users WHERE id = ANY($1::uuid[])`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
