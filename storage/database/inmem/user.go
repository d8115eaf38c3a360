package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/neighborguard/core"
	"github.com/trezcool/neighborguard/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (row *userRow) toOfficer() user.Officer {
	ofc := *row.officer
	ofc.User = row.user
	ofc.AssignedHouses = append([]string{}, row.officer.AssignedHouses...)
	if row.officer.SuspensionEndDate != nil {
		end := *row.officer.SuspensionEndDate
		ofc.SuspensionEndDate = &end
	}
	return ofc
}

func (row *userRow) toResident() user.Resident {
	res := *row.resident
	res.User = row.user
	return res
}

// rows returns the rows in creation order.
func (repo *userRepository) rows() []*userRow {
	rows := make([]*userRow, 0, len(repo.db.table))
	for _, r := range repo.db.table {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	return rows
}

func (repo *userRepository) insert(usr user.User) *userRow {
	repo.db.seq++
	usr.ID = uuid.New().String()
	row := &userRow{seq: repo.db.seq, user: usr}
	repo.db.table[usr.ID] = row
	return row
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers ...user.User) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]struct{}, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = struct{}{}
	}

	for _, row := range repo.db.table {
		if _, ok := excluded[row.user.ID]; ok {
			continue
		}
		if username != "" && row.user.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && row.user.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	return repo.insert(usr).user, nil
}

func (repo *userRepository) CreateOfficer(_ context.Context, ofc user.Officer) (user.Officer, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	ofc.Role = user.RoleOfficer
	row := repo.insert(ofc.User)
	ofc.User = user.User{}
	row.officer = &ofc
	return row.toOfficer(), nil
}

func (repo *userRepository) CreateResident(_ context.Context, res user.Resident) (user.Resident, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	res.Role = user.RoleResident
	row := repo.insert(res.User)
	res.User = user.User{}
	row.resident = &res
	return row.toResident(), nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if row, ok := repo.db.table[filter.ID]; ok {
			return row.user, nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.UsernameOrEmail != "" {
		for _, row := range repo.db.table {
			if row.user.Username == filter.UsernameOrEmail || row.user.Email == filter.UsernameOrEmail {
				return row.user, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) match(row *userRow, filter user.QueryFilter) bool {
	u := row.user
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !(strings.Contains(strings.ToLower(u.Username), search) ||
			strings.Contains(strings.ToLower(u.Email), search) ||
			strings.Contains(strings.ToLower(u.Name), search)) {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		found := false
		for _, r := range filter.Roles {
			if u.Role == r {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, s := range filter.Statuses {
			if u.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.HouseID != "" {
		switch {
		case row.resident != nil:
			return row.resident.HouseID == filter.HouseID
		case row.officer != nil:
			for _, h := range row.officer.AssignedHouses {
				if h == filter.HouseID {
					return true
				}
			}
			return false
		default:
			return false
		}
	}
	return true
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0)
	for _, row := range repo.rows() {
		if repo.match(row, filter) {
			users = append(users, row.user)
		}
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sortUsers(users, ordering)
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	row, ok := repo.db.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	row.user = mergeUser(row.user, usr)
	return row.user, nil
}

func (repo *userRepository) GetOfficer(_ context.Context, id string) (user.Officer, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if row, ok := repo.db.table[id]; ok && row.officer != nil {
		return row.toOfficer(), nil
	}
	return user.Officer{}, user.ErrNotFound
}

func (repo *userRepository) QueryOfficers(_ context.Context, filter user.QueryFilter) ([]user.Officer, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	officers := make([]user.Officer, 0)
	for _, row := range repo.rows() {
		if row.officer != nil && repo.match(row, filter) {
			officers = append(officers, row.toOfficer())
		}
	}
	return officers, nil
}

func (repo *userRepository) UpdateOfficer(_ context.Context, ofc user.Officer) (user.Officer, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	row, ok := repo.db.table[ofc.ID]
	if !ok || row.officer == nil {
		return user.Officer{}, user.ErrNotFound
	}
	row.user = mergeUser(row.user, ofc.User)
	ofc.User = user.User{}
	ofc.AssignedHouses = append([]string{}, ofc.AssignedHouses...)
	row.officer = &ofc
	return row.toOfficer(), nil
}

func (repo *userRepository) GetResident(_ context.Context, id string) (user.Resident, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if row, ok := repo.db.table[id]; ok && row.resident != nil {
		return row.toResident(), nil
	}
	return user.Resident{}, user.ErrNotFound
}

func (repo *userRepository) QueryResidents(_ context.Context, filter user.QueryFilter) ([]user.Resident, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	residents := make([]user.Resident, 0)
	for _, row := range repo.rows() {
		if row.resident != nil && repo.match(row, filter) {
			residents = append(residents, row.toResident())
		}
	}
	return residents, nil
}

func (repo *userRepository) UpdateResident(_ context.Context, res user.Resident) (user.Resident, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	row, ok := repo.db.table[res.ID]
	if !ok || row.resident == nil {
		return user.Resident{}, user.ErrNotFound
	}
	row.user = mergeUser(row.user, res.User)
	res.User = user.User{}
	row.resident = &res
	return row.toResident(), nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

// mergeUser saves the updatable fields of `usr` onto `orig`. ID, role and creation time are kept.
func mergeUser(orig, usr user.User) user.User {
	orig.Name = usr.Name
	orig.Username = usr.Username
	orig.Email = usr.Email
	orig.Phone = usr.Phone
	if usr.Status != "" {
		orig.Status = usr.Status
	}
	if usr.PasswordHash != nil {
		orig.PasswordHash = usr.PasswordHash
	}
	if !usr.UpdatedAt.IsZero() {
		orig.UpdatedAt = usr.UpdatedAt
	}
	if !usr.LastLogin.IsZero() {
		orig.LastLogin = usr.LastLogin
	}
	return orig
}

// sortUsers sorts users by the given orderings. Unknown fields are ignored.
func sortUsers(users []user.User, ordering []core.DBOrdering) {
	less := func(a, b user.User, field string) (bool, bool) { // (less, comparable & not equal)
		switch field {
		case "name":
			return a.Name < b.Name, a.Name != b.Name
		case "username":
			return a.Username < b.Username, a.Username != b.Username
		case "email":
			return a.Email < b.Email, a.Email != b.Email
		case "status":
			return a.Status < b.Status, a.Status != b.Status
		case "role":
			return a.Role < b.Role, a.Role != b.Role
		case "created_at":
			return a.CreatedAt.Before(b.CreatedAt), !a.CreatedAt.Equal(b.CreatedAt)
		}
		return false, false
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			lt, differ := less(users[i], users[j], ord.Field)
			if !differ {
				continue
			}
			if ord.Ascending {
				return lt
			}
			return !lt
		}
		return false
	})
}
