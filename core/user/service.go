package user

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/neighborguard/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrUntilRequired  = errors.New("a suspension end date in the future is required")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		CreateOfficer(ctx context.Context, ofc Officer) (Officer, error)
		CreateResident(ctx context.Context, res Resident) (Resident, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		// UpdateUser saves the base user fields only.
		UpdateUser(ctx context.Context, usr User) (User, error)
		GetOfficer(ctx context.Context, id string) (Officer, error)
		QueryOfficers(ctx context.Context, filter QueryFilter) ([]Officer, error)
		UpdateOfficer(ctx context.Context, ofc Officer) (Officer, error)
		GetResident(ctx context.Context, id string) (Resident, error)
		QueryResidents(ctx context.Context, filter QueryFilter) ([]Resident, error)
		UpdateResident(ctx context.Context, res Resident) (Resident, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error
		RegisterAdmin(ctx context.Context, na NewAdmin) (User, error)
		RegisterOfficer(ctx context.Context, no NewOfficer) (Officer, error)
		RegisterResident(ctx context.Context, nr NewResident) (Resident, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		GetOfficer(ctx context.Context, id string) (Officer, error)
		QueryOfficers(ctx context.Context, filter QueryFilter) ([]Officer, error)
		GetResident(ctx context.Context, id string) (Resident, error)
		QueryResidents(ctx context.Context, filter QueryFilter) ([]Resident, error)
		AssignHouses(ctx context.Context, officerID string, houses []string) (Officer, error)
		OverrideOfficerStatus(ctx context.Context, officerID string, so StatusOverride) (Officer, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		ResetPassword(ctx context.Context, id string, rp ResetUserPassword) error
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo  Repository
		clock core.Clock
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, clock core.Clock) Service {
	if clock == nil {
		clock = core.SystemClock
	}
	return &service{repo: repo, clock: clock}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewFieldError(field, err)
	}
	return nil
}

func (svc *service) newUser(nu NewUser, role Role, phone string) (User, error) {
	now := svc.clock.Now()
	usr := User{
		Role:      role,
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Phone:     phone,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return usr, nil
}

func (svc *service) RegisterAdmin(ctx context.Context, na NewAdmin) (User, error) {
	usr, err := svc.newUser(na.NewUser, RoleAdmin, "")
	if err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) RegisterOfficer(ctx context.Context, no NewOfficer) (Officer, error) {
	usr, err := svc.newUser(no.NewUser, RoleOfficer, no.Phone)
	if err != nil {
		return Officer{}, err
	}
	houses := no.AssignedHouses
	if houses == nil {
		houses = []string{}
	}
	return svc.repo.CreateOfficer(ctx, Officer{
		User:           usr,
		BadgeNumber:    no.BadgeNumber,
		AssignedHouses: houses,
		TargetScans:    no.TargetScans,
		ComplianceRate: 100,
	})
}

func (svc *service) RegisterResident(ctx context.Context, nr NewResident) (Resident, error) {
	usr, err := svc.newUser(nr.NewUser, RoleResident, nr.Phone)
	if err != nil {
		return Resident{}, err
	}
	res := Resident{
		User:                usr,
		HouseID:             nr.HouseID,
		PaymentStatus:       PaymentPending,
		SubscriptionEndDate: nr.SubscriptionEndDate.UTC(),
	}
	if nr.SubscriptionEndDate.After(usr.CreatedAt) {
		res.PaymentStatus = PaymentActive
	}
	return svc.repo.CreateResident(ctx, res)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering...)
}

func (svc *service) GetOfficer(ctx context.Context, id string) (Officer, error) {
	return svc.repo.GetOfficer(ctx, id)
}

func (svc *service) QueryOfficers(ctx context.Context, filter QueryFilter) ([]Officer, error) {
	return svc.repo.QueryOfficers(ctx, filter)
}

func (svc *service) GetResident(ctx context.Context, id string) (Resident, error) {
	return svc.repo.GetResident(ctx, id)
}

func (svc *service) QueryResidents(ctx context.Context, filter QueryFilter) ([]Resident, error) {
	return svc.repo.QueryResidents(ctx, filter)
}

func (svc *service) AssignHouses(ctx context.Context, officerID string, houses []string) (Officer, error) {
	ofc, err := svc.repo.GetOfficer(ctx, officerID)
	if err != nil {
		return Officer{}, err
	}
	ofc.AssignedHouses = core.UniqueStrings(houses)
	ofc.UpdatedAt = svc.clock.Now()
	return svc.repo.UpdateOfficer(ctx, ofc)
}

// OverrideOfficerStatus sets an officer status outside of compliance sweeps.
// Suspending requires an end date in the future; any other status clears it.
func (svc *service) OverrideOfficerStatus(ctx context.Context, officerID string, so StatusOverride) (Officer, error) {
	ofc, err := svc.repo.GetOfficer(ctx, officerID)
	if err != nil {
		return Officer{}, err
	}

	now := svc.clock.Now()
	switch so.Status {
	case StatusSuspended:
		if so.Until == nil || !so.Until.After(now) {
			return Officer{}, core.NewFieldError("until", ErrUntilRequired)
		}
		until := so.Until.UTC()
		ofc.SuspensionEndDate = &until
	case StatusActive, StatusInactive:
		ofc.SuspensionEndDate = nil
	default:
		return Officer{}, core.NewValidationError(nil, core.FieldError{Field: "status", Error: userStatusText})
	}
	ofc.Status = so.Status
	ofc.UpdatedAt = now
	return svc.repo.UpdateOfficer(ctx, ofc)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = svc.clock.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) ResetPassword(ctx context.Context, id string, rp ResetUserPassword) error {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return err
	}
	if err := usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = svc.clock.Now()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}
