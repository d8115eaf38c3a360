package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/neighborguard/core"
)

// DefaultTargetScans is the weekly scan target of officers without one.
const DefaultTargetScans = 20

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOfficer  Role = "officer"
	RoleResident Role = "resident"
)

var AllRoles = []Role{RoleAdmin, RoleOfficer, RoleResident}

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusInactive  Status = "inactive"
)

var AllStatuses = []Status{StatusActive, StatusSuspended, StatusInactive}

type PaymentStatus string

const (
	PaymentActive    PaymentStatus = "active"
	PaymentOverdue   PaymentStatus = "overdue"
	PaymentSuspended PaymentStatus = "suspended"
	PaymentPending   PaymentStatus = "pending"
)

type User struct {
	ID           string    `json:"id"`
	Role         Role      `json:"role"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Status       Status    `json:"status"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsAdmin() bool    { return u.Role == RoleAdmin }
func (u User) IsOfficer() bool  { return u.Role == RoleOfficer }
func (u User) IsResident() bool { return u.Role == RoleResident }
func (u User) IsActive() bool   { return u.Status == StatusActive }

// Officer is a patrol officer. ScansThisWeek and ComplianceRate are refreshed by compliance sweeps.
type Officer struct {
	User
	BadgeNumber       string     `json:"badge_number"`
	AssignedHouses    []string   `json:"assigned_houses"`
	ScansThisWeek     int        `json:"scans_this_week"`
	TargetScans       int        `json:"target_scans"`
	ComplianceRate    int        `json:"compliance_rate"`
	SuspensionEndDate *time.Time `json:"suspension_end_date"` // UTC; set iff suspended
}

// Target returns the officer's weekly scan target, or `fallback` (then DefaultTargetScans) when unset.
func (o Officer) Target(fallback ...int) int {
	if o.TargetScans > 0 {
		return o.TargetScans
	}
	if len(fallback) > 0 && fallback[0] > 0 {
		return fallback[0]
	}
	return DefaultTargetScans
}

type Resident struct {
	User
	HouseID             string        `json:"house_id"`
	PaymentStatus       PaymentStatus `json:"payment_status"`
	SubscriptionEndDate time.Time     `json:"subscription_end_date"` // UTC
}

// NewUser contains the information shared by every new account.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Username        string `json:"username" validate:"omitempty,min=4,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
}

type NewAdmin struct {
	NewUser
}

func (na *NewAdmin) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	na.clean()
	if err := validate.Struct(na); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, na.Username, na.Email)
}

type NewOfficer struct {
	NewUser
	Phone          string   `json:"phone" validate:"required,phone"`
	BadgeNumber    string   `json:"badge_number" validate:"required"`
	AssignedHouses []string `json:"assigned_houses" validate:"omitempty,dive,required"`
	TargetScans    int      `json:"target_scans" validate:"omitempty,min=1"`
}

func (no *NewOfficer) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	no.clean()
	no.Phone = core.CleanString(no.Phone)
	no.BadgeNumber = core.CleanString(no.BadgeNumber)
	if no.AssignedHouses != nil {
		no.AssignedHouses = core.UniqueStrings(no.AssignedHouses)
	}
	if err := validate.Struct(no); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, no.Username, no.Email)
}

type NewResident struct {
	NewUser
	Phone               string    `json:"phone" validate:"required,phone"`
	HouseID             string    `json:"house_id" validate:"required"`
	SubscriptionEndDate time.Time `json:"subscription_end_date"`
}

func (nr *NewResident) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nr.clean()
	nr.Phone = core.CleanString(nr.Phone)
	nr.HouseID = core.CleanString(nr.HouseID)
	if err := validate.Struct(nr); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nr.Username, nr.Email)
}

// AssignHouses replaces the houses assigned to an officer.
type AssignHouses struct {
	Houses []string `json:"houses" validate:"required,min=1,dive,required"`
}

func (ah *AssignHouses) Validate(validate *validator.Validate) error {
	ah.Houses = core.UniqueStrings(ah.Houses)
	return validate.Struct(ah)
}

// StatusOverride is an administrative officer status change.
// Until is required when suspending and ignored otherwise.
type StatusOverride struct {
	Status Status     `json:"status" validate:"required,userstatus"`
	Until  *time.Time `json:"until"`
}

func (so *StatusOverride) Validate(validate *validator.Validate) error {
	return validate.Struct(so)
}

type ResetUserPassword struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type GetFilter struct {
	ID              string
	UsernameOrEmail string
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Roles    []Role   `query:"role"`
	Statuses []Status `query:"status"`
	HouseID  string   `query:"house_id"` // residents: exact; officers: assigned
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && len(qf.Roles) == 0 && len(qf.Statuses) == 0 && qf.HouseID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.HouseID = core.CleanString(qf.HouseID)
}
