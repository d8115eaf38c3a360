package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/neighborguard/core"
	"github.com/trezcool/neighborguard/core/user"
)

// addUser creates an admin, or reactivates the user and resets their password when it exists.
func (cli *commandLine) addUser(name, uname, email, pwd string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	now := cli.clock.Now()

	lookup := uname
	if lookup == "" {
		lookup = email
	}
	usr, err := cli.users.GetUser(ctx, user.GetFilter{UsernameOrEmail: lookup})
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return err
	}
	exists := err == nil

	if !exists {
		if err := cli.users.CheckUsernameUniqueness(ctx, uname, email); err != nil {
			return err
		}
		usr = user.User{
			Role:      user.RoleAdmin,
			Name:      core.CleanString(name),
			Username:  uname,
			Email:     email,
			CreatedAt: now,
		}
		if usr.Name == "" {
			usr.Name = lookup
		}
	}
	usr.Status = user.StatusActive
	usr.UpdatedAt = now
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}

	if exists {
		_, err = cli.users.UpdateUser(ctx, usr)
		return errors.Wrap(err, "updating user")
	}
	_, err = cli.users.CreateUser(ctx, usr)
	return errors.Wrap(err, "creating user")
}
