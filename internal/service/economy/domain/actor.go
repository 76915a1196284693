package domain

import "github.com/pkg/errors"

// Role 是调用方在经济系统中的角色。
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Actor 是 API 层鉴权之后传入的调用方身份，引擎本身不做认证。
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Validate 检查身份是否完整。
func (a Actor) Validate() error {
	if a.ID == "" {
		return errors.Wrap(ErrValidation, "actor id is required")
	}
	switch a.Role {
	case RoleUser, RoleAdmin:
		return nil
	default:
		return errors.Wrapf(ErrValidation, "unknown role %q", a.Role)
	}
}

// RequireAdmin 是所有管理员用例入口处唯一的一次角色校验。
func (a Actor) RequireAdmin() error {
	if err := a.Validate(); err != nil {
		return err
	}
	if !a.IsAdmin() {
		return errors.Wrapf(ErrForbidden, "actor %s is not an admin", a.ID)
	}
	return nil
}
