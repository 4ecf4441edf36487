// Package rbac guards the privileged operations: revoking a clock-out,
// approving/paying payroll, and forcing a queue drain.
package rbac

import (
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

type Enforcer struct {
	enforcer *casbin.Enforcer
}

// NewEnforcer builds an in-memory enforcer seeded with the role policies.
func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	policies := [][]string{
		{"EMPLOYEE", "attendance", "clock"},
		{"EMPLOYEE", "attendance", "read"},
		{"EMPLOYEE", "sync", "read"},
		{"ADMIN", "attendance", "clock"},
		{"ADMIN", "attendance", "read"},
		{"ADMIN", "attendance", "revoke"},
		{"ADMIN", "sync", "read"},
		{"ADMIN", "sync", "drain"},
		{"ADMIN", "payroll", "read"},
		{"ADMIN", "payroll", "write"},
		{"ADMIN", "payroll", "approve"},
		{"HR", "attendance", "read"},
		{"HR", "attendance", "revoke"},
		{"HR", "sync", "read"},
		{"HR", "sync", "drain"},
		{"HR", "payroll", "read"},
		{"HR", "payroll", "write"},
		{"HR", "payroll", "approve"},
	}
	for _, p := range policies {
		if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, err
		}
	}

	return &Enforcer{enforcer: e}, nil
}

func (e *Enforcer) Enforce(role, resource, action string) (bool, error) {
	return e.enforcer.Enforce(role, resource, action)
}
