package auth

import (
	"embed"
	"os"
	"path/filepath"
	"sync"

	"github.com/casbin/casbin/v3"

	"github.com/koustreak/tablegate/internal/errs"
)

//go:embed model.conf policy.csv
var embedFS embed.FS

// Actions checked against the policy.
const (
	ActionRead  = "read"
	ActionWrite = "write"
)

// AllTables is the policy object that stands for every table and for
// gateway-wide operations such as dropping the schema cache.
const AllTables = "*"

// Policy is the casbin RBAC policy. Objects are table names matched with
// keyMatch, so "*" or "Order*" grant a set of tables. Policy subjects are
// role names. Users enter the enforcer as "user:<name>" and are linked to
// their role with grouping rules, so a username never matches a role.
type Policy struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
}

// NewPolicy loads the embedded model with the policy at policyPath, or the
// embedded default policy when policyPath is empty. Each user is grouped
// under its role.
func NewPolicy(policyPath string, users []User) (*Policy, error) {
	dir, err := os.MkdirTemp("", "tablegate-casbin-*")
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindUnknown, "cannot create policy dir", err)
	}
	defer os.RemoveAll(dir)

	names := []string{"model.conf"}
	if policyPath == "" {
		names = append(names, "policy.csv")
		policyPath = filepath.Join(dir, "policy.csv")
	}
	if err := writeEmbedToDir(dir, names...); err != nil {
		return nil, errs.Wrap(errs.ErrKindUnknown, "cannot write policy model", err)
	}

	e, err := casbin.NewEnforcer(filepath.Join(dir, "model.conf"), policyPath)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid authorization policy", err)
	}

	e.EnableAutoSave(false)
	for _, u := range users {
		if _, err := e.AddGroupingPolicy(subject(u.Username), u.Role); err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "cannot assign role to "+u.Username, err)
		}
	}
	return &Policy{enforcer: e}, nil
}

// subject is the enforcer subject of username. casbin's g(x, x) holds for
// any x, so bare usernames would inherit the policies of a same-named role.
func subject(username string) string {
	return "user:" + username
}

func writeEmbedToDir(dir string, names ...string) error {
	for _, name := range names {
		data, err := embedFS.ReadFile(name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0600); err != nil {
			return err
		}
	}
	return nil
}

// Allowed reports whether username may perform action on table.
func (p *Policy) Allowed(username, table, action string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ok, err := p.enforcer.Enforce(subject(username), table, action)
	if err != nil {
		return false, errs.Wrap(errs.ErrKindUnknown, "policy evaluation failed", err)
	}
	return ok, nil
}

// Authorize is Allowed that reports a denial as permission_denied.
func (p *Policy) Authorize(username, table, action string) error {
	ok, err := p.Allowed(username, table, action)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Newf(errs.ErrKindPermissionDenied, "%s may not %s %s", username, action, table)
	}
	return nil
}
