// Package authz decides which roles may read or write which parts of a
// project, backed by a casbin RBAC model.
package authz

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"landledger/pkg/domain"
)

//go:embed model.conf
var defaultModel string

//go:embed policy.csv
var defaultPolicy string

// Mode controls whether decisions are enforced.
type Mode string

const (
	ModeEnforce  Mode = "enforce"
	ModeShadow   Mode = "shadow"
	ModeDisabled Mode = "disabled"
)

// Objects guarded by the policy.
const (
	ObjectProject     = "project"
	ObjectSummary     = "summary"
	ObjectLineage     = "lineage"
	ObjectAcquisition = "acquisition"
	ObjectNote        = "note"
	ObjectTask        = "task"
	ObjectLegalNote   = "legal_note"
	ObjectDocument    = "document"
	ObjectLedger      = "ledger"
	ObjectUser        = "user"
	ObjectExport      = "export"
)

// Actions.
const (
	ActionRead  = "read"
	ActionWrite = "write"
)

// ErrInactiveUser is the denial reason for deactivated accounts.
var ErrInactiveUser = errors.New("authz: user is inactive")

// ParseMode validates a configured mode. An empty value means enforce.
// Disabling authorization must be explicitly allowed.
func ParseMode(raw string, allowDisabled bool) (Mode, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ModeEnforce, nil
	}
	switch Mode(raw) {
	case ModeEnforce, ModeShadow:
		return Mode(raw), nil
	case ModeDisabled:
		if !allowDisabled {
			return "", errors.New("authz: mode disabled requires LANDLEDGER_AUTHZ_UNSAFE_ALLOW_DISABLED=1")
		}
		return ModeDisabled, nil
	default:
		return "", fmt.Errorf("authz: invalid mode %q (expected enforce|shadow|disabled)", raw)
	}
}

// Authorizer evaluates role policies.
type Authorizer struct {
	enforcer *casbin.Enforcer
	mode     Mode
}

// New builds an authorizer from the built-in model and role policy.
func New(mode Mode) (*Authorizer, error) {
	m, err := model.NewModelFromString(defaultModel)
	if err != nil {
		return nil, fmt.Errorf("authz: load model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}
	rules, err := parsePolicy(defaultPolicy)
	if err != nil {
		return nil, err
	}
	if _, err := enforcer.AddPolicies(rules); err != nil {
		return nil, fmt.Errorf("authz: load policy: %w", err)
	}
	return &Authorizer{enforcer: enforcer, mode: mode}, nil
}

// NewFromFiles builds an authorizer from a model file and a CSV policy file,
// for deployments that override the built-in roles.
func NewFromFiles(modelPath, policyPath string, mode Mode) (*Authorizer, error) {
	enforcer, err := casbin.NewEnforcer(modelPath)
	if err != nil {
		return nil, err
	}
	enforcer.SetAdapter(fileadapter.NewAdapter(policyPath))
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	return &Authorizer{enforcer: enforcer, mode: mode}, nil
}

func parsePolicy(text string) ([][]string, error) {
	var rules [][]string
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 4 || strings.TrimSpace(fields[0]) != "p" {
			return nil, fmt.Errorf("authz: policy line %d: expected p, sub, obj, act", i+1)
		}
		rules = append(rules, []string{
			strings.TrimSpace(fields[1]),
			strings.TrimSpace(fields[2]),
			strings.TrimSpace(fields[3]),
		})
	}
	return rules, nil
}

// SubjectFromRole maps a role to its policy subject.
func SubjectFromRole(role domain.Role) string {
	slug := strings.TrimSpace(strings.ToLower(string(role)))
	if slug == "" {
		slug = "anonymous"
	}
	return "role:" + slug
}

// Mode reports the configured mode.
func (a *Authorizer) Mode() Mode { return a.mode }

// Authorize evaluates one request. enforced is false when the caller should
// let the request through regardless of allowed.
func (a *Authorizer) Authorize(subject, object, action string) (allowed bool, enforced bool, err error) {
	switch a.mode {
	case ModeDisabled:
		return true, false, nil
	case ModeShadow:
		ok, err := a.enforcer.Enforce(subject, object, action)
		if err != nil {
			return false, false, err
		}
		return ok, false, nil
	case ModeEnforce:
		ok, err := a.enforcer.Enforce(subject, object, action)
		if err != nil {
			return false, true, err
		}
		return ok, true, nil
	default:
		return false, false, errors.New("authz: unknown mode")
	}
}

// Decision is the outcome of a user-level check.
type Decision struct {
	Allowed  bool
	Enforced bool
	Reason   string
}

// Denied reports whether the caller must reject the request.
func (d Decision) Denied() bool { return d.Enforced && !d.Allowed }

// Check decides whether user may perform action on object within projectID.
// An empty projectID skips the assignment check. Super admins see every
// project; everyone else only the projects they are assigned to.
func (a *Authorizer) Check(user domain.User, projectID, object, action string) (Decision, error) {
	allowed, enforced, err := a.Authorize(SubjectFromRole(user.Role), object, action)
	if err != nil {
		return Decision{Enforced: enforced}, err
	}
	d := Decision{Allowed: allowed, Enforced: enforced}
	switch {
	case a.mode == ModeDisabled:
		return d, nil
	case user.Status == domain.UserInactive:
		d.Allowed, d.Reason = false, ErrInactiveUser.Error()
	case !allowed:
		d.Reason = fmt.Sprintf("role %s may not %s %s", user.Role, action, object)
	case projectID != "" && !CanSeeProject(user, projectID):
		d.Allowed, d.Reason = false, fmt.Sprintf("project %s is not assigned to user", projectID)
	}
	return d, nil
}

// CanSeeProject reports whether the project is visible to the user.
func CanSeeProject(user domain.User, projectID string) bool {
	if user.Status == domain.UserInactive {
		return false
	}
	return user.Role == domain.RoleSuperAdmin || user.AssignedTo(projectID)
}

// VisibleProjects filters projects down to those the user may see. Outside
// enforce mode the list is returned unchanged.
func (a *Authorizer) VisibleProjects(user domain.User, projects []domain.Project) []domain.Project {
	if a.mode != ModeEnforce {
		return projects
	}
	out := make([]domain.Project, 0, len(projects))
	for _, p := range projects {
		if CanSeeProject(user, p.ID) {
			out = append(out, p)
		}
	}
	return out
}
