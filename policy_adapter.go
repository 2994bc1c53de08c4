package identity

import (
	"context"
	"strings"

	"github.com/bartventer/identity-go-cloud-adapter/session"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocloud.dev/docstore"
)

const groupingPolicyType = "g"

// Interfaces to be implemented by the adapter
var (
	_ persist.Adapter          = (*PolicyAdapter[string])(nil)
	_ persist.BatchAdapter     = (*PolicyAdapter[string])(nil)
	_ persist.FilteredAdapter  = (*PolicyAdapter[string])(nil)
	_ persist.UpdatableAdapter = (*PolicyAdapter[string])(nil)
)

// PolicyAdapter is a casbin adapter that serves role memberships as grouping
// rules of the form "g, <user id>, <role name>". Only the "g" policy type is
// handled; permission ("p") rules must come from elsewhere.
//
// Role names in incoming rules are normalized (strings.ToUpper by default)
// before lookup, so rules use the display name and stores use the
// normalized one.
type PolicyAdapter[K comparable] struct {
	store     *UserRoleStore[K]
	normalize func(string) string
	log       *zap.Logger
	filtered  bool
}

// NewPolicyAdapter is the constructor for PolicyAdapter.
func NewPolicyAdapter[K comparable](store *UserRoleStore[K], opts ...Option) (*PolicyAdapter[K], error) {
	if store == nil {
		return nil, missing("store")
	}
	o := newOptions(opts)
	return &PolicyAdapter[K]{
		store:     store,
		normalize: o.normalize,
		log:       o.log.With(zap.String("component", "policy_adapter")),
	}, nil
}

func checkPolicyType(sec, ptype string) error {
	if sec != groupingPolicyType || ptype != groupingPolicyType {
		return errors.Wrapf(ErrUnsupportedPolicyType, "%s/%s", sec, ptype)
	}
	return nil
}

func (a *PolicyAdapter[K]) userFromRule(rule []string) (*User[K], string, error) {
	if len(rule) < 2 {
		return nil, "", errors.Errorf("grouping rule %v needs a user and a role", rule)
	}
	key, ok := a.store.Codec().Decode(rule[0])
	if !ok {
		return nil, "", errors.Errorf("invalid user id %q", rule[0])
	}
	return &User[K]{ID: key}, a.normalize(rule[1]), nil
}

// grouping is a grouping rule resolved against the stores.
type grouping struct {
	userID string
	role   *Role
}

// resolve checks every rule and looks up its role before anything is staged,
// so a bad rule leaves the session untouched.
func (a *PolicyAdapter[K]) resolve(ctx context.Context, rules [][]string) ([]grouping, error) {
	out := make([]grouping, 0, len(rules))
	for _, rule := range rules {
		user, roleName, err := a.userFromRule(rule)
		if err != nil {
			return nil, err
		}
		role, err := a.store.findRole(ctx, roleName)
		if err != nil {
			return nil, err
		}
		out = append(out, grouping{userID: a.store.UserID(user), role: role})
	}
	return out, nil
}

// memberships returns one stored membership row per grouping that has one.
func (a *PolicyAdapter[K]) memberships(ctx context.Context, groupings []grouping) ([]*userRoleDocument, error) {
	s := a.store.session
	seen := make(map[string]struct{}, len(groupings))
	rows := make([]*userRoleDocument, 0, len(groupings))
	for _, g := range groupings {
		if g.userID == "" {
			continue
		}
		row, err := session.First[userRoleDocument](ctx, s, a.store.membershipQuery(g.userID, g.role.ID))
		if err != nil {
			return nil, err
		}
		if row == nil {
			continue
		}
		if _, dup := seen[row.ID]; dup {
			continue
		}
		seen[row.ID] = struct{}{}
		rows = append(rows, row)
	}
	return rows, nil
}

func (a *PolicyAdapter[K]) stageInserts(groupings []grouping) {
	for _, g := range groupings {
		a.store.session.Insert(session.UserRoles, &userRoleDocument{
			ID:     uuid.NewString(),
			UserID: g.userID,
			RoleID: g.role.ID,
		})
	}
}

func (a *PolicyAdapter[K]) stageDeletes(rows []*userRoleDocument) {
	for _, row := range rows {
		a.store.session.Delete(session.UserRoles, row)
	}
}

// groupingRules turns membership rows into [user id, role name] pairs.
// Rows whose role no longer exists are skipped and duplicate pairs are
// returned once.
func (a *PolicyAdapter[K]) groupingRules(ctx context.Context, rows []*userRoleDocument) ([][]string, error) {
	roles, err := a.store.includeRoles(ctx, rows)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(roles))
	for _, role := range roles {
		names[role.ID] = role.Name
	}

	seen := make(map[[2]string]struct{}, len(rows))
	rules := make([][]string, 0, len(rows))
	for _, row := range rows {
		name, ok := names[row.RoleID]
		if !ok || name == "" {
			a.log.Debug("skipping membership without role", zap.String("id", row.ID))
			continue
		}
		pair := [2]string{row.UserID, name}
		if _, dup := seen[pair]; dup {
			continue
		}
		seen[pair] = struct{}{}
		rules = append(rules, []string{row.UserID, name})
	}
	return rules, nil
}

// LoadPolicy loads every membership as a grouping rule. Memberships whose
// role no longer exists are skipped, and duplicate memberships are loaded
// once.
func (a *PolicyAdapter[K]) LoadPolicy(model model.Model) error {
	return a.LoadFilteredPolicy(model, nil)
}

// LoadFilteredPolicy loads the memberships matching filter. A nil filter
// loads every membership. Otherwise filter is a Filter, *Filter, []Filter or
// *[]Filter over the stored membership fields "userId" and "roleId".
func (a *PolicyAdapter[K]) LoadFilteredPolicy(model model.Model, filter interface{}) error {
	filters := make([]Filter, 0)
	if filter == nil {
		a.filtered = false
	} else {
		switch f := filter.(type) {
		case Filter:
			filters = append(filters, f)
		case *Filter:
			filters = append(filters, *f)
		case []Filter:
			filters = append(filters, f...)
		case *[]Filter:
			filters = append(filters, *f...)
		default:
			return errors.Errorf("invalid filter type %T", filter)
		}
		a.filtered = true
	}

	ctx := context.TODO()
	s := a.store.session
	rows, err := session.All[userRoleDocument](ctx, s, applyFilters(s.Query(session.UserRoles), filters))
	if err != nil {
		return err
	}
	rules, err := a.groupingRules(ctx, rows)
	if err != nil {
		return err
	}
	for _, rule := range rules {
		lineText := strings.Join(append([]string{groupingPolicyType}, rule...), ", ")
		if err := persist.LoadPolicyLine(lineText, model); err != nil {
			return err
		}
	}
	return nil
}

// IsFiltered returns true if the loaded policy has been filtered.
func (a *PolicyAdapter[K]) IsFiltered() bool {
	return a.filtered
}

// SavePolicy is not supported; memberships are written one rule at a time
// through auto-save.
func (a *PolicyAdapter[K]) SavePolicy(model model.Model) error {
	return ErrSavePolicyUnsupported
}

// AddPolicy adds the user in rule to the role in rule.
func (a *PolicyAdapter[K]) AddPolicy(sec string, ptype string, rule []string) error {
	if err := checkPolicyType(sec, ptype); err != nil {
		return err
	}
	user, roleName, err := a.userFromRule(rule)
	if err != nil {
		return err
	}
	return a.store.AddToRole(context.TODO(), user, roleName)
}

// AddPolicies adds a membership for every rule and commits them together.
// Nothing is written if any rule is invalid or names a missing role.
func (a *PolicyAdapter[K]) AddPolicies(sec string, ptype string, rules [][]string) error {
	if err := checkPolicyType(sec, ptype); err != nil {
		return err
	}
	ctx := context.TODO()
	groupings, err := a.resolve(ctx, rules)
	if err != nil {
		return err
	}
	a.stageInserts(groupings)
	a.log.Debug("adding memberships", zap.Int("count", len(groupings)))
	return a.store.session.SaveChanges(ctx)
}

// RemovePolicy removes the user in rule from the role in rule.
func (a *PolicyAdapter[K]) RemovePolicy(sec string, ptype string, rule []string) error {
	if err := checkPolicyType(sec, ptype); err != nil {
		return err
	}
	user, roleName, err := a.userFromRule(rule)
	if err != nil {
		return err
	}
	return a.store.RemoveFromRole(context.TODO(), user, roleName)
}

// RemovePolicies removes one membership for every rule and commits the
// removals together. Rules with no membership are ignored.
func (a *PolicyAdapter[K]) RemovePolicies(sec string, ptype string, rules [][]string) error {
	if err := checkPolicyType(sec, ptype); err != nil {
		return err
	}
	ctx := context.TODO()
	groupings, err := a.resolve(ctx, rules)
	if err != nil {
		return err
	}
	rows, err := a.memberships(ctx, groupings)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	a.stageDeletes(rows)
	a.log.Debug("removing memberships", zap.Int("count", len(rows)))
	return a.store.session.SaveChanges(ctx)
}

// RemoveFilteredPolicy removes the memberships matching the filter. Field 0
// is the user id and field 1 the role name; empty values match anything.
// A value for any other field fails with ErrUnsupportedPolicyType.
func (a *PolicyAdapter[K]) RemoveFilteredPolicy(sec string, ptype string, fieldIndex int, fieldValues ...string) error {
	if err := checkPolicyType(sec, ptype); err != nil {
		return err
	}
	ctx := context.TODO()
	query, ok, err := a.filterQuery(ctx, fieldIndex, fieldValues...)
	if err != nil || !ok {
		return err
	}
	rows, err := session.All[userRoleDocument](ctx, a.store.session, query)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	a.stageDeletes(rows)
	a.log.Debug("removing memberships", zap.Int("count", len(rows)))
	return a.store.session.SaveChanges(ctx)
}

// UpdatePolicy moves a membership from oldRule to newRule.
func (a *PolicyAdapter[K]) UpdatePolicy(sec string, ptype string, oldRule, newRule []string) error {
	return a.UpdatePolicies(sec, ptype, [][]string{oldRule}, [][]string{newRule})
}

// UpdatePolicies removes one membership for each of oldRules, adds one for
// each of newRules and commits both together.
func (a *PolicyAdapter[K]) UpdatePolicies(sec string, ptype string, oldRules, newRules [][]string) error {
	if err := checkPolicyType(sec, ptype); err != nil {
		return err
	}
	if len(oldRules) != len(newRules) {
		return errors.Errorf("%d old rules for %d new rules", len(oldRules), len(newRules))
	}
	ctx := context.TODO()
	olds, err := a.resolve(ctx, oldRules)
	if err != nil {
		return err
	}
	news, err := a.resolve(ctx, newRules)
	if err != nil {
		return err
	}
	rows, err := a.memberships(ctx, olds)
	if err != nil {
		return err
	}
	a.stageDeletes(rows)
	a.stageInserts(news)
	a.log.Debug("updating memberships",
		zap.Int("removed", len(rows)),
		zap.Int("added", len(news)),
	)
	return a.store.session.SaveChanges(ctx)
}

// UpdateFilteredPolicies replaces the memberships matching the filter with
// newRules and returns the replaced rules. The filter fields are those of
// RemoveFilteredPolicy.
func (a *PolicyAdapter[K]) UpdateFilteredPolicies(sec string, ptype string, newRules [][]string, fieldIndex int, fieldValues ...string) ([][]string, error) {
	if err := checkPolicyType(sec, ptype); err != nil {
		return nil, err
	}
	ctx := context.TODO()
	news, err := a.resolve(ctx, newRules)
	if err != nil {
		return nil, err
	}
	query, ok, err := a.filterQuery(ctx, fieldIndex, fieldValues...)
	if err != nil {
		return nil, err
	}

	var (
		rows     []*userRoleDocument
		oldRules = make([][]string, 0)
	)
	if ok {
		if rows, err = session.All[userRoleDocument](ctx, a.store.session, query); err != nil {
			return nil, err
		}
		if oldRules, err = a.groupingRules(ctx, rows); err != nil {
			return nil, err
		}
	}

	a.stageDeletes(rows)
	a.stageInserts(news)
	if err := a.store.session.SaveChanges(ctx); err != nil {
		return nil, err
	}
	return oldRules, nil
}

// filterQuery builds the membership query for a casbin field filter. It
// reports false if the filter names a role that does not exist, in which
// case nothing matches.
func (a *PolicyAdapter[K]) filterQuery(ctx context.Context, fieldIndex int, fieldValues ...string) (*docstore.Query, bool, error) {
	for i, v := range fieldValues {
		if field := fieldIndex + i; v != "" && (field < 0 || field > 1) {
			return nil, false, errors.Wrapf(ErrUnsupportedPolicyType, "filter on field %d", field)
		}
	}

	userID := filterValue(0, fieldIndex, fieldValues...)
	var roleID string
	if v := filterValue(1, fieldIndex, fieldValues...); v != "" {
		role, err := a.store.roles.FindByName(ctx, a.normalize(v))
		if err != nil {
			return nil, false, err
		}
		if role == nil {
			return nil, false, nil
		}
		roleID = role.ID
	}
	return a.store.membershipQuery(userID, roleID), true, nil
}

// filterValue returns the value filtering field filterIndex, or "" if the
// filter does not cover it.
//
// Parameters:
// - filterIndex: the rule field (0 for the user, 1 for the role)
// - fieldIndex: the rule field of the first value in fieldValues
// - fieldValues: the values of the filters
func filterValue(filterIndex, fieldIndex int, fieldValues ...string) string {
	if fieldIndex <= filterIndex && filterIndex < fieldIndex+len(fieldValues) {
		return fieldValues[filterIndex-fieldIndex]
	}
	return ""
}
