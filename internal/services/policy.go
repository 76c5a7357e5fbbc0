package services

import "project-service/internal/models"

// AccessPolicy holds the view/manage decision rules. Both checks are pure and
// are evaluated against the project document the caller just read: grant
// membership changes between calls, so decisions are never cached.
type AccessPolicy struct{}

func NewAccessPolicy() *AccessPolicy {
	return &AccessPolicy{}
}

// CanView reports whether the principal may read the project: administrators
// see everything, owners see their own projects, granted users see theirs.
func (p *AccessPolicy) CanView(principal models.Principal, project *models.Project) bool {
	if principal.IsAdministrator() {
		return true
	}
	if project.OwnerID == principal.ID {
		return true
	}
	return project.HasGrant(principal.ID)
}

// CanManage reports whether the principal may create projects, assign access
// and review requests. Ownership alone grants no management rights; only
// administrators manage.
func (p *AccessPolicy) CanManage(principal models.Principal) bool {
	return principal.IsAdministrator()
}
