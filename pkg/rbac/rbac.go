package rbac

import "slices"

// 权限常量
const (
	PermissionPostJob        = "job:create"
	PermissionSubmitProposal = "proposal:create"
	PermissionReviewProposal = "proposal:review"
	PermissionCreateCampaign = "campaign:create"
	PermissionManageRewards  = "reward:create"
	PermissionBackCampaign   = "campaign:back"
)

// 角色常量
const (
	RoleFreelancer   = "freelancer"
	RoleClient       = "client"
	RoleProjectOwner = "project_owner"
	RoleBacker       = "backer"
)

// Roles lists every role a profile may take, in display order.
var Roles = []string{RoleFreelancer, RoleClient, RoleProjectOwner, RoleBacker}

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleFreelancer:   {PermissionSubmitProposal},
	RoleClient:       {PermissionPostJob, PermissionReviewProposal},
	RoleProjectOwner: {PermissionCreateCampaign, PermissionManageRewards},
	RoleBacker:       {PermissionBackCampaign},
}

// IsValidRole reports whether role is one of the four profile roles.
func IsValidRole(role string) bool {
	return slices.Contains(Roles, role)
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role, permission string) bool {
	return slices.Contains(rolePermissions[role], permission)
}

// CheckPermission 检查角色是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckPermission(role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{Role: role, Permission: permission}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
