package authz

import (
	"cmsapi/internal/apperr"
	"cmsapi/internal/models"
)

type Action string

const (
	ActionRegister       Action = "register"
	ActionLogin          Action = "login"
	ActionVerifyEmail    Action = "verify_email"
	ActionRequestReset   Action = "request_reset"
	ActionResetPassword  Action = "reset_password"
	ActionReadProfile    Action = "read_profile"
	ActionReadPost       Action = "read_post"
	ActionUpdateProfile  Action = "update_profile"
	ActionDeleteProfile  Action = "delete_profile"
	ActionCreatePost     Action = "create_post"
	ActionUpdatePost     Action = "update_post"
	ActionDeletePost     Action = "delete_post"
	ActionRestorePost    Action = "restore_post"
	ActionUploadFile     Action = "upload_file"
	ActionModifyFile     Action = "modify_file"
	ActionLockAccount    Action = "lock_account"
	ActionUnlockAccount  Action = "unlock_account"
	ActionRestoreAccount Action = "restore_account"
	ActionListAccounts   Action = "list_accounts"
	ActionManageCategory Action = "manage_category"
)

// Policy decides whether actor may act on a resource owned by ownerID.
type Policy func(actor *models.User, ownerID int64) bool

var (
	Public        Policy = func(*models.User, int64) bool { return true }
	// VerifiedMember gates creating content: an active admin or an active,
	// verified account.
	VerifiedMember Policy = func(actor *models.User, _ int64) bool {
		return IsActive(actor) && (IsAdmin(actor) || IsVerified(actor))
	}
	// OwnerMutating lets admins through and otherwise requires a verified owner.
	OwnerMutating Policy = func(actor *models.User, ownerID int64) bool {
		return IsActive(actor) && (IsAdmin(actor) || (IsVerified(actor) && IsOwner(actor, ownerID)))
	}
	AdminOnly Policy = func(actor *models.User, _ int64) bool { return IsActive(actor) && IsAdmin(actor) }
)

var policies = map[Action]Policy{
	ActionRegister:      Public,
	ActionLogin:         Public,
	ActionVerifyEmail:   Public,
	ActionRequestReset:  Public,
	ActionResetPassword: Public,
	ActionReadProfile:   Public,
	ActionReadPost:      Public,

	ActionCreatePost: VerifiedMember,
	ActionUploadFile: VerifiedMember,

	ActionUpdateProfile: OwnerMutating,
	ActionDeleteProfile: OwnerMutating,
	ActionUpdatePost:    OwnerMutating,
	ActionDeletePost:    OwnerMutating,
	ActionRestorePost:   OwnerMutating,
	ActionModifyFile:    OwnerMutating,

	ActionLockAccount:    AdminOnly,
	ActionUnlockAccount:  AdminOnly,
	ActionRestoreAccount: AdminOnly,
	ActionListAccounts:   AdminOnly,
	ActionManageCategory: AdminOnly,
}

func IsOwner(actor *models.User, ownerID int64) bool {
	return actor != nil && ownerID != 0 && actor.ID == ownerID
}

func IsAdmin(actor *models.User) bool    { return actor.IsAdmin() }
func IsActive(actor *models.User) bool   { return actor.IsActive() }
func IsVerified(actor *models.User) bool { return actor != nil && actor.IsVerified }

// Allowed reports whether actor may perform action. Unknown actions are denied.
func Allowed(actor *models.User, action Action, ownerID int64) bool {
	p, ok := policies[action]
	if !ok {
		return false
	}
	return p(actor, ownerID)
}

// Authorize is Allowed with a Forbidden error on denial.
func Authorize(actor *models.User, action Action, ownerID int64) error {
	if Allowed(actor, action, ownerID) {
		return nil
	}
	return apperr.Forbidden("you do not have permission to " + string(action))
}
