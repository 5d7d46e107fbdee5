package models

// All lists every model in migration order.
func All() []any {
	return []any{
		&User{},
		&Workspace{},
		&WorkspaceMember{},
		&Project{},
		&ProjectMember{},
		&Service{},
		&Credential{},
		&Document{},
		&Stack{},
		&AssetFolder{},
		&Asset{},
		&Invite{},
		&Notification{},
		&AuditLog{},
	}
}
