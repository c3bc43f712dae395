package schema

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table       string
	ID          string
	Handle      string
	DisplayName string
	AvatarURL   string
	Country     string
	DateOfBirth string
	Role        string
	IsBanned    string
	BannedAt    string
	BanReason   string
	CreatedAt   string
	UpdatedAt   string
	DeletedAt   string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:       "users.account",
	ID:          "id",
	Handle:      "handle",
	DisplayName: "displayname",
	AvatarURL:   "avatarurl",
	Country:     "country",
	DateOfBirth: "dateofbirth",
	Role:        "role",
	IsBanned:    "isbanned",
	BannedAt:    "bannedat",
	BanReason:   "banreason",
	CreatedAt:   "createdat",
	UpdatedAt:   "updatedat",
	DeletedAt:   "deletedat",
}

// Columns returns all standard column names
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Handle, t.DisplayName, t.AvatarURL, t.Country, t.DateOfBirth,
		t.Role, t.IsBanned, t.BannedAt, t.BanReason, t.CreatedAt, t.UpdatedAt,
		t.DeletedAt,
	}
}

// GateColumns returns the columns the profile gate derives its snapshot from.
func (t UserAccountTable) GateColumns() []string {
	return []string{
		t.IsBanned, t.Country, t.DateOfBirth, t.Role, t.DisplayName, t.Handle, t.AvatarURL,
	}
}
