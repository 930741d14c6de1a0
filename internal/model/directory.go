package model

// User and Department are the grant targets the resolver matches against.
// Session issuance lives in the external auth layer; these rows exist so
// grant association can validate its targets and the middleware can refresh
// claims.

type User struct {
	BaseModel
	Username       string `gorm:"size:100;not null;uniqueIndex" json:"username"`
	DisplayName    string `gorm:"size:255" json:"display_name"`
	DepartmentCode string `gorm:"size:64;index" json:"department_code"`
	IsSuperuser    bool   `gorm:"default:false" json:"is_superuser"`
	IsActive       bool   `gorm:"default:true" json:"is_active"`
}

func (User) TableName() string {
	return "users"
}

type Department struct {
	BaseModel
	Code string `gorm:"size:64;not null;uniqueIndex" json:"code"`
	Name string `gorm:"size:255;not null" json:"name"`
}

func (Department) TableName() string {
	return "departments"
}
