package domain

import (
	"time"
)

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

var Roles = []string{RoleAdmin, RoleEditor, RoleViewer}

// SysUser back-office account
type SysUser struct {
	ID        int64      `json:"id,string"`
	Name      string     `json:"name"`
	Email     string     `json:"email" gorm:"size:200"`
	Username  string     `json:"username" gorm:"size:64;uniqueIndex"`
	Password  string     `json:"-"`
	Role      string     `json:"role" gorm:"size:20"`
	Status    string     `json:"status" gorm:"size:20"`
	LastLogin *time.Time `json:"lastLogin"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// TableName Specify table name
func (SysUser) TableName() string {
	return "sys_user"
}

// SysOprLog records admin write actions
type SysOprLog struct {
	ID        int64     `json:"id,string"`
	OprName   string    `json:"oprName"`
	OprIp     string    `json:"oprIp"`
	OptAction string    `json:"optAction"`
	OptDesc   string    `json:"optDesc"`
	OptTime   time.Time `json:"optTime" gorm:"index"`
}

// TableName Specify table name
func (SysOprLog) TableName() string {
	return "sys_opr_log"
}

// Backup one archive of all collections
type Backup struct {
	ID          int64            `json:"id,string"`
	Filename    string           `json:"filename" gorm:"size:200"`
	Size        int64            `json:"size"`
	Trigger     string           `json:"trigger" gorm:"size:20"` // manual or schedule
	Status      string           `json:"status" gorm:"size:20"`  // running, success, failed
	Message     string           `json:"message"`
	Collections map[string]int64 `json:"collections" gorm:"type:text;serializer:json"`
	Uploaded    bool             `json:"uploaded"`
	CreatedAt   time.Time        `json:"createdAt" gorm:"index"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// TableName Specify table name
func (Backup) TableName() string {
	return "sys_backup"
}
