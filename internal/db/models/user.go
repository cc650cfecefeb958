package models

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Role represents user roles in the system
type Role string

const (
	// RoleAdmin admin role with full access
	RoleAdmin Role = "admin"
	// RoleUser standard user role
	RoleUser Role = "user"
)

// User owns devices and receives their alarms
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	Username  string         `gorm:"uniqueIndex;not null" json:"username"`
	Password  string         `gorm:"not null" json:"-"`
	Role      Role           `gorm:"type:varchar(20);default:'user'" json:"role"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hashes the plain password before the user is stored
func (u *User) BeforeCreate(tx *gorm.DB) error {
	return u.UpdatePassword(u.Password)
}

// UpdatePassword hashes and updates the password
func (u *User) UpdatePassword(password string) error {
	hashedPass, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPass)
	return nil
}

// CheckPassword compares the provided password with the hashed one
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// Claims represents the JWT claims for authentication
type Claims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken generates a JWT token for the user
func (u *User) GenerateToken(secretKey string, expirationSec int) (string, error) {
	if secretKey == "" {
		return "", errors.New("empty JWT secret key")
	}

	expirationTime := time.Now().Add(time.Duration(expirationSec) * time.Second)
	claims := &Claims{
		UserID: u.ID,
		Role:   string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "voltwatch",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secretKey))
}

// AlarmType names the metric that breached its threshold
type AlarmType string

const (
	AlarmTypeCurrent AlarmType = "Current"
	AlarmTypeVoltage AlarmType = "Voltage"
	AlarmTypePower   AlarmType = "Power"
)

// UserAlarm is a threshold breach recorded against the device owner
type UserAlarm struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	UserID    uint      `gorm:"not null;index:idx_user_alarms_user_created,priority:1" json:"-"`
	Device    string    `gorm:"not null" json:"device"`
	Type      AlarmType `gorm:"type:varchar(20);not null" json:"type"`
	Threshold float64   `json:"threshold"`
	Value     float64   `json:"value"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt int64     `gorm:"autoCreateTime:false;not null;index:idx_user_alarms_user_created,priority:2" json:"createdAt"`
}
