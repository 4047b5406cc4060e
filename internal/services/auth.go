package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/vtria/erp/internal/config"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/utils"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

type AuthService struct {
	db          *gorm.DB
	ldapService *LDAPService
	jwtConfig   *config.JWTConfig
	configSvc   *SystemConfigService
	access      *AccessService
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, ldapSvc *LDAPService, configSvc *SystemConfigService, access *AccessService) *AuthService {
	return &AuthService{
		db:          db,
		ldapService: ldapSvc,
		jwtConfig:   jwtCfg,
		configSvc:   configSvc,
		access:      access,
	}
}

type LoginRequest struct {
	Username  string   `json:"username" binding:"required"`
	Password  string   `json:"password" binding:"required"`
	AuthType  string   `json:"auth_type"` // local, ldap
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type LoginResponse struct {
	Token        string       `json:"token"`
	ExpireAt     time.Time    `json:"expire_at"`
	RefreshToken string       `json:"refresh_token"`
	User         *models.User `json:"user"`
	Permissions  interface{}  `json:"permissions,omitempty"`
}

type LoginResult struct {
	AccessToken     string
	AccessExpireAt  time.Time
	RefreshToken    string
	RefreshExpireAt time.Time
	User            *models.User
	Access          *AccessDecision
}

type RefreshResult struct {
	AccessToken     string
	AccessExpireAt  time.Time
	RefreshToken    string
	RefreshExpireAt time.Time
}

// Login authenticates a user, checks location access and issues tokens.
func (s *AuthService) Login(req *LoginRequest, clientIP, userAgent string) (*LoginResult, error) {
	var user *models.User
	var err error

	if req.AuthType == "" {
		req.AuthType = "local"
	}

	switch req.AuthType {
	case "local":
		user, err = s.localAuth(req.Username, req.Password)
	case "ldap":
		user, err = s.ldapAuth(req.Username, req.Password)
	default:
		return nil, response.NewBadRequest("invalid auth type")
	}
	if err != nil {
		LogWarning("Auth", "LoginFailed", "login failed for "+req.Username, nil, clientIP, userAgent, map[string]interface{}{"auth_type": req.AuthType})
		return nil, err
	}

	var decision *AccessDecision
	if s.access != nil {
		decision, err = s.access.Validate(&AccessRequest{
			UserID:     user.ID,
			Username:   user.Username,
			Role:       user.Role,
			LocationID: user.LocationID,
			IP:         clientIP,
			Latitude:   req.Latitude,
			Longitude:  req.Longitude,
		})
		if err != nil {
			return nil, err
		}
		if !decision.Allowed {
			return nil, response.NewForbidden("login not allowed from this location: " + decision.Reason)
		}
	}

	locationID := user.LocationID
	if locationID == nil && decision != nil {
		locationID = decision.LocationID
	}

	accessHours := s.getAccessTokenExpireHours()
	refreshHours := s.getRefreshTokenExpireHours()

	token, err := utils.GenerateTokenWithLocation(user.ID, user.Username, user.Role, locationID, accessHours)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	refreshExpireAt := time.Now().Add(time.Duration(refreshHours) * time.Hour)
	refreshRecord := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   refreshHash,
		ExpiresAt:   refreshExpireAt,
		CreatedByIP: clientIP,
		UserAgent:   userAgent,
	}
	if err := s.db.Create(&refreshRecord).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastLogin = &now
	s.db.Model(user).UpdateColumn("last_login", now)

	LogInfo("Auth", "Login", "user logged in", &user.ID, clientIP, userAgent, nil)

	return &LoginResult{
		AccessToken:     token,
		AccessExpireAt:  now.Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    refreshToken,
		RefreshExpireAt: refreshExpireAt,
		User:            user,
		Access:          decision,
	}, nil
}

// Refresh rotates a refresh token: the presented one is revoked and linked
// to its replacement.
func (s *AuthService) Refresh(refreshToken string, clientIP, userAgent string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, response.NewBadRequest("refresh token required")
	}

	var stored models.RefreshToken
	if err := s.db.Where("token_hash = ?", hashRefreshToken(refreshToken)).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized("invalid refresh token")
		}
		return nil, err
	}
	if stored.RevokedAt != nil {
		return nil, response.NewUnauthorized("refresh token revoked")
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, response.NewUnauthorized("refresh token expired")
	}

	var user models.User
	if err := s.db.First(&user, stored.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized("user not found")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, response.NewUnauthorized("user is disabled")
	}

	accessHours := s.getAccessTokenExpireHours()
	refreshHours := s.getRefreshTokenExpireHours()

	newAccessToken, err := utils.GenerateTokenWithLocation(user.ID, user.Username, user.Role, user.LocationID, accessHours)
	if err != nil {
		return nil, err
	}

	newRefreshToken, newRefreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	newRefresh := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   newRefreshHash,
		ExpiresAt:   now.Add(time.Duration(refreshHours) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   userAgent,
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&newRefresh).Error; err != nil {
			return err
		}
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", stored.ID).
			Updates(map[string]interface{}{
				"revoked_at":           now,
				"replaced_by_token_id": newRefresh.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return response.NewUnauthorized("refresh token revoked")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return &RefreshResult{
		AccessToken:     newAccessToken,
		AccessExpireAt:  now.Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    newRefreshToken,
		RefreshExpireAt: newRefresh.ExpiresAt,
	}, nil
}

func (s *AuthService) RevokeRefreshToken(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashRefreshToken(refreshToken)).
		Update("revoked_at", time.Now()).Error
}

// RevokeAllForUser is used when a user is disabled or their password changes.
func (s *AuthService) RevokeAllForUser(userID uint) error {
	return s.db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", time.Now()).Error
}

func (s *AuthService) getAccessTokenExpireHours() int {
	defaultHours := s.jwtConfig.ExpireHour
	if defaultHours <= 0 {
		defaultHours = 12
	}
	value := s.configSvc.GetWithDefault("auth_access_token_expire_hours", strconv.Itoa(defaultHours))
	hours, err := strconv.Atoi(value)
	if err != nil || hours <= 0 {
		return defaultHours
	}
	return hours
}

func (s *AuthService) getRefreshTokenExpireHours() int {
	hours := s.configSvc.GetInt("auth_refresh_token_expire_hours", 720)
	if hours <= 0 {
		return 720
	}
	return hours
}

func generateRefreshToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(randomBytes)
	return token, hashRefreshToken(token), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) localAuth(username, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ? AND auth_type = ?", username, "local").First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized("invalid username or password")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, response.NewUnauthorized("user is disabled")
	}
	if !utils.CheckPassword(password, user.Password) {
		return nil, response.NewUnauthorized("invalid username or password")
	}
	return &user, nil
}

func (s *AuthService) ldapAuth(username, password string) (*models.User, error) {
	if s.ldapService == nil || !s.ldapService.IsEnabled() {
		return nil, response.NewBadRequest("LDAP is not enabled")
	}
	ldapUser, err := s.ldapService.Authenticate(username, password)
	if err != nil {
		return nil, response.NewUnauthorized(err.Error())
	}

	var user models.User
	err = s.db.Where("username = ? AND auth_type = ?", ldapUser.Username, "ldap").First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			Username: ldapUser.Username,
			Email:    ldapUser.Email,
			FullName: ldapUser.FullName,
			Role:     models.RoleEmployee,
			AuthType: "ldap",
			IsActive: true,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, response.NewUnauthorized("user is disabled")
	}

	s.db.Model(&user).Updates(map[string]interface{}{
		"email":     ldapUser.Email,
		"full_name": ldapUser.FullName,
	})
	return &user, nil
}

func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	return &user, nil
}

// CreateAdminIfNotExists creates the default admin account on first boot.
func (s *AuthService) CreateAdminIfNotExists() error {
	var count int64
	s.db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count)
	if count > 0 {
		return nil
	}

	hashedPassword, err := utils.HashPassword("admin")
	if err != nil {
		return err
	}
	admin := models.User{
		Username: "admin",
		Password: hashedPassword,
		FullName: "Administrator",
		Role:     models.RoleAdmin,
		AuthType: "local",
		IsActive: true,
	}
	return s.db.Create(&admin).Error
}

func (s *AuthService) IsLDAPEnabled() bool {
	return s.ldapService != nil && s.ldapService.IsEnabled()
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

func (s *AuthService) ChangePassword(userID uint, req *ChangePasswordRequest) error {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return notFoundOr(err, "user not found")
	}
	if user.AuthType != "local" {
		return response.NewBadRequest("LDAP users cannot change password here")
	}
	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return response.NewBadRequest("incorrect old password")
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.db.Model(&user).Update("password", hashedPassword).Error; err != nil {
		return err
	}
	return s.RevokeAllForUser(userID)
}
