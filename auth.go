package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"platebook/models"
	"platebook/pkg/googleauth"
	"platebook/pkg/token"
)

// Session is the result of any successful auth operation: the user plus a
// freshly issued token pair. The refresh token is already persisted as a
// member of the user's set when a Session is returned.
type Session struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
}

// idTokenVerifier is satisfied by *googleauth.Verifier; tests substitute it.
type idTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*googleauth.Identity, error)
}

// issueSession mints a token pair for the user and appends the refresh token
// to the user's persisted set.
func issueSession(user *models.User) (*Session, error) {
	access, err := issuer.Issue(user.ID, token.Access)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := issuer.Issue(user.ID, token.Refresh)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := db.Create(&models.RefreshToken{UserID: user.ID, Token: refresh}).Error; err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &Session{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// RegisterUser creates a local-credential account and logs it in.
func RegisterUser(email, password, profileImage string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrValidation
	}
	// pre-check existing (optimistic)
	var existing models.User
	if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, ErrConflict
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := models.User{Email: email, PasswordHash: hash, ProfileImage: profileImage}
	if err := db.Create(&user).Error; err != nil {
		// the unique index is the authoritative guard, the pre-check can race
		if isUniqueConstraintError(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return issueSession(&user)
}

// LoginUser verifies local credentials. The error is the same whether the
// email is unknown, the account is Google-only, or the password mismatched.
func LoginUser(email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrValidation
	}
	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, ErrInvalidCredentials
	}
	// Google-only accounts have no usable hash; never attempt the compare.
	if len(user.PasswordHash) == 0 {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return issueSession(&user)
}

// GoogleSignIn verifies a Google ID token and signs the user in, creating a
// local record on first sight. An existing local-password account with the
// same email is reused, never duplicated.
func GoogleSignIn(ctx context.Context, credential string) (*Session, error) {
	if credential == "" {
		return nil, ErrValidation
	}
	ident, err := googleVerifier.Verify(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	var user models.User
	err = db.Where("email = ?", ident.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{Email: ident.Email, ProfileImage: ident.Picture}
		if err := db.Create(&user).Error; err != nil {
			if !isUniqueConstraintError(err) {
				return nil, err
			}
			// raced with another sign-in for the same email
			if err := db.Where("email = ?", ident.Email).First(&user).Error; err != nil {
				return nil, err
			}
		}
	} else if err != nil {
		return nil, err
	}
	return issueSession(&user)
}

// consumeRefreshToken verifies the token cryptographically, then removes it
// from its owner's set. The conditional delete is the rotation guard: of two
// concurrent calls with the same token, only the one whose delete removes a
// row proceeds.
func consumeRefreshToken(raw string) (uint, error) {
	userID, err := issuer.Verify(raw, token.Refresh)
	if err != nil {
		return 0, ErrInvalidToken
	}
	res := db.Where("token = ? AND user_id = ?", raw, userID).Delete(&models.RefreshToken{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		// never issued, already rotated out, or revoked by logout
		return 0, ErrInvalidToken
	}
	return userID, nil
}

// RefreshSession rotates a refresh token: consume the presented one, issue a
// new pair. A given token value can be refreshed at most once.
func RefreshSession(raw string) (*Session, error) {
	if raw == "" {
		return nil, ErrValidation
	}
	userID, err := consumeRefreshToken(raw)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		return nil, ErrInvalidToken
	}
	return issueSession(&user)
}

// LogoutSession revokes a refresh token without issuing a replacement.
func LogoutSession(raw string) error {
	if raw == "" {
		return ErrValidation
	}
	_, err := consumeRefreshToken(raw)
	return err
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint") || strings.Contains(s, "already exists")
}
