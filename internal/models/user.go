package models

import (
	"strings"
	"time"
	"unicode"

	"github.com/hasker/hasker/internal/utils"
)

type User struct {
	ID        int
	Username  string
	Email     string
	Avatar    string
	CreatedAt time.Time `db:"created_at"`
}

func (u User) AvatarURL() string {
	if u.Avatar == "" {
		return ""
	}
	return "/media/" + u.Avatar
}

type SignupReq struct {
	Username string
	Email    string
	Passwd   string
	Passwd2  string
}

type SettingsReq struct {
	Email       string
	ClearAvatar bool
}

func ValidateSignup(req *SignupReq) FieldErrors {
	errs := FieldErrors{}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if !ValidUsername(req.Username) {
		errs.Add("username", "Enter a valid username: up to 150 letters, digits and @/./+/-/_ only.")
	}
	if !utils.ValidateEmail(req.Email) {
		errs.Add("email", "Enter a valid email address.")
	}
	if req.Passwd != req.Passwd2 {
		errs.Add("password2", "The two password fields didn't match.")
	} else if !ValidatePasswd(req.Passwd, []string{req.Username, req.Email}) {
		errs.Add("password1", "Password must be 8-64 characters long and contain a letter, a digit and a symbol.")
	}
	return errs
}

func ValidateSettings(req *SettingsReq) FieldErrors {
	errs := FieldErrors{}
	req.Email = strings.TrimSpace(req.Email)
	if !utils.ValidateEmail(req.Email) {
		errs.Add("email", "Enter a valid email address.")
	}
	return errs
}

func ValidUsername(name string) bool {
	if name == "" || len(name) > 150 {
		return false
	}
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("@.+-_", r) {
			continue
		}
		return false
	}
	return true
}

func ValidatePasswd(passwd string, userInputs []string) bool {
	if len(passwd) < 8 || len(passwd) > 64 {
		return false
	}
	for _, in := range userInputs {
		if in != "" && strings.EqualFold(passwd, in) {
			return false
		}
	}

	containsLetter := false
	containsNumber := false
	containsSpecial := false
	for _, r := range passwd {
		if !unicode.IsPrint(r) {
			return false
		}

		if unicode.IsLetter(r) {
			containsLetter = true
		} else if unicode.IsNumber(r) {
			containsNumber = true
		} else {
			// If it's not a number and not a letter, it's special
			containsSpecial = true
		}
	}
	return containsLetter && containsNumber && containsSpecial
}
