package db

import (
	"errors"
	"strings"

	"github.com/diewo77/chantierpro/internal/gate"
	"github.com/diewo77/chantierpro/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var permissions = []struct {
	ResourceType string
	Action       string
	Description  string
}{
	{"*", "*", "Full system access"},
	{"document", "*", "All document actions"},
	{"document", "list", "List quotes and invoices"},
	{"document", "view", "View a document"},
	{"document", "create", "Create quotes and invoices"},
	{"document", "update", "Edit draft line items and reverse charge"},
	{"document", "send", "Send a document"},
	{"document", "accept", "Record a quote acceptance"},
	{"document", "refuse", "Record a quote refusal"},
	{"document", "pay", "Mark an invoice paid"},
	{"document", "convert", "Convert a quote to an invoice"},
	{"document", "cancel", "Cancel a document"},
	{"document", "situation", "Issue progressive invoices"},
}

var profiles = []struct {
	Name        string
	Description string
	Permissions []string
}{
	{"admin", "Administrateur, accès complet", []string{"*:*"}},
	{"conducteur", "Conducteur de travaux, gère devis, factures et situations", []string{"document:*"}},
	{"lecteur", "Lecture seule des documents", []string{"document:list", "document:view"}},
}

// SeedPermissions creates the permission catalogue. It can run repeatedly.
func SeedPermissions(db *gorm.DB) error {
	for _, p := range permissions {
		perm := models.Permission{ResourceType: p.ResourceType, Action: p.Action, Description: p.Description}
		err := db.Where("resource_type = ? AND action = ?", p.ResourceType, p.Action).FirstOrCreate(&perm).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// SeedProfiles creates the system profiles and resets their permissions.
func SeedProfiles(db *gorm.DB) error {
	if err := SeedPermissions(db); err != nil {
		return err
	}
	for _, p := range profiles {
		profile := models.Profile{Name: p.Name, Description: p.Description, IsSystem: true}
		if err := db.Where("name = ?", p.Name).FirstOrCreate(&profile).Error; err != nil {
			return err
		}
		var perms []models.Permission
		for _, code := range p.Permissions {
			resource, action, ok := gate.ParsePermission(code)
			if !ok {
				return errors.New("bad permission code " + code)
			}
			var perm models.Permission
			if err := db.Where("resource_type = ? AND action = ?", resource, string(action)).First(&perm).Error; err != nil {
				return err
			}
			perms = append(perms, perm)
		}
		if err := db.Model(&profile).Association("Permissions").Replace(perms); err != nil {
			return err
		}
	}
	return nil
}

// SeedAdmin creates the admin account if no user has that email yet. An
// existing account is left untouched.
func SeedAdmin(db *gorm.DB, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}
	var n int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var admin models.Profile
	if err := db.Where("name = ?", "admin").First(&admin).Error; err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return db.Create(&models.User{
		Email:     email,
		Name:      "Administrateur",
		Password:  string(hash),
		Active:    true,
		ProfileID: &admin.ID,
	}).Error
}

// Seed runs every seeder.
func Seed(db *gorm.DB, adminEmail, adminPassword string) error {
	if err := SeedProfiles(db); err != nil {
		return err
	}
	return SeedAdmin(db, adminEmail, adminPassword)
}
