// Package patient covers patient records: registration, search, profile
// edits, and the session portfolio view.
package patient

import (
	"time"

	"github.com/careflow/careflow/internal/domain/session"
)

// Patient is one patient record as the backend returns it.
type Patient struct {
	PatientID         string    `json:"patient_id"`
	FullName          string    `json:"full_name"`
	DateOfBirth       string    `json:"date_of_birth"`
	Gender            string    `json:"gender"`
	NationalID        string    `json:"national_id"`
	Phone             string    `json:"phone"`
	Email             string    `json:"email,omitempty"`
	Address           string    `json:"address,omitempty"`
	BloodType         string    `json:"blood_type,omitempty"`
	Allergies         []string  `json:"allergies"`
	ChronicConditions []string  `json:"chronic_conditions"`
	CreatedAt         time.Time `json:"created_at"`
	CreatedBy         string    `json:"created_by"`
	LastUpdated       time.Time `json:"last_updated"`
}

// Create is the registration payload.
type Create struct {
	FullName          string   `json:"full_name"`
	DateOfBirth       string   `json:"date_of_birth"`
	Gender            string   `json:"gender"`
	NationalID        string   `json:"national_id"`
	Phone             string   `json:"phone"`
	Email             string   `json:"email,omitempty"`
	Address           string   `json:"address,omitempty"`
	BloodType         string   `json:"blood_type,omitempty"`
	Allergies         []string `json:"allergies,omitempty"`
	ChronicConditions []string `json:"chronic_conditions,omitempty"`
}

// Update carries the editable profile fields. The national id is immutable
// after registration and deliberately absent here.
type Update struct {
	FullName          *string   `json:"full_name,omitempty"`
	Phone             *string   `json:"phone,omitempty"`
	Email             *string   `json:"email,omitempty"`
	Address           *string   `json:"address,omitempty"`
	BloodType         *string   `json:"blood_type,omitempty"`
	Allergies         *[]string `json:"allergies,omitempty"`
	ChronicConditions *[]string `json:"chronic_conditions,omitempty"`
}

// Portfolio is a patient's profile together with their full session history,
// newest first.
type Portfolio struct {
	Patient  Patient           `json:"patient"`
	Sessions []session.Summary `json:"sessions"`
}
