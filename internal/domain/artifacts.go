package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// UserData is caller supplied metadata attached at session creation.
type UserData struct {
	Name       string            `json:"name,omitempty" validate:"omitempty,max=200"`
	Email      string            `json:"email,omitempty" validate:"omitempty,email"`
	ExternalID string            `json:"externalId,omitempty" validate:"omitempty,max=128"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (u UserData) Clone() UserData {
	out := u
	if u.Metadata != nil {
		out.Metadata = make(map[string]string, len(u.Metadata))
		for k, v := range u.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

func (u UserData) Value() (driver.Value, error) { return jsonValue(u) }
func (u *UserData) Scan(src interface{}) error  { return scanJSON(src, u) }

// DocumentData references the stored identity document image.
type DocumentData struct {
	DocumentImagePath string `json:"documentImagePath"`
	DocumentType      string `json:"documentType"`
}

func (d DocumentData) Value() (driver.Value, error) { return jsonValue(d) }
func (d *DocumentData) Scan(src interface{}) error  { return scanJSON(src, d) }

// FacialData references the stored selfie and the optional liveness score
// reported by the capturing client.
type FacialData struct {
	SelfieImagePath string   `json:"selfieImagePath"`
	LivenessScore   *float64 `json:"livenessScore"`
}

func (f FacialData) Value() (driver.Value, error) { return jsonValue(f) }
func (f *FacialData) Scan(src interface{}) error  { return scanJSON(src, f) }

// NFCData is the chip read-out submitted by the client.
type NFCData struct {
	DocumentNumber    string `json:"documentNumber" validate:"required,max=64"`
	BirthDate         string `json:"birthDate,omitempty" validate:"omitempty,max=32"`
	GivenNames        string `json:"givenNames,omitempty" validate:"omitempty,max=200"`
	Surnames          string `json:"surnames,omitempty" validate:"omitempty,max=200"`
	Nationality       string `json:"nationality,omitempty" validate:"omitempty,max=3"`
	ExpiryDate        string `json:"expiryDate,omitempty" validate:"omitempty,max=32"`
	ChipAuthenticated bool   `json:"chipAuthenticated"`
}

func (n NFCData) Value() (driver.Value, error) { return jsonValue(n) }
func (n *NFCData) Scan(src interface{}) error  { return scanJSON(src, n) }

// FullName joins the chip name fields.
func (n NFCData) FullName() string {
	return strings.TrimSpace(strings.Join([]string{n.GivenNames, n.Surnames}, " "))
}

const (
	OverallApproved = "approved"
	OverallRejected = "rejected"
)

// PersonData holds the personal fields copied into a result.
type PersonData struct {
	Name           string `json:"name,omitempty"`
	DocumentNumber string `json:"documentNumber,omitempty"`
	BirthDate      string `json:"birthDate,omitempty"`
}

// VerificationResult is a synthesized summary written on a terminal transition.
type VerificationResult struct {
	OverallStatus  string     `json:"overallStatus"`
	Confidence     float64    `json:"confidence"`
	Timestamp      time.Time  `json:"timestamp"`
	VerificationID string     `json:"verificationId"`
	PersonData     PersonData `json:"personData"`
	Reason         string     `json:"reason,omitempty"`
}

func (r VerificationResult) Value() (driver.Value, error) { return jsonValue(r) }
func (r *VerificationResult) Scan(src interface{}) error  { return scanJSON(src, r) }

// PersonDataFrom picks personal fields from whichever payload supplied them.
// The caller's declared name wins over the chip name.
func PersonDataFrom(s *VerificationSession) PersonData {
	var p PersonData
	p.Name = s.UserData.Name
	if s.NFCData != nil {
		if p.Name == "" {
			p.Name = s.NFCData.FullName()
		}
		p.DocumentNumber = s.NFCData.DocumentNumber
		p.BirthDate = s.NFCData.BirthDate
	}
	return p
}

// jsonValue encodes v as text; lib/pq would send a []byte as bytea.
func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
}
