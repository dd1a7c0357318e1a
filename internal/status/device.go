package status

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoPadCode is returned for a record without a pad code.
var ErrNoPadCode = errors.New("device record has no pad_code")

// Device is one device-status record as published by the dashboard backend.
// Timestamps are kept as sent.
type Device struct {
	PadCode           string  `json:"pad_code"`
	CurrentStatus     string  `json:"current_status"`
	NumberOfRun       int     `json:"number_of_run"`
	NumOfSuccess      int     `json:"num_of_success"`
	NumOfError        int     `json:"num_of_error"`
	TempleID          int     `json:"temple_id"`
	PhoneNumberCounts int     `json:"phone_number_counts"`
	ForwardNum        int     `json:"forward_num"`
	SecondaryEmailNum int     `json:"secondary_email_num"`
	Country           string  `json:"country"`
	Code              string  `json:"code"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	Language          string  `json:"language"`
	TimeZone          string  `json:"time_zone"`
	Proxy             string  `json:"proxy"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

// SuccessRate returns successes over runs as a percentage.
func (d Device) SuccessRate() float64 {
	if d.NumberOfRun <= 0 {
		return 0
	}
	return float64(d.NumOfSuccess) / float64(d.NumberOfRun) * 100
}

// matches reports whether term (already lower-cased) occurs in any searchable field.
func (d Device) matches(term string) bool {
	for _, field := range []string{d.PadCode, d.Code, d.Proxy, d.CurrentStatus} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// decodeDevices requires a JSON array. null or a missing list is not an empty fleet.
func decodeDevices(raw json.RawMessage) ([]Device, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("device list is not a JSON array")
	}
	var devices []Device
	if err := json.Unmarshal(trimmed, &devices); err != nil {
		return nil, fmt.Errorf("decode device list: %w", err)
	}
	return devices, nil
}
