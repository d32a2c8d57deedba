/*
Package record models the raw per-user JSON blob stored in the user tree.

PURPOSE:
  One installed app instance = one UserRecord, keyed by a device-derived
  identifier. Records are written by several independent clients (the mobile
  app, geofencing callbacks, repair jobs) and have drifted across schema
  versions, so every sub-object here is optional and every field may be
  missing, null, or in a legacy shape.

STRUCTURAL DRIFT HANDLED IN THIS FILE:
  - attendance entries are either a bare status string ("office") or an
    object {status, checkInTime, timestamp}; both decode into Entry
  - profile (the newer "userData" section) may be entirely absent even for
    records with months of attendance history
  - settings is the legacy predecessor of profile and may disagree with it

The accessor layer in access.go resolves effective values across these
shapes. Decoding is tolerant: an unexpected shape in one field never fails
the whole record.

SEE ALSO:
  - access.go: effective-value accessors used by the evaluator
  - store/userdb: fetches the raw tree this package decodes
*/
package record

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// CORE TYPES
// =============================================================================

// DateKey is an ISO calendar date string ("2026-01-20") used as a map key
// throughout the user tree. Comparisons are plain string equality.
type DateKey = string

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformUnknown Platform = "unknown"
)

type TrackingMode string

const (
	TrackingManual TrackingMode = "manual"
	TrackingAuto   TrackingMode = "auto"
)

type TargetMode string

const (
	TargetPercentage TargetMode = "percentage"
	TargetFixedDays  TargetMode = "fixed_days"
)

// Attendance status values written by the mobile client.
const (
	StatusOffice = "office"
	StatusRemote = "remote"
	StatusLeave  = "leave"
)

// UserRecord is the typed view over one user's subtree.
type UserRecord struct {
	ID                 string                        `json:"id"`
	Platform           Platform                      `json:"platform,omitempty"`
	DeviceModel        string                        `json:"deviceModel,omitempty"`
	PushToken          string                        `json:"pushToken,omitempty"`
	PushTokenUpdatedAt int64                         `json:"pushTokenUpdatedAt,omitempty"` // ms since epoch
	Profile            *Profile                      `json:"userData,omitempty"`
	Settings           *Settings                     `json:"settings,omitempty"`
	Attendance         map[DateKey]Entry             `json:"attendance,omitempty"`
	PlannedDays        map[DateKey]string            `json:"plannedDays,omitempty"`
	CachedHolidays     map[string]map[DateKey]string `json:"cachedHolidays,omitempty"` // keyed "<country>_<year>"
	NearOffice         *GeofenceTrigger              `json:"nearOffice,omitempty"`
}

// Profile is the current-generation per-user configuration section.
type Profile struct {
	CompanyName          string       `json:"companyName,omitempty"`
	CompanyAddress       string       `json:"companyAddress,omitempty"`
	CompanyLocation      *LatLng      `json:"companyLocation,omitempty"`
	TrackingMode         TrackingMode `json:"trackingMode,omitempty"`
	TargetMode           TargetMode   `json:"targetMode,omitempty"`
	MonthlyTarget        int          `json:"monthlyTarget,omitempty"`
	Country              string       `json:"country,omitempty"`
	CountryName          string       `json:"countryName,omitempty"`
	NotificationsEnabled bool         `json:"notificationsEnabled,omitempty"`
}

// Settings is the legacy configuration section, superseded by Profile.
type Settings struct {
	TrackingMode  TrackingMode `json:"trackingMode,omitempty"`
	MonthlyTarget int          `json:"monthlyTarget,omitempty"`
	TargetMode    TargetMode   `json:"targetMode,omitempty"`
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeofenceTrigger is written by the location-triggered external process when
// a device is detected near the configured office. Absence means geofencing
// has never fired for this user.
type GeofenceTrigger struct {
	Detected  bool    `json:"detected"`
	Date      DateKey `json:"date,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// =============================================================================
// ATTENDANCE ENTRY - string-or-object drift
// =============================================================================

// Entry is one attendance mark. Legacy writers stored a bare status string;
// newer clients store an object with check-in metadata.
type Entry struct {
	Status      string `json:"status"`
	CheckInTime string `json:"checkInTime,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`

	// null records that the stored value was an explicit JSON null: the
	// key exists but nothing was logged. LoggedOn must not count these.
	null bool
}

// IsNull reports whether the entry was stored as an explicit JSON null.
func (e Entry) IsNull() bool { return e.null }

func (e *Entry) UnmarshalJSON(data []byte) error {
	// Explicit null: a deleted or never-written mark under a surviving key.
	if bytes.Equal(data, []byte("null")) {
		*e = Entry{null: true}
		return nil
	}

	// Bare string form: "office"
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Status = s
		return nil
	}

	// Object form. Alias avoids recursing into this method.
	type entryObject Entry
	var obj entryObject
	if err := json.Unmarshal(data, &obj); err == nil {
		*e = Entry(obj)
		return nil
	}

	// Unknown shape (number, array, ...). Treat as an empty mark rather
	// than failing the record.
	*e = Entry{}
	return nil
}

func (e Entry) MarshalJSON() ([]byte, error) {
	if e.null {
		return []byte("null"), nil
	}
	if e.CheckInTime == "" && e.Timestamp == 0 {
		return json.Marshal(e.Status)
	}
	type entryObject Entry
	return json.Marshal(entryObject(e))
}

// =============================================================================
// RECORD ID PARSING
// =============================================================================

// CreatedAt extracts the creation time encoded in the record id. Ids are
// "<device model>_<13-digit ms timestamp>_<random suffix>", but device
// models may themselves contain underscores, so the fields are scanned from
// the right for the first plausible millisecond timestamp. Returns the zero
// time when no field parses.
func (r *UserRecord) CreatedAt() time.Time {
	parts := strings.Split(r.ID, "_")
	for i := len(parts) - 1; i >= 0; i-- {
		p := parts[i]
		if len(p) != 13 {
			continue
		}
		ms, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		return time.UnixMilli(ms)
	}
	return time.Time{}
}
