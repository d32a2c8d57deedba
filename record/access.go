package record

import "strings"

// =============================================================================
// ACCESSOR LAYER
// =============================================================================
// Effective-value resolution across schema drift. All accessors are pure
// reads and never fail on missing sub-objects: a missing intermediate
// resolves to the documented default, mirroring the optional-chaining
// semantics the mobile clients rely on.

// TokenPrefix is the push relay's registration token format marker. A token
// without it is treated as invalid without calling the relay.
const TokenPrefix = "ExponentPushToken["

// DefaultMonthlyTarget applies when neither profile nor settings carries a
// target (legacy records).
const DefaultMonthlyTarget = 50

// EffectiveTrackingMode resolves profile, then legacy settings, then manual.
func (r *UserRecord) EffectiveTrackingMode() TrackingMode {
	if r.Profile != nil && r.Profile.TrackingMode != "" {
		return r.Profile.TrackingMode
	}
	if r.Settings != nil && r.Settings.TrackingMode != "" {
		return r.Settings.TrackingMode
	}
	return TrackingManual
}

// EffectiveTargetMode resolves profile, then legacy settings, then percentage.
func (r *UserRecord) EffectiveTargetMode() TargetMode {
	if r.Profile != nil && r.Profile.TargetMode != "" {
		return r.Profile.TargetMode
	}
	if r.Settings != nil && r.Settings.TargetMode != "" {
		return r.Settings.TargetMode
	}
	return TargetPercentage
}

// EffectiveMonthlyTarget resolves profile, then legacy settings, then 50.
// The meaning depends on EffectiveTargetMode: a percentage of adjusted
// working days, or a verbatim day count.
func (r *UserRecord) EffectiveMonthlyTarget() int {
	if r.Profile != nil && r.Profile.MonthlyTarget > 0 {
		return r.Profile.MonthlyTarget
	}
	if r.Settings != nil && r.Settings.MonthlyTarget > 0 {
		return r.Settings.MonthlyTarget
	}
	return DefaultMonthlyTarget
}

// EffectivePlatform returns the stored platform verbatim when the field is
// set, even when it is "unknown". Inference from the device model / record
// id runs only for records that predate the field.
func (r *UserRecord) EffectivePlatform() Platform {
	if r.Platform != "" {
		return r.Platform
	}
	haystack := strings.ToLower(r.DeviceModel + " " + r.ID)
	if strings.Contains(haystack, "iphone") || strings.Contains(haystack, "ipad") {
		return PlatformIOS
	}
	return PlatformUnknown
}

// HasValidPushToken reports whether the record carries a token in the
// relay's expected format.
func (r *UserRecord) HasValidPushToken() bool {
	return strings.HasPrefix(r.PushToken, TokenPrefix)
}

// LoggedOn reports whether an attendance mark exists for the date. Both the
// bare-string and object entry forms count; an entry with an empty status
// still counts. A stored JSON null does not: the key survived but nothing
// was logged, and the user should still be reminded.
func (r *UserRecord) LoggedOn(date DateKey) bool {
	e, ok := r.Attendance[date]
	return ok && !e.IsNull()
}

// StatusOn returns the attendance status for the date, or "" when no mark
// exists.
func (r *UserRecord) StatusOn(date DateKey) string {
	return r.Attendance[date].Status
}

// IsHoliday reports whether any cached country-year holiday map contains the
// date. Legacy records can carry caches for several countries at once; all
// are scanned.
func (r *UserRecord) IsHoliday(date DateKey) bool {
	for _, dates := range r.CachedHolidays {
		if _, ok := dates[date]; ok {
			return true
		}
	}
	return false
}

// HolidayDates returns the union of all cached holiday dates, deduplicated.
// Accounting uses this so a date cached under two countries counts once.
func (r *UserRecord) HolidayDates() map[DateKey]struct{} {
	out := make(map[DateKey]struct{})
	for _, dates := range r.CachedHolidays {
		for d := range dates {
			out[d] = struct{}{}
		}
	}
	return out
}

// GeofenceDetectedOn reports whether the geofence trigger fired for the
// given date.
func (r *UserRecord) GeofenceDetectedOn(date DateKey) bool {
	return r.NearOffice != nil && r.NearOffice.Detected && r.NearOffice.Date == date
}

// MissingProfile reports the dominant defect class in the fleet: a record
// with attendance history but no profile section. These are the records the
// repair path backfills with defaults.
func (r *UserRecord) MissingProfile() bool {
	return r.Profile == nil && len(r.Attendance) > 0
}

// NotificationsEnabled defaults to true when the profile is absent: legacy
// records predate the setting and were always notified.
func (r *UserRecord) NotificationsEnabled() bool {
	if r.Profile == nil {
		return true
	}
	return r.Profile.NotificationsEnabled
}
