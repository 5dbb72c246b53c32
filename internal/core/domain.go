package core

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// MaxSplitChildren caps the number of children a single split may create.
	MaxSplitChildren = 20

	MaxDescriptionLength = 200
	MaxNoteLength        = 200
	MaxTagNameLength     = 80
	MaxGroupNameLength   = 80

	// SplitDescriptionPrefix is prepended to the parent's description on each child.
	SplitDescriptionPrefix = "Sub-item: "
)

// Setting keys accepted by the settings endpoints.
const (
	SettingInitialBalance      = "initial_balance"
	SettingFinalRunningBalance = "final_running_balance"
)

type (
	Date struct {
		time.Time
	}

	Transaction struct {
		ID           int64
		Date         Date
		Amount       decimal.Decimal
		Description  *string
		Note         *string
		ChildrenFlag bool
		DocFlag      bool
		ParentID     *int64
		CreatedAt    time.Time
		UpdatedAt    time.Time

		Tags      []Tag
		Documents []Document
	}

	TagGroup struct {
		ID   int64
		Name string
		Tags []Tag
	}

	Tag struct {
		ID         int64
		Name       string
		Color      *string
		TagGroupID int64
		// Group is populated by reads that join the owning group.
		Group *TagGroup
	}

	Setting struct {
		ID    int64
		Key   string
		Value *decimal.Decimal
	}

	Document struct {
		ID               int64
		TransactionID    int64
		OriginalFilename string
		StoredFilename   string
		MimeType         string
		SizeBytes        int64
		UploadedAt       time.Time
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// IsChild reports whether the transaction was created by a split.
func (t Transaction) IsChild() bool {
	return t.ParentID != nil
}

// TagIDs returns the ids of the tags currently attached to t.
func (t Transaction) TagIDs() []int64 {
	ids := make([]int64, 0, len(t.Tags))
	for _, tag := range t.Tags {
		ids = append(ids, tag.ID)
	}
	return ids
}

// ChildDescription builds the description given to every child of a split.
func (t Transaction) ChildDescription() string {
	desc := ""
	if t.Description != nil {
		desc = *t.Description
	}
	return SplitDescriptionPrefix + desc
}

// IsNumericSetting reports whether key is one of the recognized decimal settings.
func IsNumericSetting(key string) bool {
	switch key {
	case SettingInitialBalance, SettingFinalRunningBalance:
		return true
	}
	return false
}

// NumericSettingKeys lists the recognized decimal setting keys.
func NumericSettingKeys() []string {
	return []string{SettingInitialBalance, SettingFinalRunningBalance}
}

// ValidateTextField enforces the length limit on an optional free-text field.
func ValidateTextField(field string, value *string, max int) error {
	if value == nil {
		return nil
	}
	if len(*value) > max {
		return Validationf("'%s' is too long (max %d characters).", field, max)
	}
	return nil
}

// ValidateName checks a required tag or group name.
func ValidateName(field, name string, max int) error {
	if strings.TrimSpace(name) == "" {
		return Validationf("Missing '%s' in request body.", field)
	}
	if len(name) > max {
		return Validationf("'%s' is too long (max %d characters).", field, max)
	}
	return nil
}

// ValidateColor accepts nil or a 7 character #RRGGBB code.
func ValidateColor(color *string) error {
	if color == nil {
		return nil
	}
	c := *color
	if len(c) != 7 || c[0] != '#' {
		return Validationf("Invalid color '%s'. Use #RRGGBB.", c)
	}
	for _, r := range c[1:] {
		isHex := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
		if !isHex {
			return Validationf("Invalid color '%s'. Use #RRGGBB.", c)
		}
	}
	return nil
}

// ParseChildCount reads the number of children requested for a split.
// Integral JSON numbers and digit strings are accepted; the result must lie in
// [1, MaxSplitChildren].
func ParseChildCount(v any) (int, error) {
	invalid := Validationf("'num_children' must be an integer between 1 and %d.", MaxSplitChildren)

	var n int64
	switch val := v.(type) {
	case json.Number:
		i, err := strconv.ParseInt(val.String(), 10, 64)
		if err != nil {
			f, ferr := val.Float64()
			if ferr != nil || f != float64(int64(f)) {
				return 0, invalid
			}
			i = int64(f)
		}
		n = i
	case float64:
		if val != float64(int64(val)) {
			return 0, invalid
		}
		n = int64(val)
	case int:
		n = int64(val)
	case int64:
		n = val
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, invalid
		}
		n = i
	default:
		return 0, invalid
	}

	if n < 1 || n > MaxSplitChildren {
		return 0, invalid
	}
	return int(n), nil
}
