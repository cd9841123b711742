package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Locale is a restaurant location (sede) as listed by getLocalesPermitidos.
type Locale struct {
	ID        string    `gorm:"primaryKey;size:32" json:"id"`
	Name      string    `gorm:"size:128" json:"name"`
	UpdatedAt time.Time `json:"-"`
}

func SortLocales(locales []Locale) {
	sort.SliceStable(locales, func(i, j int) bool {
		a, b := strings.ToLower(locales[i].Name), strings.ToLower(locales[j].Name)
		if a != b {
			return a < b
		}
		return locales[i].ID < locales[j].ID
	})
}

// ReplaceLocales swaps the stored list for locales.
func ReplaceLocales(db *gorm.DB, locales []Locale) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Locale{}).Error; err != nil {
			return fmt.Errorf("ReplaceLocales: delete: %w", err)
		}
		if len(locales) == 0 {
			return nil
		}
		if err := tx.Create(&locales).Error; err != nil {
			return fmt.Errorf("ReplaceLocales: create: %w", err)
		}
		return nil
	})
}

func FetchLocales(db *gorm.DB) ([]Locale, error) {
	var locales []Locale

	if err := db.Find(&locales).Error; err != nil {
		return nil, fmt.Errorf("FetchLocales: %w", err)
	}
	SortLocales(locales)

	return locales, nil
}

// LocaleFilter hides blacklisted locations and renames others for display.
type LocaleFilter struct {
	Blacklist map[string]struct{}
	Rename    map[string]string
}

func NewLocaleFilter(blacklist []string, rename map[string]string) LocaleFilter {
	f := LocaleFilter{
		Blacklist: make(map[string]struct{}, len(blacklist)),
		Rename:    rename,
	}
	for _, id := range blacklist {
		f.Blacklist[strings.TrimSpace(id)] = struct{}{}
	}

	return f
}

func (f LocaleFilter) Apply(locales []Locale) []Locale {
	out := make([]Locale, 0, len(locales))
	for _, l := range locales {
		if _, ok := f.Blacklist[l.ID]; ok {
			continue
		}
		if name, ok := f.Rename[l.ID]; ok && name != "" {
			l.Name = name
		}
		out = append(out, l)
	}

	return out
}

func FindLocaleByName(locales []Locale, name string) (Locale, bool) {
	name = strings.TrimSpace(name)
	for _, l := range locales {
		if l.Name == name {
			return l, true
		}
	}

	return Locale{}, false
}
