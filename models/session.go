package models

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"
)

const singletonID = 1

const MaskedPassword = "********"

// Credentials are the restaurant.pe back-office login fields.
type Credentials struct {
	ID              uint      `gorm:"primaryKey" json:"-"`
	UsuarioNick     string    `json:"usuario_nick,omitempty"`
	UsuarioClave    string    `json:"usuario_clave,omitempty"`
	UsuarioRecordar string    `json:"usuario_recordar,omitempty"`
	LocalID         string    `json:"local_id,omitempty"`
	TurnoID         string    `json:"turno_id,omitempty"`
	CajaID          string    `json:"caja_id,omitempty"`
	App             string    `json:"app,omitempty"`
	UpdatedAt       time.Time `json:"-"`
}

func (c Credentials) Masked() Credentials {
	if c.UsuarioClave != "" {
		c.UsuarioClave = MaskedPassword
	}

	return c
}

// Merge copies the non-blank fields of update as sent and reports whether any was present.
func (c *Credentials) Merge(update Credentials) bool {
	changed := false
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) == "" {
			return
		}
		*dst = v
		changed = true
	}

	set(&c.UsuarioNick, update.UsuarioNick)
	set(&c.UsuarioClave, update.UsuarioClave)
	set(&c.UsuarioRecordar, update.UsuarioRecordar)
	set(&c.LocalID, update.LocalID)
	set(&c.TurnoID, update.TurnoID)
	set(&c.CajaID, update.CajaID)
	set(&c.App, update.App)

	return changed
}

// WithDefaults fills the login form values restaurant.pe expects when none were configured.
func (c Credentials) WithDefaults() Credentials {
	def := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	def(&c.UsuarioRecordar, "1")
	def(&c.LocalID, "1")
	def(&c.TurnoID, "1")
	def(&c.CajaID, "29")
	def(&c.App, "Web")

	return c
}

func (c Credentials) FormData() map[string]string {
	c = c.WithDefaults()

	return map[string]string{
		"usuario_nick":     c.UsuarioNick,
		"usuario_clave":    c.UsuarioClave,
		"usuario_recordar": c.UsuarioRecordar,
		"local_id":         c.LocalID,
		"turno_id":         c.TurnoID,
		"caja_id":          c.CajaID,
		"app":              c.App,
	}
}

func FetchCredentials(db *gorm.DB) (*Credentials, error) {
	var c Credentials

	tx := db.Limit(1).Find(&c, singletonID)
	if tx.Error != nil {
		return nil, fmt.Errorf("FetchCredentials: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, ErrNoCredentials
	}

	return &c, nil
}

func SaveCredentials(db *gorm.DB, c *Credentials) error {
	c.ID = singletonID
	if err := db.Save(c).Error; err != nil {
		return fmt.Errorf("SaveCredentials: %w", err)
	}

	return nil
}

type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain,omitempty"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
}

func NewCookie(c *http.Cookie) Cookie {
	return Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Expires:  c.Expires,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
	}
}

func (c Cookie) HTTP() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Expires:  c.Expires,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
	}
}

// Session is the persisted restaurant.pe session: API token plus browser cookies.
type Session struct {
	ID        uint   `gorm:"primaryKey"`
	Token     string `gorm:"size:512"`
	Cookies   string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (s Session) CookieList() []Cookie {
	var cookies []Cookie
	if s.Cookies == "" {
		return cookies
	}
	if err := json.Unmarshal([]byte(s.Cookies), &cookies); err != nil {
		return nil
	}

	return cookies
}

func (s Session) HTTPCookies() []*http.Cookie {
	var out []*http.Cookie
	for _, c := range s.CookieList() {
		if c.Name == "" {
			continue
		}
		out = append(out, c.HTTP())
	}

	return out
}

func (s *Session) SetCookies(cookies []Cookie) error {
	raw, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("SetCookies: %w", err)
	}
	s.Cookies = string(raw)

	return nil
}

// FetchSession returns the stored session, or an empty one when none was saved yet.
func FetchSession(db *gorm.DB) (*Session, error) {
	var s Session

	if err := db.Limit(1).Find(&s, singletonID).Error; err != nil {
		return nil, fmt.Errorf("FetchSession: %w", err)
	}
	s.ID = singletonID

	return &s, nil
}

func SaveSession(db *gorm.DB, s *Session) error {
	s.ID = singletonID
	if err := db.Save(s).Error; err != nil {
		return fmt.Errorf("SaveSession: %w", err)
	}

	return nil
}
