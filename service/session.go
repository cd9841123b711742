package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salchimonster/restaurant-reports/models"
	"salchimonster/restaurant-reports/service/browser"
	"salchimonster/restaurant-reports/service/external"
)

// Broadcaster fans a JSON message out to the connected dashboards.
type Broadcaster interface {
	Broadcast(ctx context.Context, v interface{})
}

// LoginEvent is one progress step of a login, streamed on /credentials/ws.
type LoginEvent struct {
	Step        string              `json:"step"`
	Message     string              `json:"message"`
	Success     *bool               `json:"success,omitempty"`
	Credentials *models.Credentials `json:"credentials,omitempty"`
}

type FormLoginFunc func(ctx context.Context, creds models.Credentials, cookies []models.Cookie) (*browser.FormLoginResult, error)

type LoginOutcome struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Tipo         string `json:"tipo,omitempty"`
	Token        string `json:"token,omitempty"`
	SavedCookies int    `json:"saved_cookies"`
}

type CookiesInfo struct {
	Count int      `json:"count"`
	Names []string `json:"names"`
}

// SessionService owns the restaurant.pe credentials and the session obtained with them.
type SessionService struct {
	db        *gorm.DB
	api       external.RestaurantAPI
	formLogin FormLoginFunc
	progress  Broadcaster

	mu sync.Mutex
}

func NewSessionService(db *gorm.DB, api external.RestaurantAPI, formLogin FormLoginFunc, progress Broadcaster) *SessionService {
	return &SessionService{
		db:        db,
		api:       api,
		formLogin: formLogin,
		progress:  progress,
	}
}

func (s *SessionService) emit(ctx context.Context, step string, message string, success *bool) {
	log.WithField("step", step).Debug(message)
	if s.progress == nil {
		return
	}
	s.progress.Broadcast(ctx, LoginEvent{Step: step, Message: message, Success: success})
}

func boolPtr(b bool) *bool {
	return &b
}

func (s *SessionService) Credentials() (models.Credentials, error) {
	creds, err := models.FetchCredentials(s.db)
	if err != nil {
		return models.Credentials{}, err
	}

	return creds.Masked(), nil
}

// UpdateCredentials merges the non-empty fields of update over the stored credentials.
func (s *SessionService) UpdateCredentials(update models.Credentials) (models.Credentials, error) {
	current, err := models.FetchCredentials(s.db)
	if errors.Is(err, models.ErrNoCredentials) {
		current = &models.Credentials{}
	} else if err != nil {
		return models.Credentials{}, err
	}

	if !current.Merge(update) {
		return models.Credentials{}, fmt.Errorf("Envía al menos un campo para actualizar: %w", models.ErrInvalidInput)
	}

	if err = models.SaveCredentials(s.db, current); err != nil {
		return models.Credentials{}, err
	}

	return current.Masked(), nil
}

func (s *SessionService) Session() (*models.Session, error) {
	return models.FetchSession(s.db)
}

func (s *SessionService) saveSession(token string, cookies []models.Cookie) (int, error) {
	session, err := models.FetchSession(s.db)
	if err != nil {
		return 0, err
	}

	if token != "" {
		session.Token = token
	}
	if err = session.SetCookies(cookies); err != nil {
		return 0, err
	}
	if err = models.SaveSession(s.db, session); err != nil {
		return 0, err
	}

	return len(cookies), nil
}

func (s *SessionService) loadForLogin(ctx context.Context) (*models.Credentials, *models.Session, error) {
	creds, err := models.FetchCredentials(s.db)
	if err != nil {
		s.emit(ctx, "error", "No hay credenciales guardadas.", boolPtr(false))
		return nil, nil, err
	}

	session, err := models.FetchSession(s.db)
	if err != nil {
		s.emit(ctx, "error", err.Error(), boolPtr(false))
		return nil, nil, err
	}

	return creds, session, nil
}

func (s *SessionService) fail(ctx context.Context, err error) error {
	msg := err.Error()
	var upstream *external.UpstreamError
	if errors.As(err, &upstream) {
		msg = upstream.Message
	}
	s.emit(ctx, "error", msg, boolPtr(false))
	log.Warnf("Login: falló - %s", msg)

	return err
}

func toCookies(httpCookies []*http.Cookie) []models.Cookie {
	cookies := make([]models.Cookie, 0, len(httpCookies))
	for _, c := range httpCookies {
		cookies = append(cookies, models.NewCookie(c))
	}

	return cookies
}

// Login posts the credentials to the restaurant.pe login API and stores the session.
func (s *SessionService) Login(ctx context.Context) (*LoginOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.emit(ctx, "start", "Iniciando login...", nil)

	creds, session, err := s.loadForLogin(ctx)
	if err != nil {
		return nil, err
	}
	log.Infof("Login: inicio - usuario=%s", creds.UsuarioNick)
	s.emit(ctx, "credentials_loaded", "Credenciales cargadas. Abriendo sesión...", nil)

	s.emit(ctx, "navigating", "Navegando a la página de login...", nil)
	s.emit(ctx, "sending_login", "Enviando credenciales al servidor...", nil)
	result, err := s.api.Login(ctx, *creds, session.HTTPCookies())
	if err != nil {
		var upstream *external.UpstreamError
		if errors.As(err, &upstream) && len(upstream.Cookies) > 0 {
			if _, saveErr := s.saveSession("", toCookies(upstream.Cookies)); saveErr != nil {
				log.Warnf("Login: no se pudieron guardar cookies: %v", saveErr)
			}
		}
		return nil, s.fail(ctx, err)
	}

	s.emit(ctx, "saving_session", "Guardando sesión y cookies...", nil)
	saved, err := s.saveSession(result.Token, toCookies(result.Cookies))
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	message := result.Message
	if message == "" {
		message = "Login realizado"
	}
	s.emit(ctx, "done", message, boolPtr(true))
	log.Infof("Login: OK (%d cookies)", saved)

	return &LoginOutcome{
		Success:      true,
		Message:      message,
		Tipo:         result.Tipo,
		Token:        result.Token,
		SavedCookies: saved,
	}, nil
}

// FormLogin logs in by filling the login page in a headless browser.
func (s *SessionService) FormLogin(ctx context.Context) (*LoginOutcome, error) {
	if s.formLogin == nil {
		return nil, fmt.Errorf("login por formulario no disponible: %w", models.ErrUnavailable)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.emit(ctx, "start", "Iniciando login (formulario)...", nil)

	creds, session, err := s.loadForLogin(ctx)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, "credentials_loaded", "Credenciales cargadas. Lanzando navegador...", nil)

	s.emit(ctx, "navigating", "Navegando a la página de login...", nil)
	result, err := s.formLogin(ctx, *creds, session.CookieList())
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	s.emit(ctx, "saving_session", "Guardando sesión y cookies...", nil)
	saved, err := s.saveSession(result.Token, result.Cookies)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	s.emit(ctx, "done", result.Message, boolPtr(true))

	return &LoginOutcome{
		Success:      true,
		Message:      result.Message,
		Token:        result.Token,
		SavedCookies: saved,
	}, nil
}

// UpdateAndLogin saves the credentials, logs in and reports the outcome on the progress
// channel. The masked credentials are returned even when the login fails.
func (s *SessionService) UpdateAndLogin(ctx context.Context, update models.Credentials) (*LoginOutcome, models.Credentials, error) {
	masked, err := s.UpdateCredentials(update)
	if err != nil {
		return nil, masked, err
	}
	s.emit(ctx, "credentials_saved", "Credenciales guardadas. Iniciando login...", nil)

	outcome, loginErr := s.Login(ctx)

	result := LoginEvent{Step: "result", Credentials: &masked}
	if loginErr != nil {
		result.Message = loginErr.Error()
		var upstream *external.UpstreamError
		if errors.As(loginErr, &upstream) {
			result.Message = upstream.Message
		}
		result.Success = boolPtr(false)
	} else {
		result.Message = outcome.Message
		result.Success = boolPtr(true)
	}
	if s.progress != nil {
		s.progress.Broadcast(ctx, result)
	}

	return outcome, masked, loginErr
}

func (s *SessionService) Cookies() (CookiesInfo, error) {
	session, err := models.FetchSession(s.db)
	if err != nil {
		return CookiesInfo{}, err
	}

	info := CookiesInfo{Names: []string{}}
	for _, c := range session.CookieList() {
		info.Names = append(info.Names, c.Name)
	}
	info.Count = len(info.Names)

	return info, nil
}

func (s *SessionService) ClearCookies() error {
	_, err := s.saveSession("", []models.Cookie{})
	return err
}

// Token returns the token of the last successful login.
func (s *SessionService) Token() (string, error) {
	session, err := models.FetchSession(s.db)
	if err != nil {
		return "", err
	}
	if session.Token == "" {
		return "", models.ErrNoToken
	}

	return session.Token, nil
}

// RefreshLoop logs in again every interval to keep the session alive.
func (s *SessionService) RefreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Infof("Login refresh: ejecutando login (cada %s)", interval)
			if _, err := s.Login(ctx); err != nil {
				log.Warnf("Login refresh: falló - %v", err)
				continue
			}
			log.Info("Login refresh: OK, token renovado")
		}
	}
}
