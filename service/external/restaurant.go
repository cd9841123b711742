package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"salchimonster/restaurant-reports/config"
	"salchimonster/restaurant-reports/models"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

// ErrUnauthorized means restaurant.pe rejected the token (tipo "401").
var ErrUnauthorized = errors.New("restaurant.pe: token inválido o expirado")

// UpstreamError is a failed restaurant.pe answer with a message fit for the dashboard.
// Cookies holds what the jar collected before the failure, when there was a response.
type UpstreamError struct {
	Status  int
	Message string
	Cookies []*http.Cookie
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("restaurant.pe HTTP %d: %s", e.Status, e.Message)
}

type RestaurantAPI interface {
	Login(ctx context.Context, creds models.Credentials, cookies []*http.Cookie) (*LoginResult, error)
	Locales(ctx context.Context, session models.Session) ([]models.Locale, error)
	Deliveries(ctx context.Context, session models.Session, localID string) ([]models.DeliveryRow, error)
	SalesReport(ctx context.Context, session models.Session, desde string, hasta string) ([]byte, error)
}

type RestaurantClient struct {
	cfg       config.Restaurant
	http      *resty.Client
	jar       http.CookieJar
	cookieURL *url.URL
	pageSize  int
	maxRows   int
	now       func() time.Time
}

func NewRestaurantClient(cfg config.Restaurant) (*RestaurantClient, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("NewRestaurantClient: invalid base url: %w", err)
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	if cfg.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	client.SetHeader("user-agent", cfg.UserAgent)
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 60
	}
	client.SetTimeout(time.Duration(timeout) * time.Second)

	return &RestaurantClient{
		cfg:       cfg,
		http:      client,
		jar:       jar,
		cookieURL: base.ResolveReference(&url.URL{Path: cfg.LoginAPIPath}),
		pageSize:  50,
		maxRows:   100,
		now:       time.Now,
	}, nil
}

// WithPaging sets the deliveries page size and the per-location row cap.
func (c *RestaurantClient) WithPaging(pageSize int, maxRows int) *RestaurantClient {
	if pageSize > 0 {
		c.pageSize = pageSize
	}
	if maxRows > 0 {
		c.maxRows = maxRows
	}

	return c
}

// LoginResponseDTO is the body of usuario/login.
type LoginResponseDTO struct {
	Tipo     interface{}     `json:"tipo"`
	Mensajes interface{}     `json:"mensajes"`
	Message  interface{}     `json:"message"`
	Detail   interface{}     `json:"detail"`
	Error    interface{}     `json:"error"`
	Data     json.RawMessage `json:"data"`
}

// message returns the first usable text among mensajes, message, detail and error.
func (dto *LoginResponseDTO) message(def string) string {
	for _, val := range []interface{}{dto.Mensajes, dto.Message, dto.Detail, dto.Error} {
		switch v := val.(type) {
		case []interface{}:
			if len(v) > 0 {
				return CleanServerErrorMessage(fmt.Sprint(v[0]))
			}
		case string:
			if v != "" {
				return CleanServerErrorMessage(v)
			}
		}
	}

	return def
}

func (dto *LoginResponseDTO) token() string {
	var data struct {
		Token string `json:"token"`
	}
	if len(dto.Data) == 0 || json.Unmarshal(dto.Data, &data) != nil {
		return ""
	}

	return data.Token
}

func (dto *LoginResponseDTO) ConvertToLoginResult(cookies []*http.Cookie) *LoginResult {
	msg := "Login realizado"
	if list, ok := dto.Mensajes.([]interface{}); ok && len(list) > 0 {
		msg = fmt.Sprint(list[0])
	} else {
		msg = dto.message(msg)
	}

	tipo := ""
	if dto.Tipo != nil {
		tipo = fmt.Sprint(dto.Tipo)
	}

	return &LoginResult{
		Message: msg,
		Tipo:    tipo,
		Token:   dto.token(),
		Cookies: cookies,
	}
}

type LoginResult struct {
	Message string
	Tipo    string
	Token   string
	Cookies []*http.Cookie
}

// Login opens the login page to collect session cookies and posts the login form.
func (c *RestaurantClient) Login(ctx context.Context, creds models.Credentials, cookies []*http.Cookie) (*LoginResult, error) {
	if len(cookies) > 0 {
		c.jar.SetCookies(c.cookieURL, cookies)
	}

	loginPage := strings.SplitN(c.cfg.LoginPath, "#", 2)[0]
	if _, err := c.http.R().SetContext(ctx).Get(loginPage); err != nil {
		return nil, fmt.Errorf("Login: failed to open login page: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetFormData(creds.FormData()).
		Post(c.cfg.LoginAPIPath)
	if err != nil {
		return nil, fmt.Errorf("Login: failed to post credentials: %w", err)
	}

	raw := string(resp.Body())
	var dto LoginResponseDTO
	jsonErr := json.Unmarshal(resp.Body(), &dto)
	htmlErr := jsonErr != nil && IsHTMLError(raw)

	log.Debugf("Login: respuesta HTTP %d", resp.StatusCode())

	if resp.StatusCode() != http.StatusOK || htmlErr {
		var msg string
		switch {
		case htmlErr:
			msg = CleanServerErrorMessage(raw)
		case jsonErr == nil:
			msg = dto.message(fmt.Sprintf("Login falló (HTTP %d)", resp.StatusCode()))
		case strings.TrimSpace(raw) != "":
			msg = CleanServerErrorMessage(truncate(raw, 2000))
		default:
			msg = fmt.Sprintf("Login falló (HTTP %d)", resp.StatusCode())
		}

		status := resp.StatusCode()
		if status == http.StatusOK {
			status = http.StatusBadGateway
		}

		return nil, &UpstreamError{Status: status, Message: msg, Cookies: c.Cookies()}
	}

	if jsonErr != nil {
		return &LoginResult{Message: CleanServerErrorMessage(truncate(raw, 2000)), Cookies: c.Cookies()}, nil
	}

	return dto.ConvertToLoginResult(c.Cookies()), nil
}

// Cookies returns the cookies the jar holds for restaurant.pe.
func (c *RestaurantClient) Cookies() []*http.Cookie {
	return c.jar.Cookies(c.cookieURL)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n]
}

func authorization(token string) string {
	return fmt.Sprintf(`Token token="%s"`, token)
}

func (c *RestaurantClient) authorized(ctx context.Context, session models.Session) (*resty.Request, error) {
	if session.Token == "" {
		return nil, models.ErrNoToken
	}

	return c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", authorization(session.Token)).
		SetCookies(session.HTTPCookies()), nil
}

type tipoDTO struct {
	Tipo interface{} `json:"tipo"`
}

func (t tipoDTO) unauthorized() bool {
	return t.Tipo != nil && fmt.Sprint(t.Tipo) == "401"
}

type LocaleDTO struct {
	LocalID          interface{} `json:"local_id"`
	LocalDescripcion string      `json:"local_descripcion"`
}

func (dto LocaleDTO) ConvertToLocale() (models.Locale, bool) {
	name := strings.TrimSpace(dto.LocalDescripcion)
	if name == "" {
		return models.Locale{}, false
	}

	id := ""
	if dto.LocalID != nil {
		id = strings.TrimSpace(fmt.Sprint(dto.LocalID))
	}

	return models.Locale{ID: id, Name: name}, true
}

type LocalesResponseDTO struct {
	tipoDTO
	Data []json.RawMessage `json:"data"`
}

// Locales lists the locations the logged user may see, sorted by name.
func (c *RestaurantClient) Locales(ctx context.Context, session models.Session) ([]models.Locale, error) {
	req, err := c.authorized(ctx, session)
	if err != nil {
		return nil, err
	}

	resp, err := req.SetHeader("Content-Type", "application/json").SetBody("{}").Post(c.cfg.LocalesPath)
	if err != nil {
		return nil, fmt.Errorf("Locales: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &UpstreamError{Status: resp.StatusCode(), Message: fmt.Sprintf("Locales API: HTTP %d", resp.StatusCode())}
	}

	var dto LocalesResponseDTO
	if err := json.Unmarshal(resp.Body(), &dto); err != nil {
		return nil, &UpstreamError{Status: http.StatusBadGateway, Message: "Locales API: respuesta no es JSON"}
	}
	if dto.unauthorized() {
		return nil, ErrUnauthorized
	}
	if dto.Data == nil {
		return nil, &UpstreamError{Status: http.StatusBadGateway, Message: "Locales API: data no es lista"}
	}

	locales := make([]models.Locale, 0, len(dto.Data))
	for _, raw := range dto.Data {
		var row LocaleDTO
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		if l, ok := row.ConvertToLocale(); ok {
			locales = append(locales, l)
		}
	}
	models.SortLocales(locales)

	return locales, nil
}

// Deliveries pages through obtenerDeliverysPorLocalSimple until a short or empty
// page, an error, an unauthorised answer or MaxDeliveriesPerLocal rows.
func (c *RestaurantClient) Deliveries(ctx context.Context, session models.Session, localID string) ([]models.DeliveryRow, error) {
	var all []models.DeliveryRow
	page, offset := 1, 0
	for len(all) < c.maxRows {
		req, err := c.authorized(ctx, session)
		if err != nil {
			return nil, err
		}

		path := fmt.Sprintf("%s/obtenerDeliverysPorLocalSimple/%s/%d/%d/%d", c.cfg.DeliveryPath, url.PathEscape(localID), page, c.pageSize, offset)
		resp, err := req.Get(path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warnf("Deliveries: local %s: %v", localID, err)
			break
		}
		if resp.StatusCode() != http.StatusOK {
			log.Warnf("Deliveries: local %s: HTTP %d", localID, resp.StatusCode())
			break
		}

		p, ok := decodeDeliveriesPage(resp.Body())
		if !ok || p.unauthorized || len(p.rows) == 0 {
			break
		}

		all = append(all, p.rows...)
		if p.bare || len(p.rows) < c.pageSize {
			break
		}

		offset += c.pageSize
		page++
	}

	if len(all) > c.maxRows {
		all = all[:c.maxRows]
	}

	return all, nil
}

type deliveriesPage struct {
	rows         []models.DeliveryRow
	bare         bool
	unauthorized bool
}

// decodeDeliveriesPage accepts {"tipo","data":[...]} or a bare array, which is the whole result.
func decodeDeliveriesPage(body []byte) (deliveriesPage, bool) {
	if strings.HasPrefix(strings.TrimSpace(string(body)), "[") {
		var rows []models.DeliveryRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return deliveriesPage{}, false
		}
		return deliveriesPage{rows: rows, bare: true}, true
	}

	var dto struct {
		tipoDTO
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &dto); err != nil {
		return deliveriesPage{}, false
	}
	if dto.unauthorized() {
		return deliveriesPage{unauthorized: true}, true
	}

	var rows []models.DeliveryRow
	if len(dto.Data) > 0 {
		_ = json.Unmarshal(dto.Data, &rows)
	}

	return deliveriesPage{rows: rows}, true
}

var reportDefaultParams = map[string]string{
	"page":             "informeventasv3_informeventas",
	"type":             "excel",
	"or":               "L",
	"caja":             "-1",
	"doc":              "-1",
	"estado":           "1",
	"turno":            "-1",
	"ordenarDoc":       "0",
	"local":            "-1",
	"serie":            "-1",
	"numero":           "-1",
	"tipoventa":        "-1",
	"filtroreservas":   "-1",
	"tipoemision":      "-1",
	"moneda_id":        "1",
	"marca_id":         "0",
	"pagina":           "1",
	"complementoventa": "0",
	"registros":        "20000",
	"soloAlCredito":    "0",
	"ruc":              "-1",
	"idmonedatc":       "-1",
}

// SalesReport downloads the InformeVentas Excel workbook for desde..hasta (YYYY-MM-DD).
func (c *RestaurantClient) SalesReport(ctx context.Context, session models.Session, desde string, hasta string) ([]byte, error) {
	if session.Token == "" {
		return nil, models.ErrNoToken
	}

	params := make(map[string]string, len(reportDefaultParams)+4)
	for k, v := range reportDefaultParams {
		params[k] = v
	}
	params["name"] = "InformeVentas_" + c.now().UTC().Format("02.01.2006_15.04.05")
	params["f1"] = desde + " 00:00:00"
	params["f2"] = hasta + " 23:59:59"
	params["token"] = session.Token

	resp, err := c.http.R().
		SetContext(ctx).
		SetCookies(session.HTTPCookies()).
		SetQueryParams(params).
		Get(c.cfg.ReportPath)
	if err != nil {
		return nil, fmt.Errorf("SalesReport: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &UpstreamError{
			Status:  http.StatusBadGateway,
			Message: fmt.Sprintf("El servidor del reporte respondió %d. ¿Token o sesión expirados? Haz login de nuevo.", resp.StatusCode()),
		}
	}

	body := resp.Body()
	contentType := strings.ToLower(resp.Header().Get("Content-Type"))
	head := strings.ToLower(strings.TrimSpace(string(body[:min(len(body), 64)])))
	if strings.Contains(contentType, "html") || (len(body) < 2000 && strings.HasPrefix(head, "<!doctype")) {
		return nil, &UpstreamError{Status: http.StatusBadGateway, Message: "Servidor devolvió HTML (token/sesión inválidos)."}
	}

	return body, nil
}
