package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"salchimonster/restaurant-reports/models"
	"salchimonster/restaurant-reports/service/external"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	log "github.com/sirupsen/logrus"
)

const loginRoute = "#!/login"

// selectJS picks the option with the given value, falling back to the first real option,
// and fires change so the page reloads dependent selects. Returns whether the value existed.
const selectJS = `(function(sel, val) {
	const el = document.querySelector(sel);
	if (!el) return false;
	const found = Array.from(el.options).some(o => o.value === val);
	if (found) { el.value = val; } else if (el.options.length > 1) { el.selectedIndex = 1; } else { return false; }
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return found;
})(%q, %q)`

const errorHintJS = `(function() {
	for (const sel of [".toast-message, .toast-error, [class*='error']", ".has-error .help-block, .alert-danger"]) {
		const el = document.querySelector(sel);
		if (el && el.offsetParent !== null && el.textContent.trim()) return el.textContent.trim().slice(0, 150);
	}
	return "";
})()`

type FormLoginResult struct {
	Message string
	Token   string
	Cookies []models.Cookie
}

// loginCapture records the usuario/login response seen by the page.
type loginCapture struct {
	mu        sync.Mutex
	requestID network.RequestID
	status    int64
}

func (l *loginCapture) listen(ev interface{}) {
	e, ok := ev.(*network.EventResponseReceived)
	if !ok || !strings.Contains(e.Response.URL, "usuario/login") {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.requestID = e.RequestID
	l.status = e.Response.Status
}

func (l *loginCapture) get() (network.RequestID, int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requestID, l.status
}

// selectOption picks value prefixed with "string:" the way the Angular form names its
// options, falling back to the first option when the value is not listed.
func selectOption(name string, value string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var found bool
		sel := fmt.Sprintf(`select[name="%s"]`, name)
		if err := chromedp.Evaluate(fmt.Sprintf(selectJS, sel, "string:"+value), &found).Do(ctx); err != nil {
			return fmt.Errorf("select %s: %w", name, err)
		}
		if !found {
			log.Warnf("FormLogin: %s %q no encontrado, usando la primera opción", name, value)
		}

		return nil
	})
}

// FormLogin fills and submits the restaurant.pe login form in headless Chromium.
func FormLogin(ctx context.Context, opts Options, loginURL string, creds models.Credentials, cookies []models.Cookie) (*FormLoginResult, error) {
	creds = creds.WithDefaults()
	log.Infof("Login (form): inicio - usuario=%s", creds.UsuarioNick)

	ctx, cancel := newBrowserContext(ctx, opts)
	defer cancel()

	capture := &loginCapture{}
	chromedp.ListenTarget(ctx, capture.listen)

	err := chromedp.Run(ctx,
		network.Enable(),
		setCookies(cookies),
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible(`select[name="local_id"]`, chromedp.ByQuery),
		selectOption("local_id", creds.LocalID),
		chromedp.Sleep(1500*time.Millisecond),
		selectOption("caja_id", creds.CajaID),
		selectOption("turno_id", creds.TurnoID),
		chromedp.SendKeys(`input[name="usuario_nick"]`, creds.UsuarioNick, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="usuario_clave"]`, creds.UsuarioClave, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("FormLogin: failed to fill form: %w", err)
	}

	waitCtx, cancelWait := context.WithTimeout(ctx, 10*time.Second)
	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(`button[type="submit"]:not([disabled])`, chromedp.ByQuery)); err != nil {
		log.Warnf("Login (form): botón no se habilitó (caja/turno?): %v", err)
	}
	cancelWait()

	var currentURL, hint string
	var stored []models.Cookie
	err = chromedp.Run(ctx,
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
		chromedp.Sleep(5*time.Second),
		chromedp.Location(&currentURL),
		readCookies(&stored),
		chromedp.Evaluate(errorHintJS, &hint),
	)
	if err != nil {
		return nil, fmt.Errorf("FormLogin: failed to submit form: %w", err)
	}

	requestID, status := capture.get()
	token := ""
	if requestID != "" && status == http.StatusOK {
		token = loginToken(ctx, requestID)
	}

	result := &FormLoginResult{Message: "Login realizado (formulario).", Token: token, Cookies: stored}

	if strings.Contains(currentURL, loginRoute) {
		msg := "El formulario se envió pero la página sigue en login (revisa usuario/clave o captcha)."
		hint = strings.TrimSpace(hint)
		if status == http.StatusInternalServerError {
			msg = strings.TrimSpace("El servidor del restaurante respondió 500 al login (mismo error que por API). " + hint)
		} else if hint != "" {
			msg = msg + " " + hint
		}

		return result, &external.UpstreamError{Status: http.StatusUnauthorized, Message: msg}
	}

	log.Infof("Login (form): éxito, cookies guardadas (%d)", len(stored))

	return result, nil
}

func loginToken(ctx context.Context, requestID network.RequestID) string {
	var body []byte
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(requestID).Do(ctx)
		return err
	}))
	if err != nil {
		log.Warnf("Login (form): no se capturó respuesta del API: %v", err)
		return ""
	}

	var dto struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &dto); err != nil {
		return ""
	}

	return dto.Data.Token
}
