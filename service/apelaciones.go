package service

import (
	"fmt"
	"math"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"salchimonster/restaurant-reports/models"
)

type MarcarRequest struct {
	Codigo          string  `json:"codigo"`
	Canal           string  `json:"canal"`
	DeliveryID      string  `json:"delivery_id"`
	MontoDescontado float64 `json:"monto_descontado"`
	Local           string  `json:"local"`
	Fecha           string  `json:"fecha"`
}

type ApelarRequest struct {
	Codigo                  string
	MontoDevuelto           float64
	FechaEstimadaDevolucion string
	Files                   []Upload
}

type ReembolsarRequest struct {
	Codigo           string   `json:"codigo"`
	MismoValor       *bool    `json:"mismo_valor"`
	MontoReembolsado *float64 `json:"monto_reembolsado"`
	FechaReembolso   string   `json:"fecha_reembolso"`
}

type ConfirmarDescuentoRequest struct {
	Codigo   string  `json:"codigo"`
	Monto    float64 `json:"monto"`
	Quincena string  `json:"quincena"`
}

type DescuentosQuery struct {
	models.ApelacionFilter
	SoloPendientes  bool
	SoloConfirmados bool
}

// PendingOrder is an order of the location still waiting for its dispute to be filed.
type PendingOrder struct {
	models.Order
	ApelacionMontoDescontado float64  `json:"apelacion_monto_descontado"`
	ApelacionCanal           string   `json:"apelacion_canal"`
	FotosEntrega             []string `json:"fotos_entrega"`
}

// ApelacionService runs the dispute lifecycle: mark, appeal or decline, refund, deduct.
type ApelacionService struct {
	db     *gorm.DB
	orders *OrderService
	fotos  *FotoStore
	now    func() time.Time
}

func NewApelacionService(db *gorm.DB, orders *OrderService, fotos *FotoStore) *ApelacionService {
	return &ApelacionService{db: db, orders: orders, fotos: fotos, now: Now}
}

func (s *ApelacionService) today() string {
	return s.now().In(Colombia).Format(DateLayout)
}

func requireCodigo(codigo string) (string, error) {
	cod := strings.TrimSpace(codigo)
	if cod == "" {
		return "", fmt.Errorf("codigo requerido: %w", models.ErrInvalidInput)
	}

	return cod, nil
}

func notFoundIn(err error, message string) error {
	if models.IsNotFound(err) {
		return fmt.Errorf("%s: %w", message, models.ErrNotFound)
	}

	return err
}

// update loads the dispute of codigo inside a transaction, lets fn change it and saves
// the parent row. fn persists any child rows it adds through tx.
func (s *ApelacionService) update(codigo string, missing string, fn func(tx *gorm.DB, ap *models.Apelacion) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		ap, err := models.FindApelacion(tx, codigo)
		if err != nil {
			return notFoundIn(err, missing)
		}

		if err = fn(tx, ap); err != nil {
			return err
		}

		if err = tx.Omit(clause.Associations).Save(ap).Error; err != nil {
			return fmt.Errorf("update apelacion %s: %w", codigo, err)
		}

		return nil
	})
}

// Marcar marks an order for dispute with the amount the channel deducted. Marking an
// already marked order updates it.
func (s *ApelacionService) Marcar(req MarcarRequest) error {
	cod, err := requireCodigo(req.Codigo)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		ap, err := models.FindApelacion(tx, cod)
		if models.IsNotFound(err) {
			ap = &models.Apelacion{Codigo: cod}
		} else if err != nil {
			return err
		}

		ap.Canal = strings.TrimSpace(req.Canal)
		ap.DeliveryID = strings.TrimSpace(req.DeliveryID)
		ap.MontoDescontado = req.MontoDescontado
		ap.FechaMarcado = s.now().Format(time.RFC3339)
		ap.Local = strings.TrimSpace(req.Local)
		ap.Fecha = strings.TrimSpace(req.Fecha)

		if err = tx.Omit(clause.Associations).Save(ap).Error; err != nil {
			return fmt.Errorf("Marcar %s: %w", cod, err)
		}
		log.Infof("Apelación marcada: %s (%s) -$%.2f", cod, ap.Canal, ap.MontoDescontado)

		return nil
	})
}

// Pendientes lists the orders of a location that are marked and still waiting for the
// location to appeal. The day defaults to today.
func (s *ApelacionService) Pendientes(local string, fecha string, desde string, hasta string) ([]PendingOrder, error) {
	if strings.TrimSpace(local) == "" {
		return nil, fmt.Errorf("local requerido: %w", models.ErrInvalidInput)
	}

	dates, err := ResolveDates(fecha, desde, hasta, s.today())
	if err != nil {
		return nil, err
	}

	orders, err := s.orders.ForLocal(local, dates[0], dates[len(dates)-1])
	if err != nil {
		return nil, err
	}

	byCodigo, err := models.FetchApelacionesByCodigo(s.db)
	if err != nil {
		return nil, err
	}

	pendientes := []PendingOrder{}
	for _, o := range orders {
		ap, ok := byCodigo[strings.TrimSpace(o.CodigoIntegracion)]
		if !ok || !ap.IsPendienteApelar() {
			continue
		}

		pendientes = append(pendientes, PendingOrder{
			Order:                    o,
			ApelacionMontoDescontado: ap.MontoDescontado,
			ApelacionCanal:           ap.Canal,
			FotosEntrega:             s.fotos.ForOrder(o).Entrega,
		})
	}

	return pendientes, nil
}

// Apelar records the amount the channel will return and stores the channel's answer
// screenshots under respuestas.
func (s *ApelacionService) Apelar(req ApelarRequest) error {
	cod, err := requireCodigo(req.Codigo)
	if err != nil {
		return err
	}

	err = s.update(cod, "Orden no marcada para apelación", func(tx *gorm.DB, ap *models.Apelacion) error {
		if ap.IsApelada() {
			return models.ErrAlreadyAppealed
		}

		devuelto := req.MontoDevuelto
		apelado := s.now().Format(time.RFC3339)
		ap.MontoDevuelto = &devuelto
		ap.FechaApelado = &apelado
		ap.FechaEstimadaDevolucion = nil
		if estimada := strings.TrimSpace(req.FechaEstimadaDevolucion); estimada != "" {
			if len(estimada) > 10 {
				estimada = estimada[:10]
			}
			ap.FechaEstimadaDevolucion = &estimada
		}

		return nil
	})
	if err != nil {
		return err
	}
	log.Infof("Apelación %s: apelada, devolverán $%.2f", cod, req.MontoDevuelto)

	var files []Upload
	for _, f := range req.Files {
		if f.Name != "" {
			files = append(files, f)
		}
	}
	if len(files) > 0 {
		if _, err = s.fotos.Save(cod, FotoRespuestas, "", files); err != nil {
			return err
		}
	}

	return nil
}

// NoApelar records that the location decided not to dispute; the loss moves to Descuentos.
func (s *ApelacionService) NoApelar(codigo string) error {
	cod, err := requireCodigo(codigo)
	if err != nil {
		return err
	}

	return s.update(cod, "Orden no encontrada en apelaciones", func(tx *gorm.DB, ap *models.Apelacion) error {
		if ap.IsApelada() {
			return models.ErrAlreadyAppealed
		}
		ap.SedeDecidioNoApelar = true

		return nil
	})
}

// ReembolsosPendientes lists appealed disputes whose promised refund is not fully paid.
func (s *ApelacionService) ReembolsosPendientes(filter models.ApelacionFilter) ([]models.ApelacionView, error) {
	items, err := models.FetchApelaciones(s.db, filter)
	if err != nil {
		return nil, err
	}

	out := []models.ApelacionView{}
	for _, ap := range items {
		if ap.IsPendingRefund() {
			out = append(out, ap.View())
		}
	}

	return out, nil
}

// Reembolsar records one refund payment. With mismo_valor (the default) the payment is
// whatever remains of the promised amount.
func (s *ApelacionService) Reembolsar(req ReembolsarRequest) error {
	cod, err := requireCodigo(req.Codigo)
	if err != nil {
		return err
	}

	return s.update(cod, "Orden no encontrada en apelaciones", func(tx *gorm.DB, ap *models.Apelacion) error {
		if !ap.IsApelada() {
			return fmt.Errorf("La orden no tiene monto_devuelto: %w", models.ErrInvalidInput)
		}

		var monto float64
		if req.MismoValor == nil || *req.MismoValor {
			monto = math.Max(0, ap.MontoDevueltoValue()-ap.TotalReembolsado())
		} else if req.MontoReembolsado != nil {
			monto = *req.MontoReembolsado
		}
		if monto <= 0 {
			return models.ErrNoRefundAmount
		}

		fecha := strings.TrimSpace(req.FechaReembolso)
		if len(fecha) > 10 {
			fecha = fecha[:10]
		}
		if fecha == "" {
			fecha = s.today()
		}

		ap.AddReembolso(monto, fecha)
		if err := tx.Create(&ap.Reembolsos[len(ap.Reembolsos)-1]).Error; err != nil {
			return fmt.Errorf("Reembolsar %s: %w", cod, err)
		}
		log.Infof("Apelación %s: reembolso $%.2f (%s)", cod, monto, fecha)

		return nil
	})
}

// EstadoAdmin lists every dispute with its derived amounts and states.
func (s *ApelacionService) EstadoAdmin(filter models.ApelacionFilter) ([]models.ApelacionView, error) {
	items, err := models.FetchApelaciones(s.db, filter)
	if err != nil {
		return nil, err
	}

	out := make([]models.ApelacionView, 0, len(items))
	for _, ap := range items {
		out = append(out, ap.View())
	}

	return out, nil
}

// Descuentos lists disputes that left a loss to deduct from the location's payroll.
func (s *ApelacionService) Descuentos(q DescuentosQuery) ([]models.ApelacionView, error) {
	items, err := models.FetchApelaciones(s.db, q.ApelacionFilter)
	if err != nil {
		return nil, err
	}

	out := []models.ApelacionView{}
	for _, ap := range items {
		if ap.Perdida() <= 0 {
			continue
		}

		cubierto := ap.IsDescuentoCubierto()
		if q.SoloConfirmados && !cubierto {
			continue
		}
		if !q.SoloConfirmados && q.SoloPendientes && cubierto {
			continue
		}
		out = append(out, ap.View())
	}

	return out, nil
}

// ConfirmarDescuento records an amount deducted from the location in a quincena.
func (s *ApelacionService) ConfirmarDescuento(req ConfirmarDescuentoRequest) error {
	cod, err := requireCodigo(req.Codigo)
	if err != nil {
		return err
	}

	return s.update(cod, "Orden no encontrada en apelaciones", func(tx *gorm.DB, ap *models.Apelacion) error {
		if ap.Perdida() <= 0 {
			return models.ErrNoLoss
		}
		if req.Monto <= 0 {
			return fmt.Errorf("Indica el monto descontado en esta quincena: %w", models.ErrInvalidInput)
		}

		quincena := strings.TrimSpace(req.Quincena)
		if quincena == "" {
			quincena = DefaultQuincena(s.now().In(Colombia))
		}

		ap.AddDescuento(req.Monto, quincena, s.today())
		if err := tx.Create(&ap.Descuentos[len(ap.Descuentos)-1]).Error; err != nil {
			return fmt.Errorf("ConfirmarDescuento %s: %w", cod, err)
		}
		log.Infof("Apelación %s: descuento $%.2f en quincena %s", cod, req.Monto, quincena)

		return nil
	})
}

// Reporte totals what the channels deducted and returned over the filtered disputes.
func (s *ApelacionService) Reporte(filter models.ApelacionFilter) (models.ApelacionesReporte, error) {
	items, err := models.FetchApelaciones(s.db, filter)
	if err != nil {
		return models.ApelacionesReporte{}, err
	}

	return models.NewApelacionesReporte(items), nil
}

// DescuentosQuincena returns the deductions recorded in a quincena with their dispute.
func (s *ApelacionService) DescuentosQuincena(quincena string) ([]models.Descuento, map[uint]models.Apelacion, error) {
	if _, _, err := QuincenaRange(quincena); err != nil {
		return nil, nil, fmt.Errorf("%v: %w", err, models.ErrInvalidInput)
	}

	descuentos, err := models.FetchDescuentosByQuincena(s.db, quincena)
	if err != nil {
		return nil, nil, err
	}

	items, err := models.FetchApelaciones(s.db, models.ApelacionFilter{})
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[uint]models.Apelacion, len(items))
	for _, ap := range items {
		byID[ap.ID] = ap
	}

	return descuentos, byID, nil
}
