package models

import "errors"

var (
	ErrNotFound        = errors.New("no encontrado")
	ErrInvalidInput    = errors.New("solicitud inválida")
	ErrAlreadyAppealed = errors.New("esta orden ya fue apelada")
	ErrNoLoss          = errors.New("esta orden no tiene pérdida a descontar")
	ErrNoRefundAmount  = errors.New("el monto debe ser mayor a 0")
	ErrNoCredentials   = errors.New("no hay credenciales, usa PUT /credentials para configurarlas")
	ErrNoToken         = errors.New("no hay token, haz login primero")
	ErrTooLarge        = errors.New("archivo demasiado grande")
	ErrUnavailable     = errors.New("servicio no disponible")
)
