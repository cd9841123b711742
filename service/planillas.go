package service

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"salchimonster/restaurant-reports/models"
)

var planillaExtensions = map[string]struct{}{
	".xlsx": {}, ".xls": {}, ".csv": {}, ".ods": {}, ".pdf": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".webp": {},
}

func planillaExtensionList() string {
	exts := make([]string, 0, len(planillaExtensions))
	for ext := range planillaExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	return strings.Join(exts, ", ")
}

func isPlanillaFile(name string) bool {
	_, ok := planillaExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

type PlanillaArchivo struct {
	Nombre      string  `json:"nombre"`
	Tamanio     int64   `json:"tamanio"`
	FechaSubida float64 `json:"fecha_subida"`
}

type PlanillaEstado struct {
	Subida   bool              `json:"subida"`
	Archivos []PlanillaArchivo `json:"archivos"`
}

type SedePlanilla struct {
	LocalID   string `json:"local_id"`
	LocalName string `json:"local_name"`
	PlanillaEstado
}

type EstadoSedes struct {
	Fecha string         `json:"fecha"`
	Sedes []SedePlanilla `json:"sedes"`
}

// PlanillaStore keeps the daily paperwork of each location under root/{local_id}/{fecha}/.
type PlanillaStore struct {
	root    string
	locales *LocaleService
}

func NewPlanillaStore(root string, locales *LocaleService) *PlanillaStore {
	return &PlanillaStore{root: root, locales: locales}
}

func (s *PlanillaStore) Dir(localID string, fecha string) string {
	return filepath.Join(s.root, models.SanitizePath(localID), models.SanitizePath(fecha))
}

// Files lists the planillas of a location and date, sorted by name.
func (s *PlanillaStore) Files(localID string, fecha string) []PlanillaArchivo {
	dir := s.Dir(localID, fecha)

	archivos := []PlanillaArchivo{}
	for _, name := range listFiles(dir) {
		if !isPlanillaFile(name) {
			continue
		}
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		archivos = append(archivos, PlanillaArchivo{
			Nombre:      name,
			Tamanio:     info.Size(),
			FechaSubida: float64(info.ModTime().UnixMilli()) / 1000,
		})
	}

	return archivos
}

func (s *PlanillaStore) Estado(localID string, fecha string) PlanillaEstado {
	archivos := s.Files(localID, fecha)
	return PlanillaEstado{Subida: len(archivos) > 0, Archivos: archivos}
}

// Upload stores one planilla. Several files may be uploaded for the same day.
func (s *PlanillaStore) Upload(localID string, fecha string, file Upload) (string, error) {
	if file.Name == "" {
		return "", fmt.Errorf("El archivo no tiene nombre: %w", models.ErrInvalidInput)
	}

	ext := strings.ToLower(filepath.Ext(file.Name))
	if _, ok := planillaExtensions[ext]; !ok {
		return "", fmt.Errorf("Extensión no permitida: %s. Usa %s: %w", ext, planillaExtensionList(), models.ErrInvalidInput)
	}

	tooLarge := fmt.Errorf("Archivo demasiado grande (máx. 50 MB): %w", models.ErrTooLarge)
	if file.Size > MaxUploadSize {
		return "", tooLarge
	}

	dir := s.Dir(localID, fecha)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("PlanillaStore.Upload: %w", err)
	}

	name, err := writeUpload(dir, file)
	if errors.Is(err, models.ErrTooLarge) {
		return "", tooLarge
	}
	if err != nil {
		return "", err
	}
	log.Infof("Planilla subida: local %s, %s, %s", localID, fecha, name)

	return name, nil
}

// Path resolves a stored planilla for download.
func (s *PlanillaStore) Path(localID string, fecha string, nombre string) (string, error) {
	path := filepath.Join(s.Dir(localID, fecha), models.SanitizePath(nombre))

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("Archivo no encontrado: %w", models.ErrNotFound)
	}

	return path, nil
}

// Delete removes one planilla and returns its name.
func (s *PlanillaStore) Delete(localID string, fecha string, nombre string) (string, error) {
	path, err := s.Path(localID, fecha, nombre)
	if err != nil {
		return "", err
	}

	if err = os.Remove(path); err != nil {
		return "", fmt.Errorf("PlanillaStore.Delete: %w", err)
	}

	return filepath.Base(path), nil
}

// DeleteAll removes every planilla of a location and date and returns how many there were.
func (s *PlanillaStore) DeleteAll(localID string, fecha string) (int, error) {
	archivos := s.Files(localID, fecha)
	if len(archivos) == 0 {
		return 0, fmt.Errorf("No hay planillas para esta sede y fecha: %w", models.ErrNotFound)
	}

	dir := s.Dir(localID, fecha)
	for _, a := range archivos {
		if err := os.Remove(filepath.Join(dir, a.Nombre)); err != nil && !os.IsNotExist(err) {
			return 0, fmt.Errorf("PlanillaStore.DeleteAll: %w", err)
		}
	}

	return len(archivos), nil
}

// EstadoSedes reports the planilla status of every listed location for fecha.
func (s *PlanillaStore) EstadoSedes(fecha string) (*EstadoSedes, error) {
	if strings.TrimSpace(fecha) == "" {
		return nil, fmt.Errorf("fecha requerida (YYYY-MM-DD): %w", models.ErrInvalidInput)
	}

	locales, err := s.locales.List()
	if err != nil {
		return nil, err
	}

	out := &EstadoSedes{Fecha: fecha, Sedes: []SedePlanilla{}}
	for _, l := range locales {
		name := l.Name
		if name == "" {
			name = l.ID
		}
		out.Sedes = append(out.Sedes, SedePlanilla{
			LocalID:        l.ID,
			LocalName:      name,
			PlanillaEstado: s.Estado(l.ID, fecha),
		})
	}

	return out, nil
}

// Pending lists the locations that have not uploaded any planilla for fecha.
func (s *PlanillaStore) Pending(fecha string) ([]models.Locale, error) {
	estado, err := s.EstadoSedes(fecha)
	if err != nil {
		return nil, err
	}

	var pending []models.Locale
	for _, sede := range estado.Sedes {
		if !sede.Subida {
			pending = append(pending, models.Locale{ID: sede.LocalID, Name: sede.LocalName})
		}
	}

	return pending, nil
}

// Uploader stores a file on a remote archive.
type Uploader interface {
	Upload(source io.Reader, remoteFile string) error
}

// Push mirrors every planilla of fecha to remoteDir/{fecha}/{local_id}/ and returns how
// many files were sent.
func (s *PlanillaStore) Push(fecha string, remoteDir string, dst Uploader) (int, error) {
	if _, err := ParseDate(fecha); err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("PlanillaStore.Push: %w", err)
	}

	sent := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		localID := e.Name()
		for _, a := range s.Files(localID, fecha) {
			if err = s.pushFile(localID, fecha, a.Nombre, path.Join(remoteDir, fecha, localID, a.Nombre), dst); err != nil {
				return sent, err
			}
			sent++
		}
	}
	log.Infof("Planillas %s: %d archivos enviados", fecha, sent)

	return sent, nil
}

func (s *PlanillaStore) pushFile(localID string, fecha string, nombre string, remote string, dst Uploader) error {
	f, err := os.Open(filepath.Join(s.Dir(localID, fecha), nombre))
	if err != nil {
		return fmt.Errorf("PlanillaStore.Push: %w", err)
	}
	defer f.Close()

	if err = dst.Upload(f, remote); err != nil {
		return fmt.Errorf("PlanillaStore.Push %s: %w", remote, err)
	}

	return nil
}
