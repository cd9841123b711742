package service

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"salchimonster/restaurant-reports/models"
)

// MaxUploadSize is the per-file limit for photos and planillas.
const MaxUploadSize = 50 << 20

const (
	FotoEntrega    = "entrega"
	FotoApelacion  = "apelacion"
	FotoRespuestas = "respuestas"
)

var fotoGroups = []string{FotoEntrega, FotoApelacion, FotoRespuestas}

func isFotoGroup(group string) bool {
	for _, g := range fotoGroups {
		if g == group {
			return true
		}
	}

	return false
}

// Upload is one file received in a multipart request.
type Upload struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

func NewUpload(fh *multipart.FileHeader) Upload {
	return Upload{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

// Fotos lists the photo URLs of an order. Apelacion photos are grouped by channel.
type Fotos struct {
	Entrega    []string            `json:"entrega"`
	Apelacion  map[string][]string `json:"apelacion"`
	Respuestas []string            `json:"respuestas"`
}

func emptyFotos() Fotos {
	return Fotos{Entrega: []string{}, Apelacion: map[string][]string{}, Respuestas: []string{}}
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range list {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}

	return list
}

func (f *Fotos) merge(other Fotos) {
	f.Entrega = appendUnique(f.Entrega, other.Entrega...)
	f.Respuestas = appendUnique(f.Respuestas, other.Respuestas...)
	for canal, urls := range other.Apelacion {
		f.Apelacion[canal] = appendUnique(f.Apelacion[canal], urls...)
	}
}

type OrganizeMove struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Merged bool   `json:"merged,omitempty"`
}

type OrganizeError struct {
	Folder string `json:"folder"`
	Error  string `json:"error"`
}

type OrganizeResult struct {
	Moved   []OrganizeMove  `json:"moved"`
	Errors  []OrganizeError `json:"errors"`
	Message string          `json:"message"`
}

// FotoStore keeps order photos under root/{codigo}/{entrega|respuestas}/file and
// root/{codigo}/apelacion/{canal}/file.
type FotoStore struct {
	root string
}

func NewFotoStore(root string) *FotoStore {
	return &FotoStore{root: root}
}

func trimCodigo(codigo string) string {
	return strings.TrimPrefix(strings.TrimSpace(codigo), "#")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// base is the folder of a code. Numeric codes fall back to the folder named with a
// leading # when only that one exists.
func (s *FotoStore) base(codigo string) string {
	cod := trimCodigo(codigo)
	base := filepath.Join(s.root, models.SanitizeCodigo(cod))
	if isDir(base) {
		return base
	}

	if cod != "" && strings.Trim(cod, "0123456789") == "" {
		alt := filepath.Join(s.root, models.SanitizeCodigo("#"+cod))
		if isDir(alt) {
			return alt
		}
	}

	return base
}

func listFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	return names
}

func fotoURL(cod string, parts ...string) string {
	return "/api/orders/" + cod + "/fotos/" + strings.Join(parts, "/")
}

// ForCodigo lists the photos stored under a single code.
func (s *FotoStore) ForCodigo(codigo string) Fotos {
	cod := trimCodigo(codigo)
	base := s.base(codigo)
	out := emptyFotos()

	for _, name := range listFiles(filepath.Join(base, FotoEntrega)) {
		out.Entrega = append(out.Entrega, fotoURL(cod, FotoEntrega, name))
	}
	for _, name := range listFiles(filepath.Join(base, FotoRespuestas)) {
		out.Respuestas = append(out.Respuestas, fotoURL(cod, FotoRespuestas, name))
	}

	canales, err := os.ReadDir(filepath.Join(base, FotoApelacion))
	if err == nil {
		for _, c := range canales {
			if !c.IsDir() {
				continue
			}
			urls := []string{}
			for _, name := range listFiles(filepath.Join(base, FotoApelacion, c.Name())) {
				urls = append(urls, fotoURL(cod, FotoApelacion, c.Name(), name))
			}
			out.Apelacion[c.Name()] = urls
		}
	}

	return out
}

// ForOrder merges the photos of every code an order may have been stored under.
func (s *FotoStore) ForOrder(order models.Order) Fotos {
	merged := emptyFotos()
	for _, cod := range order.FotoCandidates() {
		merged.merge(s.ForCodigo(cod))
	}

	return merged
}

func (s *FotoStore) HasEntrega(order models.Order) bool {
	for _, cod := range order.FotoCandidates() {
		if len(listFiles(filepath.Join(s.base(cod), FotoEntrega))) > 0 {
			return true
		}
	}

	return false
}

func writeUpload(dir string, u Upload) (string, error) {
	name := models.SanitizePath(u.Name)
	if name == "sin_nombre" {
		name = uuid.NewString()
	}

	src, err := u.Open()
	if err != nil {
		return "", fmt.Errorf("writeUpload: %w", err)
	}
	defer src.Close()

	tmp := filepath.Join(dir, "."+name+"."+uuid.NewString()+".tmp")
	dst, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("writeUpload: %w", err)
	}

	n, err := io.Copy(dst, io.LimitReader(src, MaxUploadSize+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > MaxUploadSize {
		err = models.ErrTooLarge
	}
	if err != nil {
		os.Remove(tmp)
		return "", err
	}

	if err = os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("writeUpload: %w", err)
	}

	return name, nil
}

// Save stores files in a group of an order. canal only applies to apelacion and
// defaults to "general".
func (s *FotoStore) Save(codigo string, group string, canal string, files []Upload) ([]string, error) {
	if !isFotoGroup(group) {
		return nil, fmt.Errorf("group debe ser entrega, apelacion o respuestas: %w", models.ErrInvalidInput)
	}

	var valid []Upload
	for _, f := range files {
		if f.Name != "" {
			valid = append(valid, f)
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("Envía al menos un archivo: %w", models.ErrInvalidInput)
	}
	for _, f := range valid {
		if f.Size > MaxUploadSize {
			return nil, fmt.Errorf("Archivo '%s' demasiado grande. Máximo 50 MB por imagen.: %w", f.Name, models.ErrTooLarge)
		}
	}

	dir := filepath.Join(s.root, models.SanitizeCodigo(trimCodigo(codigo)), group)
	if group == FotoApelacion {
		canalDir := "general"
		if strings.TrimSpace(canal) != "" {
			canalDir = models.SanitizePath(canal)
		}
		dir = filepath.Join(dir, canalDir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("FotoStore.Save: %w", err)
	}

	saved := []string{}
	for _, f := range valid {
		name, err := writeUpload(dir, f)
		if errors.Is(err, models.ErrTooLarge) {
			return saved, fmt.Errorf("Archivo '%s' demasiado grande. Máximo 50 MB por imagen.: %w", f.Name, models.ErrTooLarge)
		}
		if err != nil {
			return saved, err
		}
		saved = append(saved, name)
	}
	log.Debugf("Fotos %s/%s: %d guardadas", codigo, group, len(saved))

	return saved, nil
}

// Path resolves a stored photo. rest is the file name, or canal/file for apelacion.
func (s *FotoStore) Path(codigo string, group string, rest string) (string, error) {
	notFound := fmt.Errorf("Archivo no encontrado: %w", models.ErrNotFound)
	if !isFotoGroup(group) {
		return "", notFound
	}

	groupDir := filepath.Join(s.base(codigo), group)
	path := filepath.Join(groupDir, filepath.FromSlash(rest))
	rel, err := filepath.Rel(groupDir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", notFound
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", notFound
	}

	return path, nil
}

func (s *FotoStore) Delete(codigo string, group string, rest string) error {
	path, err := s.Path(codigo, group, rest)
	if err != nil {
		return err
	}

	if err = os.Remove(path); err != nil {
		return fmt.Errorf("FotoStore.Delete: %w", err)
	}

	return nil
}

func copyFile(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

// copyTree copies every file under src into dst. Existing files are kept unless overwrite.
func copyTree(src string, dst string, overwrite bool) (int, error) {
	copied := 0
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if _, statErr := os.Stat(target); statErr == nil {
			if !overwrite {
				return nil
			}
			if err = os.Remove(target); err != nil {
				return err
			}
		}
		if err = copyFile(path, target); err != nil {
			return err
		}
		copied++

		return nil
	})

	return copied, err
}

// CopyCodigo copies the photos of one code into the folder of another, never
// overwriting a file that already exists there.
func (s *FotoStore) CopyCodigo(from string, to string) (int, error) {
	src := filepath.Join(s.root, models.SanitizeCodigo(trimCodigo(from)))
	if !isDir(src) {
		return 0, nil
	}
	dst := filepath.Join(s.root, models.SanitizeCodigo(trimCodigo(to)))
	if src == dst {
		return 0, nil
	}

	total := 0
	for _, group := range fotoGroups {
		if !isDir(filepath.Join(src, group)) {
			continue
		}
		n, err := copyTree(filepath.Join(src, group), filepath.Join(dst, group), false)
		total += n
		if err != nil {
			return total, fmt.Errorf("CopyCodigo %s -> %s: %w", from, to, err)
		}
	}

	return total, nil
}

// Organize moves folders named by an alternative reference into the canonical code
// folder, merging with it when both exist. altToCanon maps sanitized folder names.
func (s *FotoStore) Organize(altToCanon map[string]string) OrganizeResult {
	result := OrganizeResult{Moved: []OrganizeMove{}, Errors: []OrganizeError{}}

	alts := make([]string, 0, len(altToCanon))
	for alt := range altToCanon {
		alts = append(alts, alt)
	}
	sort.Strings(alts)

	for _, alt := range alts {
		canon := altToCanon[alt]
		src := filepath.Join(s.root, alt)
		if alt == canon || !isDir(src) {
			continue
		}
		dst := filepath.Join(s.root, canon)

		if !isDir(dst) {
			if err := os.Rename(src, dst); err != nil {
				result.Errors = append(result.Errors, OrganizeError{Folder: alt, Error: err.Error()})
				continue
			}
			result.Moved = append(result.Moved, OrganizeMove{From: alt, To: canon})
			continue
		}

		var failed error
		for _, group := range fotoGroups {
			if !isDir(filepath.Join(src, group)) {
				continue
			}
			if _, err := copyTree(filepath.Join(src, group), filepath.Join(dst, group), true); err != nil {
				failed = err
				break
			}
		}
		if failed == nil {
			failed = os.RemoveAll(src)
		}
		if failed != nil {
			result.Errors = append(result.Errors, OrganizeError{Folder: alt, Error: failed.Error()})
			continue
		}
		result.Moved = append(result.Moved, OrganizeMove{From: alt, To: canon, Merged: true})
	}

	if len(result.Moved) > 0 {
		result.Message = fmt.Sprintf("Organizadas %d carpetas", len(result.Moved))
	} else {
		result.Message = "Nada que organizar"
	}

	return result
}
