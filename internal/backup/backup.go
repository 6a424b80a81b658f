// Package backup dumps every collection into a gzip JSON archive and restores
// collections from such archives.
package backup

import (
	"compress/gzip"
	"context"
	stdjson "encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/pkg/common"
	"github.com/celenkdiyari/storefront/pkg/metrics"
)

const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"

	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"

	archiveVersion = 1
	dumpParallel   = 4
	restoreBatch   = 200
)

var (
	ErrNotFound      = stderrors.New("backup not found")
	ErrNotRestorable = stderrors.New("backup is not restorable")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Archive the file layout
type Archive struct {
	Version     int                                 `json:"version"`
	CreatedAt   time.Time                           `json:"createdAt"`
	Collections map[string][]map[string]interface{} `json:"collections"`
}

// Uploader ships a finished archive to remote storage
type Uploader interface {
	Upload(ctx context.Context, localPath string) error
}

type tabler interface {
	TableName() string
}

// Collections table names covered by backups, the backup log itself excluded
func Collections() []string {
	var names []string
	for _, t := range domain.Tables {
		tb, ok := t.(tabler)
		if !ok {
			continue
		}
		if tb.TableName() == (domain.Backup{}).TableName() {
			continue
		}
		names = append(names, tb.TableName())
	}
	return names
}

type Manager struct {
	db       *gorm.DB
	dir      string
	uploader Uploader
	mu       sync.Mutex
	schemas  sync.Map
}

func NewManager(db *gorm.DB, dir string, uploader Uploader) *Manager {
	return &Manager{db: db, dir: dir, uploader: uploader}
}

// Path location of the archive on disk
func (m *Manager) Path(b *domain.Backup) string {
	return filepath.Join(m.dir, filepath.Base(b.Filename))
}

func (m *Manager) dump(ctx context.Context) (*Archive, error) {
	names := Collections()
	rows := make([][]map[string]interface{}, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dumpParallel)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			var data []map[string]interface{}
			if err := m.db.WithContext(gctx).Table(name).Find(&data).Error; err != nil {
				return errors.Wrapf(err, "dump %s", name)
			}
			rows[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	a := &Archive{Version: archiveVersion, CreatedAt: time.Now(), Collections: map[string][]map[string]interface{}{}}
	for i, name := range names {
		if rows[i] == nil {
			rows[i] = []map[string]interface{}{}
		}
		a.Collections[name] = rows[i]
	}
	return a, nil
}

func writeArchive(path string, a *Archive) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(a); err != nil {
		f.Close()
		return 0, err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

// ReadArchive decodes an archive, numbers kept as json.Number
func ReadArchive(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "open gzip")
	}
	defer zr.Close()
	dec := json.NewDecoder(zr)
	dec.UseNumber()
	var a Archive
	if err := dec.Decode(&a); err != nil {
		return nil, errors.Wrap(err, "decode archive")
	}
	return &a, nil
}

// Create writes a new archive and records it
func (m *Manager) Create(ctx context.Context, trigger string) (*domain.Backup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create backup dir")
	}
	now := time.Now()
	id := common.UUIDint64()
	b := &domain.Backup{
		ID:        id,
		Filename:  fmt.Sprintf("backup-%s-%d.json.gz", now.Format("20060102-150405"), id),
		Trigger:   trigger,
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, errors.Wrap(err, "record backup")
	}

	fail := func(err error) (*domain.Backup, error) {
		b.Status, b.Message, b.UpdatedAt = StatusFailed, err.Error(), time.Now()
		m.db.Save(b)
		zap.L().Error("backup failed", zap.String("namespace", "backup"), zap.Error(err))
		return b, err
	}

	a, err := m.dump(ctx)
	if err != nil {
		return fail(err)
	}
	size, err := writeArchive(m.Path(b), a)
	if err != nil {
		os.Remove(m.Path(b))
		return fail(errors.Wrap(err, "write archive"))
	}

	b.Size = size
	b.Collections = map[string]int64{}
	for name, rows := range a.Collections {
		b.Collections[name] = int64(len(rows))
	}
	b.Status = StatusSuccess

	if m.uploader != nil {
		if err := m.uploader.Upload(ctx, m.Path(b)); err != nil {
			b.Message = "upload failed: " + err.Error()
			zap.L().Error("backup upload failed", zap.String("namespace", "backup"),
				zap.String("filename", b.Filename), zap.Error(err))
		} else {
			b.Uploaded = true
		}
	}
	b.UpdatedAt = time.Now()
	if err := m.db.WithContext(ctx).Save(b).Error; err != nil {
		return nil, errors.Wrap(err, "update backup")
	}
	metrics.Incr(metrics.BackupsCreated, 1)
	zap.L().Info("backup created",
		zap.String("namespace", "backup"),
		zap.String("filename", b.Filename),
		zap.Int64("size", b.Size),
		zap.String("trigger", trigger))
	return b, nil
}

func (m *Manager) List(ctx context.Context) ([]domain.Backup, error) {
	var list []domain.Backup
	err := m.db.WithContext(ctx).Order("created_at desc").Find(&list).Error
	return list, errors.Wrap(err, "list backups")
}

func (m *Manager) Get(ctx context.Context, id int64) (*domain.Backup, error) {
	var b domain.Backup
	err := m.db.WithContext(ctx).Where("id = ?", id).First(&b).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query backup")
	}
	return &b, nil
}

func (m *Manager) Delete(ctx context.Context, id int64) error {
	b, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	return m.remove(ctx, b)
}

func (m *Manager) remove(ctx context.Context, b *domain.Backup) error {
	if err := os.Remove(m.Path(b)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove archive")
	}
	return errors.Wrap(m.db.WithContext(ctx).Delete(&domain.Backup{}, b.ID).Error, "delete backup")
}

// Prune keeps the newest keep successful archives and drops the rest
func (m *Manager) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	var list []domain.Backup
	err := m.db.WithContext(ctx).Where("status = ?", StatusSuccess).
		Order("created_at desc").Offset(keep).Find(&list).Error
	if err != nil {
		return 0, errors.Wrap(err, "query old backups")
	}
	removed := 0
	for i := range list {
		if err := m.remove(ctx, &list[i]); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Restore replaces every collection found in the archive inside one transaction
func (m *Manager) Restore(ctx context.Context, id int64) (map[string]int64, error) {
	b, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusSuccess {
		return nil, ErrNotRestorable
	}
	a, err := ReadArchive(m.Path(b))
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	known := map[string]bool{}
	for _, name := range Collections() {
		known[name] = true
	}
	names := make([]string, 0, len(a.Collections))
	for name := range a.Collections {
		if !known[name] {
			return nil, errors.Errorf("archive holds unknown collection %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	counts := map[string]int64{}
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range names {
			if err := tx.Exec("DELETE FROM " + tx.Statement.Quote(name)).Error; err != nil {
				return errors.Wrapf(err, "clear %s", name)
			}
			timeCols, err := m.timeColumns(tx, name)
			if err != nil {
				return err
			}
			rows := a.Collections[name]
			for _, row := range rows {
				normalizeRow(row, timeCols)
			}
			if len(rows) > 0 {
				if err := tx.Table(name).CreateInBatches(rows, restoreBatch).Error; err != nil {
					return errors.Wrapf(err, "restore %s", name)
				}
			}
			counts[name] = int64(len(rows))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("backup restored",
		zap.String("namespace", "backup"),
		zap.String("filename", b.Filename))
	return counts, nil
}

var timeType = reflect.TypeOf(time.Time{})

// timeColumns db column names of the collection's model declared as time.Time
func (m *Manager) timeColumns(db *gorm.DB, name string) (map[string]bool, error) {
	cols := map[string]bool{}
	for _, t := range domain.Tables {
		tb, ok := t.(tabler)
		if !ok || tb.TableName() != name {
			continue
		}
		sch, err := schema.Parse(t, &m.schemas, db.NamingStrategy)
		if err != nil {
			return nil, errors.Wrapf(err, "parse schema of %s", name)
		}
		for _, f := range sch.Fields {
			ft := f.FieldType
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if f.DBName != "" && ft == timeType {
				cols[f.DBName] = true
			}
		}
	}
	return cols, nil
}

// normalizeRow turns decoded json values back into driver friendly ones.
// Strings are parsed as timestamps only in timeCols.
func normalizeRow(row map[string]interface{}, timeCols map[string]bool) {
	for k, v := range row {
		switch val := v.(type) {
		case stdjson.Number:
			row[k] = number(val.Int64, val.Float64, v)
		case jsoniter.Number:
			row[k] = number(val.Int64, val.Float64, v)
		case string:
			if !timeCols[k] {
				continue
			}
			if t, err := time.Parse(time.RFC3339Nano, val); err == nil {
				row[k] = t
			}
		}
	}
}

func number(asInt func() (int64, error), asFloat func() (float64, error), raw interface{}) interface{} {
	if i, err := asInt(); err == nil {
		return i
	}
	if f, err := asFloat(); err == nil {
		return f
	}
	return raw
}
